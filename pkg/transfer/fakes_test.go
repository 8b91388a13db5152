package transfer

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/s3desk/s3desk/pkg/objectstore"
	"github.com/s3desk/s3desk/pkg/transfer/store"
)

// fakeObjectStore is an in-memory bucket for worker and engine tests.
type fakeObjectStore struct {
	mu sync.Mutex

	objects map[string][]byte

	// control behavior
	headErr        error
	putErr         error
	getErr         error
	listUploadsErr error
	listPartsErr   error
	remoteParts    map[string][]objectstore.Part // uploadID -> already-durable parts
	uploads        []objectstore.Upload
	truncateGetAt  int64 // if >0, Get returns at most this many bytes total

	// recorded calls
	putCalls      int
	getRanges     []string
	createdKeys   []string
	uploadedParts map[string][]int // uploadID -> part numbers in upload order
	completed     map[string][]objectstore.Part
	aborted       []string
	nextUploadID  int
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{
		objects:       make(map[string][]byte),
		remoteParts:   make(map[string][]objectstore.Part),
		uploadedParts: make(map[string][]int),
		completed:     make(map[string][]objectstore.Part),
	}
}

func (f *fakeObjectStore) Head(ctx context.Context, key string) (objectstore.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.headErr != nil {
		return objectstore.Item{}, f.headErr
	}
	data, ok := f.objects[key]
	if !ok {
		return objectstore.Item{}, objectstore.ErrNotFound
	}
	return objectstore.Item{Key: key, Name: key, Size: int64(len(data))}, nil
}

func (f *fakeObjectStore) Get(ctx context.Context, key, byteRange string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[key]
	if !ok {
		return nil, objectstore.ErrNotFound
	}
	f.getRanges = append(f.getRanges, byteRange)

	out := data
	if byteRange != "" {
		var start, end int64
		if _, err := fmt.Sscanf(byteRange, "bytes=%d-%d", &start, &end); err != nil {
			return nil, fmt.Errorf("bad range %q: %w", byteRange, err)
		}
		if end >= int64(len(data)) {
			end = int64(len(data)) - 1
		}
		out = data[start : end+1]
	}
	if f.truncateGetAt > 0 && int64(len(out)) > f.truncateGetAt {
		out = out[:f.truncateGetAt]
	}
	return io.NopCloser(strings.NewReader(string(out))), nil
}

func (f *fakeObjectStore) Put(ctx context.Context, key string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putCalls++
	if f.putErr != nil {
		return f.putErr
	}
	f.objects[key] = append([]byte(nil), body...)
	return nil
}

func (f *fakeObjectStore) CreateMultipartUpload(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextUploadID++
	id := fmt.Sprintf("upload-%d", f.nextUploadID)
	f.createdKeys = append(f.createdKeys, key)
	return id, nil
}

func (f *fakeObjectStore) UploadPart(ctx context.Context, key, uploadID string, partNumber int, body []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploadedParts[uploadID] = append(f.uploadedParts[uploadID], partNumber)
	etag := fmt.Sprintf("etag-%s-%d", uploadID, partNumber)
	f.remoteParts[uploadID] = append(f.remoteParts[uploadID], objectstore.Part{
		PartNumber: partNumber, ETag: etag, Size: int64(len(body)),
	})
	return etag, nil
}

func (f *fakeObjectStore) CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []objectstore.Part) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed[uploadID] = parts
	var total int64
	for _, p := range parts {
		total += p.Size
	}
	f.objects[key] = make([]byte, total)
	return nil
}

func (f *fakeObjectStore) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborted = append(f.aborted, uploadID)
	return nil
}

func (f *fakeObjectStore) ListParts(ctx context.Context, key, uploadID string) ([]objectstore.Part, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listPartsErr != nil {
		return nil, f.listPartsErr
	}
	return f.remoteParts[uploadID], nil
}

func (f *fakeObjectStore) ListMultipartUploads(ctx context.Context) ([]objectstore.Upload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listUploadsErr != nil {
		return nil, f.listUploadsErr
	}
	return f.uploads, nil
}

// recordedEvent is one notification captured by recordingEvents.
type recordedEvent struct {
	kind    string
	id      uint
	status  store.Status
	message string
}

// recordingEvents captures notifications for assertions.
type recordingEvents struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recordingEvents) record(e recordedEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingEvents) Progress(id uint, transferred, total int64) {
	r.record(recordedEvent{kind: "progress", id: id})
}

func (r *recordingEvents) Speed(id uint, bps float64) {
	r.record(recordedEvent{kind: "speed", id: id})
}

func (r *recordingEvents) StatusChanged(id uint, status store.Status) {
	r.record(recordedEvent{kind: "status", id: id, status: status})
}

func (r *recordingEvents) Finished(id uint) {
	r.record(recordedEvent{kind: "finished", id: id})
}

func (r *recordingEvents) Failed(id uint, userMessage, detail string) {
	r.record(recordedEvent{kind: "failed", id: id, message: userMessage})
}

// statuses returns the status transitions observed for one transfer.
func (r *recordingEvents) statuses(id uint) []store.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []store.Status
	for _, e := range r.events {
		if e.kind == "status" && e.id == id {
			out = append(out, e.status)
		}
	}
	return out
}

func (r *recordingEvents) count(kind string, id uint) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.kind == kind && e.id == id {
			n++
		}
	}
	return n
}

func (r *recordingEvents) failureMessage(id uint) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.kind == "failed" && e.id == id {
			return e.message
		}
	}
	return ""
}

func newWorkerTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(&store.Config{Path: filepath.Join(t.TempDir(), "transfers.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}
