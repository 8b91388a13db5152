package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(&Config{Path: filepath.Join(t.TempDir(), "transfers.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newUpload(t *testing.T, s *Store, bucket, key string) *Transfer {
	t.Helper()
	tr := &Transfer{
		Direction: DirectionUpload,
		Bucket:    bucket,
		LocalPath: "/tmp/" + key,
		RemoteKey: key,
	}
	require.NoError(t, s.CreateTransfer(tr))
	return tr
}

func TestCreateAndGetTransfer(t *testing.T) {
	s := newTestStore(t)

	tr := newUpload(t, s, "bkt", "a.txt")
	require.NotZero(t, tr.ID)
	assert.Equal(t, StatusQueued, tr.Status, "new transfers default to queued")

	loaded, err := s.GetTransfer(tr.ID)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", loaded.RemoteKey)
	assert.Equal(t, DirectionUpload, loaded.Direction)
}

func TestGetTransferNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetTransfer(999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStatusTransitions(t *testing.T) {
	s := newTestStore(t)
	tr := newUpload(t, s, "bkt", "a.txt")

	require.NoError(t, s.SetStatus(tr.ID, StatusInProgress))
	require.NoError(t, s.SetTotalBytes(tr.ID, 100))
	require.NoError(t, s.SetTransferredBytes(tr.ID, 40))
	require.NoError(t, s.AddTransferredBytes(tr.ID, 20))

	loaded, err := s.GetTransfer(tr.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, loaded.Status)
	assert.Equal(t, int64(100), loaded.TotalBytes)
	assert.Equal(t, int64(60), loaded.TransferredBytes)
}

func TestMarkFailedAndRetry(t *testing.T) {
	s := newTestStore(t)
	tr := newUpload(t, s, "bkt", "a.txt")

	require.NoError(t, s.MarkFailed(tr.ID, "network unreachable"))
	loaded, _ := s.GetTransfer(tr.ID)
	assert.Equal(t, StatusFailed, loaded.Status)
	assert.Equal(t, "network unreachable", loaded.ErrorMessage)
	assert.True(t, loaded.Status.Terminal())

	require.NoError(t, s.ResetForRetry(tr.ID))
	loaded, _ = s.GetTransfer(tr.ID)
	assert.Equal(t, StatusQueued, loaded.Status)
	assert.Empty(t, loaded.ErrorMessage)
	assert.Zero(t, loaded.RetryCount)
}

func TestMarkCompleted(t *testing.T) {
	s := newTestStore(t)
	tr := newUpload(t, s, "bkt", "a.txt")

	require.NoError(t, s.MarkCompleted(tr.ID))
	loaded, _ := s.GetTransfer(tr.ID)
	assert.Equal(t, StatusCompleted, loaded.Status)
}

func TestUpdateMissingTransfer(t *testing.T) {
	s := newTestStore(t)

	assert.ErrorIs(t, s.SetStatus(42, StatusPaused), ErrNotFound)
}

func TestNextQueuedFIFOScopedToBucket(t *testing.T) {
	s := newTestStore(t)

	first := newUpload(t, s, "bkt", "first.txt")
	second := newUpload(t, s, "bkt", "second.txt")
	newUpload(t, s, "other", "elsewhere.txt")

	next, err := s.NextQueued("bkt", nil)
	require.NoError(t, err)
	assert.Equal(t, first.ID, next.ID)

	next, err = s.NextQueued("bkt", []uint{first.ID})
	require.NoError(t, err)
	assert.Equal(t, second.ID, next.ID)

	_, err = s.NextQueued("bkt", []uint{first.ID, second.ID})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListByStatuses(t *testing.T) {
	s := newTestStore(t)

	a := newUpload(t, s, "bkt", "a.txt")
	b := newUpload(t, s, "bkt", "b.txt")
	c := newUpload(t, s, "bkt", "c.txt")
	require.NoError(t, s.SetStatus(b.ID, StatusInProgress))
	require.NoError(t, s.SetStatus(c.ID, StatusCompleted))

	pending, err := s.ListByStatuses(StatusQueued, StatusInProgress, StatusPaused)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, a.ID, pending[0].ID)
	assert.Equal(t, b.ID, pending[1].ID)
}

func TestPausedTransfers(t *testing.T) {
	s := newTestStore(t)

	a := newUpload(t, s, "bkt", "a.txt")
	newUpload(t, s, "bkt", "b.txt")
	require.NoError(t, s.SetStatus(a.ID, StatusPaused))

	paused, err := s.PausedTransfers("bkt")
	require.NoError(t, err)
	require.Len(t, paused, 1)
	assert.Equal(t, a.ID, paused[0].ID)
}

func TestKnownUploadIDs(t *testing.T) {
	s := newTestStore(t)

	a := newUpload(t, s, "bkt", "a.bin")
	b := newUpload(t, s, "bkt", "b.bin")
	newUpload(t, s, "bkt", "small.txt") // single-shot, no upload id
	other := newUpload(t, s, "other", "c.bin")

	require.NoError(t, s.SetUploadID(a.ID, "upload-a"))
	require.NoError(t, s.SetUploadID(b.ID, "upload-b"))
	require.NoError(t, s.SetUploadID(other.ID, "upload-c"))

	known, err := s.KnownUploadIDs("bkt")
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{
		"upload-a": {},
		"upload-b": {},
	}, known)
}

func TestCreatePartsIdempotent(t *testing.T) {
	s := newTestStore(t)
	tr := newUpload(t, s, "bkt", "big.bin")

	parts := []Part{
		{TransferID: tr.ID, PartNumber: 1, Offset: 0, Length: 8},
		{TransferID: tr.ID, PartNumber: 2, Offset: 8, Length: 4},
	}
	require.NoError(t, s.CreateParts(parts))

	// A crash-and-restart repeats the insert; rows must not duplicate.
	again := []Part{
		{TransferID: tr.ID, PartNumber: 1, Offset: 0, Length: 8},
		{TransferID: tr.ID, PartNumber: 2, Offset: 8, Length: 4},
	}
	require.NoError(t, s.CreateParts(again))

	all, err := s.Parts(tr.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestPartCompletion(t *testing.T) {
	s := newTestStore(t)
	tr := newUpload(t, s, "bkt", "big.bin")

	require.NoError(t, s.CreateParts([]Part{
		{TransferID: tr.ID, PartNumber: 1, Offset: 0, Length: 8},
		{TransferID: tr.ID, PartNumber: 2, Offset: 8, Length: 8},
		{TransferID: tr.ID, PartNumber: 3, Offset: 16, Length: 4},
	}))

	require.NoError(t, s.MarkPartCompleted(tr.ID, 2, "etag-2"))

	pending, err := s.PendingParts(tr.ID)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, 1, pending[0].PartNumber)
	assert.Equal(t, 3, pending[1].PartNumber)

	completed, err := s.CompletedParts(tr.ID)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, "etag-2", completed[0].ETag)

	total, err := s.SumCompletedPartBytes(tr.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(8), total)
}

func TestMarkPartCompletedMissing(t *testing.T) {
	s := newTestStore(t)

	assert.ErrorIs(t, s.MarkPartCompleted(1, 99, "x"), ErrNotFound)
}

func TestPreferences(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetPreference("last_bucket")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SetPreference("last_bucket", "bkt"))
	v, err := s.GetPreference("last_bucket")
	require.NoError(t, err)
	assert.Equal(t, "bkt", v)

	require.NoError(t, s.SetPreference("last_bucket", "other"))
	v, err = s.GetPreference("last_bucket")
	require.NoError(t, err)
	assert.Equal(t, "other", v)
}
