package transfer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s3desk/s3desk/pkg/logging"
	"github.com/s3desk/s3desk/pkg/transfer/store"
)

func createDownload(t *testing.T, db *store.Store, localPath, remoteKey string) *store.Transfer {
	t.Helper()
	tr := &store.Transfer{
		Direction: store.DirectionDownload,
		Bucket:    "bkt",
		LocalPath: localPath,
		RemoteKey: remoteKey,
	}
	require.NoError(t, db.CreateTransfer(tr))
	return tr
}

func runDownload(db *store.Store, client ObjectStore, events Events, id uint, signals *Signals) {
	if signals == nil {
		signals = newSignals()
	}
	newDownloadWorker(id, db, client, events, signals, logging.NewNopLogger()).Run(context.Background())
}

func remoteObject(size int64) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 239)
	}
	return data
}

func TestDownloadSingle(t *testing.T) {
	db := newWorkerTestStore(t)
	client := newFakeObjectStore()
	client.objects["docs/small.bin"] = remoteObject(5 * mib)
	events := &recordingEvents{}

	dest := filepath.Join(t.TempDir(), "small.bin")
	tr := createDownload(t, db, dest, "docs/small.bin")
	runDownload(db, client, events, tr.ID, nil)

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.EqualValues(t, 5*mib, info.Size())

	loaded, _ := db.GetTransfer(tr.ID)
	assert.Equal(t, store.StatusCompleted, loaded.Status)
	assert.EqualValues(t, 5*mib, loaded.TransferredBytes)
	assert.Equal(t, 1, events.count("finished", tr.ID))

	_, err = os.Stat(tempPath(dest, tr.ID))
	assert.True(t, os.IsNotExist(err), "temp file removed after rename")
}

func TestDownloadChunked(t *testing.T) {
	db := newWorkerTestStore(t)
	client := newFakeObjectStore()
	data := remoteObject(9 * mib)
	client.objects["docs/big.bin"] = data

	dest := filepath.Join(t.TempDir(), "big.bin")
	tr := createDownload(t, db, dest, "docs/big.bin")
	runDownload(db, client, &recordingEvents{}, tr.ID, nil)

	assert.Equal(t, []string{
		"bytes=0-8388607",
		"bytes=8388608-9437183",
	}, client.getRanges, "chunks requested strictly in ascending order")

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	loaded, _ := db.GetTransfer(tr.ID)
	assert.Equal(t, store.StatusCompleted, loaded.Status)
	assert.EqualValues(t, 9*mib, loaded.TransferredBytes)
}

func TestDownloadResumeFromTempFile(t *testing.T) {
	db := newWorkerTestStore(t)
	client := newFakeObjectStore()
	data := remoteObject(9 * mib)
	client.objects["docs/big.bin"] = data

	dir := t.TempDir()
	dest := filepath.Join(dir, "big.bin")
	tr := createDownload(t, db, dest, "docs/big.bin")

	// A previous run fetched the first chunk before being paused; the temp
	// file's size is the resume offset.
	require.NoError(t, os.WriteFile(tempPath(dest, tr.ID), data[:8*mib], 0644))

	runDownload(db, client, &recordingEvents{}, tr.ID, nil)

	assert.Equal(t, []string{"bytes=8388608-9437183"}, client.getRanges,
		"only the missing tail is fetched")

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestDownloadCancelBeforeFirstChunk(t *testing.T) {
	db := newWorkerTestStore(t)
	client := newFakeObjectStore()
	client.objects["docs/big.bin"] = remoteObject(9 * mib)
	events := &recordingEvents{}

	dir := t.TempDir()
	dest := filepath.Join(dir, "big.bin")
	tr := createDownload(t, db, dest, "docs/big.bin")

	signals := newSignals()
	signals.Cancel()
	runDownload(db, client, events, tr.ID, signals)

	loaded, _ := db.GetTransfer(tr.ID)
	assert.Equal(t, store.StatusCancelled, loaded.Status)
	assert.Empty(t, client.getRanges)

	_, err := os.Stat(dest)
	assert.True(t, os.IsNotExist(err), "final file absent")
	_, err = os.Stat(tempPath(dest, tr.ID))
	assert.True(t, os.IsNotExist(err), "temp file absent")
	assert.Equal(t, 0, events.count("finished", tr.ID))
	assert.Equal(t, 0, events.count("failed", tr.ID))
}

func TestDownloadPausePreservesTempFile(t *testing.T) {
	db := newWorkerTestStore(t)
	client := newFakeObjectStore()
	client.objects["docs/big.bin"] = remoteObject(9 * mib)

	dir := t.TempDir()
	dest := filepath.Join(dir, "big.bin")
	tr := createDownload(t, db, dest, "docs/big.bin")

	// Simulate a pause hitting after the first chunk was written.
	tmp := tempPath(dest, tr.ID)
	require.NoError(t, os.WriteFile(tmp, remoteObject(8*mib), 0644))
	signals := newSignals()
	signals.Pause()
	runDownload(db, client, &recordingEvents{}, tr.ID, signals)

	loaded, _ := db.GetTransfer(tr.ID)
	assert.Equal(t, store.StatusPaused, loaded.Status)
	assert.EqualValues(t, 8*mib, loaded.TransferredBytes)

	info, err := os.Stat(tmp)
	require.NoError(t, err, "temp file preserved for future resume")
	assert.EqualValues(t, 8*mib, info.Size())
}

func TestDownloadSizeMismatch(t *testing.T) {
	db := newWorkerTestStore(t)
	client := newFakeObjectStore()
	client.objects["docs/cut.bin"] = remoteObject(100)
	client.truncateGetAt = 40
	events := &recordingEvents{}

	dest := filepath.Join(t.TempDir(), "cut.bin")
	tr := createDownload(t, db, dest, "docs/cut.bin")
	runDownload(db, client, events, tr.ID, nil)

	loaded, _ := db.GetTransfer(tr.ID)
	assert.Equal(t, store.StatusFailed, loaded.Status)
	assert.Equal(t, "Size mismatch: expected 100, got 40", loaded.ErrorMessage)

	_, err := os.Stat(dest)
	assert.True(t, os.IsNotExist(err), "truncated data never promoted")
}

func TestDownloadDestinationMissing(t *testing.T) {
	db := newWorkerTestStore(t)
	client := newFakeObjectStore()
	client.objects["docs/a.bin"] = remoteObject(10)
	events := &recordingEvents{}

	dest := filepath.Join(t.TempDir(), "nope", "a.bin")
	tr := createDownload(t, db, dest, "docs/a.bin")
	runDownload(db, client, events, tr.ID, nil)

	loaded, _ := db.GetTransfer(tr.ID)
	assert.Equal(t, store.StatusFailed, loaded.Status)
	assert.Equal(t, "Destination directory does not exist.", loaded.ErrorMessage)
	assert.Equal(t, 1, events.count("failed", tr.ID))
}

func TestDownloadRemoteMissing(t *testing.T) {
	db := newWorkerTestStore(t)
	client := newFakeObjectStore()
	events := &recordingEvents{}

	dest := filepath.Join(t.TempDir(), "a.bin")
	tr := createDownload(t, db, dest, "docs/gone.bin")
	runDownload(db, client, events, tr.ID, nil)

	loaded, _ := db.GetTransfer(tr.ID)
	assert.Equal(t, store.StatusFailed, loaded.Status)
	assert.NotEmpty(t, loaded.ErrorMessage)
}
