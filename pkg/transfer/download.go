package transfer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/s3desk/s3desk/pkg/logging"
	"github.com/s3desk/s3desk/pkg/objectstore"
	"github.com/s3desk/s3desk/pkg/transfer/store"
)

// downloadWorker executes exactly one download. Large objects are fetched
// in sequential byte ranges appended to a sibling temp file, so the temp
// file's size is always the exact resume offset.
type downloadWorker struct {
	id      uint
	db      *store.Store
	client  ObjectStore
	events  Events
	signals *Signals
	logger  logging.Interface
	speed   *speedMeter
}

func newDownloadWorker(id uint, db *store.Store, client ObjectStore, events Events, signals *Signals, logger logging.Interface) *downloadWorker {
	return &downloadWorker{
		id:      id,
		db:      db,
		client:  client,
		events:  events,
		signals: signals,
		logger:  logger.WithField("transfer_id", id),
		speed:   newSpeedMeter(),
	}
}

func tempPath(localPath string, id uint) string {
	return filepath.Join(filepath.Dir(localPath), fmt.Sprintf(".s3desk-download-%d.tmp", id))
}

// Run never panics and never returns an error: every outcome is a status
// write plus events.
func (w *downloadWorker) Run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.fail("Internal error during download.", fmt.Sprintf("panic: %v\n%s", r, debug.Stack()))
		}
	}()

	t, err := w.db.GetTransfer(w.id)
	if err != nil {
		w.logger.WithError(err).Error("Download aborted, transfer record not found")
		w.events.Failed(w.id, "Transfer record not found", err.Error())
		return
	}

	dir := filepath.Dir(t.LocalPath)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		w.fail("Destination directory does not exist.", fmt.Sprintf("stat %s: not a directory", dir))
		return
	}

	remote, err := w.client.Head(ctx, t.RemoteKey)
	if err != nil {
		w.fail(objectstore.UserMessage(err), objectstore.Detail(err))
		return
	}
	total := remote.Size

	if err := w.db.SetTotalBytes(w.id, total); err != nil {
		w.fail("Could not update transfer record.", err.Error())
		return
	}
	w.setStatus(store.StatusInProgress)

	if total < MultipartThreshold {
		w.runSingle(ctx, t, total)
		return
	}
	w.runChunked(ctx, t, total)
}

func (w *downloadWorker) runSingle(ctx context.Context, t *store.Transfer, total int64) {
	tmp := tempPath(t.LocalPath, w.id)

	if w.signals.Cancelled() {
		w.cancelled(tmp)
		return
	}

	var data []byte
	err := withRetry(w.logger, w.signals.interrupted, "get object", func() error {
		body, getErr := w.client.Get(ctx, t.RemoteKey, "")
		if getErr != nil {
			return getErr
		}
		defer body.Close()
		data, getErr = io.ReadAll(body)
		return getErr
	})
	if err != nil {
		if w.handleInterrupt(tmp, 0) {
			return
		}
		w.fail(objectstore.UserMessage(err), objectstore.Detail(err))
		return
	}

	if err := os.WriteFile(tmp, data, 0644); err != nil {
		w.fail("Could not write destination file.", err.Error())
		return
	}
	w.promote(tmp, t.LocalPath, int64(len(data)), total)
}

func (w *downloadWorker) runChunked(ctx context.Context, t *store.Transfer, total int64) {
	tmp := tempPath(t.LocalPath, w.id)

	// The temp file's current size is the resume offset: ranged fetches
	// are strictly sequential and append-only, so no separate checkpoint
	// is needed.
	var offset int64
	if info, err := os.Stat(tmp); err == nil {
		offset = info.Size()
	}

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		w.fail("Could not write destination file.", err.Error())
		return
	}
	defer f.Close()

	for offset < total {
		if w.handleInterrupt(tmp, offset) {
			return
		}

		end := offset + DownloadChunkSize - 1
		if end > total-1 {
			end = total - 1
		}
		byteRange := fmt.Sprintf("bytes=%d-%d", offset, end)

		var chunk []byte
		err := withRetry(w.logger, w.signals.interrupted, "get range "+byteRange, func() error {
			body, getErr := w.client.Get(ctx, t.RemoteKey, byteRange)
			if getErr != nil {
				return getErr
			}
			defer body.Close()
			chunk, getErr = io.ReadAll(body)
			return getErr
		})
		if err != nil {
			if w.handleInterrupt(tmp, offset) {
				return
			}
			w.fail(objectstore.UserMessage(err), objectstore.Detail(err))
			return
		}

		if len(chunk) == 0 {
			w.fail(fmt.Sprintf("Size mismatch: expected %d, got %d", total, offset),
				fmt.Sprintf("empty response for range %s", byteRange))
			return
		}
		if _, err := f.Write(chunk); err != nil {
			w.fail("Could not write destination file.", err.Error())
			return
		}

		offset += int64(len(chunk))
		if err := w.db.SetTransferredBytes(w.id, offset); err != nil {
			w.fail("Could not update transfer record.", err.Error())
			return
		}
		w.events.Progress(w.id, offset, total)
		if bps, ok := w.speed.Add(int64(len(chunk))); ok {
			w.events.Speed(w.id, bps)
		}
	}

	if err := f.Close(); err != nil {
		w.fail("Could not write destination file.", err.Error())
		return
	}
	w.promote(tmp, t.LocalPath, offset, total)
}

// promote verifies the temp file covers the full object and atomically
// renames it into place. A size mismatch is a hard failure, never retried;
// the temp data cannot be trusted.
func (w *downloadWorker) promote(tmp, localPath string, written, total int64) {
	info, err := os.Stat(tmp)
	if err != nil {
		w.fail("Could not verify downloaded file.", err.Error())
		return
	}
	if info.Size() != total || written != total {
		w.fail(fmt.Sprintf("Size mismatch: expected %d, got %d", total, info.Size()),
			fmt.Sprintf("temp file %s has %d bytes, wrote %d, object reports %d", tmp, info.Size(), written, total))
		return
	}

	if err := os.Rename(tmp, localPath); err != nil {
		w.fail("Could not move downloaded file into place.", err.Error())
		return
	}

	if err := w.db.SetTransferredBytes(w.id, total); err != nil {
		w.fail("Could not update transfer record.", err.Error())
		return
	}
	if err := w.db.MarkCompleted(w.id); err != nil {
		w.fail("Could not update transfer record.", err.Error())
		return
	}
	w.events.Progress(w.id, total, total)
	w.events.StatusChanged(w.id, store.StatusCompleted)
	w.events.Finished(w.id)
}

// handleInterrupt checks cancel then pause. Cancel deletes the temp file;
// pause preserves it so the next run resumes from its size.
func (w *downloadWorker) handleInterrupt(tmp string, offset int64) bool {
	if w.signals.Cancelled() {
		w.cancelled(tmp)
		return true
	}
	if w.signals.Paused() {
		if err := w.db.SetTransferredBytes(w.id, offset); err != nil {
			w.logger.WithError(err).Warn("Could not persist progress on pause")
		}
		w.setStatus(store.StatusPaused)
		return true
	}
	return false
}

func (w *downloadWorker) cancelled(tmp string) {
	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		w.logger.WithError(err).Warn("Could not remove temp file on cancel")
	}
	w.setStatus(store.StatusCancelled)
}

func (w *downloadWorker) setStatus(status store.Status) {
	if err := w.db.SetStatus(w.id, status); err != nil {
		w.logger.WithError(err).Errorf("Could not set status %s", status)
		return
	}
	w.events.StatusChanged(w.id, status)
}

func (w *downloadWorker) fail(userMessage, detail string) {
	w.logger.WithField("detail", detail).Errorf("Download failed: %s", userMessage)
	if err := w.db.MarkFailed(w.id, userMessage); err != nil {
		w.logger.WithError(err).Error("Could not mark transfer failed")
	}
	w.events.StatusChanged(w.id, store.StatusFailed)
	w.events.Failed(w.id, userMessage, detail)
}
