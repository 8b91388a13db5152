package transfer

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/s3desk/s3desk/pkg/logging"
	"github.com/s3desk/s3desk/pkg/objectstore"
	"github.com/s3desk/s3desk/pkg/transfer/store"
)

// uploadWorker executes exactly one upload to completion, failure, pause
// or cancellation. It runs on its own goroutine and owns all writes to its
// transfer's row while active.
type uploadWorker struct {
	id      uint
	db      *store.Store
	client  ObjectStore
	events  Events
	signals *Signals
	logger  logging.Interface
	speed   *speedMeter
}

func newUploadWorker(id uint, db *store.Store, client ObjectStore, events Events, signals *Signals, logger logging.Interface) *uploadWorker {
	return &uploadWorker{
		id:      id,
		db:      db,
		client:  client,
		events:  events,
		signals: signals,
		logger:  logger.WithField("transfer_id", id),
		speed:   newSpeedMeter(),
	}
}

// Run never panics and never returns an error: every outcome is a status
// write plus events.
func (w *uploadWorker) Run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.fail("Internal error during upload.", fmt.Sprintf("panic: %v\n%s", r, debug.Stack()))
		}
	}()

	t, err := w.db.GetTransfer(w.id)
	if err != nil {
		w.logger.WithError(err).Error("Upload aborted, transfer record not found")
		w.events.Failed(w.id, "Transfer record not found", err.Error())
		return
	}

	info, err := os.Stat(t.LocalPath)
	if err != nil {
		w.fail("Source file no longer exists.", err.Error())
		return
	}
	total := info.Size()

	if err := w.db.SetTotalBytes(w.id, total); err != nil {
		w.fail("Could not update transfer record.", err.Error())
		return
	}
	w.setStatus(store.StatusInProgress)

	if total < MultipartThreshold {
		w.runSingle(ctx, t, total)
		return
	}
	w.runMultipart(ctx, t, total)
}

func (w *uploadWorker) runSingle(ctx context.Context, t *store.Transfer, total int64) {
	if w.signals.Cancelled() {
		w.setStatus(store.StatusCancelled)
		return
	}

	data, err := os.ReadFile(t.LocalPath)
	if err != nil {
		w.fail("Could not read source file.", err.Error())
		return
	}

	err = withRetry(w.logger, w.signals.interrupted, "put object", func() error {
		return w.client.Put(ctx, t.RemoteKey, data)
	})
	if err != nil {
		if w.handleInterrupt("", 0) {
			return
		}
		w.fail(objectstore.UserMessage(err), objectstore.Detail(err))
		return
	}

	w.finish(total)
}

func (w *uploadWorker) runMultipart(ctx context.Context, t *store.Transfer, total int64) {
	partSize := selectPartSize(total)

	f, err := os.Open(t.LocalPath)
	if err != nil {
		w.fail("Could not read source file.", err.Error())
		return
	}
	defer f.Close()

	uploadID := t.UploadID
	resuming := uploadID != ""
	if !resuming {
		uploadID, err = w.client.CreateMultipartUpload(ctx, t.RemoteKey)
		if err != nil {
			w.fail(objectstore.UserMessage(err), objectstore.Detail(err))
			return
		}
		if err := w.db.SetUploadID(w.id, uploadID); err != nil {
			w.fail("Could not update transfer record.", err.Error())
			return
		}
	}

	// Insert-or-ignore so a crash between upload creation and restart
	// cannot duplicate rows.
	if err := w.db.CreateParts(computeParts(w.id, total, partSize)); err != nil {
		w.fail("Could not record upload parts.", err.Error())
		return
	}

	if resuming {
		// The backend is the source of truth for which parts are durable;
		// reconcile before deciding what is still pending. A failed listing
		// is not fatal: falling back to local part state can only re-upload
		// parts the backend already holds, which S3 treats as an overwrite.
		remote, err := w.client.ListParts(ctx, t.RemoteKey, uploadID)
		if err != nil {
			w.logger.WithError(err).Warn("Could not list remote parts, resuming from local state")
		}
		for _, p := range remote {
			if err := w.db.MarkPartCompleted(w.id, p.PartNumber, p.ETag); err != nil {
				w.logger.WithError(err).Warnf("Could not reconcile part %d", p.PartNumber)
			}
		}
	}

	transferred, err := w.db.SumCompletedPartBytes(w.id)
	if err != nil {
		w.fail("Could not read upload parts.", err.Error())
		return
	}
	if err := w.db.SetTransferredBytes(w.id, transferred); err != nil {
		w.fail("Could not update transfer record.", err.Error())
		return
	}

	pending, err := w.db.PendingParts(w.id)
	if err != nil {
		w.fail("Could not read upload parts.", err.Error())
		return
	}

	for _, part := range pending {
		if w.handleInterrupt(t.RemoteKey, transferred) {
			return
		}

		buf := make([]byte, part.Length)
		if _, err := f.ReadAt(buf, part.Offset); err != nil {
			w.fail("Could not read source file.", err.Error())
			return
		}

		var etag string
		err = withRetry(w.logger, w.signals.interrupted, fmt.Sprintf("upload part %d", part.PartNumber), func() error {
			var uploadErr error
			etag, uploadErr = w.client.UploadPart(ctx, t.RemoteKey, uploadID, part.PartNumber, buf)
			return uploadErr
		})
		if err != nil {
			if w.handleInterrupt(t.RemoteKey, transferred) {
				return
			}
			w.fail(objectstore.UserMessage(err), objectstore.Detail(err))
			return
		}

		if err := w.db.MarkPartCompleted(w.id, part.PartNumber, etag); err != nil {
			w.fail("Could not record part completion.", err.Error())
			return
		}
		transferred += part.Length
		if err := w.db.SetTransferredBytes(w.id, transferred); err != nil {
			w.fail("Could not update transfer record.", err.Error())
			return
		}
		w.events.Progress(w.id, transferred, total)
		if bps, ok := w.speed.Add(part.Length); ok {
			w.events.Speed(w.id, bps)
		}
	}

	// Re-read every completed part so parts finished by a previous run are
	// included, not just this run's.
	completed, err := w.db.CompletedParts(w.id)
	if err != nil {
		w.fail("Could not read upload parts.", err.Error())
		return
	}
	parts := make([]objectstore.Part, 0, len(completed))
	for _, p := range completed {
		parts = append(parts, objectstore.Part{PartNumber: p.PartNumber, ETag: p.ETag, Size: p.Length})
	}

	err = withRetry(w.logger, w.signals.interrupted, "complete multipart upload", func() error {
		return w.client.CompleteMultipartUpload(ctx, t.RemoteKey, uploadID, parts)
	})
	if err != nil {
		if w.handleInterrupt(t.RemoteKey, transferred) {
			return
		}
		w.fail(objectstore.UserMessage(err), objectstore.Detail(err))
		return
	}

	w.finish(total)
}

// handleInterrupt checks the cancel flag then the pause flag and performs
// the corresponding exit: cancel aborts any open multipart upload
// best-effort, pause leaves it open for future resumption. Returns true
// when the worker must stop.
func (w *uploadWorker) handleInterrupt(remoteKey string, transferred int64) bool {
	if w.signals.Cancelled() {
		if remoteKey != "" {
			t, err := w.db.GetTransfer(w.id)
			if err == nil && t.UploadID != "" {
				if err := w.client.AbortMultipartUpload(context.Background(), remoteKey, t.UploadID); err != nil {
					w.logger.WithError(err).Warn("Could not abort multipart upload on cancel")
				}
			}
		}
		w.setStatus(store.StatusCancelled)
		return true
	}
	if w.signals.Paused() {
		if err := w.db.SetTransferredBytes(w.id, transferred); err != nil {
			w.logger.WithError(err).Warn("Could not persist progress on pause")
		}
		w.setStatus(store.StatusPaused)
		return true
	}
	return false
}

func (w *uploadWorker) finish(total int64) {
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

func (w *uploadWorker) setStatus(status store.Status) {
	if err := w.db.SetStatus(w.id, status); err != nil {
		w.logger.WithError(err).Errorf("Could not set status %s", status)
		return
	}
	w.events.StatusChanged(w.id, status)
}

func (w *uploadWorker) fail(userMessage, detail string) {
	w.logger.WithField("detail", detail).Errorf("Upload failed: %s", userMessage)
	if err := w.db.MarkFailed(w.id, userMessage); err != nil {
		w.logger.WithError(err).Error("Could not mark transfer failed")
	}
	w.events.StatusChanged(w.id, store.StatusFailed)
	w.events.Failed(w.id, userMessage, detail)
}

// computeParts lays out contiguous 1-based part rows covering total bytes.
func computeParts(transferID uint, total, partSize int64) []store.Part {
	var parts []store.Part
	number := 1
	for offset := int64(0); offset < total; offset += partSize {
		length := partSize
		if remaining := total - offset; remaining < length {
			length = remaining
		}
		parts = append(parts, store.Part{
			TransferID: transferID,
			PartNumber: number,
			Offset:     offset,
			Length:     length,
		})
		number++
	}
	return parts
}
