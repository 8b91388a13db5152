package transfer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/s3desk/s3desk/pkg/logging"
	"github.com/s3desk/s3desk/pkg/transfer/store"
)

// Engine schedules transfers for one bucket over a bounded worker pool.
// At most maxConcurrent transfers run at once; the rest wait in FIFO order
// by creation time. Pause and cancel are cooperative: the engine sets a
// flag and the worker honors it at its next chunk or part boundary.
type Engine struct {
	bucket string
	db     *store.Store
	client ObjectStore
	events Events
	logger logging.Interface

	slots chan struct{}
	wg    sync.WaitGroup

	mu          sync.Mutex
	active      map[uint]*Signals
	globalPause bool

	now func() time.Time
}

// NewEngine creates an engine scoped to the client's bucket.
func NewEngine(config *Config, db *store.Store, client ObjectStore, bucket string, events Events, logger logging.Interface) *Engine {
	if events == nil {
		events = NopEvents{}
	}
	return &Engine{
		bucket: bucket,
		db:     db,
		client: client,
		events: events,
		logger: logger.WithField("bucket", bucket),
		slots:  make(chan struct{}, config.MaxConcurrent),
		active: make(map[uint]*Signals),
		now:    time.Now,
	}
}

// Enqueue dispatches a transfer to the pool with fresh pause/cancel
// signals. A missing record is a warning, not an error.
func (e *Engine) Enqueue(id uint) {
	t, err := e.db.GetTransfer(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			e.logger.Warnf("Enqueue skipped, transfer %d not found", id)
			return
		}
		e.logger.WithError(err).Errorf("Enqueue failed for transfer %d", id)
		return
	}

	e.mu.Lock()
	if _, running := e.active[id]; running {
		e.mu.Unlock()
		e.logger.Warnf("Enqueue skipped, transfer %d already active", id)
		return
	}
	signals := newSignals()
	e.active[id] = signals
	e.mu.Unlock()

	if err := e.db.SetStatus(id, store.StatusInProgress); err != nil {
		e.logger.WithError(err).Errorf("Could not mark transfer %d in progress", id)
	} else {
		e.events.StatusChanged(id, store.StatusInProgress)
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.slots <- struct{}{}
		defer func() { <-e.slots }()

		e.runWorker(t, signals)
		e.workerDone(id)
	}()
}

func (e *Engine) runWorker(t *store.Transfer, signals *Signals) {
	ctx := context.Background()
	switch t.Direction {
	case store.DirectionDownload:
		newDownloadWorker(t.ID, e.db, e.client, e.events, signals, e.logger).Run(ctx)
	default:
		newUploadWorker(t.ID, e.db, e.client, e.events, signals, e.logger).Run(ctx)
	}
}

// workerDone discards the finished transfer's signals and admits the next
// queued transfer if a slot is free and the engine is not globally paused.
func (e *Engine) workerDone(id uint) {
	e.mu.Lock()
	delete(e.active, id)
	paused := e.globalPause
	activeIDs := e.activeIDsLocked()
	e.mu.Unlock()

	if paused {
		return
	}

	next, err := e.db.NextQueued(e.bucket, activeIDs)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			e.logger.WithError(err).Error("Could not query transfer queue")
		}
		return
	}
	e.Enqueue(next.ID)
}

func (e *Engine) activeIDsLocked() []uint {
	ids := make([]uint, 0, len(e.active))
	for id := range e.active {
		ids = append(ids, id)
	}
	return ids
}

// Pause asks a running transfer to suspend at its next safe point. The
// paused status is emitted right away; the worker repeats it once it has
// actually persisted the stop.
func (e *Engine) Pause(id uint) {
	e.mu.Lock()
	signals, ok := e.active[id]
	e.mu.Unlock()
	if !ok {
		e.logger.Warnf("Pause skipped, transfer %d not active", id)
		return
	}
	signals.Pause()
	e.events.StatusChanged(id, store.StatusPaused)
}

// Cancel asks a running transfer to stop and clean up at its next safe
// point. Like Pause, the status event fires at call time and the worker's
// cooperative emission follows.
func (e *Engine) Cancel(id uint) {
	e.mu.Lock()
	signals, ok := e.active[id]
	e.mu.Unlock()
	if !ok {
		e.logger.Warnf("Cancel skipped, transfer %d not active", id)
		return
	}
	signals.Cancel()
	e.events.StatusChanged(id, store.StatusCancelled)
}

// Resume puts a paused transfer back in the queue and dispatches a brand
// new worker for it; only durable state carries over.
func (e *Engine) Resume(id uint) {
	if err := e.db.SetStatus(id, store.StatusQueued); err != nil {
		e.logger.WithError(err).Errorf("Could not resume transfer %d", id)
		return
	}
	e.events.StatusChanged(id, store.StatusQueued)
	e.Enqueue(id)
}

// Retry re-queues a failed transfer with a clean retry count and error.
func (e *Engine) Retry(id uint) {
	if err := e.db.ResetForRetry(id); err != nil {
		e.logger.WithError(err).Errorf("Could not retry transfer %d", id)
		return
	}
	e.events.StatusChanged(id, store.StatusQueued)
	e.Enqueue(id)
}

// PauseAll suspends every active transfer and stops admitting queued ones.
func (e *Engine) PauseAll() {
	e.mu.Lock()
	e.globalPause = true
	signals := make([]*Signals, 0, len(e.active))
	for _, s := range e.active {
		signals = append(signals, s)
	}
	e.mu.Unlock()

	for _, s := range signals {
		s.Pause()
	}
}

// ResumeAll lifts the global pause and re-enqueues every transfer persisted
// as paused for this bucket.
func (e *Engine) ResumeAll() {
	e.mu.Lock()
	e.globalPause = false
	e.mu.Unlock()

	paused, err := e.db.PausedTransfers(e.bucket)
	if err != nil {
		e.logger.WithError(err).Error("Could not list paused transfers")
		return
	}
	for _, t := range paused {
		e.Resume(t.ID)
	}
}

// RestorePending recovers after a crash or restart: transfers whose local
// prerequisites vanished are failed permanently, a prior run's in_progress
// state is reset to queued, and everything else is re-enqueued. Parts
// already durable on the backend are reused through the list-parts
// reconciliation in the upload worker.
func (e *Engine) RestorePending() {
	pending, err := e.db.ListByStatuses(store.StatusQueued, store.StatusInProgress, store.StatusPaused)
	if err != nil {
		e.logger.WithError(err).Error("Could not list pending transfers")
		return
	}

	for _, t := range pending {
		if t.Bucket != e.bucket {
			continue
		}

		switch t.Direction {
		case store.DirectionUpload:
			if _, err := os.Stat(t.LocalPath); err != nil {
				e.markRestoredFailed(t.ID, "Source file no longer exists.")
				continue
			}
		case store.DirectionDownload:
			dir := filepath.Dir(t.LocalPath)
			if info, err := os.Stat(dir); err != nil || !info.IsDir() {
				e.markRestoredFailed(t.ID, "Destination directory does not exist.")
				continue
			}
		}

		if t.Status == store.StatusInProgress {
			if err := e.db.SetStatus(t.ID, store.StatusQueued); err != nil {
				e.logger.WithError(err).Errorf("Could not reset transfer %d", t.ID)
				continue
			}
			e.events.StatusChanged(t.ID, store.StatusQueued)
		}
		e.Enqueue(t.ID)
	}
}

func (e *Engine) markRestoredFailed(id uint, message string) {
	if err := e.db.MarkFailed(id, message); err != nil {
		e.logger.WithError(err).Errorf("Could not mark transfer %d failed", id)
		return
	}
	e.events.StatusChanged(id, store.StatusFailed)
	e.events.Failed(id, message, message)
}

// CleanupOrphanedUploads aborts multipart uploads on the backend that no
// local transfer knows about and that are older than the grace period.
// Younger unknown uploads may belong to another process and are left
// alone. Listing failures are swallowed; the answer is then zero.
func (e *Engine) CleanupOrphanedUploads(ctx context.Context) int {
	uploads, err := e.client.ListMultipartUploads(ctx)
	if err != nil {
		e.logger.WithError(err).Warn("Could not list multipart uploads, skipping cleanup")
		return 0
	}

	known, err := e.db.KnownUploadIDs(e.bucket)
	if err != nil {
		e.logger.WithError(err).Warn("Could not read known upload ids, skipping cleanup")
		return 0
	}

	cutoff := e.now().Add(-OrphanGracePeriod)
	aborted := 0
	for _, u := range uploads {
		if _, ours := known[u.UploadID]; ours {
			continue
		}
		if u.Initiated.After(cutoff) {
			continue
		}
		if err := e.client.AbortMultipartUpload(ctx, u.Key, u.UploadID); err != nil {
			e.logger.WithError(err).Warnf("Could not abort orphaned upload %s", u.UploadID)
			continue
		}
		e.logger.Infof("Aborted orphaned multipart upload %s for key %q", u.UploadID, u.Key)
		aborted++
	}
	return aborted
}

// ActiveCount returns how many transfers currently hold a worker.
func (e *Engine) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}

// Wait blocks until every dispatched worker has returned.
func (e *Engine) Wait() {
	e.wg.Wait()
}
