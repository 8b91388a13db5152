package transfer

import "github.com/s3desk/s3desk/pkg/transfer/store"

// Events receives notifications from workers and the engine. Implementations
// must be safe for concurrent calls from multiple worker goroutines; calls
// for one transfer arrive in order, and each transfer gets exactly one
// terminal notification (Finished or Failed) or a StatusChanged to paused
// or cancelled.
type Events interface {
	// Progress fires on every completed chunk or part.
	Progress(id uint, transferredBytes, totalBytes int64)
	// Speed fires at most every 500ms while a transfer moves data.
	Speed(id uint, bytesPerSecond float64)
	// StatusChanged fires on every status transition.
	StatusChanged(id uint, status store.Status)
	// Finished fires once when a transfer completes successfully.
	Finished(id uint)
	// Failed fires once with a short user-facing message and the raw
	// diagnostic detail.
	Failed(id uint, userMessage, detail string)
}

// NopEvents discards all notifications.
type NopEvents struct{}

func (NopEvents) Progress(id uint, transferredBytes, totalBytes int64) {}
func (NopEvents) Speed(id uint, bytesPerSecond float64)                {}
func (NopEvents) StatusChanged(id uint, status store.Status)           {}
func (NopEvents) Finished(id uint)                                     {}
func (NopEvents) Failed(id uint, userMessage, detail string)           {}
