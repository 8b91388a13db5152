package transfer

import "sync/atomic"

// Signals carries a transfer's cooperative pause/cancel flags. The engine
// writes them from the controlling goroutine; the worker reads them at
// chunk and part boundaries. A worker mid-network-call will not observe a
// flag until that call returns.
type Signals struct {
	pause  atomic.Bool
	cancel atomic.Bool
}

func newSignals() *Signals {
	return &Signals{}
}

func (s *Signals) Pause()  { s.pause.Store(true) }
func (s *Signals) Cancel() { s.cancel.Store(true) }

func (s *Signals) Paused() bool    { return s.pause.Load() }
func (s *Signals) Cancelled() bool { return s.cancel.Load() }

func (s *Signals) interrupted() bool {
	return s.pause.Load() || s.cancel.Load()
}
