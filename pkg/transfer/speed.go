package transfer

import "time"

type speedSample struct {
	at    time.Time
	bytes int64
}

// speedMeter computes transfer speed over a 3 second sliding window and
// throttles emission to at most one reading per 500ms. Not safe for
// concurrent use; each worker owns one.
type speedMeter struct {
	samples  []speedSample
	lastEmit time.Time
	now      func() time.Time
}

func newSpeedMeter() *speedMeter {
	return &speedMeter{now: time.Now}
}

// Add records bytes moved and returns a speed reading plus true when one
// should be emitted now.
func (m *speedMeter) Add(bytes int64) (float64, bool) {
	now := m.now()
	m.samples = append(m.samples, speedSample{at: now, bytes: bytes})

	cutoff := now.Add(-speedWindow)
	keep := 0
	for ; keep < len(m.samples); keep++ {
		if !m.samples[keep].at.Before(cutoff) {
			break
		}
	}
	m.samples = m.samples[keep:]

	if now.Sub(m.lastEmit) < speedEmitInterval {
		return 0, false
	}

	elapsed := now.Sub(m.samples[0].at).Seconds()
	if elapsed <= 0 {
		return 0, false
	}

	var total int64
	for _, s := range m.samples {
		total += s.bytes
	}

	m.lastEmit = now
	return float64(total) / elapsed, true
}
