package progress

import (
	"sync"
	"time"
)

// Stats is a point-in-time snapshot of a meter.
type Stats struct {
	BytesDone  int64
	Total      int64
	RateBps    float64
	ETASeconds int64
	Percent    float64
}

// Meter tracks byte progress and computes an exponentially smoothed rate.
// Rate is cumulative bytes over wall-clock time since the last sample,
// smoothed so a single slow chunk does not whipsaw the ETA.
type Meter struct {
	mu       sync.Mutex
	total    int64
	done     int64
	lastAt   time.Time
	lastDone int64
	rateBps  float64
	alpha    float64
	now      func() time.Time
}

// NewMeter returns a meter with a default smoothing factor.
func NewMeter() *Meter {
	return NewMeterWithNow(time.Now)
}

// NewMeterWithNow returns a meter with a custom time source (for tests).
func NewMeterWithNow(now func() time.Time) *Meter {
	if now == nil {
		now = time.Now
	}
	return &Meter{alpha: 0.2, now: now}
}

// Start resets the meter with a total byte count.
func (m *Meter) Start(totalBytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total = totalBytes
	m.done = 0
	m.lastAt = m.now()
	m.lastDone = 0
	m.rateBps = 0
}

// Add records n transferred bytes and updates the smoothed rate.
func (m *Meter) Add(n int64) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.done += n
	deltaBytes := m.done - m.lastDone
	deltaTime := now.Sub(m.lastAt).Seconds()
	if deltaTime > 0 {
		inst := float64(deltaBytes) / deltaTime
		if m.rateBps == 0 {
			m.rateBps = inst
		} else {
			m.rateBps = m.alpha*inst + (1-m.alpha)*m.rateBps
		}
		m.lastAt = now
		m.lastDone = m.done
	}
}

// AddTotal grows the total byte count, e.g. when a stage's plan is appended
// after the meter has started.
func (m *Meter) AddTotal(n int64) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total += n
}

// Snapshot returns the current stats. ETA is whole seconds, 0 when the rate
// is unknown or nothing remains.
func (m *Meter) Snapshot() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := Stats{
		BytesDone: m.done,
		Total:     m.total,
		RateBps:   m.rateBps,
	}
	if m.total > 0 {
		stats.Percent = float64(m.done) / float64(m.total) * 100
	}
	if m.rateBps > 0 && m.total > m.done {
		stats.ETASeconds = int64(float64(m.total-m.done) / m.rateBps)
	}
	return stats
}
