package scp

import (
	"sync"
	"time"
)

// ProgressFunc is invoked synchronously during the streaming loop after every
// accepted frame, with the cumulative payload byte count and the declared
// total. Values are monotonically non-decreasing; the final call reports the
// full transfer size.
type ProgressFunc func(transferred, total int64)

// Meter turns raw progress updates into rate-annotated callbacks for display
// purposes. It is a convenience for CLI consumers; the engine itself only
// deals in ProgressFunc.
type Meter struct {
	mu sync.Mutex

	name        string
	total       int64
	transferred int64
	startTime   time.Time
	lastUpdate  time.Time
	lastBytes   int64

	callback func(name string, transferred, total int64, rate float64)
}

// NewMeter creates a meter for one named transfer.
func NewMeter(name string, total int64, callback func(string, int64, int64, float64)) *Meter {
	now := time.Now()
	return &Meter{
		name:       name,
		total:      total,
		startTime:  now,
		lastUpdate: now,
		callback:   callback,
	}
}

// Func returns a ProgressFunc feeding this meter. A non-zero total reported
// by the engine replaces the total the meter was created with.
func (m *Meter) Func() ProgressFunc {
	return func(transferred, total int64) {
		m.mu.Lock()
		if total > 0 {
			m.total = total
		}
		m.mu.Unlock()
		m.Update(transferred)
	}
}

// Update records the cumulative transferred byte count and invokes the
// callback with the instantaneous rate.
func (m *Meter) Update(transferred int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if transferred < m.transferred {
		return // Progress never moves backwards
	}
	m.transferred = transferred

	now := time.Now()
	elapsed := now.Sub(m.lastUpdate).Seconds()
	var rate float64
	if elapsed > 0 {
		rate = float64(transferred-m.lastBytes) / elapsed
	}

	if m.callback != nil {
		m.callback(m.name, transferred, m.total, rate)
	}

	m.lastUpdate = now
	m.lastBytes = transferred
}

// Stats returns the transferred byte count, the total, and the average rate
// since the meter was created.
func (m *Meter) Stats() (transferred, total int64, rate float64, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	transferred = m.transferred
	total = m.total
	duration = time.Since(m.startTime)

	if duration.Seconds() > 0 {
		rate = float64(transferred) / duration.Seconds()
	}

	return
}
