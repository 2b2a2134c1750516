// Package progress measures the throughput of a single file transfer.
package progress

import "time"

// Stats is a point-in-time view of a transfer.
type Stats struct {
	Done    int64
	Total   int64
	Elapsed time.Duration
	RateBps float64 // Done over Elapsed
}

// Remaining returns how many announced bytes have not arrived yet.
func (s Stats) Remaining() int64 {
	if s.Done >= s.Total {
		return 0
	}
	return s.Total - s.Done
}

// Percent returns completion in 0..100. An empty transfer is complete.
func (s Stats) Percent() float64 {
	if s.Total <= 0 {
		return 100
	}
	return float64(s.Done) / float64(s.Total) * 100
}

// Meter counts the bytes of one transfer from the moment it is created.
// A meter belongs to the goroutine moving the bytes and is not safe for
// concurrent use.
type Meter struct {
	total   int64
	done    int64
	started time.Time
	now     func() time.Time
}

// NewMeter starts timing a transfer of total bytes.
func NewMeter(total int64) *Meter {
	return NewMeterWithClock(total, time.Now)
}

// NewMeterWithClock is NewMeter with an explicit time source.
func NewMeterWithClock(total int64, now func() time.Time) *Meter {
	if now == nil {
		now = time.Now
	}
	return &Meter{total: total, started: now(), now: now}
}

// Add records n transferred bytes. Non-positive counts are ignored.
func (m *Meter) Add(n int) {
	if n > 0 {
		m.done += int64(n)
	}
}

// Snapshot returns the bytes moved so far and the average rate.
func (m *Meter) Snapshot() Stats {
	s := Stats{
		Done:    m.done,
		Total:   m.total,
		Elapsed: m.now().Sub(m.started),
	}
	if secs := s.Elapsed.Seconds(); secs > 0 {
		s.RateBps = float64(m.done) / secs
	}
	return s
}
