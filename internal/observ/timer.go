// Package observ measures pipeline phases for the OB6001 timing report.
package observ

import (
	"sync"
	"time"
)

type phase struct {
	name    string
	started time.Time
	elapsed time.Duration
	note    string
	done    bool
}

// Timer records named pipeline phases in start order. Safe for concurrent use.
type Timer struct {
	mu     sync.Mutex
	phases []phase
	now    func() time.Time
}

func NewTimer() *Timer { return &Timer{now: time.Now} }

// Begin opens a phase and returns its handle for End.
func (t *Timer) Begin(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phases = append(t.phases, phase{name: name, started: t.now()})
	return len(t.phases) - 1
}

// End closes the phase; unknown or already closed handles are ignored.
func (t *Timer) End(idx int, note string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx < 0 || idx >= len(t.phases) || t.phases[idx].done {
		return
	}
	p := &t.phases[idx]
	p.elapsed = t.now().Sub(p.started)
	p.note = note
	p.done = true
}

// PhaseReport is one phase of a Report.
type PhaseReport struct {
	Name       string  `json:"name"`
	DurationMS float64 `json:"duration_ms"`
	// Share of the total, 0..1.
	Share float64 `json:"share"`
	Note  string  `json:"note,omitempty"`
}

// Report is the serialisable view of a Timer.
type Report struct {
	TotalMS float64       `json:"total_ms"`
	Slowest string        `json:"slowest,omitempty"`
	Phases  []PhaseReport `json:"phases"`
}

// Report snapshots closed phases. Open phases are reported with zero duration.
func (t *Timer) Report() Report {
	t.mu.Lock()
	defer t.mu.Unlock()
	var r Report
	if len(t.phases) == 0 {
		return r
	}
	var total, slowest time.Duration
	for _, p := range t.phases {
		total += p.elapsed
		if p.elapsed > slowest {
			slowest, r.Slowest = p.elapsed, p.name
		}
	}
	r.TotalMS = millis(total)
	r.Phases = make([]PhaseReport, len(t.phases))
	for i, p := range t.phases {
		r.Phases[i] = PhaseReport{Name: p.name, DurationMS: millis(p.elapsed), Note: p.note}
		if total > 0 {
			r.Phases[i].Share = float64(p.elapsed) / float64(total)
		}
	}
	return r
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
