// Package buildpipeline carries progress events and stage timings from the
// driver to whoever renders them.
package buildpipeline

import "time"

// Stage is one step of an export run.
type Stage string

const (
	StageLoad     Stage = "load"     // decode one klib
	StageLink     Stage = "link"     // module graph and symbol table
	StageClassify Stage = "classify" // supported / unsupported / hidden
	StageNames    Stage = "names"    // Swift identifiers
	StageEmit     Stage = "emit"     // Swift text
)

var stageOrder = [...]Stage{StageLoad, StageLink, StageClassify, StageNames, StageEmit}

// Stages lists the stages in execution order.
var Stages = stageOrder[:]

// Index returns the position of s in Stages, or -1.
func (s Stage) Index() int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// Status is the progress state of a module within a stage.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusWorking Status = "working"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Event reports progress for one input; Module is the input path as given on
// the command line or in the config.
type Event struct {
	Module  string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events. Implementations must be
// goroutine-safe: load events arrive from parallel workers.
type ProgressSink interface {
	OnEvent(Event)
}

// Timings holds per-stage wall time. The zero value is empty.
type Timings struct {
	d   [len(stageOrder)]time.Duration
	set uint8
}

// Set records dur for stage; unknown stages are ignored.
func (t *Timings) Set(stage Stage, dur time.Duration) {
	i := stage.Index()
	if t == nil || i < 0 {
		return
	}
	t.d[i] = dur
	t.set |= 1 << i
}

func (t Timings) Has(stage Stage) bool {
	i := stage.Index()
	return i >= 0 && t.set&(1<<i) != 0
}

func (t Timings) Duration(stage Stage) time.Duration {
	if i := stage.Index(); i >= 0 {
		return t.d[i]
	}
	return 0
}

// Sum adds the durations of stages.
func (t Timings) Sum(stages ...Stage) time.Duration {
	var total time.Duration
	for _, s := range stages {
		total += t.Duration(s)
	}
	return total
}
