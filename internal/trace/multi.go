package trace

// MultiTracer fans events out to several sinks.
type MultiTracer struct {
	tracers []Tracer
	level   Level
}

// NewMultiTracer drops disabled sinks.
func NewMultiTracer(level Level, tracers ...Tracer) *MultiTracer {
	m := &MultiTracer{level: level}
	for _, t := range tracers {
		if t != nil && t.Enabled() {
			m.tracers = append(m.tracers, t)
		}
	}
	return m
}

// Emit gives each sink its own copy since sinks stamp Seq.
func (t *MultiTracer) Emit(ev *Event) {
	for _, tr := range t.tracers {
		cp := *ev
		tr.Emit(&cp)
	}
}

// Flush and Close visit every sink and report the first failure.
func (t *MultiTracer) Flush() error { return t.each(Tracer.Flush) }
func (t *MultiTracer) Close() error { return t.each(Tracer.Close) }

func (t *MultiTracer) each(op func(Tracer) error) error {
	var first error
	for _, tr := range t.tracers {
		if err := op(tr); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (t *MultiTracer) Level() Level  { return t.level }
func (t *MultiTracer) Enabled() bool { return t.level > LevelOff && len(t.tracers) > 0 }
