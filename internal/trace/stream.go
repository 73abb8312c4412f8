package trace

import (
	"bufio"
	"io"
	"sync"
)

// StreamTracer writes each event as it arrives. Output is buffered; driver
// and pass events flush it so a tail of the file stays current.
type StreamTracer struct {
	mu     sync.Mutex
	w      *bufio.Writer
	level  Level
	format Format
	closer io.Closer // set when the tracer owns the file
}

func NewStreamTracer(w io.Writer, level Level, format Format) *StreamTracer {
	return &StreamTracer{w: bufio.NewWriter(w), level: level, format: format}
}

// Emit ignores write errors: a broken trace sink never fails the export.
func (t *StreamTracer) Emit(ev *Event) {
	if ev.Kind != KindHeartbeat && !t.level.ShouldEmit(ev.Scope) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	ev.Seq = NextSeq()
	_, _ = t.w.Write(FormatEvent(ev, t.format))
	if ev.Scope <= ScopePass {
		_ = t.w.Flush()
	}
}

func (t *StreamTracer) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.w.Flush()
}

func (t *StreamTracer) Close() error {
	err := t.Flush()
	if t.closer != nil {
		if cerr := t.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (t *StreamTracer) Level() Level  { return t.level }
func (t *StreamTracer) Enabled() bool { return t.level > LevelOff }
