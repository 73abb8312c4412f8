package trace

import (
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
)

// Tracer receives trace events. Implementations must be goroutine-safe.
type Tracer interface {
	Emit(ev *Event)
	Flush() error
	Close() error
	Level() Level
	Enabled() bool
}

// StorageMode selects the sink built by New.
type StorageMode uint8

const (
	ModeStream StorageMode = iota + 1 // write as events arrive
	ModeRing                          // keep the last N, write them on Close
	ModeBoth
)

var modeNames = [...]string{"unknown", "stream", "ring", "both"}

func (m StorageMode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return modeNames[0]
}

// ParseMode converts a flag value to a StorageMode.
func ParseMode(s string) (StorageMode, error) {
	for i, name := range modeNames[1:] {
		if strings.EqualFold(s, name) {
			return StorageMode(i + 1), nil
		}
	}
	return ModeStream, errors.WithHint(errors.Newf("invalid trace mode %q", s),
		"expected one of stream|ring|both")
}

// Config describes the tracer built by New.
type Config struct {
	Level      Level
	Mode       StorageMode
	Format     Format    // FormatAuto picks NDJSON for .json/.ndjson paths
	Output     io.Writer // takes precedence over OutputPath
	OutputPath string    // "" or "-" means stderr
	RingSize   int
}

// New builds the sink described by cfg. LevelOff yields Nop.
func New(cfg Config) (Tracer, error) {
	if cfg.Level == LevelOff {
		return Nop, nil
	}
	format := cfg.Format
	if format == FormatAuto {
		format = FormatText
		if strings.HasSuffix(cfg.OutputPath, ".ndjson") || strings.HasSuffix(cfg.OutputPath, ".json") {
			format = FormatNDJSON
		}
	}
	w, closer, err := openOutput(cfg)
	if err != nil {
		return nil, err
	}

	switch cfg.Mode {
	case ModeStream, 0:
		s := NewStreamTracer(w, cfg.Level, format)
		s.closer = closer
		return s, nil
	case ModeRing:
		r := NewRingTracer(cfg.RingSize, cfg.Level).DumpOnClose(w, format)
		r.closer = closer
		return r, nil
	case ModeBoth:
		// ring без вывода: снимок доступен через Snapshot
		s := NewStreamTracer(w, cfg.Level, format)
		s.closer = closer
		return NewMultiTracer(cfg.Level, s, NewRingTracer(cfg.RingSize, cfg.Level)), nil
	default:
		if closer != nil {
			_ = closer.Close()
		}
		return nil, errors.Newf("unknown storage mode %v", cfg.Mode)
	}
}

func openOutput(cfg Config) (io.Writer, io.Closer, error) {
	if cfg.Output != nil {
		return cfg.Output, nil, nil
	}
	if cfg.OutputPath == "" || cfg.OutputPath == "-" {
		return os.Stderr, nil, nil
	}
	f, err := os.Create(cfg.OutputPath)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open trace output")
	}
	return f, f, nil
}
