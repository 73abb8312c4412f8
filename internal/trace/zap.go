package trace

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapTracer forwards trace events to a zap logger. Point events (renames,
// downgrades) are logged at info level, spans and heartbeats at debug.
type ZapTracer struct {
	logger *zap.Logger
	level  Level
}

// NewZapTracer wraps logger. A nil logger yields the Nop tracer.
func NewZapTracer(logger *zap.Logger, level Level) Tracer {
	if logger == nil || level == LevelOff {
		return Nop
	}
	return &ZapTracer{logger: logger, level: level}
}

// Emit logs ev when its scope passes the level filter.
func (t *ZapTracer) Emit(ev *Event) {
	if !t.level.ShouldEmit(ev.Scope) && ev.Kind != KindHeartbeat {
		return
	}
	fields := make([]zap.Field, 0, 7+len(ev.Extra))
	fields = append(fields,
		zap.String("kind", ev.Kind.String()),
		zap.String("scope", ev.Scope.String()),
	)
	if ev.SpanID != 0 {
		fields = append(fields, zap.Uint64("span", ev.SpanID))
	}
	if ev.ParentID != 0 {
		fields = append(fields, zap.Uint64("parent", ev.ParentID))
	}
	if ev.Detail != "" {
		fields = append(fields, zap.String("detail", ev.Detail))
	}
	if ev.Kind == KindSpanEnd {
		fields = append(fields, zap.Duration("elapsed", ev.Elapsed))
	}
	for k, v := range ev.Extra {
		fields = append(fields, zap.String(k, v))
	}

	lvl := zapcore.DebugLevel
	if ev.Kind == KindPoint {
		lvl = zapcore.InfoLevel
	}
	if ce := t.logger.Check(lvl, ev.Name); ce != nil {
		ce.Write(fields...)
	}
}

// Flush syncs the logger. Sync errors on terminals are common and ignored.
func (t *ZapTracer) Flush() error {
	_ = t.logger.Sync()
	return nil
}

// Close flushes the logger.
func (t *ZapTracer) Close() error {
	return t.Flush()
}

// Level returns the current tracing level.
func (t *ZapTracer) Level() Level { return t.level }

// Enabled returns true if tracing is active.
func (t *ZapTracer) Enabled() bool { return t.level > LevelOff }

// NewJSONLogger builds the production JSON logger used by --log-json.
func NewJSONLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}
