package main

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"klibexport/internal/trace"
)

type traceFlags struct {
	output    string
	level     string
	mode      string
	ringSize  int
	heartbeat time.Duration
	logJSON   bool
}

func readTraceFlags(cmd *cobra.Command) (traceFlags, error) {
	flags := cmd.Root().PersistentFlags()
	var (
		tf  traceFlags
		err error
	)
	if tf.output, err = flags.GetString("trace"); err != nil {
		return tf, err
	}
	if tf.level, err = flags.GetString("trace-level"); err != nil {
		return tf, err
	}
	if tf.mode, err = flags.GetString("trace-mode"); err != nil {
		return tf, err
	}
	if tf.ringSize, err = flags.GetInt("trace-ring-size"); err != nil {
		return tf, err
	}
	if tf.heartbeat, err = flags.GetDuration("trace-heartbeat"); err != nil {
		return tf, err
	}
	tf.logJSON, err = flags.GetBool("log-json")
	return tf, err
}

// setupTracing builds the tracer selected by the trace flags and stores it in
// the command context. The cleanup stops the heartbeat and closes every sink.
func setupTracing(cmd *cobra.Command) (func(), error) {
	tf, err := readTraceFlags(cmd)
	if err != nil {
		return nil, err
	}
	level, err := trace.ParseLevel(tf.level)
	if err != nil {
		return nil, err
	}
	// --trace без уровня означает phase
	if level == trace.LevelOff && tf.output != "" {
		level = trace.LevelPhase
	}

	var sinks []trace.Tracer
	if tf.logJSON {
		logLevel := max(level, trace.LevelPhase)
		logger, err := trace.NewJSONLogger(logLevel >= trace.LevelDebug)
		if err != nil {
			return nil, errors.Wrap(err, "create JSON logger")
		}
		sinks = append(sinks, trace.NewZapTracer(logger, logLevel))
		level = max(level, logLevel)
	}
	if tf.output != "" || (level != trace.LevelOff && !tf.logJSON) {
		mode, err := trace.ParseMode(tf.mode)
		if err != nil {
			return nil, err
		}
		sink, err := trace.New(trace.Config{
			Level:      level,
			Mode:       mode,
			OutputPath: tf.output,
			RingSize:   tf.ringSize,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sink)
	}

	var tracer trace.Tracer = trace.Nop
	switch len(sinks) {
	case 0:
	case 1:
		tracer = sinks[0]
	default:
		tracer = trace.NewMultiTracer(level, sinks...)
	}
	cmd.SetContext(trace.WithTracer(cmd.Context(), tracer))
	if !tracer.Enabled() {
		return func() {}, nil
	}

	heartbeat := trace.StartHeartbeat(tracer, tf.heartbeat)
	stderr := cmd.ErrOrStderr()
	return func() {
		heartbeat.Stop()
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(stderr, "warning: trace: %v\n", err)
		}
	}, nil
}
