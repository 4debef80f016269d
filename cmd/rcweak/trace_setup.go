package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rcweak/internal/trace"
)

var (
	// heartbeat is the running trace heartbeat, nil when none was asked
	// for. Commands point it at whatever they want reported.
	heartbeat *trace.Heartbeat
	// traceToStderr is set when trace events stream to stderr.
	traceToStderr bool
)

// traceConfig merges the --trace* flags over the [trace] section.
// --trace without a level traces phases.
func traceConfig(cmd *cobra.Command) (trace.Config, error) {
	flags := cmd.Root().PersistentFlags()
	output, err := flags.GetString("trace")
	if err != nil {
		return trace.Config{}, fmt.Errorf("failed to get trace flag: %w", err)
	}
	levelStr, err := flags.GetString("trace-level")
	if err != nil {
		return trace.Config{}, fmt.Errorf("failed to get trace-level flag: %w", err)
	}
	modeStr, err := flags.GetString("trace-mode")
	if err != nil {
		return trace.Config{}, fmt.Errorf("failed to get trace-mode flag: %w", err)
	}
	ringSize, err := flags.GetInt("trace-ring-size")
	if err != nil {
		return trace.Config{}, fmt.Errorf("failed to get trace-ring-size flag: %w", err)
	}

	if output == "" {
		output = settings.Trace.Output
	}
	if levelStr == "" {
		levelStr = settings.Trace.Level
	}
	if modeStr == "" {
		modeStr = settings.Trace.Mode
	}
	level, err := trace.ParseLevel(levelStr)
	if err != nil {
		return trace.Config{}, err
	}
	if level == trace.LevelOff && output != "" {
		level = trace.LevelPhase
	}
	mode, err := trace.ParseMode(modeStr)
	if err != nil {
		return trace.Config{}, err
	}
	return trace.Config{Level: level, Mode: mode, OutputPath: output, RingSize: ringSize}, nil
}

// setupTracing attaches the configured tracer to the command context and
// starts the heartbeat. The returned cleanup is safe to call twice.
func setupTracing(cmd *cobra.Command) (func(), error) {
	tc, err := traceConfig(cmd)
	if err != nil {
		return nil, fmt.Errorf("trace: %w", err)
	}
	interval, err := cmd.Root().PersistentFlags().GetDuration("trace-heartbeat")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-heartbeat flag: %w", err)
	}

	tracer, err := trace.New(tc)
	if err != nil {
		return nil, fmt.Errorf("trace: %w", err)
	}
	cmd.SetContext(trace.WithTracer(cmd.Context(), tracer))
	traceToStderr = tc.ToStderr()
	if tracer == trace.Nop {
		return func() {}, nil
	}
	heartbeat = trace.StartHeartbeat(tracer, interval)

	done := false
	return func() {
		if done {
			return
		}
		done = true
		heartbeat.Stop()
		heartbeat = nil
		stderr := cmd.ErrOrStderr()
		if ring := trace.RingOf(tracer); ring != nil {
			if tc.Mode == trace.ModeRing {
				// Nothing was streamed; show what the ring kept.
				if err := ring.Dump(stderr, trace.FormatText); err != nil {
					fmt.Fprintf(stderr, "trace: ring dump error: %v\n", err)
				}
			} else {
				fmt.Fprintf(stderr, "trace: %s\n", ring.Summary())
			}
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(stderr, "trace: close error: %v\n", err)
		}
	}, nil
}
