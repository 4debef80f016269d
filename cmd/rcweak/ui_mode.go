package main

import (
	"fmt"
	"os"
	"strings"

	"rcweak/internal/config"
)

// progressMode resolves the stress progress view: --ui when given, else
// [ui].progress from rcweak.toml.
func progressMode(flag string) (config.ProgressMode, error) {
	if strings.TrimSpace(flag) == "" {
		return settings.Progress(), nil
	}
	m, err := config.ParseProgressMode(flag)
	if err != nil {
		return m, fmt.Errorf("invalid --ui value: %w", err)
	}
	return m, nil
}

// useProgressView reports whether the bubbletea view should take over the
// terminal. In auto mode it needs stdout on a terminal, and stays off when
// a trace stream would interleave with it on that terminal's stderr.
func useProgressView(mode config.ProgressMode, stdoutTTY, traceOnTTY bool) bool {
	switch mode {
	case config.ProgressOn:
		return true
	case config.ProgressOff:
		return false
	default:
		return stdoutTTY && !traceOnTTY
	}
}

func progressOnThisTerminal(mode config.ProgressMode) bool {
	return useProgressView(mode, isTerminal(os.Stdout), traceToStderr && isTerminal(os.Stderr))
}
