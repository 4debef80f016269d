package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"rcweak/internal/rt"
	"rcweak/internal/stress"
	"rcweak/internal/ui"
)

type stressOutcome struct {
	report stress.Report
	err    error
}

// runStressWithUI runs the driver in the background and renders its round
// events until the driver finishes.
func runStressWithUI(ctx context.Context, h *rt.Heap, cfg stress.Config) (stress.Report, error) {
	events := make(chan stress.Event, 256)
	outcomeCh := make(chan stressOutcome, 1)

	go func() {
		report, err := stress.Run(ctx, h, cfg, events)
		outcomeCh <- stressOutcome{report: report, err: err}
		close(events)
	}()

	model := ui.NewProgressModel("stress", cfg.Workers, cfg.Rounds, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	// Keep the driver from blocking on a UI that quit early.
	go func() {
		for range events {
		}
	}()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.report, uiErr
	}
	return outcome.report, outcome.err
}
