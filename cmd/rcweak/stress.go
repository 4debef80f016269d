package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"rcweak/internal/prof"
	"rcweak/internal/rt"
	"rcweak/internal/stress"
	"rcweak/internal/trace"
	"rcweak/internal/weakref"
)

var (
	stressWorkers      int
	stressRounds       int
	stressRefs         int
	stressSeed         int64
	stressFingerprint  string
	stressRecycle      bool
	stressUI           string
	stressTimings      bool
	stressCPUProfile   string
	stressMemProfile   string
	stressRuntimeTrace string
)

func init() {
	f := stressCmd.Flags()
	f.IntVar(&stressWorkers, "workers", 0, "concurrent workers (default from [stress].workers)")
	f.IntVar(&stressRounds, "rounds", 0, "rounds per worker (default from [stress].rounds)")
	f.IntVar(&stressRefs, "refs", 0, "weak references per round (default from [stress].refs)")
	f.Int64Var(&stressSeed, "seed", 0, "random seed (default from [stress].seed)")
	f.StringVar(&stressFingerprint, "fingerprint", "", "fingerprint mode (dispatch|dispatch+epoch), overrides [weak].fingerprint")
	f.BoolVar(&stressRecycle, "recycle", false, "refill freed cells with the dropped target's own type")
	f.StringVar(&stressUI, "ui", "", "progress UI (auto|on|off), overrides [ui].progress")
	f.BoolVar(&stressTimings, "timings", false, "print phase timings")
	f.StringVar(&stressCPUProfile, "cpuprofile", "", "write a CPU profile to this file")
	f.StringVar(&stressMemProfile, "memprofile", "", "write a heap profile to this file")
	f.StringVar(&stressRuntimeTrace, "runtime-trace", "", "write a Go runtime trace to this file")
}

var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Hammer weak references from concurrent workers and verify heap counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := stressConfig(cmd)
		if err != nil {
			return err
		}
		mode, err := progressMode(stressUI)
		if err != nil {
			return err
		}

		session, err := prof.Start(prof.Options{
			CPU:          stressCPUProfile,
			Mem:          stressMemProfile,
			RuntimeTrace: stressRuntimeTrace,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := session.Stop(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "profile: %v\n", err)
			}
		}()

		ctx := cmd.Context()
		h := rt.NewHeap(settings.RuntimeConfig(trace.FromContext(ctx)))
		heartbeat.Watch(func() string { return heapStatus(h.Stats()) })
		defer heartbeat.Watch(nil)

		var report stress.Report
		if progressOnThisTerminal(mode) {
			report, err = runStressWithUI(ctx, h, cfg)
		} else {
			report, err = stress.Run(ctx, h, cfg, nil)
		}

		out := cmd.OutOrStdout()
		status := okColor.Sprint("PASS")
		if errors.Is(err, stress.ErrViolation) {
			status = failColor.Sprint("FAIL")
		}
		fmt.Fprintf(out, "%s %s mode=%s\n", status, report, cfg.Mode)
		if stressTimings {
			printTimings(out, report.Timing)
		}
		return err
	},
}

// heapStatus is the one-line heap summary carried by trace heartbeats.
func heapStatus(s rt.Stats) string {
	return fmt.Sprintf("live=%d/%d allocs=%d frees=%d promotions=%d", s.Live, s.Cells, s.Allocs, s.Frees, s.Promotions)
}

// stressConfig merges [stress] and [weak] with explicitly set flags.
func stressConfig(cmd *cobra.Command) (stress.Config, error) {
	cfg := stress.Config{
		Workers: settings.Stress.Workers,
		Rounds:  settings.Stress.Rounds,
		Refs:    settings.Stress.Refs,
		Seed:    settings.Stress.Seed,
		Mode:    settings.Mode(),
		Recycle: stressRecycle,
	}
	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Workers = stressWorkers
	}
	if flags.Changed("rounds") {
		cfg.Rounds = stressRounds
	}
	if flags.Changed("refs") {
		cfg.Refs = stressRefs
	}
	if flags.Changed("seed") {
		cfg.Seed = stressSeed
	}
	if flags.Changed("fingerprint") {
		m, err := weakref.ParseMode(stressFingerprint)
		if err != nil {
			return stress.Config{}, err
		}
		cfg.Mode = m
	}
	if cfg.Workers <= 0 || cfg.Rounds <= 0 || cfg.Refs <= 0 {
		return stress.Config{}, fmt.Errorf("--workers, --rounds and --refs must be positive")
	}
	return cfg, nil
}
