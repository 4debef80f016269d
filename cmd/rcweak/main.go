package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"rcweak/internal/config"
	"rcweak/internal/trace"
	"rcweak/internal/version"
)

// settings is the resolved rcweak.toml for the running command.
var settings = config.Default()

var traceCleanup = func() {}

var rootCmd = &cobra.Command{
	Use:           "rcweak",
	Short:         "Weak references over a reference-counted heap",
	Long:          `rcweak exercises a weak reference primitive on a refcounted object heap: a narrated demo, a concurrent stress driver and heap snapshots.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := applyColorFlag(cmd); err != nil {
			return err
		}
		explicit, err := cmd.Root().PersistentFlags().GetString("config")
		if err != nil {
			return fmt.Errorf("failed to get config flag: %w", err)
		}
		cfg, err := config.Resolve(explicit, ".")
		if err != nil {
			return err
		}
		settings = cfg
		cleanup, err := setupTracing(cmd)
		if err != nil {
			return err
		}
		traceCleanup = cleanup
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		traceCleanup()
	},
}

// main registers subcommands and persistent flags and executes the root
// command, exiting with status 1 on error.
func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(stressCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("config", "", "path to rcweak.toml (default: nearest one above the working directory)")
	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().String("trace", "", "trace output file (\"-\" for stderr)")
	rootCmd.PersistentFlags().String("trace-level", "", "trace level (off|phase|heap|slot), overrides [trace].level")
	rootCmd.PersistentFlags().String("trace-mode", "", "trace storage (stream|ring|both), overrides [trace].mode")
	rootCmd.PersistentFlags().Int("trace-ring-size", trace.DefaultRingSize, "ring buffer capacity for ring trace mode")
	rootCmd.PersistentFlags().Duration("trace-heartbeat", 0, "emit a heartbeat event at this interval (0 disables)")

	if err := rootCmd.Execute(); err != nil {
		traceCleanup()
		fmt.Fprintln(os.Stderr, failColor.Sprint("error:"), err)
		os.Exit(1)
	}
}

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
	noteColor = color.New(color.FgCyan)
)

func applyColorFlag(cmd *cobra.Command) error {
	mode, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "auto":
		color.NoColor = !isTerminal(os.Stdout)
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	default:
		return fmt.Errorf("invalid --color value %q (expected auto|on|off)", mode)
	}
	return nil
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
