package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"rcweak/internal/version"
	"rcweak/internal/weakref"
)

var (
	versionFormat string
	versionFull   bool
)

func init() {
	versionCmd.Flags().BoolVar(&versionFull, "full", false, "include commit, build time and tree state")
	versionCmd.Flags().StringVar(&versionFormat, "format", "pretty", "output format (pretty|json)")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show rcweak build metadata",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.Current()
		switch strings.ToLower(strings.TrimSpace(versionFormat)) {
		case "pretty":
			printVersion(cmd.OutOrStdout(), info, versionFull)
			return nil
		case "json":
			return writeVersionJSON(cmd.OutOrStdout(), info, versionFull)
		default:
			return fmt.Errorf("unsupported format %q (must be pretty or json)", versionFormat)
		}
	},
}

// fingerprintModes lists what --fingerprint and [weak].fingerprint accept.
func fingerprintModes() []string {
	return []string{weakref.ModeDispatch.String(), weakref.ModeDispatchEpoch.String()}
}

func printVersion(out io.Writer, info version.Info, full bool) {
	fmt.Fprintf(out, "rcweak %s (%s)\n", version.Colored(), info.GoVersion)
	fmt.Fprintf(out, "fingerprints: %s\n", strings.Join(fingerprintModes(), ", "))
	if !full {
		return
	}
	commit := orUnknown(info.ShortCommit())
	if info.Modified {
		commit += " (modified)"
	}
	fmt.Fprintf(out, "commit: %s\n", commit)
	fmt.Fprintf(out, "built:  %s\n", orUnknown(info.BuildDate))
}

type versionJSON struct {
	Tool         string   `json:"tool"`
	Version      string   `json:"version"`
	Go           string   `json:"go"`
	Fingerprints []string `json:"fingerprint_modes"`
	GitCommit    string   `json:"git_commit,omitempty"`
	Modified     bool     `json:"modified,omitempty"`
	BuildDate    string   `json:"build_date,omitempty"`
}

func writeVersionJSON(out io.Writer, info version.Info, full bool) error {
	payload := versionJSON{
		Tool:         "rcweak",
		Version:      info.Version,
		Go:           info.GoVersion,
		Fingerprints: fingerprintModes(),
	}
	if full {
		payload.GitCommit = orUnknown(info.GitCommit)
		payload.Modified = info.Modified
		payload.BuildDate = orUnknown(info.BuildDate)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
