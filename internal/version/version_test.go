package version

import (
	"runtime/debug"
	"testing"

	"github.com/fatih/color"
)

func TestVersion_DefaultValues(t *testing.T) {
	if Version == "" {
		t.Error("Version should have a default value")
	}
}

func TestResolveFallsBackToVCSStamp(t *testing.T) {
	origCommit, origDate := GitCommit, BuildDate
	t.Cleanup(func() { GitCommit, BuildDate = origCommit, origDate })
	GitCommit, BuildDate = "", ""

	bi := &debug.BuildInfo{
		GoVersion: "go1.23.4",
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.time", Value: "2026-10-01T12:00:00Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	}
	info := resolve(bi)
	if info.GitCommit != "0123456789abcdef0123" || info.ShortCommit() != "0123456789ab" {
		t.Errorf("commit = %q (short %q)", info.GitCommit, info.ShortCommit())
	}
	if info.BuildDate != "2026-10-01T12:00:00Z" || !info.Modified || info.GoVersion != "go1.23.4" {
		t.Errorf("unexpected info %+v", info)
	}

	GitCommit, BuildDate = "feedface", "2026-01-02"
	info = resolve(bi)
	if info.GitCommit != "feedface" || info.BuildDate != "2026-01-02" {
		t.Errorf("ldflags values lost to the VCS stamp: %+v", info)
	}

	if info := resolve(nil); info.GoVersion == "" || info.Modified {
		t.Errorf("resolve(nil) = %+v", info)
	}
}

func TestColored_PlainWhenColorDisabled(t *testing.T) {
	origNoColor := color.NoColor
	origVersion := Version
	t.Cleanup(func() {
		color.NoColor = origNoColor
		Version = origVersion
	})
	color.NoColor = true

	tests := []struct {
		version string
		want    string
	}{
		{"0.1.0-dev", "0.1.0-dev"},
		{"1.2.3", "1.2.3"},
		{"1.0.0-rc.1+build.123", "1.0.0-rc.1+build.123"},
		{"nightly", "nightly"},
	}
	for _, tt := range tests {
		Version = tt.version
		if got := Colored(); got != tt.want {
			t.Errorf("Colored() with %q = %q, want %q", tt.version, got, tt.want)
		}
	}
}

func TestColored_AddsEscapes(t *testing.T) {
	origNoColor := color.NoColor
	t.Cleanup(func() { color.NoColor = origNoColor })
	color.NoColor = false

	if got := Colored(); got == Version {
		t.Errorf("expected colored output, got %q", got)
	}
}

func BenchmarkColored(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = Colored()
	}
}
