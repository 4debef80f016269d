package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rcweak/internal/rt"
	"rcweak/internal/weakref"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	writeFile(t, path, `
[heap]
reuse = "fifo"

[weak]
fingerprint = "dispatch+epoch"

[stress]
workers = 2
seed = 99

[ui]
progress = "Off"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Path != path {
		t.Fatalf("Path = %q, want %q", cfg.Path, path)
	}
	if cfg.Heap.InitialCells != Default().Heap.InitialCells {
		t.Fatalf("initial_cells lost its default: %d", cfg.Heap.InitialCells)
	}
	if cfg.Stress.Workers != 2 || cfg.Stress.Seed != 99 || cfg.Stress.Rounds != Default().Stress.Rounds {
		t.Fatalf("unexpected stress section %+v", cfg.Stress)
	}
	if got := cfg.RuntimeConfig(nil).Reuse; got != rt.ReuseFIFO {
		t.Fatalf("reuse = %s, want fifo", got)
	}
	if cfg.Mode() != weakref.ModeDispatchEpoch {
		t.Fatalf("mode = %s, want dispatch+epoch", cfg.Mode())
	}
	if cfg.Progress() != ProgressOff {
		t.Fatalf("progress = %s, want off", cfg.Progress())
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad reuse", "[heap]\nreuse = \"random\"\n", "[heap].reuse"},
		{"bad mode", "[weak]\nfingerprint = \"crc\"\n", "[weak].fingerprint"},
		{"zero workers", "[stress]\nworkers = 0\n", "[stress]"},
		{"bad level", "[trace]\nlevel = \"loud\"\n", "[trace].level"},
		{"bad progress", "[ui]\nprogress = \"maybe\"\n", "[ui].progress"},
		{"unknown key", "[heap]\ncolour = 3\n", "unknown keys heap.colour"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), FileName)
			writeFile(t, path, tt.content)
			_, err := Load(path)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	writeFile(t, path, "[heap\n")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "failed to parse TOML") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestEnumValuesIgnoreCase(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	writeFile(t, path, "[heap]\nreuse = \" FIFO \"\n\n[weak]\nfingerprint = \"Dispatch+Epoch\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.RuntimeConfig(nil).Reuse; got != rt.ReuseFIFO {
		t.Fatalf("reuse = %s, want fifo", got)
	}
	if cfg.Mode() != weakref.ModeDispatchEpoch {
		t.Fatalf("mode = %s, want dispatch+epoch", cfg.Mode())
	}
}

func TestFindWalksUp(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, FileName)
	writeFile(t, path, "[stress]\nrounds = 5\n")
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	found, ok, err := Find(nested)
	if err != nil || !ok {
		t.Fatalf("Find: ok=%v err=%v", ok, err)
	}
	if found != path {
		t.Fatalf("Find = %q, want %q", found, path)
	}

	cfg, err := Resolve("", nested)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.Stress.Rounds != 5 {
		t.Fatalf("rounds = %d, want 5", cfg.Stress.Rounds)
	}
}

func TestResolveFallsBackToDefaults(t *testing.T) {
	cfg, err := Resolve("", t.TempDir())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.Path != "" {
		// A stray rcweak.toml above the temp dir would be picked up here.
		t.Skipf("found unrelated config at %s", cfg.Path)
	}
	if cfg.Stress != Default().Stress {
		t.Fatalf("expected default stress section, got %+v", cfg.Stress)
	}
}
