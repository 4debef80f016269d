// Package config loads rcweak.toml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"rcweak/internal/rt"
	"rcweak/internal/trace"
	"rcweak/internal/weakref"
)

// FileName is the config file searched for by Find.
const FileName = "rcweak.toml"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config is the decoded rcweak.toml.
type Config struct {
	Heap   HeapConfig   `toml:"heap"`
	Weak   WeakConfig   `toml:"weak"`
	Stress StressConfig `toml:"stress"`
	Trace  TraceConfig  `toml:"trace"`
	UI     UIConfig     `toml:"ui"`

	// Path is the file the config came from, empty for defaults.
	Path string `toml:"-"`
}

// HeapConfig is the [heap] section: the host heap's initial size and the
// order in which freed cells are handed out again.
type HeapConfig struct {
	InitialCells int    `toml:"initial_cells"`
	Reuse        string `toml:"reuse"`
}

// WeakConfig is the [weak] section. Fingerprint is "dispatch" or
// "dispatch+epoch".
type WeakConfig struct {
	Fingerprint string `toml:"fingerprint"`
}

// StressConfig is the [stress] section, the defaults for `rcweak stress`.
type StressConfig struct {
	Workers int   `toml:"workers"`
	Rounds  int   `toml:"rounds"`
	Refs    int   `toml:"refs"`
	Seed    int64 `toml:"seed"`
}

// TraceConfig is the [trace] section. The --trace* flags override it.
type TraceConfig struct {
	Level  string `toml:"level"`
	Mode   string `toml:"mode"`
	Output string `toml:"output"`
}

// UIConfig is the [ui] section. Progress is "auto", "on" or "off" and is
// overridden by the stress command's --ui flag.
type UIConfig struct {
	Progress string `toml:"progress"`
}

// ProgressMode says when the stress command renders its progress view.
type ProgressMode uint8

const (
	// ProgressAuto renders when stdout is a terminal.
	ProgressAuto ProgressMode = iota
	ProgressOn
	ProgressOff
)

func (m ProgressMode) String() string {
	switch m {
	case ProgressOn:
		return "on"
	case ProgressOff:
		return "off"
	default:
		return "auto"
	}
}

// ParseProgressMode accepts auto, on and off, ignoring case and surrounding
// space. Empty means auto.
func ParseProgressMode(s string) (ProgressMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ProgressAuto, nil
	case "on":
		return ProgressOn, nil
	case "off":
		return ProgressOff, nil
	default:
		return ProgressAuto, fmt.Errorf("invalid progress mode %q (expected auto|on|off)", s)
	}
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Heap:   HeapConfig{InitialCells: 256, Reuse: "lifo"},
		Weak:   WeakConfig{Fingerprint: "dispatch"},
		Stress: StressConfig{Workers: 4, Rounds: 200, Refs: 32, Seed: 1},
		Trace:  TraceConfig{Level: "off", Mode: "stream"},
		UI:     UIConfig{Progress: "auto"},
	}
}

// Find walks up from startDir looking for rcweak.toml.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load decodes path on top of Default and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return Config{}, fmt.Errorf("%s: %w: unknown keys %s", path, ErrInvalid, strings.Join(keys, ", "))
	}
	cfg.Path = path
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Resolve loads explicit if set, otherwise the nearest rcweak.toml above
// startDir, otherwise the defaults.
func Resolve(explicit, startDir string) (Config, error) {
	if explicit != "" {
		return Load(explicit)
	}
	path, ok, err := Find(startDir)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Default(), nil
	}
	return Load(path)
}

// Validate checks ranges and enum values.
func (c Config) Validate() error {
	if c.Heap.InitialCells < 0 {
		return fmt.Errorf("%w: [heap].initial_cells must be >= 0", ErrInvalid)
	}
	if _, err := rt.ParseReusePolicy(c.Heap.Reuse); err != nil {
		return fmt.Errorf("%w: [heap].reuse: %v", ErrInvalid, err)
	}
	if _, err := weakref.ParseMode(c.Weak.Fingerprint); err != nil {
		return fmt.Errorf("%w: [weak].fingerprint: %v", ErrInvalid, err)
	}
	if c.Stress.Workers <= 0 || c.Stress.Rounds <= 0 || c.Stress.Refs <= 0 {
		return fmt.Errorf("%w: [stress] workers, rounds and refs must be positive", ErrInvalid)
	}
	if _, err := trace.ParseLevel(c.Trace.Level); err != nil {
		return fmt.Errorf("%w: [trace].level: %v", ErrInvalid, err)
	}
	if _, err := trace.ParseMode(c.Trace.Mode); err != nil {
		return fmt.Errorf("%w: [trace].mode: %v", ErrInvalid, err)
	}
	if _, err := ParseProgressMode(c.UI.Progress); err != nil {
		return fmt.Errorf("%w: [ui].progress: %v", ErrInvalid, err)
	}
	return nil
}

// RuntimeConfig converts the [heap] section into an rt.Config.
func (c Config) RuntimeConfig(tr trace.Tracer) rt.Config {
	reuse, _ := rt.ParseReusePolicy(c.Heap.Reuse)
	return rt.Config{
		InitialCells: c.Heap.InitialCells,
		Reuse:        reuse,
		Tracer:       tr,
	}
}

// Progress returns the [ui] progress mode.
func (c Config) Progress() ProgressMode {
	m, _ := ParseProgressMode(c.UI.Progress)
	return m
}

// Mode returns the fingerprint mode from [weak].
func (c Config) Mode() weakref.Mode {
	m, _ := weakref.ParseMode(c.Weak.Fingerprint)
	return m
}
