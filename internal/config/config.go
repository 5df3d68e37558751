// Package config loads squiggle.toml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"squiggle/internal/decor"
	"squiggle/internal/diag"
	"squiggle/internal/pipeline"
	"squiggle/internal/source"
	"squiggle/internal/trace"
)

// FileName is the configuration file looked up from the working directory
// upwards.
const FileName = "squiggle.toml"

var ErrUnknownMode = errors.New("unknown mode")

// Duration is a time.Duration decoded from strings like "150ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type Config struct {
	Mode              string   `toml:"mode"`
	Kinds             []string `toml:"kinds"`
	IncludeSuppressed bool     `toml:"include_suppressed"`
	Delays            Delays   `toml:"delays"`
	Cache             Cache    `toml:"cache"`
	Limits            Limits   `toml:"limits"`
}

type Delays struct {
	Recompute     Duration `toml:"recompute"`
	NotifyAdded   Duration `toml:"notify_added"`
	NotifyRemoved Duration `toml:"notify_removed"`
	// Analyze is the push service debounce after an edit.
	Analyze Duration `toml:"analyze"`
}

type Cache struct {
	CorrelationSize int `toml:"correlation_size"`
	HistoryLimit    int `toml:"history_limit"`
}

type Limits struct {
	MaxDiagnostics int      `toml:"max_diagnostics"`
	MaxParallel    int      `toml:"max_parallel"`
	LineWidth      int      `toml:"line_width"`
	ReportInterval Duration `toml:"report_interval"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Mode: "pull",
		Delays: Delays{
			Recompute:     Duration{50 * time.Millisecond},
			NotifyAdded:   Duration{500 * time.Millisecond},
			NotifyRemoved: Duration{50 * time.Millisecond},
			Analyze:       Duration{100 * time.Millisecond},
		},
		Cache: Cache{
			CorrelationSize: 256,
			HistoryLimit:    source.DefaultHistoryLimit,
		},
		Limits: Limits{
			LineWidth:      100,
			ReportInterval: Duration{time.Minute},
		},
	}
}

// Find walks up from startDir to locate FileName.
func Find(startDir string) (path string, ok bool, err error) {
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

// Load decodes path over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%s: unknown key %q", path, undecoded[0].String())
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Resolve loads explicit when set, otherwise the nearest FileName above
// startDir, otherwise the defaults. The returned path is empty for defaults.
func Resolve(explicit, startDir string) (Config, string, error) {
	if explicit != "" {
		cfg, err := Load(explicit)
		return cfg, explicit, err
	}
	path, ok, err := Find(startDir)
	if err != nil {
		return Config{}, "", err
	}
	if !ok {
		return Default(), "", nil
	}
	cfg, err := Load(path)
	return cfg, path, err
}

// ParseMode maps a mode name to a pipeline mode.
func ParseMode(name string) (pipeline.Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "pull", "":
		return pipeline.ModePull, nil
	case "push":
		return pipeline.ModePush, nil
	}
	return 0, fmt.Errorf("%w %q (want pull or push)", ErrUnknownMode, name)
}

// KindSet parses the configured kinds; none means all.
func (c Config) KindSet() (diag.KindSet, error) {
	return diag.ParseKindSet(strings.Join(c.Kinds, ","))
}

func (c Config) Validate() error {
	if _, err := ParseMode(c.Mode); err != nil {
		return err
	}
	if _, err := c.KindSet(); err != nil {
		return fmt.Errorf("kinds: %w", err)
	}
	for name, d := range map[string]Duration{
		"delays.recompute":       c.Delays.Recompute,
		"delays.notify_added":    c.Delays.NotifyAdded,
		"delays.notify_removed":  c.Delays.NotifyRemoved,
		"delays.analyze":         c.Delays.Analyze,
		"limits.report_interval": c.Limits.ReportInterval,
	} {
		if d.Duration < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	switch {
	case c.Cache.CorrelationSize <= 0:
		return errors.New("cache.correlation_size must be positive")
	case c.Cache.HistoryLimit < 0:
		return errors.New("cache.history_limit must not be negative")
	case c.Limits.MaxDiagnostics < 0:
		return errors.New("limits.max_diagnostics must not be negative")
	case c.Limits.MaxParallel < 0:
		return errors.New("limits.max_parallel must not be negative")
	}
	return nil
}

// PipelineOptions converts the configuration for pipeline.NewProvider.
func (c Config) PipelineOptions(classify decor.Classifier, tracer trace.Tracer) (pipeline.Options, error) {
	mode, err := ParseMode(c.Mode)
	if err != nil {
		return pipeline.Options{}, err
	}
	kinds, err := c.KindSet()
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{
		Mode:              mode,
		Kinds:             kinds,
		IncludeSuppressed: c.IncludeSuppressed,
		RecomputeDelay:    c.Delays.Recompute.Duration,
		NotifyAdded:       c.Delays.NotifyAdded.Duration,
		NotifyRemoved:     c.Delays.NotifyRemoved.Duration,
		CorrelationSize:   c.Cache.CorrelationSize,
		MaxDiagnostics:    c.Limits.MaxDiagnostics,
		MaxParallel:       c.Limits.MaxParallel,
		ReportInterval:    c.Limits.ReportInterval.Duration,
		Classify:          classify,
		Tracer:            tracer,
	}, nil
}
