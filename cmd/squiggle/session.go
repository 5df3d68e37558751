package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"squiggle/internal/config"
	"squiggle/internal/diag"
	"squiggle/internal/engine"
	"squiggle/internal/pipeline"
	"squiggle/internal/render"
	"squiggle/internal/source"
	"squiggle/internal/suppress"
	"squiggle/internal/trace"
)

// errFindings reports that decorations of error kind were produced. The
// findings themselves are already printed.
var errFindings = errors.New("error decorations found")

// session wires a directory, the analysis engine and a provider for one
// command invocation.
type session struct {
	cfg      config.Config
	dir      *source.Directory
	engine   *engine.Engine
	service  *engine.Service
	provider *pipeline.Provider
	tracer   trace.Tracer
	stops    []func()
}

// loadConfig resolves the config file and applies command-line overrides.
func loadConfig(cmd *cobra.Command, startDir string) (config.Config, error) {
	flags := cmd.Root().PersistentFlags()

	explicit, err := flags.GetString("config")
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to get config flag: %w", err)
	}
	cfg, _, err := config.Resolve(explicit, startDir)
	if err != nil {
		return config.Config{}, err
	}

	if mode, err := flags.GetString("mode"); err != nil {
		return config.Config{}, fmt.Errorf("failed to get mode flag: %w", err)
	} else if mode != "" {
		cfg.Mode = mode
	}
	if kinds, err := flags.GetString("kinds"); err != nil {
		return config.Config{}, fmt.Errorf("failed to get kinds flag: %w", err)
	} else if kinds != "" {
		cfg.Kinds = strings.Split(kinds, ",")
	}
	if flags.Changed("include-suppressed") {
		v, err := flags.GetBool("include-suppressed")
		if err != nil {
			return config.Config{}, fmt.Errorf("failed to get include-suppressed flag: %w", err)
		}
		cfg.IncludeSuppressed = v
	}
	maxDiagnostics, err := flags.GetInt("max-diagnostics")
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	if maxDiagnostics >= 0 {
		cfg.Limits.MaxDiagnostics = maxDiagnostics
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newSession(ctx context.Context, cfg config.Config) (*session, error) {
	tracer := trace.FromContext(ctx)
	opts, err := cfg.PipelineOptions(render.Classify, tracer)
	if err != nil {
		return nil, err
	}

	s := &session{
		cfg:    cfg,
		dir:    source.NewDirectory(cfg.Cache.HistoryLimit),
		tracer: tracer,
	}
	s.engine = engine.New(engine.Options{MaxDiagnostics: cfg.Limits.MaxDiagnostics}, engine.DefaultAnalyzers(cfg.Limits.LineWidth)...)
	s.stops = append(s.stops, s.engine.Track(s.dir))

	backend := pipeline.Backend{Engine: s.engine}
	if opts.Mode == pipeline.ModePush {
		s.service = engine.NewService(s.engine, engine.ServiceOptions{
			MaxParallel: cfg.Limits.MaxParallel,
			Debounce:    cfg.Delays.Analyze.Duration,
			Tracer:      tracer,
		})
		backend = pipeline.Backend{Service: s.service}
	}

	s.provider, err = pipeline.NewProvider(s.dir, backend, opts)
	if err != nil {
		s.Close()
		return nil, err
	}
	heartbeat.SetProbe(s.probe)
	s.stops = append(s.stops, func() { heartbeat.SetProbe(nil) })
	return s, nil
}

// probe describes the session for trace heartbeats.
func (s *session) probe() map[string]string {
	return map[string]string{
		"mode":          s.cfg.Mode,
		"documents":     strconv.Itoa(len(s.dir.Documents())),
		"analyzer_runs": strconv.FormatInt(s.engine.Runs(), 10),
	}
}

// analyze makes fresh diagnostics available for snap. Pull mode computes
// them on demand, so only push mode has work to do here.
func (s *session) analyze(ctx context.Context, snap *source.Snapshot) error {
	if s.service == nil {
		return nil
	}
	return s.service.Analyze(ctx, snap)
}

// track keeps diagnostics current while documents of the directory change.
func (s *session) track() {
	if s.service != nil {
		s.stops = append(s.stops, s.service.Track(s.dir))
	}
}

func (s *session) Close() {
	if s.provider != nil {
		_ = s.provider.Close()
	}
	for i := len(s.stops) - 1; i >= 0; i-- {
		s.stops[i]()
	}
	s.stops = nil
	if s.service != nil {
		s.service.Close()
	}
}

// refresh runs a pass and retries while newer passes supersede it.
func refresh(ctx context.Context, src *pipeline.Source) error {
	for {
		err := src.Refresh(ctx)
		if !errors.Is(err, pipeline.ErrSuperseded) {
			return err
		}
	}
}

// parseLineRanges turns "3" or "3-7" items into spans covering whole lines
// of snap, newline included.
func parseLineRanges(items []string, snap *source.Snapshot) (suppress.Set, error) {
	set := suppress.Set{Snapshot: snap}
	for _, item := range items {
		from, to, found := strings.Cut(strings.TrimSpace(item), "-")
		first, err := strconv.Atoi(from)
		if err != nil {
			return suppress.Set{}, fmt.Errorf("invalid line range %q", item)
		}
		last := first
		if found {
			if last, err = strconv.Atoi(to); err != nil {
				return suppress.Set{}, fmt.Errorf("invalid line range %q", item)
			}
		}
		if first < 1 || last < first {
			return suppress.Set{}, fmt.Errorf("invalid line range %q", item)
		}
		start, ok := snap.LineSpan(first)
		if !ok {
			return suppress.Set{}, fmt.Errorf("line %d is past the end of %s", first, snap.Document())
		}
		end, ok := snap.LineSpan(min(last, snap.LineCount()))
		if !ok {
			end = start
		}
		span := source.Span{Start: start.Start, End: min(end.End+1, snap.Len())}
		set.Spans = append(set.Spans, span)
	}
	return set, nil
}

// useColor resolves --color against the terminal state of out.
func useColor(cmd *cobra.Command, out *os.File) (bool, error) {
	value, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return false, fmt.Errorf("failed to get color flag: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "on", "always":
		return true, nil
	case "off", "never":
		return false, nil
	case "", "auto":
		return isTerminal(out) && !color.NoColor, nil
	}
	return false, fmt.Errorf("invalid --color value %q (expected auto|on|off)", value)
}

func kindReports(status []pipeline.KindStatus) []render.KindReport {
	out := make([]render.KindReport, 0, len(status))
	for _, st := range status {
		kr := render.KindReport{
			Kind:        st.Kind.String(),
			Outcome:     st.Outcome.String(),
			Decorations: st.Decorations,
			Skipped:     st.Skipped,
			ElapsedMS:   st.Elapsed.Milliseconds(),
		}
		if st.Err != nil {
			kr.Error = st.Err.Error()
		}
		out = append(out, kr)
	}
	return out
}

func workingDir(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return filepath.Dir(abs)
	}
	return "."
}

// kindsLabel is used in headers; every kind reads as "all".
func kindsLabel(kinds diag.KindSet) string {
	if kinds == diag.AllKinds {
		return "all"
	}
	return kinds.String()
}
