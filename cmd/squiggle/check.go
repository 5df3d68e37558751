package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"squiggle/internal/config"
	"squiggle/internal/decor"
	"squiggle/internal/observ"
	"squiggle/internal/pipeline"
	"squiggle/internal/render"
)

var checkCmd = &cobra.Command{
	Use:   "check [flags] <file>",
	Short: "Print the decorations of a source file",
	Long:  `Run one decoration pass over a file and print the result. Exits with status 1 when any error decoration is present`,
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().String("format", "pretty", "output format (pretty|json|msgpack|short)")
	checkCmd.Flags().StringSlice("suppress", nil, "suppressed line ranges, e.g. 3 or 10-14 (repeatable)")
	checkCmd.Flags().String("path-mode", "auto", "how to print paths (auto|absolute|relative|basename)")
	checkCmd.Flags().Int("width", 0, "truncate source excerpts to this many columns (0 = unlimited)")
}

type checkOptions struct {
	format   render.Format
	suppress []string
	pathMode render.PathMode
	baseDir  string
	color    bool
	width    int
	stderr   io.Writer
	timer    *observ.Timer
}

func runCheck(cmd *cobra.Command, args []string) error {
	path := args[0]

	formatStr, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	format, err := render.ParseFormat(formatStr)
	if err != nil {
		return err
	}
	suppressed, err := cmd.Flags().GetStringSlice("suppress")
	if err != nil {
		return fmt.Errorf("failed to get suppress flag: %w", err)
	}
	pathModeStr, err := cmd.Flags().GetString("path-mode")
	if err != nil {
		return fmt.Errorf("failed to get path-mode flag: %w", err)
	}
	pathMode, err := parsePathMode(pathModeStr)
	if err != nil {
		return err
	}
	width, err := cmd.Flags().GetInt("width")
	if err != nil {
		return fmt.Errorf("failed to get width flag: %w", err)
	}
	colorOn, err := useColor(cmd, os.Stdout)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd, workingDir(path))
	if err != nil {
		return err
	}
	showTimings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}

	opts := checkOptions{
		format:   format,
		suppress: suppressed,
		pathMode: pathMode,
		baseDir:  cwd,
		color:    colorOn,
		width:    width,
		stderr:   cmd.ErrOrStderr(),
	}
	if showTimings {
		opts.timer = observ.NewTimer()
	}
	errs, err := checkFile(cmd.Context(), cfg, path, opts, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if opts.timer != nil {
		if err := opts.timer.Write(cmd.ErrOrStderr()); err != nil {
			return err
		}
	}
	if errs > 0 {
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true
		return errFindings
	}
	return nil
}

// checkFile runs one pass over path, writes the decorations to out and
// returns how many of them render as errors.
func checkFile(ctx context.Context, cfg config.Config, path string, opts checkOptions, out io.Writer) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := newSession(ctx, cfg)
	if err != nil {
		return 0, err
	}
	defer s.Close()

	track := func(string) func(string) { return func(string) {} }
	if opts.timer != nil {
		track = opts.timer.Track
	}

	done := track("load")
	snap, err := s.dir.Load(path)
	if err != nil {
		return 0, err
	}
	done(fmt.Sprintf("%d bytes", snap.Len()))
	doc := snap.Document()

	if len(opts.suppress) > 0 {
		set, err := parseLineRanges(opts.suppress, snap)
		if err != nil {
			return 0, err
		}
		s.provider.AttachSuppressed(doc, set)
	}

	src, err := s.provider.Subscribe(doc, s.provider.Kinds(), nil)
	if err != nil {
		return 0, err
	}
	defer src.Release()

	done = track("analyze")
	if err := s.analyze(ctx, snap); err != nil {
		return 0, fmt.Errorf("analyze %s: %w", path, err)
	}
	done(s.cfg.Mode)
	done = track("refresh")
	if err := refresh(ctx, src); err != nil {
		return 0, err
	}
	done("")

	set := decor.Set{Snapshot: snap, Items: src.GetDecorations(snap, nil)}
	status := src.Status()
	for _, st := range status {
		if opts.timer != nil {
			opts.timer.Record("fetch "+st.Kind.String(), st.Elapsed, st.Outcome.String())
		}
		if st.Degraded() && opts.stderr != nil {
			fmt.Fprintf(opts.stderr, "warning: %s decorations unavailable: %v\n", st.Kind, st.Err)
		}
	}
	done = track("render")
	if err := writeSet(out, set, status, opts); err != nil {
		return 0, err
	}
	done(opts.format.String())
	return countErrors(set), nil
}

func writeSet(out io.Writer, set decor.Set, status []pipeline.KindStatus, opts checkOptions) error {
	pretty := render.PrettyOpts{
		Color:    opts.color,
		PathMode: opts.pathMode,
		BaseDir:  opts.baseDir,
		Width:    opts.width,
	}
	report := render.ReportOpts{PathMode: opts.pathMode, BaseDir: opts.baseDir}
	switch opts.format {
	case render.FormatJSON:
		return render.JSON(out, render.BuildReport(set, kindReports(status), report))
	case render.FormatMsgpack:
		return render.Msgpack(out, render.BuildReport(set, kindReports(status), report))
	case render.FormatShort:
		return render.Short(out, set, pretty)
	default:
		return render.Pretty(out, set, pretty)
	}
}

func countErrors(set decor.Set) int {
	n := 0
	for _, d := range set.Items {
		if d.Payload.Render == decor.RenderError && !d.Payload.Suppressed {
			n++
		}
	}
	return n
}

func parsePathMode(s string) (render.PathMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return render.PathModeAuto, nil
	case "absolute", "abs":
		return render.PathModeAbsolute, nil
	case "relative", "rel":
		return render.PathModeRelative, nil
	case "basename", "base":
		return render.PathModeBasename, nil
	}
	return 0, fmt.Errorf("invalid --path-mode value %q (expected auto|absolute|relative|basename)", s)
}
