package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"squiggle/internal/decor"
	"squiggle/internal/pipeline"
	"squiggle/internal/render"
	"squiggle/internal/source"
	"squiggle/internal/trace"
	"squiggle/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:   "watch [flags] <file>",
	Short: "Keep the decorations of a file current while it changes on disk",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().String("ui", "auto", "interactive view (auto|on|off)")
}

type uiMode string

const (
	uiModeAuto uiMode = "auto"
	uiModeOn   uiMode = "on"
	uiModeOff  uiMode = "off"
)

func readUIMode(value string) (uiMode, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		return uiModeAuto, nil
	case "on":
		return uiModeOn, nil
	case "off", "plain":
		return uiModeOff, nil
	default:
		return "", fmt.Errorf("invalid --ui value %q (expected auto|on|off)", value)
	}
}

func shouldUseTUI(mode uiMode) bool {
	switch mode {
	case uiModeOn:
		return true
	case uiModeOff:
		return false
	default:
		return isTerminal(os.Stdout)
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve %q: %w", args[0], err)
	}
	modeStr, err := cmd.Flags().GetString("ui")
	if err != nil {
		return fmt.Errorf("failed to get ui flag: %w", err)
	}
	mode, err := readUIMode(modeStr)
	if err != nil {
		return err
	}
	colorOn, err := useColor(cmd, os.Stdout)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd, filepath.Dir(path))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	s, err := newSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	w, err := newWatcher(s, path)
	if err != nil {
		return err
	}
	defer w.Close()

	src, err := s.provider.Subscribe(w.doc, s.provider.Kinds(), nil)
	if err != nil {
		return err
	}
	defer src.Release()
	s.track()
	if snap, ok := s.dir.CurrentSnapshot(w.doc); ok && s.service != nil {
		s.service.Schedule(snap)
	}

	go w.run(ctx)

	if shouldUseTUI(mode) {
		return watchTUI(ctx, s, src, w.doc)
	}
	out := cmd.OutOrStdout()
	opts := render.PrettyOpts{Color: colorOn, PathMode: render.PathModeAuto, BaseDir: filepath.Dir(path)}
	return watchPlain(ctx, s, src, w.doc, out, opts)
}

// currentSet reads the decorations of doc on its current snapshot. A closed
// document has none.
func currentSet(s *session, src *pipeline.Source, doc source.DocumentID) decor.Set {
	snap, ok := s.dir.CurrentSnapshot(doc)
	if !ok {
		return decor.Set{}
	}
	return decor.Set{Snapshot: snap, Items: src.GetDecorations(snap, nil)}
}

func watchPlain(ctx context.Context, s *session, src *pipeline.Source, doc source.DocumentID, out io.Writer, opts render.PrettyOpts) error {
	changed := make(chan struct{}, 1)
	unsubscribe := src.OnChanged(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	if err := refresh(ctx, src); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	show := func() error {
		set := currentSet(s, src, doc)
		if set.Snapshot == nil {
			_, err := fmt.Fprintf(out, "--- %s closed\n", doc)
			return err
		}
		if _, err := fmt.Fprintf(out, "--- %s (%d decorations)\n", set.Snapshot, len(set.Items)); err != nil {
			return err
		}
		return render.Short(out, set, opts)
	}
	if err := show(); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
			if err := show(); err != nil {
				return err
			}
		}
	}
}

func watchTUI(ctx context.Context, s *session, src *pipeline.Source, doc source.DocumentID) error {
	frames := make(chan ui.Frame, 1)
	var mu sync.Mutex
	closed := false
	push := func() {
		f := ui.NewFrame(string(doc), currentSet(s, src, doc), src.Status())
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		// старый кадр заменяется новым
		select {
		case <-frames:
		default:
		}
		frames <- f
	}
	unsubscribe := src.OnChanged(push)
	defer unsubscribe()

	program := tea.NewProgram(ui.NewWatchModel(string(doc), frames), tea.WithContext(ctx))
	go func() {
		if err := refresh(ctx, src); err != nil && !errors.Is(err, context.Canceled) {
			trace.Error(s.tracer, trace.ScopeSession, "refresh-failed", err.Error(), nil)
		}
		push()
	}()

	_, err := program.Run()
	mu.Lock()
	closed = true
	close(frames)
	mu.Unlock()
	if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// fileWatcher mirrors one file on disk into the directory.
type fileWatcher struct {
	s      *session
	path   string
	doc    source.DocumentID
	notify *fsnotify.Watcher
}

func newWatcher(s *session, path string) (*fileWatcher, error) {
	snap, err := s.dir.Load(path)
	if err != nil {
		return nil, err
	}
	nw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	// каталог, а не файл: редакторы сохраняют через rename
	if err := nw.Add(filepath.Dir(path)); err != nil {
		_ = nw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}
	return &fileWatcher{s: s, path: path, doc: snap.Document(), notify: nw}, nil
}

func (w *fileWatcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.notify.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			w.handle(ev)
		case err, ok := <-w.notify.Errors:
			if !ok {
				return
			}
			trace.Error(w.s.tracer, trace.ScopeSession, "watch-error", err.Error(), map[string]string{"path": w.path})
		}
	}
}

func (w *fileWatcher) handle(ev fsnotify.Event) {
	switch {
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		if _, err := os.Stat(w.path); errors.Is(err, os.ErrNotExist) {
			w.s.dir.Close(w.doc)
			return
		}
		w.reload()
	case ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create):
		w.reload()
	}
}

func (w *fileWatcher) reload() {
	// #nosec G304 -- path is the watched file given on the command line
	content, err := os.ReadFile(w.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			trace.Error(w.s.tracer, trace.ScopeSession, "reload-failed", err.Error(), map[string]string{"path": w.path})
		}
		return
	}
	content = source.Normalize(content)
	if !w.s.dir.IsOpen(w.doc) {
		w.s.dir.Open(w.doc, content)
		return
	}
	if _, err := w.s.dir.Replace(w.doc, content); err != nil {
		trace.Error(w.s.tracer, trace.ScopeSession, "reload-failed", err.Error(), map[string]string{"path": w.path})
	}
}

func (w *fileWatcher) Close() error {
	return w.notify.Close()
}
