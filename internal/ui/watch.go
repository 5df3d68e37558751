// Package ui renders the live watch view.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"squiggle/internal/aggregate"
	"squiggle/internal/decor"
	"squiggle/internal/pipeline"
	"squiggle/internal/render"
)

// KindLine is one kind's row in the status table.
type KindLine struct {
	Kind        string
	State       pipeline.State
	Outcome     aggregate.Outcome
	Decorations int
	Skipped     int
	Err         string
}

// Line is one decoration.
type Line struct {
	Render  decor.RenderKind
	Pos     string
	Code    string
	Message string
}

// Frame is everything the view shows at one moment.
type Frame struct {
	Title    string
	Snapshot string
	Kinds    []KindLine
	Lines    []Line
}

// NewFrame captures set and status for display.
func NewFrame(title string, set decor.Set, status []pipeline.KindStatus) Frame {
	f := Frame{Title: title}
	if set.Snapshot != nil {
		f.Snapshot = fmt.Sprintf("v%d", set.Snapshot.Version())
	}
	for _, st := range status {
		kl := KindLine{
			Kind:        st.Kind.String(),
			State:       st.State,
			Outcome:     st.Outcome,
			Decorations: st.Decorations,
			Skipped:     st.Skipped,
		}
		if st.Err != nil {
			kl.Err = st.Err.Error()
		}
		f.Kinds = append(f.Kinds, kl)
	}
	for _, d := range render.Sorted(set.Items) {
		pos := set.Snapshot.Resolve(d.Span.Start)
		f.Lines = append(f.Lines, Line{
			Render:  d.Payload.Render,
			Pos:     fmt.Sprintf("%d:%d", pos.Line, pos.Col),
			Code:    d.Payload.Code.ID(),
			Message: d.Payload.Message,
		})
	}
	return f
}

// busy reports whether any kind is scheduled or fetching.
func (f Frame) busy() bool {
	for _, k := range f.Kinds {
		if k.State != pipeline.StateIdle {
			return true
		}
	}
	return false
}

func (f Frame) settled() float64 {
	if len(f.Kinds) == 0 {
		return 1
	}
	n := 0
	for _, k := range f.Kinds {
		if k.State == pipeline.StateIdle {
			n++
		}
	}
	return float64(n) / float64(len(f.Kinds))
}

type watchModel struct {
	frames  <-chan Frame
	spinner spinner.Model
	prog    progress.Model
	frame   Frame
	width   int
	done    bool
}

type frameMsg Frame
type doneMsg struct{}

// NewWatchModel returns a Bubble Tea model that shows the latest frame from
// frames until the channel closes or the user quits.
func NewWatchModel(title string, frames <-chan Frame) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	return &watchModel{
		frames:  frames,
		spinner: sp,
		prog:    prog,
		frame:   Frame{Title: title},
		width:   80,
	}
}

func (m *watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listen())
}

func (m *watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case frameMsg:
		m.frame = Frame(msg)
		return m, tea.Batch(m.prog.SetPercent(m.frame.settled()), m.listen())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.done = true
			return m, tea.Quit
		}
		return m, nil
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case progress.FrameMsg:
		progressModel, cmd := m.prog.Update(msg)
		m.prog = progressModel.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *watchModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := m.frame.Title
	if m.frame.Snapshot != "" {
		header = fmt.Sprintf("%s @ %s", header, m.frame.Snapshot)
	}
	switch {
	case m.done:
		header = "stopped: " + header
	case m.frame.busy():
		header = fmt.Sprintf("%s %s", m.spinner.View(), header)
	default:
		header = "  " + header
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	for _, k := range m.frame.Kinds {
		status := statusLabel(k)
		line := fmt.Sprintf("  %s %-16s %3d", styleStatus(status).Render(fmt.Sprintf("%10s", status)), k.Kind, k.Decorations)
		if k.Skipped > 0 {
			line += fmt.Sprintf("  (%d skipped)", k.Skipped)
		}
		if k.Err != "" {
			line += "  " + truncate(k.Err, m.width-len(line)-2)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	msgWidth := max(m.width-28, 20)
	for _, l := range m.frame.Lines {
		label := styleRender(l.Render).Render(fmt.Sprintf("%-7s", l.Render))
		fmt.Fprintf(&b, "  %s %-8s %-7s %s\n", label, l.Pos, l.Code, truncate(l.Message, msgWidth))
	}
	if len(m.frame.Lines) == 0 {
		b.WriteString(lipgloss.NewStyle().Faint(true).Render("  no decorations"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")
	return b.String()
}

func (m *watchModel) listen() tea.Cmd {
	return func() tea.Msg {
		f, ok := <-m.frames
		if !ok {
			return doneMsg{}
		}
		return frameMsg(f)
	}
}

func statusLabel(k KindLine) string {
	if k.State != pipeline.StateIdle {
		return k.State.String()
	}
	if k.Outcome == aggregate.OutcomeFailed {
		return "failed"
	}
	return "ok"
}

func styleStatus(status string) lipgloss.Style {
	switch status {
	case "ok":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case "failed":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case "scheduled", "fetching":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	}
}

func styleRender(k decor.RenderKind) lipgloss.Style {
	switch k {
	case decor.RenderError:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case decor.RenderWarning:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	case decor.RenderInfo:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	default:
		return lipgloss.NewStyle().Faint(true)
	}
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width-3, "...")
}
