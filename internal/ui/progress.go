// Package ui renders export progress in the terminal.
package ui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"klibexport/internal/buildpipeline"
)

const statusWidth = 12

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	activeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	pendingStyle = lipgloss.NewStyle().Faint(true)
)

// klibRow is one input klib.
type klibRow struct {
	path     string
	stage    buildpipeline.Stage
	status   buildpipeline.Status
	loadTime time.Duration
	err      error
}

func (r *klibRow) finished() bool {
	return r.status == buildpipeline.StatusError ||
		(r.status == buildpipeline.StatusDone && r.stage == buildpipeline.StageEmit)
}

// fraction of the run this row has covered, stages weighted equally
func (r *klibRow) fraction() float64 {
	if r.finished() {
		return 1
	}
	i := r.stage.Index()
	if i < 0 || r.status == buildpipeline.StatusQueued {
		return 0
	}
	n := float64(len(buildpipeline.Stages))
	if r.status == buildpipeline.StatusDone {
		return float64(i+1) / n
	}
	return (float64(i) + 0.5) / n
}

func (r *klibRow) label() string {
	switch {
	case r.status == buildpipeline.StatusError:
		return "failed"
	case r.finished():
		return "done"
	case r.status == buildpipeline.StatusQueued || r.stage == "":
		return "queued"
	}
	return stageVerb(r.stage)
}

type progressModel struct {
	title   string
	events  <-chan buildpipeline.Event
	spinner spinner.Model
	bar     progress.Model
	rows    []klibRow
	byPath  map[string]int
	width   int
	done    bool
}

type eventMsg buildpipeline.Event
type closedMsg struct{}

// NewProgressModel renders one row per input klib until events is closed.
func NewProgressModel(title string, modules []string, events <-chan buildpipeline.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = activeStyle

	bar := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	bar.Width = 60

	m := &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		bar:     bar,
		rows:    make([]klibRow, len(modules)),
		byPath:  make(map[string]int, len(modules)),
		width:   80,
	}
	for i, p := range modules {
		m.rows[i] = klibRow{path: p, status: buildpipeline.StatusQueued}
		m.byPath[p] = i
	}
	return m
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.next())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		return m, tea.Batch(m.apply(buildpipeline.Event(msg)), m.next())
	case closedMsg:
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		// прерывание обрабатывает контекст команды
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
	case spinner.TickMsg:
		if !m.done {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.bar.Width = max(10, msg.Width-4)
		}
	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		m.bar = bar.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) next() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return closedMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) apply(ev buildpipeline.Event) tea.Cmd {
	i, ok := m.byPath[ev.Module]
	if !ok {
		return nil
	}
	row := &m.rows[i]
	if row.status == buildpipeline.StatusError {
		return nil
	}
	row.stage, row.status = ev.Stage, ev.Status
	switch {
	case ev.Status == buildpipeline.StatusError:
		row.err = ev.Err
	case ev.Stage == buildpipeline.StageLoad && ev.Status == buildpipeline.StatusDone:
		row.loadTime = ev.Elapsed
	}
	return m.bar.SetPercent(m.percent())
}

func (m *progressModel) percent() float64 {
	if len(m.rows) == 0 {
		return 0
	}
	var total float64
	for i := range m.rows {
		total += m.rows[i].fraction()
	}
	return total / float64(len(m.rows))
}

func (m *progressModel) View() string {
	var b strings.Builder
	head := m.spinner.View() + " " + m.title
	if m.done {
		head = "✓ " + m.title
	}
	b.WriteString(titleStyle.Render(head))
	b.WriteString("\n\n")

	nameWidth := max(20, m.width-statusWidth-14)
	for i := range m.rows {
		row := &m.rows[i]
		status := fmt.Sprintf("%*s", statusWidth, row.label())
		fmt.Fprintf(&b, "  %s %s", rowStyle(row).Render(status), fit(displayName(row.path), nameWidth))
		if row.loadTime > 0 {
			fmt.Fprintf(&b, " %s", pendingStyle.Render(fmt.Sprintf("%dms", row.loadTime.Milliseconds())))
		}
		b.WriteByte('\n')
		if row.err != nil {
			fmt.Fprintf(&b, "  %*s %s\n", statusWidth, "", errorStyle.Render(fit(row.err.Error(), nameWidth)))
		}
	}
	b.WriteByte('\n')
	if m.done {
		b.WriteString(m.bar.ViewAs(1))
	} else {
		b.WriteString(m.bar.View())
	}
	b.WriteByte('\n')
	return b.String()
}

func rowStyle(row *klibRow) lipgloss.Style {
	switch {
	case row.status == buildpipeline.StatusError:
		return errorStyle
	case row.finished():
		return doneStyle
	case row.status == buildpipeline.StatusQueued:
		return pendingStyle
	}
	return activeStyle
}

func stageVerb(stage buildpipeline.Stage) string {
	switch stage {
	case buildpipeline.StageLoad:
		return "loading"
	case buildpipeline.StageLink:
		return "linking"
	case buildpipeline.StageClassify:
		return "classifying"
	case buildpipeline.StageNames:
		return "naming"
	case buildpipeline.StageEmit:
		return "emitting"
	}
	return string(stage)
}

// displayName keeps the klib file name and its parent directory.
func displayName(path string) string {
	dir, file := filepath.Split(filepath.Clean(path))
	if parent := filepath.Base(dir); dir != "" && parent != "." && parent != string(filepath.Separator) {
		return filepath.Join(parent, file)
	}
	return file
}

func fit(value string, width int) string {
	if width <= 0 || runewidth.StringWidth(value) <= width {
		return value
	}
	return runewidth.Truncate(value, width, "…")
}
