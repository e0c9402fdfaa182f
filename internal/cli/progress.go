package cli

import (
	"context"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/ptflow-importer/internal/models"
	"github.com/raphaelgruber/ptflow-importer/internal/service"
)

// maxRecent is the number of skipped or failed items kept on screen.
const maxRecent = 5

// Theme holds the color scheme for the progress display and the report.
type Theme struct {
	Status     lipgloss.Color
	Success    lipgloss.Color
	Warning    lipgloss.Color
	Error      lipgloss.Color
	Hint       lipgloss.Color
	ProgressBg lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:     lipgloss.Color("#5FAFD7"), // light blue
	Success:    lipgloss.Color("#00D787"), // green
	Warning:    lipgloss.Color("#FFAF00"), // amber
	Error:      lipgloss.Color("#FF005F"), // red
	Hint:       lipgloss.Color("#6C6C6C"), // dim gray
	ProgressBg: lipgloss.Color("#3A3A3A"), // dark gray
}

// Style functions for dynamic theming
func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) warningStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Warning)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// itemMsg reports one processed row.
type itemMsg service.ItemEvent

// runDoneMsg is sent when the session returns.
type runDoneMsg struct {
	err error
}

// progressModel is the bubbletea model for a running session.
type progressModel struct {
	cancel   context.CancelFunc
	progress progress.Model
	theme    Theme

	index   int
	total   int
	current string

	succeeded   int
	skipped     int
	failed      int
	alreadyDone int
	recent      []string

	stopping bool
	done     bool
	err      error
}

// newProgressModel creates a new progress model. cancel stops the session
// after the item in flight.
func newProgressModel(cancel context.CancelFunc) progressModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return progressModel{
		cancel:   cancel,
		progress: prog,
		theme:    defaultTheme,
	}
}

// Init returns the initial command.
func (m progressModel) Init() tea.Cmd {
	return m.progress.Init()
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			// The session finishes the item in flight and then returns.
			if !m.stopping && m.cancel != nil {
				m.cancel()
			}
			m.stopping = true
			return m, nil
		}

	case itemMsg:
		m.apply(service.ItemEvent(msg))
		return m, nil

	case runDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *progressModel) apply(e service.ItemEvent) {
	m.index = e.Index
	m.total = e.Total
	m.current = e.ID

	if e.AlreadyDone {
		m.alreadyDone++
		return
	}

	switch e.Status {
	case models.StatusOK:
		m.succeeded++
		return
	case models.StatusSkipped:
		m.skipped++
	case models.StatusFailed:
		m.failed++
	}

	line := fmt.Sprintf("%s %s", e.Status, e.ID)
	if e.Reason != "" {
		line += ": " + e.Reason
	}
	m.recent = append(m.recent, line)
	if len(m.recent) > maxRecent {
		m.recent = m.recent[len(m.recent)-maxRecent:]
	}
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

// renderContent builds the display string.
func (m progressModel) renderContent() string {
	if m.done {
		return m.finalView()
	}

	if m.total == 0 {
		return "Loading outcome log...\n"
	}

	pct := float64(m.index) / float64(m.total)
	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.current))
	progressBar := m.progress.ViewAs(pct)
	counts := fmt.Sprintf("%d/%d exercises", m.index, m.total)

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s\n", status, progressBar, counts)
	fmt.Fprintf(&b, "%s  %s  %s  %s\n",
		m.theme.completedStyle().Render(fmt.Sprintf("%d ok", m.succeeded)),
		m.theme.warningStyle().Render(fmt.Sprintf("%d skipped", m.skipped)),
		m.theme.errorStyle().Render(fmt.Sprintf("%d failed", m.failed)),
		fmt.Sprintf("%d already done", m.alreadyDone))
	for _, line := range m.recent {
		fmt.Fprintf(&b, "  • %s\n", line)
	}

	hint := "Press Ctrl+C to stop after the current exercise"
	if m.stopping {
		hint = "Stopping after the current exercise..."
	}
	b.WriteString(m.theme.hintStyle().Render(hint) + "\n")
	return b.String()
}

// finalView renders the last frame. The report is printed after the UI exits.
func (m progressModel) finalView() string {
	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("✗ Session aborted: %s", m.err)) + "\n"
	}
	if m.stopping {
		return m.theme.hintStyle().Render("Session stopped.") + "\n"
	}
	return m.theme.completedStyle().Render("✓ Session finished") + "\n"
}

// runWithProgress runs the session in its own goroutine while p renders its
// events. It returns once the session has returned, even if the UI failed.
func runWithProgress(p *tea.Program, run func() (*service.Summary, error)) (*service.Summary, error) {
	type result struct {
		summary *service.Summary
		err     error
	}
	done := make(chan result, 1)

	go func() {
		summary, err := run()
		done <- result{summary, err}
		p.Send(runDoneMsg{err: err})
	}()

	if _, err := p.Run(); err != nil {
		warnf("progress UI error: %v", err)
	}

	r := <-done
	return r.summary, r.err
}
