// Package tui renders live export progress with Bubbletea.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/ctxexport/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/ctxexport/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/ctxexport/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/ctxexport/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/ctxexport/internal/core/domain"
	"github.com/custodia-labs/ctxexport/internal/core/ports/driving"
)

// ExportFunc runs an export, reporting progress through the given callback.
type ExportFunc func(ctx context.Context, progress driving.ProgressFunc) (*domain.ExportSummary, error)

// Model is the progress view following the Elm architecture.
type Model struct {
	styles    *styles.Styles
	keys      *keymap.KeyMap
	spinner   spinner.Model
	bar       progress.Model
	statusBar *status.Bar

	label     string
	runID     string
	phase     domain.RunPhase
	total     int
	done      int
	failed    int
	skipped   int
	lastItem  string
	lastError string
	message   string

	interrupt    context.CancelFunc
	interrupting bool
	start        time.Time
	now          func() time.Time

	summary  *domain.ExportSummary
	err      error
	finished bool
}

// Ensure Model implements tea.Model.
var _ tea.Model = (*Model)(nil)

// NewModel creates a progress view. interrupt is called when the user asks to stop.
func NewModel(label string, interrupt context.CancelFunc) *Model {
	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = sp.Style.Foreground(s.Theme().Secondary)

	return &Model{
		styles:    s,
		keys:      km,
		spinner:   sp,
		bar:       progress.New(progress.WithSolidFill(string(s.Theme().Primary)), progress.WithWidth(50)),
		statusBar: status.NewBar(s, km),
		label:     label,
		phase:     domain.PhaseEnumerating,
		interrupt: interrupt,
		start:     time.Now(),
		now:       time.Now,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.bar.Width = min(max(msg.Width-20, 10), 80)
		m.statusBar.SetWidth(msg.Width)
		return m, nil

	case messages.Progress:
		m.apply(msg.Event)
		return m, nil

	case messages.Finished:
		m.finished = true
		m.summary = msg.Summary
		m.err = msg.Err
		if msg.Summary != nil {
			m.phase = msg.Summary.Phase
			m.statusBar.SetPhase(m.phase)
		}
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.statusBar.SetElapsed(m.now().Sub(m.start))
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Interrupt):
		if m.interrupting {
			return m, tea.Quit
		}
		m.interrupting = true
		m.message = "interrupting: waiting for in-flight fetches (press again to hide)"
		m.statusBar.SetMessage("draining")
		if m.interrupt != nil {
			m.interrupt()
		}
		return m, nil
	case key.Matches(msg, m.keys.Detach):
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) apply(ev domain.ProgressEvent) {
	if ev.RunID != "" {
		m.runID = ev.RunID
	}
	if ev.Phase != "" {
		m.phase = ev.Phase
		m.statusBar.SetPhase(ev.Phase)
	}
	if ev.Total > 0 {
		m.total = ev.Total
		m.done = ev.Done
		m.failed = ev.Failed
	}
	if ev.Message != "" && !m.interrupting {
		m.message = ev.Message
	}
	if ev.Item == nil {
		return
	}
	m.lastItem = ev.Item.Key()
	switch ev.Status {
	case domain.FetchSkipped:
		m.skipped++
	case domain.FetchFailed:
		m.lastError = ev.Item.Key()
	}
}

// Percent returns the fraction of items resolved.
func (m *Model) Percent() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.done) / float64(m.total)
}

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder

	title := "Exporting " + m.label
	if m.runID != "" {
		title += " " + m.styles.Muted.Render("("+m.runID+")")
	}
	if m.finished {
		b.WriteString(m.styles.Title.Render(title) + "\n\n")
	} else {
		b.WriteString(m.spinner.View() + " " + m.styles.Title.Render(title) + "\n\n")
	}

	b.WriteString(m.bar.ViewAs(m.Percent()))
	fmt.Fprintf(&b, "  %d/%d\n\n", m.done, m.total)

	succeeded := m.done - m.failed - m.skipped
	if succeeded < 0 {
		succeeded = 0
	}
	m.row(&b, "succeeded", m.styles.Status(domain.FetchSucceeded).Render(fmt.Sprint(succeeded)))
	m.row(&b, "failed", m.styles.Status(domain.FetchFailed).Render(fmt.Sprint(m.failed)))
	m.row(&b, "skipped", m.styles.Status(domain.FetchSkipped).Render(fmt.Sprint(m.skipped)))
	if m.lastItem != "" {
		m.row(&b, "last item", m.styles.Normal.Render(m.lastItem))
	}
	if m.lastError != "" {
		m.row(&b, "last failure", m.styles.Error.Render(m.lastError))
	}
	if m.summary != nil {
		for _, u := range m.summary.Upstreams {
			m.row(&b, u.Kind.Title(), m.styles.Circuit(u.Circuit).Render("circuit "+u.Circuit.String()))
		}
	}
	if m.message != "" {
		b.WriteString("\n" + m.styles.Muted.Render(m.message) + "\n")
	}

	b.WriteString("\n" + m.statusBar.View() + "\n")
	return b.String()
}

func (m *Model) row(b *strings.Builder, label, value string) {
	b.WriteString(m.styles.Label.Render(label) + value + "\n")
}

type outcome struct {
	summary *domain.ExportSummary
	err     error
}

// Run shows the progress view while export runs.
// Interrupting from the view cancels the export's context; Run still waits
// for the export to return so the checkpoint is saved.
func Run(ctx context.Context, label string, export ExportFunc, opts ...tea.ProgramOption) (*domain.ExportSummary, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := NewModel(label, cancel)
	p := tea.NewProgram(m, opts...)

	done := make(chan outcome, 1)
	go func() {
		summary, err := export(runCtx, func(ev domain.ProgressEvent) {
			p.Send(messages.Progress{Event: ev})
		})
		done <- outcome{summary: summary, err: err}
		p.Send(messages.Finished{Summary: summary, Err: err})
	}()

	_, viewErr := p.Run()
	if viewErr != nil && !errors.Is(viewErr, tea.ErrProgramKilled) {
		cancel()
	}
	res := <-done
	if viewErr != nil && !errors.Is(viewErr, tea.ErrProgramKilled) {
		return res.summary, errors.Join(res.err, fmt.Errorf("progress view: %w", viewErr))
	}
	return res.summary, res.err
}
