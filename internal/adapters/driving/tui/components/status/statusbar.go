// Package status provides the status bar of the progress view.
package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/ctxexport/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/ctxexport/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/ctxexport/internal/core/domain"
)

// Bar shows the run phase, elapsed time and keybinding hints.
type Bar struct {
	styles  *styles.Styles
	keymap  *keymap.KeyMap
	phase   domain.RunPhase
	message string
	elapsed time.Duration
	width   int
}

// NewBar creates a new status bar component.
func NewBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	return &Bar{
		styles: s,
		keymap: km,
		phase:  domain.PhaseEnumerating,
		width:  80,
	}
}

// View renders the status bar.
func (s *Bar) View() string {
	left := s.renderLeft()
	right := s.renderRight()

	padding := s.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if padding < 1 {
		padding = 1
	}
	return s.styles.StatusBar.Width(s.width).Render(left + strings.Repeat(" ", padding) + right)
}

func (s *Bar) renderLeft() string {
	left := fmt.Sprintf("%s %s", s.phase, s.elapsed.Truncate(time.Second))
	if s.message != "" {
		left += " " + s.message
	}
	if s.phase == domain.PhaseInterrupted {
		return s.styles.Warning.Render(left)
	}
	return left
}

func (s *Bar) renderRight() string {
	bindings := s.keymap.ShortHelp()
	hints := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		hints = append(hints, fmt.Sprintf("%s: %s", h.Key, h.Desc))
	}
	return strings.Join(hints, " | ")
}

// SetPhase sets the run phase.
func (s *Bar) SetPhase(phase domain.RunPhase) {
	s.phase = phase
}

// Phase returns the run phase.
func (s *Bar) Phase() domain.RunPhase {
	return s.phase
}

// SetMessage sets a short note shown after the phase.
func (s *Bar) SetMessage(message string) {
	s.message = message
}

// SetElapsed sets the run time shown.
func (s *Bar) SetElapsed(d time.Duration) {
	s.elapsed = d
}

// SetWidth sets the status bar width.
func (s *Bar) SetWidth(width int) {
	s.width = width
}
