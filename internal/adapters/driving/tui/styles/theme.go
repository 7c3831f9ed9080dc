// Package styles provides colours and styles for the progress view.
package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/ctxexport/internal/core/domain"
)

// Theme defines the colour palette.
type Theme struct {
	// Primary is the accent used for titles and the progress bar.
	Primary lipgloss.Color

	// Secondary is the accent used for the spinner.
	Secondary lipgloss.Color

	// Foreground is the default text colour.
	Foreground lipgloss.Color

	// Muted is for hints and timestamps.
	Muted lipgloss.Color

	// Success marks succeeded items and closed circuits.
	Success lipgloss.Color

	// Warning marks skipped items and half-open circuits.
	Warning lipgloss.Color

	// Error marks failures and open circuits.
	Error lipgloss.Color

	// Border is the status bar background.
	Border lipgloss.Color
}

// DefaultTheme returns the default colour theme.
func DefaultTheme() *Theme {
	return &Theme{
		Primary:    lipgloss.Color("#2684FF"), // Blue
		Secondary:  lipgloss.Color("#06B6D4"), // Cyan
		Foreground: lipgloss.Color("#CDD6F4"), // Light gray
		Muted:      lipgloss.Color("#6C7086"), // Medium gray
		Success:    lipgloss.Color("#A6E3A1"), // Green
		Warning:    lipgloss.Color("#F9E2AF"), // Yellow
		Error:      lipgloss.Color("#F38BA8"), // Red
		Border:     lipgloss.Color("#313244"), // Dark gray
	}
}

// Styles contains pre-configured lipgloss styles.
type Styles struct {
	theme *Theme

	Title     lipgloss.Style
	Label     lipgloss.Style
	Normal    lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	StatusBar lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(theme *Theme) *Styles {
	if theme == nil {
		theme = DefaultTheme()
	}

	return &Styles{
		theme: theme,

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Primary),

		Label: lipgloss.NewStyle().
			Width(12).
			Foreground(theme.Muted),

		Normal: lipgloss.NewStyle().
			Foreground(theme.Foreground),

		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted),

		Success: lipgloss.NewStyle().
			Foreground(theme.Success),

		Warning: lipgloss.NewStyle().
			Foreground(theme.Warning),

		Error: lipgloss.NewStyle().
			Foreground(theme.Error),

		StatusBar: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Background(theme.Border).
			Padding(0, 1),
	}
}

// DefaultStyles returns styles with the default theme.
func DefaultStyles() *Styles {
	return NewStyles(DefaultTheme())
}

// Theme returns the theme used by these styles.
func (s *Styles) Theme() *Theme {
	return s.theme
}

// Circuit returns the style for a breaker state.
func (s *Styles) Circuit(state domain.CircuitState) lipgloss.Style {
	switch state {
	case domain.CircuitOpen:
		return s.Error
	case domain.CircuitHalfOpen:
		return s.Warning
	default:
		return s.Success
	}
}

// Status returns the style for an item outcome.
func (s *Styles) Status(status domain.FetchStatus) lipgloss.Style {
	switch status {
	case domain.FetchFailed:
		return s.Error
	case domain.FetchSkipped:
		return s.Warning
	default:
		return s.Success
	}
}
