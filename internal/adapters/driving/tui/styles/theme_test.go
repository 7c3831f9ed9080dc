package styles

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ctxexport/internal/core/domain"
)

func TestDefaultTheme_ColoursAreDistinct(t *testing.T) {
	theme := DefaultTheme()

	seen := make(map[lipgloss.Color]bool)
	for _, c := range []lipgloss.Color{theme.Primary, theme.Secondary, theme.Success, theme.Warning, theme.Error} {
		assert.NotEmpty(t, string(c))
		assert.False(t, seen[c], "duplicate colour %s", c)
		seen[c] = true
	}
}

func TestNewStyles_NilTheme(t *testing.T) {
	s := NewStyles(nil)

	require.NotNil(t, s)
	assert.NotNil(t, s.Theme())
}

func TestStyles_Circuit(t *testing.T) {
	s := DefaultStyles()
	theme := s.Theme()

	assert.Equal(t, lipgloss.TerminalColor(theme.Success), s.Circuit(domain.CircuitClosed).GetForeground())
	assert.Equal(t, lipgloss.TerminalColor(theme.Warning), s.Circuit(domain.CircuitHalfOpen).GetForeground())
	assert.Equal(t, lipgloss.TerminalColor(theme.Error), s.Circuit(domain.CircuitOpen).GetForeground())
}

func TestStyles_Status(t *testing.T) {
	s := DefaultStyles()
	theme := s.Theme()

	assert.Equal(t, lipgloss.TerminalColor(theme.Success), s.Status(domain.FetchSucceeded).GetForeground())
	assert.Equal(t, lipgloss.TerminalColor(theme.Warning), s.Status(domain.FetchSkipped).GetForeground())
	assert.Equal(t, lipgloss.TerminalColor(theme.Error), s.Status(domain.FetchFailed).GetForeground())
}
