package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/ctxexport/internal/core/domain"
)

func TestNewBar_Defaults(t *testing.T) {
	bar := NewBar(nil, nil)

	assert.Equal(t, domain.PhaseEnumerating, bar.Phase())
	assert.Contains(t, bar.View(), "enumerating")
}

func TestBar_View(t *testing.T) {
	bar := NewBar(nil, nil)
	bar.SetPhase(domain.PhaseFetching)
	bar.SetElapsed(90*time.Second + 400*time.Millisecond)
	bar.SetMessage("draining")
	bar.SetWidth(100)

	view := bar.View()
	assert.Contains(t, view, "fetching 1m30s draining")
	assert.Contains(t, view, "q: interrupt")
	assert.Contains(t, view, "esc: hide")
}
