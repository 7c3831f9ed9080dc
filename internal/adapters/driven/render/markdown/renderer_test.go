package markdown

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ctxexport/internal/core/domain"
)

func TestRenderer(t *testing.T) {
	r := New()
	assert.Equal(t, domain.OutputMarkdown, r.Format())

	report := domain.ContainerReport{
		Label:     "Sprint42",
		Container: domain.Container{Kind: domain.SourceJira, Key: "OPS", Name: "Operations"},
		Results: []domain.FetchResult{{
			Item:    domain.WorkItem{ID: "OPS-1", Kind: domain.SourceJira, Container: "OPS"},
			Status:  domain.FetchSucceeded,
			Content: &domain.Content{Title: "OPS-1: First", Body: "hello", BodyFormat: domain.BodyText},
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, r.Render(context.Background(), report, &buf))
	assert.Contains(t, buf.String(), "# Sprint42: Jira Operations")
	assert.Contains(t, buf.String(), "## OPS-1: First\n\nhello")
}

func TestRenderer_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	err := New().Render(ctx, domain.ContainerReport{}, &buf)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, buf.Len())
}
