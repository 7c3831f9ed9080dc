package connectors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ctxexport/internal/core/domain"
)

func TestFactory_Create(t *testing.T) {
	f := NewFactory(domain.Endpoints{
		ConfluenceURL: "https://example.atlassian.net/wiki",
		JiraURL:       "https://example.atlassian.net",
	}, domain.Credentials{Username: "me", Token: "t"}, "test")

	assert.Equal(t, []domain.SourceKind{domain.SourceConfluence, domain.SourceJira}, f.Available())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	conns, err := f.Create(ctx, domain.DefaultExportConfig(), f.Available())
	require.NoError(t, err)
	require.Len(t, conns, 2)
	assert.Equal(t, domain.SourceConfluence, conns[0].Kind())
	assert.Equal(t, domain.SourceJira, conns[1].Kind())

	stats, cache := f.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, domain.CircuitClosed, stats[0].Circuit)
	assert.Zero(t, cache.Hits)

	health := f.Health()
	require.Len(t, health.Upstreams, 2)
	assert.Equal(t, domain.SourceJira, health.Upstreams[1].Kind)
	assert.Zero(t, health.HitRatio())
}

func TestFactory_CreateErrors(t *testing.T) {
	f := NewFactory(domain.Endpoints{JiraURL: "https://example.atlassian.net"}, domain.Credentials{}, "test")
	_, err := f.Create(context.Background(), domain.DefaultExportConfig(), []domain.SourceKind{domain.SourceJira})
	assert.ErrorIs(t, err, domain.ErrAuthRequired)

	f = NewFactory(domain.Endpoints{JiraURL: "https://example.atlassian.net"}, domain.Credentials{Token: "t"}, "test")
	_, err = f.Create(context.Background(), domain.DefaultExportConfig(), []domain.SourceKind{domain.SourceConfluence})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
