package connectors

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/ctxexport/internal/connectors/atlassian"
	"github.com/custodia-labs/ctxexport/internal/connectors/confluence"
	"github.com/custodia-labs/ctxexport/internal/connectors/jira"
	"github.com/custodia-labs/ctxexport/internal/core/domain"
	"github.com/custodia-labs/ctxexport/internal/core/ports/driven"
	"github.com/custodia-labs/ctxexport/internal/resilience"
)

// Ensure Factory implements the interface.
var _ driven.ConnectorFactory = (*Factory)(nil)

// Factory builds resilient connectors from endpoints and credentials.
type Factory struct {
	endpoints   domain.Endpoints
	credentials domain.Credentials
	version     string
	opts        []resilience.Option

	mu      sync.Mutex
	clients map[domain.SourceKind]*resilience.Client
	cache   *resilience.ResponseCache
}

// NewFactory creates a connector factory.
// Extra options are applied to every resilience client it builds.
func NewFactory(endpoints domain.Endpoints, creds domain.Credentials, version string, opts ...resilience.Option) *Factory {
	return &Factory{
		endpoints:   endpoints,
		credentials: creds,
		version:     version,
		opts:        opts,
		clients:     make(map[domain.SourceKind]*resilience.Client),
	}
}

// Available returns the upstreams with a configured base URL.
func (f *Factory) Available() []domain.SourceKind {
	return f.endpoints.Enabled()
}

// Endpoint returns the configured base URL for kind.
func (f *Factory) Endpoint(kind domain.SourceKind) string {
	return f.endpoints.URL(kind)
}

// Create builds one connector per kind.
func (f *Factory) Create(ctx context.Context, cfg domain.ExportConfig, kinds []domain.SourceKind) ([]driven.Connector, error) {
	if f.credentials.IsZero() {
		return nil, fmt.Errorf("%w: set ATLASSIAN_API_TOKEN", domain.ErrAuthRequired)
	}

	var cache *resilience.ResponseCache
	if cfg.Cache.Enabled {
		var err error
		cache, err = resilience.NewResponseCache(cfg.Cache)
		if err != nil {
			return nil, err
		}
		go cache.Run(ctx, cfg.Cache.CleanupInterval)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache = cache
	f.clients = make(map[domain.SourceKind]*resilience.Client)

	connectors := make([]driven.Connector, 0, len(kinds))
	for _, kind := range kinds {
		baseURL := f.endpoints.URL(kind)
		if baseURL == "" {
			return nil, fmt.Errorf("%w: no base url configured for %s", domain.ErrInvalidInput, kind)
		}

		transport, err := atlassian.NewTransport(atlassian.Config{
			BaseURL:     baseURL,
			Credentials: f.credentials,
			Timeouts:    cfg.Timeout,
			UserAgent:   "ctxexport/" + f.version,
		})
		if err != nil {
			return nil, fmt.Errorf("%s transport: %w", kind, err)
		}

		opts := append([]resilience.Option(nil), f.opts...)
		if cache != nil {
			opts = append(opts, resilience.WithCache(cache))
		}
		client := resilience.NewClient(transport, resilience.ClientConfig{
			Upstream:       kind.String(),
			Retry:          cfg.Retry,
			RateLimit:      cfg.RateLimit,
			CircuitBreaker: cfg.CircuitBreaker,
		}, opts...)
		f.clients[kind] = client

		switch kind {
		case domain.SourceConfluence:
			connectors = append(connectors, confluence.New(client, baseURL, cfg.Batch.ConfluencePageSize))
		case domain.SourceJira:
			connectors = append(connectors, jira.New(client, baseURL, cfg.Batch.JiraPageSize))
		default:
			return nil, fmt.Errorf("%w: source %q", domain.ErrUnsupportedType, kind)
		}
	}
	return connectors, nil
}

// UpstreamStats describes one upstream's resilience state after a run.
type UpstreamStats struct {
	Kind    domain.SourceKind
	Circuit domain.CircuitState
	Client  resilience.ClientStats
}

// Stats returns per-upstream counters and the shared cache statistics
// for the connectors built by the last Create.
func (f *Factory) Stats() ([]UpstreamStats, resilience.CacheStats) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []UpstreamStats
	for _, kind := range domain.AllSourceKinds() {
		c, ok := f.clients[kind]
		if !ok {
			continue
		}
		out = append(out, UpstreamStats{Kind: kind, Circuit: c.Breaker().State(), Client: c.Stats()})
	}
	var cs resilience.CacheStats
	if f.cache != nil {
		cs = f.cache.Stats()
	}
	return out, cs
}

// Health converts Stats into the domain view.
func (f *Factory) Health() domain.RunHealth {
	upstreams, cs := f.Stats()
	h := domain.RunHealth{CacheHits: cs.Hits, CacheMisses: cs.Misses}
	for _, u := range upstreams {
		h.Upstreams = append(h.Upstreams, domain.UpstreamHealth{
			Kind:       u.Kind,
			Circuit:    u.Circuit,
			Calls:      u.Client.Calls,
			Attempts:   u.Client.Attempts,
			Retries:    u.Client.Retries,
			Rejections: u.Client.CircuitRejections,
		})
	}
	return h
}
