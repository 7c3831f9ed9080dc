package services

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ctxexport/internal/adapters/driven/config/file"
	"github.com/custodia-labs/ctxexport/internal/core/domain"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func configFile(t *testing.T, content string) *file.ConfigStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ctxexport.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	store, err := file.NewConfigStore(path)
	require.NoError(t, err)
	return store
}

func TestSettingsService_DefaultsToBalanced(t *testing.T) {
	svc := NewSettingsService(nil, envMap(nil))

	cfg, err := svc.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultExportConfig(), *cfg)
}

func TestSettingsService_ProfileFromFileAndEnv(t *testing.T) {
	store := configFile(t, `profile = "fast"`)

	cfg, err := NewSettingsService(store, envMap(nil)).Resolve("")
	require.NoError(t, err)
	assert.Equal(t, domain.ProfileFast, cfg.Profile)

	cfg, err = NewSettingsService(store, envMap(map[string]string{"EXPORTER_PROFILE": "conservative"})).Resolve("")
	require.NoError(t, err)
	assert.Equal(t, domain.ProfileConservative, cfg.Profile)

	cfg, err = NewSettingsService(store, envMap(map[string]string{"EXPORTER_PROFILE": "conservative"})).Resolve(domain.ProfileBalanced)
	require.NoError(t, err)
	assert.Equal(t, domain.ProfileBalanced, cfg.Profile)
}

func TestSettingsService_Layering(t *testing.T) {
	store := configFile(t, `
[retry]
max_retries = 4
initial_delay = "2s"
retry_on_status_codes = [503]

[rate_limit]
requests_per_second = 3.5

[batch]
max_concurrent_requests = 8

[output]
format = "markdown"
`)
	env := envMap(map[string]string{
		"EXPORTER_RETRY_MAX_RETRIES":               "6",
		"EXPORTER_CACHE_ENABLED":                   "false",
		"EXPORTER_CIRCUIT_BREAKER_COOLDOWN_PERIOD": "90",
		"EXPORTER_CHECKPOINT_BACKEND":              "sqlite",
	})

	cfg, err := NewSettingsService(store, env).Resolve(domain.ProfileBalanced)
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Retry.MaxRetries, "env beats file")
	assert.Equal(t, 2*time.Second, cfg.Retry.InitialDelay)
	assert.Equal(t, []int{503}, cfg.Retry.RetryOnStatusCodes)
	assert.InDelta(t, 3.5, cfg.RateLimit.RequestsPerSecond, 1e-9)
	assert.Equal(t, 8, cfg.Batch.Workers)
	assert.Equal(t, domain.OutputMarkdown, cfg.Output.Format)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 90*time.Second, cfg.CircuitBreaker.CooldownPeriod)
	assert.Equal(t, domain.CheckpointBackendSQLite, cfg.Checkpoint.Backend)
	assert.Equal(t, 20, cfg.RateLimit.BurstSize, "untouched keys keep profile values")
}

func TestSettingsService_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unparseable int", map[string]string{"EXPORTER_RETRY_MAX_RETRIES": "many"}},
		{"unparseable duration", map[string]string{"EXPORTER_CACHE_TTL": "soon"}},
		{"unknown profile", map[string]string{"EXPORTER_PROFILE": "reckless"}},
		{"zero rate", map[string]string{"EXPORTER_RATE_LIMIT_REQUESTS_PER_SECOND": "0"}},
		{"max below initial", map[string]string{"EXPORTER_RETRY_MAX_DELAY": "100ms"}},
		{"bad status", map[string]string{"EXPORTER_RETRY_RETRY_ON_STATUS_CODES": "200,503"}},
		{"bad backend", map[string]string{"EXPORTER_CHECKPOINT_BACKEND": "redis"}},
		{"bad log level", map[string]string{"EXPORTER_LOGGING_LEVEL": "trace"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSettingsService(nil, envMap(tt.env)).Resolve("")
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestSettingsService_Validate(t *testing.T) {
	svc := NewSettingsService(nil, envMap(nil))
	cfg := domain.DefaultExportConfig()
	require.NoError(t, svc.Validate(&cfg))

	cfg.Batch.Workers = 0
	assert.ErrorIs(t, svc.Validate(&cfg), domain.ErrInvalidInput)

	cfg = domain.DefaultExportConfig()
	cfg.Checkpoint.Dir = ""
	assert.ErrorIs(t, svc.Validate(&cfg), domain.ErrInvalidInput)

	cfg.Checkpoint.Enabled = false
	assert.NoError(t, svc.Validate(&cfg))
}

func TestSettingsService_Profiles(t *testing.T) {
	profiles := NewSettingsService(nil, envMap(nil)).Profiles()
	require.Len(t, profiles, 3)
	assert.Equal(t, domain.ProfileFast, profiles[0].Profile)
	assert.Equal(t, 2, profiles[0].Config.Retry.MaxRetries)
	assert.Equal(t, 5, profiles[2].Config.Retry.MaxRetries)
	assert.NotEmpty(t, profiles[1].Description)
}

func TestSettingsService_CredentialsAndEndpoints(t *testing.T) {
	svc := NewSettingsService(nil, envMap(map[string]string{
		EnvUsername:      "me@example.com",
		EnvToken:         " secret ",
		EnvConfluenceURL: "https://example.atlassian.net/wiki/",
	}))

	creds := svc.Credentials()
	assert.Equal(t, "me@example.com", creds.Username)
	assert.Equal(t, "secret", creds.Token)
	assert.Equal(t, domain.AuthMethodBasic, creds.Method())

	ep := svc.Endpoints()
	assert.Equal(t, "https://example.atlassian.net/wiki", ep.ConfluenceURL)
	assert.Empty(t, ep.JiraURL)

	bearer := NewSettingsService(nil, envMap(map[string]string{
		EnvUsername: "me@example.com",
		EnvToken:    "pat",
		EnvAuth:     "Bearer",
	}))
	assert.Equal(t, domain.AuthMethodBearer, bearer.Credentials().Method())
}
