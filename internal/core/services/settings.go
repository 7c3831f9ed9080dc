package services

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/custodia-labs/ctxexport/internal/core/domain"
	"github.com/custodia-labs/ctxexport/internal/core/ports/driven"
	"github.com/custodia-labs/ctxexport/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// EnvPrefix prefixes environment overrides: retry.max_retries is EXPORTER_RETRY_MAX_RETRIES.
const EnvPrefix = "EXPORTER_"

// Credential and endpoint environment variables.
//
//nolint:gosec // G101: These are variable names, not actual credentials.
const (
	EnvConfluenceURL = "CONFLUENCE_URL"
	EnvJiraURL       = "JIRA_URL"
	EnvUsername      = "ATLASSIAN_USERNAME"
	EnvToken         = "ATLASSIAN_API_TOKEN"
	EnvAuth          = "ATLASSIAN_AUTH"
)

// Config keys for settings storage.
const keyProfile = "profile"

// values is the read side shared by the config file and the environment.
type values interface {
	Get(key string) (any, bool)
	GetString(key string) string
	GetInt(key string) int
	GetFloat(key string) float64
	GetBool(key string) bool
	GetDuration(key string) time.Duration
	GetIntSlice(key string) []int
}

// binding maps one dotted key onto the config.
type binding struct {
	key   string
	apply func(cfg *domain.ExportConfig, v values, key string)
}

var bindings = []binding{
	{"retry.max_retries", func(c *domain.ExportConfig, v values, k string) { c.Retry.MaxRetries = v.GetInt(k) }},
	{"retry.initial_delay", func(c *domain.ExportConfig, v values, k string) { c.Retry.InitialDelay = v.GetDuration(k) }},
	{"retry.max_delay", func(c *domain.ExportConfig, v values, k string) { c.Retry.MaxDelay = v.GetDuration(k) }},
	{"retry.exponential_base", func(c *domain.ExportConfig, v values, k string) { c.Retry.ExponentialBase = v.GetFloat(k) }},
	{"retry.jitter", func(c *domain.ExportConfig, v values, k string) { c.Retry.Jitter = v.GetBool(k) }},
	{"retry.retry_on_status_codes", func(c *domain.ExportConfig, v values, k string) { c.Retry.RetryOnStatusCodes = v.GetIntSlice(k) }},
	{"rate_limit.requests_per_second", func(c *domain.ExportConfig, v values, k string) { c.RateLimit.RequestsPerSecond = v.GetFloat(k) }},
	{"rate_limit.burst_size", func(c *domain.ExportConfig, v values, k string) { c.RateLimit.BurstSize = v.GetInt(k) }},
	{"rate_limit.acquire_timeout", func(c *domain.ExportConfig, v values, k string) { c.RateLimit.AcquireTimeout = v.GetDuration(k) }},
	{"circuit_breaker.failure_threshold", func(c *domain.ExportConfig, v values, k string) { c.CircuitBreaker.FailureThreshold = v.GetInt(k) }},
	{"circuit_breaker.cooldown_period", func(c *domain.ExportConfig, v values, k string) { c.CircuitBreaker.CooldownPeriod = v.GetDuration(k) }},
	{"cache.enabled", func(c *domain.ExportConfig, v values, k string) { c.Cache.Enabled = v.GetBool(k) }},
	{"cache.ttl", func(c *domain.ExportConfig, v values, k string) { c.Cache.TTL = v.GetDuration(k) }},
	{"cache.max_size", func(c *domain.ExportConfig, v values, k string) { c.Cache.MaxSize = v.GetInt(k) }},
	{"cache.cleanup_interval", func(c *domain.ExportConfig, v values, k string) { c.Cache.CleanupInterval = v.GetDuration(k) }},
	{"timeout.connect_timeout", func(c *domain.ExportConfig, v values, k string) { c.Timeout.Connect = v.GetDuration(k) }},
	{"timeout.read_timeout", func(c *domain.ExportConfig, v values, k string) { c.Timeout.Read = v.GetDuration(k) }},
	{"batch.confluence_batch_size", func(c *domain.ExportConfig, v values, k string) { c.Batch.ConfluencePageSize = v.GetInt(k) }},
	{"batch.jira_batch_size", func(c *domain.ExportConfig, v values, k string) { c.Batch.JiraPageSize = v.GetInt(k) }},
	{"batch.max_concurrent_requests", func(c *domain.ExportConfig, v values, k string) { c.Batch.Workers = v.GetInt(k) }},
	{"checkpoint.enabled", func(c *domain.ExportConfig, v values, k string) { c.Checkpoint.Enabled = v.GetBool(k) }},
	{"checkpoint.checkpoint_dir", func(c *domain.ExportConfig, v values, k string) { c.Checkpoint.Dir = v.GetString(k) }},
	{"checkpoint.backend", func(c *domain.ExportConfig, v values, k string) {
		c.Checkpoint.Backend = domain.CheckpointBackend(v.GetString(k))
	}},
	{"checkpoint.retention", func(c *domain.ExportConfig, v values, k string) { c.Checkpoint.Retention = v.GetDuration(k) }},
	{"logging.level", func(c *domain.ExportConfig, v values, k string) { c.Logging.Level = strings.ToLower(v.GetString(k)) }},
	{"logging.format", func(c *domain.ExportConfig, v values, k string) { c.Logging.Format = strings.ToLower(v.GetString(k)) }},
	{"logging.log_file", func(c *domain.ExportConfig, v values, k string) { c.Logging.File = v.GetString(k) }},
	{"output.dir", func(c *domain.ExportConfig, v values, k string) { c.Output.Dir = v.GetString(k) }},
	{"output.format", func(c *domain.ExportConfig, v values, k string) { c.Output.Format = domain.OutputFormat(v.GetString(k)) }},
}

// SettingsService resolves configuration from profiles, the config file and the environment.
type SettingsService struct {
	configStore driven.ConfigStore
	getenv      func(string) string
	validate    *validator.Validate
}

// NewSettingsService creates a new settings service.
// configStore may be nil when no config file is used; getenv defaults to os.Getenv.
func NewSettingsService(configStore driven.ConfigStore, getenv func(string) string) *SettingsService {
	if getenv == nil {
		getenv = os.Getenv
	}
	return &SettingsService{
		configStore: configStore,
		getenv:      getenv,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Resolve layers profile defaults, the config file and EXPORTER_* overrides.
// An explicit profile wins over the one named in the file or environment.
func (s *SettingsService) Resolve(profile domain.Profile) (*domain.ExportConfig, error) {
	env := &envValues{getenv: s.getenv}

	if profile == "" {
		name := env.GetString(keyProfile)
		if name == "" && s.configStore != nil {
			name = s.configStore.GetString(keyProfile)
		}
		if name == "" {
			name = string(domain.ProfileBalanced)
		}
		p, err := domain.ParseProfile(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
		}
		profile = p
	}

	cfg, err := domain.ProfileConfig(profile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	if s.configStore != nil {
		apply(&cfg, s.configStore)
	}
	apply(&cfg, env)
	if len(env.errs) > 0 {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, errors.Join(env.errs...))
	}

	if err := s.Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func apply(cfg *domain.ExportConfig, v values) {
	for _, b := range bindings {
		if _, ok := v.Get(b.key); ok {
			b.apply(cfg, v, b.key)
		}
	}
}

// Validate checks field ranges and cross-field rules.
func (s *SettingsService) Validate(cfg *domain.ExportConfig) error {
	if !cfg.Profile.IsValid() {
		return fmt.Errorf("%w: profile %q", domain.ErrInvalidInput, cfg.Profile)
	}
	if err := s.validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	return nil
}

// Profiles returns every predefined profile with its settings.
func (s *SettingsService) Profiles() []driving.ProfileInfo {
	profiles := domain.AllProfiles()
	out := make([]driving.ProfileInfo, 0, len(profiles))
	for _, p := range profiles {
		cfg, err := domain.ProfileConfig(p)
		if err != nil {
			continue
		}
		out = append(out, driving.ProfileInfo{Profile: p, Description: p.Description(), Config: cfg})
	}
	return out
}

// Credentials returns the upstream credentials from the environment.
// ATLASSIAN_AUTH=bearer ignores the username and sends the token as a bearer token.
func (s *SettingsService) Credentials() domain.Credentials {
	creds := domain.Credentials{
		Username: strings.TrimSpace(s.getenv(EnvUsername)),
		Token:    strings.TrimSpace(s.getenv(EnvToken)),
	}
	if strings.EqualFold(strings.TrimSpace(s.getenv(EnvAuth)), string(domain.AuthMethodBearer)) {
		creds.Username = ""
	}
	return creds
}

// Endpoints returns the upstream base URLs from the environment.
func (s *SettingsService) Endpoints() domain.Endpoints {
	return domain.Endpoints{
		ConfluenceURL: strings.TrimRight(strings.TrimSpace(s.getenv(EnvConfluenceURL)), "/"),
		JiraURL:       strings.TrimRight(strings.TrimSpace(s.getenv(EnvJiraURL)), "/"),
	}
}

// envValues reads EXPORTER_* variables. Parse failures are collected in errs.
type envValues struct {
	getenv func(string) string
	errs   []error
}

func envName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func (e *envValues) lookup(key string) (string, bool) {
	v := strings.TrimSpace(e.getenv(envName(key)))
	return v, v != ""
}

func (e *envValues) fail(key, raw string, err error) {
	e.errs = append(e.errs, fmt.Errorf("%s=%q: %w", envName(key), raw, err))
}

func (e *envValues) Get(key string) (any, bool) {
	v, ok := e.lookup(key)
	return v, ok
}

func (e *envValues) GetString(key string) string {
	v, _ := e.lookup(key)
	return v
}

func (e *envValues) GetInt(key string) int {
	v, _ := e.lookup(key)
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, err)
	}
	return n
}

func (e *envValues) GetFloat(key string) float64 {
	v, _ := e.lookup(key)
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, v, err)
	}
	return f
}

func (e *envValues) GetBool(key string) bool {
	v, _ := e.lookup(key)
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, v, err)
	}
	return b
}

// GetDuration accepts "1m30s" or a number of seconds.
func (e *envValues) GetDuration(key string) time.Duration {
	v, _ := e.lookup(key)
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, v, fmt.Errorf("not a duration"))
		return 0
	}
	return time.Duration(f * float64(time.Second))
}

// GetIntSlice accepts a comma-separated list.
func (e *envValues) GetIntSlice(key string) []int {
	v, _ := e.lookup(key)
	var out []int
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			e.fail(key, v, err)
			return nil
		}
		out = append(out, n)
	}
	return out
}
