package domain

import (
	"fmt"
	"strings"
	"time"
)

const unknownDescription = "Unknown"

// Profile names a predefined set of resilience settings.
type Profile string

// Available profiles.
const (
	// ProfileFast trades reliability for speed and may hit rate limits.
	ProfileFast Profile = "fast"

	// ProfileBalanced suits most exports.
	ProfileBalanced Profile = "balanced"

	// ProfileConservative maximises reliability against fragile upstreams.
	ProfileConservative Profile = "conservative"
)

// AllProfiles returns the profiles in display order.
func AllProfiles() []Profile {
	return []Profile{ProfileFast, ProfileBalanced, ProfileConservative}
}

// IsValid returns true if the profile is recognised.
func (p Profile) IsValid() bool {
	switch p {
	case ProfileFast, ProfileBalanced, ProfileConservative:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (p Profile) String() string {
	return string(p)
}

// Description returns a human-readable description of the profile.
func (p Profile) Description() string {
	switch p {
	case ProfileFast:
		return "Fast export with minimal delays (may hit rate limits)"
	case ProfileBalanced:
		return "Balanced profile for most use cases"
	case ProfileConservative:
		return "Conservative profile for maximum reliability"
	default:
		return unknownDescription
	}
}

// ParseProfile parses a case-insensitive profile name.
func ParseProfile(s string) (Profile, error) {
	p := Profile(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", fmt.Errorf("%w: profile %q", ErrUnsupportedType, s)
	}
	return p, nil
}

// RetryConfig controls exponential backoff for failed requests.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int `toml:"max_retries" yaml:"max_retries" json:"max_retries" validate:"gte=0,lte=20"`

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration `toml:"initial_delay" yaml:"initial_delay" json:"initial_delay" validate:"gte=0"`

	// MaxDelay caps every computed delay.
	MaxDelay time.Duration `toml:"max_delay" yaml:"max_delay" json:"max_delay" validate:"gtefield=InitialDelay"`

	// ExponentialBase multiplies the delay after each retry.
	ExponentialBase float64 `toml:"exponential_base" yaml:"exponential_base" json:"exponential_base" validate:"gte=1"`

	// Jitter multiplies each delay by a uniform factor in [0.5, 1.5].
	Jitter bool `toml:"jitter" yaml:"jitter" json:"jitter"`

	// RetryOnStatusCodes lists HTTP statuses treated as transient.
	RetryOnStatusCodes []int `toml:"retry_on_status_codes" yaml:"retry_on_status_codes" json:"retry_on_status_codes" validate:"dive,gte=400,lte=599"`
}

// RateLimitConfig controls the token bucket in front of each upstream.
type RateLimitConfig struct {
	// RequestsPerSecond is the refill rate.
	RequestsPerSecond float64 `toml:"requests_per_second" yaml:"requests_per_second" json:"requests_per_second" validate:"gt=0"`

	// BurstSize is the bucket capacity.
	BurstSize int `toml:"burst_size" yaml:"burst_size" json:"burst_size" validate:"gte=1"`

	// AcquireTimeout bounds how long a caller waits for a token.
	AcquireTimeout time.Duration `toml:"acquire_timeout" yaml:"acquire_timeout" json:"acquire_timeout" validate:"gt=0"`
}

// CircuitBreakerConfig controls when an upstream is considered down.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold int `toml:"failure_threshold" yaml:"failure_threshold" json:"failure_threshold" validate:"gte=1"`

	// CooldownPeriod is how long the circuit stays open before a trial call.
	CooldownPeriod time.Duration `toml:"cooldown_period" yaml:"cooldown_period" json:"cooldown_period" validate:"gt=0"`
}

// CacheConfig controls the in-memory response cache.
type CacheConfig struct {
	// Enabled turns the cache on.
	Enabled bool `toml:"enabled" yaml:"enabled" json:"enabled"`

	// TTL is how long an entry stays fresh.
	TTL time.Duration `toml:"ttl" yaml:"ttl" json:"ttl" validate:"gte=0"`

	// MaxSize is the maximum number of entries kept.
	MaxSize int `toml:"max_size" yaml:"max_size" json:"max_size" validate:"gte=1"`

	// CleanupInterval is how often expired entries are swept. Zero disables the sweep.
	CleanupInterval time.Duration `toml:"cleanup_interval" yaml:"cleanup_interval" json:"cleanup_interval" validate:"gte=0"`
}

// TimeoutConfig controls per-call HTTP timeouts.
type TimeoutConfig struct {
	// Connect bounds dialling the upstream.
	Connect time.Duration `toml:"connect_timeout" yaml:"connect_timeout" json:"connect_timeout" validate:"gt=0"`

	// Read bounds waiting for and reading the response.
	Read time.Duration `toml:"read_timeout" yaml:"read_timeout" json:"read_timeout" validate:"gt=0"`
}

// BatchConfig controls page sizes and worker count.
type BatchConfig struct {
	// ConfluencePageSize is the search and child listing page size.
	ConfluencePageSize int `toml:"confluence_batch_size" yaml:"confluence_batch_size" json:"confluence_batch_size" validate:"gte=1,lte=1000"`

	// JiraPageSize is the issue search page size.
	JiraPageSize int `toml:"jira_batch_size" yaml:"jira_batch_size" json:"jira_batch_size" validate:"gte=1,lte=1000"`

	// Workers is the number of concurrent fetch workers.
	Workers int `toml:"max_concurrent_requests" yaml:"max_concurrent_requests" json:"max_concurrent_requests" validate:"gte=1,lte=64"`
}

// CheckpointBackend selects where checkpoints are persisted.
type CheckpointBackend string

// Available checkpoint backends.
const (
	// CheckpointBackendFile writes one JSON document per run.
	CheckpointBackendFile CheckpointBackend = "file"

	// CheckpointBackendSQLite keeps runs in a single SQLite database.
	CheckpointBackendSQLite CheckpointBackend = "sqlite"
)

// CheckpointConfig controls progress persistence.
type CheckpointConfig struct {
	// Enabled turns durable checkpoints on. When off, progress lives in memory only.
	Enabled bool `toml:"enabled" yaml:"enabled" json:"enabled"`

	// Dir is the directory holding checkpoint data.
	Dir string `toml:"checkpoint_dir" yaml:"checkpoint_dir" json:"checkpoint_dir" validate:"required_if=Enabled true"`

	// Backend selects the storage adapter.
	Backend CheckpointBackend `toml:"backend" yaml:"backend" json:"backend" validate:"oneof=file sqlite"`

	// Retention is how long checkpoints are kept after their last update.
	Retention time.Duration `toml:"retention" yaml:"retention" json:"retention" validate:"gte=0"`
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level" yaml:"level" json:"level" validate:"oneof=debug info warn error"`

	// Format is one of text, json, logfmt.
	Format string `toml:"format" yaml:"format" json:"format" validate:"oneof=text json logfmt"`

	// File is an optional log file path.
	File string `toml:"log_file" yaml:"log_file" json:"log_file"`
}

// OutputFormat selects the rendered file type.
type OutputFormat string

// Available output formats.
const (
	// OutputPDF renders one PDF per container.
	OutputPDF OutputFormat = "pdf"

	// OutputMarkdown renders one markdown file per container.
	OutputMarkdown OutputFormat = "markdown"
)

// Extension returns the file extension without the dot.
func (f OutputFormat) Extension() string {
	if f == OutputMarkdown {
		return "md"
	}
	return string(f)
}

// OutputConfig controls rendered output.
type OutputConfig struct {
	// Dir is the root export directory.
	Dir string `toml:"dir" yaml:"dir" json:"dir" validate:"required"`

	// Format is the rendered file type.
	Format OutputFormat `toml:"format" yaml:"format" json:"format" validate:"oneof=pdf markdown"`
}

// ExportConfig is the complete resolved configuration for one run.
type ExportConfig struct {
	Profile        Profile              `toml:"profile" yaml:"profile" json:"profile"`
	Retry          RetryConfig          `toml:"retry" yaml:"retry" json:"retry"`
	RateLimit      RateLimitConfig      `toml:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `toml:"circuit_breaker" yaml:"circuit_breaker" json:"circuit_breaker"`
	Cache          CacheConfig          `toml:"cache" yaml:"cache" json:"cache"`
	Timeout        TimeoutConfig        `toml:"timeout" yaml:"timeout" json:"timeout"`
	Batch          BatchConfig          `toml:"batch" yaml:"batch" json:"batch"`
	Checkpoint     CheckpointConfig     `toml:"checkpoint" yaml:"checkpoint" json:"checkpoint"`
	Logging        LoggingConfig        `toml:"logging" yaml:"logging" json:"logging"`
	Output         OutputConfig         `toml:"output" yaml:"output" json:"output"`
}

// DefaultRetryStatusCodes are the HTTP statuses retried by default.
func DefaultRetryStatusCodes() []int {
	return []int{429, 500, 502, 503, 504}
}

// DefaultExportConfig returns the balanced profile.
func DefaultExportConfig() ExportConfig {
	return ExportConfig{
		Profile: ProfileBalanced,
		Retry: RetryConfig{
			MaxRetries:         3,
			InitialDelay:       time.Second,
			MaxDelay:           60 * time.Second,
			ExponentialBase:    2.0,
			Jitter:             true,
			RetryOnStatusCodes: DefaultRetryStatusCodes(),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 10.0,
			BurstSize:         20,
			AcquireTimeout:    30 * time.Second,
		},
		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold: 5,
			CooldownPeriod:   60 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:         true,
			TTL:             300 * time.Second,
			MaxSize:         1000,
			CleanupInterval: time.Minute,
		},
		Timeout: TimeoutConfig{
			Connect: 10 * time.Second,
			Read:    30 * time.Second,
		},
		Batch: BatchConfig{
			ConfluencePageSize: 100,
			JiraPageSize:       50,
			Workers:            5,
		},
		Checkpoint: CheckpointConfig{
			Enabled:   true,
			Dir:       ".checkpoints",
			Backend:   CheckpointBackendFile,
			Retention: 7 * 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Output: OutputConfig{
			Dir:    "exports",
			Format: OutputPDF,
		},
	}
}

// ProfileConfig returns the configuration for a named profile.
func ProfileConfig(p Profile) (ExportConfig, error) {
	cfg := DefaultExportConfig()
	switch p {
	case ProfileBalanced:
	case ProfileFast:
		cfg.Profile = ProfileFast
		cfg.Retry.MaxRetries = 2
		cfg.Retry.InitialDelay = 500 * time.Millisecond
		cfg.RateLimit.RequestsPerSecond = 20.0
		cfg.Timeout = TimeoutConfig{Connect: 5 * time.Second, Read: 20 * time.Second}
		cfg.Batch.ConfluencePageSize = 200
		cfg.Batch.JiraPageSize = 100
	case ProfileConservative:
		cfg.Profile = ProfileConservative
		cfg.Retry.MaxRetries = 5
		cfg.Retry.InitialDelay = 2 * time.Second
		cfg.Retry.MaxDelay = 120 * time.Second
		cfg.RateLimit.RequestsPerSecond = 5.0
		cfg.Timeout = TimeoutConfig{Connect: 15 * time.Second, Read: 60 * time.Second}
		cfg.Batch = BatchConfig{ConfluencePageSize: 50, JiraPageSize: 25, Workers: 2}
	default:
		return ExportConfig{}, fmt.Errorf("%w: profile %q", ErrUnsupportedType, p)
	}
	return cfg, nil
}
