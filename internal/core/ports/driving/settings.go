package driving

import "github.com/custodia-labs/ctxexport/internal/core/domain"

// SettingsService resolves the effective export configuration.
type SettingsService interface {
	// Resolve layers profile defaults, the config file and environment
	// overrides, then validates the result.
	Resolve(profile domain.Profile) (*domain.ExportConfig, error)

	// Validate checks a configuration after flag overrides are applied.
	Validate(cfg *domain.ExportConfig) error

	// Profiles returns every predefined profile with its settings.
	Profiles() []ProfileInfo

	// Credentials returns the upstream credentials from the environment.
	Credentials() domain.Credentials

	// Endpoints returns the upstream base URLs from the environment.
	Endpoints() domain.Endpoints
}

// ProfileInfo describes one predefined profile.
type ProfileInfo struct {
	Profile     domain.Profile
	Description string
	Config      domain.ExportConfig
}
