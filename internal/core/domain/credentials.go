package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// AuthMethod identifies how requests to an upstream are authenticated.
type AuthMethod string

// Supported authentication methods.
const (
	// AuthMethodBasic sends the username and API token as HTTP basic auth.
	AuthMethodBasic AuthMethod = "basic"

	// AuthMethodBearer sends the token as a bearer token (personal access tokens).
	AuthMethodBearer AuthMethod = "bearer"
)

// Credentials identifies the account used against both upstreams.
type Credentials struct {
	// Username is the account email. Empty selects bearer auth.
	Username string `json:"username,omitempty"`

	// Token is the API token or personal access token.
	Token string `json:"-"`
}

// Method returns the auth method implied by the credentials.
func (c Credentials) Method() AuthMethod {
	if c.Username == "" {
		return AuthMethodBearer
	}
	return AuthMethodBasic
}

// IsZero reports whether no token is configured.
func (c Credentials) IsZero() bool {
	return c.Token == ""
}

// Endpoints holds the upstream base URLs. An empty URL disables that upstream.
type Endpoints struct {
	// ConfluenceURL is the Confluence base URL, e.g. https://example.atlassian.net/wiki.
	ConfluenceURL string `json:"confluence_url,omitempty"`

	// JiraURL is the Jira base URL, e.g. https://example.atlassian.net.
	JiraURL string `json:"jira_url,omitempty"`
}

// URL returns the base URL for a source kind.
func (e Endpoints) URL(kind SourceKind) string {
	switch kind {
	case SourceConfluence:
		return e.ConfluenceURL
	case SourceJira:
		return e.JiraURL
	default:
		return ""
	}
}

// Enabled returns the source kinds that have a base URL, in export order.
func (e Endpoints) Enabled() []SourceKind {
	var kinds []SourceKind
	for _, k := range AllSourceKinds() {
		if e.URL(k) != "" {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// Validate checks every configured URL is absolute http(s).
func (e Endpoints) Validate() error {
	for _, k := range AllSourceKinds() {
		raw := e.URL(k)
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("%w: %s url %q", ErrInvalidInput, k, raw)
		}
	}
	if len(e.Enabled()) == 0 {
		return fmt.Errorf("%w: no upstream url configured", ErrInvalidInput)
	}
	return nil
}

// MaskToken returns the token with all but the last four characters hidden.
func MaskToken(token string) string {
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return strings.Repeat("*", len(token)-4) + token[len(token)-4:]
}
