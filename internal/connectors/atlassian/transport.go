package atlassian

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/ctxexport/internal/core/domain"
	"github.com/custodia-labs/ctxexport/internal/resilience"
)

// maxBodySize bounds a buffered response.
const maxBodySize = 32 << 20

// Ensure Transport implements the resilience performer.
var _ resilience.Performer = (*Transport)(nil)

// Config configures a Transport.
type Config struct {
	// BaseURL is the upstream root, e.g. https://example.atlassian.net/wiki.
	BaseURL string

	// Credentials authenticate every request.
	Credentials domain.Credentials

	// Timeouts bound connecting and reading.
	Timeouts domain.TimeoutConfig

	// UserAgent is sent on every request.
	UserAgent string
}

// Transport performs single authenticated requests against one Atlassian product.
type Transport struct {
	base      *url.URL
	http      *http.Client
	userAgent string
	now       func() time.Time
}

// NewTransport creates a transport.
func NewTransport(cfg Config) (*Transport, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("%w: base url %q", domain.ErrInvalidInput, cfg.BaseURL)
	}
	if cfg.Credentials.IsZero() {
		return nil, domain.ErrAuthRequired
	}

	connect := cfg.Timeouts.Connect
	if connect <= 0 {
		connect = 10 * time.Second
	}
	read := cfg.Timeouts.Read
	if read <= 0 {
		read = 30 * time.Second
	}

	dialer := &net.Dialer{Timeout: connect, KeepAlive: 30 * time.Second}
	httpTransport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   connect,
		ResponseHeaderTimeout: read,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
	}

	ua := cfg.UserAgent
	if ua == "" {
		ua = "ctxexport"
	}

	return &Transport{
		base: base,
		http: &http.Client{
			Transport: authRoundTripper(cfg.Credentials, httpTransport),
			Timeout:   connect + read,
		},
		userAgent: ua,
		now:       time.Now,
	}, nil
}

// authRoundTripper wraps rt with basic or bearer authentication.
func authRoundTripper(creds domain.Credentials, rt http.RoundTripper) http.RoundTripper {
	if creds.Method() == domain.AuthMethodBearer {
		return &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: creds.Token, TokenType: "Bearer"}),
			Base:   rt,
		}
	}
	return &basicAuthTransport{username: creds.Username, token: creds.Token, base: rt}
}

type basicAuthTransport struct {
	username string
	token    string
	base     http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.SetBasicAuth(t.username, t.token)
	return t.base.RoundTrip(r)
}

// BaseURL returns the upstream root.
func (t *Transport) BaseURL() string {
	return t.base.String()
}

// URL resolves a path against the base URL.
func (t *Transport) URL(path string, query url.Values) string {
	u := *t.base
	u.Path = strings.TrimRight(t.base.Path, "/") + "/" + strings.TrimLeft(path, "/")
	u.RawQuery = query.Encode()
	return u.String()
}

// Perform executes a single request and buffers the body.
func (t *Transport) Perform(ctx context.Context, req *resilience.Request) (*resilience.Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	target := t.URL(req.Path, req.Query)

	httpReq, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", t.userAgent)

	resp, err := t.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, req.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", req.Path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			URL:        target,
			Retry:      parseRetryAfter(resp.Header.Get("Retry-After"), t.now()),
		}
		var eb errorBody
		if json.Unmarshal(body, &eb) == nil {
			apiErr.Message = errorMessage(eb)
		}
		return nil, apiErr
	}

	return &resilience.Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// GetJSON runs a GET through client and decodes the body into out.
func GetJSON(ctx context.Context, client *resilience.Client, path string, query url.Values, out any) error {
	resp, err := client.Do(ctx, &resilience.Request{Method: http.MethodGet, Path: path, Query: query})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// AuthError converts 401/403 answers to domain auth errors.
func AuthError(err error) error {
	if IsUnauthorized(err) || IsForbidden(err) {
		return fmt.Errorf("%w: %w", domain.ErrAuthInvalid, err)
	}
	return err
}

// IsAuthError reports whether err is a rejected-credentials failure.
func IsAuthError(err error) bool {
	return errors.Is(err, domain.ErrAuthInvalid) || IsUnauthorized(err) || IsForbidden(err)
}
