package resilience

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// Request is an upstream call described independently of the transport.
type Request struct {
	// Upstream names the target, e.g. "confluence".
	Upstream string

	// Method defaults to GET.
	Method string

	// Path is relative to the upstream base URL.
	Path string

	// Query holds the query parameters.
	Query url.Values
}

// Response is a buffered upstream response. Cached responses are shared
// between callers and must not be modified.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Fingerprint returns a stable key for the request: upstream, method, path
// and query parameters sorted by key and value.
func Fingerprint(req *Request) string {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	keys := make([]string, 0, len(req.Query))
	for k := range req.Query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(req.Upstream)
	b.WriteByte('\n')
	b.WriteString(strings.ToUpper(method))
	b.WriteByte('\n')
	b.WriteString(req.Path)
	for _, k := range keys {
		vals := append([]string(nil), req.Query[k]...)
		sort.Strings(vals)
		for _, v := range vals {
			b.WriteByte('\n')
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
