package normalisers

import (
	"sync"

	"github.com/custodia-labs/ctxexport/internal/core/domain"
)

// Normaliser converts one body format to markdown.
type Normaliser interface {
	// Format returns the body format this normaliser reads.
	Format() domain.BodyFormat

	// Normalise returns body as markdown. On error the returned string is
	// still a usable, degraded rendition of the body.
	Normalise(body string) (string, error)
}

// Registry maps body formats to normalisers.
type Registry struct {
	mu       sync.RWMutex
	byFormat map[domain.BodyFormat]Normaliser
}

// NewRegistry creates a registry holding ns. Later entries replace earlier
// ones for the same format.
func NewRegistry(ns ...Normaliser) *Registry {
	r := &Registry{byFormat: make(map[domain.BodyFormat]Normaliser, len(ns))}
	for _, n := range ns {
		r.Register(n)
	}
	return r
}

// Register adds or replaces the normaliser for n.Format().
func (r *Registry) Register(n Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byFormat[n.Format()] = n
}

// Get returns the normaliser for format.
func (r *Registry) Get(format domain.BodyFormat) (Normaliser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.byFormat[format]
	return n, ok
}

// Markdown normalises body according to format.
func (r *Registry) Markdown(format domain.BodyFormat, body string) (string, error) {
	if body == "" {
		return "", nil
	}
	n, ok := r.Get(format)
	if !ok {
		return body, nil
	}
	return n.Normalise(body)
}
