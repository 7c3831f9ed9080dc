package domain

import (
	"fmt"
	"strings"
)

// SourceKind identifies the upstream a WorkItem comes from.
type SourceKind string

// Supported upstreams.
const (
	// SourceConfluence is a Confluence-like content API.
	SourceConfluence SourceKind = "confluence"

	// SourceJira is a Jira-like issue API.
	SourceJira SourceKind = "jira"
)

// AllSourceKinds returns every supported upstream in export order.
func AllSourceKinds() []SourceKind {
	return []SourceKind{SourceConfluence, SourceJira}
}

// IsValid returns true if the source kind is recognised.
func (k SourceKind) IsValid() bool {
	switch k {
	case SourceConfluence, SourceJira:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (k SourceKind) String() string {
	return string(k)
}

// Title returns the display name used in output file names and headings.
func (k SourceKind) Title() string {
	switch k {
	case SourceConfluence:
		return "Confluence"
	case SourceJira:
		return "Jira"
	default:
		return unknownDescription
	}
}

// ParseSourceKind parses a case-insensitive source kind.
func ParseSourceKind(s string) (SourceKind, error) {
	k := SourceKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", fmt.Errorf("%w: source %q", ErrUnsupportedType, s)
	}
	return k, nil
}

// MaxConfluenceDepth is the deepest child page level enumerated below a labelled page.
const MaxConfluenceDepth = 4

// WorkItem identifies one fetchable page or issue.
// WorkItems are immutable once enumerated.
type WorkItem struct {
	// ID is the upstream identifier (page id or issue key).
	ID string `json:"id"`

	// Kind is the upstream the item belongs to.
	Kind SourceKind `json:"kind"`

	// Container is the space or project key.
	Container string `json:"container"`

	// Title is the page title or issue summary known at enumeration time.
	Title string `json:"title,omitempty"`

	// Depth is the nesting level below the labelled page (0-4). Always 0 for issues.
	Depth int `json:"depth"`

	// ParentID is the enclosing page for child pages.
	ParentID string `json:"parent_id,omitempty"`

	// Label is the label that selected this item or its ancestor.
	Label string `json:"label"`
}

// Key returns the stable identifier used by checkpoints, caches and result spools.
func (w WorkItem) Key() string {
	return ItemKey(w.Kind, w.ID)
}

// ItemKey builds a WorkItem key from its parts.
func ItemKey(kind SourceKind, id string) string {
	return string(kind) + ":" + id
}

// Validate checks the item carries the fields every later stage relies on.
func (w WorkItem) Validate() error {
	if w.ID == "" {
		return fmt.Errorf("%w: work item without id", ErrInvalidInput)
	}
	if !w.Kind.IsValid() {
		return fmt.Errorf("%w: work item %s has kind %q", ErrInvalidInput, w.ID, w.Kind)
	}
	if w.Container == "" {
		return fmt.Errorf("%w: work item %s has no container", ErrInvalidInput, w.ID)
	}
	if w.Depth < 0 || w.Depth > MaxConfluenceDepth {
		return fmt.Errorf("%w: work item %s depth %d out of range", ErrInvalidInput, w.ID, w.Depth)
	}
	return nil
}

// Container is a Confluence space or Jira project holding labelled items.
// It is the unit of rendered output.
type Container struct {
	// Kind is the upstream the container belongs to.
	Kind SourceKind `json:"kind"`

	// Key is the space or project key.
	Key string `json:"key"`

	// Name is the human-readable space or project name.
	Name string `json:"name"`

	// Items are the WorkItems in enumeration order.
	Items []WorkItem `json:"items"`
}

// ID returns a key unique across upstreams.
func (c Container) ID() string {
	return string(c.Kind) + "/" + c.Key
}

// DisplayName returns the name, falling back to the key.
func (c Container) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Key
}
