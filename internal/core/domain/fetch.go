package domain

import "time"

// FetchStatus is the terminal outcome of fetching one WorkItem.
type FetchStatus string

// Fetch outcomes.
const (
	// FetchSucceeded means content was retrieved.
	FetchSucceeded FetchStatus = "succeeded"

	// FetchFailed means every attempt failed or the failure was permanent.
	FetchFailed FetchStatus = "failed"

	// FetchSkipped means the item exists but is not exported.
	FetchSkipped FetchStatus = "skipped"
)

// IsValid returns true if the status is recognised.
func (s FetchStatus) IsValid() bool {
	switch s {
	case FetchSucceeded, FetchFailed, FetchSkipped:
		return true
	default:
		return false
	}
}

// FailureReason classifies why an item did not succeed.
type FailureReason string

// Failure reasons.
const (
	ReasonNone        FailureReason = ""
	ReasonTransient   FailureReason = "transient_exhausted"
	ReasonPermanent   FailureReason = "permanent"
	ReasonCircuitOpen FailureReason = "circuit_open"
	ReasonSkipped     FailureReason = "skipped"
	ReasonCancelled   FailureReason = "cancelled"
)

// Comment is a single issue comment.
type Comment struct {
	Author  string    `json:"author"`
	Body    string    `json:"body"`
	Created time.Time `json:"created"`
}

// Attachment is attachment metadata. Binary content is never downloaded.
type Attachment struct {
	Filename string `json:"filename"`
	MimeType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size"`
	URL      string `json:"url,omitempty"`
}

// BodyFormat describes how Content.Body is encoded.
type BodyFormat string

// Body formats.
const (
	// BodyHTML is upstream storage or rendered HTML.
	BodyHTML BodyFormat = "html"

	// BodyMarkdown is already converted markdown.
	BodyMarkdown BodyFormat = "markdown"

	// BodyText is plain text.
	BodyText BodyFormat = "text"
)

// Content is the retrieved payload of a WorkItem.
type Content struct {
	// Title is the page title or "KEY: summary" for issues.
	Title string `json:"title"`

	// Body is the page body or issue description.
	Body string `json:"body"`

	// BodyFormat is the encoding of Body.
	BodyFormat BodyFormat `json:"body_format"`

	// URL links back to the item in the upstream UI.
	URL string `json:"url,omitempty"`

	// Author is the creator or reporter display name.
	Author string `json:"author,omitempty"`

	// UpdatedAt is the last modification time.
	UpdatedAt time.Time `json:"updated_at,omitempty"`

	// Version is the page version number. Zero for issues.
	Version int `json:"version,omitempty"`

	// Fields holds ordered issue fields (status, priority, assignee...).
	Fields []Field `json:"fields,omitempty"`

	// Comments are issue comments in creation order.
	Comments []Comment `json:"comments,omitempty"`

	// Attachments lists attachment metadata.
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Field is a named issue field rendered in a metadata table.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// FetchResult is the terminal record for one WorkItem.
type FetchResult struct {
	// Item is the WorkItem this result resolves.
	Item WorkItem `json:"item"`

	// Status is the outcome.
	Status FetchStatus `json:"status"`

	// Content is set when Status is FetchSucceeded.
	Content *Content `json:"content,omitempty"`

	// Reason is set when Status is not FetchSucceeded.
	Reason FailureReason `json:"reason,omitempty"`

	// Error is the last error message for failed items.
	Error string `json:"error,omitempty"`

	// Attempts is the number of upstream calls made, zero for a cache hit.
	Attempts int `json:"attempts"`

	// Timestamp is when the result was recorded.
	Timestamp time.Time `json:"timestamp"`
}

// Succeeded returns true if content was retrieved.
func (r FetchResult) Succeeded() bool {
	return r.Status == FetchSucceeded
}
