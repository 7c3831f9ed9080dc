// Package domain defines the core business entities for ctxexport.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - WorkItem: One fetchable Confluence page or Jira issue
//   - Container: A Confluence space or Jira project, the unit of output
//   - FetchResult: The last outcome of fetching a WorkItem
//   - Checkpoint: Durable progress of an export run
//   - ExportConfig: Retry, rate limit, cache and checkpoint settings
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
