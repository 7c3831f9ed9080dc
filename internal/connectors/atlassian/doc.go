// Package atlassian provides the HTTP transport shared by the Confluence and
// Jira connectors: base URL joining, authentication, timeouts and error
// decoding. It performs exactly one request per call; retries and rate
// limiting belong to the resilience client wrapping it.
package atlassian
