// Package connectors provides implementations of the Connector interface
// for the supported upstreams. Each connector knows how to enumerate and
// fetch labelled items from one product (Confluence, Jira).
//
// Connectors are built by the Factory at the start of each run.
package connectors
