// Package jira implements the Jira connector.
//
// Enumeration pages through a JQL label search and groups issues by project
// in first-seen order, each project's issues in natural key order. Fetch
// reads one issue with rendered fields, comments and attachment metadata.
package jira
