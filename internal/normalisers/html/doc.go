// Package html converts Confluence storage format and Jira rendered HTML to
// markdown. Confluence macros are reduced to their content before
// conversion; if conversion fails the readable text is returned instead.
package html
