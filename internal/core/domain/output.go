package domain

import (
	"path/filepath"
	"strings"
)

// RunDir returns the directory a run writes to: <root>/<label>/<YYYY_MM_DD>.
// The label directory is lower-cased with spaces replaced.
func RunDir(root, label, exportDate string) string {
	return filepath.Join(root, strings.ToLower(safeName(label)), exportDate)
}

// OutputFileName returns <label>_<Confluence|Jira>_<container>_<YYYY_MM_DD>.<ext>.
func OutputFileName(label string, c Container, exportDate string, format OutputFormat) string {
	return safeName(label) + "_" + c.Kind.Title() + "_" + safeName(c.DisplayName()) + "_" + exportDate + "." + format.Extension()
}

// safeName replaces spaces and path separators with underscores.
func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, strings.TrimSpace(s))
}
