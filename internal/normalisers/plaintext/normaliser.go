// Package plaintext renders plain text bodies, such as Jira descriptions
// without a rendered HTML field, as markdown that keeps their line breaks.
package plaintext

import (
	"regexp"
	"strings"

	"github.com/custodia-labs/ctxexport/internal/core/domain"
	"github.com/custodia-labs/ctxexport/internal/normalisers"
)

// Ensure Normaliser implements the interface.
var _ normalisers.Normaliser = (*Normaliser)(nil)

// Normaliser handles plain text bodies.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Format returns domain.BodyText.
func (n *Normaliser) Format() domain.BodyFormat {
	return domain.BodyText
}

var (
	blankRuns = regexp.MustCompile(`\n{3,}`)

	// markdownLead matches line starts that markdown would read as structure.
	markdownLead = regexp.MustCompile(`^(#{1,6}\s|>|[-+*]\s|\d+[.)]\s|={3,}|-{3,}|\x60{3})`)
)

// Normalise escapes markdown syntax at line starts and turns single line
// breaks into hard breaks. Blank line runs collapse to one paragraph break.
func (n *Normaliser) Normalise(body string) (string, error) {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	body = strings.ReplaceAll(body, "\r", "\n")

	lines := strings.Split(body, "\n")
	for i, line := range lines {
		lines[i] = escapeLead(strings.TrimRight(line, " \t"))
	}
	body = strings.Trim(strings.Join(lines, "\n"), "\n")
	body = blankRuns.ReplaceAllString(body, "\n\n")

	paragraphs := strings.Split(body, "\n\n")
	for i, p := range paragraphs {
		paragraphs[i] = strings.ReplaceAll(p, "\n", "  \n")
	}
	return strings.Join(paragraphs, "\n\n"), nil
}

func escapeLead(line string) string {
	m := markdownLead.FindString(line)
	if m == "" {
		return line
	}
	if m[0] >= '0' && m[0] <= '9' {
		i := strings.IndexAny(line, ".)")
		return line[:i] + `\` + line[i:]
	}
	return `\` + line
}
