// Package render turns a container report into a document.
//
// Compose builds one markdown document per container. The markdown and pdf
// subpackages implement driven.Renderer on top of it.
package render

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/custodia-labs/ctxexport/internal/core/domain"
	"github.com/custodia-labs/ctxexport/internal/logger"
	"github.com/custodia-labs/ctxexport/internal/normalisers"
	htmlnorm "github.com/custodia-labs/ctxexport/internal/normalisers/html"
	"github.com/custodia-labs/ctxexport/internal/normalisers/plaintext"
)

// AppendixTitle heads the section listing attachments and failed items.
const AppendixTitle = "Attachments/Errors"

const maxHeadingLevel = 6

// Title returns the document title for a report.
func Title(report domain.ContainerReport) string {
	return fmt.Sprintf("%s: %s %s", report.Label, report.Container.Kind.Title(), report.Container.DisplayName())
}

// Compose renders the report as markdown. Items appear in report order;
// failed and skipped items get a placeholder and an appendix entry.
func Compose(report domain.ContainerReport) string {
	var b strings.Builder
	bodies := normalisers.NewRegistry(htmlnorm.New(baseURL(report)), plaintext.New())

	fmt.Fprintf(&b, "# %s\n\n", Title(report))
	if !report.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "Generated %s. ", report.GeneratedAt.UTC().Format(time.RFC3339))
	}
	failures := report.Failures()
	fmt.Fprintf(&b, "%d items, %d not exported.\n\n", len(report.Results), len(failures))

	for _, res := range report.Results {
		writeItem(&b, bodies, res)
	}

	writeAppendix(&b, report.Results, failures)
	return b.String()
}

func writeItem(b *strings.Builder, bodies *normalisers.Registry, res domain.FetchResult) {
	level := 2 + res.Item.Depth
	if level > maxHeadingLevel {
		level = maxHeadingLevel
	}
	title := res.Item.Title
	if res.Content != nil && res.Content.Title != "" {
		title = res.Content.Title
	}
	if title == "" {
		title = res.Item.ID
	}
	fmt.Fprintf(b, "%s %s\n\n", strings.Repeat("#", level), escapeInline(title))

	if !res.Succeeded() || res.Content == nil {
		fmt.Fprintf(b, "_Not exported (%s). See %s._\n\n", reasonText(res), AppendixTitle)
		return
	}

	c := res.Content
	var meta []string
	if c.Author != "" {
		meta = append(meta, "**Author:** "+escapeInline(c.Author))
	}
	if !c.UpdatedAt.IsZero() {
		meta = append(meta, "**Updated:** "+c.UpdatedAt.UTC().Format("2006-01-02"))
	}
	if c.Version > 0 {
		meta = append(meta, fmt.Sprintf("**Version:** %d", c.Version))
	}
	if c.URL != "" {
		meta = append(meta, fmt.Sprintf("[Open](%s)", c.URL))
	}
	if len(meta) > 0 {
		b.WriteString(strings.Join(meta, " | "))
		b.WriteString("\n\n")
	}

	if len(c.Fields) > 0 {
		b.WriteString("| Field | Value |\n|---|---|\n")
		for _, f := range c.Fields {
			fmt.Fprintf(b, "| %s | %s |\n", escapeCell(f.Name), escapeCell(f.Value))
		}
		b.WriteString("\n")
	}

	if body := strings.TrimSpace(bodyMarkdown(bodies, res.Item.Key(), c.Body, c.BodyFormat)); body != "" {
		b.WriteString(body)
		b.WriteString("\n\n")
	}

	if len(c.Comments) > 0 {
		fmt.Fprintf(b, "%s Comments\n\n", strings.Repeat("#", min(level+1, maxHeadingLevel)))
		for _, cm := range c.Comments {
			fmt.Fprintf(b, "**%s** (%s):\n\n", escapeInline(cm.Author), cm.Created.UTC().Format("2006-01-02 15:04"))
			b.WriteString(strings.TrimSpace(bodyMarkdown(bodies, res.Item.Key(), cm.Body, c.BodyFormat)))
			b.WriteString("\n\n")
		}
	}
}

func writeAppendix(b *strings.Builder, results, failures []domain.FetchResult) {
	var attachments []string
	for _, res := range results {
		if res.Content == nil {
			continue
		}
		for _, a := range res.Content.Attachments {
			line := fmt.Sprintf("- %s: %s (%s)", res.Item.ID, escapeInline(a.Filename), humanSize(a.Size))
			if a.URL != "" {
				line = fmt.Sprintf("- %s: [%s](%s) (%s)", res.Item.ID, escapeInline(a.Filename), a.URL, humanSize(a.Size))
			}
			attachments = append(attachments, line)
		}
	}
	if len(attachments) == 0 && len(failures) == 0 {
		return
	}

	fmt.Fprintf(b, "## %s\n\n", AppendixTitle)
	if len(attachments) > 0 {
		b.WriteString("### Attachments\n\n")
		b.WriteString(strings.Join(attachments, "\n"))
		b.WriteString("\n\n")
	}
	if len(failures) > 0 {
		b.WriteString("### Errors\n\n| Item | Title | Reason | Attempts | Error |\n|---|---|---|---|---|\n")
		for _, f := range failures {
			fmt.Fprintf(b, "| %s | %s | %s | %d | %s |\n",
				f.Item.ID, escapeCell(f.Item.Title), reasonText(f), f.Attempts, escapeCell(f.Error))
		}
		b.WriteString("\n")
	}
}

// bodyMarkdown converts a body to markdown. Conversion failures keep the
// degraded text the normaliser returned.
func bodyMarkdown(bodies *normalisers.Registry, key, body string, format domain.BodyFormat) string {
	out, err := bodies.Markdown(format, body)
	if err != nil {
		logger.Warn("converting %s to markdown: %v", key, err)
	}
	return out
}

// baseURL returns the first absolute item link. Relative links in bodies
// resolve against it the way a browser viewing that page would.
func baseURL(report domain.ContainerReport) string {
	for _, res := range report.Results {
		if res.Content == nil || res.Content.URL == "" {
			continue
		}
		u, err := url.Parse(res.Content.URL)
		if err != nil || !u.IsAbs() || u.Host == "" {
			continue
		}
		return u.String()
	}
	return ""
}

func reasonText(res domain.FetchResult) string {
	if res.Reason != domain.ReasonNone {
		return string(res.Reason)
	}
	return string(res.Status)
}

func escapeInline(s string) string {
	return strings.NewReplacer("\n", " ", "\r", "").Replace(s)
}

func escapeCell(s string) string {
	return strings.NewReplacer("|", `\|`, "\n", " ", "\r", "").Replace(s)
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
