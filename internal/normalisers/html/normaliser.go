package html

import (
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"

	"github.com/custodia-labs/ctxexport/internal/core/domain"
	"github.com/custodia-labs/ctxexport/internal/normalisers"
)

// Ensure Normaliser implements the interface.
var _ normalisers.Normaliser = (*Normaliser)(nil)

// Normaliser handles HTML bodies.
type Normaliser struct {
	conv *md.Converter
}

// New creates a new HTML normaliser. Relative links and image sources
// resolve against baseURL when it is an absolute URL; its scheme and path
// prefix are kept.
func New(baseURL string) *Normaliser {
	conv := md.NewConverter("", true, &md.Options{CodeBlockStyle: "fenced"})
	conv.Use(plugin.GitHubFlavored())
	if base, err := url.Parse(baseURL); err == nil && base.IsAbs() {
		conv.Before(resolveLinks(base))
	}
	return &Normaliser{conv: conv}
}

// resolveLinks rewrites relative href and src attributes to absolute URLs.
func resolveLinks(base *url.URL) md.BeforeHook {
	return func(selec *goquery.Selection) {
		for _, attr := range []string{"href", "src"} {
			selec.Find("[" + attr + "]").Each(func(_ int, s *goquery.Selection) {
				v, _ := s.Attr(attr)
				ref, err := url.Parse(strings.TrimSpace(v))
				if err != nil || ref.IsAbs() || strings.HasPrefix(v, "#") {
					return
				}
				s.SetAttr(attr, base.ResolveReference(ref).String())
			})
		}
	}
}

// Format returns domain.BodyHTML.
func (n *Normaliser) Format() domain.BodyFormat {
	return domain.BodyHTML
}

// Normalise converts an HTML body to markdown.
// Conversion errors and empty output fall back to the body's plain text.
func (n *Normaliser) Normalise(body string) (string, error) {
	if strings.TrimSpace(body) == "" {
		return "", nil
	}

	cleaned := dropHidden(reduceMacros(body))
	out, err := n.conv.ConvertString(cleaned)
	if err != nil {
		return stripHTML(cleaned), fmt.Errorf("convert html: %w", err)
	}
	if strings.TrimSpace(out) == "" {
		return stripHTML(cleaned), nil
	}
	return out, nil
}

// Pre-compiled regular expressions for HTML parsing performance.
var (
	scriptTag         = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTag          = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	noscriptTag       = regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`)
	headTag           = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
	svgTag            = regexp.MustCompile(`(?is)<svg[^>]*>.*?</svg>`)
	htmlComments      = regexp.MustCompile(`(?s)<!--.*?-->`)
	blockElements     = regexp.MustCompile(`(?i)</(p|div|br|hr|h[1-6]|li|tr|blockquote|pre|table|section|article)>`)
	openBlockElements = regexp.MustCompile(`(?i)<(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article)[^>]*>`)
	brTags            = regexp.MustCompile(`(?i)<br\s*/?>`)
	hrTags            = regexp.MustCompile(`(?i)<hr\s*/?>`)
	allTags           = regexp.MustCompile(`<[^>]+>`)
	multiSpaces       = regexp.MustCompile(`[ \t]+`)
	multiNewlines     = regexp.MustCompile(`\n{3,}`)
)

// Confluence storage format elements.
var (
	codeMacro = regexp.MustCompile(
		`(?is)<ac:structured-macro[^>]*ac:name="(?:code|noformat)"[^>]*>.*?` +
			`<ac:plain-text-body>\s*<!\[CDATA\[(.*?)\]\]>\s*</ac:plain-text-body>\s*</ac:structured-macro>`)
	imageMacro   = regexp.MustCompile(`(?is)<ac:image[^>]*>.*?</ac:image>`)
	attachmentRe = regexp.MustCompile(`(?i)ri:filename="([^"]*)"`)
	imageURLRe   = regexp.MustCompile(`(?i)ri:value="([^"]*)"`)
	parameterTag = regexp.MustCompile(`(?is)<ac:parameter[^>]*>.*?</ac:parameter>`)
	cdataBlock   = regexp.MustCompile(`(?s)<!\[CDATA\[(.*?)\]\]>`)
	namespaced   = regexp.MustCompile(`(?is)</?(?:ac|ri):[^>]*>`)
)

// reduceMacros rewrites Confluence macros as plain HTML. Code macros become
// fenced code and images become a placeholder naming the file. Other macros
// keep their body text.
func reduceMacros(body string) string {
	if !strings.Contains(body, "ac:") && !strings.Contains(body, "ri:") {
		return body
	}

	body = codeMacro.ReplaceAllStringFunc(body, func(m string) string {
		sub := codeMacro.FindStringSubmatch(m)
		return "<pre><code>" + html.EscapeString(sub[1]) + "</code></pre>"
	})
	body = imageMacro.ReplaceAllStringFunc(body, func(m string) string {
		name := "image"
		if sub := attachmentRe.FindStringSubmatch(m); len(sub) > 1 {
			name = sub[1]
		} else if sub := imageURLRe.FindStringSubmatch(m); len(sub) > 1 {
			name = sub[1]
		}
		return "<em>Image: " + html.EscapeString(html.UnescapeString(name)) + "</em>"
	})
	body = parameterTag.ReplaceAllString(body, "")
	body = cdataBlock.ReplaceAllStringFunc(body, func(m string) string {
		return html.EscapeString(cdataBlock.FindStringSubmatch(m)[1])
	})
	return namespaced.ReplaceAllString(body, "")
}

// dropHidden removes elements that carry no readable content.
func dropHidden(content string) string {
	content = scriptTag.ReplaceAllString(content, "")
	content = styleTag.ReplaceAllString(content, "")
	content = noscriptTag.ReplaceAllString(content, "")
	content = headTag.ReplaceAllString(content, "")
	content = svgTag.ReplaceAllString(content, "")
	return htmlComments.ReplaceAllString(content, "")
}

// stripHTML removes HTML tags and extracts readable text content.
func stripHTML(content string) string {
	content = dropHidden(content)
	content = openBlockElements.ReplaceAllString(content, "\n")
	content = blockElements.ReplaceAllString(content, "\n")
	content = brTags.ReplaceAllString(content, "\n")
	content = hrTags.ReplaceAllString(content, "\n")

	content = allTags.ReplaceAllString(content, "")
	content = html.UnescapeString(content)

	content = multiSpaces.ReplaceAllString(content, " ")
	content = multiNewlines.ReplaceAllString(content, "\n\n")

	lines := strings.Split(content, "\n")
	result := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			result = append(result, line)
		}
	}
	return strings.Join(result, "\n\n")
}
