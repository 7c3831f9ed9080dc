package html

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ctxexport/internal/core/domain"
)

func TestNew(t *testing.T) {
	normaliser := New("")
	require.NotNil(t, normaliser)
	assert.Equal(t, domain.BodyHTML, normaliser.Format())
}

func TestNormalise_Basic(t *testing.T) {
	normaliser := New("")

	out, err := normaliser.Normalise(`<h2>Goals</h2><p>Ship the <strong>exporter</strong>.</p><ul><li>one</li><li>two</li></ul>`)
	require.NoError(t, err)
	assert.Contains(t, out, "## Goals")
	assert.Contains(t, out, "**exporter**")
	assert.Contains(t, out, "- one")
	assert.Contains(t, out, "- two")
}

func TestNormalise_Table(t *testing.T) {
	normaliser := New("")

	out, err := normaliser.Normalise(`<table><tr><th>Owner</th><th>Due</th></tr><tr><td>Ana</td><td>Friday</td></tr></table>`)
	require.NoError(t, err)
	assert.Contains(t, out, "| Owner | Due |")
	assert.Contains(t, out, "| Ana | Friday |")
}

func TestNormalise_RelativeLinks(t *testing.T) {
	normaliser := New("https://wiki.example.com")

	out, err := normaliser.Normalise(`<p><a href="/display/ENG/Runbook">Runbook</a></p>`)
	require.NoError(t, err)
	assert.Contains(t, out, "[Runbook](https://wiki.example.com/display/ENG/Runbook)")
	assert.NotContains(t, out, "http://https")
}

func TestNormalise_RelativeLinksKeepContextPath(t *testing.T) {
	normaliser := New("https://acme.atlassian.net/wiki/spaces/ENG/pages/100")

	out, err := normaliser.Normalise(`<p><a href="200">Sibling</a> <a href="/wiki/x">Root</a> ` +
		`<a href="#setup">Setup</a> <a href="mailto:ops@example.com">Mail</a></p>` +
		`<p><img src="attachments/arch.png" alt="arch"></p>`)
	require.NoError(t, err)
	assert.Contains(t, out, "[Sibling](https://acme.atlassian.net/wiki/spaces/ENG/pages/200)")
	assert.Contains(t, out, "[Root](https://acme.atlassian.net/wiki/x)")
	assert.Contains(t, out, "[Setup](#setup)")
	assert.Contains(t, out, "[Mail](mailto:ops@example.com)")
	assert.Contains(t, out, "![arch](https://acme.atlassian.net/wiki/spaces/ENG/pages/attachments/arch.png)")
}

func TestNormalise_NoBaseLeavesLinksRelative(t *testing.T) {
	for _, base := range []string{"", "wiki.example.com"} {
		out, err := New(base).Normalise(`<p><a href="/display/ENG/Runbook">Runbook</a></p>`)
		require.NoError(t, err)
		assert.Contains(t, out, "[Runbook](/display/ENG/Runbook)", "base %q", base)
	}
}

func TestNormalise_Empty(t *testing.T) {
	normaliser := New("")

	out, err := normaliser.Normalise("  \n ")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestNormalise_DropsScripts(t *testing.T) {
	normaliser := New("")

	out, err := normaliser.Normalise(`<p>Hi</p><script>alert(1)</script><style>p{}</style>`)
	require.NoError(t, err)
	assert.Contains(t, out, "Hi")
	assert.NotContains(t, out, "alert")
	assert.NotContains(t, out, "p{}")
}

func TestNormalise_CodeMacro(t *testing.T) {
	normaliser := New("")
	body := `<p>Run:</p><ac:structured-macro ac:name="code" ac:schema-version="1">` +
		`<ac:parameter ac:name="language">bash</ac:parameter>` +
		`<ac:plain-text-body><![CDATA[make deploy && echo <done>]]></ac:plain-text-body>` +
		`</ac:structured-macro>`

	out, err := normaliser.Normalise(body)
	require.NoError(t, err)
	assert.Contains(t, out, "```")
	assert.Contains(t, out, "make deploy && echo <done>")
	assert.NotContains(t, out, "bash")
	assert.NotContains(t, out, "ac:")
}

func TestNormalise_ImageMacro(t *testing.T) {
	normaliser := New("")
	body := `<p>Diagram:</p><ac:image ac:height="250"><ri:attachment ri:filename="arch.png" /></ac:image>`

	out, err := normaliser.Normalise(body)
	require.NoError(t, err)
	assert.Contains(t, out, "Image: arch.png")
	assert.NotContains(t, out, "ri:")
}

func TestNormalise_UnknownMacroKeepsBody(t *testing.T) {
	normaliser := New("")
	body := `<ac:structured-macro ac:name="info"><ac:parameter ac:name="title">Heads up</ac:parameter>` +
		`<ac:rich-text-body><p>Freeze starts Monday.</p></ac:rich-text-body></ac:structured-macro>`

	out, err := normaliser.Normalise(body)
	require.NoError(t, err)
	assert.Contains(t, out, "Freeze starts Monday.")
	assert.NotContains(t, out, "Heads up")
}

func TestReduceMacros_PlainHTMLUnchanged(t *testing.T) {
	body := `<p>No macros here.</p>`
	assert.Equal(t, body, reduceMacros(body))
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		contains []string
		excludes []string
	}{
		{
			name:     "removes scripts and styles",
			input:    `<style>p{}</style><p>Visible</p><script>var x;</script>`,
			contains: []string{"Visible"},
			excludes: []string{"p{}", "var x"},
		},
		{
			name:     "decodes entities",
			input:    `<p>Fish &amp; chips &lt;3</p>`,
			contains: []string{"Fish & chips <3"},
		},
		{
			name:     "splits blocks",
			input:    `<div>one</div><div>two</div>`,
			contains: []string{"one\n\ntwo"},
		},
		{
			name:     "drops comments",
			input:    `<!-- hidden --><p>shown</p>`,
			contains: []string{"shown"},
			excludes: []string{"hidden"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := stripHTML(tt.input)
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, out, s)
			}
		})
	}
}
