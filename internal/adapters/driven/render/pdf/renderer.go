// Package pdf writes container reports as PDF files.
//
// The composed markdown is parsed with goldmark and the AST is laid out
// with fpdf core fonts. Text is translated to cp1252; characters outside it
// are replaced.
package pdf

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/custodia-labs/ctxexport/internal/adapters/driven/render"
	"github.com/custodia-labs/ctxexport/internal/core/domain"
	"github.com/custodia-labs/ctxexport/internal/core/ports/driven"
	"github.com/custodia-labs/ctxexport/internal/logger"
)

const (
	fontFamily = "Arial"
	fontSize   = 10.0
	lineHeight = 5.0
	pageWidth  = 180.0
	marginMM   = 15.0
)

// Ensure Renderer implements the interface.
var _ driven.Renderer = (*Renderer)(nil)

// Renderer lays out reports as A4 PDFs.
type Renderer struct {
	md goldmark.Markdown
}

// New creates a PDF renderer.
func New() *Renderer {
	return &Renderer{
		md: goldmark.New(goldmark.WithExtensions(extension.Table, extension.Strikethrough)),
	}
}

// Format returns domain.OutputPDF.
func (r *Renderer) Format() domain.OutputFormat {
	return domain.OutputPDF
}

// Render writes the report to w.
func (r *Renderer) Render(ctx context.Context, report domain.ContainerReport, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	source := []byte(render.Compose(report))
	doc := r.md.Parser().Parse(text.NewReader(source))

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(marginMM, marginMM, marginMM)
	pdf.SetAutoPageBreak(true, marginMM)
	pdf.SetTitle(render.Title(report), true)
	pdf.SetCreator("ctxexport", true)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-marginMM)
		pdf.SetFont(fontFamily, "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()
	pdf.SetFont(fontFamily, "", fontSize)

	lr := &layout{
		pdf:    pdf,
		source: source,
		tr:     pdf.UnicodeTranslatorFromDescriptor(""),
		size:   fontSize,
	}
	if err := ast.Walk(doc, lr.walk); err != nil {
		return fmt.Errorf("layout %s: %w", report.Container.ID(), err)
	}
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("layout %s: %w", report.Container.ID(), err)
	}

	logger.Debug("rendered %s as PDF with %d pages", report.Container.ID(), pdf.PageNo())
	return pdf.Output(w)
}

// layout walks a goldmark AST and writes it to the page.
type layout struct {
	pdf    *fpdf.Fpdf
	source []byte
	tr     func(string) string

	size      float64
	bold      bool
	italic    bool
	listLevel int
}

func (l *layout) setFont() {
	style := ""
	if l.bold {
		style += "B"
	}
	if l.italic {
		style += "I"
	}
	l.pdf.SetFont(fontFamily, style, l.size)
}

func (l *layout) write(s string) {
	l.pdf.Write(lineHeight, l.tr(s))
}

func (l *layout) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Heading:
		l.heading(node, entering)
	case *ast.Paragraph:
		if !entering {
			l.pdf.Ln(lineHeight + 1)
		}
	case *ast.Text:
		if entering {
			l.write(string(node.Segment.Value(l.source)))
			switch {
			case node.HardLineBreak():
				l.pdf.Ln(lineHeight)
			case node.SoftLineBreak():
				l.write(" ")
			}
		}
	case *ast.String:
		if entering {
			l.write(string(node.Value))
		}
	case *ast.Emphasis:
		if node.Level == 2 {
			l.bold = entering
		} else {
			l.italic = entering
		}
		l.setFont()
	case *ast.CodeSpan:
		if entering {
			l.pdf.SetFont("Courier", "", l.size)
			l.write(plainText(node, l.source))
			l.setFont()
		}
		return ast.WalkSkipChildren, nil
	case *ast.FencedCodeBlock:
		if entering {
			l.codeBlock(node.Lines())
		}
		return ast.WalkSkipChildren, nil
	case *ast.CodeBlock:
		if entering {
			l.codeBlock(node.Lines())
		}
		return ast.WalkSkipChildren, nil
	case *ast.Link:
		if entering {
			l.pdf.SetTextColor(30, 80, 160)
			l.pdf.WriteLinkString(lineHeight, l.tr(plainText(node, l.source)), string(node.Destination))
			l.pdf.SetTextColor(0, 0, 0)
		}
		return ast.WalkSkipChildren, nil
	case *ast.List:
		if entering {
			l.listLevel++
		} else {
			l.listLevel--
			if l.listLevel == 0 {
				l.pdf.Ln(2)
			}
		}
	case *ast.ListItem:
		if entering {
			l.pdf.SetX(marginMM + float64(l.listLevel)*5)
			l.write("- ")
		}
	case *ast.ThematicBreak:
		if entering {
			l.pdf.Ln(2)
			l.pdf.Line(marginMM, l.pdf.GetY(), marginMM+pageWidth, l.pdf.GetY())
			l.pdf.Ln(2)
		}
	case *extast.Table:
		if entering {
			l.table(node)
		}
		return ast.WalkSkipChildren, nil
	}
	return ast.WalkContinue, nil
}

func (l *layout) heading(n *ast.Heading, entering bool) {
	if !entering {
		l.pdf.Ln(lineHeight + 2)
		l.size = fontSize
		l.bold = false
		l.setFont()
		return
	}
	l.pdf.Ln(2)
	switch n.Level {
	case 1:
		l.size = 16
	case 2:
		l.size = 13
	case 3:
		l.size = 11.5
	default:
		l.size = fontSize + 0.5
	}
	l.bold = true
	l.setFont()
}

func (l *layout) codeBlock(lines *text.Segments) {
	l.pdf.Ln(1)
	l.pdf.SetFont("Courier", "", fontSize-1)
	l.pdf.SetFillColor(245, 245, 245)
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		l.pdf.MultiCell(0, lineHeight-0.5, l.tr(strings.TrimRight(string(line.Value(l.source)), "\n")), "", "L", true)
	}
	l.pdf.SetFillColor(255, 255, 255)
	l.setFont()
	l.pdf.Ln(2)
}

func (l *layout) table(n *extast.Table) {
	var rows [][]string
	for row := n.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, l.tr(plainText(cell, l.source)))
		}
		rows = append(rows, cells)
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return
	}

	cols := len(rows[0])
	widths := columnWidths(l.pdf, rows, cols)
	l.pdf.Ln(1)
	for i, row := range rows {
		style := ""
		if i == 0 {
			style = "B"
			l.pdf.SetFillColor(230, 230, 230)
		}
		l.pdf.SetFont(fontFamily, style, fontSize-1.5)

		height := 0.0
		for j := 0; j < cols && j < len(row); j++ {
			lines := l.pdf.SplitText(row[j], widths[j]-2)
			if h := float64(max(len(lines), 1)) * (lineHeight - 1); h > height {
				height = h
			}
		}
		height += 1
		_, pageHeight := l.pdf.GetPageSize()
		if l.pdf.GetY()+height > pageHeight-marginMM {
			l.pdf.AddPage()
		}

		x, y := l.pdf.GetX(), l.pdf.GetY()
		for j := 0; j < cols; j++ {
			cell := ""
			if j < len(row) {
				cell = row[j]
			}
			fill := "D"
			if i == 0 {
				fill = "FD"
			}
			l.pdf.Rect(x, y, widths[j], height, fill)
			l.pdf.SetXY(x+1, y+0.5)
			l.pdf.MultiCell(widths[j]-2, lineHeight-1, cell, "", "L", false)
			x += widths[j]
		}
		l.pdf.SetXY(marginMM, y+height)
	}
	l.pdf.SetFillColor(255, 255, 255)
	l.pdf.Ln(2)
	l.setFont()
}

// columnWidths sizes columns to their widest cell, scaled to fit the page.
func columnWidths(pdf *fpdf.Fpdf, rows [][]string, cols int) []float64 {
	const minWidth = 12.0
	widths := make([]float64, cols)
	pdf.SetFont(fontFamily, "B", fontSize-1.5)
	for _, row := range rows {
		for j := 0; j < cols && j < len(row); j++ {
			if w := pdf.GetStringWidth(row[j]) + 4; w > widths[j] {
				widths[j] = w
			}
		}
	}

	total := 0.0
	for j := range widths {
		widths[j] = max(widths[j], minWidth)
		total += widths[j]
	}
	if total > pageWidth {
		for j := range widths {
			widths[j] = max(widths[j]*pageWidth/total, minWidth*0.8)
		}
	}
	return widths
}

// plainText concatenates the text of every descendant.
func plainText(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}
