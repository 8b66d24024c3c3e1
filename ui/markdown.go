package ui

import (
	"html/template"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// renderMarkdown converts a model description to HTML for the detail page.
// Descriptions are written by model authors, not end users, so the rendered
// output is embedded as-is.
func renderMarkdown(src string) template.HTML {
	if src == "" {
		return ""
	}
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse([]byte(src))
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return template.HTML(markdown.Render(doc, renderer))
}
