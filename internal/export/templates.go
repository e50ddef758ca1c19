package export

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"greenprint/api/internal/document"
)

var documentTemplate = template.Must(template.New("document").Funcs(template.FuncMap{
	"lower": strings.ToLower,
	"formatDate": func(t time.Time, layout string) string {
		return t.Format(layout)
	},
}).Parse(pageTemplate))

// TemplateData holds data for document template rendering.
type TemplateData struct {
	Title       string
	Status      string
	Author      string
	UpdatedAt   time.Time
	PageCSS     template.CSS
	ContentHTML template.HTML
}

// RenderDocumentHTML wraps the rendered body in the print page layout.
func RenderDocumentHTML(doc document.Document, bodyHTML string) (string, error) {
	data := TemplateData{
		Title:       doc.Title,
		Status:      string(doc.Metadata.Status),
		Author:      doc.Metadata.AuthorID,
		UpdatedAt:   doc.Metadata.UpdatedAt,
		PageCSS:     pageCSS(doc.PageSetup),
		ContentHTML: template.HTML(bodyHTML),
	}
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// pageCSS translates the document's page setup into an @page rule so the
// print engine honors the authored layout.
func pageCSS(setup document.PageSetup) template.CSS {
	size := setup.Format
	if size == "" {
		size = "A4"
	}
	if setup.Orientation == "landscape" {
		size += " landscape"
	}
	rule := fmt.Sprintf("@page { size: %s; margin: %.0fmm %.0fmm %.0fmm %.0fmm; }",
		size, setup.MarginTop, setup.MarginRight, setup.MarginBot, setup.MarginLeft)
	return template.CSS(rule)
}

const pageTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    {{.PageCSS}}
    body { font-family: 'Noto Sans', Arial, sans-serif; line-height: 1.6; color: #1a1a1a; }
    section { page-break-after: always; }
    section:last-child { page-break-after: auto; }
    h1 { border-bottom: 2px solid #2e7d32; padding-bottom: 0.4rem; }
    .meta { color: #666; font-size: 0.85em; margin-bottom: 2rem; }
    .section-desc { color: #444; font-style: italic; }
    .standard-ref { color: #2e7d32; font-size: 0.85em; }
    table { border-collapse: collapse; width: 100%; margin: 1rem 0; }
    th, td { border: 1px solid #ccc; padding: 0.4rem 0.6rem; text-align: left; }
    table.metric caption { font-weight: bold; text-align: left; margin-bottom: 0.3rem; }
    figure { margin: 1rem 0; }
    figcaption { color: #666; font-size: 0.85em; }
    .chart-placeholder { border: 1px dashed #aaa; padding: 2rem; text-align: center; }
    .annotation { color: #9c27b0; font-size: 0.8em; }
    mark { background: #fff59d; }
  </style>
</head>
<body>
  <header>
    <h1>{{.Title}}</h1>
    <div class="meta">{{.Status | lower}} | {{.Author}} | {{formatDate .UpdatedAt "Jan 2, 2006"}}</div>
  </header>
  {{.ContentHTML}}
</body>
</html>`
