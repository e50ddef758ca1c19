package export

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"greenprint/api/internal/document"
)

// DocumentToHTML renders the report body as HTML, section by section. The
// output is a fragment; the page template wraps it.
func DocumentToHTML(doc document.Document, includeAnnotations bool) string {
	var out strings.Builder
	for _, section := range doc.Sections {
		out.WriteString("<section>\n")
		out.WriteString(fmt.Sprintf("<h1>%s</h1>\n", html.EscapeString(section.Title)))
		if section.Description != "" {
			out.WriteString(fmt.Sprintf(`<p class="section-desc">%s</p>`+"\n", html.EscapeString(section.Description)))
		}
		for _, ref := range section.StandardRefs {
			out.WriteString(fmt.Sprintf(`<p class="standard-ref">%s: %s</p>`+"\n",
				html.EscapeString(ref.Framework), html.EscapeString(strings.Join(ref.Codes, ", "))))
		}
		for _, block := range section.Blocks {
			out.WriteString(BlockHTML(block, includeAnnotations))
		}
		out.WriteString("</section>\n")
	}
	return out.String()
}

// BlockHTML renders one block. Unknown variants render nothing: they carry
// widget data this renderer cannot interpret, and losing them silently from
// print output is preferable to emitting raw JSON.
func BlockHTML(block document.Block, includeAnnotations bool) string {
	switch payload := block.Payload.(type) {
	case document.TextPayload:
		content := renderInlines(payload.Content, includeAnnotations)
		if payload.Role == document.RoleQuote {
			return fmt.Sprintf("<blockquote><p>%s</p></blockquote>\n", content)
		}
		return fmt.Sprintf("<p>%s</p>\n", content)
	case document.HeadingPayload:
		level := payload.Level + 1 // h1 is reserved for section titles
		if level > 6 {
			level = 6
		}
		return fmt.Sprintf("<h%d>%s</h%d>\n", level, renderInlines(payload.Content, includeAnnotations), level)
	case document.ListPayload:
		return renderList(payload, includeAnnotations)
	case document.ImagePayload:
		alt := html.EscapeString(payload.Alt)
		out := fmt.Sprintf(`<figure><img src="%s" alt="%s">`, html.EscapeString(payload.Source), alt)
		if payload.Caption != "" {
			out += fmt.Sprintf("<figcaption>%s</figcaption>", html.EscapeString(payload.Caption))
		}
		return out + "</figure>\n"
	case document.TablePayload:
		return renderTable(payload)
	case document.ChartPayload:
		caption := payload.Caption
		if caption == "" {
			caption = "Chart"
		}
		return fmt.Sprintf(`<figure class="chart-placeholder"><figcaption>%s</figcaption></figure>`+"\n",
			html.EscapeString(caption))
	case document.MetricPayload:
		return renderMetric(payload)
	default:
		return ""
	}
}

func renderList(payload document.ListPayload, includeAnnotations bool) string {
	tag := "ul"
	attrs := ""
	if payload.Ordered {
		tag = "ol"
		if payload.Start > 1 {
			attrs = fmt.Sprintf(` start="%d"`, payload.Start)
		}
	}
	return fmt.Sprintf("<%s%s>\n%s</%s>\n", tag, attrs, renderListItems(payload.Items, payload.Ordered, includeAnnotations), tag)
}

func renderListItems(items []document.ListItem, ordered bool, includeAnnotations bool) string {
	var out strings.Builder
	for _, item := range items {
		out.WriteString("<li>")
		out.WriteString(renderInlines(item.Content, includeAnnotations))
		if len(item.Items) > 0 {
			tag := "ul"
			if ordered {
				tag = "ol"
			}
			out.WriteString(fmt.Sprintf("\n<%s>\n%s</%s>\n", tag, renderListItems(item.Items, ordered, includeAnnotations), tag))
		}
		out.WriteString("</li>\n")
	}
	return out.String()
}

// renderTable prints tabular data when it follows the widget's row layout;
// anything else falls back to the caption alone.
func renderTable(payload document.TablePayload) string {
	var out strings.Builder
	out.WriteString("<table>\n")
	if payload.Caption != "" {
		out.WriteString(fmt.Sprintf("<caption>%s</caption>\n", html.EscapeString(payload.Caption)))
	}

	var data struct {
		Rows [][]string `json:"rows"`
	}
	if err := json.Unmarshal(payload.Data, &data); err == nil {
		for i, row := range data.Rows {
			cell := "td"
			if i == 0 {
				cell = "th"
			}
			out.WriteString("<tr>")
			for _, value := range row {
				out.WriteString(fmt.Sprintf("<%s>%s</%s>", cell, html.EscapeString(value), cell))
			}
			out.WriteString("</tr>\n")
		}
	}
	out.WriteString("</table>\n")
	return out.String()
}

func renderMetric(payload document.MetricPayload) string {
	var out strings.Builder
	out.WriteString(`<table class="metric">` + "\n")
	title := payload.Code
	if payload.Unit != "" {
		title += " (" + payload.Unit + ")"
	}
	out.WriteString(fmt.Sprintf("<caption>%s</caption>\n", html.EscapeString(title)))
	for _, entry := range sortedValues(payload.Values) {
		out.WriteString(fmt.Sprintf("<tr><th>%s</th><td>%s</td></tr>\n",
			html.EscapeString(entry.period), html.EscapeString(entry.value)))
	}
	out.WriteString("</table>\n")
	return out.String()
}

type metricEntry struct {
	period string
	value  string
}

func sortedValues(values map[string]any) []metricEntry {
	entries := make([]metricEntry, 0, len(values))
	for period, value := range values {
		entries = append(entries, metricEntry{period: period, value: fmt.Sprint(value)})
	}
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].period < entries[j-1].period; j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
	return entries
}

func renderInlines(nodes []document.Inline, includeAnnotations bool) string {
	var out strings.Builder
	for _, node := range nodes {
		out.WriteString(renderInline(node, includeAnnotations))
	}
	return out.String()
}

func renderInline(node document.Inline, includeAnnotations bool) string {
	text := html.EscapeString(node.Text)

	// Marks nest from the inside out, in the order they were applied.
	for i := len(node.Marks) - 1; i >= 0; i-- {
		switch node.Marks[i] {
		case document.MarkBold:
			text = "<strong>" + text + "</strong>"
		case document.MarkItalic:
			text = "<em>" + text + "</em>"
		case document.MarkUnderline:
			text = "<u>" + text + "</u>"
		case document.MarkStrike:
			text = "<s>" + text + "</s>"
		case document.MarkHighlight:
			text = "<mark>" + text + "</mark>"
		case document.MarkCode:
			text = "<code>" + text + "</code>"
		case document.MarkSubscript:
			text = "<sub>" + text + "</sub>"
		case document.MarkSuperscript:
			text = "<sup>" + text + "</sup>"
		}
	}

	if node.Link != nil {
		text = fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(node.Link.URL), text)
	}
	if includeAnnotations && node.Annotation != nil && node.Annotation.Text != "" {
		text += fmt.Sprintf(`<span class="annotation">[%s: %s]</span>`,
			html.EscapeString(node.Annotation.AuthorID), html.EscapeString(node.Annotation.Text))
	}
	return text
}
