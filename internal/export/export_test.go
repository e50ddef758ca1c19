package export

import (
	"encoding/json"
	"strings"
	"testing"

	"greenprint/api/internal/document"
)

func TestBlockHTML(t *testing.T) {
	tests := []struct {
		name     string
		block    document.Block
		expected []string
		absent   []string
	}{
		{
			name: "paragraph",
			block: document.Block{ID: "b1", Payload: document.TextPayload{
				Role:    document.RoleParagraph,
				Content: []document.Inline{{ID: "i1", Text: "Hello world"}},
			}},
			expected: []string{"<p>Hello world</p>"},
		},
		{
			name: "quote",
			block: document.Block{ID: "b2", Payload: document.TextPayload{
				Role:    document.RoleQuote,
				Content: []document.Inline{{ID: "i1", Text: "Net zero by 2040."}},
			}},
			expected: []string{"<blockquote><p>Net zero by 2040.</p></blockquote>"},
		},
		{
			name: "heading shifts below section title",
			block: document.Block{ID: "b3", Payload: document.HeadingPayload{
				Level:   1,
				Content: []document.Inline{{ID: "i1", Text: "Emissions"}},
			}},
			expected: []string{"<h2>Emissions</h2>"},
		},
		{
			name: "marks nest and escape",
			block: document.Block{ID: "b4", Payload: document.TextPayload{
				Role: document.RoleParagraph,
				Content: []document.Inline{{
					ID:    "i1",
					Text:  "CO2 <limits>",
					Marks: []document.Mark{document.MarkBold, document.MarkSubscript},
				}},
			}},
			expected: []string{"<strong><sub>CO2 &lt;limits&gt;</sub></strong>"},
		},
		{
			name: "link wraps marked text",
			block: document.Block{ID: "b5", Payload: document.TextPayload{
				Role: document.RoleParagraph,
				Content: []document.Inline{{
					ID:   "i1",
					Text: "GHG Protocol",
					Link: &document.Link{URL: "https://ghgprotocol.org"},
				}},
			}},
			expected: []string{`<a href="https://ghgprotocol.org">GHG Protocol</a>`},
		},
		{
			name: "ordered list with start",
			block: document.Block{ID: "b6", Payload: document.ListPayload{
				Ordered: true,
				Start:   3,
				Items: []document.ListItem{
					{ID: "li1", Content: []document.Inline{{ID: "i1", Text: "Solar"}}},
					{ID: "li2", Content: []document.Inline{{ID: "i2", Text: "Wind"}}, Items: []document.ListItem{
						{ID: "li3", Content: []document.Inline{{ID: "i3", Text: "Offshore"}}},
					}},
				},
			}},
			expected: []string{`<ol start="3">`, "<li>Solar</li>", "<li>Offshore</li>"},
		},
		{
			name: "image with caption",
			block: document.Block{ID: "b7", Payload: document.ImagePayload{
				Source: "assets/plant.png", Alt: "Treatment plant", Caption: "Water treatment",
			}},
			expected: []string{`<img src="assets/plant.png" alt="Treatment plant">`, "<figcaption>Water treatment</figcaption>"},
		},
		{
			name: "table renders rows",
			block: document.Block{ID: "b8", Payload: document.TablePayload{
				Caption: "Board",
				Data:    json.RawMessage(`{"rows":[["Role","Count"],["Independent","5"]]}`),
			}},
			expected: []string{"<caption>Board</caption>", "<th>Role</th>", "<td>5</td>"},
		},
		{
			name: "metric renders values with unit",
			block: document.Block{ID: "b9", Payload: document.MetricPayload{
				Code: "GRI 305-1", Unit: "tCO2eq",
				Values: map[string]any{"2026": 98.1, "2025": 120.5},
			}},
			expected: []string{"GRI 305-1 (tCO2eq)", "<th>2025</th>", "<th>2026</th>"},
		},
		{
			name: "unknown renders nothing",
			block: document.Block{ID: "b10", Payload: document.UnknownPayload{
				WireType: "videoEmbed",
				Data:     json.RawMessage(`{"provider":"vimeo"}`),
			}},
			absent: []string{"vimeo"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BlockHTML(tt.block, false)
			for _, want := range tt.expected {
				if !strings.Contains(got, want) {
					t.Errorf("missing %q in:\n%s", want, got)
				}
			}
			for _, bad := range tt.absent {
				if strings.Contains(got, bad) {
					t.Errorf("unexpected %q in:\n%s", bad, got)
				}
			}
		})
	}
}

func TestMetricPeriodsSortedDeterministically(t *testing.T) {
	block := document.Block{ID: "m", Payload: document.MetricPayload{
		Code:   "GRI 302-1",
		Values: map[string]any{"2026": 1, "2023": 2, "2025": 3, "2024": 4},
	}}
	got := BlockHTML(block, false)
	last := -1
	for _, period := range []string{"2023", "2024", "2025", "2026"} {
		idx := strings.Index(got, "<th>"+period+"</th>")
		if idx < 0 || idx < last {
			t.Fatalf("periods out of order in:\n%s", got)
		}
		last = idx
	}
}

func TestAnnotationsRenderOnlyWhenRequested(t *testing.T) {
	block := document.Block{ID: "b1", Payload: document.TextPayload{
		Role: document.RoleParagraph,
		Content: []document.Inline{{
			ID:   "i1",
			Text: "Emissions fell.",
			Annotation: &document.Annotation{
				ID: "a1", AuthorID: "ai-assist", Text: "Expanded with baseline context.",
			},
		}},
	}}

	if got := BlockHTML(block, false); strings.Contains(got, "annotation") {
		t.Errorf("annotation rendered without request:\n%s", got)
	}
	got := BlockHTML(block, true)
	if !strings.Contains(got, "ai-assist") || !strings.Contains(got, "baseline context") {
		t.Errorf("annotation missing:\n%s", got)
	}
}

func TestDocumentToHTMLSectionsAndRefs(t *testing.T) {
	doc := document.New("1", "Report", "7")
	doc.Sections = []document.Section{{
		ID:           "s1",
		Title:        "Environment & Energy",
		Description:  "Scope 1 and 2",
		StandardRefs: []document.StandardRef{{Framework: "GRI", Codes: []string{"305-1", "305-2"}}},
		Blocks: []document.Block{{
			ID:      "b1",
			Payload: document.TextPayload{Role: document.RoleParagraph, Content: []document.Inline{{ID: "i1", Text: "body"}}},
		}},
	}}

	got := DocumentToHTML(doc, false)
	for _, want := range []string{
		"<h1>Environment &amp; Energy</h1>",
		`<p class="section-desc">Scope 1 and 2</p>`,
		"GRI: 305-1, 305-2",
		"<p>body</p>",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
}

func TestRenderDocumentHTMLUsesPageSetup(t *testing.T) {
	doc := document.New("1", "Climate Report", "7")
	doc.PageSetup = document.PageSetup{
		Format:      "Letter",
		Orientation: "landscape",
		MarginTop:   10, MarginBot: 10, MarginLeft: 15, MarginRight: 15,
	}

	html, err := RenderDocumentHTML(doc, "<p>x</p>")
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(html, "size: Letter landscape") {
		t.Errorf("page setup not reflected in @page rule:\n%s", html)
	}
	if !strings.Contains(html, "margin: 10mm 15mm 10mm 15mm") {
		t.Errorf("margins not reflected:\n%s", html)
	}
	if !strings.Contains(html, "<title>Climate Report</title>") {
		t.Errorf("title missing")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2026 Climate Report", "2026-Climate-Report"},
		{"ESG/보고서: Q1", "ESG-Q1"},
		{"", "report"},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
