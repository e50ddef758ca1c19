package document

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func textBlock(id, text string) Block {
	return Block{
		ID: id,
		Payload: TextPayload{
			Role:    RoleParagraph,
			Content: []Inline{{ID: id + "-i1", Text: text}},
		},
	}
}

func testDocument() Document {
	doc := New("doc-1", "Climate Report 2026", "user-7")
	doc.Sections = []Section{
		{ID: "s1", Title: "Environment", Blocks: []Block{}},
		{ID: "s2", Title: "Governance", Blocks: []Block{}},
	}
	return doc
}

func TestConcatTextDeterministic(t *testing.T) {
	nodes := []Inline{{ID: "i1", Text: "ESG "}, {ID: "i2", Text: "Report"}}
	if got := ConcatText(nodes); got != "ESG Report" {
		t.Errorf("expected %q, got %q", "ESG Report", got)
	}
}

func TestInsertBlock(t *testing.T) {
	doc := testDocument()

	next, err := doc.InsertBlock("s1", textBlock("b1", "hello"), -1)
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	section, _ := next.FindSection("s1")
	if len(section.Blocks) != 1 || section.Blocks[0].ID != "b1" {
		t.Fatalf("expected one block b1, got %+v", section.Blocks)
	}

	// original value untouched
	original, _ := doc.FindSection("s1")
	if len(original.Blocks) != 0 {
		t.Errorf("insert mutated the source document")
	}
}

func TestInsertBlockAtIndex(t *testing.T) {
	doc := testDocument()
	doc, _ = doc.InsertBlock("s1", textBlock("b1", "one"), -1)
	doc, _ = doc.InsertBlock("s1", textBlock("b2", "two"), -1)

	doc, err := doc.InsertBlock("s1", textBlock("b3", "between"), 1)
	if err != nil {
		t.Fatalf("insert at index failed: %v", err)
	}
	section, _ := doc.FindSection("s1")
	order := []string{section.Blocks[0].ID, section.Blocks[1].ID, section.Blocks[2].ID}
	want := []string{"b1", "b3", "b2"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("expected order %v, got %v", want, order)
	}
}

func TestInsertBlockErrors(t *testing.T) {
	doc := testDocument()
	doc, _ = doc.InsertBlock("s1", textBlock("b1", "hello"), -1)

	tests := []struct {
		name      string
		sectionID string
		block     Block
		wantErr   error
	}{
		{
			name:      "section missing",
			sectionID: "nope",
			block:     textBlock("b2", "x"),
			wantErr:   ErrSectionNotFound,
		},
		{
			name:      "duplicate id in another section",
			sectionID: "s2",
			block:     textBlock("b1", "x"),
			wantErr:   ErrDuplicateBlockID,
		},
		{
			name:      "invalid payload",
			sectionID: "s1",
			block:     Block{ID: "b9", Payload: HeadingPayload{Level: 9}},
			wantErr:   ErrInvalidBlockPayload,
		},
		{
			name:      "missing payload",
			sectionID: "s1",
			block:     Block{ID: "b10"},
			wantErr:   ErrInvalidBlockPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := doc.InsertBlock(tt.sectionID, tt.block, -1)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if next.BlockCount() != doc.BlockCount() {
				t.Errorf("failed insert changed the tree")
			}
		})
	}
}

func TestDeleteBlock(t *testing.T) {
	doc := testDocument()
	doc, _ = doc.InsertBlock("s1", textBlock("b1", "hello"), -1)

	next, err := doc.DeleteBlock("b1")
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if next.HasBlockID("b1") {
		t.Errorf("block still present after delete")
	}

	if _, err := next.DeleteBlock("b1"); !errors.Is(err, ErrBlockNotFound) {
		t.Errorf("expected ErrBlockNotFound, got %v", err)
	}
}

func TestMoveBlockAcrossSections(t *testing.T) {
	doc := testDocument()
	doc, _ = doc.InsertBlock("s1", textBlock("b1", "moving"), -1)

	next, err := doc.MoveBlock("b1", "s2", 0)
	if err != nil {
		t.Fatalf("move failed: %v", err)
	}

	source, _ := next.FindSection("s1")
	if len(source.Blocks) != 0 {
		t.Errorf("block still in source section")
	}
	moved, sectionID, ok := next.FindBlock("b1")
	if !ok || sectionID != "s2" {
		t.Fatalf("block not found in target section, got %q", sectionID)
	}
	if got := PlainText(moved); got != "moving" {
		t.Errorf("content changed during move: %q", got)
	}
}

func TestUpdateBlockPayload(t *testing.T) {
	doc := testDocument()
	doc, _ = doc.InsertBlock("s1", Block{
		ID:      "m1",
		Payload: MetricPayload{Code: "GRI 305-1", Values: map[string]any{"2025": 120.5}, Unit: "tCO2eq"},
	}, -1)

	next, err := doc.UpdateBlockPayload("m1", MetricPayload{Values: map[string]any{"2026": 98.1}})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	block, _, _ := next.FindBlock("m1")
	metric := block.Payload.(MetricPayload)
	if metric.Code != "GRI 305-1" || metric.Unit != "tCO2eq" {
		t.Errorf("partial update dropped untouched fields: %+v", metric)
	}
	if _, ok := metric.Values["2026"]; !ok {
		t.Errorf("partial update did not apply values: %+v", metric.Values)
	}

	if _, err := next.UpdateBlockPayload("m1", TextPayload{Role: RoleParagraph}); !errors.Is(err, ErrVariantMismatch) {
		t.Errorf("expected ErrVariantMismatch, got %v", err)
	}
}

func TestApplyMarkIdempotent(t *testing.T) {
	doc := testDocument()
	doc, _ = doc.InsertBlock("s1", textBlock("b1", "bold me"), -1)

	next, err := doc.ApplyMark("b1-i1", MarkBold)
	if err != nil {
		t.Fatalf("apply mark failed: %v", err)
	}
	again, err := next.ApplyMark("b1-i1", MarkBold)
	if err != nil {
		t.Fatalf("re-apply mark failed: %v", err)
	}
	node, _, _ := again.FindInline("b1-i1")
	if len(node.Marks) != 1 || node.Marks[0] != MarkBold {
		t.Errorf("expected exactly one bold mark, got %v", node.Marks)
	}

	cleared, err := again.RemoveMark("b1-i1", MarkItalic)
	if err != nil {
		t.Fatalf("removing absent mark should be a no-op: %v", err)
	}
	node, _, _ = cleared.FindInline("b1-i1")
	if len(node.Marks) != 1 {
		t.Errorf("removing absent mark changed marks: %v", node.Marks)
	}
}

func TestListDepthCap(t *testing.T) {
	item := ListItem{ID: "leaf", Content: []Inline{{ID: "i", Text: "deep"}}}
	for depth := 0; depth < MaxListDepth; depth++ {
		item = ListItem{ID: "n", Items: []ListItem{item}}
	}
	err := ValidatePayload(ListPayload{Items: []ListItem{item}})
	if !errors.Is(err, ErrInvalidBlockPayload) {
		t.Errorf("expected depth violation, got %v", err)
	}

	shallow := ListPayload{Items: []ListItem{{ID: "a", Content: []Inline{{ID: "i", Text: "ok"}}}}}
	if err := ValidatePayload(shallow); err != nil {
		t.Errorf("shallow list rejected: %v", err)
	}
}

func TestPlainTextPerVariant(t *testing.T) {
	tests := []struct {
		name  string
		block Block
		want  string
	}{
		{
			name:  "text",
			block: textBlock("b1", "plain"),
			want:  "plain",
		},
		{
			name: "heading",
			block: Block{ID: "h1", Payload: HeadingPayload{
				Level:   2,
				Content: []Inline{{ID: "i1", Text: "Emissions "}, {ID: "i2", Text: "Overview"}},
			}},
			want: "Emissions Overview",
		},
		{
			name: "list",
			block: Block{ID: "l1", Payload: ListPayload{Items: []ListItem{
				{ID: "li1", Content: []Inline{{ID: "i1", Text: "first"}}},
				{ID: "li2", Content: []Inline{{ID: "i2", Text: "second"}}},
			}}},
			want: "first\nsecond",
		},
		{
			name:  "image alt",
			block: Block{ID: "img1", Payload: ImagePayload{Source: "s3://x", Alt: "solar farm"}},
			want:  "solar farm",
		},
		{
			name:  "table caption",
			block: Block{ID: "t1", Payload: TablePayload{Caption: "Energy use", Data: json.RawMessage(`{"rows":1}`)}},
			want:  "Energy use",
		},
		{
			name:  "metric extracts empty",
			block: Block{ID: "m1", Payload: MetricPayload{Code: "GRI 302-1"}},
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PlainText(tt.block); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

// Every declared variant must have a payload type that validates, clones and
// extracts text without falling into a default arm.
func TestVariantCoverage(t *testing.T) {
	payloads := map[BlockType]Payload{
		BlockText:    TextPayload{Role: RoleParagraph},
		BlockHeading: HeadingPayload{Level: 1},
		BlockList:    ListPayload{},
		BlockImage:   ImagePayload{},
		BlockTable:   TablePayload{},
		BlockChart:   ChartPayload{},
		BlockMetric:  MetricPayload{},
		BlockUnknown: UnknownPayload{WireType: "videoEmbed"},
	}

	if len(payloads) != len(BlockTypes) {
		t.Fatalf("payload fixture covers %d variants, model declares %d", len(payloads), len(BlockTypes))
	}
	for _, variant := range BlockTypes {
		payload, ok := payloads[variant]
		if !ok {
			t.Fatalf("no payload fixture for variant %q", variant)
		}
		if payload.Variant() != variant {
			t.Errorf("payload for %q reports variant %q", variant, payload.Variant())
		}
		if err := ValidatePayload(payload); err != nil {
			t.Errorf("baseline payload for %q does not validate: %v", variant, err)
		}
		if payload.clone().Variant() != variant {
			t.Errorf("clone of %q changed variant", variant)
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	doc := testDocument()
	doc, _ = doc.InsertBlock("s1", textBlock("b1", "original"), -1)

	clone := doc.Clone()
	section, _ := clone.FindSection("s1")
	payload := section.Blocks[0].Payload.(TextPayload)
	payload.Content[0].Text = "mutated"

	node, _, _ := doc.FindInline("b1-i1")
	if node.Text != "original" {
		t.Errorf("clone shares inline storage with source")
	}
}

func TestAddStandardRefMergesCodes(t *testing.T) {
	doc := testDocument()
	doc, _ = doc.AddStandardRef("s1", "GRI", "305-1")
	doc, _ = doc.AddStandardRef("s1", "GRI", "305-2", "305-1")
	doc, _ = doc.AddStandardRef("s1", "SASB", "EM0201-01")

	section, _ := doc.FindSection("s1")
	if len(section.StandardRefs) != 2 {
		t.Fatalf("expected two frameworks, got %+v", section.StandardRefs)
	}
	if !reflect.DeepEqual(section.StandardRefs[0].Codes, []string{"305-1", "305-2"}) {
		t.Errorf("GRI codes not merged: %v", section.StandardRefs[0].Codes)
	}
}
