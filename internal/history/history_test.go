package history

import (
	"fmt"
	"testing"

	"greenprint/api/internal/document"
)

func docWithTitle(title string) document.Document {
	doc := document.New("doc-1", title, "author")
	return doc
}

func TestUndoRestoresPreviousSnapshot(t *testing.T) {
	h := New(docWithTitle("v1"), 0)
	h.Record(docWithTitle("v2"))

	if got := h.Undo(); got.Title != "v1" {
		t.Errorf("expected v1 after undo, got %q", got.Title)
	}
	if got := h.Redo(); got.Title != "v2" {
		t.Errorf("expected v2 after redo, got %q", got.Title)
	}
}

func TestUndoAtBoundaryIsNoOp(t *testing.T) {
	h := New(docWithTitle("only"), 0)
	if got := h.Undo(); got.Title != "only" {
		t.Errorf("undo with empty past changed present: %q", got.Title)
	}
	if got := h.Redo(); got.Title != "only" {
		t.Errorf("redo with empty future changed present: %q", got.Title)
	}
}

func TestFreshRecordClearsRedo(t *testing.T) {
	h := New(docWithTitle("v1"), 0)
	h.Record(docWithTitle("v2"))
	h.Undo()

	h.Record(docWithTitle("v3"))
	if h.CanRedo() {
		t.Fatalf("redo stack should be empty after a fresh record")
	}
	if got := h.Redo(); got.Title != "v3" {
		t.Errorf("redo after fresh record should be a no-op, got %q", got.Title)
	}
}

func TestDepthCapDropsOldest(t *testing.T) {
	h := New(docWithTitle("v0"), 3)
	for i := 1; i <= 5; i++ {
		h.Record(docWithTitle(fmt.Sprintf("v%d", i)))
	}

	titles := []string{}
	for h.CanUndo() {
		titles = append(titles, h.Undo().Title)
	}
	want := []string{"v4", "v3", "v2"}
	if len(titles) != len(want) {
		t.Fatalf("expected %d undo steps, got %d (%v)", len(want), len(titles), titles)
	}
	for i := range want {
		if titles[i] != want[i] {
			t.Errorf("undo step %d: expected %q, got %q", i, want[i], titles[i])
		}
	}
}

func TestSnapshotsAreIsolated(t *testing.T) {
	base := docWithTitle("base")
	base.Sections = []document.Section{{ID: "s1", Title: "Chapter"}}

	h := New(base, 0)
	edited, err := base.InsertBlock("s1", document.Block{
		ID:      "b1",
		Payload: document.TextPayload{Role: document.RoleParagraph, Content: []document.Inline{{ID: "i1", Text: "hi"}}},
	}, -1)
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	h.Record(edited)

	restored := h.Undo()
	if restored.BlockCount() != 0 {
		t.Errorf("undo snapshot shows later edits: %d blocks", restored.BlockCount())
	}
}

func TestReset(t *testing.T) {
	h := New(docWithTitle("v1"), 0)
	h.Record(docWithTitle("v2"))
	h.Undo()

	h.Reset(docWithTitle("fresh"))
	if h.CanUndo() || h.CanRedo() {
		t.Errorf("reset left history stacks populated")
	}
	if got := h.Present(); got.Title != "fresh" {
		t.Errorf("expected fresh present, got %q", got.Title)
	}
}
