package editor

import (
	"errors"
	"testing"

	"greenprint/api/internal/document"
)

func sessionFixture() *Session {
	doc := document.New("doc-1", "Annual Report", "user-1")
	doc.Sections = []document.Section{
		{ID: "s1", Title: "Environment", Blocks: []document.Block{}},
		{ID: "s2", Title: "Social", Blocks: []document.Block{}},
	}
	return NewSession(doc, 0)
}

func paragraph(id, text string) document.Block {
	return document.Block{
		ID: id,
		Payload: document.TextPayload{
			Role:    document.RoleParagraph,
			Content: []document.Inline{{ID: id + "-i1", Text: text}},
		},
	}
}

func TestFreshSessionIsClean(t *testing.T) {
	s := sessionFixture()
	status, offline, dirty := s.Status()
	if status != StatusIdle || offline || dirty {
		t.Errorf("fresh session not clean: status=%v offline=%v dirty=%v", status, offline, dirty)
	}
	if s.CanUndo() || s.CanRedo() {
		t.Errorf("fresh session has history")
	}
}

func TestEditMarksDirtyAndUndoClears(t *testing.T) {
	s := sessionFixture()

	if err := s.InsertBlock("s1", paragraph("b1", "hello"), -1); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	status, _, dirty := s.Status()
	if status != StatusEdited || !dirty {
		t.Errorf("edit did not mark session: status=%v dirty=%v", status, dirty)
	}

	s.Undo()
	status, _, dirty = s.Status()
	if status != StatusIdle || dirty {
		t.Errorf("undo to loaded state should clear dirty: status=%v dirty=%v", status, dirty)
	}

	s.Redo()
	if _, _, dirty := s.Status(); !dirty {
		t.Errorf("redo should restore the dirty flag")
	}
}

func TestSaveLifecycle(t *testing.T) {
	s := sessionFixture()

	if _, err := s.BeginSave(); !errors.Is(err, ErrNothingToSave) {
		t.Fatalf("clean session accepted a save: %v", err)
	}

	if err := s.InsertBlock("s1", paragraph("b1", "hello"), -1); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	pending, err := s.BeginSave()
	if err != nil {
		t.Fatalf("begin save failed: %v", err)
	}
	if status, _, _ := s.Status(); status != StatusSaving {
		t.Errorf("expected saving, got %v", status)
	}
	if _, err := s.BeginSave(); !errors.Is(err, ErrSaveInFlight) {
		t.Errorf("overlapping save accepted: %v", err)
	}

	s.FinishSave(pending, nil, false)
	status, _, dirty := s.Status()
	if status != StatusSaved || dirty {
		t.Errorf("successful save: status=%v dirty=%v", status, dirty)
	}
	if s.LastSaved().IsZero() {
		t.Errorf("last saved time not recorded")
	}
}

func TestEditDuringSaveLandsOnEdited(t *testing.T) {
	s := sessionFixture()
	if err := s.InsertBlock("s1", paragraph("b1", "hello"), -1); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	pending, err := s.BeginSave()
	if err != nil {
		t.Fatalf("begin save failed: %v", err)
	}
	if err := s.InsertBlock("s1", paragraph("b2", "typed meanwhile"), -1); err != nil {
		t.Fatalf("edit during save failed: %v", err)
	}

	s.FinishSave(pending, nil, false)
	status, _, dirty := s.Status()
	if status != StatusEdited || !dirty {
		t.Errorf("save completing under new edits: status=%v dirty=%v", status, dirty)
	}
}

func TestFailedSaveKeepsChanges(t *testing.T) {
	s := sessionFixture()
	if err := s.InsertBlock("s1", paragraph("b1", "hello"), -1); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	pending, _ := s.BeginSave()
	s.FinishSave(pending, errors.New("connection refused"), true)

	status, offline, dirty := s.Status()
	if status != StatusError || !offline || !dirty {
		t.Errorf("failed save: status=%v offline=%v dirty=%v", status, offline, dirty)
	}
	if !s.Document().HasBlockID("b1") {
		t.Errorf("failed save lost local changes")
	}

	// A retry that succeeds recovers connectivity.
	pending, err := s.BeginSave()
	if err != nil {
		t.Fatalf("retry rejected: %v", err)
	}
	s.FinishSave(pending, nil, false)
	status, offline, dirty = s.Status()
	if status != StatusSaved || offline || dirty {
		t.Errorf("retry did not recover: status=%v offline=%v dirty=%v", status, offline, dirty)
	}
}

func TestDeletedBlockIDIsNeverReused(t *testing.T) {
	s := sessionFixture()
	if err := s.InsertBlock("s1", paragraph("b1", "hello"), -1); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := s.DeleteBlock("b1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	err := s.InsertBlock("s1", paragraph("b1", "impostor"), -1)
	if !errors.Is(err, ErrBlockIDRetired) {
		t.Fatalf("retired id accepted: %v", err)
	}

	// Undo restores the original block under its original id; that is a
	// restore, not a reuse.
	s.Undo()
	if !s.Document().HasBlockID("b1") {
		t.Errorf("undo did not restore the deleted block")
	}
}

func TestDeleteSectionRetiresItsBlocks(t *testing.T) {
	s := sessionFixture()
	if err := s.InsertBlock("s2", paragraph("b7", "social"), -1); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := s.DeleteSection("s2"); err != nil {
		t.Fatalf("delete section failed: %v", err)
	}

	if err := s.InsertBlock("s1", paragraph("b7", "reborn"), -1); !errors.Is(err, ErrBlockIDRetired) {
		t.Errorf("block id from deleted section accepted: %v", err)
	}
}

func TestSelectionFollowsDeletes(t *testing.T) {
	s := sessionFixture()
	if err := s.InsertBlock("s1", paragraph("b1", "hello"), -1); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	s.SetSelection(Selection{BlockID: "b1", InlineID: "b1-i1", Start: 1, End: 3})
	if got := s.Selection(); got.SectionID != "s1" {
		t.Errorf("selection did not resolve its section: %+v", got)
	}

	if err := s.DeleteBlock("b1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	got := s.Selection()
	if got.BlockID != "" || got.InlineID != "" || got.Start != 0 || got.End != 0 {
		t.Errorf("selection still references deleted block: %+v", got)
	}
	if got.SectionID != "s1" {
		t.Errorf("selection lost its surviving section: %+v", got)
	}
}

func TestReplaceAdvancesEpochAndDropsStaleSave(t *testing.T) {
	s := sessionFixture()
	if err := s.InsertBlock("s1", paragraph("b1", "hello"), -1); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	pending, _ := s.BeginSave()
	before := s.Epoch()

	fresh := document.New("doc-2", "Reloaded", "user-1")
	s.Replace(fresh)
	if s.Epoch() != before+1 {
		t.Errorf("replace did not advance the epoch")
	}
	if s.CanUndo() || s.CanRedo() {
		t.Errorf("replace kept stale history")
	}

	// The save was for the previous generation; completing it must not
	// mark the new document saved.
	s.FinishSave(pending, nil, false)
	if status, _, _ := s.Status(); status != StatusIdle {
		t.Errorf("stale save result leaked into new generation: %v", status)
	}
}

func TestSubscribeReceivesEdits(t *testing.T) {
	s := sessionFixture()
	events, cancel := s.Subscribe()
	defer cancel()

	if err := s.InsertBlock("s1", paragraph("b1", "hello"), -1); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	select {
	case event := <-events:
		if event.DocumentID != "doc-1" || !event.Dirty {
			t.Errorf("unexpected event: %+v", event)
		}
	default:
		t.Fatal("no event published for an edit")
	}
}

func TestNewBlockIDAvoidsRetired(t *testing.T) {
	s := sessionFixture()
	id := s.NewBlockID()
	if id == "" {
		t.Fatal("empty id")
	}
	if err := s.InsertBlock("s1", paragraph(id, "x"), -1); err != nil {
		t.Errorf("minted id rejected: %v", err)
	}
}
