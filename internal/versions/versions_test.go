package versions

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"greenprint/api/internal/document"
)

func archiveFixture() document.Document {
	doc := document.New("42", "Climate Report", "7")
	doc.Sections = []document.Section{{ID: "s1", Title: "Environment", Blocks: []document.Block{}}}
	return doc
}

func TestVersionArchiveLifecycle(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)
	doc := archiveFixture()

	if err := svc.EnsureRepo(doc, "Avery"); err != nil {
		t.Fatalf("EnsureRepo() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "42")); err != nil {
		t.Fatalf("repo directory missing: %v", err)
	}
	// idempotent
	if err := svc.EnsureRepo(doc, "Avery"); err != nil {
		t.Fatalf("EnsureRepo() second call error = %v", err)
	}

	updated, err := doc.InsertBlock("s1", document.Block{
		ID: "b1",
		Payload: document.TextPayload{
			Role:    document.RoleParagraph,
			Content: []document.Inline{{ID: "b1-i1", Text: "Emissions down twelve percent."}},
		},
	}, -1)
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	version, err := svc.CommitVersion(updated, "Avery", "2026 H1 review draft")
	if err != nil {
		t.Fatalf("CommitVersion() error = %v", err)
	}
	if version.Hash == "" || version.Author != "Avery" {
		t.Fatalf("unexpected version info: %+v", version)
	}

	history, err := svc.History("42", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected baseline plus one version, got %d", len(history))
	}
	if !strings.Contains(history[0].Message, "H1 review") {
		t.Errorf("newest version not first: %+v", history[0])
	}

	archived, err := svc.GetVersion("42", version.Hash)
	if err != nil {
		t.Fatalf("GetVersion() error = %v", err)
	}
	if !archived.HasBlockID("b1") {
		t.Errorf("archived version lost content")
	}
	block, _, _ := archived.FindBlock("b1")
	if got := document.PlainText(block); got != "Emissions down twelve percent." {
		t.Errorf("archived text changed: %q", got)
	}
}

func TestTaggedVersionResolvesByName(t *testing.T) {
	svc := New(t.TempDir())
	doc := archiveFixture()

	if err := svc.EnsureRepo(doc, "Avery"); err != nil {
		t.Fatalf("EnsureRepo() error = %v", err)
	}
	version, err := svc.CommitVersion(doc.SetTitle("Climate Report, approved"), "Avery", "Final")
	if err != nil {
		t.Fatalf("CommitVersion() error = %v", err)
	}
	if err := svc.TagVersion("42", version.Hash, "board-approved"); err != nil {
		t.Fatalf("TagVersion() error = %v", err)
	}
	// tagging twice is a no-op
	if err := svc.TagVersion("42", version.Hash, "board-approved"); err != nil {
		t.Fatalf("TagVersion() repeat error = %v", err)
	}

	archived, err := svc.GetVersion("42", "board-approved")
	if err != nil {
		t.Fatalf("GetVersion() by tag error = %v", err)
	}
	if archived.Title != "Climate Report, approved" {
		t.Errorf("tag resolved to wrong version: %q", archived.Title)
	}
}

func TestDocumentIDCannotEscapeArchiveRoot(t *testing.T) {
	svc := New(t.TempDir())

	for _, id := range []string{"", ".", "..", "../outside", "a/b", `a\b`} {
		if _, err := svc.History(id, 10); !errors.Is(err, ErrInvalidDocumentID) {
			t.Errorf("History(%q) error = %v, want ErrInvalidDocumentID", id, err)
		}
		if _, err := svc.GetVersion(id, "HEAD"); !errors.Is(err, ErrInvalidDocumentID) {
			t.Errorf("GetVersion(%q) error = %v, want ErrInvalidDocumentID", id, err)
		}
		if err := svc.TagVersion(id, "HEAD", "v1"); !errors.Is(err, ErrInvalidDocumentID) {
			t.Errorf("TagVersion(%q) error = %v, want ErrInvalidDocumentID", id, err)
		}
	}

	doc := archiveFixture()
	doc.ID = "../escape"
	if err := svc.EnsureRepo(doc, "Avery"); !errors.Is(err, ErrInvalidDocumentID) {
		t.Fatalf("EnsureRepo() error = %v, want ErrInvalidDocumentID", err)
	}
	if _, err := svc.CommitVersion(doc, "Avery", "sneaky"); !errors.Is(err, ErrInvalidDocumentID) {
		t.Fatalf("CommitVersion() error = %v, want ErrInvalidDocumentID", err)
	}
}

func TestConcurrentCommitsSameDocument(t *testing.T) {
	svc := New(t.TempDir())
	doc := archiveFixture()

	if err := svc.EnsureRepo(doc, "Avery"); err != nil {
		t.Fatalf("EnsureRepo() error = %v", err)
	}

	const writers = 8
	var wg sync.WaitGroup
	errCh := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			next := doc.SetTitle(fmt.Sprintf("Climate Report rev %02d", idx))
			if _, err := svc.CommitVersion(next, "Avery", fmt.Sprintf("Revision %02d", idx)); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Fatalf("CommitVersion() concurrent error = %v", err)
	}

	history, err := svc.History("42", 100)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != writers+1 {
		t.Fatalf("expected %d commits, got %d", writers+1, len(history))
	}
}
