// Package versions keeps a named-version archive per document, backed by a
// plain git repository on disk. Every saved version is one commit touching
// document.json in the server schema, so the archive stays readable by
// ordinary git tooling.
package versions

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"greenprint/api/internal/document"
	"greenprint/api/internal/wire"
)

const contentFile = "document.json"

// ErrInvalidDocumentID rejects document ids that are not usable as a single
// directory name under the archive root.
var ErrInvalidDocumentID = errors.New("invalid document id")

// VersionInfo describes one archived version.
type VersionInfo struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

// Service owns the version repositories under baseDir, one per document.
type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

// New creates a version service rooted at baseDir.
func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// EnsureRepo initializes the archive for a document if it does not exist,
// committing the given document as the baseline.
func (s *Service) EnsureRepo(doc document.Document, author string) error {
	if err := checkDocumentID(doc.ID); err != nil {
		return err
	}
	lock := s.documentLock(doc.ID)
	lock.Lock()
	defer lock.Unlock()

	path := s.repoPath(doc.ID)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat repo path: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create repo dir: %w", err)
	}
	repo, err := git.PlainInit(path, false)
	if err != nil {
		return fmt.Errorf("init repo: %w", err)
	}

	hash, err := commitDocument(repo, doc, author, "Baseline version")
	if err != nil {
		return err
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName("main"), hash)); err != nil {
		return fmt.Errorf("set main branch ref: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
		return fmt.Errorf("set HEAD to main: %w", err)
	}
	return nil
}

// CommitVersion archives the current document state under a message, such
// as "2026 H1 review draft".
func (s *Service) CommitVersion(doc document.Document, author, message string) (VersionInfo, error) {
	if err := checkDocumentID(doc.ID); err != nil {
		return VersionInfo{}, err
	}
	lock := s.documentLock(doc.ID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(doc.ID))
	if err != nil {
		return VersionInfo{}, fmt.Errorf("open repo: %w", err)
	}
	hash, err := commitDocument(repo, doc, author, message)
	if err != nil {
		return VersionInfo{}, err
	}
	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return VersionInfo{}, fmt.Errorf("read commit object: %w", err)
	}
	return toVersionInfo(commitObj), nil
}

// History lists archived versions, newest first.
func (s *Service) History(documentID string, limit int) ([]VersionInfo, error) {
	if err := checkDocumentID(documentID); err != nil {
		return nil, err
	}
	lock := s.documentLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(documentID))
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	ref, err := repo.Reference(plumbing.NewBranchReferenceName("main"), true)
	if err != nil {
		return nil, fmt.Errorf("resolve main: %w", err)
	}
	iter, err := repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]VersionInfo, 0, limit)
	count := 0
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toVersionInfo(commitObj))
		count++
		if limit > 0 && count >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// GetVersion reads the archived document at a version hash or tag name.
func (s *Service) GetVersion(documentID, revision string) (document.Document, error) {
	if err := checkDocumentID(documentID); err != nil {
		return document.Document{}, err
	}
	lock := s.documentLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(documentID))
	if err != nil {
		return document.Document{}, fmt.Errorf("open repo: %w", err)
	}
	resolvedHash, err := resolveHash(repo, revision)
	if err != nil {
		return document.Document{}, err
	}
	commitObj, err := repo.CommitObject(resolvedHash)
	if err != nil {
		return document.Document{}, fmt.Errorf("read commit %s: %w", revision, err)
	}
	return readDocumentFromCommit(commitObj)
}

// TagVersion gives an archived version a stable name such as
// "board-approved".
func (s *Service) TagVersion(documentID, revision, name string) error {
	if err := checkDocumentID(documentID); err != nil {
		return err
	}
	lock := s.documentLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(documentID))
	if err != nil {
		return fmt.Errorf("open repo: %w", err)
	}
	resolvedHash, err := resolveHash(repo, revision)
	if err != nil {
		return err
	}
	_, err = repo.CreateTag(name, resolvedHash, &git.CreateTagOptions{
		Tagger: &object.Signature{
			Name:  "GreenPrint",
			Email: "greenprint@localhost",
			When:  time.Now(),
		},
		Message: name,
	})
	if err != nil && !errors.Is(err, git.ErrTagExists) {
		return fmt.Errorf("create tag: %w", err)
	}
	return nil
}

func (s *Service) repoPath(documentID string) string {
	return filepath.Join(s.baseDir, documentID)
}

// checkDocumentID ensures the id maps to exactly one directory under the
// archive root. Ids like ".." or "a/b" would otherwise escape it.
func checkDocumentID(documentID string) error {
	if documentID == "" || documentID == "." || documentID == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidDocumentID, documentID)
	}
	if strings.ContainsAny(documentID, `/\`) || strings.ContainsRune(documentID, filepath.Separator) {
		return fmt.Errorf("%w: %q", ErrInvalidDocumentID, documentID)
	}
	return nil
}

func (s *Service) documentLock(documentID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[documentID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[documentID] = lock
	return lock
}

func commitDocument(repo *git.Repository, doc document.Document, author, message string) (plumbing.Hash, error) {
	worktree, err := repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("open worktree: %w", err)
	}

	payload, err := json.MarshalIndent(wire.ToServer(doc), "", "  ")
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("marshal document: %w", err)
	}
	repoRoot := worktree.Filesystem.Root()
	if err := os.WriteFile(filepath.Join(repoRoot, contentFile), append(payload, '\n'), 0o644); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("write %s: %w", contentFile, err)
	}
	if _, err := worktree.Add(contentFile); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("git add document: %w", err)
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		AllowEmptyCommits: true,
		Author: &object.Signature{
			Name:  author,
			Email: fmt.Sprintf("%s@local.greenprint.dev", sanitizeEmail(author)),
			When:  time.Now(),
		},
	})
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("commit document: %w", err)
	}
	return hash, nil
}

func readDocumentFromCommit(commitObj *object.Commit) (document.Document, error) {
	file, err := commitObj.File(contentFile)
	if err != nil {
		return document.Document{}, fmt.Errorf("load %s from commit: %w", contentFile, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return document.Document{}, fmt.Errorf("open content reader: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return document.Document{}, fmt.Errorf("read content bytes: %w", err)
	}
	var serverDoc wire.ServerDocument
	if err := json.Unmarshal(raw, &serverDoc); err != nil {
		return document.Document{}, fmt.Errorf("decode archived document: %w", err)
	}
	return wire.ToDocument(serverDoc), nil
}

func toVersionInfo(commitObj *object.Commit) VersionInfo {
	return VersionInfo{
		Hash:      commitObj.Hash.String()[:7],
		Message:   commitObj.Message,
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "user"
	}
	return string(out)
}

func resolveHash(repo *git.Repository, revision string) (plumbing.Hash, error) {
	if len(revision) == 40 {
		return plumbing.NewHash(revision), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(revision))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve revision %s: %w", revision, err)
	}
	return *resolved, nil
}
