// Package editor owns the mutable state of one open document: the undo/redo
// history, the save lifecycle, the author's selection and the push
// subscription feed. All document mutations flow through a Session so every
// edit is recorded exactly once and every observer sees the same ordering.
package editor

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"greenprint/api/internal/document"
	"greenprint/api/internal/history"
	"greenprint/api/internal/util"
)

var (
	// ErrBlockIDRetired rejects inserting a block under an id that a
	// deleted block used earlier in this session. Retired ids stay
	// retired so late asynchronous results can never land on the wrong
	// block.
	ErrBlockIDRetired = errors.New("block id retired")
	// ErrSaveInFlight rejects starting a save while one is running.
	ErrSaveInFlight = errors.New("save already in flight")
	// ErrNothingToSave reports that the document already matches the
	// last saved state.
	ErrNothingToSave = errors.New("no changes to save")
)

const eventBuffer = 16

// Session is the editing state for one open document. All methods are safe
// for concurrent use.
type Session struct {
	mu sync.Mutex

	documentID string
	history    *history.History
	selection  Selection

	status     SaveStatus
	offline    bool
	saving     bool
	savedOnce  bool
	saveDigest string
	lastSaved  time.Time

	// epoch increments whenever the document is replaced wholesale, so
	// asynchronous work started against an earlier document generation
	// can recognize it is stale.
	epoch   uint64
	retired map[string]struct{}

	subscribers map[int]chan Event
	nextSubID   int
}

// PendingSave is the handle returned by BeginSave. It captures the exact
// snapshot being persisted so completion can tell whether the author kept
// typing during the round trip.
type PendingSave struct {
	Document document.Document
	digest   string
	epoch    uint64
}

// NewSession opens a session positioned at doc with the given undo depth.
func NewSession(doc document.Document, undoDepth int) *Session {
	s := &Session{
		documentID:  doc.ID,
		history:     history.New(doc, undoDepth),
		status:      StatusIdle,
		saveDigest:  digest(doc),
		retired:     map[string]struct{}{},
		subscribers: map[int]chan Event{},
	}
	return s
}

// DocumentID returns the id of the open document.
func (s *Session) DocumentID() string {
	return s.documentID
}

// Document returns the current document snapshot. The value is copy-on-write
// and must be treated as read-only.
func (s *Session) Document() document.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Present()
}

// Epoch returns the current document generation.
func (s *Session) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Status reports the save status, connectivity and dirty flag together.
func (s *Session) Status() (SaveStatus, bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.offline, s.dirtyLocked()
}

// LastSaved returns the wall time of the last successful save, zero when the
// session has never saved.
func (s *Session) LastSaved() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSaved
}

// Selection returns the author's current cursor anchor.
func (s *Session) Selection() Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection
}

// SetSelection moves the cursor anchor. References to nodes that no longer
// exist are cleared rather than rejected: selection is a hint, not content.
func (s *Session) SetSelection(sel Selection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = s.normalizeSelection(sel)
	s.publishLocked(EventSelection)
}

// NewBlockID mints a block id that has never been used in this session.
func (s *Session) NewBlockID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		id := util.NewID("blk")
		if _, taken := s.retired[id]; !taken && !s.history.Present().HasBlockID(id) {
			return id
		}
	}
}

// Apply runs a document operation and records the result as one undo step.
// Operations that fail leave history, selection and status untouched.
func (s *Session) Apply(op func(document.Document) (document.Document, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := op(s.history.Present())
	if err != nil {
		return err
	}
	s.commitLocked(next)
	return nil
}

// InsertBlock adds a block through the session, enforcing id retirement on
// top of the document-level uniqueness check.
func (s *Session) InsertBlock(sectionID string, block document.Block, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, retired := s.retired[block.ID]; retired {
		return fmt.Errorf("%w: %s", ErrBlockIDRetired, block.ID)
	}
	next, err := s.history.Present().InsertBlock(sectionID, block, index)
	if err != nil {
		return err
	}
	s.commitLocked(next)
	return nil
}

// DeleteBlock removes a block and retires its id for the rest of the
// session.
func (s *Session) DeleteBlock(blockID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := s.history.Present().DeleteBlock(blockID)
	if err != nil {
		return err
	}
	s.retired[blockID] = struct{}{}
	s.commitLocked(next)
	return nil
}

// MoveBlock relocates a block to another position or section.
func (s *Session) MoveBlock(blockID, targetSectionID string, index int) error {
	return s.Apply(func(d document.Document) (document.Document, error) {
		return d.MoveBlock(blockID, targetSectionID, index)
	})
}

// UpdateBlockPayload applies a variant-preserving partial content update.
func (s *Session) UpdateBlockPayload(blockID string, partial document.Payload) error {
	return s.Apply(func(d document.Document) (document.Document, error) {
		return d.UpdateBlockPayload(blockID, partial)
	})
}

// UpdateBlockAttributes merges layout hints into a block.
func (s *Session) UpdateBlockAttributes(blockID string, attrs map[string]any) error {
	return s.Apply(func(d document.Document) (document.Document, error) {
		return d.UpdateBlockAttributes(blockID, attrs)
	})
}

// ApplyMark adds a formatting mark to an inline span.
func (s *Session) ApplyMark(inlineID string, mark document.Mark) error {
	return s.Apply(func(d document.Document) (document.Document, error) {
		return d.ApplyMark(inlineID, mark)
	})
}

// RemoveMark strips a formatting mark from an inline span.
func (s *Session) RemoveMark(inlineID string, mark document.Mark) error {
	return s.Apply(func(d document.Document) (document.Document, error) {
		return d.RemoveMark(inlineID, mark)
	})
}

// InsertSection adds a chapter.
func (s *Session) InsertSection(section document.Section, index int) error {
	return s.Apply(func(d document.Document) (document.Document, error) {
		return d.InsertSection(section, index)
	})
}

// DeleteSection removes a chapter and retires the ids of every block it
// contained.
func (s *Session) DeleteSection(sectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.history.Present()
	section, ok := doc.FindSection(sectionID)
	if !ok {
		return fmt.Errorf("%w: %s", document.ErrSectionNotFound, sectionID)
	}
	next, err := doc.DeleteSection(sectionID)
	if err != nil {
		return err
	}
	for _, block := range section.Blocks {
		s.retired[block.ID] = struct{}{}
	}
	s.commitLocked(next)
	return nil
}

// SetTitle renames the document.
func (s *Session) SetTitle(title string) error {
	return s.Apply(func(d document.Document) (document.Document, error) {
		return d.SetTitle(title), nil
	})
}

// AddStandardRef records a disclosure-framework mapping on a section.
func (s *Session) AddStandardRef(sectionID, framework string, codes ...string) error {
	return s.Apply(func(d document.Document) (document.Document, error) {
		return d.AddStandardRef(sectionID, framework, codes...)
	})
}

// Undo steps back one edit. At the boundary it is a no-op.
func (s *Session) Undo() document.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.history.Undo()
	s.afterRestoreLocked()
	return doc
}

// Redo steps forward one edit. At the boundary it is a no-op.
func (s *Session) Redo() document.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.history.Redo()
	s.afterRestoreLocked()
	return doc
}

// CanUndo reports whether an undo step is available.
func (s *Session) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanUndo()
}

// CanRedo reports whether a redo step is available.
func (s *Session) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanRedo()
}

// BeginSave captures the current document for persistence and moves the
// session into the saving state. The author keeps editing while the round
// trip runs; FinishSave reconciles whatever happened meanwhile.
func (s *Session) BeginSave() (PendingSave, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saving {
		return PendingSave{}, ErrSaveInFlight
	}
	if !s.dirtyLocked() {
		return PendingSave{}, ErrNothingToSave
	}
	doc := s.history.Present()
	s.saving = true
	s.setStatusLocked(StatusSaving)
	return PendingSave{Document: doc, digest: digest(doc), epoch: s.epoch}, nil
}

// FinishSave completes a save round trip. On success the saved snapshot
// marker advances; if the author edited during the round trip the session
// drops straight back to edited instead of saved. On failure local changes
// stay intact and offline marks a connectivity failure rather than a
// rejection.
func (s *Session) FinishSave(pending PendingSave, saveErr error, offline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saving = false

	if pending.epoch != s.epoch {
		// The document was replaced while saving; the result no longer
		// applies.
		s.setStatusLocked(s.restingStatusLocked())
		return
	}
	if saveErr != nil {
		s.offline = offline
		s.setStatusLocked(StatusError)
		return
	}

	s.offline = false
	s.savedOnce = true
	s.saveDigest = pending.digest
	s.lastSaved = time.Now().UTC()
	s.setStatusLocked(s.restingStatusLocked())
}

// SetOffline flips the connectivity flag independently of the save
// lifecycle.
func (s *Session) SetOffline(offline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offline == offline {
		return
	}
	s.offline = offline
	s.publishLocked(EventStatus)
}

// Replace swaps in a freshly loaded document, clearing history and advancing
// the epoch so stale asynchronous work is discarded.
func (s *Session) Replace(doc document.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documentID = doc.ID
	s.history.Reset(doc)
	s.saveDigest = digest(doc)
	s.savedOnce = false
	s.epoch++
	s.selection = Selection{}
	s.setStatusLocked(StatusIdle)
	s.publishLocked(EventDocument)
}

// Subscribe registers a push feed of session events. The returned cancel
// function must be called when the consumer goes away. Slow consumers lose
// events rather than blocking editing.
func (s *Session) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSubID
	s.nextSubID++
	ch := make(chan Event, eventBuffer)
	s.subscribers[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if existing, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(existing)
		}
	}
}

// commitLocked records an accepted edit and fans out the resulting state.
func (s *Session) commitLocked(next document.Document) {
	s.history.Record(next)
	s.selection = s.normalizeSelection(s.selection)
	s.setStatusLocked(s.restingStatusLocked())
	s.publishLocked(EventDocument)
}

func (s *Session) afterRestoreLocked() {
	s.selection = s.normalizeSelection(s.selection)
	if !s.saving {
		s.setStatusLocked(s.restingStatusLocked())
	}
	s.publishLocked(EventDocument)
}

// restingStatusLocked derives the status the session settles into when no
// save is in flight: edited while dirty, otherwise saved or idle depending
// on whether this session has saved before.
func (s *Session) restingStatusLocked() SaveStatus {
	if s.saving {
		return StatusSaving
	}
	if s.dirtyLocked() {
		return StatusEdited
	}
	if s.savedOnce {
		return StatusSaved
	}
	return StatusIdle
}

func (s *Session) setStatusLocked(status SaveStatus) {
	if s.status == status {
		return
	}
	s.status = status
	s.publishLocked(EventStatus)
}

// dirtyLocked compares the present document against the saved snapshot
// marker. Undoing back to the exact saved state clears the flag even though
// edits happened in between.
func (s *Session) dirtyLocked() bool {
	return digest(s.history.Present()) != s.saveDigest
}

func (s *Session) normalizeSelection(sel Selection) Selection {
	doc := s.history.Present()
	if sel.InlineID != "" {
		if _, _, ok := doc.FindInline(sel.InlineID); !ok {
			sel.InlineID = ""
			sel.Start, sel.End = 0, 0
		}
	}
	if sel.BlockID != "" {
		if _, sectionID, ok := doc.FindBlock(sel.BlockID); ok {
			sel.SectionID = sectionID
		} else {
			sel.BlockID = ""
			sel.InlineID = ""
			sel.Start, sel.End = 0, 0
		}
	}
	if sel.SectionID != "" {
		if _, ok := doc.FindSection(sel.SectionID); !ok {
			sel = Selection{}
		}
	}
	return sel
}

func (s *Session) publishLocked(kind EventType) {
	event := Event{
		Type:       kind,
		DocumentID: s.documentID,
		Status:     s.status,
		Offline:    s.offline,
		Dirty:      s.dirtyLocked(),
		CanUndo:    s.history.CanUndo(),
		CanRedo:    s.history.CanRedo(),
		Selection:  s.selection,
	}
	for _, ch := range s.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// digest fingerprints a document for saved-state comparison. JSON encoding
// sorts map keys, so equal trees always produce equal digests.
func digest(doc document.Document) string {
	raw, err := json.Marshal(doc)
	if err != nil {
		return "unmarshalable:" + doc.Metadata.RevisionID
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
