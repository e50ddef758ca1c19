package editor

// SaveStatus is the session's position in the save lifecycle. Connectivity
// is tracked separately: a session can be edited and offline at once.
type SaveStatus string

const (
	// StatusIdle means the document matches its loaded state and no save
	// has happened in this session yet.
	StatusIdle SaveStatus = "idle"
	// StatusEdited means local changes exist that the server has not seen.
	StatusEdited SaveStatus = "edited"
	// StatusSaving means a save round trip is in flight.
	StatusSaving SaveStatus = "saving"
	// StatusSaved means the server has the current document state.
	StatusSaved SaveStatus = "saved"
	// StatusError means the last save attempt failed; local changes are
	// intact and a retry is expected.
	StatusError SaveStatus = "error"
)

// Selection is the author's cursor anchor. All references are by identifier
// so the selection survives structural edits elsewhere in the tree; edits
// that delete the referenced nodes reset the stale parts.
type Selection struct {
	SectionID string `json:"sectionId,omitempty"`
	BlockID   string `json:"blockId,omitempty"`
	InlineID  string `json:"inlineId,omitempty"`
	Start     int    `json:"start,omitempty"`
	End       int    `json:"end,omitempty"`
}

// EventType tags a session event for push subscribers.
type EventType string

const (
	EventDocument  EventType = "document"
	EventStatus    EventType = "status"
	EventSelection EventType = "selection"
)

// Event is a snapshot of session state pushed to subscribers after every
// observable change. Fields are flat so the transport can serialize it
// directly.
type Event struct {
	Type       EventType  `json:"type"`
	DocumentID string     `json:"documentId"`
	Status     SaveStatus `json:"status"`
	Offline    bool       `json:"offline"`
	Dirty      bool       `json:"dirty"`
	CanUndo    bool       `json:"canUndo"`
	CanRedo    bool       `json:"canRedo"`
	Selection  Selection  `json:"selection"`
}
