// Package history keeps linear undo/redo state for an editing session.
// Snapshots are whole Document values rather than diffs: the documents are
// report-scale, and whole-value snapshots keep restore deterministic.
package history

import "greenprint/api/internal/document"

// DefaultDepth caps the undo stack unless the session configures otherwise.
const DefaultDepth = 50

// History owns its snapshots exclusively; the live editing surface never
// holds references into the stacks.
type History struct {
	past    []document.Document
	present document.Document
	future  []document.Document
	depth   int
}

// New creates a history positioned at the given document with the default
// depth cap. A depth of zero or less falls back to DefaultDepth.
func New(present document.Document, depth int) *History {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &History{present: present.Clone(), depth: depth}
}

// Present returns the current snapshot.
func (h *History) Present() document.Document {
	return h.present
}

// CanUndo reports whether an undo step is available.
func (h *History) CanUndo() bool { return len(h.past) > 0 }

// CanRedo reports whether a redo step is available.
func (h *History) CanRedo() bool { return len(h.future) > 0 }

// Record pushes the current present onto the past, makes next the present,
// and clears the redo stack: a fresh edit invalidates redo history. When the
// depth cap is exceeded the oldest past snapshot is dropped silently.
func (h *History) Record(next document.Document) {
	h.past = append(h.past, h.present)
	if len(h.past) > h.depth {
		h.past = append(h.past[:0:0], h.past[1:]...)
	}
	h.present = next.Clone()
	h.future = nil
}

// Undo steps back one snapshot. With an empty past it returns the present
// unchanged: undo at the boundary is a no-op, not an error.
func (h *History) Undo() document.Document {
	if len(h.past) == 0 {
		return h.present
	}
	last := len(h.past) - 1
	h.future = append([]document.Document{h.present}, h.future...)
	h.present = h.past[last]
	h.past = h.past[:last]
	return h.present
}

// Redo mirrors Undo using the future stack.
func (h *History) Redo() document.Document {
	if len(h.future) == 0 {
		return h.present
	}
	h.past = append(h.past, h.present)
	h.present = h.future[0]
	h.future = h.future[1:]
	return h.present
}

// Reset clears both stacks and replaces the present, used when a new
// document is loaded or local edits are discarded.
func (h *History) Reset(present document.Document) {
	h.past = nil
	h.future = nil
	h.present = present.Clone()
}
