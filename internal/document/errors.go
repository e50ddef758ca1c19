package document

import "errors"

// Structural errors. They are always synchronous, always leave the tree
// unchanged, and are never swallowed by callers: they signal a programming
// or data-integrity fault, not a recoverable condition.
var (
	ErrSectionNotFound     = errors.New("section not found")
	ErrDuplicateSectionID  = errors.New("duplicate section id")
	ErrBlockNotFound       = errors.New("block not found")
	ErrDuplicateBlockID    = errors.New("duplicate block id")
	ErrInvalidBlockPayload = errors.New("invalid block payload")
	ErrVariantMismatch     = errors.New("block variant mismatch")
	ErrInlineNotFound      = errors.New("inline not found")
)
