// Package document holds the structured report model: a typed tree of
// Document, Section, Block and Inline nodes plus the pure operations that
// edit it. Operations are copy-on-write: they return a new Document value
// and never mutate their receiver, so callers can retain old values as
// history snapshots without diffing.
package document

import "time"

// Status is the document lifecycle state.
type Status string

const (
	StatusDraft  Status = "draft"
	StatusReview Status = "review"
	StatusFinal  Status = "final"
)

// Metadata is document-level bookkeeping carried alongside content.
type Metadata struct {
	Version    int       `json:"version"`
	RevisionID string    `json:"revisionId"`
	Status     Status    `json:"status"`
	AuthorID   string    `json:"authorId"`
	Language   string    `json:"language"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	Tags       []string  `json:"tags,omitempty"`
}

// PageSetup describes print layout for export.
type PageSetup struct {
	Format      string  `json:"format"`
	Orientation string  `json:"orientation"`
	MarginTop   float64 `json:"marginTop"`
	MarginBot   float64 `json:"marginBottom"`
	MarginLeft  float64 `json:"marginLeft"`
	MarginRight float64 `json:"marginRight"`
}

// DefaultPageSetup matches the authoring surface's defaults: A4 portrait
// with 20mm margins.
func DefaultPageSetup() PageSetup {
	return PageSetup{
		Format:      "A4",
		Orientation: "portrait",
		MarginTop:   20,
		MarginBot:   20,
		MarginLeft:  20,
		MarginRight: 20,
	}
}

// StandardRef maps a section to disclosure-framework codes.
type StandardRef struct {
	Framework string   `json:"framework"`
	Codes     []string `json:"code"`
}

// Section is one report chapter. Section order within the document is the
// rendering and export order.
type Section struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description,omitempty"`
	Blocks       []Block        `json:"blocks"`
	StandardRefs []StandardRef  `json:"griReference,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

func (s Section) clone() Section {
	out := s
	if s.Blocks != nil {
		blocks := make([]Block, len(s.Blocks))
		for i, b := range s.Blocks {
			blocks[i] = b.clone()
		}
		out.Blocks = blocks
	}
	if s.StandardRefs != nil {
		refs := make([]StandardRef, len(s.StandardRefs))
		for i, ref := range s.StandardRefs {
			refs[i] = ref
			refs[i].Codes = append([]string(nil), ref.Codes...)
		}
		out.StandardRefs = refs
	}
	if s.Metadata != nil {
		meta := make(map[string]any, len(s.Metadata))
		for k, v := range s.Metadata {
			meta[k] = v
		}
		out.Metadata = meta
	}
	return out
}

// Document is the root of the report tree.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Metadata  Metadata  `json:"metadata"`
	PageSetup PageSetup `json:"pageSetup"`
	Sections  []Section `json:"sections"`
}

// New creates an empty draft document with generated identifiers.
func New(id, title, authorID string) Document {
	now := time.Now().UTC()
	return Document{
		ID:    id,
		Title: title,
		Metadata: Metadata{
			Version:    1,
			RevisionID: newRevisionID(),
			Status:     StatusDraft,
			AuthorID:   authorID,
			Language:   "en",
			CreatedAt:  now,
			UpdatedAt:  now,
		},
		PageSetup: DefaultPageSetup(),
		Sections:  []Section{},
	}
}

// Clone returns a deep copy of the document. History snapshots and the
// editor's saved-state marker rely on clones being fully independent.
func (d Document) Clone() Document {
	out := d
	if d.Metadata.Tags != nil {
		out.Metadata.Tags = append([]string(nil), d.Metadata.Tags...)
	}
	if d.Sections != nil {
		sections := make([]Section, len(d.Sections))
		for i, section := range d.Sections {
			sections[i] = section.clone()
		}
		out.Sections = sections
	}
	return out
}

// FindSection looks up a section by id. Absence is an expected outcome for
// callers racing asynchronous work, so it is reported through ok, not error.
func (d Document) FindSection(sectionID string) (Section, bool) {
	for _, section := range d.Sections {
		if section.ID == sectionID {
			return section, true
		}
	}
	return Section{}, false
}

// FindBlock looks up a block anywhere in the document, returning the block
// and its owning section id.
func (d Document) FindBlock(blockID string) (Block, string, bool) {
	for _, section := range d.Sections {
		for _, block := range section.Blocks {
			if block.ID == blockID {
				return block, section.ID, true
			}
		}
	}
	return Block{}, "", false
}

// FindInline locates an inline span by id inside any text-bearing block.
func (d Document) FindInline(inlineID string) (Inline, string, bool) {
	for _, section := range d.Sections {
		for _, block := range section.Blocks {
			for _, node := range inlinesOf(block) {
				if node.ID == inlineID {
					return node, block.ID, true
				}
			}
		}
	}
	return Inline{}, "", false
}

// HasBlockID reports whether any live block carries the given id.
func (d Document) HasBlockID(blockID string) bool {
	_, _, ok := d.FindBlock(blockID)
	return ok
}

// BlockCount returns the number of blocks across all sections.
func (d Document) BlockCount() int {
	total := 0
	for _, section := range d.Sections {
		total += len(section.Blocks)
	}
	return total
}

func inlinesOf(b Block) []Inline {
	switch payload := b.Payload.(type) {
	case TextPayload:
		return payload.Content
	case HeadingPayload:
		return payload.Content
	default:
		return nil
	}
}
