package document

import (
	"fmt"
	"time"

	"greenprint/api/internal/util"
)

func newRevisionID() string {
	return util.NewID("rev")
}

func (d Document) touched() Document {
	d.Metadata.UpdatedAt = time.Now().UTC()
	return d
}

// InsertBlock adds a block to a section at index, or appends when index is
// negative or past the end. The payload is shape-checked and the id checked
// for uniqueness across the whole document before anything changes.
func (d Document) InsertBlock(sectionID string, block Block, index int) (Document, error) {
	if _, ok := d.FindSection(sectionID); !ok {
		return d, fmt.Errorf("%w: %s", ErrSectionNotFound, sectionID)
	}
	if block.ID == "" {
		return d, fmt.Errorf("%w: block id is required", ErrInvalidBlockPayload)
	}
	if d.HasBlockID(block.ID) {
		return d, fmt.Errorf("%w: %s", ErrDuplicateBlockID, block.ID)
	}
	if err := ValidatePayload(block.Payload); err != nil {
		return d, err
	}

	out := d.Clone()
	for i := range out.Sections {
		if out.Sections[i].ID != sectionID {
			continue
		}
		blocks := out.Sections[i].Blocks
		if index < 0 || index > len(blocks) {
			index = len(blocks)
		}
		blocks = append(blocks, Block{})
		copy(blocks[index+1:], blocks[index:])
		blocks[index] = block.clone()
		out.Sections[i].Blocks = blocks
		break
	}
	return out.touched(), nil
}

// DeleteBlock removes a block from its owning section. The caller's session
// retires the id; this operation never reassigns it.
func (d Document) DeleteBlock(blockID string) (Document, error) {
	_, sectionID, ok := d.FindBlock(blockID)
	if !ok {
		return d, fmt.Errorf("%w: %s", ErrBlockNotFound, blockID)
	}

	out := d.Clone()
	for i := range out.Sections {
		if out.Sections[i].ID != sectionID {
			continue
		}
		blocks := out.Sections[i].Blocks
		kept := make([]Block, 0, len(blocks)-1)
		for _, b := range blocks {
			if b.ID != blockID {
				kept = append(kept, b)
			}
		}
		out.Sections[i].Blocks = kept
		break
	}
	return out.touched(), nil
}

// MoveBlock relocates a block to targetSectionID at index, preserving its
// identity and content. Cross-section moves cannot collide because block ids
// are unique document-wide.
func (d Document) MoveBlock(blockID, targetSectionID string, index int) (Document, error) {
	block, _, ok := d.FindBlock(blockID)
	if !ok {
		return d, fmt.Errorf("%w: %s", ErrBlockNotFound, blockID)
	}
	if _, ok := d.FindSection(targetSectionID); !ok {
		return d, fmt.Errorf("%w: %s", ErrSectionNotFound, targetSectionID)
	}

	removed, err := d.DeleteBlock(blockID)
	if err != nil {
		return d, err
	}
	moved, err := removed.InsertBlock(targetSectionID, block, index)
	if err != nil {
		return d, err
	}
	return moved, nil
}

// UpdateBlockPayload overlays a variant-preserving partial payload onto the
// block. A partial with a different variant fails with ErrVariantMismatch
// and leaves the tree unchanged.
func (d Document) UpdateBlockPayload(blockID string, partial Payload) (Document, error) {
	block, sectionID, ok := d.FindBlock(blockID)
	if !ok {
		return d, fmt.Errorf("%w: %s", ErrBlockNotFound, blockID)
	}
	merged, err := MergePayload(block.Payload, partial)
	if err != nil {
		return d, err
	}
	if err := ValidatePayload(merged); err != nil {
		return d, err
	}

	out := d.Clone()
	for i := range out.Sections {
		if out.Sections[i].ID != sectionID {
			continue
		}
		for j := range out.Sections[i].Blocks {
			if out.Sections[i].Blocks[j].ID == blockID {
				out.Sections[i].Blocks[j].Payload = merged
			}
		}
		break
	}
	return out.touched(), nil
}

// UpdateBlockAttributes merges styling and layout hints into the block's
// attribute map. The hints are opaque to this core.
func (d Document) UpdateBlockAttributes(blockID string, attrs map[string]any) (Document, error) {
	_, sectionID, ok := d.FindBlock(blockID)
	if !ok {
		return d, fmt.Errorf("%w: %s", ErrBlockNotFound, blockID)
	}

	out := d.Clone()
	for i := range out.Sections {
		if out.Sections[i].ID != sectionID {
			continue
		}
		for j := range out.Sections[i].Blocks {
			if out.Sections[i].Blocks[j].ID != blockID {
				continue
			}
			if out.Sections[i].Blocks[j].Attributes == nil {
				out.Sections[i].Blocks[j].Attributes = make(map[string]any, len(attrs))
			}
			for k, v := range attrs {
				out.Sections[i].Blocks[j].Attributes[k] = v
			}
		}
		break
	}
	return out.touched(), nil
}

// ApplyMark adds a formatting mark to an inline span. Marking an already
// marked span is a no-op, not an error.
func (d Document) ApplyMark(inlineID string, mark Mark) (Document, error) {
	return d.editMark(inlineID, mark, true)
}

// RemoveMark strips a formatting mark from an inline span. Removing an
// absent mark is a no-op.
func (d Document) RemoveMark(inlineID string, mark Mark) (Document, error) {
	return d.editMark(inlineID, mark, false)
}

func (d Document) editMark(inlineID string, mark Mark, add bool) (Document, error) {
	if !ValidMark(mark) {
		return d, fmt.Errorf("%w: unsupported mark %q", ErrInvalidBlockPayload, mark)
	}
	node, _, ok := d.FindInline(inlineID)
	if !ok {
		return d, fmt.Errorf("%w: %s", ErrInlineNotFound, inlineID)
	}
	if add == node.HasMark(mark) {
		return d, nil
	}

	out := d.Clone()
	for i := range out.Sections {
		for j := range out.Sections[i].Blocks {
			editBlockInlines(&out.Sections[i].Blocks[j], inlineID, mark, add)
		}
	}
	return out.touched(), nil
}

func editBlockInlines(b *Block, inlineID string, mark Mark, add bool) {
	edit := func(nodes []Inline) {
		for i := range nodes {
			if nodes[i].ID != inlineID {
				continue
			}
			if add {
				if !nodes[i].HasMark(mark) {
					nodes[i].Marks = append(nodes[i].Marks, mark)
				}
				continue
			}
			kept := nodes[i].Marks[:0]
			for _, existing := range nodes[i].Marks {
				if existing != mark {
					kept = append(kept, existing)
				}
			}
			nodes[i].Marks = kept
		}
	}
	switch payload := b.Payload.(type) {
	case TextPayload:
		edit(payload.Content)
		b.Payload = payload
	case HeadingPayload:
		edit(payload.Content)
		b.Payload = payload
	}
}

// InsertSection adds a chapter at index, or appends when index is negative
// or past the end.
func (d Document) InsertSection(section Section, index int) (Document, error) {
	if section.ID == "" {
		return d, fmt.Errorf("%w: section id is required", ErrInvalidBlockPayload)
	}
	if _, ok := d.FindSection(section.ID); ok {
		return d, fmt.Errorf("%w: %s", ErrDuplicateSectionID, section.ID)
	}
	for _, b := range section.Blocks {
		if d.HasBlockID(b.ID) {
			return d, fmt.Errorf("%w: %s", ErrDuplicateBlockID, b.ID)
		}
		if err := ValidatePayload(b.Payload); err != nil {
			return d, err
		}
	}

	out := d.Clone()
	if index < 0 || index > len(out.Sections) {
		index = len(out.Sections)
	}
	sections := append(out.Sections, Section{})
	copy(sections[index+1:], sections[index:])
	sections[index] = section.clone()
	out.Sections = sections
	return out.touched(), nil
}

// DeleteSection removes a chapter and all of its blocks.
func (d Document) DeleteSection(sectionID string) (Document, error) {
	if _, ok := d.FindSection(sectionID); !ok {
		return d, fmt.Errorf("%w: %s", ErrSectionNotFound, sectionID)
	}

	out := d.Clone()
	kept := make([]Section, 0, len(out.Sections)-1)
	for _, section := range out.Sections {
		if section.ID != sectionID {
			kept = append(kept, section)
		}
	}
	out.Sections = kept
	return out.touched(), nil
}

// AddStandardRef records a disclosure-framework mapping on a section,
// merging codes into an existing entry for the same framework.
func (d Document) AddStandardRef(sectionID, framework string, codes ...string) (Document, error) {
	if _, ok := d.FindSection(sectionID); !ok {
		return d, fmt.Errorf("%w: %s", ErrSectionNotFound, sectionID)
	}

	out := d.Clone()
	for i := range out.Sections {
		if out.Sections[i].ID != sectionID {
			continue
		}
		merged := false
		for j := range out.Sections[i].StandardRefs {
			if out.Sections[i].StandardRefs[j].Framework != framework {
				continue
			}
			for _, code := range codes {
				if !containsString(out.Sections[i].StandardRefs[j].Codes, code) {
					out.Sections[i].StandardRefs[j].Codes = append(out.Sections[i].StandardRefs[j].Codes, code)
				}
			}
			merged = true
			break
		}
		if !merged {
			out.Sections[i].StandardRefs = append(out.Sections[i].StandardRefs, StandardRef{
				Framework: framework,
				Codes:     append([]string(nil), codes...),
			})
		}
		break
	}
	return out.touched(), nil
}

// SetTitle renames the document.
func (d Document) SetTitle(title string) Document {
	out := d.Clone()
	out.Title = title
	return out.touched()
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
