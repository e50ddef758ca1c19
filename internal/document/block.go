package document

import (
	"encoding/json"
	"fmt"
)

// BlockType is the discriminant identifying which payload shape a block
// carries. The set is closed; wire payloads outside it are carried through
// as BlockUnknown so round-tripping never loses author content.
type BlockType string

const (
	BlockText    BlockType = "text"
	BlockHeading BlockType = "heading"
	BlockList    BlockType = "list"
	BlockImage   BlockType = "image"
	BlockTable   BlockType = "table"
	BlockChart   BlockType = "chart"
	BlockMetric  BlockType = "esgMetric"
	BlockUnknown BlockType = "unknown"
)

// BlockTypes lists every variant the model knows about, in a stable order.
// Tests iterate this to keep payload handling exhaustive.
var BlockTypes = []BlockType{
	BlockText,
	BlockHeading,
	BlockList,
	BlockImage,
	BlockTable,
	BlockChart,
	BlockMetric,
	BlockUnknown,
}

// Payload is the variant-specific content of a block. Tree-level operations
// treat it as opaque; only validation, text extraction and rendering switch
// on the concrete type.
type Payload interface {
	Variant() BlockType
	clone() Payload
}

// Block is the unit of content inside a section. Its identifier is unique
// across the whole document and is never reused after deletion, so
// asynchronous suggestions and history entries stay unambiguous.
type Block struct {
	ID         string         `json:"id"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Payload    Payload        `json:"payload"`
}

// Type returns the block's variant discriminant.
func (b Block) Type() BlockType {
	if b.Payload == nil {
		return BlockUnknown
	}
	return b.Payload.Variant()
}

func (b Block) clone() Block {
	out := b
	if b.Attributes != nil {
		attrs := make(map[string]any, len(b.Attributes))
		for k, v := range b.Attributes {
			attrs[k] = v
		}
		out.Attributes = attrs
	}
	if b.Payload != nil {
		out.Payload = b.Payload.clone()
	}
	return out
}

// TextRole distinguishes the presentation of a text block.
type TextRole string

const (
	RoleParagraph TextRole = "paragraph"
	RoleQuote     TextRole = "quote"
)

// TextPayload carries paragraph and quote content.
type TextPayload struct {
	Role    TextRole `json:"role"`
	Content []Inline `json:"content"`
}

func (p TextPayload) Variant() BlockType { return BlockText }
func (p TextPayload) clone() Payload {
	p.Content = cloneInlines(p.Content)
	return p
}

// HeadingPayload carries heading content with a level between 1 and 3.
type HeadingPayload struct {
	Level   int      `json:"level"`
	Content []Inline `json:"content"`
}

func (p HeadingPayload) Variant() BlockType { return BlockHeading }
func (p HeadingPayload) clone() Payload {
	p.Content = cloneInlines(p.Content)
	return p
}

// ListItem is one entry of a list block. Items nest through Items; depth is
// capped at MaxListDepth during validation.
type ListItem struct {
	ID      string     `json:"id"`
	Content []Inline   `json:"content"`
	Items   []ListItem `json:"items,omitempty"`
}

func cloneListItems(items []ListItem) []ListItem {
	if items == nil {
		return nil
	}
	out := make([]ListItem, len(items))
	for i, item := range items {
		out[i] = item
		out[i].Content = cloneInlines(item.Content)
		out[i].Items = cloneListItems(item.Items)
	}
	return out
}

// ListPayload carries ordered or unordered list content.
type ListPayload struct {
	Ordered bool       `json:"ordered"`
	Start   int        `json:"start,omitempty"`
	Items   []ListItem `json:"items"`
}

func (p ListPayload) Variant() BlockType { return BlockList }
func (p ListPayload) clone() Payload {
	p.Items = cloneListItems(p.Items)
	return p
}

// ImagePayload references an image asset. The source is resolved by the
// rendering surface; this core treats it as an opaque reference.
type ImagePayload struct {
	Source  string `json:"src"`
	Alt     string `json:"alt,omitempty"`
	Caption string `json:"caption,omitempty"`
}

func (p ImagePayload) Variant() BlockType { return BlockImage }
func (p ImagePayload) clone() Payload     { return p }

// TablePayload holds tabular data opaque to the tree: the row/column
// structure belongs to the table widget, not the editing core.
type TablePayload struct {
	Caption string          `json:"caption,omitempty"`
	Data    json.RawMessage `json:"data"`
}

func (p TablePayload) Variant() BlockType { return BlockTable }
func (p TablePayload) clone() Payload {
	p.Data = append(json.RawMessage(nil), p.Data...)
	return p
}

// ChartPayload holds chart configuration and series data, opaque like tables.
type ChartPayload struct {
	Caption string          `json:"caption,omitempty"`
	Data    json.RawMessage `json:"data"`
}

func (p ChartPayload) Variant() BlockType { return BlockChart }
func (p ChartPayload) clone() Payload {
	p.Data = append(json.RawMessage(nil), p.Data...)
	return p
}

// Visualization hints for metric blocks.
const (
	VisualizeTable = "table"
	VisualizeChart = "chart"
	VisualizeText  = "text"
)

// Reference is a citation attached to a metric block.
type Reference struct {
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
}

// MetricPayload binds a disclosure-standard code (such as a GRI number) to
// per-period values. Values are numeric or textual, keyed by period label.
type MetricPayload struct {
	Code          string         `json:"metricCode"`
	Values        map[string]any `json:"values"`
	Unit          string         `json:"unit,omitempty"`
	Visualization string         `json:"visualization,omitempty"`
	References    []Reference    `json:"references,omitempty"`
}

func (p MetricPayload) Variant() BlockType { return BlockMetric }
func (p MetricPayload) clone() Payload {
	if p.Values != nil {
		values := make(map[string]any, len(p.Values))
		for k, v := range p.Values {
			values[k] = v
		}
		p.Values = values
	}
	if p.References != nil {
		p.References = append([]Reference(nil), p.References...)
	}
	return p
}

// UnknownPayload preserves a wire block whose type this core does not
// understand. The raw fields round-trip verbatim.
type UnknownPayload struct {
	WireType string          `json:"wireType"`
	Content  json.RawMessage `json:"content,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
	Children json.RawMessage `json:"children,omitempty"`
}

func (p UnknownPayload) Variant() BlockType { return BlockUnknown }
func (p UnknownPayload) clone() Payload {
	p.Content = append(json.RawMessage(nil), p.Content...)
	p.Data = append(json.RawMessage(nil), p.Data...)
	p.Children = append(json.RawMessage(nil), p.Children...)
	return p
}

// MaxListDepth caps list nesting; deeper input is rejected at validation.
const MaxListDepth = 6

// ValidatePayload checks a payload's shape for its variant. A nil payload or
// a shape violation yields ErrInvalidBlockPayload.
func ValidatePayload(p Payload) error {
	switch payload := p.(type) {
	case nil:
		return fmt.Errorf("%w: missing payload", ErrInvalidBlockPayload)
	case TextPayload:
		if payload.Role != RoleParagraph && payload.Role != RoleQuote {
			return fmt.Errorf("%w: text role %q", ErrInvalidBlockPayload, payload.Role)
		}
		return validateInlines(payload.Content)
	case HeadingPayload:
		if payload.Level < 1 || payload.Level > 3 {
			return fmt.Errorf("%w: heading level %d out of range 1-3", ErrInvalidBlockPayload, payload.Level)
		}
		return validateInlines(payload.Content)
	case ListPayload:
		return validateListItems(payload.Items, 1)
	case ImagePayload:
		return nil
	case TablePayload:
		return validateRawData(payload.Data)
	case ChartPayload:
		return validateRawData(payload.Data)
	case MetricPayload:
		if payload.Visualization != "" &&
			payload.Visualization != VisualizeTable &&
			payload.Visualization != VisualizeChart &&
			payload.Visualization != VisualizeText {
			return fmt.Errorf("%w: visualization %q", ErrInvalidBlockPayload, payload.Visualization)
		}
		for period, value := range payload.Values {
			switch value.(type) {
			case string, float64, int, int64, json.Number:
			default:
				return fmt.Errorf("%w: metric value for %q must be numeric or text", ErrInvalidBlockPayload, period)
			}
		}
		return nil
	case UnknownPayload:
		if payload.WireType == "" {
			return fmt.Errorf("%w: unknown payload without wire type", ErrInvalidBlockPayload)
		}
		return nil
	default:
		return fmt.Errorf("%w: unhandled variant %q", ErrInvalidBlockPayload, p.Variant())
	}
}

func validateInlines(nodes []Inline) error {
	for _, node := range nodes {
		for _, mark := range node.Marks {
			if !ValidMark(mark) {
				return fmt.Errorf("%w: unsupported mark %q", ErrInvalidBlockPayload, mark)
			}
		}
	}
	return nil
}

func validateListItems(items []ListItem, depth int) error {
	if depth > MaxListDepth {
		return fmt.Errorf("%w: list nesting exceeds depth %d", ErrInvalidBlockPayload, MaxListDepth)
	}
	for _, item := range items {
		if err := validateInlines(item.Content); err != nil {
			return err
		}
		if len(item.Items) > 0 {
			if err := validateListItems(item.Items, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateRawData(data json.RawMessage) error {
	if len(data) == 0 {
		return nil
	}
	if !json.Valid(data) {
		return fmt.Errorf("%w: data is not valid JSON", ErrInvalidBlockPayload)
	}
	return nil
}

// MergePayload overlays the set fields of partial onto existing, preserving
// the variant. Partial updates with a different variant fail with
// ErrVariantMismatch.
func MergePayload(existing, partial Payload) (Payload, error) {
	if partial == nil {
		return nil, fmt.Errorf("%w: missing partial payload", ErrInvalidBlockPayload)
	}
	if existing.Variant() != partial.Variant() {
		return nil, fmt.Errorf("%w: block is %q, update is %q", ErrVariantMismatch, existing.Variant(), partial.Variant())
	}

	switch current := existing.clone().(type) {
	case TextPayload:
		update := partial.(TextPayload)
		if update.Role != "" {
			current.Role = update.Role
		}
		if update.Content != nil {
			current.Content = cloneInlines(update.Content)
		}
		return current, nil
	case HeadingPayload:
		update := partial.(HeadingPayload)
		if update.Level != 0 {
			current.Level = update.Level
		}
		if update.Content != nil {
			current.Content = cloneInlines(update.Content)
		}
		return current, nil
	case ListPayload:
		update := partial.(ListPayload)
		current.Ordered = update.Ordered
		if update.Start != 0 {
			current.Start = update.Start
		}
		if update.Items != nil {
			current.Items = cloneListItems(update.Items)
		}
		return current, nil
	case ImagePayload:
		update := partial.(ImagePayload)
		if update.Source != "" {
			current.Source = update.Source
		}
		if update.Alt != "" {
			current.Alt = update.Alt
		}
		if update.Caption != "" {
			current.Caption = update.Caption
		}
		return current, nil
	case TablePayload:
		update := partial.(TablePayload)
		if update.Caption != "" {
			current.Caption = update.Caption
		}
		if len(update.Data) > 0 {
			current.Data = append(json.RawMessage(nil), update.Data...)
		}
		return current, nil
	case ChartPayload:
		update := partial.(ChartPayload)
		if update.Caption != "" {
			current.Caption = update.Caption
		}
		if len(update.Data) > 0 {
			current.Data = append(json.RawMessage(nil), update.Data...)
		}
		return current, nil
	case MetricPayload:
		update := partial.(MetricPayload)
		if update.Code != "" {
			current.Code = update.Code
		}
		if update.Values != nil {
			values := make(map[string]any, len(update.Values))
			for k, v := range update.Values {
				values[k] = v
			}
			current.Values = values
		}
		if update.Unit != "" {
			current.Unit = update.Unit
		}
		if update.Visualization != "" {
			current.Visualization = update.Visualization
		}
		if update.References != nil {
			current.References = append([]Reference(nil), update.References...)
		}
		return current, nil
	case UnknownPayload:
		// Unknown payloads are opaque; replace wholesale.
		return partial.clone(), nil
	default:
		return nil, fmt.Errorf("%w: unhandled variant %q", ErrInvalidBlockPayload, existing.Variant())
	}
}

// PlainText extracts the block's textual content using the inline
// concatenation rule. Data-bearing variants fall back to their caption or
// alt text; metric and unknown blocks extract as empty.
func PlainText(b Block) string {
	switch payload := b.Payload.(type) {
	case TextPayload:
		return ConcatText(payload.Content)
	case HeadingPayload:
		return ConcatText(payload.Content)
	case ListPayload:
		return listPlainText(payload.Items)
	case ImagePayload:
		if payload.Alt != "" {
			return payload.Alt
		}
		return payload.Caption
	case TablePayload:
		return payload.Caption
	case ChartPayload:
		return payload.Caption
	case MetricPayload:
		return ""
	case UnknownPayload:
		return ""
	default:
		return ""
	}
}

func listPlainText(items []ListItem) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, ConcatText(item.Content))
		if len(item.Items) > 0 {
			lines = append(lines, listPlainText(item.Items))
		}
	}
	out := ""
	for i, line := range lines {
		if i > 0 {
			out += "\n"
		}
		out += line
	}
	return out
}
