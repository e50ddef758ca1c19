package document

// Mark is a non-exclusive text formatting flag on an Inline span.
type Mark string

const (
	MarkBold        Mark = "bold"
	MarkItalic      Mark = "italic"
	MarkUnderline   Mark = "underline"
	MarkStrike      Mark = "strike"
	MarkHighlight   Mark = "highlight"
	MarkCode        Mark = "code"
	MarkSubscript   Mark = "subscript"
	MarkSuperscript Mark = "superscript"
)

var knownMarks = map[Mark]struct{}{
	MarkBold:        {},
	MarkItalic:      {},
	MarkUnderline:   {},
	MarkStrike:      {},
	MarkHighlight:   {},
	MarkCode:        {},
	MarkSubscript:   {},
	MarkSuperscript: {},
}

// ValidMark reports whether m is one of the supported formatting marks.
func ValidMark(m Mark) bool {
	_, ok := knownMarks[m]
	return ok
}

// Link is an optional hyperlink target on an Inline span.
type Link struct {
	URL    string `json:"url"`
	Title  string `json:"title,omitempty"`
	Target string `json:"target,omitempty"`
}

// Annotation is a free-form side note attached to an Inline span, such as an
// AI-assist provenance tag or a reviewer comment.
type Annotation struct {
	ID        string `json:"id"`
	AuthorID  string `json:"authorId"`
	Text      string `json:"text"`
	CreatedAt string `json:"createdAt"`
	Resolved  bool   `json:"resolved,omitempty"`
}

// Inline is the smallest addressable unit of text inside a text-bearing
// block. Formatting is flat: styles are expressed through the ordered mark
// set rather than nesting.
type Inline struct {
	ID         string      `json:"id"`
	Text       string      `json:"text"`
	Marks      []Mark      `json:"marks,omitempty"`
	Link       *Link       `json:"link,omitempty"`
	Annotation *Annotation `json:"annotation,omitempty"`
}

// HasMark reports whether the span already carries the given mark.
func (n Inline) HasMark(m Mark) bool {
	for _, existing := range n.Marks {
		if existing == m {
			return true
		}
	}
	return false
}

func (n Inline) clone() Inline {
	out := n
	if len(n.Marks) > 0 {
		out.Marks = append([]Mark(nil), n.Marks...)
	}
	if n.Link != nil {
		link := *n.Link
		out.Link = &link
	}
	if n.Annotation != nil {
		annotation := *n.Annotation
		out.Annotation = &annotation
	}
	return out
}

func cloneInlines(nodes []Inline) []Inline {
	if nodes == nil {
		return nil
	}
	out := make([]Inline, len(nodes))
	for i, node := range nodes {
		out[i] = node.clone()
	}
	return out
}

// ConcatText joins the literal text of an ordered Inline sequence. The
// concatenation is deterministic: same sequence, same output, no separators.
func ConcatText(nodes []Inline) string {
	total := 0
	for _, node := range nodes {
		total += len(node.Text)
	}
	buf := make([]byte, 0, total)
	for _, node := range nodes {
		buf = append(buf, node.Text...)
	}
	return string(buf)
}
