// Package wire converts between the internal document tree and the
// persistence collaborator's schema. The two directions form a round trip:
// converting a server document in and back out reproduces every field both
// schemas share.
package wire

import "encoding/json"

// ServerDocument is the persisted document record. Identifiers are numeric
// on the wire and coerced to the internal string form deterministically.
type ServerDocument struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id,omitempty"`
	Title     string          `json:"title"`
	CreatedAt string          `json:"created_at,omitempty"`
	UpdatedAt string          `json:"updated_at,omitempty"`
	Sections  []ServerSection `json:"sections"`
}

// ServerSection is one persisted chapter. Array position is the section
// order; the server keeps no separate order column in this schema.
type ServerSection struct {
	ID           string             `json:"id"`
	Title        string             `json:"title"`
	Description  string             `json:"description,omitempty"`
	Blocks       []ServerBlock      `json:"blocks"`
	GRIReference []ServerGRIRef     `json:"griReference,omitempty"`
	Metadata     map[string]any     `json:"metadata,omitempty"`
}

// ServerGRIRef maps a section to disclosure-framework codes.
type ServerGRIRef struct {
	Code      []string `json:"code"`
	Framework string   `json:"framework"`
}

// ServerBlock is the persisted block envelope. Exactly one of Content, Data
// and Children is populated, depending on the variant family: text-like
// blocks carry Content, data-like blocks carry Data, list blocks carry
// Children. The three are kept raw so unknown variants survive byte-for-byte.
type ServerBlock struct {
	ID         string          `json:"id"`
	BlockType  string          `json:"blockType"`
	Attributes map[string]any  `json:"attributes,omitempty"`
	Content    json.RawMessage `json:"content,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Children   json.RawMessage `json:"children,omitempty"`
}

// ServerInline is one text span inside a text-like block's content.
type ServerInline struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Text       string            `json:"text"`
	Marks      []string          `json:"marks,omitempty"`
	Link       *ServerLink       `json:"link,omitempty"`
	Annotation *ServerAnnotation `json:"annotation,omitempty"`
}

// ServerLink is an inline hyperlink target.
type ServerLink struct {
	URL    string `json:"url"`
	Title  string `json:"title,omitempty"`
	Target string `json:"target,omitempty"`
}

// ServerAnnotation is an inline side note.
type ServerAnnotation struct {
	ID        string `json:"id"`
	AuthorID  string `json:"authorId"`
	Text      string `json:"text"`
	CreatedAt string `json:"createdAt"`
	Resolved  bool   `json:"resolved,omitempty"`
}

// ServerListItem is one entry in a list block's children.
type ServerListItem struct {
	ID      string           `json:"id"`
	Content []ServerInline   `json:"content"`
	Items   []ServerListItem `json:"items,omitempty"`
}

type serverImageData struct {
	Source  string `json:"src"`
	Alt     string `json:"alt,omitempty"`
	Caption string `json:"caption,omitempty"`
}

type serverMetricData struct {
	Code          string            `json:"metricCode"`
	Values        map[string]any    `json:"values"`
	Unit          string            `json:"unit,omitempty"`
	Visualization string            `json:"visualization,omitempty"`
	References    []serverReference `json:"references,omitempty"`
}

type serverReference struct {
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
}
