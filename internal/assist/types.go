// Package assist connects editing sessions to the AI suggestion service.
// Every request is tagged with a correlation id and the session's document
// generation; results that come back after the target block changed or the
// document was reloaded are discarded silently instead of corrupting the
// tree.
package assist

// Frameworks the mapping service can search.
const (
	FrameworkGRI  = "GRI"
	FrameworkSASB = "SASB"
	FrameworkTCFD = "TCFD"
	FrameworkESRS = "ESRS"
)

// MappingRequest asks the suggestion service which disclosure standards a
// piece of report text relates to.
type MappingRequest struct {
	Text          string   `json:"text"`
	DocumentID    string   `json:"document_id"`
	SectionID     string   `json:"section_id,omitempty"`
	BlockID       string   `json:"block_id,omitempty"`
	Frameworks    []string `json:"frameworks,omitempty"`
	TopK          int      `json:"top_k,omitempty"`
	MinConfidence float64  `json:"min_confidence,omitempty"`
	Language      string   `json:"language,omitempty"`
}

// StandardMatch is one suggested disclosure standard.
type StandardMatch struct {
	StandardID string   `json:"standard_id"`
	Framework  string   `json:"framework"`
	Category   string   `json:"category"`
	Topic      string   `json:"topic"`
	Title      string   `json:"title"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
	Keywords   []string `json:"keywords,omitempty"`
}

// MappingResponse is the suggestion service's answer to a MappingRequest.
type MappingResponse struct {
	Suggestions []StandardMatch `json:"suggestions"`
	Summary     string          `json:"summary,omitempty"`
	ModelUsed   string          `json:"model_used,omitempty"`
}

// Expansion modes supported by the suggestion service.
const (
	ModeExpand    = "expand"
	ModeRewrite   = "rewrite"
	ModeSummarize = "summarize"
	ModeFormalize = "formalize"
)

// ExpansionRequest asks the suggestion service to rework a block's text.
type ExpansionRequest struct {
	Text         string `json:"text"`
	DocumentID   string `json:"document_id"`
	BlockID      string `json:"block_id"`
	Mode         string `json:"mode,omitempty"`
	TargetLength int    `json:"target_length,omitempty"`
	Tone         string `json:"tone,omitempty"`
	Language     string `json:"language,omitempty"`
}

// ExpansionResponse carries the suggested replacement text. The suggestion
// is advisory: nothing reaches the document until the author accepts it.
type ExpansionResponse struct {
	Original    string `json:"original"`
	Suggestion  string `json:"suggestion"`
	Explanation string `json:"explanation,omitempty"`
}

// Result kinds.
const (
	KindMapping   = "esg_mapping"
	KindExpansion = "content_expansion"
)

// Result statuses.
const (
	StatusPending = "pending"
	StatusDone    = "done"
	StatusFailed  = "failed"
	StatusStale   = "stale"
)

// Result is the terminal state of one assist request, retrievable by its
// correlation id.
type Result struct {
	CorrelationID string             `json:"correlationId"`
	Kind          string             `json:"kind"`
	Status        string             `json:"status"`
	DocumentID    string             `json:"documentId"`
	BlockID       string             `json:"blockId,omitempty"`
	Mapping       *MappingResponse   `json:"mapping,omitempty"`
	Expansion     *ExpansionResponse `json:"expansion,omitempty"`
	Error         string             `json:"error,omitempty"`
}
