package search

import (
	"strings"

	"greenprint/api/internal/document"
)

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultReport  ResultType = "report"
	ResultSection ResultType = "section"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type       ResultType `json:"type"`
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Snippet    string     `json:"snippet"`
	DocumentID string     `json:"documentId"`
	Status     string     `json:"status,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text             string
	FilterType       ResultType // empty = all types
	FilterDocumentID string
	FilterFramework  string
	Limit            int
	Offset           int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push report entities into a search index.
type Indexer interface {
	IndexReport(r ReportRecord) error
	IndexSections(sections []SectionRecord) error
	DeleteReport(id string) error
	DeleteSections(ids []string) error
}

// ReportRecord is the data we index for a whole report.
type ReportRecord struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Language string `json:"language"`
	AuthorID string `json:"authorId"`
}

// SectionRecord is the data we index for a single report section. Text is
// the concatenated plain text of the section's blocks.
type SectionRecord struct {
	ID         string   `json:"id"`
	DocumentID string   `json:"documentId"`
	Title      string   `json:"title"`
	Text       string   `json:"text"`
	Frameworks []string `json:"frameworks"`
}

// BuildRecords flattens a document into its indexable report and section
// records.
func BuildRecords(doc document.Document) (ReportRecord, []SectionRecord) {
	report := ReportRecord{
		ID:       doc.ID,
		Title:    doc.Title,
		Status:   string(doc.Metadata.Status),
		Language: doc.Metadata.Language,
		AuthorID: doc.Metadata.AuthorID,
	}

	sections := make([]SectionRecord, 0, len(doc.Sections))
	for _, sec := range doc.Sections {
		rec := SectionRecord{
			ID:         sec.ID,
			DocumentID: doc.ID,
			Title:      sec.Title,
		}
		var parts []string
		if sec.Description != "" {
			parts = append(parts, sec.Description)
		}
		for _, b := range sec.Blocks {
			if text := document.PlainText(b); text != "" {
				parts = append(parts, text)
			}
		}
		rec.Text = strings.Join(parts, "\n")
		for _, ref := range sec.StandardRefs {
			rec.Frameworks = append(rec.Frameworks, ref.Framework)
		}
		sections = append(sections, rec)
	}
	return report, sections
}

// SectionIDs returns the index ids of every section in the document, used
// to clear stale section records when a report is removed.
func SectionIDs(doc document.Document) []string {
	ids := make([]string, 0, len(doc.Sections))
	for _, sec := range doc.Sections {
		ids = append(ids, sec.ID)
	}
	return ids
}
