package search

import (
	"github.com/rs/zerolog"

	"greenprint/api/internal/document"
)

// Service is the facade that tries Meilisearch first and falls back to the
// in-memory index. meili may be nil when Meilisearch is not configured.
type Service struct {
	meili    *Meili
	fallback *Memory
	log      zerolog.Logger
}

// NewService creates a search service.
func NewService(meili *Meili, fallback *Memory, log zerolog.Logger) *Service {
	if fallback == nil {
		fallback = NewMemory()
	}
	return &Service{
		meili:    meili,
		fallback: fallback,
		log:      log.With().Str("component", "search").Logger(),
	}
}

// Search tries Meilisearch if healthy, otherwise uses the in-memory index.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.log.Warn().Err(err).Msg("meilisearch error, falling back to in-memory index")
	}

	results, total, err := s.fallback.Search(q)
	if err != nil {
		s.log.Error().Err(err).Msg("fallback search failed")
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexDocument flattens the document into report and section records and
// indexes them. The in-memory index is updated synchronously so the fallback
// stays current; Meilisearch writes are fire-and-forget.
func (s *Service) IndexDocument(doc document.Document) {
	report, sections := BuildRecords(doc)

	_ = s.fallback.IndexReport(report)
	_ = s.fallback.IndexSections(sections)

	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexReport(report); err != nil {
			s.log.Warn().Str("document_id", report.ID).Err(err).Msg("index report")
			return
		}
		if err := s.meili.IndexSections(sections); err != nil {
			s.log.Warn().Str("document_id", report.ID).Err(err).Msg("index sections")
		}
	}()
}

// RemoveDocument removes a report and its sections from the indexes
// (fire-and-forget to Meilisearch).
func (s *Service) RemoveDocument(doc document.Document) {
	sectionIDs := SectionIDs(doc)

	_ = s.fallback.DeleteReport(doc.ID)
	_ = s.fallback.DeleteSections(sectionIDs)

	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteReport(doc.ID); err != nil {
			s.log.Warn().Str("document_id", doc.ID).Err(err).Msg("delete report")
		}
		if err := s.meili.DeleteSections(sectionIDs); err != nil {
			s.log.Warn().Str("document_id", doc.ID).Err(err).Msg("delete sections")
		}
	}()
}

// ReindexAll pushes a set of documents into both indexes. Called on startup
// when Meilisearch comes up after being down.
func (s *Service) ReindexAll(docs []document.Document) {
	for _, doc := range docs {
		s.IndexDocument(doc)
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
