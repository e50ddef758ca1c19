package export

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"greenprint/api/internal/document"
	"greenprint/api/internal/metrics"
)

// Service renders documents into downloadable files.
type Service struct {
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// NewService creates an export service. A nil metrics disables recording.
func NewService(log zerolog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		log:     log.With().Str("component", "export").Logger(),
		metrics: m,
	}
}

// Export renders the document in the requested format.
func (s *Service) Export(ctx context.Context, doc document.Document, req Request) (*Result, error) {
	started := time.Now()

	body := DocumentToHTML(doc, req.IncludeAnnotations)
	html, err := RenderDocumentHTML(doc, body)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	var result *Result
	switch req.Format {
	case FormatPDF:
		result, err = exportPDF(ctx, html, doc.Title, doc.PageSetup)
	case FormatDOCX:
		result, err = exportDOCX(ctx, html, doc.Title)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}

	status := "ok"
	if err != nil {
		status = "error"
	}
	if s.metrics != nil {
		s.metrics.ExportsTotal.WithLabelValues(string(req.Format), status).Inc()
	}
	s.log.Info().
		Str("document_id", doc.ID).
		Str("format", string(req.Format)).
		Str("status", status).
		Dur("duration", time.Since(started)).
		Msg("document export")

	if err != nil {
		return nil, err
	}
	return result, nil
}
