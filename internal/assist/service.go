package assist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"greenprint/api/internal/document"
	"greenprint/api/internal/editor"
	"greenprint/api/internal/metrics"
	"greenprint/api/internal/util"
)

// MinTextChars is the smallest block text the suggestion service accepts.
const MinTextChars = 10

var (
	// ErrInsufficientContent rejects a request whose block text is too
	// short to analyze. Detected locally; no network round trip happens.
	ErrInsufficientContent = errors.New("not enough content for a suggestion")
	// ErrResultNotFound reports an unknown or expired correlation id.
	ErrResultNotFound = errors.New("assist result not found")
	// ErrResultNotReady reports that the request is still in flight.
	ErrResultNotReady = errors.New("assist result not ready")
	// ErrResultStale reports that the target changed while the request
	// was in flight, so the suggestion no longer applies.
	ErrResultStale = errors.New("assist result is stale")
)

// Config tunes the assist service.
type Config struct {
	Timeout  time.Duration
	Language string
	MinChars int
}

// Service runs assist requests against the suggestion service on behalf of
// editing sessions. Requests are asynchronous: the correlation id returned
// at launch is the handle for fetching the result later.
type Service struct {
	client  Client
	cfg     Config
	log     zerolog.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	results map[string]*Result
	wg      sync.WaitGroup
}

// NewService builds an assist service. A nil metrics disables recording.
func NewService(client Client, cfg Config, log zerolog.Logger, m *metrics.Metrics) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.MinChars <= 0 {
		cfg.MinChars = MinTextChars
	}
	return &Service{
		client:  client,
		cfg:     cfg,
		log:     log.With().Str("component", "assist").Logger(),
		metrics: m,
		results: map[string]*Result{},
	}
}

// MappingOptions narrows a standard-mapping request.
type MappingOptions struct {
	Frameworks    []string
	TopK          int
	MinConfidence float64
}

// RequestMapping launches a disclosure-standard mapping request for a
// block's text and returns the correlation id. The block text is extracted
// and length-checked before any network traffic.
func (s *Service) RequestMapping(session *editor.Session, blockID string, opts MappingOptions) (string, error) {
	text, sectionID, err := s.blockText(session, blockID)
	if err != nil {
		return "", err
	}

	req := MappingRequest{
		Text:          text,
		DocumentID:    session.DocumentID(),
		SectionID:     sectionID,
		BlockID:       blockID,
		Frameworks:    opts.Frameworks,
		TopK:          opts.TopK,
		MinConfidence: opts.MinConfidence,
		Language:      s.cfg.Language,
	}
	return s.launch(session, KindMapping, blockID, func(ctx context.Context) (func(*Result), error) {
		resp, err := s.client.MapStandards(ctx, req)
		if err != nil {
			return nil, err
		}
		return func(r *Result) { r.Mapping = &resp }, nil
	}), nil
}

// ExpansionOptions narrows a content-expansion request.
type ExpansionOptions struct {
	Mode         string
	Tone         string
	TargetLength int
}

// RequestExpansion launches a rewrite request for a block's text and
// returns the correlation id.
func (s *Service) RequestExpansion(session *editor.Session, blockID string, opts ExpansionOptions) (string, error) {
	text, _, err := s.blockText(session, blockID)
	if err != nil {
		return "", err
	}

	req := ExpansionRequest{
		Text:         text,
		DocumentID:   session.DocumentID(),
		BlockID:      blockID,
		Mode:         opts.Mode,
		Tone:         opts.Tone,
		TargetLength: opts.TargetLength,
		Language:     s.cfg.Language,
	}
	return s.launch(session, KindExpansion, blockID, func(ctx context.Context) (func(*Result), error) {
		resp, err := s.client.ExpandContent(ctx, req)
		if err != nil {
			return nil, err
		}
		return func(r *Result) { r.Expansion = &resp }, nil
	}), nil
}

// Result returns the current state of an assist request.
func (s *Service) Result(correlationID string) (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result, ok := s.results[correlationID]
	if !ok {
		return Result{}, false
	}
	return *result, true
}

// ApplyMapping records a completed mapping suggestion onto the block's
// section as disclosure references. The application is one undoable edit.
func (s *Service) ApplyMapping(session *editor.Session, correlationID string) error {
	result, err := s.completedResult(correlationID, KindMapping)
	if err != nil {
		return err
	}
	if result.DocumentID != session.DocumentID() {
		return fmt.Errorf("%w: result belongs to document %s", ErrResultStale, result.DocumentID)
	}
	_, sectionID, ok := session.Document().FindBlock(result.BlockID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrResultStale, result.BlockID)
	}

	byFramework := map[string][]string{}
	order := []string{}
	for _, match := range result.Mapping.Suggestions {
		if _, seen := byFramework[match.Framework]; !seen {
			order = append(order, match.Framework)
		}
		byFramework[match.Framework] = append(byFramework[match.Framework], match.StandardID)
	}
	return session.Apply(func(d document.Document) (document.Document, error) {
		out := d
		for _, framework := range order {
			next, err := out.AddStandardRef(sectionID, framework, byFramework[framework]...)
			if err != nil {
				return d, err
			}
			out = next
		}
		return out, nil
	})
}

// ApplyExpansion replaces the target block's text with the accepted
// suggestion as one undoable edit. The new inline carries a provenance
// annotation so reviewers can see the text was machine-suggested.
func (s *Service) ApplyExpansion(session *editor.Session, correlationID string) error {
	result, err := s.completedResult(correlationID, KindExpansion)
	if err != nil {
		return err
	}
	if result.DocumentID != session.DocumentID() {
		return fmt.Errorf("%w: result belongs to document %s", ErrResultStale, result.DocumentID)
	}
	block, _, ok := session.Document().FindBlock(result.BlockID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrResultStale, result.BlockID)
	}
	if _, isText := block.Payload.(document.TextPayload); !isText {
		return fmt.Errorf("%w: block %s no longer holds text", ErrResultStale, result.BlockID)
	}

	replacement := document.TextPayload{
		Content: []document.Inline{{
			ID:   util.NewID("in"),
			Text: result.Expansion.Suggestion,
			Annotation: &document.Annotation{
				ID:        util.NewID("ann"),
				AuthorID:  "ai-assist",
				Text:      result.Expansion.Explanation,
				CreatedAt: time.Now().UTC().Format(time.RFC3339),
			},
		}},
	}
	return session.UpdateBlockPayload(result.BlockID, replacement)
}

// Flush waits for all in-flight requests, used by tests and shutdown.
func (s *Service) Flush() {
	s.wg.Wait()
}

func (s *Service) blockText(session *editor.Session, blockID string) (string, string, error) {
	block, sectionID, ok := session.Document().FindBlock(blockID)
	if !ok {
		return "", "", fmt.Errorf("%w: %s", document.ErrBlockNotFound, blockID)
	}
	text := document.PlainText(block)
	if len([]rune(text)) < s.cfg.MinChars {
		return "", "", fmt.Errorf("%w: need at least %d characters", ErrInsufficientContent, s.cfg.MinChars)
	}
	return text, sectionID, nil
}

// launch registers a pending result and runs the round trip in the
// background. Completion re-checks the session's generation and the target
// block; a mismatch marks the result stale and nothing else happens.
func (s *Service) launch(session *editor.Session, kind, blockID string, call func(context.Context) (func(*Result), error)) string {
	correlationID := util.NewID("cor")
	epoch := session.Epoch()

	result := &Result{
		CorrelationID: correlationID,
		Kind:          kind,
		Status:        StatusPending,
		DocumentID:    session.DocumentID(),
		BlockID:       blockID,
	}
	s.mu.Lock()
	s.results[correlationID] = result
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		started := time.Now()
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
		defer cancel()

		attach, callErr := call(ctx)

		// The session check happens before taking the service lock:
		// session methods take their own lock and must not nest inside
		// ours.
		stale := session.Epoch() != epoch || !session.Document().HasBlockID(blockID)

		s.mu.Lock()
		defer s.mu.Unlock()
		switch {
		case stale:
			result.Status = StatusStale
			if s.metrics != nil {
				s.metrics.AssistStaleTotal.Inc()
			}
			s.log.Debug().
				Str("correlation_id", correlationID).
				Str("block_id", blockID).
				Msg("discarding stale assist result")
		case callErr != nil:
			result.Status = StatusFailed
			result.Error = callErr.Error()
			s.log.Warn().
				Str("correlation_id", correlationID).
				Err(callErr).
				Msg("assist request failed")
		default:
			attach(result)
			result.Status = StatusDone
		}
		if s.metrics != nil {
			s.metrics.RecordAssist(kind, result.Status, time.Since(started))
		}
	}()
	return correlationID
}

func (s *Service) completedResult(correlationID, kind string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result, ok := s.results[correlationID]
	if !ok || result.Kind != kind {
		return Result{}, fmt.Errorf("%w: %s", ErrResultNotFound, correlationID)
	}
	switch result.Status {
	case StatusPending:
		return Result{}, fmt.Errorf("%w: %s", ErrResultNotReady, correlationID)
	case StatusStale:
		return Result{}, fmt.Errorf("%w: %s", ErrResultStale, correlationID)
	case StatusFailed:
		return Result{}, errors.New(result.Error)
	}
	return *result, nil
}
