package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"greenprint/api/internal/assist"
	"greenprint/api/internal/document"
	"greenprint/api/internal/editor"
	"greenprint/api/internal/export"
	"greenprint/api/internal/metrics"
	"greenprint/api/internal/persist"
	"greenprint/api/internal/search"
	"greenprint/api/internal/util"
	"greenprint/api/internal/versions"
	"greenprint/api/internal/wire"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	log        zerolog.Logger
	metrics    *metrics.Metrics
}

func NewHTTPServer(service *Service, corsOrigin string, log zerolog.Logger, m *metrics.Metrics) *HTTPServer {
	return &HTTPServer{
		service:    service,
		corsOrigin: corsOrigin,
		log:        log.With().Str("component", "http").Logger(),
		metrics:    m,
	}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":           true,
			"status":       "ready",
			"openSessions": s.service.SessionCount(),
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		s.handleSearch(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/assist/results" {
		correlationID := strings.TrimSpace(r.URL.Query().Get("correlationId"))
		if correlationID == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "correlationId is required", nil)
			return
		}
		s.handleAssistResult(w, correlationID)
		return
	}

	parts := splitPath(r.URL.Path)

	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "documents" {
		s.handleDocuments(w, r, parts[2], parts[3:])
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := search.Query{
		Text:             strings.TrimSpace(r.URL.Query().Get("q")),
		FilterType:       search.ResultType(strings.TrimSpace(r.URL.Query().Get("type"))),
		FilterDocumentID: strings.TrimSpace(r.URL.Query().Get("documentId")),
		FilterFramework:  strings.TrimSpace(r.URL.Query().Get("framework")),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be an integer", nil)
			return
		}
		q.Limit = parsed
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("offset")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "offset must be an integer", nil)
			return
		}
		q.Offset = parsed
	}
	writeJSON(w, http.StatusOK, s.service.Search(q))
}

func (s *HTTPServer) handleDocuments(w http.ResponseWriter, r *http.Request, documentID string, rest []string) {
	if documentID == "" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	// Session lifecycle routes that do not require an open session.
	if len(rest) == 1 && rest[0] == "open" && r.Method == http.MethodPost {
		session, err := s.service.OpenSession(r.Context(), documentID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"document": wire.ToServer(session.Document()),
			"state":    stateOf(session),
		})
		return
	}

	if len(rest) == 1 && rest[0] == "close" && r.Method == http.MethodPost {
		if !s.service.CloseSession(documentID) {
			writeError(w, http.StatusNotFound, "NO_SESSION", "No open session", nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	session, err := s.service.Session(documentID)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}

	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{
			"document": wire.ToServer(session.Document()),
			"state":    stateOf(session),
		})

	case len(rest) == 1 && rest[0] == "state" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, stateOf(session))

	case len(rest) == 1 && rest[0] == "events" && r.Method == http.MethodGet:
		s.streamEvents(w, r, session)

	case len(rest) == 1 && rest[0] == "save" && r.Method == http.MethodPost:
		var body struct {
			Message string `json:"message"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		info, err := s.service.Save(r.Context(), documentID, body.Message)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"state": stateOf(session), "version": info})

	case len(rest) == 1 && rest[0] == "reload" && r.Method == http.MethodPost:
		if err := s.service.Reload(r.Context(), documentID); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"document": wire.ToServer(session.Document()),
			"state":    stateOf(session),
		})

	case len(rest) == 1 && rest[0] == "undo" && r.Method == http.MethodPost:
		session.Undo()
		writeJSON(w, http.StatusOK, map[string]any{
			"document": wire.ToServer(session.Document()),
			"state":    stateOf(session),
		})

	case len(rest) == 1 && rest[0] == "redo" && r.Method == http.MethodPost:
		session.Redo()
		writeJSON(w, http.StatusOK, map[string]any{
			"document": wire.ToServer(session.Document()),
			"state":    stateOf(session),
		})

	case len(rest) == 1 && rest[0] == "selection" && r.Method == http.MethodPut:
		var sel editor.Selection
		if err := decodeBody(r, &sel); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		session.SetSelection(sel)
		writeJSON(w, http.StatusOK, map[string]any{"selection": session.Selection()})

	case len(rest) == 1 && rest[0] == "title" && r.Method == http.MethodPut:
		var body struct {
			Title string `json:"title"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		s.respondEdit(w, session, "set_title", session.SetTitle(body.Title))

	case len(rest) >= 1 && rest[0] == "sections":
		s.handleSections(w, r, session, rest[1:])

	case len(rest) >= 1 && rest[0] == "blocks":
		s.handleBlocks(w, r, session, rest[1:])

	case len(rest) == 3 && rest[0] == "inlines" && rest[2] == "marks":
		s.handleMarks(w, r, session, rest[1])

	case len(rest) >= 1 && rest[0] == "assist":
		s.handleAssist(w, r, session, documentID, rest[1:])

	case len(rest) >= 1 && rest[0] == "versions":
		s.handleVersions(w, r, documentID, rest[1:])

	case len(rest) == 1 && rest[0] == "export" && r.Method == http.MethodPost:
		var body struct {
			Format             string `json:"format"`
			IncludeAnnotations bool   `json:"includeAnnotations"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		result, err := s.service.Export(r.Context(), documentID, export.Request{
			Format:             export.Format(body.Format),
			IncludeAnnotations: body.IncludeAnnotations,
		})
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		w.Header().Set("Content-Type", result.MimeType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Data)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleSections(w http.ResponseWriter, r *http.Request, session *editor.Session, rest []string) {
	switch {
	case len(rest) == 0 && r.Method == http.MethodPost:
		var body struct {
			Section wire.ServerSection `json:"section"`
			Index   int                `json:"index"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		section := document.Section{
			ID:          body.Section.ID,
			Title:       body.Section.Title,
			Description: body.Section.Description,
		}
		if section.ID == "" {
			section.ID = util.NewID("sec")
		}
		s.respondEdit(w, session, "insert_section", session.InsertSection(section, body.Index))

	case len(rest) == 1 && r.Method == http.MethodDelete:
		s.respondEdit(w, session, "delete_section", session.DeleteSection(rest[0]))

	case len(rest) == 2 && rest[1] == "refs" && r.Method == http.MethodPost:
		var body struct {
			Framework string   `json:"framework"`
			Codes     []string `json:"codes"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		s.respondEdit(w, session, "add_standard_ref", session.AddStandardRef(rest[0], body.Framework, body.Codes...))

	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleBlocks(w http.ResponseWriter, r *http.Request, session *editor.Session, rest []string) {
	switch {
	case len(rest) == 0 && r.Method == http.MethodPost:
		var body struct {
			SectionID string           `json:"sectionId"`
			Index     int              `json:"index"`
			Block     wire.ServerBlock `json:"block"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		block := wire.ToBlock(body.Block)
		if block.ID == "" {
			block.ID = session.NewBlockID()
		}
		s.respondEdit(w, session, "insert_block", session.InsertBlock(body.SectionID, block, body.Index))

	case len(rest) == 1 && r.Method == http.MethodPut:
		var body wire.ServerBlock
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		body.ID = rest[0]
		s.respondEdit(w, session, "update_block", session.UpdateBlockPayload(rest[0], wire.ToBlock(body).Payload))

	case len(rest) == 1 && r.Method == http.MethodDelete:
		s.respondEdit(w, session, "delete_block", session.DeleteBlock(rest[0]))

	case len(rest) == 2 && rest[1] == "move" && r.Method == http.MethodPost:
		var body struct {
			SectionID string `json:"sectionId"`
			Index     int    `json:"index"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		s.respondEdit(w, session, "move_block", session.MoveBlock(rest[0], body.SectionID, body.Index))

	case len(rest) == 2 && rest[1] == "attributes" && r.Method == http.MethodPut:
		var body struct {
			Attributes map[string]any `json:"attributes"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		s.respondEdit(w, session, "update_attributes", session.UpdateBlockAttributes(rest[0], body.Attributes))

	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleMarks(w http.ResponseWriter, r *http.Request, session *editor.Session, inlineID string) {
	var body struct {
		Mark string `json:"mark"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	mark := document.Mark(body.Mark)
	if !document.ValidMark(mark) {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown mark", nil)
		return
	}

	switch r.Method {
	case http.MethodPost:
		s.respondEdit(w, session, "apply_mark", session.ApplyMark(inlineID, mark))
	case http.MethodDelete:
		s.respondEdit(w, session, "remove_mark", session.RemoveMark(inlineID, mark))
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleAssist(w http.ResponseWriter, r *http.Request, session *editor.Session, documentID string, rest []string) {
	svc := s.service.Assist()
	if svc == nil {
		writeError(w, http.StatusServiceUnavailable, "ASSIST_UNAVAILABLE", "AI assist not configured", nil)
		return
	}

	switch {
	case len(rest) == 1 && rest[0] == "mapping" && r.Method == http.MethodPost:
		var body struct {
			BlockID       string   `json:"blockId"`
			Frameworks    []string `json:"frameworks"`
			TopK          int      `json:"topK"`
			MinConfidence float64  `json:"minConfidence"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		correlationID, err := svc.RequestMapping(session, body.BlockID, assist.MappingOptions{
			Frameworks:    body.Frameworks,
			TopK:          body.TopK,
			MinConfidence: body.MinConfidence,
		})
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"correlationId": correlationID})

	case len(rest) == 1 && rest[0] == "expansion" && r.Method == http.MethodPost:
		var body struct {
			BlockID      string `json:"blockId"`
			Mode         string `json:"mode"`
			Tone         string `json:"tone"`
			TargetLength int    `json:"targetLength"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		correlationID, err := svc.RequestExpansion(session, body.BlockID, assist.ExpansionOptions{
			Mode:         body.Mode,
			Tone:         body.Tone,
			TargetLength: body.TargetLength,
		})
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"correlationId": correlationID})

	case len(rest) == 1 && r.Method == http.MethodGet:
		s.handleAssistResult(w, rest[0])

	case len(rest) == 2 && rest[1] == "apply" && r.Method == http.MethodPost:
		correlationID := rest[0]
		result, ok := svc.Result(correlationID)
		if !ok {
			writeError(w, http.StatusNotFound, "RESULT_NOT_FOUND", "Unknown correlation id", nil)
			return
		}
		var err error
		switch result.Kind {
		case assist.KindMapping:
			err = svc.ApplyMapping(session, correlationID)
		case assist.KindExpansion:
			err = svc.ApplyExpansion(session, correlationID)
		default:
			err = assist.ErrResultNotFound
		}
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"document": wire.ToServer(session.Document()),
			"state":    stateOf(session),
		})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleAssistResult(w http.ResponseWriter, correlationID string) {
	svc := s.service.Assist()
	if svc == nil {
		writeError(w, http.StatusServiceUnavailable, "ASSIST_UNAVAILABLE", "AI assist not configured", nil)
		return
	}
	result, ok := svc.Result(correlationID)
	if !ok {
		writeError(w, http.StatusNotFound, "RESULT_NOT_FOUND", "Unknown correlation id", nil)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleVersions(w http.ResponseWriter, r *http.Request, documentID string, rest []string) {
	svc := s.service.Versions()
	if svc == nil {
		writeError(w, http.StatusServiceUnavailable, "VERSIONS_UNAVAILABLE", "Version archive not configured", nil)
		return
	}

	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		limit := 50
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be an integer", nil)
				return
			}
			limit = parsed
		}
		history, err := svc.History(documentID, limit)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"versions": history})

	case len(rest) == 1 && r.Method == http.MethodGet:
		doc, err := svc.GetVersion(documentID, rest[0])
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"document": wire.ToServer(doc)})

	case len(rest) == 2 && rest[1] == "tag" && r.Method == http.MethodPost:
		var body struct {
			Name string `json:"name"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if strings.TrimSpace(body.Name) == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
			return
		}
		if err := svc.TagVersion(documentID, rest[0], body.Name); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case len(rest) == 2 && rest[1] == "restore" && r.Method == http.MethodPost:
		if err := s.service.RestoreVersion(documentID, rest[0]); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		session, err := s.service.Session(documentID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"document": wire.ToServer(session.Document()),
			"state":    stateOf(session),
		})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

// streamEvents pushes session events over server-sent events until the
// client disconnects.
func (s *HTTPServer) streamEvents(w http.ResponseWriter, r *http.Request, session *editor.Session) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Streaming unsupported", nil)
		return
	}

	events, cancel := session.Subscribe()
	defer cancel()

	// The stream outlives the server's write timeout; clear the deadline
	// so long-idle sessions are not cut off mid-stream.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		s.log.Debug().Err(err).Msg("clearing event stream write deadline failed")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, open := <-events:
			if !open {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
		}
	}
}

// respondEdit finishes a mutating request: errors are mapped, successes
// return the updated document plus state.
func (s *HTTPServer) respondEdit(w http.ResponseWriter, session *editor.Session, operation string, err error) {
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	if s.metrics != nil {
		s.metrics.EditsTotal.WithLabelValues(operation).Inc()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"document": wire.ToServer(session.Document()),
		"state":    stateOf(session),
	})
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = util.NewRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		duration := time.Since(started)
		if s.metrics != nil {
			s.metrics.RecordHTTPRequest(routeLabel(r.URL.Path), strconv.Itoa(writer.status), duration)
		}
		s.log.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", writer.status).
			Dur("duration", duration).
			Msg("request")
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// routeLabel collapses document ids out of paths so the metric cardinality
// stays bounded.
func routeLabel(path string) string {
	parts := splitPath(path)
	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "documents" {
		parts[2] = ":id"
		if len(parts) >= 5 {
			switch parts[3] {
			case "blocks", "sections", "inlines", "versions", "assist":
				parts[4] = ":id"
			}
		}
	}
	return "/" + strings.Join(parts, "/")
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}

	switch {
	case errors.Is(err, ErrNoSession):
		return http.StatusNotFound, "NO_SESSION", "No open session", nil
	case errors.Is(err, persist.ErrDocumentNotFound):
		return http.StatusNotFound, "DOCUMENT_NOT_FOUND", "Document not found", nil
	case errors.Is(err, document.ErrSectionNotFound):
		return http.StatusNotFound, "SECTION_NOT_FOUND", "Section not found", nil
	case errors.Is(err, document.ErrBlockNotFound):
		return http.StatusNotFound, "BLOCK_NOT_FOUND", "Block not found", nil
	case errors.Is(err, document.ErrInlineNotFound):
		return http.StatusNotFound, "INLINE_NOT_FOUND", "Inline not found", nil
	case errors.Is(err, document.ErrDuplicateSectionID), errors.Is(err, document.ErrDuplicateBlockID):
		return http.StatusConflict, "DUPLICATE_ID", "Identifier already in use", nil
	case errors.Is(err, document.ErrVariantMismatch):
		return http.StatusConflict, "VARIANT_MISMATCH", "Block variant mismatch", nil
	case errors.Is(err, document.ErrInvalidBlockPayload):
		return http.StatusUnprocessableEntity, "INVALID_PAYLOAD", "Invalid block payload", nil
	case errors.Is(err, editor.ErrBlockIDRetired):
		return http.StatusConflict, "BLOCK_ID_RETIRED", "Block id was deleted and cannot be reused", nil
	case errors.Is(err, editor.ErrSaveInFlight):
		return http.StatusConflict, "SAVE_IN_FLIGHT", "A save is already in flight", nil
	case errors.Is(err, editor.ErrNothingToSave):
		return http.StatusConflict, "NOTHING_TO_SAVE", "No changes to save", nil
	case errors.Is(err, assist.ErrInsufficientContent):
		return http.StatusUnprocessableEntity, "INSUFFICIENT_CONTENT", "Not enough content for a suggestion", nil
	case errors.Is(err, assist.ErrResultNotFound):
		return http.StatusNotFound, "RESULT_NOT_FOUND", "Unknown correlation id", nil
	case errors.Is(err, assist.ErrResultNotReady):
		return http.StatusConflict, "RESULT_NOT_READY", "Result not ready", nil
	case errors.Is(err, assist.ErrResultStale):
		return http.StatusConflict, "RESULT_STALE", "Result no longer applies", nil
	case errors.Is(err, versions.ErrInvalidDocumentID):
		return http.StatusBadRequest, "INVALID_DOCUMENT_ID", "Invalid document id", nil
	case errors.Is(err, export.ErrUnsupportedFormat):
		return http.StatusUnprocessableEntity, "UNSUPPORTED_FORMAT", "Unsupported export format", nil
	case errors.Is(err, export.ErrPDFDependencyMissing), errors.Is(err, export.ErrDOCXDependencyMissing):
		return http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export dependency missing", nil
	case persist.IsOffline(err):
		return http.StatusServiceUnavailable, "BACKEND_UNREACHABLE", "Document server unreachable", nil
	}

	var statusErr *persist.StatusError
	if errors.As(err, &statusErr) {
		return http.StatusBadGateway, "BACKEND_REJECTED", "Document server rejected the request", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
