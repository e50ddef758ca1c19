// Package persist is the HTTP gateway to the document server. It moves
// whole documents in the server's schema; the editing core never talks to
// the server directly.
package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"greenprint/api/internal/wire"
)

// ErrDocumentNotFound reports that the server has no document under the id.
var ErrDocumentNotFound = errors.New("document not found")

// Store loads and saves server documents.
type Store interface {
	Load(ctx context.Context, documentID string) (wire.ServerDocument, error)
	Save(ctx context.Context, doc wire.ServerDocument) (wire.ServerDocument, error)
}

// TransportError wraps a connectivity failure, as opposed to a server
// rejection. The editor uses the distinction to flag offline mode instead
// of reporting a save error.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "document server unreachable: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// IsOffline reports whether err means the server could not be reached.
func IsOffline(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// StatusError is a non-2xx response from the document server.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("document server returned %d: %s", e.Status, e.Body)
}

// HTTPStore talks to the document server with retries on transient
// failures.
type HTTPStore struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// NewHTTPStore builds a store for the document server at baseURL.
func NewHTTPStore(baseURL string, timeout time.Duration, log zerolog.Logger) *HTTPStore {
	cl := retryablehttp.NewClient()
	cl.RetryMax = 3
	cl.RetryWaitMin = 500 * time.Millisecond
	cl.RetryWaitMax = 10 * time.Second
	cl.HTTPClient.Timeout = timeout
	cl.Logger = nil
	return &HTTPStore{
		baseURL: baseURL,
		http:    cl.StandardClient(),
		log:     log.With().Str("component", "persist").Logger(),
	}
}

// Load fetches a document by id.
func (s *HTTPStore) Load(ctx context.Context, documentID string) (wire.ServerDocument, error) {
	var doc wire.ServerDocument
	err := s.do(ctx, http.MethodGet, "/api/documents/"+documentID, nil, &doc)
	return doc, err
}

// Save writes the whole document back and returns the server's view of it,
// which may carry refreshed timestamps.
func (s *HTTPStore) Save(ctx context.Context, doc wire.ServerDocument) (wire.ServerDocument, error) {
	var saved wire.ServerDocument
	path := fmt.Sprintf("/api/documents/%d", doc.ID)
	err := s.do(ctx, http.MethodPut, path, doc, &saved)
	return saved, err
}

func (s *HTTPStore) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := s.http.Do(req)
	if err != nil {
		s.log.Warn().Str("path", path).Err(err).Msg("document server unreachable")
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	s.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(started)).
		Msg("document server call")

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrDocumentNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Status: resp.StatusCode, Body: string(detail)}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
