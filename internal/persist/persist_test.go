package persist

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"greenprint/api/internal/logger"
	"greenprint/api/internal/wire"
)

// plainStore skips the retry layer so failure tests stay fast.
func plainStore(baseURL string) *HTTPStore {
	return &HTTPStore{
		baseURL: baseURL,
		http:    &http.Client{Timeout: time.Second},
		log:     logger.Nop(),
	}
}

func TestLoadAndSave(t *testing.T) {
	stored := wire.ServerDocument{ID: 42, UserID: 7, Title: "Report", Sections: []wire.ServerSection{}}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/documents/42":
			json.NewEncoder(w).Encode(stored)
		case r.Method == http.MethodPut && r.URL.Path == "/api/documents/42":
			var incoming wire.ServerDocument
			if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
				t.Errorf("bad save body: %v", err)
			}
			incoming.UpdatedAt = "2026-03-01T00:00:00Z"
			json.NewEncoder(w).Encode(incoming)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	store := NewHTTPStore(server.URL, 5*time.Second, logger.Nop())

	doc, err := store.Load(context.Background(), "42")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if doc.ID != 42 || doc.Title != "Report" {
		t.Errorf("unexpected document: %+v", doc)
	}

	doc.Title = "Report v2"
	saved, err := store.Save(context.Background(), doc)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if saved.Title != "Report v2" || saved.UpdatedAt == "" {
		t.Errorf("server view not returned: %+v", saved)
	}
}

func TestLoadMissingDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(http.NotFound))
	defer server.Close()

	_, err := plainStore(server.URL).Load(context.Background(), "99")
	if !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestServerRejectionIsNotOffline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "validation failed", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	_, err := plainStore(server.URL).Save(context.Background(), wire.ServerDocument{ID: 1})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Status != http.StatusUnprocessableEntity {
		t.Fatalf("expected status error, got %v", err)
	}
	if IsOffline(err) {
		t.Errorf("rejection classified as offline")
	}
}

func TestUnreachableServerIsOffline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close() // nothing listens here anymore

	_, err := plainStore(server.URL).Load(context.Background(), "1")
	if err == nil || !IsOffline(err) {
		t.Errorf("connection failure not classified as offline: %v", err)
	}
}
