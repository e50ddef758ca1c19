package app

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"greenprint/api/internal/logger"
)

func newTestServer(t *testing.T, store *fakeStore) *HTTPServer {
	t.Helper()
	svc := newTestService(store)
	return NewHTTPServer(svc, "*", logger.Nop(), nil)
}

func doJSON(t *testing.T, server *HTTPServer, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v\n%s", err, rr.Body.String())
	}
	return response
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t, newFakeStore())

	rr := doJSON(t, server, http.MethodGet, "/api/health", "")
	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	if response := decode(t, rr); response["ok"] != true {
		t.Errorf("expected ok=true, got %v", response["ok"])
	}
}

func TestEditWithoutSessionIsRejected(t *testing.T) {
	server := newTestServer(t, newFakeStore(serverFixture(t)))

	rr := doJSON(t, server, http.MethodPost, "/api/documents/42/undo", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	if response := decode(t, rr); response["code"] != "NO_SESSION" {
		t.Errorf("code = %v", response["code"])
	}
}

func TestOpenEditSaveFlow(t *testing.T) {
	store := newFakeStore(serverFixture(t))
	server := newTestServer(t, store)

	rr := doJSON(t, server, http.MethodPost, "/api/documents/42/open", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("open status = %d\n%s", rr.Code, rr.Body.String())
	}

	insert := `{"sectionId":"s1","block":{"blockType":"paragraph","content":[{"id":"i9","type":"inline","text":"New paragraph."}]},"index":-1}`
	rr = doJSON(t, server, http.MethodPost, "/api/documents/42/blocks", insert)
	if rr.Code != http.StatusOK {
		t.Fatalf("insert status = %d\n%s", rr.Code, rr.Body.String())
	}
	state := decode(t, rr)["state"].(map[string]any)
	if state["status"] != "edited" || state["dirty"] != true {
		t.Errorf("state after edit: %v", state)
	}

	rr = doJSON(t, server, http.MethodPost, "/api/documents/42/save", `{"message":"first draft"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("save status = %d\n%s", rr.Code, rr.Body.String())
	}
	if store.saves != 1 {
		t.Errorf("saves = %d, want 1", store.saves)
	}

	rr = doJSON(t, server, http.MethodGet, "/api/documents/42/state", "")
	state = decode(t, rr)
	if state["status"] != "saved" || state["dirty"] != false {
		t.Errorf("state after save: %v", state)
	}
}

func TestDeletedBlockIDCannotBeReinserted(t *testing.T) {
	server := newTestServer(t, newFakeStore(serverFixture(t)))

	if rr := doJSON(t, server, http.MethodPost, "/api/documents/42/open", ""); rr.Code != http.StatusOK {
		t.Fatalf("open status = %d", rr.Code)
	}
	if rr := doJSON(t, server, http.MethodDelete, "/api/documents/42/blocks/b1", ""); rr.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rr.Code)
	}

	insert := `{"sectionId":"s1","block":{"id":"b1","blockType":"paragraph","content":[]},"index":-1}`
	rr := doJSON(t, server, http.MethodPost, "/api/documents/42/blocks", insert)
	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409\n%s", rr.Code, rr.Body.String())
	}
	if response := decode(t, rr); response["code"] != "BLOCK_ID_RETIRED" {
		t.Errorf("code = %v", response["code"])
	}
}

func TestUndoEndpointRevertsEdit(t *testing.T) {
	server := newTestServer(t, newFakeStore(serverFixture(t)))

	doJSON(t, server, http.MethodPost, "/api/documents/42/open", "")
	doJSON(t, server, http.MethodPut, "/api/documents/42/title", `{"title":"Renamed"}`)

	rr := doJSON(t, server, http.MethodPost, "/api/documents/42/undo", "")
	response := decode(t, rr)
	doc := response["document"].(map[string]any)
	if doc["title"] != "2026 Climate Report" {
		t.Errorf("title = %v after undo", doc["title"])
	}
	state := response["state"].(map[string]any)
	if state["canRedo"] != true {
		t.Errorf("canRedo = %v", state["canRedo"])
	}
}

func TestMarksEndpointValidatesMark(t *testing.T) {
	server := newTestServer(t, newFakeStore(serverFixture(t)))
	doJSON(t, server, http.MethodPost, "/api/documents/42/open", "")

	rr := doJSON(t, server, http.MethodPost, "/api/documents/42/inlines/i1/marks", `{"mark":"sparkle"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rr.Code)
	}

	rr = doJSON(t, server, http.MethodPost, "/api/documents/42/inlines/i1/marks", `{"mark":"bold"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d\n%s", rr.Code, rr.Body.String())
	}
}

func TestSearchEndpointFindsOpenDocuments(t *testing.T) {
	server := newTestServer(t, newFakeStore(serverFixture(t)))
	doJSON(t, server, http.MethodPost, "/api/documents/42/open", "")

	rr := doJSON(t, server, http.MethodGet, "/api/search?q=emissions", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	response := decode(t, rr)
	if response["total"].(float64) < 1 {
		t.Errorf("no results: %v", response)
	}
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	server := newTestServer(t, newFakeStore(serverFixture(t)))
	doJSON(t, server, http.MethodPost, "/api/documents/42/open", "")

	rr := doJSON(t, server, http.MethodPost, "/api/documents/42/export", `{"format":"odt"}`)
	if rr.Code != http.StatusServiceUnavailable {
		// Export service is not wired in tests.
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestEventStreamOutlivesWriteTimeout(t *testing.T) {
	server := newTestServer(t, newFakeStore(serverFixture(t)))

	ts := httptest.NewUnstartedServer(server.Handler())
	ts.Config.WriteTimeout = 250 * time.Millisecond
	ts.Start()
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/documents/42/open", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("open status = %d", resp.StatusCode)
	}

	stream, err := http.Get(ts.URL + "/api/documents/42/events")
	if err != nil {
		t.Fatalf("events request failed: %v", err)
	}
	defer stream.Body.Close()
	if stream.StatusCode != http.StatusOK {
		t.Fatalf("events status = %d", stream.StatusCode)
	}

	// Stay idle past the server's write timeout, then edit. The stream
	// must still deliver the event.
	time.Sleep(2 * ts.Config.WriteTimeout)
	req, err := http.NewRequest(http.MethodPut, ts.URL+"/api/documents/42/title", strings.NewReader(`{"title":"Streamed"}`))
	if err != nil {
		t.Fatalf("build edit request: %v", err)
	}
	edit, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	edit.Body.Close()

	lines := make(chan string, 16)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(stream.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case line, open := <-lines:
			if !open {
				t.Fatal("event stream closed before delivering the edit")
			}
			if strings.HasPrefix(line, "event: document") {
				return
			}
		case <-deadline:
			t.Fatal("no event arrived after the write timeout elapsed")
		}
	}
}

func TestAssistUnavailableWithoutBackend(t *testing.T) {
	server := newTestServer(t, newFakeStore(serverFixture(t)))
	doJSON(t, server, http.MethodPost, "/api/documents/42/open", "")

	rr := doJSON(t, server, http.MethodPost, "/api/documents/42/assist/mapping", `{"blockId":"b1"}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
}
