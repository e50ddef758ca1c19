package app

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"greenprint/api/internal/assist"
	"greenprint/api/internal/document"
	"greenprint/api/internal/editor"
	"greenprint/api/internal/export"
	"greenprint/api/internal/metrics"
	"greenprint/api/internal/persist"
	"greenprint/api/internal/search"
	"greenprint/api/internal/versions"
	"greenprint/api/internal/wire"
)

// ErrNoSession is returned when an operation targets a document that has no
// open editing session.
var ErrNoSession = errors.New("no open session for document")

const defaultUndoDepth = 100

// Deps collects the collaborators the service needs. Assist, Versions,
// Search, Export and Metrics may be nil; the matching endpoints then report
// unavailable instead of panicking.
type Deps struct {
	Store     persist.Store
	Assist    *assist.Service
	Versions  *versions.Service
	Search    *search.Service
	Export    *export.Service
	Metrics   *metrics.Metrics
	Log       zerolog.Logger
	UndoDepth int
}

// Service owns the editing sessions and coordinates loading, saving,
// versioning, search indexing, AI assist and export around them.
type Service struct {
	store    persist.Store
	assist   *assist.Service
	versions *versions.Service
	search   *search.Service
	export   *export.Service
	metrics  *metrics.Metrics
	log      zerolog.Logger

	undoDepth int

	mu       sync.Mutex
	sessions map[string]*editor.Session
}

func NewService(deps Deps) *Service {
	undoDepth := deps.UndoDepth
	if undoDepth <= 0 {
		undoDepth = defaultUndoDepth
	}
	return &Service{
		store:     deps.Store,
		assist:    deps.Assist,
		versions:  deps.Versions,
		search:    deps.Search,
		export:    deps.Export,
		metrics:   deps.Metrics,
		log:       deps.Log.With().Str("component", "app").Logger(),
		undoDepth: undoDepth,
		sessions:  make(map[string]*editor.Session),
	}
}

// OpenSession loads the document from the persistence backend and opens an
// editing session for it. Opening a document that already has a session
// returns the existing one.
func (s *Service) OpenSession(ctx context.Context, documentID string) (*editor.Session, error) {
	s.mu.Lock()
	if session, ok := s.sessions[documentID]; ok {
		s.mu.Unlock()
		return session, nil
	}
	s.mu.Unlock()

	serverDoc, err := s.store.Load(ctx, documentID)
	if err != nil {
		return nil, err
	}
	doc := wire.ToDocument(serverDoc)

	s.mu.Lock()
	if existing, ok := s.sessions[documentID]; ok {
		// Lost the race against a concurrent open.
		s.mu.Unlock()
		return existing, nil
	}
	session := editor.NewSession(doc, s.undoDepth)
	s.sessions[documentID] = session
	s.mu.Unlock()

	if s.versions != nil {
		if err := s.versions.EnsureRepo(doc, doc.Metadata.AuthorID); err != nil {
			s.log.Warn().Str("document_id", documentID).Err(err).Msg("version archive init failed")
		}
	}
	if s.search != nil {
		s.search.IndexDocument(doc)
	}
	if s.metrics != nil {
		s.metrics.SessionsOpen.Inc()
	}
	s.log.Info().Str("document_id", documentID).Msg("session opened")
	return session, nil
}

// Session returns the open session for a document.
func (s *Service) Session(documentID string) (*editor.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[documentID]
	if !ok {
		return nil, ErrNoSession
	}
	return session, nil
}

// CloseSession discards the editing session. Unsaved changes are lost; the
// caller is expected to have saved first.
func (s *Service) CloseSession(documentID string) bool {
	s.mu.Lock()
	_, ok := s.sessions[documentID]
	delete(s.sessions, documentID)
	s.mu.Unlock()

	if ok {
		if s.metrics != nil {
			s.metrics.SessionsOpen.Dec()
		}
		s.log.Info().Str("document_id", documentID).Msg("session closed")
	}
	return ok
}

// SessionCount reports the number of open sessions.
func (s *Service) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Save pushes the session's document to the persistence backend, records a
// version and refreshes the search index. message labels the version commit.
func (s *Service) Save(ctx context.Context, documentID, message string) (versions.VersionInfo, error) {
	session, err := s.Session(documentID)
	if err != nil {
		return versions.VersionInfo{}, err
	}

	pending, err := session.BeginSave()
	if err != nil {
		return versions.VersionInfo{}, err
	}

	started := time.Now()
	_, saveErr := s.store.Save(ctx, wire.ToServer(pending.Document))
	offline := persist.IsOffline(saveErr)
	session.FinishSave(pending, saveErr, offline)

	if s.metrics != nil {
		saveStatus := "ok"
		if saveErr != nil {
			saveStatus = "error"
		}
		s.metrics.RecordSave(saveStatus, time.Since(started))
	}
	if saveErr != nil {
		s.log.Warn().Str("document_id", documentID).Bool("offline", offline).Err(saveErr).Msg("save failed")
		return versions.VersionInfo{}, saveErr
	}

	var info versions.VersionInfo
	if s.versions != nil {
		if message == "" {
			message = "save"
		}
		info, err = s.versions.CommitVersion(pending.Document, pending.Document.Metadata.AuthorID, message)
		if err != nil {
			s.log.Warn().Str("document_id", documentID).Err(err).Msg("version commit failed")
		}
	}
	if s.search != nil {
		s.search.IndexDocument(pending.Document)
	}
	s.log.Info().Str("document_id", documentID).Str("version", info.Hash).Msg("document saved")
	return info, nil
}

// Reload discards local state and replaces the session's document with the
// server's current copy. In-flight assist requests become stale.
func (s *Service) Reload(ctx context.Context, documentID string) error {
	session, err := s.Session(documentID)
	if err != nil {
		return err
	}
	serverDoc, err := s.store.Load(ctx, documentID)
	if err != nil {
		return err
	}
	session.Replace(wire.ToDocument(serverDoc))
	return nil
}

// RestoreVersion applies an archived version as a regular, undoable edit on
// top of the current state.
func (s *Service) RestoreVersion(documentID, revision string) error {
	if s.versions == nil {
		return errors.New("version archive not configured")
	}
	session, err := s.Session(documentID)
	if err != nil {
		return err
	}
	restored, err := s.versions.GetVersion(documentID, revision)
	if err != nil {
		return err
	}
	return session.Apply(func(document.Document) (document.Document, error) {
		return restored, nil
	})
}

// Export renders the session's current document.
func (s *Service) Export(ctx context.Context, documentID string, req export.Request) (*export.Result, error) {
	if s.export == nil {
		return nil, NewDomainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export not configured", nil)
	}
	session, err := s.Session(documentID)
	if err != nil {
		return nil, err
	}
	return s.export.Export(ctx, session.Document(), req)
}

// Search runs a full-text query over indexed reports and sections.
func (s *Service) Search(q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(q)
}

// Assist exposes the AI assist service, nil when not configured.
func (s *Service) Assist() *assist.Service {
	return s.assist
}

// Versions exposes the version archive, nil when not configured.
func (s *Service) Versions() *versions.Service {
	return s.versions
}

// StateView is the editor state snapshot returned to clients.
type StateView struct {
	DocumentID string           `json:"documentId"`
	Status     string           `json:"status"`
	Dirty      bool             `json:"dirty"`
	Offline    bool             `json:"offline"`
	CanUndo    bool             `json:"canUndo"`
	CanRedo    bool             `json:"canRedo"`
	LastSaved  *time.Time       `json:"lastSaved,omitempty"`
	Selection  editor.Selection `json:"selection"`
}

// State builds the current state view for a session.
func (s *Service) State(documentID string) (StateView, error) {
	session, err := s.Session(documentID)
	if err != nil {
		return StateView{}, err
	}
	return stateOf(session), nil
}

func stateOf(session *editor.Session) StateView {
	status, offline, dirty := session.Status()
	view := StateView{
		DocumentID: session.DocumentID(),
		Status:     string(status),
		Dirty:      dirty,
		Offline:    offline,
		CanUndo:    session.CanUndo(),
		CanRedo:    session.CanRedo(),
		Selection:  session.Selection(),
	}
	if last := session.LastSaved(); !last.IsZero() {
		view.LastSaved = &last
	}
	return view
}
