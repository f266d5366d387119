// Package httpapi exposes wizard sessions over HTTP so the host console can
// drive the engine remotely. The surface is thin API glue; all policy lives
// in the engine.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	onboard "github.com/finlayer/onboard"
	"github.com/finlayer/onboard/internal/logging"
	"github.com/finlayer/onboard/pkg/adapters/memory"
	"github.com/finlayer/onboard/pkg/domain"
	"github.com/finlayer/onboard/pkg/flow"
	"github.com/finlayer/onboard/pkg/ports"
)

// StoreFactory builds the persistence tiers for a new session.
type StoreFactory func(variant string) (ports.LocalStore, ports.RemoteStore)

// Server holds live wizard sessions keyed by id.
type Server struct {
	flows   map[string]*flow.Flow
	logger  *slog.Logger
	metrics *metrics
	stores  StoreFactory

	mu       sync.Mutex
	sessions map[string]*onboard.Wizard
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStoreFactory overrides how per-session persistence tiers are built.
// The default is in-memory stores.
func WithStoreFactory(factory StoreFactory) Option {
	return func(s *Server) {
		s.stores = factory
	}
}

// NewServer creates a server for the given flow variants.
func NewServer(flows map[string]*flow.Flow, opts ...Option) *Server {
	s := &Server{
		flows:    flows,
		logger:   logging.NewNop(),
		metrics:  newMetrics(),
		sessions: make(map[string]*onboard.Wizard),
		stores: func(string) (ports.LocalStore, ports.RemoteStore) {
			return memory.NewLocalStore(), memory.NewRemoteStore()
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", s.metrics.handler())

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.createSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)
			r.Put("/answers", s.putAnswers)
			r.Post("/advance", s.advance)
			r.Post("/retreat", s.retreat)
			r.Post("/goto", s.goToStep)
			r.Post("/submit", s.submit)
		})
	})

	return r
}

type createSessionRequest struct {
	FlowVariant    string `json:"flowVariant"`
	Identity       string `json:"identity,omitempty"`
	Classification string `json:"classification,omitempty"`
}

type stepView struct {
	ID     string `json:"id"`
	Number int    `json:"number"`
	Title  string `json:"title"`
}

type sessionState struct {
	SessionID   string              `json:"sessionId"`
	FlowVariant string              `json:"flowVariant"`
	CurrentStep int                 `json:"currentStep"`
	Statuses    []domain.StepStatus `json:"statuses"`
	Answers     domain.AnswerSet    `json:"answers"`
	CanSubmit   bool                `json:"canSubmit"`
	Progress    float64             `json:"progress"`
	Restored    bool                `json:"restored,omitempty"`
	Steps       []stepView          `json:"steps,omitempty"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var body createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	f, ok := s.flows[body.FlowVariant]
	if !ok {
		http.Error(w, "Unknown flow variant", http.StatusNotFound)
		return
	}

	local, remote := s.stores(body.FlowVariant)
	wiz := onboard.New(f,
		onboard.WithLogger(s.logger),
		onboard.WithLocalStore(local),
		onboard.WithRemoteStore(remote),
		onboard.WithIdentity(body.Identity),
		onboard.WithClassification(body.Classification),
	)

	restored, err := wiz.Restore(r.Context())
	if err != nil {
		s.logger.Warn("session restore failed", "err", err)
	}
	if restored {
		s.metrics.restores.Inc()
	}

	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = wiz
	s.mu.Unlock()
	s.metrics.sessions.Inc()

	state := s.state(id, wiz)
	state.Restored = restored
	for _, step := range f.Steps() {
		state.Steps = append(state.Steps, stepView{ID: step.ID, Number: step.Number, Title: step.Title})
	}
	writeJSON(w, http.StatusCreated, state)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*onboard.Wizard, string, bool) {
	id := chi.URLParam(r, "sessionID")
	s.mu.Lock()
	wiz, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return nil, "", false
	}
	return wiz, id, true
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	wiz, id, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.state(id, wiz))
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	s.mu.Lock()
	wiz, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	wiz.Close()
	s.metrics.sessions.Dec()
	w.WriteHeader(http.StatusNoContent)
}

type answersRequest struct {
	Answers map[string]any `json:"answers"`
}

func (s *Server) putAnswers(w http.ResponseWriter, r *http.Request) {
	wiz, id, ok := s.session(w, r)
	if !ok {
		return
	}
	var body answersRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	wiz.SetAnswers(body.Answers)
	writeJSON(w, http.StatusOK, s.state(id, wiz))
}

func (s *Server) advance(w http.ResponseWriter, r *http.Request) {
	wiz, _, ok := s.session(w, r)
	if !ok {
		return
	}
	res := wiz.Advance(r.Context())
	if res.Moved {
		s.metrics.advances.Inc()
	} else {
		s.metrics.blocked.Inc()
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) retreat(w http.ResponseWriter, r *http.Request) {
	wiz, _, ok := s.session(w, r)
	if !ok {
		return
	}
	step := wiz.Retreat(r.Context())
	writeJSON(w, http.StatusOK, map[string]int{"step": step})
}

type gotoRequest struct {
	Step int `json:"step"`
}

func (s *Server) goToStep(w http.ResponseWriter, r *http.Request) {
	wiz, _, ok := s.session(w, r)
	if !ok {
		return
	}
	var body gotoRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	step := wiz.GoToStep(r.Context(), body.Step)
	writeJSON(w, http.StatusOK, map[string]int{"step": step})
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	wiz, id, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := wiz.Submit(r.Context()); err != nil {
		if errors.Is(err, domain.ErrSubmissionBlocked) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "submission blocked"})
			return
		}
		s.logger.Error("submit failed", "session", id, "err", err)
		http.Error(w, "Submit failed", http.StatusInternalServerError)
		return
	}
	s.metrics.submissions.Inc()

	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	wiz.Close()
	s.metrics.sessions.Dec()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) state(id string, wiz *onboard.Wizard) *sessionState {
	return &sessionState{
		SessionID:   id,
		FlowVariant: wiz.Flow().Variant(),
		CurrentStep: wiz.CurrentStep(),
		Statuses:    wiz.Statuses(),
		Answers:     wiz.Answers(),
		CanSubmit:   wiz.CanSubmit(),
		Progress:    wiz.Progress(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && !strings.Contains(err.Error(), "broken pipe") {
		slog.Warn("failed to encode response", "err", err)
	}
}
