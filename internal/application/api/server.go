// Package api exposes the action lifecycle over JSON HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ersonp/spellstock-core/internal/application/handlers"
	"github.com/ersonp/spellstock-core/internal/domain/entities"
	"github.com/ersonp/spellstock-core/internal/domain/services"
)

// SessionHeader carries the agent session id. Requests without it share
// one anonymous session.
const SessionHeader = "X-Session-ID"

// Agent sessions idle longer than SessionIdleTimeout are dropped, and at
// most MaxSessions are kept; the least recently used goes first.
const (
	SessionIdleTimeout = 30 * time.Minute
	MaxSessions        = 1024
)

// Handlers are the application handlers the server routes to. Agent and
// Ingest may be nil; their routes then answer 501.
type Handlers struct {
	Actions   *handlers.ActionsHandler
	Query     *handlers.QueryHandler
	Alerts    *handlers.AlertsHandler
	Autopilot *handlers.AutopilotHandler
	Agent     *handlers.AgentHandler
	Ingest    *handlers.IngestHandler
}

// Server routes HTTP requests to the handlers.
type Server struct {
	h      Handlers
	logger *slog.Logger

	now      func() time.Time
	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

type sessionEntry struct {
	session  *services.Session
	lastUsed time.Time
}

// NewServer creates a new Server.
func NewServer(h Handlers, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		h:        h,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*sessionEntry),
	}
}

// Router builds the chi router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/actions", func(r chi.Router) {
		r.Get("/", s.listActions)
		r.Post("/", s.addAction)
		r.Get("/grouped", s.groupedActions)
		r.Post("/bulk", s.bulk)
		r.Post("/reconcile", s.reconcileAll)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.showAction)
			r.Post("/approve", s.approve)
			r.Post("/reject", s.reject)
			r.Post("/execute", s.execute)
			r.Post("/rollback", s.rollback)
			r.Post("/reconcile", s.reconcile)
		})
	})

	r.Get("/audit", s.audit)
	r.Get("/audit/verify", s.verifyAudit)

	r.Get("/alerts", s.activeAlerts)
	r.Get("/alerts/similar", s.similarAlerts)
	r.Get("/alerts/{id}", s.getAlert)

	r.Post("/autopilot", s.runAutopilot)
	r.Post("/agent", s.agent)
	r.Post("/ingest", s.ingest)
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) session(r *http.Request) *services.Session {
	id := r.Header.Get(SessionHeader)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok {
		s.evictLocked(now)
		e = &sessionEntry{session: &services.Session{}}
		s.sessions[id] = e
	}
	e.lastUsed = now
	return e.session
}

// evictLocked drops idle sessions and, if the map is still full, the least
// recently used one.
func (s *Server) evictLocked(now time.Time) {
	var oldestID string
	var oldest time.Time
	for id, e := range s.sessions {
		if now.Sub(e.lastUsed) > SessionIdleTimeout {
			delete(s.sessions, id)
			continue
		}
		if oldestID == "" || e.lastUsed.Before(oldest) {
			oldestID, oldest = id, e.lastUsed
		}
	}
	if len(s.sessions) >= MaxSessions {
		delete(s.sessions, oldestID)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain error kinds to status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var execErr *entities.ExecutionError
	switch {
	case entities.IsValidation(err):
		status = http.StatusBadRequest
	case entities.IsNotFound(err):
		status = http.StatusNotFound
	case entities.IsStateConflict(err), errors.Is(err, entities.ErrSideEffectInFlight):
		status = http.StatusConflict
	case errors.Is(err, entities.ErrNoCompensator):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &execErr):
		status = http.StatusBadGateway
	case errors.Is(err, handlers.ErrNoAlertIndex):
		status = http.StatusNotImplemented
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func decode(r *http.Request, v any) error {
	if r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &entities.ValidationError{Field: "body", Message: "malformed JSON: " + err.Error()}
	}
	return nil
}

func intParam(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, &entities.ValidationError{Field: name, Value: v, Message: "must be a non-negative integer"}
	}
	return n, nil
}

func actorParam(r *http.Request) entities.Actor {
	if r.URL.Query().Get("actor") == string(entities.ActorAutopilot) {
		return entities.ActorAutopilot
	}
	return entities.ActorHuman
}
