package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/carbonledger/analyst/internal/compose"
	"github.com/carbonledger/analyst/internal/conversation"
	"github.com/carbonledger/analyst/internal/emissions"
	"github.com/carbonledger/analyst/internal/questions"
)

// Analyst is the conversation surface the HTTP layer drives.
type Analyst interface {
	HandleTurn(ctx context.Context, sessionID, text, organizationID string) (compose.QueryResult, error)
	Session(ctx context.Context, sessionID string) (*emissions.ChatSession, error)
	CreateSession(ctx context.Context, organizationID, projectID string) (emissions.ChatSession, error)
}

// Pinger reports backing store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// EventBus reports the event connection state. A nil EventBus means events
// are disabled.
type EventBus interface {
	Connected() bool
}

type Server struct {
	router      *chi.Mux
	port        int
	analyst     Analyst
	db          Pinger
	events      EventBus
	turnTimeout time.Duration
	logger      *slog.Logger
	srv         *http.Server
}

func NewServer(port int, apiToken string, analyst Analyst, db Pinger, events EventBus, turnTimeout time.Duration, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:      router,
		port:        port,
		analyst:     analyst,
		db:          db,
		events:      events,
		turnTimeout: turnTimeout,
		logger:      logger,
	}

	router.Get("/health", s.health)

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/analyst/status", s.status)
		r.Group(func(r chi.Router) {
			r.Use(BearerAuthMiddleware(apiToken))
			r.Get("/questions", s.listQuestions)
			r.Get("/questions/categories", s.listCategories)
			r.Post("/sessions", s.createSession)
			r.Get("/sessions/{sessionID}", s.getSession)
			r.Post("/sessions/{sessionID}/turns", s.handleTurn)
		})
	})

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.srv = &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	s.logger.Info("API server starting", "addr", addr)
	return s.srv.ListenAndServe()
}

// Shutdown stops accepting requests and waits for in-flight turns.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	database := "unknown"
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		database = "ok"
		if err := s.db.Ping(ctx); err != nil {
			database = "unavailable"
		}
	}
	events := "disabled"
	if s.events != nil {
		events = "connected"
		if !s.events.Connected() {
			events = "disconnected"
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"agent":    "emissions-analyst",
		"status":   "active",
		"database": database,
		"events":   events,
	})
}

type turnRequest struct {
	Text           string `json:"text"`
	OrganizationID string `json:"organization_id"`
}

// handleTurn handles POST /api/v1/sessions/{sessionID}/turns. A turn whose
// records could not be fetched is still a 200: it was recorded, and the
// result carries the error kind.
func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if req.Text == "" || req.OrganizationID == "" {
		writeError(w, http.StatusBadRequest, "text and organization_id are required")
		return
	}

	ctx := r.Context()
	if s.turnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.turnTimeout)
		defer cancel()
	}

	res, err := s.analyst.HandleTurn(ctx, sessionID, req.Text, req.OrganizationID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusGatewayTimeout, res)
	case errors.Is(err, context.Canceled):
		s.logger.Info("turn canceled by client", "session_id", sessionID)
		writeJSON(w, http.StatusRequestTimeout, res)
	case errors.Is(err, conversation.ErrSessionUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, res)
	default:
		s.logger.Error("turn failed", "session_id", sessionID, "error", err)
		writeJSON(w, http.StatusInternalServerError, res)
	}
}

type createSessionRequest struct {
	OrganizationID string `json:"organization_id"`
	ProjectID      string `json:"project_id,omitempty"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if req.OrganizationID == "" {
		writeError(w, http.StatusBadRequest, "organization_id is required")
		return
	}

	sess, err := s.analyst.CreateSession(r.Context(), req.OrganizationID, req.ProjectID)
	if err != nil {
		s.logger.Error("create session failed", "organization_id", req.OrganizationID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "session store unavailable")
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	sess, err := s.analyst.Session(r.Context(), sessionID)
	switch {
	case errors.Is(err, conversation.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case err != nil:
		s.logger.Error("load session failed", "session_id", sessionID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "session store unavailable")
	default:
		writeJSON(w, http.StatusOK, sess)
	}
}

func (s *Server) listQuestions(w http.ResponseWriter, r *http.Request) {
	qs, err := questions.List(r.URL.Query().Get("category"))
	if err != nil {
		s.logger.Error("list questions failed", "error", err)
		writeError(w, http.StatusInternalServerError, "question catalog unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"questions": qs,
		"count":     len(qs),
	})
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := questions.Categories()
	if err != nil {
		s.logger.Error("list question categories failed", "error", err)
		writeError(w, http.StatusInternalServerError, "question catalog unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": cats})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
