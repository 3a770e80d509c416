// Package server exposes the importer over HTTP: activity listing,
// import endpoints, the OAuth connect flow and operational endpoints.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stravapress/server/pkg/fault"
	"github.com/stravapress/server/pkg/importer"
	"github.com/stravapress/server/pkg/infrastructure/sentry"
	"github.com/stravapress/server/pkg/strava"
)

// Connection is the OAuth surface the server exposes to the user.
type Connection interface {
	AuthCodeURL(ctx context.Context, redirectURI string) (string, error)
	Exchange(ctx context.Context, code string) (*strava.Credential, error)
	Disconnect(ctx context.Context) error
	Connected(ctx context.Context) bool
	Athlete(ctx context.Context) json.RawMessage
}

// Server holds the HTTP handlers and their collaborators.
type Server struct {
	orchestrator *importer.Orchestrator
	queue        *importer.Queue
	connection   Connection
	redirectURL  string
	validate     *validator.Validate
	logger       *slog.Logger
}

func New(orchestrator *importer.Orchestrator, queue *importer.Queue, connection Connection, redirectURL string) *Server {
	return &Server{
		orchestrator: orchestrator,
		queue:        queue,
		connection:   connection,
		redirectURL:  redirectURL,
		validate:     validator.New(),
		logger:       slog.Default().With("component", "http-server"),
	}
}

// Router builds the full route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method("GET", "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/activities", s.handleListActivities)
		r.Post("/import", s.handleImport)
		r.Post("/reimport", s.handleReimport)
		r.Post("/import/batch", s.handleBatchImport)
		r.Post("/disconnect", s.handleDisconnect)
	})

	r.Get("/oauth/connect", s.handleOAuthConnect)
	r.Get("/oauth/callback", s.handleOAuthCallback)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"connected": s.connection.Connected(r.Context()),
	}
	if athlete := s.connection.Athlete(r.Context()); athlete != nil {
		resp["athlete"] = athlete
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListActivities(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", 30)
	if perPage > 100 {
		perPage = 100
	}

	activities, err := s.orchestrator.ListActivities(r.Context(), page, perPage)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"page":       page,
		"per_page":   perPage,
		"activities": activities,
	})
}

type importRequest struct {
	ActivityID string `json:"activity_id" validate:"required,numeric"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := s.orchestrator.Import(r.Context(), req.ActivityID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

type reimportRequest struct {
	DocumentID int64  `json:"document_id" validate:"required,gt=0"`
	ActivityID string `json:"activity_id" validate:"required,numeric"`
}

func (s *Server) handleReimport(w http.ResponseWriter, r *http.Request) {
	var req reimportRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := s.orchestrator.Reimport(r.Context(), req.DocumentID, req.ActivityID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type batchImportRequest struct {
	ActivityIDs []string `json:"activity_ids" validate:"required,min=1,max=100,dive,required,numeric"`
}

func (s *Server) handleBatchImport(w http.ResponseWriter, r *http.Request) {
	var req batchImportRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	items, err := s.queue.Run(r.Context(), req.ActivityIDs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.connection.Disconnect(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
}

func (s *Server) handleOAuthConnect(w http.ResponseWriter, r *http.Request) {
	authURL, err := s.connection.AuthCodeURL(r.Context(), s.redirectURL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	if denied := r.URL.Query().Get("error"); denied != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "authorization denied: " + denied})
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing authorization code"})
		return
	}

	credential, err := s.connection.Exchange(r.Context(), code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info("Strava connected")
	resp := map[string]interface{}{"status": "connected"}
	if len(credential.Athlete) > 0 {
		resp["athlete"] = credential.Athlete
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	if err := s.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return false
	}
	return true
}

// writeError flattens a fault into a JSON error body. This is the only
// layer that turns typed faults into plain messages and status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "path", r.URL.Path, "error", err)
		sentry.CaptureException(err, map[string]interface{}{"path": r.URL.Path}, s.logger)
	} else {
		s.logger.Warn("Request rejected", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch fault.KindOf(err) {
	case fault.KindAlreadyImported:
		return http.StatusConflict
	case fault.KindMismatch:
		return http.StatusConflict
	case fault.KindNoCredentials:
		return http.StatusUnauthorized
	case fault.KindOAuth:
		return http.StatusBadGateway
	case fault.KindAPI, fault.KindTransport, fault.KindDownloadFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}
