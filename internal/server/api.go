package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hireflow/hireflow/internal/extract"
	"github.com/hireflow/hireflow/internal/match"
	"github.com/hireflow/hireflow/internal/observability"
	"github.com/hireflow/hireflow/internal/store"
	"github.com/hireflow/hireflow/internal/timeline"
	"github.com/hireflow/hireflow/internal/vector"
)

// Matcher scores and indexes resume documents.
type Matcher interface {
	IndexDocument(ctx context.Context, filename, rawText string) (*match.IndexReport, error)
	Score(ctx context.Context, profileText, filename string, topK int) (*float64, error)
	Search(ctx context.Context, query string, limit int) ([]vector.Match, error)
}

// Repository is the persistence surface the API needs.
type Repository interface {
	CreateUser(ctx context.Context, u store.User) (int64, error)
	GetUser(ctx context.Context, id int64) (*store.User, error)
	SetResumeFilename(ctx context.Context, userID int64, filename string) error
	CreateJob(ctx context.Context, j store.Job) (int64, error)
	GetJob(ctx context.Context, id int64) (*store.Job, error)
	CreateApplication(ctx context.Context, userID, jobID int64, status timeline.Status, tl timeline.Timeline, now time.Time) (int64, bool, error)
	GetApplication(ctx context.Context, id int64) (*store.Application, error)
	GetTimeline(ctx context.Context, applicationID int64) (timeline.Timeline, error)
	SaveTimeline(ctx context.Context, applicationID int64, tl timeline.Timeline, appStatus *timeline.Status) error
	DeleteApplication(ctx context.Context, id int64) error
	StageStatusCounts(ctx context.Context) ([]store.StageStatusCount, error)
	ResultStageBreakdown(ctx context.Context) (*store.ResultBreakdown, error)
}

// APIConfig holds API server configuration.
type APIConfig struct {
	ListenAddr string // e.g. ":8080"
}

// DefaultAPIConfig returns sensible defaults.
func DefaultAPIConfig() *APIConfig {
	return &APIConfig{ListenAddr: ":8080"}
}

// Server is the hiring pipeline HTTP server.
type Server struct {
	config    *APIConfig
	matcher   Matcher
	repo      Repository
	gate      *timeline.Gate
	extractor extract.Extractor
	health    *HealthServer
	logger    *slog.Logger
	now       func() time.Time
	server    *http.Server
}

// NewServer creates the API server.
func NewServer(config *APIConfig, matcher Matcher, repo Repository, gate *timeline.Gate, extractor extract.Extractor, health *HealthServer, logger *slog.Logger) *Server {
	if config == nil {
		config = DefaultAPIConfig()
	}
	if extractor == nil {
		extractor = &extract.PlainText{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:    config,
		matcher:   matcher,
		repo:      repo,
		gate:      gate,
		extractor: extractor,
		health:    health,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}

	mux := http.NewServeMux()

	// API routes
	mux.HandleFunc("/api/users", s.handleUsers)
	mux.HandleFunc("/api/jobs", s.handleJobs)
	mux.HandleFunc("/api/cv/upload", s.handleCVUpload)
	mux.HandleFunc("/api/cv/search", s.handleCVSearch)
	mux.HandleFunc("/api/applications", s.handleApplications)
	mux.HandleFunc("/api/applications/", s.handleApplicationDetail)
	mux.HandleFunc("/api/metrics/stages", s.handleStageMetrics)

	if health != nil {
		health.Register(mux)
	}

	// Wrap with CORS and logging middleware
	handler := corsMiddleware(loggingMiddleware(logger, mux))

	s.server = &http.Server{
		Addr:         config.ListenAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins serving the API.
func (s *Server) Start() error {
	s.logger.Info("starting API server", "addr", s.config.ListenAddr)
	if s.health != nil {
		s.health.SetReady(true)
	}
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server error: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping API server")
	if s.health != nil {
		s.health.SetReady(false)
	}
	return s.server.Shutdown(ctx)
}

type createUserRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// handleUsers handles POST /api/users
func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		s.respondError(w, http.StatusBadRequest, "email is required")
		return
	}

	id, err := s.repo.CreateUser(r.Context(), store.User{Email: req.Email, Name: req.Name})
	if err != nil {
		s.logger.Error("create user failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "could not create user")
		return
	}

	s.respondJSON(w, http.StatusCreated, map[string]any{"id": id})
}

type createJobRequest struct {
	Title        string `json:"title"`
	IdealProfile string `json:"ideal_profile"`
}

// handleJobs handles POST /api/jobs
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		s.respondError(w, http.StatusBadRequest, "title is required")
		return
	}

	id, err := s.repo.CreateJob(r.Context(), store.Job{Title: req.Title, IdealProfile: req.IdealProfile})
	if err != nil {
		s.logger.Error("create job failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "could not create job")
		return
	}

	s.respondJSON(w, http.StatusCreated, map[string]any{"id": id})
}

// handleCVUpload handles POST /api/cv/upload. The upload is multipart form
// data with a "file" part and a "user_id" field. Text extraction failures
// degrade to an empty document so the upload itself never fails on a
// malformed file.
func (s *Server) handleCVUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, err := strconv.ParseInt(r.FormValue("user_id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if _, err := s.repo.GetUser(r.Context(), userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "user not found")
			return
		}
		s.logger.Error("load user failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "could not load user")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	text, err := s.extractor.Extract(r.Context(), file)
	if err != nil {
		s.logger.Warn("text extraction failed, indexing empty document", "filename", header.Filename, "error", err)
		text = ""
	}

	report, err := s.matcher.IndexDocument(r.Context(), header.Filename, text)
	if err != nil {
		s.logger.Error("indexing failed", "filename", header.Filename, "error", err)
		s.respondError(w, http.StatusBadGateway, "could not index document")
		return
	}

	if err := s.repo.SetResumeFilename(r.Context(), userID, header.Filename); err != nil {
		s.logger.Error("save resume filename failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "could not save resume")
		return
	}

	s.respondJSON(w, http.StatusCreated, map[string]any{
		"document_id": report.DocumentID,
		"filename":    header.Filename,
		"fragments":   report.Fragments,
		"indexed":     report.Indexed,
		"failed":      report.Failed,
	})
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type searchMatch struct {
	Score         float32 `json:"score"`
	Text          string  `json:"text"`
	Filename      string  `json:"filename"`
	FragmentIndex int     `json:"fragment_index"`
}

// handleCVSearch handles POST /api/cv/search
func (s *Server) handleCVSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}

	matches, err := s.matcher.Search(r.Context(), req.Query, req.Limit)
	if err != nil {
		s.logger.Error("search failed", "error", err)
		s.respondError(w, http.StatusBadGateway, "search failed")
		return
	}

	out := make([]searchMatch, 0, len(matches))
	for _, m := range matches {
		out = append(out, searchMatch{
			Score:         m.Score,
			Text:          m.Text,
			Filename:      m.Filename,
			FragmentIndex: m.FragmentIndex,
		})
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"results": out})
}

type createApplicationRequest struct {
	UserID int64 `json:"user_id"`
	JobID  int64 `json:"job_id"`
}

type applicationResponse struct {
	ID           int64                  `json:"id"`
	UserID       int64                  `json:"user_id"`
	JobID        int64                  `json:"job_id"`
	Status       string                 `json:"status"`
	Created      bool                   `json:"created"`
	ScorePercent *float64               `json:"score_percent"`
	Passed       *bool                  `json:"passed,omitempty"`
	Timeline     []timeline.StageRecord `json:"timeline"`
}

// handleApplications handles POST /api/applications. A second application
// for the same user and job returns the existing one instead of failing.
func (s *Server) handleApplications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createApplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	user, err := s.repo.GetUser(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "user not found")
			return
		}
		s.logger.Error("load user failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "could not load user")
		return
	}
	job, err := s.repo.GetJob(ctx, req.JobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "job not found")
			return
		}
		s.logger.Error("load job failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "could not load job")
		return
	}

	// A user without an indexed resume is still allowed to apply. The
	// score stays null and the gate leaves the timeline pending.
	var score *float64
	if user.ResumeFilename != nil {
		score, err = s.matcher.Score(ctx, job.IdealProfile, *user.ResumeFilename, match.DefaultTopK)
		if err != nil {
			s.logger.Error("scoring failed", "user_id", req.UserID, "job_id", req.JobID, "error", err)
			s.respondError(w, http.StatusBadGateway, "scoring failed")
			return
		}
	}

	ctx, span := observability.StartGateSpan(ctx, req.JobID)
	defer span.End()

	now := s.now()
	outcome := s.gate.Evaluate(score)
	tl, appStatus := s.gate.InitialTimeline(outcome, now)
	span.SetAttributes(attribute.Bool("gate.passed", outcome.Passed))

	appID, created, err := s.repo.CreateApplication(ctx, req.UserID, req.JobID, appStatus, tl, now)
	if err != nil {
		observability.RecordError(span, err)
		s.logger.Error("create application failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "could not create application")
		return
	}

	app, err := s.repo.GetApplication(ctx, appID)
	if err != nil {
		s.logger.Error("load application failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "could not load application")
		return
	}
	storedTL, err := s.repo.GetTimeline(ctx, appID)
	if err != nil {
		s.logger.Error("load timeline failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "could not load timeline")
		return
	}

	resp := applicationResponse{
		ID:       appID,
		UserID:   app.UserID,
		JobID:    app.JobID,
		Status:   app.Status,
		Created:  created,
		Timeline: storedTL,
	}
	if created {
		resp.ScorePercent = outcome.ScorePercent
		if outcome.ScorePercent != nil {
			passed := outcome.Passed
			resp.Passed = &passed
		}
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	s.respondJSON(w, status, resp)
}

// handleApplicationDetail handles GET/DELETE /api/applications/{id} and
// PATCH /api/applications/{id}/stage
func (s *Server) handleApplicationDetail(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/applications/")
	parts := strings.SplitN(path, "/", 2)

	if len(parts) == 0 || parts[0] == "" {
		s.respondError(w, http.StatusBadRequest, "application id required")
		return
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid application id")
		return
	}

	if len(parts) == 2 && parts[1] == "stage" {
		s.handleStageUpdate(w, r, id)
		return
	}
	if len(parts) == 2 {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetApplication(w, r, id)
	case http.MethodDelete:
		s.handleDeleteApplication(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleGetApplication(w http.ResponseWriter, r *http.Request, id int64) {
	app, err := s.repo.GetApplication(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "application not found")
			return
		}
		s.logger.Error("load application failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "could not load application")
		return
	}
	tl, err := s.repo.GetTimeline(r.Context(), id)
	if err != nil {
		s.logger.Error("load timeline failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "could not load timeline")
		return
	}

	s.respondJSON(w, http.StatusOK, applicationResponse{
		ID:       app.ID,
		UserID:   app.UserID,
		JobID:    app.JobID,
		Status:   app.Status,
		Timeline: tl,
	})
}

func (s *Server) handleDeleteApplication(w http.ResponseWriter, r *http.Request, id int64) {
	if err := s.repo.DeleteApplication(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "application not found")
			return
		}
		s.logger.Error("delete application failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "could not delete application")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type stageUpdateRequest struct {
	Name     string     `json:"name"`
	Status   string     `json:"status"`
	Date     *time.Time `json:"date"`
	Feedback *string    `json:"feedback"`
}

// handleStageUpdate handles PATCH /api/applications/{id}/stage
func (s *Server) handleStageUpdate(w http.ResponseWriter, r *http.Request, id int64) {
	if r.Method != http.MethodPatch {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req stageUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	tl, err := s.repo.GetTimeline(ctx, id)
	if err != nil {
		s.logger.Error("load timeline failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "could not load timeline")
		return
	}
	if len(tl) == 0 {
		s.respondError(w, http.StatusNotFound, "application not found")
		return
	}

	updated, appStatus, err := s.gate.ApplyUpdate(tl, timeline.StageUpdate{
		Name:     timeline.Stage(req.Name),
		Status:   timeline.Status(req.Status),
		Date:     req.Date,
		Feedback: req.Feedback,
	}, s.now())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.repo.SaveTimeline(ctx, id, updated, appStatus); err != nil {
		s.logger.Error("save timeline failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "could not save timeline")
		return
	}

	resp := map[string]any{"timeline": updated}
	if appStatus != nil {
		resp["application_status"] = *appStatus
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handleStageMetrics handles GET /api/metrics/stages
func (s *Server) handleStageMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	counts, err := s.repo.StageStatusCounts(r.Context())
	if err != nil {
		s.logger.Error("stage counts failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "could not load metrics")
		return
	}
	breakdown, err := s.repo.ResultStageBreakdown(r.Context())
	if err != nil {
		s.logger.Error("result breakdown failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "could not load metrics")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"stages": counts,
		"result": breakdown,
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// corsMiddleware adds CORS headers for browser clients.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests.
func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}
