// Package http exposes the action plan pipeline as a JSON API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/waypoint/pkg/catalog"
	"github.com/aretw0/waypoint/pkg/citation"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/geo"
	"github.com/aretw0/waypoint/pkg/markdown"
	"github.com/aretw0/waypoint/pkg/ports"
	"github.com/aretw0/waypoint/pkg/sanitize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// DefaultMaxBodyBytes caps request bodies.
const DefaultMaxBodyBytes = 1 << 20

// Generator produces action plans. *backend.Client implements it.
type Generator interface {
	GenerateRequest(ctx context.Context, req domain.ActionPlanRequest) (domain.ActionPlan, bool)
}

// Locator resolves coordinates. *geo.Client implements it.
type Locator interface {
	Lookup(ctx context.Context, lat, lon float64) (geo.Location, error)
}

// Server holds the collaborators behind the HTTP API.
type Server struct {
	generator Generator
	store     ports.PlanStore
	renderer  *markdown.Renderer
	locator   Locator
	metrics   http.Handler
	health    func(ctx context.Context) error
	logger    *slog.Logger
	maxBody   int64
}

// Option defines a functional option for configuring the Server.
type Option func(*Server)

// WithStore persists generated plans. Without a store, plans are returned but
// cannot be fetched again.
func WithStore(store ports.PlanStore) Option {
	return func(s *Server) {
		s.store = store
	}
}

// WithRenderer replaces the default markdown renderer.
func WithRenderer(r *markdown.Renderer) Option {
	return func(s *Server) {
		s.renderer = r
	}
}

// WithLocator enables GET /geolocation.
func WithLocator(l Locator) Option {
	return func(s *Server) {
		s.locator = l
	}
}

// WithMetricsHandler serves h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithHealthCheck makes GET /health report dependency failures.
func WithHealthCheck(check func(ctx context.Context) error) Option {
	return func(s *Server) {
		s.health = check
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMaxBodyBytes overrides DefaultMaxBodyBytes.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		s.maxBody = n
	}
}

// NewHandler creates the HTTP handler for the API.
func NewHandler(gen Generator, opts ...Option) http.Handler {
	s := &Server{
		generator: gen,
		maxBody:   DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.renderer == nil {
		s.renderer = markdown.New()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.limitBody)

	if router, err := loadRouter(); err != nil {
		s.logger.Error("OpenAPI validation disabled", "error", err)
	} else {
		r.Use(s.validateRequests(router))
	}

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(rawSpec)
	})
	r.Get("/health", s.Health)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Post("/action-plans", s.CreateActionPlan)
	r.Get("/action-plans", s.ListActionPlans)
	r.Get("/action-plans/{id}", s.GetActionPlan)
	r.Get("/action-plans/{id}/html", s.GetActionPlanHTML)
	r.Post("/render", s.Render)
	r.Get("/geolocation", s.Geolocation)

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil && s.maxBody > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
		}
		next.ServeHTTP(w, r)
	})
}

type planResponse struct {
	ID        string            `json:"id"`
	Plan      domain.ActionPlan `json:"plan"`
	CreatedAt *time.Time        `json:"created_at,omitempty"`
}

func storedResponse(p domain.StoredPlan) planResponse {
	created := p.CreatedAt
	return planResponse{ID: p.ID, Plan: p.Plan, CreatedAt: &created}
}

type planDocument struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Summary   string            `json:"summary"`
	HTML      string            `json:"html"`
	Citations []domain.Citation `json:"citations"`
}

type renderRequest struct {
	Content string `json:"content"`
}

type renderResponse struct {
	HTML      string            `json:"html"`
	Content   string            `json:"content"`
	Citations []domain.Citation `json:"citations"`
}

// CreateActionPlan handles POST /action-plans.
func (s *Server) CreateActionPlan(w http.ResponseWriter, r *http.Request) {
	var body domain.ActionPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.logger.Warn("CreateActionPlan: invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	for _, res := range body.Resources {
		if err := catalog.Validate(res); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	plan, ok := s.generator.GenerateRequest(r.Context(), body)
	if !ok {
		writeError(w, http.StatusBadGateway, "action plan unavailable")
		return
	}

	if s.store == nil {
		writeJSON(w, http.StatusOK, planResponse{Plan: plan})
		return
	}

	stored, err := s.store.Save(r.Context(), plan)
	if err != nil {
		s.logger.Error("CreateActionPlan: store failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store action plan")
		return
	}
	s.logger.Info("action plan stored", "id", stored.ID)
	writeJSON(w, http.StatusCreated, storedResponse(stored))
}

// ListActionPlans handles GET /action-plans.
func (s *Server) ListActionPlans(w http.ResponseWriter, r *http.Request) {
	ids := []string{}
	if s.store != nil {
		var err error
		if ids, err = s.store.List(r.Context()); err != nil {
			s.logger.Error("ListActionPlans failed", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to list action plans")
			return
		}
		if ids == nil {
			ids = []string{}
		}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"ids": ids})
}

// GetActionPlan handles GET /action-plans/{id}.
func (s *Server) GetActionPlan(w http.ResponseWriter, r *http.Request) {
	stored, ok := s.loadPlan(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, storedResponse(stored))
}

// GetActionPlanHTML handles GET /action-plans/{id}/html.
func (s *Server) GetActionPlanHTML(w http.ResponseWriter, r *http.Request) {
	stored, ok := s.loadPlan(w, r)
	if !ok {
		return
	}

	extracted := citation.Extract(stored.Plan.Content)
	plan := stored.Plan
	plan.Content = extracted.Content

	writeJSON(w, http.StatusOK, planDocument{
		ID:        stored.ID,
		Title:     plan.Title,
		Summary:   plan.Summary,
		HTML:      s.renderer.RenderPlan(plan, extracted.Citations),
		Citations: extracted.Citations,
	})
}

func (s *Server) loadPlan(w http.ResponseWriter, r *http.Request) (domain.StoredPlan, bool) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, domain.ErrPlanNotFound.Error())
		return domain.StoredPlan{}, false
	}

	id := chi.URLParam(r, "id")
	stored, err := s.store.Load(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrPlanNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return domain.StoredPlan{}, false
		}
		s.logger.Error("loading action plan failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load action plan")
		return domain.StoredPlan{}, false
	}
	return stored, true
}

// Render handles POST /render.
func (s *Server) Render(w http.ResponseWriter, r *http.Request) {
	var body renderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.logger.Warn("Render: invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	content, err := sanitize.Input(body.Content, 0)
	if err != nil {
		s.logger.Warn("Render: input rejected", "error", err, "size", len(body.Content))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	extracted := citation.Extract(content)
	writeJSON(w, http.StatusOK, renderResponse{
		HTML:      s.renderer.RenderWithCitations(extracted.Content, extracted.Citations),
		Content:   extracted.Content,
		Citations: extracted.Citations,
	})
}

// Geolocation handles GET /geolocation.
func (s *Server) Geolocation(w http.ResponseWriter, r *http.Request) {
	if s.locator == nil {
		writeError(w, http.StatusNotFound, "geolocation is not configured")
		return
	}

	q := r.URL.Query()
	lat, lon, err := geo.ParseCoordinates(q.Get("latitude"), q.Get("longitude"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	loc, err := s.locator.Lookup(r.Context(), lat, lon)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, loc)
	case errors.Is(err, geo.ErrNoCounty):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Warn("Geolocation failed", "error", err)
		writeError(w, http.StatusBadGateway, "geolocation lookup failed")
	}
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
