// Package server is the thin HTTP delivery layer in front of the
// orchestration core. The core itself stays protocol-agnostic; these
// handlers only decode, delegate, and encode.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/cache"
	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/domain"
	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/orchestrator"
	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/provider"
)

// Server wires the chi router over the orchestrator and its
// collaborators.
type Server struct {
	Router *chi.Mux

	orch     *orchestrator.Orchestrator
	registry *provider.Registry
	cache    *cache.Coordinator
	logger   *slog.Logger
}

// New builds the router with the standard middleware stack.
func New(orch *orchestrator.Orchestrator, registry *provider.Registry, cacheCoord *cache.Coordinator, requestTimeout time.Duration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}

	s := &Server{
		orch:     orch,
		registry: registry,
		cache:    cacheCoord,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logging(logger))
	r.Use(Timeout(requestTimeout))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "insurance-agent")
	})

	r.Post("/v1/conversations/{tenantID}/messages", s.handleMessage)
	r.Get("/v1/providers", s.handleListProviders)
	r.Get("/v1/providers/{name}/health", s.handleProviderHealth)
	r.Get("/v1/cache/stats", s.handleCacheStats)
	r.Get("/healthz", s.handleHealthz)

	s.Router = r
	return s
}

type messageRequest struct {
	UserID   string                 `json:"user_id"`
	Platform string                 `json:"platform,omitempty"`
	Message  string                 `json:"message"`
	Context  *domain.RequestContext `json:"context,omitempty"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "user_id and message are required")
		return
	}

	resp := s.orch.HandleMessage(r.Context(), &orchestrator.Request{
		TenantID: tenantID,
		UserID:   req.UserID,
		Platform: req.Platform,
		Message:  req.Message,
		Context:  req.Context,
	})
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	type providerView struct {
		provider.Descriptor
		Health domain.HealthSnapshot `json:"health"`
	}

	snapshots := s.registry.Snapshots(r.Context())
	descriptors := s.registry.List()
	views := make([]providerView, 0, len(descriptors))
	for _, d := range descriptors {
		views = append(views, providerView{Descriptor: d, Health: snapshots[d.Name]})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleProviderHealth(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	snapshot, err := s.registry.Probe(r.Context(), name)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"stats":   s.cache.Stats(r.Context()),
		"metrics": s.cache.Metrics(),
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	cacheStatus := s.cache.Health(r.Context())

	status := http.StatusOK
	if cacheStatus == domain.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"cache":     cacheStatus,
		"providers": len(s.registry.Names()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
