package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jwebster45206/chronicle-npc/internal/services"
)

type HealthResponse struct {
	Status     string         `json:"status"`
	Timestamp  time.Time      `json:"timestamp"`
	Service    string         `json:"service"`
	Components map[string]any `json:"components"`
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	store      Pinger
	cache      services.Cache // optional
	llmService services.LLMService
	logger     *slog.Logger
}

// NewHealthHandler creates a health handler. cache may be nil when Redis is
// not configured.
func NewHealthHandler(store Pinger, cache services.Cache, llmService services.LLMService, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		store:      store,
		cache:      cache,
		llmService: llmService,
		logger:     logger,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("Health check requested",
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr)

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	components := make(map[string]any)
	overallStatus := "healthy"

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("Vector store health check failed", "error", err)
		components["vector_store"] = "unhealthy"
		overallStatus = "degraded"
	} else {
		components["vector_store"] = "healthy"
	}

	if models, err := h.llmService.ListModels(ctx); err != nil {
		h.logger.Warn("LLM health check failed", "error", err)
		components["llm"] = map[string]any{"status": "unhealthy", "error": err.Error()}
		overallStatus = "degraded"
	} else {
		components["llm"] = map[string]any{"status": "healthy", "models": models}
	}

	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			h.logger.Warn("Cache health check failed", "error", err)
			components["cache"] = "unhealthy"
			overallStatus = "degraded"
		} else {
			components["cache"] = "healthy"
		}
	}

	response := HealthResponse{
		Status:     overallStatus,
		Timestamp:  time.Now(),
		Service:    "chronicle-npc",
		Components: components,
	}

	statusCode := http.StatusOK
	if overallStatus != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, h.logger, statusCode, response)
}
