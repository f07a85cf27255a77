package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jwebster45206/chronicle-npc/pkg/chat"
)

// ContextClearedPublisher announces context evictions.
type ContextClearedPublisher interface {
	PublishContextCleared(ctx context.Context, npcID string) error
}

// ContextHandler serves the cached per-persona context.
// GET /get_npc_context/{npc_id} and POST /clear_npc_context/{npc_id}
type ContextHandler struct {
	contexts ContextStore
	events   ContextClearedPublisher
	logger   *slog.Logger
}

// NewContextHandler creates a new context handler. events may be nil.
func NewContextHandler(contexts ContextStore, events ContextClearedPublisher, logger *slog.Logger) *ContextHandler {
	return &ContextHandler{contexts: contexts, events: events, logger: logger}
}

// Get returns the persona's snapshot, building it if needed.
func (h *ContextHandler) Get(w http.ResponseWriter, r *http.Request) {
	npcID := chi.URLParam(r, "npc_id")
	snapshot, ok := h.contexts.Get(r.Context(), npcID)
	if !ok {
		writeError(w, h.logger, http.StatusNotFound, "NPC not found")
		return
	}
	writeEnvelope(w, h.logger, http.StatusOK, chat.Envelope{Success: true, Context: toMap(snapshot)})
}

// Clear evicts the persona's snapshot.
func (h *ContextHandler) Clear(w http.ResponseWriter, r *http.Request) {
	npcID := chi.URLParam(r, "npc_id")
	existed := h.contexts.Clear(npcID)
	h.logger.Info("NPC context cleared", "npc_id", npcID, "existed", existed)

	if h.events != nil {
		if err := h.events.PublishContextCleared(r.Context(), npcID); err != nil {
			h.logger.Warn("Failed to publish context cleared event", "npc_id", npcID, "error", err)
		}
	}
	writeEnvelope(w, h.logger, http.StatusOK, chat.Envelope{Success: true})
}
