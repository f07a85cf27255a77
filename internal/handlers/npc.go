package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jwebster45206/chronicle-npc/pkg/actor"
	"github.com/jwebster45206/chronicle-npc/pkg/chat"
)

// PersonaGenerator creates personas and renders their summaries.
type PersonaGenerator interface {
	GeneratePersona(ctx context.Context, characterParams, worldParams, behaviorParams map[string]any, customInstructions string) (string, error)
	PersonaSummary(ctx context.Context, npcID string) (string, bool)
}

// PersonaSearcher finds personas by description.
type PersonaSearcher interface {
	SearchPersonas(ctx context.Context, query string, limit int) ([]actor.Record, error)
}

// CreateNPCHandler handles POST /create_npc
type CreateNPCHandler struct {
	generator PersonaGenerator
	logger    *slog.Logger
}

// NewCreateNPCHandler creates a new create handler
func NewCreateNPCHandler(generator PersonaGenerator, logger *slog.Logger) *CreateNPCHandler {
	return &CreateNPCHandler{generator: generator, logger: logger}
}

func (h *CreateNPCHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req chat.CreateNPCRequest
	if err := decodeBody(r, &req); err != nil {
		h.logger.Warn("Invalid create request body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	npcID, err := h.generator.GeneratePersona(r.Context(), req.CharacterParams, req.WorldSettings, req.BehaviorParams, req.CustomPrompt)
	if err != nil {
		if actor.IsValidationError(err) {
			h.logger.Warn("Rejected create request", "error", err)
			writeError(w, h.logger, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("Failed to create NPC", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to create NPC: "+err.Error())
		return
	}

	h.logger.Info("NPC created", "npc_id", npcID)
	writeEnvelope(w, h.logger, http.StatusOK, chat.Envelope{Success: true, NPCID: npcID})
}

// SummaryHandler handles GET /get_npc_summary/{npc_id}
type SummaryHandler struct {
	generator PersonaGenerator
	logger    *slog.Logger
}

// NewSummaryHandler creates a new summary handler
func NewSummaryHandler(generator PersonaGenerator, logger *slog.Logger) *SummaryHandler {
	return &SummaryHandler{generator: generator, logger: logger}
}

func (h *SummaryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	npcID := chi.URLParam(r, "npc_id")
	summary, ok := h.generator.PersonaSummary(r.Context(), npcID)
	if !ok {
		writeError(w, h.logger, http.StatusNotFound, "NPC not found")
		return
	}
	writeEnvelope(w, h.logger, http.StatusOK, chat.Envelope{Success: true, Summary: summary})
}

// SearchHandler handles POST /search_npcs
type SearchHandler struct {
	searcher     PersonaSearcher
	defaultLimit int
	logger       *slog.Logger
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(searcher PersonaSearcher, defaultLimit int, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{searcher: searcher, defaultLimit: defaultLimit, logger: logger}
}

func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req chat.SearchRequest
	if err := decodeBody(r, &req); err != nil {
		h.logger.Warn("Invalid search request body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	limit := req.Limit
	if limit == 0 {
		limit = h.defaultLimit
	}

	records, err := h.searcher.SearchPersonas(r.Context(), req.Query, limit)
	if err != nil {
		h.logger.Error("NPC search failed", "error", err, "query", req.Query)
		writeError(w, h.logger, http.StatusInternalServerError, "Search failed: "+err.Error())
		return
	}

	hits := make([]chat.NPCHit, 0, len(records))
	for _, rec := range records {
		hits = append(hits, chat.NPCHit{
			NPCID:        rec.NPC.NPCID,
			Name:         rec.NPC.Name,
			Profession:   rec.NPC.ProfessionRole,
			Faction:      rec.NPC.Faction,
			Location:     rec.World.Location,
			NPCData:      toMap(rec.NPC),
			WorldData:    toMap(rec.World),
			BehaviorData: toMap(rec.Behavior),
		})
	}
	writeJSON(w, h.logger, http.StatusOK, chat.SearchResponse{Success: true, NPCs: hits})
}
