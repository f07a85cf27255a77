package handlers

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jwebster45206/chronicle-npc/internal/contextcache"
	"github.com/jwebster45206/chronicle-npc/pkg/actor"
	"github.com/jwebster45206/chronicle-npc/pkg/chat"
	"github.com/jwebster45206/chronicle-npc/pkg/storage"
)

// DialogueComposer produces replies and conversation summaries.
type DialogueComposer interface {
	GenerateDialogue(ctx context.Context, npcID, playerInput string, dc actor.DialogueContext, extra map[string]any) (string, error)
	ConversationSummary(ctx context.Context, npcID string) string
}

// ContextStore is the per-persona context cache.
type ContextStore interface {
	Get(ctx context.Context, npcID string) (*contextcache.Snapshot, bool)
	Update(ctx context.Context, npcID string, fields map[string]any) bool
	Refresh(ctx context.Context, npcID string) bool
	Clear(npcID string) bool
}

// TalkHandler handles POST /talk_to_npc
type TalkHandler struct {
	composer DialogueComposer
	contexts ContextStore
	logger   *slog.Logger
}

// NewTalkHandler creates a new talk handler
func NewTalkHandler(composer DialogueComposer, contexts ContextStore, logger *slog.Logger) *TalkHandler {
	return &TalkHandler{composer: composer, contexts: contexts, logger: logger}
}

func (h *TalkHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req chat.TalkRequest
	if err := decodeBody(r, &req); err != nil {
		h.logger.Warn("Invalid talk request body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	snapshot, ok := h.contexts.Get(ctx, req.NPCID)
	if !ok {
		writeError(w, h.logger, http.StatusNotFound, "NPC not found")
		return
	}

	// Caller-supplied keys win over the cached relationship context.
	extra := map[string]any{
		contextcache.KeyRelationshipContext: snapshot.RelationshipContext,
	}
	if len(snapshot.ConversationPatterns) > 0 {
		extra[contextcache.KeyConversationPatterns] = snapshot.ConversationPatterns
	}
	maps.Copy(extra, req.AdditionalContext)

	dc := actor.DialogueContext{
		DialogueType:     req.DialogueType,
		DialogueStage:    req.DialogueStage,
		Mood:             req.Mood,
		PlayerReputation: req.PlayerReputation,
		QuestState:       req.QuestState,
		Conditions:       req.Conditions,
	}.WithDefaults()

	response, err := h.composer.GenerateDialogue(ctx, req.NPCID, req.PlayerInput, dc, extra)
	if err != nil {
		if errors.Is(err, storage.ErrPersonaNotFound) {
			writeError(w, h.logger, http.StatusNotFound, "NPC not found")
			return
		}
		h.logger.Error("Dialogue generation failed", "npc_id", req.NPCID, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to generate dialogue: "+err.Error())
		return
	}

	// The stored turn changes the tier, digest and patterns the next prompt sees.
	h.contexts.Refresh(ctx, req.NPCID)
	h.contexts.Update(ctx, req.NPCID, map[string]any{
		"last_player_input": req.PlayerInput,
		"last_npc_response": response,
		"last_mood":         dc.Mood,
	})

	writeJSON(w, h.logger, http.StatusOK, chat.TalkResponse{Success: true, Response: response})
}

// ConversationHandler handles GET /get_conversation_summary/{npc_id}
type ConversationHandler struct {
	composer DialogueComposer
	logger   *slog.Logger
}

// NewConversationHandler creates a new conversation summary handler
func NewConversationHandler(composer DialogueComposer, logger *slog.Logger) *ConversationHandler {
	return &ConversationHandler{composer: composer, logger: logger}
}

func (h *ConversationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	npcID := chi.URLParam(r, "npc_id")
	summary := h.composer.ConversationSummary(r.Context(), npcID)
	writeEnvelope(w, h.logger, http.StatusOK, chat.Envelope{Success: true, Summary: summary})
}
