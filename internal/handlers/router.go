package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/chronicle-npc/internal/logger"
	"github.com/jwebster45206/chronicle-npc/internal/services"
)

// Dependencies are the components the routes are served from.
type Dependencies struct {
	Generator   PersonaGenerator
	Searcher    PersonaSearcher
	Composer    DialogueComposer
	Contexts    ContextStore
	Store       Pinger
	LLM         services.LLMService
	Cache       services.Cache          // optional
	Redis       *redis.Client           // optional, enables /events
	Events      ContextClearedPublisher // optional
	SearchLimit int
}

// NewRouter wires every route onto a chi router.
func NewRouter(deps Dependencies, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.RequestLogger(log))
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, log, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, log, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Method(http.MethodGet, "/health", NewHealthHandler(deps.Store, deps.Cache, deps.LLM, log))

	r.Method(http.MethodPost, "/create_npc", NewCreateNPCHandler(deps.Generator, log))
	r.Method(http.MethodPost, "/talk_to_npc", NewTalkHandler(deps.Composer, deps.Contexts, log))
	r.Method(http.MethodGet, "/get_npc_summary/{npc_id}", NewSummaryHandler(deps.Generator, log))
	r.Method(http.MethodPost, "/search_npcs", NewSearchHandler(deps.Searcher, deps.SearchLimit, log))
	r.Method(http.MethodGet, "/get_conversation_summary/{npc_id}", NewConversationHandler(deps.Composer, log))

	contextHandler := NewContextHandler(deps.Contexts, deps.Events, log)
	r.Get("/get_npc_context/{npc_id}", contextHandler.Get)
	r.Post("/clear_npc_context/{npc_id}", contextHandler.Clear)

	if deps.Redis != nil {
		r.Method(http.MethodGet, "/events/{npc_id}", NewEventsHandler(deps.Redis, log))
	}
	return r
}
