package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/chronicle-npc/internal/config"
	"github.com/jwebster45206/chronicle-npc/internal/contextcache"
	"github.com/jwebster45206/chronicle-npc/internal/conversation"
	"github.com/jwebster45206/chronicle-npc/internal/handlers"
	"github.com/jwebster45206/chronicle-npc/internal/logger"
	"github.com/jwebster45206/chronicle-npc/internal/npc"
	"github.com/jwebster45206/chronicle-npc/internal/services"
	"github.com/jwebster45206/chronicle-npc/internal/services/events"
	"github.com/jwebster45206/chronicle-npc/internal/storage"
	"github.com/jwebster45206/chronicle-npc/internal/vectorstore"
)

// llmBackend is both a chat model and an embedder.
type llmBackend interface {
	services.LLMService
	services.Embedder
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Chronicle NPC API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"llm_provider", cfg.LLMProvider,
		"model_name", cfg.OllamaModel,
		"vector_store", cfg.VectorStore)

	var llmService llmBackend
	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		llmService = services.NewOpenAIService(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OllamaModel, cfg.OllamaEmbeddingModel, cfg.LLMTimeout, log)
		log.Info("Using OpenAI-compatible LLM provider", "base_url", cfg.OpenAIBaseURL)
	default:
		llmService = services.NewOllamaService(cfg.OllamaBaseURL, cfg.OllamaModel, cfg.OllamaEmbeddingModel, cfg.LLMTimeout, log)
		log.Info("Using Ollama LLM provider", "base_url", cfg.OllamaBaseURL)
	}

	// Redis is optional: it backs the embedding cache and the event stream.
	var (
		cache       services.Cache
		redisClient *redis.Client
		embedder    services.Embedder = llmService
	)
	if cfg.RedisURL != "" {
		redisService, err := services.NewRedisService(cfg.RedisURL, log)
		if err != nil {
			log.Error("Invalid Redis configuration", "error", err)
			os.Exit(1)
		}
		redisCtx, redisCancel := context.WithTimeout(context.Background(), 2*time.Minute)
		if err := redisService.WaitForConnection(redisCtx); err != nil {
			redisCancel()
			log.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		redisCancel()
		cache = redisService
		redisClient = redisService.GetClient()
		embedder = services.NewCachedEmbedder(llmService, cache, cfg.OllamaEmbeddingModel, cfg.EmbeddingCacheTTL, log)
		log.Info("Redis enabled for embedding cache and events")
	}

	store, err := openVectorStore(cfg, log)
	if err != nil {
		log.Error("Failed to open vector store", "error", err)
		os.Exit(1)
	}

	personaStore := storage.NewVectorStorage(store, embedder, storage.Options{
		PersonaCollection:  cfg.NPCCollection,
		DialogueCollection: cfg.DialogueCollection,
		ScanLimit:          cfg.HistoryScanLimit,
	}, log)

	storeCtx, storeCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storeCancel()
	if err := waitForStore(storeCtx, personaStore, log); err != nil {
		log.Error("Failed to connect to vector store", "error", err)
		os.Exit(1)
	}
	log.Info("Vector store connection established successfully")

	// Initialize the chat and embedding models on startup
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	if err := initModels(ctx, llmService, cfg.OllamaModel, cfg.OllamaEmbeddingModel); err != nil {
		log.Error("Failed to initialize LLM model", "error", err)
		os.Exit(1)
	}

	generator := npc.NewGenerator(personaStore, llmService, cfg.WorldDefaults(), cfg.EnhancementTemperature, log)
	composer := conversation.NewComposer(personaStore, llmService, conversation.Options{
		HistoryTurns:  cfg.DialogueContextTurns,
		PromptTurns:   cfg.PromptHistoryTurns,
		SummaryTurns:  cfg.MaxDialogueHistory,
		Temperature:   cfg.DialogueTemperature,
		ContentRating: cfg.ContentRating,
	}, log)
	contexts := contextcache.New(personaStore, log)

	deps := handlers.Dependencies{
		Generator:   generator,
		Searcher:    personaStore,
		Composer:    composer,
		Contexts:    contexts,
		Store:       personaStore,
		LLM:         llmService,
		Cache:       cache,
		Redis:       redisClient,
		SearchLimit: cfg.MaxSearchResults,
	}
	if redisClient != nil {
		broadcaster := events.NewBroadcaster(redisClient, log)
		generator.SetEventPublisher(broadcaster)
		composer.SetEventPublisher(broadcaster)
		deps.Events = broadcaster
	}

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handlers.NewRouter(deps, log),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: the event stream is long-lived.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	if err := personaStore.Close(); err != nil {
		log.Error("Error closing vector store", "error", err)
	}
	if cache != nil {
		if err := cache.Close(); err != nil {
			log.Error("Error closing Redis connection", "error", err)
		}
	}

	log.Info("Server exited")
}

// initModels makes each named model available, skipping blanks and repeats.
func initModels(ctx context.Context, llm services.LLMService, names ...string) error {
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		if err := llm.InitModel(ctx, name); err != nil {
			return fmt.Errorf("model %s: %w", name, err)
		}
	}
	return nil
}

func openVectorStore(cfg *config.Config, log *slog.Logger) (vectorstore.Store, error) {
	if cfg.VectorStore == config.VectorStoreMemory {
		log.Warn("Using in-memory vector store; data is lost on exit")
		return vectorstore.NewMemoryStore(), nil
	}
	return vectorstore.NewQdrantStore(vectorstore.QdrantConfig{
		Host:            cfg.QdrantHost,
		Port:            cfg.QdrantPort,
		APIKey:          cfg.QdrantAPIKey,
		KeywordIndexes:  storage.FilterKeys,
		DatetimeIndexes: storage.TimeKeys,
	}, log)
}

// waitForStore retries Ping until the store answers or ctx ends.
func waitForStore(ctx context.Context, store interface{ Ping(context.Context) error }, log *slog.Logger) error {
	const retryDelay = 2 * time.Second
	for attempt := 1; ; attempt++ {
		err := store.Ping(ctx)
		if err == nil {
			return nil
		}
		log.Debug("Vector store not ready yet", "error", err, "attempt", attempt)
		select {
		case <-ctx.Done():
			return fmt.Errorf("gave up waiting for vector store: %w", err)
		case <-time.After(retryDelay):
		}
	}
}
