package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/jwebster45206/chronicle-npc/pkg/actor"
)

// LLM providers
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Vector store backends
const (
	VectorStoreQdrant = "qdrant"
	VectorStoreMemory = "memory"
)

type Config struct {
	Port        string     `env:"PORT" envDefault:"5000"`
	Environment string     `env:"ENVIRONMENT" envDefault:"development"`
	LogLevelRaw string     `env:"LOG_LEVEL" envDefault:"info"`
	LogLevel    slog.Level `env:"-"`

	LLMProvider          string        `env:"LLM_PROVIDER" envDefault:"ollama"`
	OllamaBaseURL        string        `env:"OLLAMA_BASE_URL" envDefault:"http://localhost:11434"`
	OllamaModel          string        `env:"OLLAMA_MODEL" envDefault:"llama3"`
	OllamaEmbeddingModel string        `env:"OLLAMA_EMBEDDING_MODEL" envDefault:"nomic-embed-text"`
	OpenAIAPIKey         string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL        string        `env:"OPENAI_BASE_URL" envDefault:"http://localhost:11434/v1"`
	LLMTimeout           time.Duration `env:"LLM_TIMEOUT" envDefault:"120s"`

	VectorStore        string `env:"VECTOR_STORE" envDefault:"qdrant"`
	QdrantHost         string `env:"QDRANT_HOST" envDefault:"localhost"`
	QdrantPort         int    `env:"QDRANT_PORT" envDefault:"6334"`
	QdrantAPIKey       string `env:"QDRANT_API_KEY"`
	NPCCollection      string `env:"NPC_COLLECTION" envDefault:"npc_characters"`
	DialogueCollection string `env:"DIALOGUE_COLLECTION" envDefault:"npc_dialogues"`
	ActivityCollection string `env:"ACTIVITY_COLLECTION" envDefault:"chronicle_activities"`

	RedisURL          string        `env:"REDIS_URL"`
	EmbeddingCacheTTL time.Duration `env:"EMBEDDING_CACHE_TTL" envDefault:"24h"`

	DefaultWorldTheme string `env:"DEFAULT_WORLD_THEME" envDefault:"Medieval Fantasy"`
	DefaultLocation   string `env:"DEFAULT_LOCATION" envDefault:"Village"`

	MaxDialogueHistory   int `env:"MAX_DIALOGUE_HISTORY" envDefault:"10"`
	DialogueContextTurns int `env:"DIALOGUE_CONTEXT_TURNS" envDefault:"5"`
	PromptHistoryTurns   int `env:"PROMPT_HISTORY_TURNS" envDefault:"3"`
	MaxSearchResults     int `env:"MAX_SEARCH_RESULTS" envDefault:"5"`
	HistoryScanLimit     int `env:"HISTORY_SCAN_LIMIT" envDefault:"500"`

	DialogueTemperature    float64 `env:"DIALOGUE_TEMPERATURE" envDefault:"0.7"`
	EnhancementTemperature float64 `env:"NPC_ENHANCEMENT_TEMPERATURE" envDefault:"0.8"`
	ContentRating          string  `env:"CONTENT_RATING"`
	BackendURL             string  `env:"BACKEND_URL" envDefault:"http://localhost:3001"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	cfg.LogLevel = parseLogLevel(cfg.LogLevelRaw)
	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(cfg.LLMProvider))
	cfg.VectorStore = strings.ToLower(strings.TrimSpace(cfg.VectorStore))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks option values that env parsing cannot.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q", c.LLMProvider)
	}
	switch c.VectorStore {
	case VectorStoreQdrant, VectorStoreMemory:
	default:
		return fmt.Errorf("unsupported VECTOR_STORE %q", c.VectorStore)
	}
	if c.MaxSearchResults <= 0 {
		return fmt.Errorf("MAX_SEARCH_RESULTS must be positive")
	}
	if c.HistoryScanLimit < c.MaxDialogueHistory {
		return fmt.Errorf("HISTORY_SCAN_LIMIT must be at least MAX_DIALOGUE_HISTORY")
	}
	return nil
}

// WorldDefaults returns the world settings applied to create requests that
// leave fields out.
func (c *Config) WorldDefaults() actor.WorldSettings {
	w := actor.DefaultWorldSettings()
	w.WorldTheme = c.DefaultWorldTheme
	w.Location = c.DefaultLocation
	return w
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
