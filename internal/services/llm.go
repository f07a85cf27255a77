package services

import (
	"context"

	"github.com/jwebster45206/chronicle-npc/pkg/chat"
)

// LLMService defines the interface for interacting with the LLM API
type LLMService interface {
	// InitModel makes sure the model is available, pulling it if the
	// backend supports that
	InitModel(ctx context.Context, modelName string) error

	// GetChatResponse generates a single non-streaming completion
	GetChatResponse(ctx context.Context, messages []chat.ChatMessage, opts chat.GenerateOptions) (*chat.ChatResponse, error)

	// ListModels lists the models the backend can serve
	ListModels(ctx context.Context) ([]string, error)
}

// Embedder turns text into a vector for similarity search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
