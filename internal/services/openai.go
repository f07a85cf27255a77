package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/jwebster45206/chronicle-npc/pkg/chat"
)

// OpenAIService implements LLMService and Embedder against any
// OpenAI-compatible endpoint, including Ollama's /v1 surface.
type OpenAIService struct {
	client         *openai.Client
	modelName      string
	embeddingModel string
	logger         *slog.Logger
}

var (
	_ LLMService = (*OpenAIService)(nil)
	_ Embedder   = (*OpenAIService)(nil)
)

// NewOpenAIService creates a client for baseURL. Local servers accept any
// API key, so an empty key is sent as a placeholder.
func NewOpenAIService(apiKey, baseURL, modelName, embeddingModel string, timeout time.Duration, logger *slog.Logger) *OpenAIService {
	if apiKey == "" {
		apiKey = "ollama"
	}
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL
	config.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIService{
		client:         openai.NewClientWithConfig(config),
		modelName:      modelName,
		embeddingModel: embeddingModel,
		logger:         logger,
	}
}

// InitModel checks that the model is served. OpenAI-compatible endpoints
// cannot pull models, so a missing model is only a warning.
func (s *OpenAIService) InitModel(ctx context.Context, modelName string) error {
	models, err := s.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}
	if !slices.Contains(models, modelName) {
		s.logger.Warn("Model not listed by endpoint, requests may fail", "model", modelName)
		return nil
	}
	s.logger.Info("Model already available", "model", modelName)
	return nil
}

// GetChatResponse generates a chat completion
func (s *OpenAIService) GetChatResponse(ctx context.Context, messages []chat.ChatMessage, opts chat.GenerateOptions) (*chat.ChatResponse, error) {
	req := openai.ChatCompletionRequest{
		Model:       s.modelName,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		Temperature: float32(opts.Temperature),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}
	return &chat.ChatResponse{Message: resp.Choices[0].Message.Content}, nil
}

// Embed returns the embedding of text.
func (s *OpenAIService) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := s.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(s.embeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("endpoint returned no embedding for model %s", s.embeddingModel)
	}
	return resp.Data[0].Embedding, nil
}

// ListModels lists the model ids the endpoint reports
func (s *OpenAIService) ListModels(ctx context.Context) ([]string, error) {
	list, err := s.client.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	return ids, nil
}
