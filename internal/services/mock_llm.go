package services

import (
	"context"
	"sync"

	"github.com/jwebster45206/chronicle-npc/pkg/chat"
)

// MockLLMAPI is a mock implementation of LLMService for testing
type MockLLMAPI struct {
	InitModelFunc        func(ctx context.Context, modelName string) error
	GenerateResponseFunc func(ctx context.Context, messages []chat.ChatMessage, opts chat.GenerateOptions) (*chat.ChatResponse, error)
	ListModelsFunc       func(ctx context.Context) ([]string, error)

	// Track calls for testing
	InitModelCalls        []string
	GenerateResponseCalls []GenerateResponseCall
	ListModelsCalls       int

	mu sync.Mutex // protects all fields above
}

type GenerateResponseCall struct {
	Messages []chat.ChatMessage
	Options  chat.GenerateOptions
}

var _ LLMService = (*MockLLMAPI)(nil)

// NewMockLLMAPI creates a new mock LLM service
func NewMockLLMAPI() *MockLLMAPI {
	return &MockLLMAPI{
		InitModelCalls:        make([]string, 0),
		GenerateResponseCalls: make([]GenerateResponseCall, 0),
	}
}

// InitModel mocks model initialization
func (m *MockLLMAPI) InitModel(ctx context.Context, modelName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.InitModelCalls = append(m.InitModelCalls, modelName)
	if m.InitModelFunc != nil {
		return m.InitModelFunc(ctx, modelName)
	}
	return nil
}

// GetChatResponse mocks response generation
func (m *MockLLMAPI) GetChatResponse(ctx context.Context, messages []chat.ChatMessage, opts chat.GenerateOptions) (*chat.ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GenerateResponseCalls = append(m.GenerateResponseCalls, GenerateResponseCall{
		Messages: messages,
		Options:  opts,
	})
	if m.GenerateResponseFunc != nil {
		return m.GenerateResponseFunc(ctx, messages, opts)
	}

	return &chat.ChatResponse{
		Message: "Mock response",
	}, nil
}

// ListModels mocks model listing
func (m *MockLLMAPI) ListModels(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ListModelsCalls++
	if m.ListModelsFunc != nil {
		return m.ListModelsFunc(ctx)
	}
	return []string{"llama3"}, nil
}

// SetResponse makes every completion return message
func (m *MockLLMAPI) SetResponse(message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerateResponseFunc = func(ctx context.Context, messages []chat.ChatMessage, opts chat.GenerateOptions) (*chat.ChatResponse, error) {
		return &chat.ChatResponse{Message: message}, nil
	}
}

// SetGenerateResponseError sets up the mock to return an error on GetChatResponse
func (m *MockLLMAPI) SetGenerateResponseError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerateResponseFunc = func(ctx context.Context, messages []chat.ChatMessage, opts chat.GenerateOptions) (*chat.ChatResponse, error) {
		return nil, err
	}
}

// SetListModelsError sets up the mock to return an error on ListModels
func (m *MockLLMAPI) SetListModelsError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListModelsFunc = func(ctx context.Context) ([]string, error) {
		return nil, err
	}
}

// Calls returns a copy of the completion calls in a thread-safe way
func (m *MockLLMAPI) Calls() []GenerateResponseCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]GenerateResponseCall, len(m.GenerateResponseCalls))
	copy(calls, m.GenerateResponseCalls)
	return calls
}
