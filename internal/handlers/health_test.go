package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/jwebster45206/chronicle-npc/internal/services"
	"github.com/jwebster45206/chronicle-npc/pkg/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError, // Reduce noise in tests
	}))
}

func TestHealthHandler_ServeHTTP(t *testing.T) {
	logger := testLogger()

	tests := []struct {
		name           string
		storeErr       error
		cacheErr       error
		withCache      bool
		llmErr         error
		expectedStatus int
		expectedHealth string
		expectedStore  string
		expectedCache  string
		expectedLLM    string
	}{
		{
			name:           "all healthy",
			withCache:      true,
			expectedStatus: http.StatusOK,
			expectedHealth: "healthy",
			expectedStore:  "healthy",
			expectedCache:  "healthy",
			expectedLLM:    "healthy",
		},
		{
			name:           "no cache configured",
			expectedStatus: http.StatusOK,
			expectedHealth: "healthy",
			expectedStore:  "healthy",
			expectedLLM:    "healthy",
		},
		{
			name:           "unhealthy cache",
			withCache:      true,
			cacheErr:       errors.New("connection failed"),
			expectedStatus: http.StatusServiceUnavailable,
			expectedHealth: "degraded",
			expectedStore:  "healthy",
			expectedCache:  "unhealthy",
			expectedLLM:    "healthy",
		},
		{
			name:           "unhealthy vector store",
			storeErr:       errors.New("qdrant unreachable"),
			expectedStatus: http.StatusServiceUnavailable,
			expectedHealth: "degraded",
			expectedStore:  "unhealthy",
			expectedLLM:    "healthy",
		},
		{
			name:           "unhealthy llm",
			llmErr:         errors.New("ollama connection failed"),
			expectedStatus: http.StatusServiceUnavailable,
			expectedHealth: "degraded",
			expectedStore:  "healthy",
			expectedLLM:    "unhealthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMockStorage()
			if tt.storeErr != nil {
				store.SetPingError(tt.storeErr)
			}
			var cache services.Cache
			if tt.withCache {
				mockCache := services.NewMockCache()
				if tt.cacheErr != nil {
					mockCache.SetPingError(tt.cacheErr)
				}
				cache = mockCache
			}
			llmService := services.NewMockLLMAPI()
			if tt.llmErr != nil {
				llmService.SetListModelsError(tt.llmErr)
			}
			handler := NewHealthHandler(store, cache, llmService, logger)

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, rr.Code)
			}
			if rr.Header().Get("Content-Type") != "application/json" {
				t.Errorf("Expected Content-Type application/json, got %s", rr.Header().Get("Content-Type"))
			}

			var response HealthResponse
			if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if response.Status != tt.expectedHealth {
				t.Errorf("Expected status '%s', got '%s'", tt.expectedHealth, response.Status)
			}
			if response.Service != "chronicle-npc" {
				t.Errorf("Expected service 'chronicle-npc', got '%s'", response.Service)
			}
			if got := response.Components["vector_store"]; got != tt.expectedStore {
				t.Errorf("Expected vector_store status '%s', got '%v'", tt.expectedStore, got)
			}

			cacheComponent, exists := response.Components["cache"]
			if tt.withCache {
				if !exists {
					t.Error("Expected cache component in response")
				} else if cacheComponent != tt.expectedCache {
					t.Errorf("Expected cache status '%s', got '%v'", tt.expectedCache, cacheComponent)
				}
			} else if exists {
				t.Errorf("Expected no cache component, got %v", cacheComponent)
			}

			llmComponent, ok := response.Components["llm"].(map[string]any)
			if !ok {
				t.Fatalf("Expected llm component to be a map, got %T", response.Components["llm"])
			}
			if status := llmComponent["status"]; status != tt.expectedLLM {
				t.Errorf("Expected llm status '%s', got '%v'", tt.expectedLLM, status)
			}
		})
	}
}
