package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/chronicle-npc/pkg/chat"
)

func newOllamaTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model    string             `json:"model"`
			Messages []chat.ChatMessage `json:"messages"`
			Stream   bool               `json:"stream"`
			Options  struct {
				Temperature float64 `json:"temperature"`
			} `json:"options"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Stream || req.Options.Temperature != 0.7 {
			http.Error(w, "unexpected options", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": "Well met, " + req.Messages[0].Content},
		})
	})
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
			Input string `json:"input"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "nomic-embed-text" {
			http.Error(w, "model not found", http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{{0.1, 0.2, 0.3}}})
	})
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"models": []map[string]string{{"name": "llama3:latest"}, {"name": "nomic-embed-text:latest"}},
		})
	})
	mux.HandleFunc("/api/pull", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaService_GetChatResponse(t *testing.T) {
	srv := newOllamaTestServer(t)
	svc := NewOllamaService(srv.URL, "llama3", "nomic-embed-text", 5*time.Second, testLogger())

	resp, err := svc.GetChatResponse(context.Background(),
		[]chat.ChatMessage{{Role: chat.ChatRoleUser, Content: "traveler"}},
		chat.GenerateOptions{Temperature: 0.7})
	require.NoError(t, err)
	assert.Equal(t, "Well met, traveler", resp.Message)
}

func TestOllamaService_ChatErrorStatus(t *testing.T) {
	srv := newOllamaTestServer(t)
	svc := NewOllamaService(srv.URL, "llama3", "nomic-embed-text", 5*time.Second, testLogger())

	_, err := svc.GetChatResponse(context.Background(),
		[]chat.ChatMessage{{Role: chat.ChatRoleUser, Content: "x"}},
		chat.GenerateOptions{Temperature: 0.1})
	assert.Error(t, err)
}

func TestOllamaService_Embed(t *testing.T) {
	srv := newOllamaTestServer(t)

	svc := NewOllamaService(srv.URL+"/", "llama3", "nomic-embed-text", 5*time.Second, testLogger())
	vec, err := svc.Embed(context.Background(), "blacksmith")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)

	missing := NewOllamaService(srv.URL, "llama3", "other-model", 5*time.Second, testLogger())
	_, err = missing.Embed(context.Background(), "blacksmith")
	assert.Error(t, err)
}

func TestOllamaService_InitModel(t *testing.T) {
	srv := newOllamaTestServer(t)
	svc := NewOllamaService(srv.URL, "llama3", "nomic-embed-text", 5*time.Second, testLogger())

	ready, err := svc.isModelReady(context.Background(), "llama3")
	require.NoError(t, err)
	assert.True(t, ready, "untagged name should match the :latest tag")

	ready, err = svc.isModelReady(context.Background(), "mistral")
	require.NoError(t, err)
	assert.False(t, ready)

	// mistral is missing, so InitModel pulls it
	assert.NoError(t, svc.InitModel(context.Background(), "mistral"))
}

func TestOllamaService_ListModels(t *testing.T) {
	srv := newOllamaTestServer(t)
	svc := NewOllamaService(srv.URL, "llama3", "nomic-embed-text", 5*time.Second, testLogger())

	models, err := svc.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3:latest", "nomic-embed-text:latest"}, models)
}
