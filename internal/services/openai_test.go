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

func newOpenAITestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model       string  `json:"model"`
			Temperature float32 `json:"temperature"`
			Messages    []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"model":   req.Model,
			"choices": []map[string]any{{"index": 0, "message": map[string]string{"role": "assistant", "content": "Aye, " + req.Messages[len(req.Messages)-1].Content}, "finish_reason": "stop"}},
		})
	})
	mux.HandleFunc("/v1/embeddings", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   []map[string]any{{"object": "embedding", "index": 0, "embedding": []float32{0.5, 0.25}}},
			"model":  "nomic-embed-text",
		})
	})
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   []map[string]any{{"id": "llama3", "object": "model"}},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIService_GetChatResponse(t *testing.T) {
	srv := newOpenAITestServer(t)
	svc := NewOpenAIService("", srv.URL+"/v1", "llama3", "nomic-embed-text", 5*time.Second, testLogger())

	resp, err := svc.GetChatResponse(context.Background(),
		[]chat.ChatMessage{{Role: chat.ChatRoleUser, Content: "the ale is cold"}},
		chat.GenerateOptions{Temperature: 0.7})
	require.NoError(t, err)
	assert.Equal(t, "Aye, the ale is cold", resp.Message)
}

func TestOpenAIService_Embed(t *testing.T) {
	srv := newOpenAITestServer(t)
	svc := NewOpenAIService("key", srv.URL+"/v1", "llama3", "nomic-embed-text", 5*time.Second, testLogger())

	vec, err := svc.Embed(context.Background(), "innkeeper")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25}, vec)
}

func TestOpenAIService_InitModel(t *testing.T) {
	srv := newOpenAITestServer(t)
	svc := NewOpenAIService("", srv.URL+"/v1", "llama3", "nomic-embed-text", 5*time.Second, testLogger())

	assert.NoError(t, svc.InitModel(context.Background(), "llama3"))
	assert.NoError(t, svc.InitModel(context.Background(), "unlisted"), "missing models only warn")

	models, err := svc.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3"}, models)
}

func TestOpenAIService_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer srv.Close()

	svc := NewOpenAIService("", srv.URL+"/v1", "llama3", "nomic-embed-text", 5*time.Second, testLogger())
	_, err := svc.GetChatResponse(context.Background(),
		[]chat.ChatMessage{{Role: chat.ChatRoleUser, Content: "x"}}, chat.GenerateOptions{})
	assert.Error(t, err)
}
