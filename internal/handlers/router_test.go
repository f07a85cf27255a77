package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/chronicle-npc/internal/contextcache"
	"github.com/jwebster45206/chronicle-npc/internal/conversation"
	"github.com/jwebster45206/chronicle-npc/internal/npc"
	"github.com/jwebster45206/chronicle-npc/internal/services"
	"github.com/jwebster45206/chronicle-npc/internal/services/events"
	"github.com/jwebster45206/chronicle-npc/pkg/actor"
	"github.com/jwebster45206/chronicle-npc/pkg/chat"
	"github.com/jwebster45206/chronicle-npc/pkg/storage"
)

type recordingPublisher struct {
	mu      sync.Mutex
	cleared []string
	err     error
}

func (p *recordingPublisher) PublishContextCleared(ctx context.Context, npcID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cleared = append(p.cleared, npcID)
	return p.err
}

type testServer struct {
	handler http.Handler
	store   *storage.MockStorage
	llm     *services.MockLLMAPI
	cache   *contextcache.Cache
	events  *recordingPublisher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := testLogger()
	store := storage.NewMockStorage()
	llm := services.NewMockLLMAPI()
	cache := contextcache.New(store, logger)
	pub := &recordingPublisher{}

	generator := npc.NewGenerator(store, llm, actor.DefaultWorldSettings(), 0.8, logger)
	composer := conversation.NewComposer(store, llm, conversation.DefaultOptions(), logger)

	handler := NewRouter(Dependencies{
		Generator:   generator,
		Searcher:    store,
		Composer:    composer,
		Contexts:    cache,
		Store:       store,
		LLM:         llm,
		Events:      pub,
		SearchLimit: 5,
	}, logger)

	return &testServer{handler: handler, store: store, llm: llm, cache: cache, events: pub}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)

	var decoded map[string]any
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &decoded), rr.Body.String())
	}
	return rr, decoded
}

func (s *testServer) createNPC(t *testing.T, name, profession string) string {
	t.Helper()
	rr, body := s.do(t, http.MethodPost, "/create_npc", map[string]any{
		"character_params": map[string]any{"name": name, "profession_role": profession},
		"world_settings":   map[string]any{"location": "Riverside"},
		"behavior_params":  map[string]any{"gives_quest": true},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, true, body["success"])
	id, _ := body["npc_id"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestRouter_CreateNPC(t *testing.T) {
	s := newTestServer(t)
	s.llm.SetGenerateResponseError(errors.New("model offline"))

	id := s.createNPC(t, "Greta", "Blacksmith")
	assert.Regexp(t, `^npc_[0-9a-f]{8}$`, id)

	rec := s.store.GetPersona(context.Background(), id)
	require.NotNil(t, rec)
	assert.Equal(t, "Greta", rec.NPC.Name)
	assert.Equal(t, "Riverside", rec.World.Location)
	assert.True(t, rec.Behavior.GivesQuest)
}

func TestRouter_CreateNPC_Rejected(t *testing.T) {
	tests := []struct {
		name   string
		body   any
		status int
		errMsg string
	}{
		{"empty body", "", http.StatusBadRequest, "request body is empty"},
		{"malformed json", "{", http.StatusBadRequest, "Invalid request body"},
		{"missing character params", map[string]any{}, http.StatusBadRequest, "character_params is required"},
		{"missing name", map[string]any{"character_params": map[string]any{"age": "Old"}}, http.StatusBadRequest, "name is required"},
		{"unknown field", map[string]any{"character_params": map[string]any{"name": "X", "hp": 3}}, http.StatusBadRequest, "unknown field"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			rr, body := s.do(t, http.MethodPost, "/create_npc", tt.body)
			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, false, body["success"])
			assert.Contains(t, body["error"], tt.errMsg)
		})
	}
}

func TestRouter_CreateNPC_StorageFailure(t *testing.T) {
	s := newTestServer(t)
	s.store.StorePersonaFunc = func(ctx context.Context, npc *actor.Persona, world *actor.WorldSettings, behavior *actor.Behavior) (string, error) {
		return "", errors.New("disk full")
	}
	rr, body := s.do(t, http.MethodPost, "/create_npc", map[string]any{
		"character_params": map[string]any{"name": "Tobin"},
	})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, body["error"], "disk full")
}

func TestRouter_TalkAndSummaries(t *testing.T) {
	s := newTestServer(t)
	s.llm.SetGenerateResponseError(errors.New("enhancement unavailable"))
	id := s.createNPC(t, "Mira", "Herbalist")

	s.llm.SetResponse("Welcome, traveler. Mind the nettles.")
	rr, body := s.do(t, http.MethodPost, "/talk_to_npc", map[string]any{
		"npc_id":       id,
		"player_input": "Hello there!",
		"mood":         "Happy",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "Welcome, traveler. Mind the nettles.", body["response"])

	turns := s.store.Turns()
	require.Len(t, turns, 1)
	assert.Equal(t, "Hello there!", turns[0].PlayerInput)
	assert.Equal(t, "Happy", turns[0].Mood)

	rec := s.store.GetPersona(context.Background(), id)
	assert.Equal(t, 1, rec.NPC.InteractionCount)

	// The cached context carries the last exchange.
	rr, body = s.do(t, http.MethodGet, "/get_npc_context/"+id, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	ctxMap, ok := body["context"].(map[string]any)
	require.True(t, ok, "context should be an object: %v", body)
	assert.Equal(t, id, ctxMap["npc_id"])
	assert.Equal(t, "Hello there!", ctxMap["last_player_input"])
	assert.Contains(t, ctxMap["relationship_context"], "met 1 times")

	snapshot, ok := s.cache.Get(context.Background(), id)
	require.True(t, ok)
	assert.Equal(t, "Hello there!", snapshot.Extra["last_player_input"])
	assert.Equal(t, "Happy", snapshot.Extra["last_mood"])

	rr, body = s.do(t, http.MethodGet, "/get_conversation_summary/"+id, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, body["summary"], "Conversation Summary with Mira")
	assert.Contains(t, body["summary"], "Total Interactions: 1")

	rr, body = s.do(t, http.MethodGet, "/get_npc_summary/"+id, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, body["summary"], "**Mira**")
	assert.Contains(t, body["summary"], "Riverside")
}

func TestRouter_TalkRelationshipFollowsStoredTurns(t *testing.T) {
	s := newTestServer(t)
	s.llm.SetGenerateResponseError(errors.New("enhancement unavailable"))
	id := s.createNPC(t, "Greta", "Blacksmith")
	s.llm.SetResponse("Aye.")

	for i, input := range []string{"Hello", "Any work?", "Nice hammer", "Farewell"} {
		rr, _ := s.do(t, http.MethodPost, "/talk_to_npc", chat.TalkRequest{NPCID: id, PlayerInput: input, Mood: "Happy"})
		require.Equal(t, http.StatusOK, rr.Code, "turn %d: %s", i+1, rr.Body.String())
	}

	calls := s.llm.Calls()
	// One failed enhancement call, then one call per turn.
	require.Len(t, calls, 5)
	prompt := func(call services.GenerateResponseCall) string {
		var sb strings.Builder
		for _, m := range call.Messages {
			sb.WriteString(m.Content)
		}
		return sb.String()
	}

	assert.Contains(t, prompt(calls[1]), contextcache.FirstMeeting)
	last := prompt(calls[4])
	assert.NotContains(t, last, contextcache.FirstMeeting)
	assert.Contains(t, last, "You are acquaintance (met 3 times)")

	snapshot, ok := s.cache.Get(context.Background(), id)
	require.True(t, ok)
	assert.Equal(t, "You are acquaintance (met 4 times). Last mood: Happy", snapshot.RelationshipContext)
	assert.Equal(t, []string{contextcache.PatternPositive}, snapshot.ConversationPatterns)
	assert.Equal(t, "Farewell", snapshot.Extra["last_player_input"])
}

func TestRouter_TalkKeepsEmptyResponseKey(t *testing.T) {
	s := newTestServer(t)
	s.llm.SetGenerateResponseError(errors.New("enhancement unavailable"))
	id := s.createNPC(t, "Tobin", "Farmer")
	s.llm.SetResponse("   ")

	rr, body := s.do(t, http.MethodPost, "/talk_to_npc", chat.TalkRequest{NPCID: id, PlayerInput: "Well?"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, body["success"])
	require.Contains(t, body, "response")
	assert.Equal(t, "", body["response"])
}

func TestRouter_TalkFallsBackWhenModelFails(t *testing.T) {
	s := newTestServer(t)
	s.llm.SetGenerateResponseError(errors.New("timeout"))
	id := s.createNPC(t, "Oren", "Guard")

	rr, body := s.do(t, http.MethodPost, "/talk_to_npc", map[string]any{
		"npc_id":       id,
		"player_input": "Open the gate.",
	})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, conversation.Fallback("Oren"), body["response"])
}

func TestRouter_TalkValidation(t *testing.T) {
	s := newTestServer(t)

	rr, body := s.do(t, http.MethodPost, "/talk_to_npc", map[string]any{"npc_id": "npc_missing", "player_input": "hi"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "NPC not found", body["error"])

	rr, body = s.do(t, http.MethodPost, "/talk_to_npc", map[string]any{"npc_id": "npc_missing", "player_input": "   "})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, body["error"], "player_input")

	rr, _ = s.do(t, http.MethodPost, "/talk_to_npc", map[string]any{"player_input": "hi"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, s.llm.Calls(), "no completion for rejected requests")
}

func TestRouter_Search(t *testing.T) {
	s := newTestServer(t)
	s.llm.SetGenerateResponseError(errors.New("offline"))
	s.createNPC(t, "Greta", "Blacksmith")
	s.createNPC(t, "Hans", "Blacksmith")
	s.createNPC(t, "Lyra", "Herbalist")

	rr, body := s.do(t, http.MethodPost, "/search_npcs", map[string]any{"query": "blacksmith", "limit": 1})
	require.Equal(t, http.StatusOK, rr.Code)
	npcs, ok := body["npcs"].([]any)
	require.True(t, ok)
	require.Len(t, npcs, 1)
	hit := npcs[0].(map[string]any)
	assert.Equal(t, "Greta", hit["name"])
	assert.Equal(t, "Blacksmith", hit["profession"])
	assert.Equal(t, "Riverside", hit["location"])
	assert.NotNil(t, hit["npc_data"])

	rr, body = s.do(t, http.MethodPost, "/search_npcs", map[string]any{"query": "wizard"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []any{}, body["npcs"])

	rr, _ = s.do(t, http.MethodPost, "/search_npcs", map[string]any{"query": ""})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouter_ClearContext(t *testing.T) {
	s := newTestServer(t)
	s.llm.SetGenerateResponseError(errors.New("offline"))
	id := s.createNPC(t, "Tobin", "Baker")

	_, ok := s.cache.Get(context.Background(), id)
	require.True(t, ok)
	require.Len(t, s.cache.All(), 1)

	rr, body := s.do(t, http.MethodPost, "/clear_npc_context/"+id, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, body["success"])
	assert.Empty(t, s.cache.All())
	assert.Equal(t, []string{id}, s.events.cleared)

	// Clearing twice is still a success.
	rr, _ = s.do(t, http.MethodPost, "/clear_npc_context/"+id, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouter_NotFoundAndMethod(t *testing.T) {
	s := newTestServer(t)

	rr, body := s.do(t, http.MethodGet, "/get_npc_summary/npc_nobody", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "NPC not found", body["error"])

	rr, body = s.do(t, http.MethodGet, "/get_npc_context/npc_nobody", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, false, body["success"])

	rr, body = s.do(t, http.MethodGet, "/get_conversation_summary/npc_nobody", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, conversation.NoHistory, body["summary"])

	rr, body = s.do(t, http.MethodGet, "/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Route not found", body["error"])

	rr, body = s.do(t, http.MethodGet, "/create_npc", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, "Method not allowed", body["error"])

	rr, _ = s.do(t, http.MethodGet, "/events/npc_any", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code, "events route requires redis")
}

func TestEventsHandler_StreamsPersonaEvents(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := testLogger()
	store := storage.NewMockStorage()
	llm := services.NewMockLLMAPI()
	handler := NewRouter(Dependencies{
		Generator: npc.NewGenerator(store, llm, actor.DefaultWorldSettings(), 0.8, logger),
		Searcher:  store,
		Composer:  conversation.NewComposer(store, llm, conversation.DefaultOptions(), logger),
		Contexts:  contextcache.New(store, logger),
		Store:     store,
		LLM:       llm,
		Redis:     client,
	}, logger)

	srv := httptest.NewServer(handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events/npc_0000beef", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() (string, string) {
		var name, data string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			switch {
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "" && name != "":
				return name, data
			}
		}
	}

	name, data := readEvent()
	assert.Equal(t, "connected", name)
	assert.Contains(t, data, "npc_0000beef")

	broadcaster := events.NewBroadcaster(client, logger)
	require.Eventually(t, func() bool {
		return len(mr.PubSubChannels(events.Channel("npc_0000beef"))) == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, broadcaster.PublishDialogue(ctx, "npc_0000beef", "hi", "well met", "Happy"))

	name, data = readEvent()
	assert.Equal(t, string(events.EventTypeDialogue), name)
	var event events.Event
	require.NoError(t, json.Unmarshal([]byte(data), &event))
	assert.Equal(t, "npc_0000beef", event.NPCID)
	assert.Equal(t, "well met", event.Data["response"])
}
