package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/chronicle-npc/pkg/chat"
)

// fakeAPI mimics the NPC routes closely enough to drive the runner.
type fakeAPI struct {
	mu      sync.Mutex
	inputs  []string
	cleared int
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	reply := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	mux.HandleFunc("POST /create_npc", func(w http.ResponseWriter, r *http.Request) {
		var req chat.CreateNPCRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Validate() != nil {
			reply(w, http.StatusBadRequest, chat.Envelope{Error: "bad request"})
			return
		}
		reply(w, http.StatusOK, chat.Envelope{Success: true, NPCID: "npc_0000abcd"})
	})
	mux.HandleFunc("POST /talk_to_npc", func(w http.ResponseWriter, r *http.Request) {
		var req chat.TalkRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.NPCID != "npc_0000abcd" {
			reply(w, http.StatusNotFound, chat.Envelope{Error: "NPC not found"})
			return
		}
		f.mu.Lock()
		f.inputs = append(f.inputs, req.PlayerInput)
		f.mu.Unlock()
		reply(w, http.StatusOK, chat.Envelope{Success: true, Response: "Well met, traveler. Mind the forge."})
	})
	mux.HandleFunc("POST /search_npcs", func(w http.ResponseWriter, r *http.Request) {
		var req chat.SearchRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		hits := []chat.NPCHit{}
		if strings.Contains(req.Query, "smith") {
			hits = append(hits, chat.NPCHit{NPCID: "npc_0000abcd", Name: "Greta"})
		}
		reply(w, http.StatusOK, chat.SearchResponse{Success: true, NPCs: hits})
	})
	mux.HandleFunc("POST /clear_npc_context/{npc_id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.cleared++
		f.mu.Unlock()
		reply(w, http.StatusOK, chat.Envelope{Success: true})
	})
	mux.HandleFunc("GET /get_npc_context/{npc_id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		n := len(f.inputs)
		f.mu.Unlock()
		reply(w, http.StatusOK, chat.Envelope{Success: true, Context: map[string]any{
			"npc_id":                r.PathValue("npc_id"),
			"relationship_context":  fmt.Sprintf("You are recent acquaintance (met %d times). Last mood: happy", n),
			"conversation_patterns": []string{"Usually positive interactions"},
		}})
	})
	mux.HandleFunc("GET /get_conversation_summary/{npc_id}", func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, chat.Envelope{Success: true, Summary: "Recent conversations with Greta:\n1. Player: Hello..."})
	})
	return mux
}

func newTestRunner(t *testing.T) (*Runner, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{}
	server := httptest.NewServer(api.handler())
	t.Cleanup(server.Close)
	return NewRunner(server.URL + "/"), api
}

func intPtr(i int) *int    { return &i }
func boolPtr(b bool) *bool { return &b }

func testSuite() TestSuite {
	return TestSuite{
		Name: "forge visit",
		NPC:  &chat.CreateNPCRequest{CharacterParams: map[string]any{"name": "Greta"}},
		Steps: []TestStep{
			{Name: "greet", PlayerInput: "Hello", Expectations: Expectations{
				ResponseContains:  []string{"TRAVELER"},
				ResponseMinLength: intPtr(5),
			}},
			{Name: "search", Action: ActionSearch, Query: "smith", Expectations: Expectations{Found: boolPtr(true)}},
			{Name: "clear", Action: ActionClearContext, Expectations: Expectations{
				RelationshipContains: "Recent Acquaintance",
				PatternsContain:      []string{"Usually positive interactions"},
			}},
			{Name: "summary", Action: ActionSummary, Expectations: Expectations{ResponseRegex: `1\. Player: Hello`}},
		},
	}
}

func TestRunSuite_Passes(t *testing.T) {
	r, api := newTestRunner(t)

	result, err := r.RunSuite(context.Background(), testSuite())
	require.NoError(t, err)
	assert.Equal(t, "npc_0000abcd", result.NPCID)
	require.Len(t, result.Results, 4)
	for _, step := range result.Results {
		assert.True(t, step.Success, step.StepName)
	}
	assert.Equal(t, []string{"Hello"}, api.inputs)
	assert.Equal(t, 1, api.cleared)
}

func TestRunSuite_FailingExpectations(t *testing.T) {
	suite := testSuite()
	suite.Steps = []TestStep{
		{Name: "too short", PlayerInput: "Hi", Expectations: Expectations{ResponseMaxLength: intPtr(3)}},
		{Name: "forbidden word", PlayerInput: "Hi", Expectations: Expectations{ResponseNotContains: []string{"forge"}}},
		{Name: "not found", Action: ActionSearch, Query: "baker", Expectations: Expectations{Found: boolPtr(true)}},
		{Name: "bogus", Action: "dance"},
	}

	t.Run("continue runs every step", func(t *testing.T) {
		r, _ := newTestRunner(t)
		result, err := r.RunSuite(context.Background(), suite)
		require.Error(t, err)
		require.Len(t, result.Results, 4)
		assert.Contains(t, result.Results[0].Error.Error(), "length <= 3")
		assert.Contains(t, result.Results[1].Error.Error(), "NOT contain 'forge'")
		assert.Contains(t, result.Results[2].Error.Error(), "expected found=true")
		assert.Contains(t, result.Results[3].Error.Error(), `unknown action "dance"`)
	})

	t.Run("exit stops at the first failure", func(t *testing.T) {
		r, _ := newTestRunner(t)
		r.ErrorHandlingMode = ErrorHandlingExit
		result, err := r.RunSuite(context.Background(), suite)
		require.Error(t, err)
		assert.Len(t, result.Results, 1)
	})
}

func TestRunSuite_CreateFails(t *testing.T) {
	r, _ := newTestRunner(t)

	_, err := r.RunSuite(context.Background(), TestSuite{Name: "no npc"})
	require.Error(t, err)

	suite := TestSuite{Name: "empty params", NPC: &chat.CreateNPCRequest{}}
	result, err := r.RunSuite(context.Background(), suite)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "returned 400")
	assert.Empty(t, result.NPCID)
}

func TestLoadTestSuiteWithExpansion(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("a.json", `{"name": "A", "npc": {"character_params": {"name": "Ana"}}, "steps": [{"player_input": "hi"}]}`)
	write("b.json", `{"name": "B", "npc": {"character_params": {"name": "Bo"}}}`)
	write("all.json", `{"name": "All", "cases": ["a.json", "b.json"]}`)
	write("broken.json", `{"name": "Broken", "cases": ["missing.json"]}`)

	jobs, err := LoadTestSuiteWithExpansion(filepath.Join(dir, "all.json"), dir)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "A", jobs[0].Name)
	assert.Equal(t, "hi", jobs[0].Suite.Steps[0].PlayerInput)
	assert.Equal(t, "B", jobs[1].Name)

	_, err = LoadTestSuiteWithExpansion(filepath.Join(dir, "broken.json"), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.json")
}
