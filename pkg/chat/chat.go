package chat

import (
	"fmt"
	"strings"
)

const (
	ChatRoleUser   = "user"      // Player
	ChatRoleAgent  = "assistant" // NPC
	ChatRoleSystem = "system"    // Prompt scaffolding
)

// ChatMessage represents a single chat message in the conversation
// This interface is defined by Ollama's API and is used to structure messages
// sent to the LLM.
type ChatMessage struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// GenerateOptions tunes a single completion call.
type GenerateOptions struct {
	Temperature float64 `json:"temperature"`
}

// ChatResponse is a single completion returned by an LLM service.
type ChatResponse struct {
	Message string `json:"message"`
}

// CreateNPCRequest is the body of POST /create_npc.
type CreateNPCRequest struct {
	CharacterParams map[string]any `json:"character_params"`
	WorldSettings   map[string]any `json:"world_settings"`
	BehaviorParams  map[string]any `json:"behavior_params"`
	CustomPrompt    string         `json:"custom_prompt,omitempty"`
}

func (r *CreateNPCRequest) Validate() error {
	if len(r.CharacterParams) == 0 {
		return fmt.Errorf("character_params is required")
	}
	return nil
}

// TalkRequest is the body of POST /talk_to_npc.
type TalkRequest struct {
	NPCID             string         `json:"npc_id"`
	PlayerInput       string         `json:"player_input"`
	DialogueType      string         `json:"dialogue_type,omitempty"`
	DialogueStage     string         `json:"dialogue_stage,omitempty"`
	Mood              string         `json:"mood,omitempty"`
	PlayerReputation  string         `json:"player_reputation,omitempty"`
	QuestState        string         `json:"quest_state,omitempty"`
	Conditions        []string       `json:"conditions,omitempty"`
	AdditionalContext map[string]any `json:"additional_context,omitempty"`
}

func (r *TalkRequest) Validate() error {
	if strings.TrimSpace(r.NPCID) == "" {
		return fmt.Errorf("npc_id is required")
	}
	if strings.TrimSpace(r.PlayerInput) == "" {
		return fmt.Errorf("player_input cannot be empty")
	}
	return nil
}

// SearchRequest is the body of POST /search_npcs.
type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

func (r *SearchRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return fmt.Errorf("query is required")
	}
	if r.Limit < 0 {
		return fmt.Errorf("limit must not be negative")
	}
	return nil
}

// Envelope is the JSON shape of every API response. Only the fields relevant
// to a route are set.
type Envelope struct {
	Success  bool           `json:"success"`
	Error    string         `json:"error,omitempty"`
	NPCID    string         `json:"npc_id,omitempty"`
	Response string         `json:"response,omitempty"`
	Summary  string         `json:"summary,omitempty"`
	Context  map[string]any `json:"context,omitempty"`
}

// TalkResponse is the body of a successful POST /talk_to_npc. The response
// key is present even when the reply is empty.
type TalkResponse struct {
	Success  bool   `json:"success"`
	Response string `json:"response"`
}

// SearchResponse is the body of a successful POST /search_npcs. The list is
// always present, empty when nothing matched.
type SearchResponse struct {
	Success bool     `json:"success"`
	NPCs    []NPCHit `json:"npcs"`
}

// NPCHit is one similarity search result.
type NPCHit struct {
	NPCID        string         `json:"npc_id"`
	Name         string         `json:"name"`
	Profession   string         `json:"profession"`
	Faction      string         `json:"faction"`
	Location     string         `json:"location"`
	NPCData      map[string]any `json:"npc_data"`
	WorldData    map[string]any `json:"world_data"`
	BehaviorData map[string]any `json:"behavior_data"`
}
