package dialogue

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/chronicle-npc/pkg/actor"
)

// IDPrefix is prepended to generated turn identifiers.
const IDPrefix = "dialogue_"

const (
	DefaultDialogueType = "CONVERSATION"
	DefaultMood         = "Neutral"
)

// Turn is one stored exchange between the player and a persona. Turns are
// immutable once stored.
type Turn struct {
	TurnID       string         `json:"turn_id,omitempty"`
	NPCID        string         `json:"npc_id"`
	PlayerInput  string         `json:"player_input"`
	NPCResponse  string         `json:"npc_response"`
	Context      map[string]any `json:"context"`
	DialogueType string         `json:"dialogue_type"`
	Mood         string         `json:"mood"`
	Timestamp    time.Time      `json:"timestamp"`
}

// NewTurnID generates a fresh turn identifier.
func NewTurnID() string {
	id := uuid.New()
	return IDPrefix + fmt.Sprintf("%x", id[:4])
}

// NewTurn records an exchange under the given dialogue context. The context
// snapshot keeps the situational fields plus any extra context the caller
// supplied.
func NewTurn(npcID, playerInput, npcResponse string, dc actor.DialogueContext, extra map[string]any, at time.Time) Turn {
	if extra == nil {
		extra = map[string]any{}
	}
	conditions := dc.Conditions
	if conditions == nil {
		conditions = []string{}
	}
	t := Turn{
		NPCID:       npcID,
		PlayerInput: playerInput,
		NPCResponse: npcResponse,
		Context: map[string]any{
			"dialogue_type":      dc.DialogueType,
			"dialogue_stage":     dc.DialogueStage,
			"mood":               dc.Mood,
			"player_reputation":  dc.PlayerReputation,
			"quest_state":        dc.QuestState,
			"conditions":         conditions,
			"additional_context": extra,
		},
		DialogueType: dc.DialogueType,
		Mood:         dc.Mood,
		Timestamp:    at,
	}
	if t.DialogueType == "" {
		t.DialogueType = DefaultDialogueType
	}
	if t.Mood == "" {
		t.Mood = DefaultMood
	}
	return t
}

// Text is the indexed form of a turn.
func (t Turn) Text() string {
	return fmt.Sprintf("Player: %s\nNPC: %s", t.PlayerInput, t.NPCResponse)
}
