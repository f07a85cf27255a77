package prompts

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"text/template"

	"github.com/jwebster45206/chronicle-npc/pkg/actor"
	"github.com/jwebster45206/chronicle-npc/pkg/chat"
	"github.com/jwebster45206/chronicle-npc/pkg/dialogue"
)

const (
	backstoryLimit      = 300
	defaultHistoryLimit = 3
)

var (
	funcs = template.FuncMap{
		"join": func(items []string) string { return strings.Join(items, ", ") },
	}
	enhancementTmpl = template.Must(template.New("enhancement").Funcs(funcs).Parse(EnhancementPrompt))
	dialogueTmpl    = template.Must(template.New("dialogue").Funcs(funcs).Parse(DialoguePrompt))
)

// Builder constructs chat messages for LLM interaction using a fluent interface.
// It renders the in-character dialogue prompt for one persona.
type Builder struct {
	record       *actor.Record
	context      actor.DialogueContext
	history      []dialogue.Turn
	extra        map[string]any
	playerInput  string
	rating       string
	historyLimit int
	messages     []chat.ChatMessage
}

// New creates a new prompt builder with default settings.
func New() *Builder {
	return &Builder{
		context:      actor.DefaultDialogueContext(),
		historyLimit: defaultHistoryLimit,
		messages:     make([]chat.ChatMessage, 0),
	}
}

// WithRecord sets the persona together with its world and behavior.
func (b *Builder) WithRecord(rec *actor.Record) *Builder {
	b.record = rec
	return b
}

// WithDialogueContext sets the situational context of the turn.
func (b *Builder) WithDialogueContext(dc actor.DialogueContext) *Builder {
	b.context = dc.WithDefaults()
	return b
}

// WithHistory sets the prior turns, most recent first.
func (b *Builder) WithHistory(turns []dialogue.Turn) *Builder {
	b.history = turns
	return b
}

// WithExtraContext sets free-form context rendered as indented JSON.
func (b *Builder) WithExtraContext(extra map[string]any) *Builder {
	b.extra = extra
	return b
}

// WithPlayerInput sets what the player said.
func (b *Builder) WithPlayerInput(input string) *Builder {
	b.playerInput = input
	return b
}

// WithContentRating adds rating guidance to the prompt.
func (b *Builder) WithContentRating(rating string) *Builder {
	b.rating = rating
	return b
}

// WithHistoryLimit sets how many prior exchanges are shown to the model.
func (b *Builder) WithHistoryLimit(limit int) *Builder {
	b.historyLimit = limit
	return b
}

// Build constructs and returns the final message array for LLM consumption.
func (b *Builder) Build() ([]chat.ChatMessage, error) {
	if b.record == nil || b.record.NPC == nil {
		return nil, fmt.Errorf("persona is required")
	}
	if b.record.World == nil || b.record.Behavior == nil {
		return nil, fmt.Errorf("world and behavior are required")
	}

	extra := b.extra
	if extra == nil {
		extra = map[string]any{}
	}
	extraJSON, err := json.MarshalIndent(extra, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("error encoding additional context: %w", err)
	}

	rating := ""
	if guidance := GetContentRatingPrompt(b.rating); guidance != "" {
		rating = b.rating + " (" + strings.TrimSpace(guidance) + ")"
	}

	data := struct {
		NPC         *actor.Persona
		World       *actor.WorldSettings
		Behavior    *actor.Behavior
		Context     actor.DialogueContext
		Backstory   string
		History     string
		Extra       string
		PlayerInput string
		Rating      string
	}{
		NPC:         b.record.NPC,
		World:       b.record.World,
		Behavior:    b.record.Behavior,
		Context:     b.context,
		Backstory:   Truncate(b.record.NPC.Backstory, backstoryLimit),
		History:     b.renderHistory(),
		Extra:       string(extraJSON),
		PlayerInput: b.playerInput,
		Rating:      rating,
	}

	var sb strings.Builder
	if err := dialogueTmpl.Execute(&sb, data); err != nil {
		return nil, fmt.Errorf("error rendering dialogue prompt: %w", err)
	}

	// Reset messages
	b.messages = []chat.ChatMessage{{
		Role:    chat.ChatRoleUser,
		Content: sb.String(),
	}}
	return b.messages, nil
}

// renderHistory shows the most recent exchanges, oldest first.
func (b *Builder) renderHistory() string {
	if len(b.history) == 0 || b.historyLimit <= 0 {
		return FirstConversation
	}
	recent := b.history[:min(b.historyLimit, len(b.history))]
	recent = slices.Clone(recent)
	slices.Reverse(recent)

	lines := make([]string, 0, len(recent))
	for _, t := range recent {
		lines = append(lines, fmt.Sprintf("Player: %s\n%s: %s", t.PlayerInput, b.record.NPC.Name, t.NPCResponse))
	}
	return strings.Join(lines, "\n")
}

// BuildEnhancement renders the persona enhancement request.
func BuildEnhancement(npc *actor.Persona, world *actor.WorldSettings, behavior *actor.Behavior, instructions string) ([]chat.ChatMessage, error) {
	if npc == nil || world == nil || behavior == nil {
		return nil, fmt.Errorf("persona, world and behavior are required")
	}
	if strings.TrimSpace(instructions) == "" {
		instructions = DefaultCustomInstructions
	}

	var sb strings.Builder
	err := enhancementTmpl.Execute(&sb, struct {
		NPC          *actor.Persona
		World        *actor.WorldSettings
		Behavior     *actor.Behavior
		Instructions string
	}{npc, world, behavior, instructions})
	if err != nil {
		return nil, fmt.Errorf("error rendering enhancement prompt: %w", err)
	}
	return []chat.ChatMessage{{Role: chat.ChatRoleUser, Content: sb.String()}}, nil
}

// Truncate shortens s to at most limit runes, marking the cut with "...".
func Truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
