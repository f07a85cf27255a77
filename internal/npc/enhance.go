package npc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jwebster45206/chronicle-npc/pkg/actor"
	"github.com/jwebster45206/chronicle-npc/pkg/chat"
	"github.com/jwebster45206/chronicle-npc/pkg/prompts"
)

// rawPreviewLimit bounds how much of a malformed reply is logged.
const rawPreviewLimit = 200

// ErrEmptyEnhancement is returned when the model replies with nothing.
var ErrEmptyEnhancement = errors.New("empty response from LLM")

// Enhancement is the model's elaboration of a persona.
type Enhancement struct {
	EnhancedBackstory  *string        `json:"enhanced_backstory"` // nil when the key is absent
	PersonalityDetails string         `json:"personality_details"`
	Relationships      map[string]any `json:"relationships"`
	Secrets            stringList     `json:"secrets"`
	DialogueStyle      string         `json:"dialogue_style"`
	Motivations        string         `json:"motivations"`
	Fears              string         `json:"fears"`
}

// stringList accepts either a JSON list or a single string.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*l = []string{}
		} else {
			*l = []string{single}
		}
		return nil
	}
	var items []any
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("secrets must be a list: %w", err)
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		} else if it != nil {
			out = append(out, fmt.Sprint(it))
		}
	}
	*l = out
	return nil
}

// Enhance asks the LLM to elaborate the persona. It returns an error when
// the call fails or the reply cannot be parsed; the persona is not touched.
func (g *Generator) Enhance(ctx context.Context, npc *actor.Persona, world *actor.WorldSettings, behavior *actor.Behavior, customInstructions string) (*Enhancement, error) {
	messages, err := prompts.BuildEnhancement(npc, world, behavior, customInstructions)
	if err != nil {
		return nil, err
	}

	resp, err := g.llmService.GetChatResponse(ctx, messages, chat.GenerateOptions{Temperature: g.temperature})
	if err != nil {
		return nil, fmt.Errorf("AI enhancement failed: %w", err)
	}

	content := strings.TrimSpace(resp.Message)
	if content == "" {
		return nil, ErrEmptyEnhancement
	}

	enh, err := ParseEnhancement(content)
	if err != nil {
		g.logger.Warn("Failed to parse NPC enhancement",
			"error", err,
			"raw_response", prompts.Truncate(content, rawPreviewLimit))
		return nil, err
	}
	return enh, nil
}

// ParseEnhancement decodes a model reply, tolerating a surrounding code
// fence.
func ParseEnhancement(content string) (*Enhancement, error) {
	content = prompts.StripCodeFence(strings.TrimSpace(content))
	var enh Enhancement
	if err := json.Unmarshal([]byte(content), &enh); err != nil {
		return nil, fmt.Errorf("JSON parsing failed: %w", err)
	}
	return &enh, nil
}

// ApplyTo copies the enhancement onto npc. A present backstory replaces the
// original, even when empty; relationships are merged.
func (e *Enhancement) ApplyTo(npc *actor.Persona) {
	if e.EnhancedBackstory != nil {
		npc.Backstory = *e.EnhancedBackstory
	}
	npc.PersonalityDetails = e.PersonalityDetails
	npc.DialogueStyle = e.DialogueStyle
	npc.Motivations = e.Motivations
	npc.Fears = e.Fears
	if e.Secrets != nil {
		npc.Secrets = []string(e.Secrets)
	}

	if npc.Relationships == nil {
		npc.Relationships = map[string]string{}
	}
	for k, v := range e.Relationships {
		switch val := v.(type) {
		case string:
			npc.Relationships[k] = val
		case nil:
		default:
			npc.Relationships[k] = fmt.Sprint(val)
		}
	}
	npc.Normalize()
}
