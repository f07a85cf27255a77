package npc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jwebster45206/chronicle-npc/internal/services"
	"github.com/jwebster45206/chronicle-npc/pkg/actor"
	"github.com/jwebster45206/chronicle-npc/pkg/storage"
)

// EventPublisher announces newly created personas.
type EventPublisher interface {
	PublishNPCCreated(ctx context.Context, npcID, name string) error
}

// Generator creates personas: builds them from request mappings, asks the
// LLM to flesh them out and stores the result.
type Generator struct {
	storage       storage.Storage
	llmService    services.LLMService
	worldDefaults actor.WorldSettings
	temperature   float64
	events        EventPublisher
	logger        *slog.Logger
	now           func() time.Time
}

// NewGenerator creates a new persona generator
func NewGenerator(
	storage storage.Storage,
	llmService services.LLMService,
	worldDefaults actor.WorldSettings,
	temperature float64,
	logger *slog.Logger,
) *Generator {
	return &Generator{
		storage:       storage,
		llmService:    llmService,
		worldDefaults: worldDefaults,
		temperature:   temperature,
		logger:        logger,
		now:           time.Now,
	}
}

// SetEventPublisher enables npc.created events.
func (g *Generator) SetEventPublisher(p EventPublisher) {
	g.events = p
}

// GeneratePersona builds, enhances and stores a persona and returns its id.
// Invalid request mappings yield an *actor.ValidationError. Enhancement
// failures are not errors: the persona is stored as supplied.
func (g *Generator) GeneratePersona(ctx context.Context, characterParams, worldParams, behaviorParams map[string]any, customInstructions string) (string, error) {
	npc, err := actor.NewPersona(characterParams, g.now())
	if err != nil {
		return "", err
	}
	world, err := actor.NewWorldSettings(worldParams, g.worldDefaults)
	if err != nil {
		return "", err
	}
	behavior, err := actor.NewBehavior(behaviorParams)
	if err != nil {
		return "", err
	}

	enh, err := g.Enhance(ctx, npc, world, behavior, customInstructions)
	if err != nil {
		g.logger.Warn("Using basic NPC without AI enhancements", "name", npc.Name, "error", err)
	} else {
		enh.ApplyTo(npc)
		g.logger.Info("Enhanced NPC with AI-generated details", "name", npc.Name)
	}

	npcID, err := g.storage.StorePersona(ctx, npc, world, behavior)
	if err != nil {
		return "", fmt.Errorf("failed to store npc: %w", err)
	}

	if g.events != nil {
		if err := g.events.PublishNPCCreated(ctx, npcID, npc.Name); err != nil {
			g.logger.Warn("Failed to publish npc created event", "npc_id", npcID, "error", err)
		}
	}
	return npcID, nil
}
