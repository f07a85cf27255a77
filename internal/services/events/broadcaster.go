package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeNPCCreated     EventType = "npc.created"
	EventTypeDialogue       EventType = "npc.dialogue"
	EventTypeContextCleared EventType = "npc.context_cleared"
)

// Event represents a generic event structure
type Event struct {
	Type      EventType      `json:"type"`
	NPCID     string         `json:"npc_id"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Channel returns the pub/sub channel carrying events for one persona.
func Channel(npcID string) string {
	return fmt.Sprintf("npc-events:%s", npcID)
}

// Broadcaster publishes persona events to Redis Pub/Sub for SSE distribution
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
	now         func() time.Time
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
		now:         time.Now,
	}
}

// PublishNPCCreated publishes a npc.created event
func (b *Broadcaster) PublishNPCCreated(ctx context.Context, npcID, name string) error {
	return b.publish(ctx, Event{
		Type:  EventTypeNPCCreated,
		NPCID: npcID,
		Data: map[string]any{
			"name": name,
		},
	})
}

// PublishDialogue publishes a npc.dialogue event after a reply was produced
func (b *Broadcaster) PublishDialogue(ctx context.Context, npcID, playerInput, response, mood string) error {
	return b.publish(ctx, Event{
		Type:  EventTypeDialogue,
		NPCID: npcID,
		Data: map[string]any{
			"player_input": playerInput,
			"response":     response,
			"mood":         mood,
		},
	})
}

// PublishContextCleared publishes a npc.context_cleared event
func (b *Broadcaster) PublishContextCleared(ctx context.Context, npcID string) error {
	return b.publish(ctx, Event{
		Type:  EventTypeContextCleared,
		NPCID: npcID,
	})
}

// publish sends an event to the persona-specific channel
func (b *Broadcaster) publish(ctx context.Context, event Event) error {
	channel := Channel(event.NPCID)
	event.Timestamp = b.now()

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", event.Type)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
	)

	return nil
}
