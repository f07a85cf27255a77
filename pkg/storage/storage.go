package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jwebster45206/chronicle-npc/pkg/actor"
	"github.com/jwebster45206/chronicle-npc/pkg/dialogue"
)

// ErrPersonaNotFound is returned when a persona id does not resolve.
var ErrPersonaNotFound = errors.New("npc not found")

// Storage defines persona and dialogue persistence.
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// StorePersona persists a persona with its world and behavior, assigning
	// an id first when the persona has none. Returns the id.
	StorePersona(ctx context.Context, npc *actor.Persona, world *actor.WorldSettings, behavior *actor.Behavior) (string, error)

	// GetPersona returns the stored record, or nil when it does not exist or
	// cannot be read.
	GetPersona(ctx context.Context, npcID string) *actor.Record

	// SearchPersonas returns up to limit personas most similar to query.
	SearchPersonas(ctx context.Context, query string, limit int) ([]actor.Record, error)

	// RecordInteraction bumps the persona's interaction counter and stamps
	// the interaction time.
	RecordInteraction(ctx context.Context, npcID string, at time.Time) error

	// StoreTurn persists one dialogue turn, assigning its id.
	StoreTurn(ctx context.Context, turn *dialogue.Turn) error

	// TurnsForPersona returns up to limit turns for a persona, newest first.
	// Retrieval problems yield an empty slice.
	TurnsForPersona(ctx context.Context, npcID string, limit int) []dialogue.Turn

	// CountTurns returns the number of stored turns for a persona.
	CountTurns(ctx context.Context, npcID string) (int, error)
}
