package storage

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jwebster45206/chronicle-npc/pkg/actor"
	"github.com/jwebster45206/chronicle-npc/pkg/dialogue"
)

// MockStorage is a mock implementation of Storage for testing
type MockStorage struct {
	mu        sync.RWMutex
	records   map[string]*actor.Record
	order     []string
	turns     []dialogue.Turn
	pingError error

	// Optional overrides
	StorePersonaFunc func(ctx context.Context, npc *actor.Persona, world *actor.WorldSettings, behavior *actor.Behavior) (string, error)
	StoreTurnFunc    func(ctx context.Context, turn *dialogue.Turn) error
	RecordFunc       func(ctx context.Context, npcID string, at time.Time) error
}

// Ensure MockStorage implements Storage interface
var _ Storage = (*MockStorage)(nil)

// NewMockStorage creates a new mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		records: make(map[string]*actor.Record),
		turns:   make([]dialogue.Turn, 0),
	}
}

// SetPingError configures the mock to fail on ping with the given error
func (m *MockStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// Ping mocks storage ping
func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

// Close mocks storage close
func (m *MockStorage) Close() error {
	return nil
}

// AddPersona adds a persona directly (for testing)
func (m *MockStorage) AddPersona(rec actor.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(rec)
}

func (m *MockStorage) put(rec actor.Record) {
	if _, exists := m.records[rec.NPC.NPCID]; !exists {
		m.order = append(m.order, rec.NPC.NPCID)
	}
	m.records[rec.NPC.NPCID] = &actor.Record{
		NPC:      rec.NPC.Clone(),
		World:    rec.World,
		Behavior: rec.Behavior,
	}
}

func (m *MockStorage) StorePersona(ctx context.Context, npc *actor.Persona, world *actor.WorldSettings, behavior *actor.Behavior) (string, error) {
	if m.StorePersonaFunc != nil {
		return m.StorePersonaFunc(ctx, npc, world, behavior)
	}
	if npc == nil || world == nil || behavior == nil {
		return "", errors.New("npc, world and behavior are required")
	}
	npc.EnsureID()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(actor.Record{NPC: npc, World: world, Behavior: behavior})
	return npc.NPCID, nil
}

func (m *MockStorage) GetPersona(ctx context.Context, npcID string) *actor.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[npcID]
	if !ok {
		return nil
	}
	return &actor.Record{NPC: rec.NPC.Clone(), World: rec.World, Behavior: rec.Behavior}
}

// SearchPersonas matches query words against name and profession, in
// insertion order.
func (m *MockStorage) SearchPersonas(ctx context.Context, query string, limit int) ([]actor.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	words := strings.Fields(strings.ToLower(query))
	results := make([]actor.Record, 0)
	for _, id := range m.order {
		if len(results) >= limit {
			break
		}
		rec := m.records[id]
		hay := strings.ToLower(rec.NPC.Name + " " + rec.NPC.ProfessionRole)
		for _, w := range words {
			if strings.Contains(hay, w) {
				results = append(results, actor.Record{NPC: rec.NPC.Clone(), World: rec.World, Behavior: rec.Behavior})
				break
			}
		}
	}
	return results, nil
}

func (m *MockStorage) RecordInteraction(ctx context.Context, npcID string, at time.Time) error {
	if m.RecordFunc != nil {
		return m.RecordFunc(ctx, npcID, at)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[npcID]
	if !ok {
		return fmt.Errorf("%s: %w", npcID, ErrPersonaNotFound)
	}
	rec.NPC.RecordInteraction(at)
	return nil
}

func (m *MockStorage) StoreTurn(ctx context.Context, turn *dialogue.Turn) error {
	if m.StoreTurnFunc != nil {
		return m.StoreTurnFunc(ctx, turn)
	}
	if turn.TurnID == "" {
		turn.TurnID = dialogue.NewTurnID()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, *turn)
	return nil
}

func (m *MockStorage) TurnsForPersona(ctx context.Context, npcID string, limit int) []dialogue.Turn {
	if limit <= 0 {
		return []dialogue.Turn{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]dialogue.Turn, 0)
	for _, t := range m.turns {
		if t.NPCID == npcID {
			result = append(result, t)
		}
	}
	slices.SortStableFunc(result, func(a, b dialogue.Turn) int {
		return cmp.Compare(b.Timestamp.UnixNano(), a.Timestamp.UnixNano())
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result
}

func (m *MockStorage) CountTurns(ctx context.Context, npcID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, t := range m.turns {
		if t.NPCID == npcID {
			n++
		}
	}
	return n, nil
}

// Turns returns every stored turn (for testing)
func (m *MockStorage) Turns() []dialogue.Turn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.turns)
}
