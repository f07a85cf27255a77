// Package contextcache keeps a per-persona digest of the relationship with
// the player for the lifetime of a server process.
package contextcache

import (
	"context"
	"encoding/json"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/jwebster45206/chronicle-npc/pkg/storage"
)

const (
	digestTurns  = 5
	patternTurns = 10
	// moodTurns is read when the turn count is unavailable.
	moodTurns = 20
)

// Snapshot is the cached context for one persona.
type Snapshot struct {
	NPCID                string         `json:"npc_id"`
	RelationshipContext  string         `json:"relationship_context"`
	ConversationSummary  string         `json:"conversation_summary"`
	ConversationPatterns []string       `json:"conversation_patterns"`
	LastUpdated          time.Time      `json:"last_updated"`
	SessionStart         time.Time      `json:"session_start"`
	Extra                map[string]any `json:"-"` // caller fields from Update
}

// Snapshot field keys Update writes through to the built fields.
const (
	KeyRelationshipContext  = "relationship_context"
	KeyConversationSummary  = "conversation_summary"
	KeyConversationPatterns = "conversation_patterns"
)

// MarshalJSON renders one flat mapping: built fields plus Extra keys.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Extra)+6)
	maps.Copy(out, s.Extra)
	out["npc_id"] = s.NPCID
	out[KeyRelationshipContext] = s.RelationshipContext
	out[KeyConversationSummary] = s.ConversationSummary
	out[KeyConversationPatterns] = s.ConversationPatterns
	out["last_updated"] = s.LastUpdated
	out["session_start"] = s.SessionStart
	return json.Marshal(out)
}

// set writes one Update field, reporting false for keys that are not built
// fields or values of the wrong type.
func (s *Snapshot) set(key string, value any) bool {
	switch key {
	case KeyRelationshipContext:
		v, ok := value.(string)
		if ok {
			s.RelationshipContext = v
		}
		return ok
	case KeyConversationSummary:
		v, ok := value.(string)
		if ok {
			s.ConversationSummary = v
		}
		return ok
	case KeyConversationPatterns:
		switch v := value.(type) {
		case []string:
			s.ConversationPatterns = slices.Clone(v)
			return true
		case []any:
			patterns := make([]string, 0, len(v))
			for _, p := range v {
				str, ok := p.(string)
				if !ok {
					return false
				}
				patterns = append(patterns, str)
			}
			s.ConversationPatterns = patterns
			return true
		}
	}
	return false
}

func (s *Snapshot) clone() *Snapshot {
	c := *s
	c.ConversationPatterns = slices.Clone(s.ConversationPatterns)
	c.Extra = maps.Clone(s.Extra)
	return &c
}

// Cache holds snapshots keyed by persona id. It is safe for concurrent use.
type Cache struct {
	storage storage.Storage
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*Snapshot
}

// New creates an empty cache reading from storage.
func New(storage storage.Storage, logger *slog.Logger) *Cache {
	return &Cache{
		storage: storage,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]*Snapshot),
	}
}

// Get returns the persona's snapshot, building and caching it on first
// access. The second return is false when the persona does not exist;
// nothing is cached in that case.
func (c *Cache) Get(ctx context.Context, npcID string) (*Snapshot, bool) {
	c.mu.Lock()
	if s, ok := c.entries[npcID]; ok {
		c.mu.Unlock()
		return s.clone(), true
	}
	c.mu.Unlock()

	built := c.build(ctx, npcID)
	if built == nil {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another request may have built it meanwhile; the first one wins.
	if s, ok := c.entries[npcID]; ok {
		return s.clone(), true
	}
	c.entries[npcID] = built
	return built.clone(), true
}

// Update merges fields into the persona's snapshot and refreshes its
// timestamp. Keys naming a built field overwrite it; anything else lands in
// Extra. It reports false when the persona does not exist.
func (c *Cache) Update(ctx context.Context, npcID string, fields map[string]any) bool {
	if _, ok := c.Get(ctx, npcID); !ok {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[npcID]
	if !ok {
		// Cleared between the two steps.
		return false
	}
	for k, v := range fields {
		if s.set(k, v) {
			continue
		}
		if s.Extra == nil {
			s.Extra = make(map[string]any, len(fields))
		}
		s.Extra[k] = v
	}
	s.LastUpdated = c.now()
	return true
}

// Refresh recomputes the relationship descriptor, digest and patterns from
// storage, keeping the session start and Extra of a cached entry. It
// reports false when the persona does not exist.
func (c *Cache) Refresh(ctx context.Context, npcID string) bool {
	built := c.build(ctx, npcID)
	if built == nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.entries[npcID]; ok {
		built.SessionStart = s.SessionStart
		built.Extra = s.Extra
	}
	c.entries[npcID] = built
	return true
}

// Clear evicts the persona's snapshot and reports whether one existed.
func (c *Cache) Clear(npcID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[npcID]
	delete(c.entries, npcID)
	return ok
}

// All returns a copy of every cached snapshot.
func (c *Cache) All() map[string]*Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]*Snapshot, len(c.entries))
	for id, s := range c.entries {
		out[id] = s.clone()
	}
	return out
}

func (c *Cache) build(ctx context.Context, npcID string) *Snapshot {
	if c.storage.GetPersona(ctx, npcID) == nil {
		return nil
	}

	now := c.now()
	recent := c.storage.TurnsForPersona(ctx, npcID, max(patternTurns, moodTurns))

	count, err := c.storage.CountTurns(ctx, npcID)
	if err != nil {
		c.logger.Warn("Failed to count dialogues, using recent history", "npc_id", npcID, "error", err)
		count = len(recent)
	}

	lastMood := ""
	if len(recent) > 0 {
		lastMood = recent[0].Mood
	}

	return &Snapshot{
		NPCID:                npcID,
		RelationshipContext:  Descriptor(count, lastMood),
		ConversationSummary:  Digest(recent[:min(digestTurns, len(recent))], now),
		ConversationPatterns: DetectPatterns(recent[:min(patternTurns, len(recent))]),
		LastUpdated:          now,
		SessionStart:         now,
	}
}
