package storage

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/jwebster45206/chronicle-npc/internal/vectorstore"
	"github.com/jwebster45206/chronicle-npc/pkg/actor"
	"github.com/jwebster45206/chronicle-npc/pkg/dialogue"
	"github.com/jwebster45206/chronicle-npc/pkg/storage"
)

// Document type markers stored in metadata.
const (
	TypePersona  = "npc_character"
	TypeDialogue = "dialogue"
)

// FilterKeys are the metadata keys queries filter on exactly.
var FilterKeys = []string{"npc_id", "type"}

// TimeKeys are the RFC 3339 metadata keys history is ordered by.
var TimeKeys = []string{timestampKey}

const timestampKey = "timestamp"

// Options names the collections and bounds the dialogue scan.
type Options struct {
	PersonaCollection  string
	DialogueCollection string
	// ScanLimit caps how many turns one history read returns.
	ScanLimit int
}

// VectorStorage implements Storage on a vector store: one collection of
// personas searchable by description, one of dialogue turns filterable by
// persona id.
type VectorStorage struct {
	store     vectorstore.Store
	personas  *vectorstore.Collection
	dialogues *vectorstore.Collection
	scanLimit int
	logger    *slog.Logger
	now       func() time.Time
}

// Ensure VectorStorage implements Storage interface
var _ storage.Storage = (*VectorStorage)(nil)

// NewVectorStorage creates the persona store. Collections are created on
// first write.
func NewVectorStorage(store vectorstore.Store, embedder vectorstore.Embedder, opts Options, logger *slog.Logger) *VectorStorage {
	if opts.PersonaCollection == "" {
		opts.PersonaCollection = "npc_characters"
	}
	if opts.DialogueCollection == "" {
		opts.DialogueCollection = "npc_dialogues"
	}
	if opts.ScanLimit <= 0 {
		opts.ScanLimit = 500
	}
	return &VectorStorage{
		store:     store,
		personas:  vectorstore.NewCollection(store, embedder, opts.PersonaCollection),
		dialogues: vectorstore.NewCollection(store, embedder, opts.DialogueCollection),
		scanLimit: opts.ScanLimit,
		logger:    logger,
		now:       time.Now,
	}
}

// Health and lifecycle methods

func (s *VectorStorage) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *VectorStorage) Close() error {
	if err := s.store.Close(); err != nil {
		s.logger.Error("Failed to close vector store", "error", err)
		return err
	}
	s.logger.Info("Vector store connection closed")
	return nil
}

// Persona operations

func (s *VectorStorage) StorePersona(ctx context.Context, npc *actor.Persona, world *actor.WorldSettings, behavior *actor.Behavior) (string, error) {
	if npc == nil || world == nil || behavior == nil {
		return "", errors.New("npc, world and behavior are required")
	}
	npc.EnsureID()
	npc.Normalize()
	behavior.Normalize()

	meta, err := personaMetadata(npc, world, behavior)
	if err != nil {
		return "", err
	}
	meta["created_at"] = s.now().Format(time.RFC3339Nano)

	doc := vectorstore.Document{
		ID:       npc.NPCID,
		Text:     SearchableText(npc, world, behavior),
		Metadata: meta,
	}
	if err := s.personas.AddDocuments(ctx, doc); err != nil {
		return "", fmt.Errorf("failed to store npc %s: %w", npc.NPCID, err)
	}

	s.logger.Info("NPC stored", "npc_id", npc.NPCID, "name", npc.Name)
	return npc.NPCID, nil
}

func (s *VectorStorage) GetPersona(ctx context.Context, npcID string) *actor.Record {
	docs, err := s.personas.Get(ctx, npcID)
	if err != nil {
		s.logger.Error("Error retrieving NPC", "npc_id", npcID, "error", err)
		return nil
	}
	if len(docs) == 0 {
		return nil
	}
	rec, err := decodeRecord(docs[0].Metadata)
	if err != nil {
		s.logger.Error("Error decoding NPC", "npc_id", npcID, "error", err)
		return nil
	}
	return rec
}

func (s *VectorStorage) SearchPersonas(ctx context.Context, query string, limit int) ([]actor.Record, error) {
	matches, err := s.personas.SimilaritySearch(ctx, query, limit, nil)
	if err != nil {
		return nil, fmt.Errorf("npc search failed: %w", err)
	}

	records := make([]actor.Record, 0, len(matches))
	for _, m := range matches {
		rec, err := decodeRecord(m.Metadata)
		if err != nil {
			s.logger.Warn("Skipping undecodable NPC in search results", "id", m.ID, "error", err)
			continue
		}
		records = append(records, *rec)
	}
	return records, nil
}

// RecordInteraction rewrites the stored persona data in place. The indexed
// text is not regenerated.
func (s *VectorStorage) RecordInteraction(ctx context.Context, npcID string, at time.Time) error {
	docs, err := s.personas.Get(ctx, npcID)
	if err != nil {
		return fmt.Errorf("failed to load npc %s: %w", npcID, err)
	}
	if len(docs) == 0 {
		return fmt.Errorf("%s: %w", npcID, storage.ErrPersonaNotFound)
	}
	rec, err := decodeRecord(docs[0].Metadata)
	if err != nil {
		return fmt.Errorf("failed to decode npc %s: %w", npcID, err)
	}

	rec.NPC.RecordInteraction(at)
	npcData, err := json.Marshal(rec.NPC)
	if err != nil {
		return fmt.Errorf("failed to marshal npc: %w", err)
	}
	err = s.personas.SetMetadata(ctx, npcID, map[string]any{"npc_data": string(npcData)})
	if err != nil {
		return fmt.Errorf("failed to update npc %s: %w", npcID, err)
	}
	return nil
}

// Dialogue operations

func (s *VectorStorage) StoreTurn(ctx context.Context, turn *dialogue.Turn) error {
	if turn.TurnID == "" {
		turn.TurnID = dialogue.NewTurnID()
	}
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to marshal dialogue: %w", err)
	}

	doc := vectorstore.Document{
		ID:   turn.TurnID,
		Text: turn.Text(),
		Metadata: map[string]any{
			"npc_id":        turn.NPCID,
			"type":          TypeDialogue,
			"dialogue_type": turn.DialogueType,
			"mood":          turn.Mood,
			timestampKey:    turn.Timestamp.UTC().Format(time.RFC3339Nano),
			"dialogue_data": string(data),
		},
	}
	if err := s.dialogues.AddDocuments(ctx, doc); err != nil {
		return fmt.Errorf("failed to store dialogue for %s: %w", turn.NPCID, err)
	}
	return nil
}

// TurnsForPersona returns the persona's newest turns by exact id match,
// newest first. The store orders by timestamp; the scan limit caps how many
// it returns.
func (s *VectorStorage) TurnsForPersona(ctx context.Context, npcID string, limit int) []dialogue.Turn {
	if limit <= 0 {
		return []dialogue.Turn{}
	}
	docs, err := s.dialogues.Latest(ctx, vectorstore.Filter{"npc_id": npcID}, timestampKey, min(limit, s.scanLimit))
	if err != nil {
		s.logger.Error("Error retrieving dialogue history", "npc_id", npcID, "error", err)
		return []dialogue.Turn{}
	}

	turns := make([]dialogue.Turn, 0, len(docs))
	for _, d := range docs {
		raw, ok := d.Metadata["dialogue_data"].(string)
		if !ok {
			continue
		}
		var t dialogue.Turn
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			s.logger.Warn("Skipping undecodable dialogue", "id", d.ID, "error", err)
			continue
		}
		if t.TurnID == "" {
			t.TurnID = d.ID
		}
		turns = append(turns, t)
	}

	slices.SortStableFunc(turns, func(a, b dialogue.Turn) int {
		return cmp.Compare(b.Timestamp.UnixNano(), a.Timestamp.UnixNano())
	})
	if len(turns) > limit {
		turns = turns[:limit]
	}
	return turns
}

func (s *VectorStorage) CountTurns(ctx context.Context, npcID string) (int, error) {
	n, err := s.dialogues.Count(ctx, vectorstore.Filter{"npc_id": npcID})
	if err != nil {
		return 0, fmt.Errorf("failed to count dialogues for %s: %w", npcID, err)
	}
	return n, nil
}

func personaMetadata(npc *actor.Persona, world *actor.WorldSettings, behavior *actor.Behavior) (map[string]any, error) {
	npcData, err := json.Marshal(npc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal npc: %w", err)
	}
	worldData, err := json.Marshal(world)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal world: %w", err)
	}
	behaviorData, err := json.Marshal(behavior)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal behavior: %w", err)
	}
	return map[string]any{
		"npc_id":        npc.NPCID,
		"name":          npc.Name,
		"type":          TypePersona,
		"faction":       npc.Faction,
		"profession":    npc.ProfessionRole,
		"location":      world.Location,
		"world_theme":   world.WorldTheme,
		"npc_data":      string(npcData),
		"world_data":    string(worldData),
		"behavior_data": string(behaviorData),
	}, nil
}

func decodeRecord(meta map[string]any) (*actor.Record, error) {
	rec := &actor.Record{
		NPC:      &actor.Persona{},
		World:    &actor.WorldSettings{},
		Behavior: &actor.Behavior{},
	}
	fields := []struct {
		key string
		dst any
	}{
		{"npc_data", rec.NPC},
		{"world_data", rec.World},
		{"behavior_data", rec.Behavior},
	}
	for _, f := range fields {
		raw, ok := meta[f.key].(string)
		if !ok {
			return nil, fmt.Errorf("missing %s", f.key)
		}
		if err := json.Unmarshal([]byte(raw), f.dst); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", f.key, err)
		}
	}
	rec.NPC.Normalize()
	rec.Behavior.Normalize()
	return rec, nil
}
