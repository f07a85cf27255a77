package vectorstore

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"
)

type memoryEntry struct {
	doc    Document
	vector []float32
}

type memoryCollection struct {
	entries []*memoryEntry
	index   map[string]int
}

// MemoryStore is an in-process Store ranking by cosine similarity. Documents
// keep their insertion order, which breaks score ties.
type MemoryStore struct {
	collections map[string]*memoryCollection
	mu          sync.RWMutex
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memoryCollection)}
}

func (s *MemoryStore) Upsert(ctx context.Context, collection string, docs []Document, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return fmt.Errorf("got %d documents but %d vectors", len(docs), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		c = &memoryCollection{index: make(map[string]int)}
		s.collections[collection] = c
	}
	for i, d := range docs {
		e := &memoryEntry{
			doc:    Document{ID: d.ID, Text: d.Text, Metadata: cloneMetadata(d.Metadata)},
			vector: slices.Clone(vectors[i]),
		}
		if pos, exists := c.index[d.ID]; exists {
			c.entries[pos] = e
			continue
		}
		c.index[d.ID] = len(c.entries)
		c.entries = append(c.entries, e)
	}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, collection string, ids ...string) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return []Document{}, nil
	}
	docs := make([]Document, 0, len(ids))
	for _, id := range ids {
		if pos, exists := c.index[id]; exists {
			docs = append(docs, copyDocument(c.entries[pos].doc))
		}
	}
	return docs, nil
}

func (s *MemoryStore) Query(ctx context.Context, collection string, vector []float32, filter Filter, limit int) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok || limit <= 0 {
		return []Match{}, nil
	}

	matches := make([]Match, 0, len(c.entries))
	for _, e := range c.entries {
		if !filter.matches(e.doc.Metadata) {
			continue
		}
		matches = append(matches, Match{
			Document: copyDocument(e.doc),
			Score:    cosine(vector, e.vector),
		})
	}
	slices.SortStableFunc(matches, func(a, b Match) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *MemoryStore) Scroll(ctx context.Context, collection string, filter Filter, limit int) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := []Document{}
	c, ok := s.collections[collection]
	if !ok {
		return docs, nil
	}
	for _, e := range c.entries {
		if len(docs) >= limit {
			break
		}
		if filter.matches(e.doc.Metadata) {
			docs = append(docs, copyDocument(e.doc))
		}
	}
	return docs, nil
}

// Latest scans every matching document before ordering, so the result does
// not depend on insertion order. Unparseable timestamps sort last.
func (s *MemoryStore) Latest(ctx context.Context, collection string, filter Filter, timeKey string, limit int) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok || limit <= 0 {
		return []Document{}, nil
	}

	type stamped struct {
		doc Document
		at  time.Time
	}
	found := make([]stamped, 0, len(c.entries))
	for _, e := range c.entries {
		if !filter.matches(e.doc.Metadata) {
			continue
		}
		var at time.Time
		if raw, ok := e.doc.Metadata[timeKey].(string); ok {
			at, _ = time.Parse(time.RFC3339Nano, raw)
		}
		found = append(found, stamped{doc: e.doc, at: at})
	}
	slices.SortStableFunc(found, func(a, b stamped) int {
		return b.at.Compare(a.at)
	})

	docs := make([]Document, 0, min(limit, len(found)))
	for _, f := range found[:min(limit, len(found))] {
		docs = append(docs, copyDocument(f.doc))
	}
	return docs, nil
}

func (s *MemoryStore) SetMetadata(ctx context.Context, collection, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	pos, ok := c.index[id]
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	meta := cloneMetadata(c.entries[pos].doc.Metadata)
	for k, v := range fields {
		meta[k] = v
	}
	c.entries[pos].doc.Metadata = meta
	return nil
}

func (s *MemoryStore) Count(ctx context.Context, collection string, filter Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return 0, nil
	}
	n := 0
	for _, e := range c.entries {
		if filter.matches(e.doc.Metadata) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ListCollections(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func copyDocument(d Document) Document {
	d.Metadata = cloneMetadata(d.Metadata)
	return d
}

// cosine returns the cosine similarity of a and b, 0 when either is empty
// or their lengths differ.
func cosine(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
