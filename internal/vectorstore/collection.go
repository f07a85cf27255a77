package vectorstore

import (
	"context"
	"fmt"
)

// Collection binds a store, an embedder and a collection name so callers
// can work in terms of text instead of vectors.
type Collection struct {
	store    Store
	embedder Embedder
	name     string
}

// NewCollection creates a collection handle. Nothing is created in the
// store until the first write.
func NewCollection(store Store, embedder Embedder, name string) *Collection {
	return &Collection{store: store, embedder: embedder, name: name}
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// AddDocuments embeds and stores documents.
func (c *Collection) AddDocuments(ctx context.Context, docs ...Document) error {
	if len(docs) == 0 {
		return nil
	}
	vectors := make([][]float32, len(docs))
	for i, d := range docs {
		if d.ID == "" {
			return fmt.Errorf("document %d has no id", i)
		}
		vec, err := c.embedder.Embed(ctx, d.Text)
		if err != nil {
			return fmt.Errorf("failed to embed document %s: %w", d.ID, err)
		}
		vectors[i] = vec
	}
	if err := c.store.Upsert(ctx, c.name, docs, vectors); err != nil {
		return fmt.Errorf("failed to store documents in %s: %w", c.name, err)
	}
	return nil
}

// Get returns the documents that exist among ids.
func (c *Collection) Get(ctx context.Context, ids ...string) ([]Document, error) {
	return c.store.Get(ctx, c.name, ids...)
}

// SimilaritySearch embeds query and returns the closest documents.
func (c *Collection) SimilaritySearch(ctx context.Context, query string, limit int, filter Filter) ([]Match, error) {
	vec, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return c.store.Query(ctx, c.name, vec, filter, limit)
}

// Scroll returns documents matching filter without ranking.
func (c *Collection) Scroll(ctx context.Context, filter Filter, limit int) ([]Document, error) {
	return c.store.Scroll(ctx, c.name, filter, limit)
}

// Latest returns the newest documents matching filter by timeKey.
func (c *Collection) Latest(ctx context.Context, filter Filter, timeKey string, limit int) ([]Document, error) {
	return c.store.Latest(ctx, c.name, filter, timeKey, limit)
}

// SetMetadata merges fields into one document's metadata.
func (c *Collection) SetMetadata(ctx context.Context, id string, fields map[string]any) error {
	return c.store.SetMetadata(ctx, c.name, id, fields)
}

// Count returns the number of documents matching filter.
func (c *Collection) Count(ctx context.Context, filter Filter) (int, error) {
	return c.store.Count(ctx, c.name, filter)
}
