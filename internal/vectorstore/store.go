// Package vectorstore stores text documents next to their embeddings and
// answers similarity and exact-match queries over them.
package vectorstore

import (
	"context"
	"errors"
	"maps"
)

// ErrNotFound is returned when a document id does not exist.
var ErrNotFound = errors.New("document not found")

// Document is one stored record: its text is what gets embedded, metadata
// travels alongside and can be filtered on.
type Document struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// Match is a document returned by a similarity query.
type Match struct {
	Document
	Score float32 `json:"score"`
}

// Filter is a conjunction of exact matches on metadata keys.
type Filter map[string]string

// matches reports whether metadata satisfies every condition in f.
func (f Filter) matches(metadata map[string]any) bool {
	for k, want := range f {
		got, ok := metadata[k].(string)
		if !ok || got != want {
			return false
		}
	}
	return true
}

// Store is a collection-oriented vector database.
type Store interface {
	// Upsert writes documents with their vectors, replacing any existing
	// document with the same id. Collections are created on first write.
	Upsert(ctx context.Context, collection string, docs []Document, vectors [][]float32) error

	// Get returns the documents that exist among ids, in the order given.
	Get(ctx context.Context, collection string, ids ...string) ([]Document, error)

	// Query returns up to limit documents most similar to vector, best first.
	Query(ctx context.Context, collection string, vector []float32, filter Filter, limit int) ([]Match, error)

	// Scroll returns up to limit documents matching filter, without ranking.
	Scroll(ctx context.Context, collection string, filter Filter, limit int) ([]Document, error)

	// Latest returns up to limit documents matching filter with the newest
	// values of timeKey, newest first. timeKey holds RFC 3339 timestamps.
	Latest(ctx context.Context, collection string, filter Filter, timeKey string, limit int) ([]Document, error)

	// SetMetadata merges fields into a document's metadata. The text and
	// vector are left untouched.
	SetMetadata(ctx context.Context, collection, id string, fields map[string]any) error

	// Count returns the number of documents matching filter.
	Count(ctx context.Context, collection string, filter Filter) (int, error)

	ListCollections(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

func cloneMetadata(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return maps.Clone(m)
}
