package services

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"
)

// MockEmbedderDimensions is the vector size produced by MockEmbedder.
const MockEmbedderDimensions = 64

// MockEmbedder produces deterministic bag-of-words vectors: texts that share
// words land close together, which is enough for similarity tests without a
// model.
type MockEmbedder struct {
	EmbedFunc func(ctx context.Context, text string) ([]float32, error)

	// Track calls for testing
	EmbedCalls []string

	mu sync.Mutex
}

var _ Embedder = (*MockEmbedder)(nil)

// NewMockEmbedder creates a new mock embedder
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{EmbedCalls: make([]string, 0)}
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.EmbedCalls = append(m.EmbedCalls, text)
	fn := m.EmbedFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, text)
	}
	return HashEmbedding(text, MockEmbedderDimensions), nil
}

// CallCount returns how many times Embed was called.
func (m *MockEmbedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.EmbedCalls)
}

// HashEmbedding hashes each lower-cased word of text into one of dims
// buckets and returns the normalized counts. Empty text yields a unit
// vector on the first axis so it is never all zeros.
func HashEmbedding(text string, dims int) []float32 {
	vec := make([]float32, dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%uint32(dims)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	n := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= n
	}
	return vec
}
