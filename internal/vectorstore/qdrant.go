package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// Payload keys reserved for the document id and text.
const (
	payloadIDKey   = "_id"
	payloadTextKey = "_document"
)

// QdrantConfig configures the gRPC connection.
type QdrantConfig struct {
	Host   string
	Port   int
	APIKey string
	// KeywordIndexes lists metadata keys indexed for exact-match filtering
	// on every collection this store creates.
	KeywordIndexes []string
	// DatetimeIndexes lists RFC 3339 metadata keys indexed for ordering.
	DatetimeIndexes []string
}

// QdrantStore implements Store on Qdrant. String document ids are mapped to
// deterministic UUIDv5 point ids; the original id and the text travel in
// the payload.
type QdrantStore struct {
	client    *qdrant.Client
	indexes   []string
	timeIndex []string
	logger    *slog.Logger

	known map[string]bool // collections confirmed to exist
	mu    sync.Mutex
}

var _ Store = (*QdrantStore)(nil)

// NewQdrantStore connects to Qdrant. The connection is lazy; use Ping to
// check reachability.
func NewQdrantStore(cfg QdrantConfig, logger *slog.Logger) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}
	return &QdrantStore{
		client:    client,
		indexes:   cfg.KeywordIndexes,
		timeIndex: cfg.DatetimeIndexes,
		logger:    logger,
		known:     make(map[string]bool),
	}, nil
}

// PointID maps a document id to its Qdrant point UUID.
func PointID(id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(id)).String()
}

// exists reports whether a collection exists, remembering positive answers.
func (s *QdrantStore) exists(ctx context.Context, collection string) (bool, error) {
	s.mu.Lock()
	known := s.known[collection]
	s.mu.Unlock()
	if known {
		return true, nil
	}

	ok, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return false, fmt.Errorf("failed to check collection %s: %w", collection, err)
	}
	if ok {
		s.mu.Lock()
		s.known[collection] = true
		s.mu.Unlock()
	}
	return ok, nil
}

// ensure creates a collection sized for dims if it does not exist yet.
func (s *QdrantStore) ensure(ctx context.Context, collection string, dims int) error {
	ok, err := s.exists(ctx, collection)
	if err != nil || ok {
		return err
	}

	s.logger.Info("Creating vector collection", "collection", collection, "dimensions", dims)
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dims),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", collection, err)
	}

	for _, field := range s.indexes {
		s.createIndex(ctx, collection, field, qdrant.FieldType_FieldTypeKeyword)
	}
	for _, field := range s.timeIndex {
		s.createIndex(ctx, collection, field, qdrant.FieldType_FieldTypeDatetime)
	}

	s.mu.Lock()
	s.known[collection] = true
	s.mu.Unlock()
	return nil
}

func (s *QdrantStore) createIndex(ctx context.Context, collection, field string, fieldType qdrant.FieldType) {
	_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: collection,
		FieldName:      field,
		FieldType:      qdrant.PtrOf(fieldType),
	})
	if err != nil {
		s.logger.Warn("Failed to create payload index", "collection", collection, "field", field, "error", err)
	}
}

func (s *QdrantStore) Upsert(ctx context.Context, collection string, docs []Document, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return fmt.Errorf("got %d documents but %d vectors", len(docs), len(vectors))
	}
	if len(docs) == 0 {
		return nil
	}
	if err := s.ensure(ctx, collection, len(vectors[0])); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, 0, len(docs))
	for i, d := range docs {
		payload, err := toPayload(d)
		if err != nil {
			return fmt.Errorf("document %s: %w", d.ID, err)
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(PointID(d.ID)),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: payload,
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert failed: %w", err)
	}
	return nil
}

func (s *QdrantStore) Get(ctx context.Context, collection string, ids ...string) ([]Document, error) {
	if len(ids) == 0 {
		return []Document{}, nil
	}
	if ok, err := s.exists(ctx, collection); err != nil || !ok {
		return []Document{}, err
	}

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewID(PointID(id))
	}
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: collection,
		Ids:            pointIDs,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant get failed: %w", err)
	}

	byID := make(map[string]Document, len(points))
	for _, p := range points {
		d := fromPayload(p.GetId(), p.GetPayload())
		byID[d.ID] = d
	}
	docs := make([]Document, 0, len(points))
	for _, id := range ids {
		if d, ok := byID[id]; ok {
			docs = append(docs, d)
		}
	}
	return docs, nil
}

func (s *QdrantStore) Query(ctx context.Context, collection string, vector []float32, filter Filter, limit int) ([]Match, error) {
	if limit <= 0 {
		return []Match{}, nil
	}
	if ok, err := s.exists(ctx, collection); err != nil || !ok {
		return []Match{}, err
	}

	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Filter:         toFilter(filter),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query failed: %w", err)
	}

	matches := make([]Match, 0, len(points))
	for _, p := range points {
		matches = append(matches, Match{
			Document: fromPayload(p.GetId(), p.GetPayload()),
			Score:    p.GetScore(),
		})
	}
	return matches, nil
}

func (s *QdrantStore) Scroll(ctx context.Context, collection string, filter Filter, limit int) ([]Document, error) {
	if limit <= 0 {
		return []Document{}, nil
	}
	if ok, err := s.exists(ctx, collection); err != nil || !ok {
		return []Document{}, err
	}

	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: collection,
		Filter:         toFilter(filter),
		Limit:          qdrant.PtrOf(uint32(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant scroll failed: %w", err)
	}

	docs := make([]Document, 0, len(points))
	for _, p := range points {
		docs = append(docs, fromPayload(p.GetId(), p.GetPayload()))
	}
	return docs, nil
}

// Latest orders server-side, which needs a datetime index on timeKey.
func (s *QdrantStore) Latest(ctx context.Context, collection string, filter Filter, timeKey string, limit int) ([]Document, error) {
	if limit <= 0 {
		return []Document{}, nil
	}
	if ok, err := s.exists(ctx, collection); err != nil || !ok {
		return []Document{}, err
	}

	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: collection,
		Filter:         toFilter(filter),
		Limit:          qdrant.PtrOf(uint32(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		OrderBy: &qdrant.OrderBy{
			Key:       timeKey,
			Direction: qdrant.Direction_Desc.Enum(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant ordered scroll failed: %w", err)
	}

	docs := make([]Document, 0, len(points))
	for _, p := range points {
		docs = append(docs, fromPayload(p.GetId(), p.GetPayload()))
	}
	return docs, nil
}

func (s *QdrantStore) SetMetadata(ctx context.Context, collection, id string, fields map[string]any) error {
	ok, err := s.exists(ctx, collection)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}

	payload, err := qdrant.TryValueMap(fields)
	if err != nil {
		return fmt.Errorf("unsupported metadata value: %w", err)
	}
	_, err = s.client.SetPayload(ctx, &qdrant.SetPayloadPoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Payload:        payload,
		PointsSelector: qdrant.NewPointsSelector(qdrant.NewID(PointID(id))),
	})
	if err != nil {
		return fmt.Errorf("qdrant set payload failed: %w", err)
	}
	return nil
}

func (s *QdrantStore) Count(ctx context.Context, collection string, filter Filter) (int, error) {
	if ok, err := s.exists(ctx, collection); err != nil || !ok {
		return 0, err
	}
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Filter:         toFilter(filter),
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant count failed: %w", err)
	}
	return int(n), nil
}

func (s *QdrantStore) ListCollections(ctx context.Context) ([]string, error) {
	names, err := s.client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("qdrant list collections failed: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func (s *QdrantStore) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant health check failed: %w", err)
	}
	return nil
}

func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func toPayload(d Document) (map[string]*qdrant.Value, error) {
	raw := make(map[string]any, len(d.Metadata)+2)
	maps.Copy(raw, d.Metadata)
	raw[payloadIDKey] = d.ID
	raw[payloadTextKey] = d.Text
	payload, err := qdrant.TryValueMap(raw)
	if err != nil {
		return nil, fmt.Errorf("unsupported metadata value: %w", err)
	}
	return payload, nil
}

// fromPayload rebuilds a document. Points written by other tools may lack
// the reserved keys, so the point id and common text keys are fallbacks.
func fromPayload(id *qdrant.PointId, payload map[string]*qdrant.Value) Document {
	meta := make(map[string]any, len(payload))
	for k, v := range payload {
		meta[k] = valueToAny(v)
	}

	d := Document{Metadata: meta}
	if s, ok := meta[payloadIDKey].(string); ok {
		d.ID = s
	} else {
		d.ID = pointIDString(id)
	}
	for _, key := range []string{payloadTextKey, "document", "content", "text"} {
		if s, ok := meta[key].(string); ok {
			d.Text = s
			break
		}
	}
	delete(meta, payloadIDKey)
	delete(meta, payloadTextKey)
	return d
}

func pointIDString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return fmt.Sprintf("%d", id.GetNum())
}

func toFilter(f Filter) *qdrant.Filter {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	must := make([]*qdrant.Condition, 0, len(keys))
	for _, k := range keys {
		must = append(must, qdrant.NewMatch(k, f[k]))
	}
	return &qdrant.Filter{Must: must}
}

// valueToAny converts a payload value to plain Go values. Integers come
// back as int64 and floats as float64.
func valueToAny(v *qdrant.Value) any {
	if v == nil {
		return nil
	}
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_StructValue:
		out := make(map[string]any, len(kind.StructValue.GetFields()))
		for k, f := range kind.StructValue.GetFields() {
			out[k] = valueToAny(f)
		}
		return out
	case *qdrant.Value_ListValue:
		vals := kind.ListValue.GetValues()
		out := make([]any, len(vals))
		for i, item := range vals {
			out[i] = valueToAny(item)
		}
		return out
	default:
		return nil
	}
}
