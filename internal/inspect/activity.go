// Package inspect reads the activity collection for diagnostics: per-type
// and per-hour breakdowns, JSON export and plain text search.
package inspect

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/jwebster45206/chronicle-npc/internal/vectorstore"
)

// DefaultCollection holds tracked activities.
const DefaultCollection = "chronicle_activities"

const (
	sampleSize         = 10
	topHours           = 5
	defaultSearchLimit = 10
	// scanAll bounds reads of a whole collection.
	scanAll = 100000
)

// Activity is one tracked event decoded from the collection.
type Activity struct {
	ID        string
	Content   string
	Type      string
	Timestamp time.Time // zero when the document carries none
	Metadata  map[string]any
	Data      map[string]any // parsed "data" metadata, nil when absent or invalid
	RawData   any            // "data" metadata as stored
}

// Inspector reads one collection of a vector store.
type Inspector struct {
	store      vectorstore.Store
	collection string
	loc        *time.Location
	logger     *slog.Logger
	now        func() time.Time
}

// New creates an inspector over collection, using DefaultCollection when
// collection is empty.
func New(store vectorstore.Store, collection string, logger *slog.Logger) *Inspector {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Inspector{
		store:      store,
		collection: collection,
		loc:        time.Local,
		logger:     logger,
		now:        time.Now,
	}
}

// Collection returns the inspected collection name.
func (in *Inspector) Collection() string {
	return in.collection
}

// Count returns the number of documents in the collection.
func (in *Inspector) Count(ctx context.Context) (int, error) {
	n, err := in.store.Count(ctx, in.collection, nil)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", in.collection, err)
	}
	return n, nil
}

// Activities returns up to limit activities in storage order.
func (in *Inspector) Activities(ctx context.Context, limit int) ([]Activity, error) {
	docs, err := in.store.Scroll(ctx, in.collection, nil, limit)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", in.collection, err)
	}
	out := make([]Activity, 0, len(docs))
	for _, d := range docs {
		out = append(out, in.decode(d))
	}
	return out, nil
}

func (in *Inspector) decode(d vectorstore.Document) Activity {
	a := Activity{
		ID:       d.ID,
		Content:  d.Text,
		Type:     "unknown",
		Metadata: d.Metadata,
	}
	if t, ok := d.Metadata["type"].(string); ok && t != "" {
		a.Type = t
	}
	if ms, ok := epochMillis(d.Metadata["timestamp"]); ok {
		a.Timestamp = time.UnixMilli(ms).In(in.loc)
	}
	if raw, ok := d.Metadata["data"]; ok {
		a.RawData = raw
		switch v := raw.(type) {
		case string:
			var parsed map[string]any
			if err := json.Unmarshal([]byte(v), &parsed); err == nil {
				a.Data = parsed
			} else {
				in.logger.Debug("Activity data is not JSON", "id", d.ID, "error", err)
			}
		case map[string]any:
			a.Data = v
		}
	}
	return a
}

// Detail returns the one line of parsed data worth showing for well known
// activity types, or "" for anything else.
func (a Activity) Detail() string {
	if a.Data == nil {
		return ""
	}
	get := func(key string) string {
		if s, ok := a.Data[key].(string); ok && s != "" {
			return s
		}
		return "unknown"
	}
	switch a.Type {
	case "app_opened":
		return "App: " + get("appName")
	case "file_changed":
		return fmt.Sprintf("File: %s (%s)", get("fileName"), get("action"))
	case "terminal_command":
		return "Command: " + get("command")
	}
	return ""
}

// epochMillis accepts the numeric forms a timestamp can take after a round
// trip through a store's payload.
func epochMillis(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, n != 0
	case int:
		return int64(n), n != 0
	case float64:
		if math.IsNaN(n) || n == 0 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil && i != 0
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil && i != 0
	}
	return 0, false
}
