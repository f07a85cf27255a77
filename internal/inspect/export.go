package inspect

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// ExportInfo heads an export file.
type ExportInfo struct {
	CollectionName  string         `json:"collection_name"`
	ExportTimestamp time.Time      `json:"export_timestamp"`
	TotalDocuments  int            `json:"total_documents"`
	BackendStats    map[string]any `json:"backend_stats"`
}

// ExportedDocument is one activity in an export file.
type ExportedDocument struct {
	ID                string         `json:"id"`
	Content           string         `json:"content"`
	Metadata          map[string]any `json:"metadata"`
	ParsedData        any            `json:"parsed_data"`
	ReadableTimestamp string         `json:"readable_timestamp"`
	ActivityType      string         `json:"activity_type"`
}

// Export is the whole export file.
type Export struct {
	Info      ExportInfo         `json:"export_info"`
	Documents []ExportedDocument `json:"documents"`
}

// Summary counts exported documents per activity type.
func (e *Export) Summary() map[string]int {
	out := make(map[string]int)
	for _, d := range e.Documents {
		out[d.ActivityType]++
	}
	return out
}

// BuildExport reads every document of the collection. backendStats may be
// nil. It returns nil when the collection is empty.
func (in *Inspector) BuildExport(ctx context.Context, backendStats map[string]any) (*Export, error) {
	total, err := in.Count(ctx)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, nil
	}
	activities, err := in.Activities(ctx, total)
	if err != nil {
		return nil, err
	}
	if backendStats == nil {
		backendStats = map[string]any{}
	}

	export := &Export{
		Info: ExportInfo{
			CollectionName:  in.collection,
			ExportTimestamp: in.now(),
			TotalDocuments:  total,
			BackendStats:    backendStats,
		},
		Documents: make([]ExportedDocument, 0, len(activities)),
	}
	for _, a := range activities {
		doc := ExportedDocument{
			ID:           a.ID,
			Content:      a.Content,
			Metadata:     a.Metadata,
			ActivityType: a.Type,
			ParsedData:   a.RawData,
		}
		if a.Data != nil {
			doc.ParsedData = a.Data
		}
		if doc.ParsedData == nil {
			doc.ParsedData = map[string]any{}
		}
		if !a.Timestamp.IsZero() {
			doc.ReadableTimestamp = a.Timestamp.Format(time.RFC3339)
		}
		export.Documents = append(export.Documents, doc)
	}
	return export, nil
}

// WriteJSON writes the export indented, keeping non-ASCII text as is.
func (e *Export) WriteJSON(w io.Writer) (int, error) {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("marshal export: %w", err)
	}
	data = append(data, '\n')
	return w.Write(data)
}

// ExportFilename is the default file name for an export taken at t.
func ExportFilename(t time.Time) string {
	return fmt.Sprintf("chronicle_data_%s.json", t.Format("20060102_150405"))
}
