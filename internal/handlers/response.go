package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/chronicle-npc/pkg/chat"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// writeJSON writes body as JSON with the given status code.
func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Error encoding response", "error", err, "status", status)
	}
}

// writeEnvelope writes the JSON envelope with the given status code.
func writeEnvelope(w http.ResponseWriter, logger *slog.Logger, status int, env chat.Envelope) {
	writeJSON(w, logger, status, env)
}

// writeError writes {success:false, error}.
func writeError(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	writeEnvelope(w, logger, status, chat.Envelope{Success: false, Error: message})
}

// decodeBody decodes a JSON request body into dst.
func decodeBody(r *http.Request, dst any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	return nil
}

// toMap converts a record part to its JSON object form.
func toMap(v any) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}
	out := map[string]any{}
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{}
	}
	return out
}
