package inspect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// BackendHealth is the tracker backend's /api/health body.
type BackendHealth struct {
	EventsCount int  `json:"eventsCount"`
	IsTracking  bool `json:"isTracking"`
}

// FilterRule is one activity filter configured on the backend.
type FilterRule struct {
	Name    string `json:"name"`
	Pattern string `json:"pattern"`
	Enabled bool   `json:"enabled"`
}

// BackendClient talks to the activity tracker backend and to Ollama.
type BackendClient struct {
	backendURL string
	ollamaURL  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewBackendClient creates a client. Probes use a five second timeout and
// agent queries thirty.
func NewBackendClient(backendURL, ollamaURL string, logger *slog.Logger) *BackendClient {
	return &BackendClient{
		backendURL: strings.TrimRight(backendURL, "/"),
		ollamaURL:  strings.TrimRight(ollamaURL, "/"),
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// Health fetches the backend status.
func (c *BackendClient) Health(ctx context.Context) (*BackendHealth, error) {
	var h BackendHealth
	if err := c.getJSON(ctx, c.backendURL+"/api/health", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Stats fetches backend statistics for export headers.
func (c *BackendClient) Stats(ctx context.Context) (map[string]any, error) {
	var stats map[string]any
	if err := c.getJSON(ctx, c.backendURL+"/api/stats", &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// Filters lists the backend's filter rules.
func (c *BackendClient) Filters(ctx context.Context) ([]FilterRule, error) {
	var rules []FilterRule
	if err := c.getJSON(ctx, c.backendURL+"/api/filters", &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// Models lists the model names Ollama has pulled.
func (c *BackendClient) Models(ctx context.Context) ([]string, error) {
	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := c.getJSON(ctx, c.ollamaURL+"/api/tags", &tags); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// Query asks the backend's agent a question and returns its answer.
func (c *BackendClient) Query(ctx context.Context, query string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return "", fmt.Errorf("failed to marshal query: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.backendURL+"/api/ai/query", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var result struct {
		Output *string `json:"output"`
	}
	if err := c.do(req, &result); err != nil {
		return "", err
	}
	if result.Output == nil {
		return "No response", nil
	}
	return *result.Output, nil
}

func (c *BackendClient) getJSON(ctx context.Context, url string, dst any) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, dst)
}

func (c *BackendClient) do(req *http.Request, dst any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s failed: %w", req.URL.Path, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Error("Failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned HTTP %d: %s", req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", req.URL.Path, err)
	}
	return nil
}
