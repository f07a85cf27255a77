package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/jwebster45206/chronicle-npc/pkg/chat"
)

// APIClient calls the NPC service.
type APIClient struct {
	baseURL string
	client  *http.Client
}

func NewAPIClient(baseURL string, client *http.Client) *APIClient {
	return &APIClient{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (c *APIClient) testConnection() bool {
	resp, err := c.client.Get(c.baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	// A degraded service still answers requests.
	return resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusServiceUnavailable
}

// CreateNPC creates a persona and returns its id.
func (c *APIClient) CreateNPC(req chat.CreateNPCRequest) (string, error) {
	env, err := c.call(http.MethodPost, "/create_npc", req)
	if err != nil {
		return "", fmt.Errorf("failed to create NPC: %w", err)
	}
	return env.NPCID, nil
}

// Summary returns the persona card. ok is false when the persona does not
// exist.
func (c *APIClient) Summary(npcID string) (summary string, ok bool, err error) {
	env, status, err := c.do(http.MethodGet, "/get_npc_summary/"+url.PathEscape(npcID), nil)
	if status == http.StatusNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get summary: %w", err)
	}
	return env.Summary, true, nil
}

// Search finds personas by description.
func (c *APIClient) Search(query string, limit int) ([]chat.NPCHit, error) {
	body, err := json.Marshal(chat.SearchRequest{Query: query, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	resp, err := c.client.Post(c.baseURL+"/search_npcs", "application/json", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp.StatusCode, data)
	}
	var result chat.SearchResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}
	return result.NPCs, nil
}

// Talk sends one player line and returns the reply.
func (c *APIClient) Talk(req chat.TalkRequest) (string, error) {
	env, err := c.call(http.MethodPost, "/talk_to_npc", req)
	if err != nil {
		return "", fmt.Errorf("talk request failed: %w", err)
	}
	return env.Response, nil
}

// Conversation returns the conversation summary text.
func (c *APIClient) Conversation(npcID string) (string, error) {
	env, err := c.call(http.MethodGet, "/get_conversation_summary/"+url.PathEscape(npcID), nil)
	if err != nil {
		return "", fmt.Errorf("failed to get conversation summary: %w", err)
	}
	return env.Summary, nil
}

func (c *APIClient) call(method, path string, body any) (*chat.Envelope, error) {
	env, _, err := c.do(method, path, body)
	return env, err
}

func (c *APIClient) do(method, path string, body any) (*chat.Envelope, int, error) {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewBuffer(jsonData)
	}
	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, apiError(resp.StatusCode, data)
	}

	var env chat.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to parse response: %w", err)
	}
	return &env, resp.StatusCode, nil
}

func apiError(status int, body []byte) error {
	var env chat.Envelope
	if err := json.Unmarshal(body, &env); err != nil || env.Error == "" {
		return fmt.Errorf("API returned status %d: %s", status, strings.TrimSpace(string(body)))
	}
	return fmt.Errorf("%s", env.Error)
}

// SSEEvent represents an event from the SSE stream
type SSEEvent struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// listenToSSE connects to the persona's event stream and forwards events
// until ctx ends or the stream closes.
func (c *APIClient) listenToSSE(ctx context.Context, npcID string, eventChan chan<- SSEEvent) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/events/"+url.PathEscape(npcID), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	// The shared client has a timeout; a stream must outlive it.
	stream := &http.Client{Transport: c.client.Transport}
	resp, err := stream.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to SSE: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("SSE connection failed with status %d: %s", resp.StatusCode, string(body))
	}

	scanner := bufio.NewScanner(resp.Body)
	var currentEvent SSEEvent

	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			// Empty line signals end of event
			if currentEvent.Type != "" {
				select {
				case eventChan <- currentEvent:
				case <-ctx.Done():
					return ctx.Err()
				}
				currentEvent = SSEEvent{}
			}
			continue
		}

		if strings.HasPrefix(line, "event: ") {
			currentEvent.Type = strings.TrimPrefix(line, "event: ")
		} else if strings.HasPrefix(line, "data: ") {
			var data map[string]any
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &data); err == nil {
				currentEvent.Data = data
			}
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("error reading SSE stream: %w", err)
	}
	return nil
}
