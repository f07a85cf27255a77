package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/jwebster45206/chronicle-npc/pkg/chat"
)

type ErrorHandlingMode string

const ErrorHandlingExit ErrorHandlingMode = "exit"
const ErrorHandlingContinue ErrorHandlingMode = "continue"

// Runner executes integration tests against a running chronicle-npc API
type Runner struct {
	BaseURL           string
	Client            *http.Client
	Timeout           time.Duration
	Logger            func(format string, args ...interface{})
	ErrorHandlingMode ErrorHandlingMode
}

// NewRunner creates a new test runner
func NewRunner(baseURL string) *Runner {
	return &Runner{
		BaseURL:           strings.TrimSuffix(baseURL, "/"),
		Client:            &http.Client{Timeout: 120 * time.Second},
		Timeout:           60 * time.Second,
		Logger:            func(string, ...interface{}) {},
		ErrorHandlingMode: ErrorHandlingContinue,
	}
}

// LoadTestSuite loads a test suite from a JSON file
func LoadTestSuite(filename string) (TestSuite, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return TestSuite{}, fmt.Errorf("failed to read test file %s: %w", filename, err)
	}

	var suite TestSuite
	if err := json.Unmarshal(content, &suite); err != nil {
		return TestSuite{}, fmt.Errorf("failed to parse JSON in %s: %w", filename, err)
	}
	return suite, nil
}

// LoadTestSuiteWithExpansion loads a test suite and expands it if it's a sequence.
func LoadTestSuiteWithExpansion(filename string, casesDir string) ([]TestJob, error) {
	suite, err := LoadTestSuite(filename)
	if err != nil {
		return nil, err
	}

	if !suite.IsSequence() {
		return []TestJob{{Name: suite.Name, Suite: suite, CaseFile: filename}}, nil
	}

	var jobs []TestJob
	for _, caseFile := range suite.Cases {
		subJobs, err := LoadTestSuiteWithExpansion(filepath.Join(casesDir, caseFile), casesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load case '%s' referenced by sequence '%s': %w", caseFile, suite.Name, err)
		}
		jobs = append(jobs, subJobs...)
	}
	return jobs, nil
}

// RunSuite creates the suite's persona and executes each step against it.
func (r *Runner) RunSuite(ctx context.Context, suite TestSuite) (TestRunResult, error) {
	start := time.Now()
	result := TestRunResult{
		Job:     TestJob{Name: suite.Name, Suite: suite},
		Results: make([]TestResult, 0, len(suite.Steps)),
	}

	if suite.NPC == nil {
		result.Error = fmt.Errorf("suite %q has no npc definition", suite.Name)
		return result, result.Error
	}

	npcID, err := r.CreateNPC(ctx, *suite.NPC)
	if err != nil {
		result.Error = fmt.Errorf("failed to create npc: %w", err)
		result.Duration = time.Since(start)
		return result, result.Error
	}
	result.NPCID = npcID

	for i, step := range suite.Steps {
		r.Logger("    [%d/%d] Running step: %s", i+1, len(suite.Steps), step.Name)
		stepResult := r.runStep(ctx, npcID, step)
		result.Results = append(result.Results, stepResult)

		if stepResult.Error != nil {
			r.Logger("    [%d/%d] ✗ %s: %v", i+1, len(suite.Steps), step.Name, stepResult.Error)
			if result.Error == nil {
				result.Error = fmt.Errorf("step %d (%s) failed: %w", i, step.Name, stepResult.Error)
			}
			if r.ErrorHandlingMode == ErrorHandlingExit {
				break
			}
			continue
		}
		r.Logger("    [%d/%d] ✓ %s (%v)", i+1, len(suite.Steps), step.Name, stepResult.Duration)
	}

	result.Duration = time.Since(start)
	return result, result.Error
}

func (r *Runner) runStep(ctx context.Context, npcID string, step TestStep) TestResult {
	start := time.Now()
	result := TestResult{StepName: step.Name}

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	var err error
	switch step.Action {
	case "", ActionTalk:
		result.ResponseText, err = r.Talk(ctx, chat.TalkRequest{
			NPCID:        npcID,
			PlayerInput:  step.PlayerInput,
			DialogueType: step.DialogueType,
			Mood:         step.Mood,
		})
	case ActionSummary:
		result.ResponseText, err = r.getSummary(ctx, "/get_conversation_summary/"+url.PathEscape(npcID))
	case ActionClearContext:
		_, err = r.call(ctx, http.MethodPost, "/clear_npc_context/"+url.PathEscape(npcID), nil)
	case ActionSearch:
		var found bool
		found, err = r.search(ctx, step.Query, npcID)
		if err == nil && step.Expectations.Found != nil && found != *step.Expectations.Found {
			err = fmt.Errorf("expected found=%t for query %q, got %t", *step.Expectations.Found, step.Query, found)
		}
	default:
		err = fmt.Errorf("unknown action %q", step.Action)
	}
	if err == nil {
		err = r.checkExpectations(ctx, npcID, step.Expectations, result.ResponseText)
	}

	result.Duration = time.Since(start)
	if err != nil {
		result.Error = err
		return result
	}
	result.Success = true
	return result
}

// CreateNPC posts a create_npc body and returns the new persona id.
func (r *Runner) CreateNPC(ctx context.Context, body chat.CreateNPCRequest) (string, error) {
	env, err := r.call(ctx, http.MethodPost, "/create_npc", body)
	if err != nil {
		return "", err
	}
	if env.NPCID == "" {
		return "", fmt.Errorf("create_npc returned no npc_id")
	}
	return env.NPCID, nil
}

// Talk sends one player line and returns the persona's reply.
func (r *Runner) Talk(ctx context.Context, body chat.TalkRequest) (string, error) {
	env, err := r.call(ctx, http.MethodPost, "/talk_to_npc", body)
	if err != nil {
		return "", err
	}
	return env.Response, nil
}

func (r *Runner) getSummary(ctx context.Context, path string) (string, error) {
	env, err := r.call(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	return env.Summary, nil
}

func (r *Runner) search(ctx context.Context, query, npcID string) (bool, error) {
	data, err := r.do(ctx, http.MethodPost, "/search_npcs", chat.SearchRequest{Query: query})
	if err != nil {
		return false, err
	}
	var resp chat.SearchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return false, fmt.Errorf("failed to decode search response: %w", err)
	}
	for _, hit := range resp.NPCs {
		if hit.NPCID == npcID {
			return true, nil
		}
	}
	return false, nil
}

// call performs a request and decodes the standard response envelope.
func (r *Runner) call(ctx context.Context, method, path string, body any) (*chat.Envelope, error) {
	data, err := r.do(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	var env chat.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	if !env.Success {
		return nil, fmt.Errorf("%s failed: %s", path, env.Error)
	}
	return &env, nil
}

func (r *Runner) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", method, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return data, nil
}

// checkExpectations validates the step's response text and, when asked,
// the persona's cached context.
func (r *Runner) checkExpectations(ctx context.Context, npcID string, exp Expectations, responseText string) error {
	if err := checkResponse(exp, responseText); err != nil {
		return err
	}
	if exp.RelationshipContains == "" && len(exp.PatternsContain) == 0 {
		return nil
	}

	env, err := r.call(ctx, http.MethodGet, "/get_npc_context/"+url.PathEscape(npcID), nil)
	if err != nil {
		return fmt.Errorf("failed to get npc context: %w", err)
	}
	if exp.RelationshipContains != "" {
		rel, _ := env.Context["relationship_context"].(string)
		if !strings.Contains(strings.ToLower(rel), strings.ToLower(exp.RelationshipContains)) {
			return fmt.Errorf("expected relationship context to contain '%s', got '%s'", exp.RelationshipContains, rel)
		}
	}
	if len(exp.PatternsContain) > 0 {
		raw, _ := env.Context["conversation_patterns"].([]any)
		have := make(map[string]bool, len(raw))
		for _, p := range raw {
			if s, ok := p.(string); ok {
				have[s] = true
			}
		}
		for _, want := range exp.PatternsContain {
			if !have[want] {
				return fmt.Errorf("expected conversation pattern '%s', got %v", want, raw)
			}
		}
	}
	return nil
}

func checkResponse(exp Expectations, responseText string) error {
	lowerResponse := strings.ToLower(responseText)
	for _, expectedText := range exp.ResponseContains {
		if !strings.Contains(lowerResponse, strings.ToLower(expectedText)) {
			return fmt.Errorf("expected response to contain '%s', but it didn't", expectedText)
		}
	}
	for _, unexpectedText := range exp.ResponseNotContains {
		if strings.Contains(lowerResponse, strings.ToLower(unexpectedText)) {
			return fmt.Errorf("expected response to NOT contain '%s', but it did", unexpectedText)
		}
	}

	if exp.ResponseRegex != "" {
		matched, err := regexp.MatchString(exp.ResponseRegex, responseText)
		if err != nil {
			return fmt.Errorf("invalid regex pattern: %w", err)
		}
		if !matched {
			return fmt.Errorf("response didn't match regex pattern: %s", exp.ResponseRegex)
		}
	}

	if exp.ResponseMinLength != nil && len(responseText) < *exp.ResponseMinLength {
		return fmt.Errorf("expected response length >= %d, got %d", *exp.ResponseMinLength, len(responseText))
	}
	if exp.ResponseMaxLength != nil && len(responseText) > *exp.ResponseMaxLength {
		return fmt.Errorf("expected response length <= %d, got %d", *exp.ResponseMaxLength, len(responseText))
	}
	return nil
}
