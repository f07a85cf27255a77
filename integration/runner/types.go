package runner

import (
	"time"

	"github.com/jwebster45206/chronicle-npc/pkg/chat"
)

// Step actions. An empty action is a talk step.
const (
	ActionTalk         = "talk"
	ActionSearch       = "search"
	ActionClearContext = "clear_context"
	ActionSummary      = "summary"
)

// TestSuite defines a complete integration test scenario.
// Can either be a regular test with Steps, or a suite that references other Cases.
type TestSuite struct {
	Name  string                 `json:"name"`
	NPC   *chat.CreateNPCRequest `json:"npc,omitempty"`   // Used for regular tests
	Steps []TestStep             `json:"steps,omitempty"` // Used for regular tests
	Cases []string               `json:"cases,omitempty"` // Used for suite tests (list of case files)
}

// IsSequence returns true if this is a suite that sequences other cases
func (ts *TestSuite) IsSequence() bool {
	return len(ts.Cases) > 0
}

// TestStep defines a single interaction with the persona and its expected outcomes.
type TestStep struct {
	Name         string       `json:"name,omitempty"`
	Action       string       `json:"action,omitempty"`
	PlayerInput  string       `json:"player_input,omitempty"`
	DialogueType string       `json:"dialogue_type,omitempty"`
	Mood         string       `json:"mood,omitempty"`
	Query        string       `json:"query,omitempty"` // search steps
	Expectations Expectations `json:"expect"`
}

// Expectations defines what to check after a test step executes
type Expectations struct {
	// Persona context, read from /get_npc_context after the step
	RelationshipContains string   `json:"relationship_contains,omitempty"`
	PatternsContain      []string `json:"patterns_contain,omitempty"`

	// Search steps
	Found *bool `json:"found,omitempty"` // whether the suite's persona is among the hits

	// Response Analysis (talk reply, or summary text for summary steps)
	ResponseContains    []string `json:"response_contains,omitempty"`
	ResponseNotContains []string `json:"response_not_contains,omitempty"`
	ResponseRegex       string   `json:"response_regex,omitempty"`
	ResponseMinLength   *int     `json:"response_min_length,omitempty"`
	ResponseMaxLength   *int     `json:"response_max_length,omitempty"`
}

// TestResult contains the outcome of running a test step
type TestResult struct {
	StepName     string
	Success      bool
	Error        error
	Duration     time.Duration
	ResponseText string
}

// TestJob represents a test suite to be executed
type TestJob struct {
	Name     string
	Suite    TestSuite
	CaseFile string
}

// TestRunResult contains the results of running an entire test suite
type TestRunResult struct {
	Job      TestJob
	Results  []TestResult
	Error    error
	Duration time.Duration
	NPCID    string // persona created for this run
}
