package prompts

import "testing"

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain json", `{"a":1}`, `{"a":1}`},
		{"fenced with tag", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced without tag", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"tag on same line", "```json{\"a\":1}```", `{"a":1}`},
		{"surrounding whitespace", "  \n```JSON\n[1,2]\n```\n ", `[1,2]`},
		{"unterminated fence", "```json\n{\"a\":1}", `{"a":1}`},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripCodeFence(tt.input); got != tt.expected {
				t.Errorf("StripCodeFence(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestGetContentRatingPrompt(t *testing.T) {
	tests := []struct {
		rating   string
		expected string
	}{
		{RatingG, ContentRatingG},
		{RatingPG, ContentRatingPG},
		{RatingPG13, ContentRatingPG13},
		{RatingR, ContentRatingR},
		{"", ""},
		{"X", ""},
	}
	for _, tt := range tests {
		if got := GetContentRatingPrompt(tt.rating); got != tt.expected {
			t.Errorf("GetContentRatingPrompt(%q) = %q, want %q", tt.rating, got, tt.expected)
		}
	}
}
