package contextcache

import (
	"fmt"
	"strings"
	"time"

	"github.com/jwebster45206/chronicle-npc/pkg/dialogue"
)

// Relationship tiers, most familiar first.
const (
	TierClose        = "close friend"
	TierGood         = "good friend"
	TierAcquaintance = "acquaintance"
	TierRecent       = "recent acquaintance"
	TierFirstMeeting = "first meeting"
)

// FirstMeeting is the descriptor used before any turn was stored.
const FirstMeeting = "This is your first meeting."

// NoConversations is the digest used before any turn was stored.
const NoConversations = "No previous conversations."

const digestExcerptSize = 30

// RelationshipTier maps a total turn count to a familiarity label.
func RelationshipTier(count int) string {
	switch {
	case count <= 0:
		return TierFirstMeeting
	case count >= 15:
		return TierClose
	case count >= 8:
		return TierGood
	case count >= 3:
		return TierAcquaintance
	default:
		return TierRecent
	}
}

// Descriptor renders the relationship line fed to the dialogue prompt.
func Descriptor(count int, lastMood string) string {
	if count <= 0 {
		return FirstMeeting
	}
	if lastMood == "" {
		lastMood = "neutral"
	}
	return fmt.Sprintf("You are %s (met %d times). Last mood: %s", RelationshipTier(count), count, lastMood)
}

// Digest renders turns (newest first) as one line each, oldest first.
func Digest(turns []dialogue.Turn, now time.Time) string {
	if len(turns) == 0 {
		return NoConversations
	}
	lines := make([]string, 0, len(turns))
	for i := len(turns) - 1; i >= 0; i-- {
		t := turns[i]
		lines = append(lines, fmt.Sprintf("(%s) Player: %s... | NPC: %s...",
			TimeAgo(t.Timestamp, now),
			excerpt(t.PlayerInput, digestExcerptSize),
			excerpt(t.NPCResponse, digestExcerptSize)))
	}
	return strings.Join(lines, "\n")
}

// TimeAgo renders the coarse age of a timestamp.
func TimeAgo(at, now time.Time) string {
	diff := now.Sub(at)
	switch {
	case diff >= 24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff/(24*time.Hour)))
	case diff > time.Hour:
		return fmt.Sprintf("%dh ago", int(diff/time.Hour))
	case diff > time.Minute:
		return fmt.Sprintf("%dm ago", int(diff/time.Minute))
	default:
		return "just now"
	}
}

// Patterns flagged by DetectPatterns.
const (
	PatternRepeatedTopics = "Player tends to ask about similar topics"
	PatternTense          = "Conversations often become tense"
	PatternPositive       = "Usually positive interactions"
)

// DetectPatterns looks for repeated questions and dominant moods.
func DetectPatterns(turns []dialogue.Turn) []string {
	patterns := []string{}
	if len(turns) == 0 {
		return patterns
	}

	seen := make(map[string]bool, len(turns))
	for _, t := range turns {
		topic := strings.ToLower(t.PlayerInput)
		if seen[topic] {
			patterns = append(patterns, PatternRepeatedTopics)
			break
		}
		seen[topic] = true
	}

	var angry, happy int
	for _, t := range turns {
		switch {
		case strings.EqualFold(t.Mood, "angry"):
			angry++
		case strings.EqualFold(t.Mood, "happy"):
			happy++
		}
	}
	n := float64(len(turns))
	switch {
	case float64(angry) > n*0.3:
		patterns = append(patterns, PatternTense)
	case float64(happy) > n*0.5:
		patterns = append(patterns, PatternPositive)
	}
	return patterns
}

func excerpt(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
