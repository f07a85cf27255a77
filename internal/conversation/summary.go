package conversation

import (
	"context"
	"fmt"
	"strings"
)

// NoHistory is returned by ConversationSummary when nothing was said yet.
const NoHistory = "No conversation history found."

const (
	summaryExchanges   = 3
	summaryExcerptSize = 50
)

// ConversationSummary renders the recent conversation with a persona.
func (c *Composer) ConversationSummary(ctx context.Context, npcID string) string {
	history := c.storage.TurnsForPersona(ctx, npcID, c.opts.SummaryTurns)
	if len(history) == 0 {
		return NoHistory
	}

	name := "Unknown NPC"
	if rec := c.storage.GetPersona(ctx, npcID); rec != nil {
		name = rec.NPC.Name
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📜 **Conversation Summary with %s**\n", name)
	fmt.Fprintf(&sb, "Total Interactions: %d\n", len(history))
	fmt.Fprintf(&sb, "Last Interaction: %s\n\n", history[0].Timestamp.Format("2006-01-02 15:04"))
	sb.WriteString("**Recent Exchanges:**\n")
	for i, t := range history[:min(summaryExchanges, len(history))] {
		fmt.Fprintf(&sb, "%d. Player: %s...\n", i+1, excerpt(t.PlayerInput, summaryExcerptSize))
		fmt.Fprintf(&sb, "   %s: %s...\n\n", name, excerpt(t.NPCResponse, summaryExcerptSize))
	}
	return sb.String()
}

func excerpt(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
