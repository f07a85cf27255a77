package npc

import (
	"context"
	"fmt"
	"strings"

	"github.com/jwebster45206/chronicle-npc/pkg/actor"
)

const summaryBackstoryLimit = 200

// PersonaSummary renders the human-readable profile of a stored persona.
// The second return is false when the persona does not exist.
func (g *Generator) PersonaSummary(ctx context.Context, npcID string) (string, bool) {
	rec := g.storage.GetPersona(ctx, npcID)
	if rec == nil {
		return "", false
	}
	return FormatSummary(rec), true
}

// FormatSummary renders the fixed-format profile block.
func FormatSummary(rec *actor.Record) string {
	npc, world, behavior := rec.NPC, rec.World, rec.Behavior

	var sb strings.Builder
	fmt.Fprintf(&sb, "\n🎭 **%s** (%s %s)\n", npc.Name, npc.RaceSpecies, npc.ProfessionRole)
	fmt.Fprintf(&sb, "📍 Location: %s (%s)\n", world.Location, world.WorldTheme)
	fmt.Fprintf(&sb, "⚔️ Alignment: %s | Combat: %s\n", npc.Alignment, behavior.CombatRole)
	fmt.Fprintf(&sb, "🏛️ Faction: %s\n\n", npc.Faction)
	fmt.Fprintf(&sb, "**Personality**: %s\n", strings.Join(npc.Personality, ", "))
	fmt.Fprintf(&sb, "**Skills**: %s\n\n", strings.Join(npc.Skills, ", "))
	fmt.Fprintf(&sb, "**Backstory**: %s...\n\n", truncateRunes(npc.Backstory, summaryBackstoryLimit))
	fmt.Fprintf(&sb, "**Dialogue Style**: %s\n", orDefault(npc.DialogueStyle, "Standard"))
	fmt.Fprintf(&sb, "**Motivations**: %s\n", orDefault(npc.Motivations, "Unknown"))

	if behavior.GivesQuest {
		fmt.Fprintf(&sb, "\n🎯 **Quest Giver**: %s", behavior.QuestLabel("Available"))
	}
	if len(behavior.AvailableServices) > 0 {
		fmt.Fprintf(&sb, "\n🛠️ **Services**: %s", strings.Join(behavior.AvailableServices, ", "))
	}
	if len(behavior.TradeItems) > 0 {
		fmt.Fprintf(&sb, "\n💰 **Trades**: %s", strings.Join(behavior.TradeItems, ", "))
	}
	return sb.String()
}

// truncateRunes cuts s to limit runes without adding a marker; the summary
// format always appends one.
func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
