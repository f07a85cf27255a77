package storage

import (
	"fmt"
	"strings"

	"github.com/jwebster45206/chronicle-npc/pkg/actor"
)

// SearchableText renders the indexed description of a persona. The output
// is deterministic for equal inputs.
func SearchableText(npc *actor.Persona, world *actor.WorldSettings, behavior *actor.Behavior) string {
	parts := []string{
		"Name: " + npc.Name,
		"Race: " + npc.RaceSpecies,
		"Profession: " + npc.ProfessionRole,
		"Personality: " + strings.Join(npc.Personality, ", "),
		"Alignment: " + npc.Alignment,
		"Faction: " + npc.Faction,
		"Skills: " + strings.Join(npc.Skills, ", "),
		"Backstory: " + npc.Backstory,
		"Traits: " + strings.Join(npc.TraitsFlaws, ", "),
		fmt.Sprintf("World: %s in %s", world.WorldTheme, world.Location),
		"Environment: " + world.Environment,
		"Tech Level: " + world.TechLevel,
		"Combat Role: " + behavior.CombatRole,
		"Services: " + strings.Join(behavior.AvailableServices, ", "),
	}
	if behavior.GivesQuest {
		parts = append(parts, "Quest Giver: "+behavior.QuestLabel("None"))
	}
	if len(behavior.TradeItems) > 0 {
		parts = append(parts, "Trades: "+strings.Join(behavior.TradeItems, ", "))
	}
	return strings.Join(parts, "\n")
}
