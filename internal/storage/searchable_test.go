package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jwebster45206/chronicle-npc/pkg/actor"
)

func TestSearchableText(t *testing.T) {
	npc := &actor.Persona{
		Name:           "Greta",
		RaceSpecies:    "Dwarf",
		ProfessionRole: "Blacksmith",
		Personality:    []string{"gruff", "loyal"},
		Alignment:      "Good",
		Faction:        "Smiths Guild",
		Skills:         []string{"smithing"},
		Backstory:      "Forged the king's blade.",
		TraitsFlaws:    []string{"stubborn"},
	}
	world := &actor.WorldSettings{WorldTheme: "Medieval Fantasy", Location: "Ironhold", Environment: "Mountain", TechLevel: "Low-Tech"}

	tests := []struct {
		name     string
		behavior actor.Behavior
		expected string
	}{
		{
			name:     "plain",
			behavior: actor.Behavior{CombatRole: "Passive", AvailableServices: []string{"repair"}},
			expected: "Name: Greta\nRace: Dwarf\nProfession: Blacksmith\nPersonality: gruff, loyal\nAlignment: Good\nFaction: Smiths Guild\nSkills: smithing\nBackstory: Forged the king's blade.\nTraits: stubborn\nWorld: Medieval Fantasy in Ironhold\nEnvironment: Mountain\nTech Level: Low-Tech\nCombat Role: Passive\nServices: repair",
		},
		{
			name:     "quest giver without id",
			behavior: actor.Behavior{GivesQuest: true, CombatRole: "Passive"},
			expected: "Combat Role: Passive\nServices: \nQuest Giver: None",
		},
		{
			name:     "trader",
			behavior: actor.Behavior{CombatRole: "Guard", TradeItems: []string{"sword", "axe"}},
			expected: "Services: \nTrades: sword, axe",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SearchableText(npc, world, &tt.behavior)
			if tt.name == "plain" {
				assert.Equal(t, tt.expected, got)
				return
			}
			assert.Contains(t, got, tt.expected)
		})
	}

	b := actor.Behavior{CombatRole: "Passive"}
	assert.Equal(t, SearchableText(npc, world, &b), SearchableText(npc, world, &b))
}
