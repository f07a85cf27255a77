package actor

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

// IDPrefix is prepended to generated persona identifiers.
const IDPrefix = "npc_"

// Persona is a generated non-player character
type Persona struct {
	NPCID          string            `json:"npc_id"`
	Name           string            `json:"name"`
	Gender         string            `json:"gender"`
	Age            string            `json:"age"`          // e.g. "Young", "Adult", "Old"
	RaceSpecies    string            `json:"race_species"` // e.g. "Human", "Elf"
	Personality    []string          `json:"personality"`
	Alignment      string            `json:"alignment"`       // e.g. "Good", "Neutral", "Evil"
	ProfessionRole string            `json:"profession_role"` // e.g. "Blacksmith", "Guard"
	Faction        string            `json:"faction"`
	Skills         []string          `json:"skills"`
	Backstory      string            `json:"backstory"`
	TraitsFlaws    []string          `json:"traits_flaws"`
	Relationships  map[string]string `json:"relationships"` // name -> description

	CreatedAt        time.Time  `json:"created_at"`
	LastInteraction  *time.Time `json:"last_interaction"`
	InteractionCount int        `json:"interaction_count"`

	// Filled in by AI enhancement, empty when enhancement was unavailable
	PersonalityDetails string   `json:"personality_details,omitempty"`
	DialogueStyle      string   `json:"dialogue_style,omitempty"`
	Motivations        string   `json:"motivations,omitempty"`
	Fears              string   `json:"fears,omitempty"`
	Secrets            []string `json:"secrets"`
}

// WorldSettings is the descriptive context a persona lives in.
type WorldSettings struct {
	WorldTheme      string `json:"world_theme"`
	Location        string `json:"location"`
	TimePeriod      string `json:"time_period"`
	FactionTensions string `json:"faction_tensions"`
	TechLevel       string `json:"tech_level"`
	Environment     string `json:"environment"`
}

// Behavior holds the gameplay-facing attributes of a persona.
type Behavior struct {
	GivesQuest        bool     `json:"gives_quest"`
	QuestID           *string  `json:"quest_id"`
	CombatRole        string   `json:"combat_role"` // e.g. "Passive", "Guard", "Aggressive"
	TradeItems        []string `json:"trade_items"`
	AvailableServices []string `json:"available_services"`
}

// Record is a persona as it comes back from storage, together with the
// world and behavior it was stored with.
type Record struct {
	NPC      *Persona       `json:"npc"`
	World    *WorldSettings `json:"world"`
	Behavior *Behavior      `json:"behavior"`
}

// NewPersonaID generates a fresh persona identifier.
func NewPersonaID() string {
	return IDPrefix + shortHex()
}

// shortHex returns the first eight hex characters of a random UUID.
func shortHex() string {
	id := uuid.New()
	return fmt.Sprintf("%x", id[:4])
}

// EnsureID assigns an identifier if the persona does not have one yet and
// reports whether it did.
func (p *Persona) EnsureID() bool {
	if p.NPCID != "" {
		return false
	}
	p.NPCID = NewPersonaID()
	return true
}

// RecordInteraction bumps the interaction counter and stamps the time.
func (p *Persona) RecordInteraction(at time.Time) {
	p.InteractionCount++
	t := at
	p.LastInteraction = &t
}

// Normalize replaces nil collections with empty ones so a persona
// serializes the same way whether or not a list was supplied.
func (p *Persona) Normalize() {
	if p.Personality == nil {
		p.Personality = []string{}
	}
	if p.Skills == nil {
		p.Skills = []string{}
	}
	if p.TraitsFlaws == nil {
		p.TraitsFlaws = []string{}
	}
	if p.Relationships == nil {
		p.Relationships = map[string]string{}
	}
	if p.Secrets == nil {
		p.Secrets = []string{}
	}
}

// Clone returns a deep copy of the persona.
func (p *Persona) Clone() *Persona {
	c := *p
	c.Personality = slices.Clone(p.Personality)
	c.Skills = slices.Clone(p.Skills)
	c.TraitsFlaws = slices.Clone(p.TraitsFlaws)
	c.Secrets = slices.Clone(p.Secrets)
	c.Relationships = maps.Clone(p.Relationships)
	if p.LastInteraction != nil {
		t := *p.LastInteraction
		c.LastInteraction = &t
	}
	return &c
}

// Normalize replaces nil collections with empty ones.
func (b *Behavior) Normalize() {
	if b.TradeItems == nil {
		b.TradeItems = []string{}
	}
	if b.AvailableServices == nil {
		b.AvailableServices = []string{}
	}
}

// QuestLabel returns the quest identifier, or fallback when none is set.
func (b *Behavior) QuestLabel(fallback string) string {
	if b.QuestID == nil || *b.QuestID == "" {
		return fallback
	}
	return *b.QuestID
}
