package actor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ValidationError reports a request mapping that could not be turned into a
// persona, world or behavior record.
type ValidationError struct {
	Section string // "character_params", "world_settings", "behavior_params"
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Section, e.Reason)
}

// IsValidationError reports whether err wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// characterParams lists the keys accepted when creating a persona. Anything
// else in the request mapping is rejected.
type characterParams struct {
	Name           string            `json:"name"`
	Gender         string            `json:"gender"`
	Age            string            `json:"age"`
	RaceSpecies    string            `json:"race_species"`
	Personality    []string          `json:"personality"`
	Alignment      string            `json:"alignment"`
	ProfessionRole string            `json:"profession_role"`
	Faction        string            `json:"faction"`
	Skills         []string          `json:"skills"`
	Backstory      string            `json:"backstory"`
	TraitsFlaws    []string          `json:"traits_flaws"`
	Relationships  map[string]string `json:"relationships"`
}

// DefaultWorldSettings returns the world used when a request leaves fields out.
func DefaultWorldSettings() WorldSettings {
	return WorldSettings{
		WorldTheme:      "Medieval Fantasy",
		Location:        "Village",
		TimePeriod:      "Medieval",
		FactionTensions: "Neutral",
		TechLevel:       "Low-Tech",
		Environment:     "Temperate",
	}
}

// DefaultBehavior returns the behavior used when a request leaves fields out.
func DefaultBehavior() Behavior {
	return Behavior{
		CombatRole:        "Passive",
		TradeItems:        []string{},
		AvailableServices: []string{},
	}
}

// NewPersona builds a persona from a request mapping. Missing keys take the
// documented defaults, the name is required, and unknown keys are rejected.
func NewPersona(params map[string]any, now time.Time) (*Persona, error) {
	cp := characterParams{
		Gender:         "Male",
		Age:            "Adult",
		RaceSpecies:    "Human",
		Alignment:      "Neutral",
		ProfessionRole: "Citizen",
		Faction:        "None",
	}
	if err := decodeStrict("character_params", params, &cp); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cp.Name) == "" {
		return nil, &ValidationError{Section: "character_params", Reason: "name is required"}
	}

	p := &Persona{
		Name:           cp.Name,
		Gender:         cp.Gender,
		Age:            cp.Age,
		RaceSpecies:    cp.RaceSpecies,
		Personality:    cp.Personality,
		Alignment:      cp.Alignment,
		ProfessionRole: cp.ProfessionRole,
		Faction:        cp.Faction,
		Skills:         cp.Skills,
		Backstory:      cp.Backstory,
		TraitsFlaws:    cp.TraitsFlaws,
		Relationships:  cp.Relationships,
		CreatedAt:      now,
	}
	p.Normalize()
	return p, nil
}

// NewWorldSettings builds world settings from a request mapping on top of
// defaults.
func NewWorldSettings(params map[string]any, defaults WorldSettings) (*WorldSettings, error) {
	w := defaults
	if err := decodeStrict("world_settings", params, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// NewBehavior builds a behavior profile from a request mapping.
func NewBehavior(params map[string]any) (*Behavior, error) {
	b := DefaultBehavior()
	if err := decodeStrict("behavior_params", params, &b); err != nil {
		return nil, err
	}
	if b.QuestID != nil && *b.QuestID == "" {
		b.QuestID = nil
	}
	b.Normalize()
	return &b, nil
}

// decodeStrict round-trips the mapping through JSON into dst, which already
// holds the defaults, refusing keys dst does not declare.
func decodeStrict(section string, params map[string]any, dst any) error {
	if len(params) == 0 {
		return nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return &ValidationError{Section: section, Reason: err.Error()}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &ValidationError{Section: section, Reason: describeDecodeError(err)}
	}
	return nil
}

func describeDecodeError(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return fmt.Sprintf("field %q must be %s", typeErr.Field, typeErr.Type.String())
	}
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, "json: unknown field "); ok {
		return "unknown field " + rest
	}
	return msg
}
