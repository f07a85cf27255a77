package actor

// DialogueContext describes the situation of a single conversational turn.
// It is never persisted on its own; a snapshot is kept with each turn.
type DialogueContext struct {
	DialogueType     string   `json:"dialogue_type"`  // e.g. "GREETING", "QUEST", "TRADE"
	DialogueStage    string   `json:"dialogue_stage"` // e.g. "FIRST_MEET", "ONGOING"
	Mood             string   `json:"mood"`
	PlayerReputation string   `json:"player_reputation"`
	QuestState       string   `json:"quest_state"`
	Conditions       []string `json:"conditions"`
}

// DefaultDialogueContext returns the context used for fields a caller omits.
func DefaultDialogueContext() DialogueContext {
	return DialogueContext{
		DialogueType:     "GREETING",
		DialogueStage:    "FIRST_MEET",
		Mood:             "Neutral",
		PlayerReputation: "Unknown",
		QuestState:       "Not Given",
		Conditions:       []string{},
	}
}

// WithDefaults fills empty fields from DefaultDialogueContext.
func (c DialogueContext) WithDefaults() DialogueContext {
	d := DefaultDialogueContext()
	if c.DialogueType == "" {
		c.DialogueType = d.DialogueType
	}
	if c.DialogueStage == "" {
		c.DialogueStage = d.DialogueStage
	}
	if c.Mood == "" {
		c.Mood = d.Mood
	}
	if c.PlayerReputation == "" {
		c.PlayerReputation = d.PlayerReputation
	}
	if c.QuestState == "" {
		c.QuestState = d.QuestState
	}
	if c.Conditions == nil {
		c.Conditions = d.Conditions
	}
	return c
}
