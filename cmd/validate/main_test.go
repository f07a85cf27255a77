package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validNPC = `{
  "character_params": {
    "name": "Greta",
    "profession_role": "Blacksmith",
    "personality": ["gruff", "loyal"],
    "relationships": {"Hans": "brother"}
  },
  "world_settings": {"location": "Riverside"},
  "behavior_params": {"gives_quest": true, "quest_id": "q_lost_hammer", "trade_items": ["nails"]},
  "custom_prompt": "Speaks in short sentences."
}`

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr []string
	}{
		{name: "valid definition", data: validNPC},
		{name: "minimal definition", data: `{"character_params": {"name": "Tobin"}}`},
		{name: "not json", data: `{"character_params":`, wantErr: []string{"invalid JSON"}},
		{name: "unknown top-level key", data: `{"character_params": {"name": "X"}, "hp": 3}`, wantErr: []string{"strict JSON"}},
		{name: "missing character params", data: `{}`, wantErr: []string{"character_params is required"}},
		{name: "missing name", data: `{"character_params": {"age": "Old"}}`, wantErr: []string{"name is required"}},
		{
			name: "several problems reported together",
			data: `{
  "character_params": {"name": "X", "skills": ["", "smithing"], "relationships": {"Hans": " "}},
  "world_settings": {"weather": "rain"},
  "behavior_params": {"quest_id": "q_1"}
}`,
			wantErr: []string{
				"skills[0] is empty",
				`relationship "Hans" has no description`,
				`unknown field "weather"`,
				"gives_quest is false",
			},
		},
		{name: "bad behavior type", data: `{"character_params": {"name": "X"}, "behavior_params": {"gives_quest": "yes"}}`, wantErr: []string{"behavior_params"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &NPCValidator{}
			err := v.validate("npc.json", []byte(tt.data))
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestValidateFile_Names(t *testing.T) {
	dir := t.TempDir()
	write := func(name string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(validNPC), 0o644))
		return path
	}

	v := &NPCValidator{}
	assert.NoError(t, v.validateFile(write("old_smith.json")))

	err := v.validateFile(write("Old-Smith.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snake_case")

	err = v.validateFile(write("old_smith.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".json extension")

	err = v.validateFile(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read")
}
