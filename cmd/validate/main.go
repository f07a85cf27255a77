package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/jwebster45206/chronicle-npc/pkg/actor"
	"github.com/jwebster45206/chronicle-npc/pkg/chat"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <npc.json> [more.json ...]\n", os.Args[0])
		os.Exit(1)
	}

	failed := false
	for _, filename := range os.Args[1:] {
		validator := &NPCValidator{}
		if err := validator.validateFile(filename); err != nil {
			fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
			failed = true
			continue
		}
		fmt.Printf("%s is valid!\n", filename)
	}
	if failed {
		os.Exit(1)
	}
}

// NPCValidator checks NPC definition files: the body a client would post
// to /create_npc.
type NPCValidator struct {
	errors []string
}

var snakeCase = regexp.MustCompile(`^[a-z0-9]+(_[a-z0-9]+)*$`)

func (v *NPCValidator) validateFile(filename string) error {
	fmt.Printf("Validating %s...\n", filename)

	baseName := filepath.Base(filename)
	if !strings.HasSuffix(baseName, ".json") {
		return fmt.Errorf("NPC file must have .json extension: %s", baseName)
	}
	if !snakeCase.MatchString(strings.TrimSuffix(baseName, ".json")) {
		return fmt.Errorf("NPC filename '%s' must be lowercase snake_case (e.g., old_smith.json, not old-smith.json or OldSmith.json)", baseName)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	return v.validate(filename, data)
}

func (v *NPCValidator) validate(filename string, data []byte) error {
	v.errors = nil

	if !json.Valid(data) {
		return fmt.Errorf("file %s contains invalid JSON", filename)
	}

	var req chat.CreateNPCRequest
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		return fmt.Errorf("file %s failed strict JSON unmarshaling: %w", filename, err)
	}

	if err := req.Validate(); err != nil {
		v.errors = append(v.errors, err.Error())
	} else {
		v.validateDefinition(&req)
	}

	if len(v.errors) > 0 {
		return fmt.Errorf("validation errors in %s:\n%s", filename, strings.Join(v.errors, "\n"))
	}
	return nil
}

func (v *NPCValidator) validateDefinition(req *chat.CreateNPCRequest) {
	npc, err := actor.NewPersona(req.CharacterParams, time.Now())
	if err != nil {
		v.errors = append(v.errors, err.Error())
	} else {
		v.validatePersona(npc)
	}

	if _, err := actor.NewWorldSettings(req.WorldSettings, actor.DefaultWorldSettings()); err != nil {
		v.errors = append(v.errors, err.Error())
	}

	behavior, err := actor.NewBehavior(req.BehaviorParams)
	if err != nil {
		v.errors = append(v.errors, err.Error())
		return
	}
	if behavior.QuestID != nil && !behavior.GivesQuest {
		v.errors = append(v.errors, fmt.Sprintf("behavior_params: quest_id %q is set but gives_quest is false", *behavior.QuestID))
	}
}

func (v *NPCValidator) validatePersona(npc *actor.Persona) {
	for name, desc := range npc.Relationships {
		if strings.TrimSpace(name) == "" {
			v.errors = append(v.errors, "character_params: relationship with an empty name")
		} else if strings.TrimSpace(desc) == "" {
			v.errors = append(v.errors, fmt.Sprintf("character_params: relationship %q has no description", name))
		}
	}
	for _, list := range []struct {
		field string
		items []string
	}{
		{"personality", npc.Personality},
		{"skills", npc.Skills},
		{"traits_flaws", npc.TraitsFlaws},
	} {
		for i, item := range list.items {
			if strings.TrimSpace(item) == "" {
				v.errors = append(v.errors, fmt.Sprintf("character_params: %s[%d] is empty", list.field, i))
			}
		}
	}
}
