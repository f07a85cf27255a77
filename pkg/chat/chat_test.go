package chat

import (
	"encoding/json"
	"testing"
)

func TestTalkRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     TalkRequest
		wantErr bool
	}{
		{"valid", TalkRequest{NPCID: "npc_1", PlayerInput: "Hello"}, false},
		{"missing npc", TalkRequest{PlayerInput: "Hello"}, true},
		{"blank input", TalkRequest{NPCID: "npc_1", PlayerInput: "   "}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSearchRequest_Validate(t *testing.T) {
	if err := (&SearchRequest{Query: "blacksmith"}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := (&SearchRequest{}).Validate(); err == nil {
		t.Error("expected error for empty query")
	}
	if err := (&SearchRequest{Query: "x", Limit: -1}).Validate(); err == nil {
		t.Error("expected error for negative limit")
	}
}

func TestCreateNPCRequest_Validate(t *testing.T) {
	if err := (&CreateNPCRequest{}).Validate(); err == nil {
		t.Error("expected error when character_params is missing")
	}
	r := CreateNPCRequest{CharacterParams: map[string]any{"name": "Aldric"}}
	if err := r.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestEnvelope_OmitsUnsetFields(t *testing.T) {
	data, err := json.Marshal(Envelope{Success: true, NPCID: "npc_1"})
	if err != nil {
		t.Fatal(err)
	}
	if got := string(data); got != `{"success":true,"npc_id":"npc_1"}` {
		t.Errorf("unexpected envelope: %s", got)
	}

	data, _ = json.Marshal(Envelope{Success: false, Error: "NPC not found"})
	if got := string(data); got != `{"success":false,"error":"NPC not found"}` {
		t.Errorf("unexpected envelope: %s", got)
	}
}

func TestSearchResponse_AlwaysHasList(t *testing.T) {
	data, err := json.Marshal(SearchResponse{Success: true, NPCs: []NPCHit{}})
	if err != nil {
		t.Fatal(err)
	}
	if got := string(data); got != `{"success":true,"npcs":[]}` {
		t.Errorf("unexpected search response: %s", got)
	}
}
