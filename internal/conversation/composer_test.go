package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/chronicle-npc/internal/logger"
	"github.com/jwebster45206/chronicle-npc/internal/services"
	"github.com/jwebster45206/chronicle-npc/pkg/actor"
	"github.com/jwebster45206/chronicle-npc/pkg/chat"
	"github.com/jwebster45206/chronicle-npc/pkg/dialogue"
	"github.com/jwebster45206/chronicle-npc/pkg/storage"
)

const testNPCID = "npc_0000beef"

type dialogueEvent struct {
	npcID, input, response, mood string
}

type recordingPublisher struct {
	events []dialogueEvent
}

func (p *recordingPublisher) PublishDialogue(ctx context.Context, npcID, playerInput, response, mood string) error {
	p.events = append(p.events, dialogueEvent{npcID, playerInput, response, mood})
	return nil
}

var testClock = time.Date(2024, 7, 4, 18, 30, 0, 0, time.UTC)

func newTestComposer(t *testing.T, opts Options) (*Composer, *storage.MockStorage, *services.MockLLMAPI) {
	t.Helper()
	store := storage.NewMockStorage()
	store.AddPersona(actor.Record{
		NPC: &actor.Persona{
			NPCID:          testNPCID,
			Name:           "Greta",
			RaceSpecies:    "Dwarf",
			ProfessionRole: "Blacksmith",
			Backstory:      "Forged the king's blade.",
		},
		World:    &actor.WorldSettings{WorldTheme: "Medieval Fantasy", Location: "Ironhold"},
		Behavior: &actor.Behavior{CombatRole: "Passive"},
	})
	llm := services.NewMockLLMAPI()
	c := NewComposer(store, llm, opts, logger.Discard())
	c.now = func() time.Time { return testClock }
	return c, store, llm
}

func addTurn(t *testing.T, store *storage.MockStorage, input, response string, at time.Time) {
	t.Helper()
	turn := dialogue.NewTurn(testNPCID, input, response, actor.DefaultDialogueContext(), nil, at)
	require.NoError(t, store.StoreTurn(context.Background(), &turn))
}

func TestGenerateDialogue(t *testing.T) {
	c, store, llm := newTestComposer(t, DefaultOptions())
	llm.SetResponse("  Aye, the forge is hot today.  ")
	pub := &recordingPublisher{}
	c.SetEventPublisher(pub)

	dc := actor.DialogueContext{DialogueType: "TRADE", Mood: "Happy", Conditions: []string{"raining"}}
	extra := map[string]any{"weather": "rain"}

	reply, err := c.GenerateDialogue(context.Background(), testNPCID, "Hello there", dc, extra)
	require.NoError(t, err)
	assert.Equal(t, "Aye, the forge is hot today.", reply)

	calls := llm.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, 0.7, calls[0].Options.Temperature)
	prompt := calls[0].Messages[0].Content
	assert.Equal(t, chat.ChatRoleUser, calls[0].Messages[0].Role)
	assert.Contains(t, prompt, "Greta")
	assert.Contains(t, prompt, "Hello there")
	assert.Contains(t, prompt, "This is your first conversation.")
	assert.Contains(t, prompt, `"weather": "rain"`)
	assert.Contains(t, prompt, "raining")

	turns := store.Turns()
	require.Len(t, turns, 1)
	assert.Equal(t, "Hello there", turns[0].PlayerInput)
	assert.Equal(t, "Aye, the forge is hot today.", turns[0].NPCResponse)
	assert.Equal(t, "TRADE", turns[0].DialogueType)
	assert.Equal(t, "Happy", turns[0].Mood)
	assert.Equal(t, "FIRST_MEET", turns[0].Context["dialogue_stage"], "missing context fields take defaults")
	assert.Equal(t, extra, turns[0].Context["additional_context"])
	assert.True(t, turns[0].Timestamp.Equal(testClock))

	rec := store.GetPersona(context.Background(), testNPCID)
	assert.Equal(t, 1, rec.NPC.InteractionCount)
	require.NotNil(t, rec.NPC.LastInteraction)

	require.Len(t, pub.events, 1)
	assert.Equal(t, dialogueEvent{testNPCID, "Hello there", "Aye, the forge is hot today.", "Happy"}, pub.events[0])
}

func TestGenerateDialogue_UnknownPersona(t *testing.T) {
	c, store, llm := newTestComposer(t, DefaultOptions())

	_, err := c.GenerateDialogue(context.Background(), "npc_nobody", "Hi", actor.DialogueContext{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrPersonaNotFound)
	assert.Empty(t, llm.Calls())
	assert.Empty(t, store.Turns())
}

func TestGenerateDialogue_LLMFailureUsesFallback(t *testing.T) {
	c, store, llm := newTestComposer(t, DefaultOptions())
	llm.SetGenerateResponseError(errors.New("timeout"))

	reply, err := c.GenerateDialogue(context.Background(), testNPCID, "Hi", actor.DialogueContext{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "*Greta seems distracted and doesn't respond clearly.*", reply)

	turns := store.Turns()
	require.Len(t, turns, 1, "fallback replies are still recorded")
	assert.Equal(t, reply, turns[0].NPCResponse)
}

func TestGenerateDialogue_StorageFailuresDoNotBlockReply(t *testing.T) {
	c, store, llm := newTestComposer(t, DefaultOptions())
	llm.SetResponse("Welcome.")
	store.StoreTurnFunc = func(ctx context.Context, turn *dialogue.Turn) error {
		return errors.New("disk full")
	}
	store.RecordFunc = func(ctx context.Context, npcID string, at time.Time) error {
		return errors.New("write conflict")
	}

	reply, err := c.GenerateDialogue(context.Background(), testNPCID, "Hi", actor.DialogueContext{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Welcome.", reply)
}

func TestGenerateDialogue_HistoryInPrompt(t *testing.T) {
	c, store, llm := newTestComposer(t, DefaultOptions())
	for i := 1; i <= 5; i++ {
		addTurn(t, store, "question "+string(rune('0'+i)), "answer "+string(rune('0'+i)), testClock.Add(-time.Duration(10-i)*time.Minute))
	}

	_, err := c.GenerateDialogue(context.Background(), testNPCID, "And now?", actor.DialogueContext{}, nil)
	require.NoError(t, err)

	prompt := llm.Calls()[0].Messages[0].Content
	assert.NotContains(t, prompt, "This is your first conversation.")
	assert.NotContains(t, prompt, "question 2")
	i3 := strings.Index(prompt, "Player: question 3")
	i4 := strings.Index(prompt, "Player: question 4")
	i5 := strings.Index(prompt, "Player: question 5")
	require.True(t, i3 >= 0 && i4 >= 0 && i5 >= 0, "three most recent exchanges are shown")
	assert.True(t, i3 < i4 && i4 < i5, "oldest first")
	assert.Contains(t, prompt, "Greta: answer 5")
}

func TestGenerateDialogue_ContentFilter(t *testing.T) {
	opts := DefaultOptions()
	opts.ContentRating = "PG"
	c, _, llm := newTestComposer(t, opts)
	llm.SetResponse("Well damn, that is a shit deal.")

	reply, err := c.GenerateDialogue(context.Background(), testNPCID, "Buy my sword?", actor.DialogueContext{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Well dang, that is a shoot deal.", reply)
	assert.Contains(t, llm.Calls()[0].Messages[0].Content, "CONTENT RATING: PG")
}

func TestGenerateDialogue_NoFilterForR(t *testing.T) {
	opts := DefaultOptions()
	opts.ContentRating = "R"
	c, _, llm := newTestComposer(t, opts)
	llm.SetResponse("Well damn.")

	reply, err := c.GenerateDialogue(context.Background(), testNPCID, "Hi", actor.DialogueContext{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Well damn.", reply)
}

func TestConversationSummary(t *testing.T) {
	c, store, _ := newTestComposer(t, DefaultOptions())
	assert.Equal(t, NoHistory, c.ConversationSummary(context.Background(), testNPCID))

	long := strings.Repeat("x", 80)
	addTurn(t, store, "first", "reply one", testClock.Add(-3*time.Hour))
	addTurn(t, store, "second", "reply two", testClock.Add(-2*time.Hour))
	addTurn(t, store, "third", "reply three", testClock.Add(-1*time.Hour))
	addTurn(t, store, long, long, testClock)

	summary := c.ConversationSummary(context.Background(), testNPCID)
	assert.True(t, strings.HasPrefix(summary, "📜 **Conversation Summary with Greta**\n"))
	assert.Contains(t, summary, "Total Interactions: 4\n")
	assert.Contains(t, summary, "Last Interaction: 2024-07-04 18:30\n\n")
	assert.Contains(t, summary, "**Recent Exchanges:**\n")
	assert.Contains(t, summary, "1. Player: "+strings.Repeat("x", 50)+"...\n")
	assert.Contains(t, summary, "   Greta: "+strings.Repeat("x", 50)+"...\n\n")
	assert.Contains(t, summary, "3. Player: second...\n")
	assert.NotContains(t, summary, "first")
}

func TestConversationSummary_UnknownPersonaName(t *testing.T) {
	c, store, _ := newTestComposer(t, DefaultOptions())
	turn := dialogue.NewTurn("npc_ghost", "boo", "...", actor.DefaultDialogueContext(), nil, testClock)
	require.NoError(t, store.StoreTurn(context.Background(), &turn))

	summary := c.ConversationSummary(context.Background(), "npc_ghost")
	assert.Contains(t, summary, "Conversation Summary with Unknown NPC")
	assert.Contains(t, summary, "   Unknown NPC: ......")
}
