package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jwebster45206/chronicle-npc/internal/services"
	"github.com/jwebster45206/chronicle-npc/pkg/actor"
	"github.com/jwebster45206/chronicle-npc/pkg/chat"
	"github.com/jwebster45206/chronicle-npc/pkg/dialogue"
	"github.com/jwebster45206/chronicle-npc/pkg/prompts"
	"github.com/jwebster45206/chronicle-npc/pkg/storage"
	"github.com/jwebster45206/chronicle-npc/pkg/textfilter"
)

// EventPublisher announces completed dialogue turns.
type EventPublisher interface {
	PublishDialogue(ctx context.Context, npcID, playerInput, response, mood string) error
}

// Options tunes how much history is read and how replies are generated.
type Options struct {
	HistoryTurns  int // turns fetched for the prompt
	PromptTurns   int // turns rendered into the prompt
	SummaryTurns  int // turns read for the conversation summary
	Temperature   float64
	ContentRating string
}

// DefaultOptions returns the stock dialogue settings.
func DefaultOptions() Options {
	return Options{
		HistoryTurns: 5,
		PromptTurns:  3,
		SummaryTurns: 10,
		Temperature:  0.7,
	}
}

// Composer produces in-character replies and records each exchange.
type Composer struct {
	storage    storage.Storage
	llmService services.LLMService
	opts       Options
	filter     *textfilter.Filter
	events     EventPublisher
	logger     *slog.Logger
	now        func() time.Time
}

// NewComposer creates a new dialogue composer
func NewComposer(storage storage.Storage, llmService services.LLMService, opts Options, logger *slog.Logger) *Composer {
	return &Composer{
		storage:    storage,
		llmService: llmService,
		opts:       opts,
		filter:     textfilter.ForRating(opts.ContentRating),
		logger:     logger,
		now:        time.Now,
	}
}

// SetEventPublisher enables npc.dialogue events.
func (c *Composer) SetEventPublisher(p EventPublisher) {
	c.events = p
}

// GenerateDialogue answers playerInput in character. It fails only when the
// persona does not exist; model and storage problems are logged and the
// player still gets a reply.
func (c *Composer) GenerateDialogue(ctx context.Context, npcID, playerInput string, dc actor.DialogueContext, extra map[string]any) (string, error) {
	rec := c.storage.GetPersona(ctx, npcID)
	if rec == nil {
		return "", fmt.Errorf("%s: %w", npcID, storage.ErrPersonaNotFound)
	}
	dc = dc.WithDefaults()

	history := c.storage.TurnsForPersona(ctx, npcID, c.opts.HistoryTurns)
	response := c.reply(ctx, rec, playerInput, dc, history, extra)

	if c.filter != nil {
		response = c.filter.Apply(response)
	}

	at := c.now()
	turn := dialogue.NewTurn(npcID, playerInput, response, dc, extra, at)
	if err := c.storage.StoreTurn(ctx, &turn); err != nil {
		c.logger.Error("Failed to store dialogue", "npc_id", npcID, "error", err)
	}
	if err := c.storage.RecordInteraction(ctx, npcID, at); err != nil {
		c.logger.Warn("Failed to update interaction count", "npc_id", npcID, "error", err)
	}

	if c.events != nil {
		if err := c.events.PublishDialogue(ctx, npcID, playerInput, response, dc.Mood); err != nil {
			c.logger.Warn("Failed to publish dialogue event", "npc_id", npcID, "error", err)
		}
	}
	return response, nil
}

func (c *Composer) reply(ctx context.Context, rec *actor.Record, playerInput string, dc actor.DialogueContext, history []dialogue.Turn, extra map[string]any) string {
	fallback := Fallback(rec.NPC.Name)

	messages, err := prompts.New().
		WithRecord(rec).
		WithDialogueContext(dc).
		WithHistory(history).
		WithHistoryLimit(c.opts.PromptTurns).
		WithExtraContext(extra).
		WithPlayerInput(playerInput).
		WithContentRating(c.opts.ContentRating).
		Build()
	if err != nil {
		c.logger.Error("Error building dialogue prompt", "npc_id", rec.NPC.NPCID, "error", err)
		return fallback
	}

	resp, err := c.llmService.GetChatResponse(ctx, messages, chat.GenerateOptions{Temperature: c.opts.Temperature})
	if err != nil {
		c.logger.Error("Error generating dialogue", "npc_id", rec.NPC.NPCID, "error", err)
		return fallback
	}
	return strings.TrimSpace(resp.Message)
}

// Fallback is the reply used when the model cannot answer.
func Fallback(name string) string {
	return fmt.Sprintf("*%s seems distracted and doesn't respond clearly.*", name)
}
