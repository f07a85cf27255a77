package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupBroadcaster(t *testing.T) (*Broadcaster, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	b := NewBroadcaster(client, logger)
	b.now = func() time.Time { return time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC) }
	return b, client
}

func receive(t *testing.T, ch <-chan *redis.Message) Event {
	t.Helper()
	select {
	case msg := <-ch:
		var ev Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestBroadcaster_PublishesToPersonaChannel(t *testing.T) {
	b, client := setupBroadcaster(t)
	ctx := context.Background()

	sub := client.Subscribe(ctx, Channel("npc_0000abcd"))
	defer func() { _ = sub.Close() }()
	_, err := sub.Receive(ctx) // subscription confirmation
	require.NoError(t, err)
	ch := sub.Channel()

	require.NoError(t, b.PublishNPCCreated(ctx, "npc_0000abcd", "Greta"))
	ev := receive(t, ch)
	assert.Equal(t, EventTypeNPCCreated, ev.Type)
	assert.Equal(t, "npc_0000abcd", ev.NPCID)
	assert.Equal(t, "Greta", ev.Data["name"])
	assert.Equal(t, 2024, ev.Timestamp.Year())

	require.NoError(t, b.PublishDialogue(ctx, "npc_0000abcd", "hi", "hello", "Happy"))
	ev = receive(t, ch)
	assert.Equal(t, EventTypeDialogue, ev.Type)
	assert.Equal(t, "hello", ev.Data["response"])

	require.NoError(t, b.PublishContextCleared(ctx, "npc_0000abcd"))
	ev = receive(t, ch)
	assert.Equal(t, EventTypeContextCleared, ev.Type)
}

func TestChannel(t *testing.T) {
	assert.Equal(t, "npc-events:npc_1", Channel("npc_1"))
}
