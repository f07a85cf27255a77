package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/chronicle-npc/internal/services"
)

func TestInitModels_PullsChatAndEmbeddingModels(t *testing.T) {
	llm := services.NewMockLLMAPI()

	require.NoError(t, initModels(context.Background(), llm, "llama3", "nomic-embed-text"))
	assert.Equal(t, []string{"llama3", "nomic-embed-text"}, llm.InitModelCalls)
}

func TestInitModels_SkipsBlankAndRepeatedNames(t *testing.T) {
	llm := services.NewMockLLMAPI()

	require.NoError(t, initModels(context.Background(), llm, "llama3", "", "llama3"))
	assert.Equal(t, []string{"llama3"}, llm.InitModelCalls)
}

func TestInitModels_StopsOnFailure(t *testing.T) {
	llm := services.NewMockLLMAPI()
	llm.InitModelFunc = func(ctx context.Context, modelName string) error {
		if modelName == "nomic-embed-text" {
			return errors.New("pull failed")
		}
		return nil
	}

	err := initModels(context.Background(), llm, "nomic-embed-text", "llama3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nomic-embed-text")
	assert.Equal(t, []string{"nomic-embed-text"}, llm.InitModelCalls)
}
