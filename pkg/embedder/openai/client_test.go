package openai

import (
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(nil)
	assert.Error(t, err)

	_, err = NewClient(&Config{})
	assert.Error(t, err)
}

func TestNewClient_Defaults(t *testing.T) {
	client, err := NewClient(&Config{APIKey: "test-key"})
	require.NoError(t, err)

	assert.Equal(t, openai.AdaEmbeddingV2, client.model)
	assert.Equal(t, 1536, client.Dimensions())
}

func TestResolveModel(t *testing.T) {
	tests := []struct {
		name  string
		model string
		want  openai.EmbeddingModel
	}{
		{name: "empty defaults to ada v2", model: "", want: openai.AdaEmbeddingV2},
		{name: "known name resolves", model: "text-embedding-ada-002", want: openai.AdaEmbeddingV2},
		{name: "legacy name resolves", model: "text-similarity-ada-001", want: openai.AdaSimilarity},
		{name: "unrecognized falls back", model: "no-such-model", want: openai.AdaEmbeddingV2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveModel(tt.model))
		})
	}
}
