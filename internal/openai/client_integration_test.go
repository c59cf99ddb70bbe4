//go:build integration

package openai

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegration_EmbedBatch_RealAPI(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY not set, skipping integration test")
	}

	client := NewClient(apiKey)
	ctx := context.Background()

	got, err := client.EmbedBatch(ctx, []string{"Inflation rose 3%.", "The championship game ended in overtime."})

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Len(t, got[0], DefaultEmbeddingDimensions)
	assert.Len(t, got[1], DefaultEmbeddingDimensions)
}

func TestIntegration_JudgeSupport_RealAPI(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY not set, skipping integration test")
	}

	client := NewClient(apiKey)
	got := client.JudgeSupport(context.Background(), JudgeRequest{
		Generated: "Prices increased by three percent this quarter.",
		Catalog: []CatalogEntry{
			{ID: "A#1", Text: "Inflation rose 3%."},
			{ID: "C#1", Text: "The championship game ended in overtime."},
		},
	})

	require.Equal(t, JudgeOK, got.Outcome, got.Raw)
	assert.NotContains(t, got.IDs, "C#1")
}
