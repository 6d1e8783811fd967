package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpposite(t *testing.T) {
	assert.True(t, Opposite(SentimentPositive, SentimentNegative))
	assert.True(t, Opposite(SentimentNegative, SentimentPositive))
	assert.False(t, Opposite(SentimentPositive, SentimentPositive))
	assert.False(t, Opposite(SentimentNeutral, SentimentNegative))
	assert.False(t, Opposite(SentimentMixed, SentimentPositive))
}

func TestConflicts(t *testing.T) {
	subject := Item{ID: "ev-1", Sentiment: SentimentPositive, SourceSystem: "zendesk"}

	t.Run("direct conflict", func(t *testing.T) {
		neighbors := []Neighbor{
			{Item: Item{ID: "ev-2", Sentiment: SentimentNegative, SourceSystem: "interview"}, Similarity: 0.9},
		}
		got := Conflicts(subject, neighbors, 0.75)
		require.Len(t, got, 1)
		assert.Equal(t, "ev-2", got[0].Neighbor.ID)
		assert.Contains(t, got[0].Reason, "opposite sentiment")
	})

	t.Run("same source never conflicts", func(t *testing.T) {
		neighbors := []Neighbor{
			{Item: Item{ID: "ev-2", Sentiment: SentimentNegative, SourceSystem: "zendesk"}, Similarity: 0.95},
		}
		assert.Empty(t, Conflicts(subject, neighbors, 0.75))
	})

	t.Run("below similarity threshold", func(t *testing.T) {
		neighbors := []Neighbor{
			{Item: Item{ID: "ev-2", Sentiment: SentimentNegative, SourceSystem: "interview"}, Similarity: 0.5},
		}
		assert.Empty(t, Conflicts(subject, neighbors, 0.75))
	})

	t.Run("subject excluded", func(t *testing.T) {
		neighbors := []Neighbor{
			{Item: Item{ID: "ev-1", Sentiment: SentimentNegative, SourceSystem: "interview"}, Similarity: 1.0},
		}
		assert.Empty(t, Conflicts(subject, neighbors, 0.75))
	})

	t.Run("neutral sentiment never conflicts", func(t *testing.T) {
		neighbors := []Neighbor{
			{Item: Item{ID: "ev-2", Sentiment: SentimentNeutral, SourceSystem: "interview"}, Similarity: 0.9},
		}
		assert.Empty(t, Conflicts(subject, neighbors, 0.75))
	})
}
