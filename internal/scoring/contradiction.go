package scoring

import "fmt"

// Sentiment is the polarity recorded on an evidence item.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
	SentimentMixed    Sentiment = "mixed"
)

// Opposite reports whether two sentiments are strictly opposed. Only the
// positive/negative pairing counts; neutral and mixed never conflict.
func Opposite(a, b Sentiment) bool {
	return (a == SentimentPositive && b == SentimentNegative) ||
		(a == SentimentNegative && b == SentimentPositive)
}

// Item carries the facts needed to judge contradiction candidacy.
type Item struct {
	ID           string
	Sentiment    Sentiment
	SourceSystem string
}

// Neighbor is a similar evidence item returned by vector recall.
type Neighbor struct {
	Item
	Similarity float64
}

// Conflict pairs the subject with a neighbor that contradicts it.
type Conflict struct {
	Neighbor Neighbor
	Reason   string
}

// Conflicts applies the direct contradiction rule: a neighbor contradicts
// the subject when it is at least minSimilarity similar, its sentiment is
// strictly opposite, and it was observed through a different source system.
// Items from the same source never conflict, and the subject itself is
// always excluded.
func Conflicts(subject Item, neighbors []Neighbor, minSimilarity float64) []Conflict {
	var out []Conflict
	for _, n := range neighbors {
		if n.ID == subject.ID || n.Similarity < minSimilarity {
			continue
		}
		if !Opposite(subject.Sentiment, n.Sentiment) {
			continue
		}
		if n.SourceSystem == subject.SourceSystem {
			continue
		}
		out = append(out, Conflict{
			Neighbor: n,
			Reason: fmt.Sprintf("opposite sentiment (%s vs %s) on a similar topic, reported via %s",
				subject.Sentiment, n.Sentiment, n.SourceSystem),
		})
	}
	return out
}
