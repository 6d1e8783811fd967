package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAggregate(t *testing.T) {
	tests := []struct {
		name    string
		samples []Sample
		want    float64
	}{
		{name: "empty set", samples: nil, want: 0},
		{
			name:    "unweighted mean",
			samples: []Sample{{Strength: 80}, {Strength: 20}},
			want:    50.0,
		},
		{
			name:    "absent weight defaults to one",
			samples: []Sample{{Strength: 60, Weight: 0}, {Strength: 30, Weight: 1}},
			want:    45.0,
		},
		{
			name:    "explicit weights",
			samples: []Sample{{Strength: 100, Weight: 3}, {Strength: 0, Weight: 1}},
			want:    75.0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Aggregate(tt.samples), 1e-9)
		})
	}
}

func TestGateFor(t *testing.T) {
	tests := []struct {
		aggregate float64
		want      Gate
	}{
		{0, GatePark},
		{39.9, GatePark},
		{40, GateValidate},
		{50, GateValidate},
		{70, GateValidate},
		{70.1, GateCommit},
		{100, GateCommit},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GateFor(tt.aggregate), "aggregate %v", tt.aggregate)
	}
}

func TestGateForEmptyEvidence(t *testing.T) {
	// No linked evidence aggregates to zero and parks the decision.
	assert.Equal(t, GatePark, GateFor(Aggregate(nil)))
}

func TestRecency(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 1.0, Recency(now, now.AddDate(0, 0, -10)))
	assert.Equal(t, 0.85, Recency(now, now.AddDate(0, 0, -60)))
	assert.Equal(t, 0.7, Recency(now, now.AddDate(0, 0, -120)))
}

func TestComputed(t *testing.T) {
	assert.InDelta(t, 68.0, Computed(80, 1.0, 0.85), 1e-9)
	assert.InDelta(t, 80.0, Computed(80, 0, 0), 1e-9) // absent factors default
	assert.Equal(t, 100.0, Computed(90, 1.5, 1.0))    // clamped
	assert.Equal(t, 0.0, Computed(-5, 1, 1))
}

func TestBand(t *testing.T) {
	assert.Equal(t, "Strong", Band(70))
	assert.Equal(t, "Moderate", Band(40))
	assert.Equal(t, "Weak", Band(39.9))
}
