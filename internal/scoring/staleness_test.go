package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaleness(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("no dated items", func(t *testing.T) {
		rep := Staleness(now, nil)
		assert.True(t, rep.NoDates)
		assert.Equal(t, 1.0, rep.StaleFraction)
	})

	t.Run("fresh evidence", func(t *testing.T) {
		rep := Staleness(now, []time.Time{now.AddDate(0, 0, -3), now.AddDate(0, 0, -10)})
		assert.False(t, rep.NoDates)
		assert.Equal(t, 3, rep.DaysSinceLatest)
		assert.Zero(t, rep.StaleFraction)
	})

	t.Run("half stale", func(t *testing.T) {
		rep := Staleness(now, []time.Time{now.AddDate(0, 0, -5), now.AddDate(0, 0, -120)})
		assert.Equal(t, 5, rep.DaysSinceLatest)
		assert.InDelta(t, 0.5, rep.StaleFraction, 1e-9)
	})
}

func TestStaleReasons(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("single hundred day old item triggers both age reasons", func(t *testing.T) {
		rep := Staleness(now, []time.Time{now.AddDate(0, 0, -100)})
		reasons := StaleReasons(rep, GateValidate, 55)
		require.Len(t, reasons, 2)
		assert.Contains(t, reasons[0], "no new evidence in 100 days")
		assert.Contains(t, reasons[1], "older than 90 days")
	})

	t.Run("healthy evidence yields no reasons", func(t *testing.T) {
		rep := Staleness(now, []time.Time{now.AddDate(0, 0, -2)})
		assert.Empty(t, StaleReasons(rep, GateValidate, 55))
	})

	t.Run("weak committed decision flagged", func(t *testing.T) {
		rep := Staleness(now, []time.Time{now.AddDate(0, 0, -2)})
		reasons := StaleReasons(rep, GateCommit, 30)
		require.Len(t, reasons, 1)
		assert.Contains(t, reasons[0], "weak evidence")
	})

	t.Run("weak validate decision not flagged for strength", func(t *testing.T) {
		rep := Staleness(now, []time.Time{now.AddDate(0, 0, -2)})
		assert.Empty(t, StaleReasons(rep, GateValidate, 30))
	})

	t.Run("no dated evidence", func(t *testing.T) {
		reasons := StaleReasons(Report{NoDates: true, StaleFraction: 1}, GatePark, 0)
		assert.Equal(t, []string{"no dated evidence"}, reasons)
	})
}
