package graph

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// tState is the pipeline state used throughout these tests. Optional
// fields are pointers so a partial update only carries what a node set.
type tState struct {
	Trace          []string
	Segment        *string
	Contradictions *int
	Runs           *int
}

func (s tState) Merge(p tState) tState {
	out := s
	out.Trace = append(append([]string(nil), s.Trace...), p.Trace...)
	if p.Segment != nil {
		out.Segment = p.Segment
	}
	if p.Contradictions != nil {
		out.Contradictions = p.Contradictions
	}
	if p.Runs != nil {
		out.Runs = p.Runs
	}
	return out
}

func (s tState) Clone() tState {
	out := s
	out.Trace = append([]string(nil), s.Trace...)
	return out
}

func ptr[T any](v T) *T { return &v }

func step(name string) NodeFunc[tState] {
	return func(ctx context.Context, s tState) (tState, error) {
		return tState{Trace: []string{name}}, nil
	}
}

func TestRunSequential(t *testing.T) {
	b := New[tState]("seq", zap.NewNop())
	b.Node("a", step("a")).Node("b", step("b")).Node("c", step("c"))
	b.Edge("a", "b").Edge("b", "c")
	g, err := b.Compile()
	require.NoError(t, err)

	out, err := g.Run(context.Background(), "a", tState{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, out.Trace)
}

func TestParallelMergeDeclarationOrder(t *testing.T) {
	setSegment := func(v string) NodeFunc[tState] {
		return func(ctx context.Context, s tState) (tState, error) {
			return tState{Trace: []string{v}, Segment: ptr(v)}, nil
		}
	}

	b := New[tState]("par", zap.NewNop())
	b.Node("entry", step("entry"))
	b.Node("first", setSegment("first"))
	b.Node("second", setSegment("second"))
	b.Node("join", step("join"))
	b.Parallel("entry", []string{"first", "second"}, "join")
	g, err := b.Compile()
	require.NoError(t, err)

	out, err := g.Run(context.Background(), "entry", tState{})
	require.NoError(t, err)
	require.NotNil(t, out.Segment)
	// Both members set the field; the later-declared member wins.
	assert.Equal(t, "second", *out.Segment)
	assert.Equal(t, "join", out.Trace[len(out.Trace)-1])
}

func TestParallelFailureIsolation(t *testing.T) {
	segment := func(ctx context.Context, s tState) (tState, error) {
		return tState{Segment: ptr("Enterprise")}, nil
	}
	contradiction := func(ctx context.Context, s tState) (tState, error) {
		return tState{}, errors.New("reasoning service down")
	}

	b := New[tState]("iso", zap.NewNop())
	b.Node("entry", step("entry"))
	b.Node("segment", segment)
	b.Node("contradiction", contradiction, WithFallback(tState{Contradictions: ptr(0)}))
	b.Node("join", step("join"))
	b.Parallel("entry", []string{"segment", "contradiction"}, "join")
	g, err := b.Compile()
	require.NoError(t, err)

	out, err := g.Run(context.Background(), "entry", tState{})
	require.NoError(t, err)
	// The sibling's result survives the failure; the fallback fills in.
	require.NotNil(t, out.Segment)
	assert.Equal(t, "Enterprise", *out.Segment)
	require.NotNil(t, out.Contradictions)
	assert.Equal(t, 0, *out.Contradictions)
}

func TestBranchLoopWithBudget(t *testing.T) {
	gather := func(ctx context.Context, s tState) (tState, error) {
		runs := 1
		if s.Runs != nil {
			runs = *s.Runs + 1
		}
		return tState{Trace: []string{"gather"}, Runs: ptr(runs)}, nil
	}
	route := func(s tState) string {
		if s.Runs != nil && *s.Runs < 2 {
			return "again"
		}
		return "done"
	}

	b := New[tState]("loop", zap.NewNop())
	b.Node("gather", gather)
	b.Node("check", step("check"))
	b.Node("finalize", step("finalize"))
	b.Edge("gather", "check")
	b.Branch("check", route, map[string]string{"again": "gather", "done": "finalize"}, WithMaxRevisits(1))
	g, err := b.Compile()
	require.NoError(t, err)

	out, err := g.Run(context.Background(), "gather", tState{})
	require.NoError(t, err)
	require.NotNil(t, out.Runs)
	assert.Equal(t, 2, *out.Runs)
	assert.Equal(t, []string{"gather", "check", "gather", "check", "finalize"}, out.Trace)
}

func TestBranchBudgetExhausted(t *testing.T) {
	always := func(s tState) string { return "again" }

	b := New[tState]("hot", zap.NewNop())
	b.Node("gather", step("gather"))
	b.Node("check", step("check"))
	b.Node("finalize", step("finalize"))
	b.Edge("gather", "check")
	b.Branch("check", always, map[string]string{"again": "gather", "done": "finalize"}, WithMaxRevisits(1))
	g, err := b.Compile()
	require.NoError(t, err)

	_, err = g.Run(context.Background(), "gather", tState{})
	assert.ErrorIs(t, err, ErrNoProgress)
}

func TestNodeTimeout(t *testing.T) {
	slow := func(ctx context.Context, s tState) (tState, error) {
		select {
		case <-ctx.Done():
			return tState{}, ctx.Err()
		case <-time.After(5 * time.Second):
			return tState{Segment: ptr("late")}, nil
		}
	}

	b := New[tState]("slow", zap.NewNop())
	b.Node("slow", slow, WithTimeout[tState](10*time.Millisecond), WithFallback(tState{Contradictions: ptr(0)}))
	g, err := b.Compile()
	require.NoError(t, err)

	out, err := g.Run(context.Background(), "slow", tState{})
	require.NoError(t, err)
	assert.Nil(t, out.Segment)
	require.NotNil(t, out.Contradictions)
}

func TestCompileErrors(t *testing.T) {
	t.Run("unknown edge target", func(t *testing.T) {
		b := New[tState]("bad", zap.NewNop())
		b.Node("a", step("a"))
		b.Edge("a", "missing")
		_, err := b.Compile()
		assert.ErrorIs(t, err, ErrDefinition)
	})

	t.Run("duplicate outgoing construct", func(t *testing.T) {
		b := New[tState]("bad", zap.NewNop())
		b.Node("a", step("a")).Node("b", step("b")).Node("c", step("c"))
		b.Edge("a", "b")
		b.Edge("a", "c")
		_, err := b.Compile()
		assert.ErrorIs(t, err, ErrDefinition)
	})

	t.Run("static cycle", func(t *testing.T) {
		b := New[tState]("bad", zap.NewNop())
		b.Node("a", step("a")).Node("b", step("b"))
		b.Edge("a", "b")
		b.Edge("b", "a")
		_, err := b.Compile()
		assert.ErrorIs(t, err, ErrDefinition)
	})

	t.Run("cycle-closing branch without budget", func(t *testing.T) {
		b := New[tState]("bad", zap.NewNop())
		b.Node("a", step("a")).Node("b", step("b")).Node("done", step("done"))
		b.Edge("a", "b")
		b.Branch("b", func(s tState) string { return "done" }, map[string]string{"again": "a", "done": "done"})
		_, err := b.Compile()
		assert.ErrorIs(t, err, ErrDefinition)
	})

	t.Run("duplicate node", func(t *testing.T) {
		b := New[tState]("bad", zap.NewNop())
		b.Node("a", step("a")).Node("a", step("a"))
		_, err := b.Compile()
		assert.ErrorIs(t, err, ErrDefinition)
	})
}

func TestRunUnknownEntry(t *testing.T) {
	b := New[tState]("empty", zap.NewNop())
	b.Node("a", step("a"))
	g, err := b.Compile()
	require.NoError(t, err)

	_, err = g.Run(context.Background(), "missing", tState{})
	assert.ErrorIs(t, err, ErrDefinition)
}

func TestRunUnknownBranchLabel(t *testing.T) {
	b := New[tState]("bad-label", zap.NewNop())
	b.Node("a", step("a")).Node("b", step("b"))
	b.Branch("a", func(s tState) string { return "nope" }, map[string]string{"next": "b"})
	g, err := b.Compile()
	require.NoError(t, err)

	_, err = g.Run(context.Background(), "a", tState{})
	assert.ErrorIs(t, err, ErrDefinition)
}
