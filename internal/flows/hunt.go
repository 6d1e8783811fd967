package flows

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/discoveryd/internal/graph"
	"github.com/fyrsmithlabs/discoveryd/internal/vectorstore"
)

const (
	// minHits is how many relevant items a hunt aims for before giving up
	// on further passes.
	minHits = 3

	// maxHuntPasses bounds the query-search-filter loop.
	maxHuntPasses = 2
)

// HuntState is the evidence-hunt pipeline's state.
type HuntState struct {
	WorkspaceID string
	DecisionID  string
	Hypothesis  string

	Passes   *int
	Queries  *[]string
	Matches  *[]vectorstore.Match
	Filtered *[]vectorstore.Match
	Summary  *string
	AlertID  *string
}

// Merge folds a partial update into the state; set fields win.
func (s HuntState) Merge(partial HuntState) HuntState {
	if partial.WorkspaceID != "" {
		s.WorkspaceID = partial.WorkspaceID
	}
	if partial.DecisionID != "" {
		s.DecisionID = partial.DecisionID
	}
	if partial.Hypothesis != "" {
		s.Hypothesis = partial.Hypothesis
	}
	if partial.Passes != nil {
		s.Passes = partial.Passes
	}
	if partial.Queries != nil {
		s.Queries = partial.Queries
	}
	if partial.Matches != nil {
		s.Matches = partial.Matches
	}
	if partial.Filtered != nil {
		s.Filtered = partial.Filtered
	}
	if partial.Summary != nil {
		s.Summary = partial.Summary
	}
	if partial.AlertID != nil {
		s.AlertID = partial.AlertID
	}
	return s
}

// Clone returns an independent copy; this pipeline has no parallel
// members, so a shallow copy suffices.
func (s HuntState) Clone() HuntState { return s }

// HuntResult is what a completed hunt reports.
type HuntResult struct {
	Queries []string
	Found   []vectorstore.Match
	Summary string
	Passes  int
	AlertID string
}

// Hunt searches the workspace's indexed evidence for support for a
// hypothesis and links what it finds to a decision. A pass that yields
// fewer than minHits relevant items re-generates queries, up to
// maxHuntPasses passes total.
type Hunt struct {
	graph  *graph.Graph[HuntState]
	store  Store
	logger *zap.Logger
}

// NewHunt compiles the evidence-hunt pipeline.
func NewHunt(st Store, hunter Hunter, logger *zap.Logger) (*Hunt, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("hunt")

	g, err := graph.New[HuntState]("evidence_hunt", logger).
		Node("queries", func(ctx context.Context, s HuntState) (HuntState, error) {
			queries, err := hunter.GenerateQueries(ctx, s.Hypothesis)
			if err != nil {
				return HuntState{}, err
			}
			passes := 1
			if s.Passes != nil {
				passes = *s.Passes + 1
			}
			return HuntState{Queries: &queries, Passes: &passes}, nil
		}).
		Node("search", func(ctx context.Context, s HuntState) (HuntState, error) {
			if s.Queries == nil {
				return HuntState{}, fmt.Errorf("no queries generated")
			}
			matches, err := hunter.Search(ctx, s.WorkspaceID, *s.Queries)
			if err != nil {
				return HuntState{}, err
			}
			return HuntState{Matches: &matches}, nil
		}).
		Node("filter", func(ctx context.Context, s HuntState) (HuntState, error) {
			var matches []vectorstore.Match
			if s.Matches != nil {
				matches = *s.Matches
			}
			filtered, err := hunter.FilterRank(ctx, s.Hypothesis, matches)
			if err != nil {
				return HuntState{}, err
			}
			return HuntState{Filtered: &filtered}, nil
		}).
		Node("summarize", func(ctx context.Context, s HuntState) (HuntState, error) {
			summary, err := hunter.Summarize(ctx, s.Hypothesis, found(s))
			if err != nil {
				return HuntState{}, err
			}
			return HuntState{Summary: &summary}, nil
		}).
		Node("store", func(ctx context.Context, s HuntState) (HuntState, error) {
			summary := ""
			if s.Summary != nil {
				summary = *s.Summary
			}
			alertID, err := hunter.Store(ctx, s.WorkspaceID, s.DecisionID, s.Hypothesis, summary, found(s))
			if err != nil {
				return HuntState{}, err
			}
			return HuntState{AlertID: &alertID}, nil
		}).
		Edge("queries", "search").
		Edge("search", "filter").
		Branch("filter", func(s HuntState) string {
			if len(found(s)) < minHits && huntPasses(s) < maxHuntPasses {
				return "retry"
			}
			return "done"
		}, map[string]string{
			"retry": "queries",
			"done":  "summarize",
		}, graph.WithMaxRevisits(maxHuntPasses-1)).
		Edge("summarize", "store").
		Compile()
	if err != nil {
		return nil, err
	}
	return &Hunt{graph: g, store: st, logger: logger}, nil
}

// Run hunts evidence for one hypothesis. The decision must exist; found
// evidence is linked to it and its gate recommendation recomputed. An
// empty hypothesis falls back to the one stored on the decision.
func (f *Hunt) Run(ctx context.Context, workspaceID, decisionID, hypothesis string) (HuntResult, error) {
	dec, err := f.store.GetDecision(ctx, decisionID)
	if err != nil {
		return HuntResult{}, fmt.Errorf("loading decision %s: %w", decisionID, err)
	}
	if hypothesis == "" {
		hypothesis = dec.Hypothesis
	}
	if hypothesis == "" {
		return HuntResult{}, fmt.Errorf("decision %s has no hypothesis and none was given", decisionID)
	}

	final, err := f.graph.Run(ctx, "queries", HuntState{
		WorkspaceID: workspaceID,
		DecisionID:  decisionID,
		Hypothesis:  hypothesis,
	})
	if err != nil {
		return HuntResult{}, err
	}

	res := HuntResult{Found: found(final), Passes: huntPasses(final)}
	if final.Queries != nil {
		res.Queries = *final.Queries
	}
	if final.Summary != nil {
		res.Summary = *final.Summary
	}
	if final.AlertID != nil {
		res.AlertID = *final.AlertID
	}

	f.logger.Info("hunt finished",
		zap.String("decision_id", decisionID),
		zap.Int("found", len(res.Found)),
		zap.Int("passes", res.Passes),
	)
	return res, nil
}

func found(s HuntState) []vectorstore.Match {
	if s.Filtered == nil {
		return nil
	}
	return *s.Filtered
}

func huntPasses(s HuntState) int {
	if s.Passes == nil {
		return 0
	}
	return *s.Passes
}
