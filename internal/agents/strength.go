package agents

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/discoveryd/internal/scoring"
)

// StrengthRefresher recomputes an evidence item's effective strength and
// propagates the change to every decision that links it.
type StrengthRefresher struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// NewStrengthRefresher creates a strength refresher.
func NewStrengthRefresher(st Store, logger *zap.Logger) *StrengthRefresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StrengthRefresher{store: st, logger: logger.Named("strength"), now: time.Now}
}

// Refresh recomputes the item's strength from its base rating, source
// weight, and recency, then refreshes the gate recommendation of every
// decision linking it.
func (r *StrengthRefresher) Refresh(ctx context.Context, evidenceID string) (float64, error) {
	ev, err := r.store.GetEvidence(ctx, evidenceID)
	if err != nil {
		return 0, err
	}

	recency := 1.0
	if !ev.ObservedAt.IsZero() {
		recency = scoring.Recency(r.now(), ev.ObservedAt)
	}
	strength := scoring.Computed(ev.BaseStrength, ev.SourceWeight, recency)

	if err := r.store.SetEvidenceComputedStrength(ctx, evidenceID, strength); err != nil {
		return 0, err
	}

	decisionIDs, err := r.store.DecisionsForEvidence(ctx, evidenceID)
	if err != nil {
		return 0, err
	}
	for _, id := range decisionIDs {
		if err := refreshDecision(ctx, r.store, id); err != nil {
			return 0, err
		}
	}

	r.logger.Debug("strength refreshed",
		zap.String("evidence_id", evidenceID),
		zap.Float64("strength", strength),
		zap.Int("decisions", len(decisionIDs)),
	)
	return strength, nil
}

// refreshDecision re-aggregates a decision's linked evidence and updates
// its count, strength, and gate recommendation. The user-set status is
// untouched. A decision with no links resets to 0 / 0 / park.
func refreshDecision(ctx context.Context, s Store, decisionID string) error {
	links, err := s.ListDecisionEvidence(ctx, decisionID)
	if err != nil {
		return err
	}
	if len(links) == 0 {
		return s.SetDecisionStats(ctx, decisionID, 0, 0, string(scoring.GatePark))
	}

	samples := make([]scoring.Sample, 0, len(links))
	for _, l := range links {
		strength := l.ComputedStrength
		if strength == 0 {
			strength = l.BaseStrength
		}
		samples = append(samples, scoring.Sample{Strength: strength, Weight: l.Weight})
	}
	aggregate := scoring.Aggregate(samples)
	return s.SetDecisionStats(ctx, decisionID, len(links), aggregate, string(scoring.GateFor(aggregate)))
}
