package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/discoveryd/internal/scoring"
	"github.com/fyrsmithlabs/discoveryd/internal/store"
)

// FlaggedItem is one decision or note whose evidence base has decayed.
type FlaggedItem struct {
	ID           string   `json:"id"`
	Kind         string   `json:"kind"`
	Title        string   `json:"title"`
	Reasons      []string `json:"reasons"`
	StalePercent float64  `json:"stale_percent"`
}

// DecayReport is the outcome of one decay scan over a workspace.
type DecayReport struct {
	Flagged []FlaggedItem
	Digest  string
	AlertID string
}

// DecayMonitor scans committed and validated decisions, plus notes with
// linked evidence, for a decaying evidence base, and records an alert.
type DecayMonitor struct {
	store  Store
	llm    Reasoner
	logger *zap.Logger
	now    func() time.Time
}

// NewDecayMonitor creates a decay monitor.
func NewDecayMonitor(st Store, llm Reasoner, logger *zap.Logger) *DecayMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DecayMonitor{store: st, llm: llm, logger: logger.Named("decay"), now: time.Now}
}

// Run scans the workspace and records one alert: action_needed when
// anything is flagged, info otherwise.
func (m *DecayMonitor) Run(ctx context.Context, workspaceID string) (DecayReport, error) {
	now := m.now()
	var flagged []FlaggedItem

	decisions, err := m.store.ListDecisionsByStatus(ctx, workspaceID, []string{string(scoring.GateCommit), string(scoring.GateValidate)})
	if err != nil {
		return DecayReport{}, err
	}
	for _, dec := range decisions {
		item, err := m.checkDecision(ctx, now, dec)
		if err != nil {
			return DecayReport{}, err
		}
		if item != nil {
			flagged = append(flagged, *item)
		}
	}

	notes, err := m.store.ListNotesWithEvidence(ctx, workspaceID)
	if err != nil {
		return DecayReport{}, err
	}
	for _, note := range notes {
		item, err := m.checkNote(ctx, now, note)
		if err != nil {
			return DecayReport{}, err
		}
		if item != nil {
			flagged = append(flagged, *item)
		}
	}

	digest := m.digest(ctx, flagged)

	alertType := store.AlertInfo
	title := "Evidence decay scan: all healthy"
	if len(flagged) > 0 {
		alertType = store.AlertActionNeeded
		title = fmt.Sprintf("Evidence decay scan: %d item(s) need review", len(flagged))
	}
	alert := &store.Alert{
		WorkspaceID: workspaceID,
		AgentType:   "decay_monitor",
		AlertType:   alertType,
		Title:       title,
		Content:     digest,
		Metadata:    map[string]any{"flagged_count": len(flagged)},
	}
	if err := m.store.CreateAlert(ctx, alert); err != nil {
		return DecayReport{}, err
	}

	m.logger.Info("decay scan finished",
		zap.String("workspace_id", workspaceID),
		zap.Int("decisions", len(decisions)),
		zap.Int("notes", len(notes)),
		zap.Int("flagged", len(flagged)),
	)
	return DecayReport{Flagged: flagged, Digest: digest, AlertID: alert.ID}, nil
}

func (m *DecayMonitor) checkDecision(ctx context.Context, now time.Time, dec store.Decision) (*FlaggedItem, error) {
	links, err := m.store.ListDecisionEvidence(ctx, dec.ID)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return &FlaggedItem{
			ID:           dec.ID,
			Kind:         "decision",
			Title:        dec.Title,
			Reasons:      []string{"No evidence linked"},
			StalePercent: 100,
		}, nil
	}

	dates := make([]time.Time, 0, len(links))
	for _, l := range links {
		dates = append(dates, observedOrCreated(l.Evidence))
	}
	rep := scoring.Staleness(now, dates)
	reasons := scoring.StaleReasons(rep, scoring.Gate(dec.Status), dec.EvidenceStrength)
	if len(reasons) == 0 {
		return nil, nil
	}
	return &FlaggedItem{
		ID:           dec.ID,
		Kind:         "decision",
		Title:        dec.Title,
		Reasons:      reasons,
		StalePercent: rep.StaleFraction * 100,
	}, nil
}

func (m *DecayMonitor) checkNote(ctx context.Context, now time.Time, note store.StickyNote) (*FlaggedItem, error) {
	items, err := m.store.ListNoteEvidence(ctx, note.ID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	dates := make([]time.Time, 0, len(items))
	for _, ev := range items {
		dates = append(dates, observedOrCreated(ev))
	}
	rep := scoring.Staleness(now, dates)
	// Notes carry no commitment, so the weak-commit rule never applies.
	reasons := scoring.StaleReasons(rep, scoring.GateValidate, 0)
	if len(reasons) == 0 {
		return nil, nil
	}
	return &FlaggedItem{
		ID:           note.ID,
		Kind:         "note",
		Title:        note.Content,
		Reasons:      reasons,
		StalePercent: rep.StaleFraction * 100,
	}, nil
}

// digest asks the model for a short markdown summary of the flagged
// items, falling back to a plain list when the model is unavailable.
func (m *DecayMonitor) digest(ctx context.Context, flagged []FlaggedItem) string {
	if len(flagged) == 0 {
		return "All tracked decisions and notes have a healthy evidence base."
	}

	out, err := m.llm.Complete(ctx, buildDecayPrompt(flagged), 800)
	if err != nil {
		m.logger.Warn("digest generation failed, using plain list", zap.Error(err))
		return plainDecayList(flagged)
	}
	return strings.TrimSpace(out)
}

func buildDecayPrompt(flagged []FlaggedItem) string {
	var b strings.Builder
	b.WriteString("Write a short markdown digest for a product team. ")
	b.WriteString("These decisions and notes have a decaying evidence base:\n\n")
	b.WriteString(plainDecayList(flagged))
	b.WriteString("\nGroup by urgency and suggest what to re-validate first. Keep it under 200 words.")
	return b.String()
}

func plainDecayList(flagged []FlaggedItem) string {
	var b strings.Builder
	for _, f := range flagged {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", f.Kind, f.Title, strings.Join(f.Reasons, "; "))
	}
	return b.String()
}

func observedOrCreated(ev store.Evidence) time.Time {
	if !ev.ObservedAt.IsZero() {
		return ev.ObservedAt
	}
	return ev.CreatedAt
}
