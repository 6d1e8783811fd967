package flows

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/discoveryd/internal/agents"
	"github.com/fyrsmithlabs/discoveryd/internal/graph"
	"github.com/fyrsmithlabs/discoveryd/internal/store"
)

// LinkState is the evidence-link pipeline's state. Inputs are set once at
// the start; result fields are pointers so partial updates merge cleanly.
type LinkState struct {
	WorkspaceID string
	NoteID      string
	EvidenceID  string

	Segment        *agents.SegmentResult
	Contradictions *[]agents.Contradiction
	Strength       *float64
	HasVoice       *bool
	Gaps           *[]string
	AlertID        *string
}

// Merge folds a partial update into the state; set fields win.
func (s LinkState) Merge(partial LinkState) LinkState {
	if partial.WorkspaceID != "" {
		s.WorkspaceID = partial.WorkspaceID
	}
	if partial.NoteID != "" {
		s.NoteID = partial.NoteID
	}
	if partial.EvidenceID != "" {
		s.EvidenceID = partial.EvidenceID
	}
	if partial.Segment != nil {
		s.Segment = partial.Segment
	}
	if partial.Contradictions != nil {
		s.Contradictions = partial.Contradictions
	}
	if partial.Strength != nil {
		s.Strength = partial.Strength
	}
	if partial.HasVoice != nil {
		s.HasVoice = partial.HasVoice
	}
	if partial.Gaps != nil {
		s.Gaps = partial.Gaps
	}
	if partial.AlertID != nil {
		s.AlertID = partial.AlertID
	}
	return s
}

// Clone returns an independent copy for parallel members. Result pointers
// are shared; members only write their own fields into fresh partials.
func (s LinkState) Clone() LinkState { return s }

// LinkResult is what a completed evidence-link run reports.
type LinkResult struct {
	Segment        string
	Contradictions []agents.Contradiction
	Strength       float64
	HasVoice       bool
	Gaps           []string
	AlertID        string
}

// EvidenceLink is the pipeline that runs when evidence is attached to a
// note: classify the segment and scan for contradictions in parallel, then
// refresh strength, detect voice, and report coverage gaps. Every run ends
// with exactly one alert, even when individual agents fail.
type EvidenceLink struct {
	graph  *graph.Graph[LinkState]
	logger *zap.Logger
}

// NewEvidenceLink compiles the evidence-link pipeline.
func NewEvidenceLink(st Store, seg Segmenter, conflicts ConflictFinder, strength Refresher, voice VoiceSensor, gaps GapScanner, logger *zap.Logger) (*EvidenceLink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("evidence_link")

	g, err := graph.New[LinkState]("evidence_link", logger).
		Node("gather", func(ctx context.Context, s LinkState) (LinkState, error) {
			if _, err := st.GetNote(ctx, s.NoteID); err != nil {
				return LinkState{}, fmt.Errorf("loading note %s: %w", s.NoteID, err)
			}
			if _, err := st.GetEvidence(ctx, s.EvidenceID); err != nil {
				return LinkState{}, fmt.Errorf("loading evidence %s: %w", s.EvidenceID, err)
			}
			return LinkState{}, nil
		}).
		Node("segment", func(ctx context.Context, s LinkState) (LinkState, error) {
			res, err := seg.Classify(ctx, s.EvidenceID)
			if err != nil {
				return LinkState{}, err
			}
			return LinkState{Segment: &res}, nil
		}, graph.WithTimeout[LinkState](30*time.Second)).
		Node("contradiction", func(ctx context.Context, s LinkState) (LinkState, error) {
			found, err := conflicts.Detect(ctx, s.WorkspaceID, s.EvidenceID)
			if err != nil {
				return LinkState{}, err
			}
			return LinkState{Contradictions: &found}, nil
		}, graph.WithTimeout[LinkState](30*time.Second),
			graph.WithFallback(LinkState{Contradictions: &[]agents.Contradiction{}})).
		Node("strength", func(ctx context.Context, s LinkState) (LinkState, error) {
			v, err := strength.Refresh(ctx, s.EvidenceID)
			if err != nil {
				return LinkState{}, err
			}
			return LinkState{Strength: &v}, nil
		}).
		Node("voice", func(ctx context.Context, s LinkState) (LinkState, error) {
			has, err := voice.Detect(ctx, s.EvidenceID)
			if err != nil {
				return LinkState{}, err
			}
			return LinkState{HasVoice: &has}, nil
		}, graph.WithTimeout[LinkState](30*time.Second)).
		Node("gaps", func(ctx context.Context, s LinkState) (LinkState, error) {
			found, err := gaps.Analyze(ctx, s.NoteID)
			if err != nil {
				return LinkState{}, err
			}
			return LinkState{Gaps: &found}, nil
		}).
		Node("finalize", func(ctx context.Context, s LinkState) (LinkState, error) {
			alert := buildLinkAlert(s)
			if err := st.CreateAlert(ctx, alert); err != nil {
				return LinkState{}, err
			}
			return LinkState{AlertID: &alert.ID}, nil
		}).
		Parallel("gather", []string{"segment", "contradiction"}, "strength").
		Edge("strength", "voice").
		Edge("voice", "gaps").
		Edge("gaps", "finalize").
		Compile()
	if err != nil {
		return nil, err
	}
	return &EvidenceLink{graph: g, logger: logger}, nil
}

// Run executes the pipeline for one note/evidence link.
func (f *EvidenceLink) Run(ctx context.Context, workspaceID, noteID, evidenceID string) (LinkResult, error) {
	final, err := f.graph.Run(ctx, "gather", LinkState{
		WorkspaceID: workspaceID,
		NoteID:      noteID,
		EvidenceID:  evidenceID,
	})
	if err != nil {
		return LinkResult{}, err
	}

	res := LinkResult{}
	if final.Segment != nil {
		res.Segment = final.Segment.Primary
	}
	if final.Contradictions != nil {
		res.Contradictions = *final.Contradictions
	}
	if final.Strength != nil {
		res.Strength = *final.Strength
	}
	if final.HasVoice != nil {
		res.HasVoice = *final.HasVoice
	}
	if final.Gaps != nil {
		res.Gaps = *final.Gaps
	}
	if final.AlertID != nil {
		res.AlertID = *final.AlertID
	}

	f.logger.Info("evidence link analyzed",
		zap.String("note_id", noteID),
		zap.String("evidence_id", evidenceID),
		zap.Int("contradictions", len(res.Contradictions)),
		zap.Int("gaps", len(res.Gaps)),
	)
	return res, nil
}

// buildLinkAlert summarizes the run. Unset fields read as their neutral
// value: no segment, no contradictions, no voice, no computed strength.
func buildLinkAlert(s LinkState) *store.Alert {
	var contradictions []agents.Contradiction
	if s.Contradictions != nil {
		contradictions = *s.Contradictions
	}

	alertType := store.AlertInfo
	title := "Evidence linked and analyzed"
	if len(contradictions) > 0 {
		alertType = store.AlertActionNeeded
		title = fmt.Sprintf("Evidence linked with %d contradiction(s)", len(contradictions))
	}

	meta := map[string]any{"strength_computed": s.Strength != nil}
	if s.Segment != nil {
		meta["segment"] = s.Segment.Primary
	}
	if s.Strength != nil {
		meta["strength"] = *s.Strength
	}
	if s.HasVoice != nil {
		meta["has_voice"] = *s.HasVoice
	}
	if s.Gaps != nil && len(*s.Gaps) > 0 {
		meta["gaps"] = strings.Join(*s.Gaps, "; ")
	}

	related := []string{s.EvidenceID}
	var lines []string
	for _, c := range contradictions {
		related = append(related, c.EvidenceID)
		lines = append(lines, fmt.Sprintf("- contradicts %s: %s", c.EvidenceID, c.Reason))
	}
	content := "Evidence analysis complete."
	if len(lines) > 0 {
		content = "Contradictions found:\n" + strings.Join(lines, "\n")
	}

	return &store.Alert{
		WorkspaceID:        s.WorkspaceID,
		AgentType:          "evidence_link",
		AlertType:          alertType,
		Title:              title,
		Content:            content,
		Metadata:           meta,
		RelatedEvidenceIDs: related,
	}
}
