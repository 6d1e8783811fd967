// Package scheduler runs the periodic decay scan over every workspace.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/discoveryd/internal/agents"
)

// WorkspaceLister enumerates workspaces, implemented by *store.Store.
type WorkspaceLister interface {
	Workspaces(ctx context.Context) ([]string, error)
}

// DecayRunner runs one decay scan, implemented by *agents.DecayMonitor.
type DecayRunner interface {
	Run(ctx context.Context, workspaceID string) (agents.DecayReport, error)
}

// Scheduler triggers the decay monitor on a fixed interval.
type Scheduler struct {
	store    WorkspaceLister
	monitor  DecayRunner
	interval time.Duration
	logger   *zap.Logger
}

// New creates a scheduler.
func New(st WorkspaceLister, monitor DecayRunner, interval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{store: st, monitor: monitor, interval: interval, logger: logger.Named("scheduler")}
}

// Run blocks until the context is cancelled, scanning every workspace on
// each tick. A failing workspace is logged and skipped; the sweep
// continues.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	workspaces, err := s.store.Workspaces(ctx)
	if err != nil {
		s.logger.Error("listing workspaces failed", zap.Error(err))
		return
	}
	for _, ws := range workspaces {
		report, err := s.monitor.Run(ctx, ws)
		if err != nil {
			s.logger.Error("decay scan failed",
				zap.String("workspace_id", ws),
				zap.Error(err),
			)
			continue
		}
		s.logger.Info("decay scan complete",
			zap.String("workspace_id", ws),
			zap.Int("flagged", len(report.Flagged)),
		)
	}
}
