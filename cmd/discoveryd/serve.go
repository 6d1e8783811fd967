package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/discoveryd/internal/agents"
	"github.com/fyrsmithlabs/discoveryd/internal/board"
	"github.com/fyrsmithlabs/discoveryd/internal/config"
	"github.com/fyrsmithlabs/discoveryd/internal/embeddings"
	"github.com/fyrsmithlabs/discoveryd/internal/flows"
	"github.com/fyrsmithlabs/discoveryd/internal/logging"
	"github.com/fyrsmithlabs/discoveryd/internal/reasoning"
	"github.com/fyrsmithlabs/discoveryd/internal/scheduler"
	"github.com/fyrsmithlabs/discoveryd/internal/server"
	"github.com/fyrsmithlabs/discoveryd/internal/store"
	"github.com/fyrsmithlabs/discoveryd/internal/vectorstore"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the discoveryd HTTP server",
	Long: `Start the HTTP server, serving the discovery board API and the agent
pipelines. When the scheduler is enabled, the decay monitor sweeps every
workspace on the configured interval.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	app, err := buildApp(cfg, logger)
	if err != nil {
		return err
	}
	defer app.store.Close() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := app.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return app.server.Shutdown(shutdownCtx)
	})

	if cfg.Scheduler.Enabled {
		g.Go(func() error {
			if err := app.scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("scheduler: %w", err)
			}
			return nil
		})
	}

	logger.Info("discoveryd started",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("scheduler", cfg.Scheduler.Enabled),
	)
	return g.Wait()
}

// app holds the wired components a running daemon needs.
type app struct {
	store     *store.Store
	server    *server.Server
	scheduler *scheduler.Scheduler
	decay     *agents.DecayMonitor
}

// buildApp wires configuration into the full component graph.
func buildApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	st, err := store.Open(cfg.Store.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	embedder, err := embeddings.NewService(embeddings.Config{
		BaseURL: cfg.Embeddings.BaseURL,
		Model:   cfg.Embeddings.Model,
		APIKey:  cfg.Embeddings.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	index, err := vectorstore.NewIndex(vectorstore.Config{
		Path:     cfg.VectorStore.Path,
		Compress: cfg.VectorStore.Compress,
	}, embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("creating vector index: %w", err)
	}

	llm, err := reasoning.NewService(reasoning.Config{
		BaseURL: cfg.Reasoning.BaseURL,
		Model:   cfg.Reasoning.Model,
		APIKey:  cfg.Reasoning.APIKey,
		Timeout: cfg.Reasoning.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("creating reasoning service: %w", err)
	}

	maxTokens := cfg.Reasoning.MaxTokens
	direct := cfg.Scoring.DirectSimilarity
	recall := cfg.Scoring.RecallSimilarity

	segmenter := agents.NewSegmentClassifier(st, llm, logger)
	conflicts := agents.NewContradictionDetector(st, index, llm, direct, recall, logger)
	strength := agents.NewStrengthRefresher(st, logger)
	voice := agents.NewVoiceDetector(st, llm, logger)
	gaps := agents.NewGapAnalyzer(st, logger)
	analyzer := agents.NewSessionAnalyzer(st, llm, maxTokens, logger)
	hunter := agents.NewEvidenceHunter(st, index, llm, recall, logger)
	decay := agents.NewDecayMonitor(st, llm, logger)
	brief := agents.NewBriefGenerator(st, llm, maxTokens, logger)

	linkFlow, err := flows.NewEvidenceLink(st, segmenter, conflicts, strength, voice, gaps, logger)
	if err != nil {
		return nil, fmt.Errorf("compiling evidence-link flow: %w", err)
	}
	sessionFlow, err := flows.NewSessionAnalysis(st, analyzer, gaps, logger)
	if err != nil {
		return nil, fmt.Errorf("compiling session-analysis flow: %w", err)
	}
	huntFlow, err := flows.NewHunt(st, hunter, logger)
	if err != nil {
		return nil, fmt.Errorf("compiling hunt flow: %w", err)
	}

	b := board.New(st, index, logger)

	srv, err := server.NewServer(b, st, server.Pipelines{
		Link:    linkFlow,
		Session: sessionFlow,
		Hunt:    huntFlow,
		Decay:   decay,
		Brief:   brief,
	}, logger, &server.Config{
		Host:   cfg.Server.Host,
		Port:   cfg.Server.Port,
		APIKey: cfg.Server.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("creating http server: %w", err)
	}

	return &app{
		store:     st,
		server:    srv,
		scheduler: scheduler.New(st, decay, cfg.Scheduler.Interval, logger),
		decay:     decay,
	}, nil
}
