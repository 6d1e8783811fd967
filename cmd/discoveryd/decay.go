package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/discoveryd/internal/config"
	"github.com/fyrsmithlabs/discoveryd/internal/logging"
)

var decayWorkspace string

var decayCmd = &cobra.Command{
	Use:   "decay-report",
	Short: "Run a one-shot evidence decay scan",
	Long: `Run the decay monitor once and print the digest. Scans the given
workspace, or every workspace when none is given.`,
	RunE: runDecayReport,
}

func init() {
	decayCmd.Flags().StringVar(&decayWorkspace, "workspace", "", "workspace to scan (default: all)")
}

func runDecayReport(cmd *cobra.Command, _ []string) error {
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

	ctx := cmd.Context()
	workspaces := []string{decayWorkspace}
	if decayWorkspace == "" {
		if workspaces, err = app.store.Workspaces(ctx); err != nil {
			return err
		}
		if len(workspaces) == 0 {
			fmt.Println("No workspaces found.")
			return nil
		}
	}

	for _, ws := range workspaces {
		report, err := app.decay.Run(ctx, ws)
		if err != nil {
			return fmt.Errorf("scanning workspace %s: %w", ws, err)
		}
		fmt.Printf("## Workspace %s (%d flagged)\n\n%s\n\n", ws, len(report.Flagged), report.Digest)
	}
	return nil
}
