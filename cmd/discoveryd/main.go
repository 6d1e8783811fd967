// Package main implements the discoveryd daemon: the evidence-driven
// product discovery board and its analysis pipelines.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "discoveryd",
	Short: "Evidence-driven product discovery daemon",
	Long: `discoveryd keeps a product discovery board honest: it scores evidence,
gates decisions on evidence strength, flags contradictions and decay, and
exposes the board and its analysis pipelines over HTTP.`,
	Version: fmt.Sprintf("%s (%s)", version, gitCommit),
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ~/.config/discoveryd/config.yaml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(decayCmd)
}
