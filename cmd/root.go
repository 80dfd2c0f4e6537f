package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agentic-research/dalgen/internal/artifact"
	"github.com/agentic-research/dalgen/internal/config"
	"github.com/agentic-research/dalgen/internal/generate"
	"github.com/agentic-research/dalgen/internal/ledger"
	"github.com/agentic-research/dalgen/internal/logs"
)

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to dalgen.yaml (default: search upward from the working directory)")
}

var rootCmd = &cobra.Command{
	Use:           "dalgen",
	Short:         "Scaffold and incrementally update a Go data access layer",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// session is what every generating command needs: the loaded config, a
// logger, and the ledger when one is configured.
type session struct {
	cfg    *config.Config
	log    *zap.Logger
	ledger *ledger.Ledger
}

func openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, log: logs.New(cfg.Log, cmd.ErrOrStderr())}
	if cfg.Ledger != "" {
		if s.ledger, err = ledger.Open(cfg.Ledger); err != nil {
			// History is optional; generation still runs.
			s.log.Warn("ledger disabled", zap.String("path", cfg.Ledger), zap.Error(err))
			s.ledger = nil
		}
	}
	return s, nil
}

func (s *session) Close() {
	if s.ledger != nil {
		_ = s.ledger.Close()
	}
	_ = s.log.Sync()
}

// orchestrator wires the standard builders for cfg. With dryRun the returned
// DryRun holds what would have been written and nothing reaches disk.
func (s *session) orchestrator(cfg *config.Config, dryRun bool) (*generate.Orchestrator, *artifact.DryRun, error) {
	fsStore, err := artifact.Open(cfg.Root)
	if err != nil {
		return nil, nil, err
	}
	var (
		store artifact.Store = fsStore
		dry   *artifact.DryRun
	)
	if dryRun {
		dry = artifact.NewDryRun(fsStore)
		store = dry
	}
	o := &generate.Orchestrator{
		Builders:    generate.Builders(cfg, store),
		Concurrency: cfg.Concurrency,
		Logger:      s.log,
	}
	// Dry runs are not history.
	if s.ledger != nil && !dryRun {
		o.Ledger = s.ledger
	}
	return o, dry, nil
}
