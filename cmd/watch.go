package cmd

import (
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agentic-research/dalgen/internal/config"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Generate, then regenerate whenever the manifest changes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		var mu sync.Mutex
		run := func(cfg *config.Config) {
			mu.Lock()
			defer mu.Unlock()
			o, _, err := s.orchestrator(cfg, false)
			if err != nil {
				s.log.Error("cannot open project", zap.String("root", cfg.Root), zap.Error(err))
				return
			}
			sum, _ := o.Run(ctx, cfg.Entities)
			printSummary(cmd.OutOrStdout(), sum, nil)
		}

		run(s.cfg)
		s.cfg.Watch(func(cfg *config.Config, err error) {
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				s.log.Error("config reload failed", zap.String("file", s.cfg.File()), zap.Error(err))
				return
			}
			s.log.Info("config changed", zap.String("file", cfg.File()))
			run(cfg)
		})
		s.log.Info("watching", zap.String("file", s.cfg.File()))

		<-ctx.Done()
		mu.Lock() // let an in-flight run finish before the ledger closes
		defer mu.Unlock()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
