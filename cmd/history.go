package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentic-research/dalgen/internal/config"
	"github.com/agentic-research/dalgen/internal/ledger"
)

var (
	historyLimit   int
	historyVerbose bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent generation runs from the ledger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cfg.Ledger == "" {
			return errors.New("no ledger configured")
		}
		if _, err := os.Stat(cfg.Ledger); err != nil {
			return fmt.Errorf("no history yet at %s", cfg.Ledger)
		}
		l, err := ledger.Open(cfg.Ledger)
		if err != nil {
			return err
		}
		defer func() { _ = l.Close() }()

		runs, err := l.Recent(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "RUN\tSTARTED\tTOOK\tARTIFACTS\tWRITTEN\tSTATUS")
		for _, r := range runs {
			written := 0
			for _, a := range r.Artifacts {
				if a.Written {
					written++
				}
			}
			took, status := "-", "running"
			if !r.FinishedAt.IsZero() {
				took = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
				status = "ok"
			}
			if r.Err != "" {
				status = "failed"
			}
			_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\n",
				r.ID, r.StartedAt.Format(time.DateTime), took, len(r.Artifacts), written, status)
			if historyVerbose {
				for _, a := range r.Artifacts {
					line := fmt.Sprintf("  %s\t%s\t+%d\t%d present", a.Builder, a.Artifact, a.Added, a.Present)
					if a.Err != "" {
						line += "\t" + a.Err
					}
					_, _ = fmt.Fprintln(tw, line)
				}
			}
		}
		return tw.Flush()
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of runs to show")
	historyCmd.Flags().BoolVarP(&historyVerbose, "verbose", "v", false, "List the artifacts of each run")
	rootCmd.AddCommand(historyCmd)
}
