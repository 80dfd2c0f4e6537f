package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentic-research/dalgen/internal/artifact"
	"github.com/agentic-research/dalgen/internal/generate"
)

var dryRun bool

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Create or update every artifact from the manifest",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		o, dry, err := s.orchestrator(s.cfg, dryRun)
		if err != nil {
			return err
		}
		sum, runErr := o.Run(cmd.Context(), s.cfg.Entities)
		printSummary(cmd.OutOrStdout(), sum, dry)
		return runErr
	},
}

func init() {
	generateCmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Report what would change without writing")
	rootCmd.AddCommand(generateCmd)
}

func printSummary(w io.Writer, sum generate.Summary, dry *artifact.DryRun) {
	verb := "wrote"
	if dry != nil {
		verb = "would write"
	}
	for _, r := range sum.Reports {
		switch {
		case r.Err != nil:
			_, _ = fmt.Fprintf(w, "FAIL  %-16s %s: %v\n", r.Builder, r.Artifact, r.Err)
		case r.Created:
			_, _ = fmt.Fprintf(w, "new   %-16s %s (+%d)\n", r.Builder, r.Artifact, r.Added)
		case r.Written:
			_, _ = fmt.Fprintf(w, "edit  %-16s %s (+%d, %d present)\n", r.Builder, r.Artifact, r.Added, r.Present)
		default:
			_, _ = fmt.Fprintf(w, "ok    %-16s %s\n", r.Builder, r.Artifact)
		}
	}
	_, _ = fmt.Fprintf(w, "%s %d of %d artifacts in %v\n", verb, sum.Written(), len(sum.Reports), sum.Duration.Round(time.Millisecond))
}
