package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/crimeloom/internal/audit"
)

var auditLimit int

var auditCmd = &cobra.Command{
	Use:   "audit [run-id]",
	Short: "List recent pipeline runs, or the stages and gap fills of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ledger, err := openLedger(ctx)
		if err != nil {
			return err
		}
		defer ledger.Close()
		out := cmd.OutOrStdout()

		if len(args) == 1 {
			stages, err := ledger.Stages(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Run %s\n", args[0])
			for _, s := range stages {
				fmt.Fprintf(out, "  %-10s rows %d -> %d  (%s)\n", s.Stage, s.RowsIn, s.RowsOut, s.Finished.Sub(s.Started).Round(time.Millisecond))
			}
			gaps, err := ledger.GapFills(ctx, args[0])
			if err != nil {
				return err
			}
			for _, g := range gaps {
				fmt.Fprintf(out, "  gap %s %d: %s (%d rows)\n", g.Category, g.Year, g.Status, g.RowsAdded)
			}
			return nil
		}

		runs, err := ledger.Runs(ctx, auditLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(out, "No runs recorded")
			return nil
		}
		for _, r := range runs {
			mark := "✓"
			switch r.Status {
			case audit.StatusFailed:
				mark = "✗"
			case audit.StatusRunning:
				mark = "⚠"
			}
			fmt.Fprintf(out, "%s %s  %s  %s  stages=%d", mark, r.ID, r.Started.Local().Format(time.DateTime), r.Status, r.Stages)
			if r.Error != "" {
				fmt.Fprintf(out, "  error=%q", r.Error)
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.Flags().IntVarP(&auditLimit, "limit", "n", 20, "number of runs to list")
}
