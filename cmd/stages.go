package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/crimeloom/internal/pipeline"
)

var runAllCmd = &cobra.Command{
	Use:   "run [stage...]",
	Short: "Run every stage in dependency order, or only the named ones",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStages(cmd, args...)
	},
}

func runStages(cmd *cobra.Command, names ...string) error {
	ctx := cmd.Context()
	ledger, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer ledger.Close()

	id, err := pipeline.New(cfg, log, ledger).Run(ctx, names...)
	if err != nil {
		return err
	}
	label := "all stages"
	if len(names) > 0 {
		label = strings.Join(names, ", ")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Completed %s (run %s)\n", label, id)
	return nil
}

func stageCommand(s pipeline.Stage) *cobra.Command {
	return &cobra.Command{
		Use:   s.Name,
		Short: s.Short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStages(cmd, s.Name)
		},
	}
}

func init() {
	for _, s := range pipeline.Stages {
		rootCmd.AddCommand(stageCommand(s))
	}
	rootCmd.AddCommand(runAllCmd)
}
