package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/crimeloom/internal/agent"
	"github.com/KaramelBytes/crimeloom/internal/analytics"
	"github.com/KaramelBytes/crimeloom/internal/pipeline"
	"github.com/KaramelBytes/crimeloom/internal/store"
	"github.com/KaramelBytes/crimeloom/internal/table"
	"github.com/KaramelBytes/crimeloom/internal/utils"
)

var askCmd = &cobra.Command{
	Use:   "ask <question...>",
	Short: "Answer a question about the crime statistics in plain Spanish",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		facts, err := loadFacts(cmd.Context())
		if err != nil {
			return err
		}
		question := strings.Join(args, " ")
		fmt.Fprintln(cmd.OutOrStdout(), agent.New(facts).Answer(question))
		return nil
	},
}

// loadAnalytics reads the analytics table, failing with the dataset and
// its path when the analytics stage has not run.
func loadAnalytics(ctx context.Context) (*table.Table, error) {
	path := paths().Of(pipeline.Analytics)
	if !utils.Exists(path) {
		return nil, &pipeline.MissingInputError{Dataset: pipeline.Analytics, Path: path}
	}
	return store.Read(ctx, path)
}

func loadFacts(ctx context.Context) ([]analytics.Fact, error) {
	t, err := loadAnalytics(ctx)
	if err != nil {
		return nil, err
	}
	return analytics.Long(t, cfg.Integration.Categories)
}

func init() {
	rootCmd.AddCommand(askCmd)
}
