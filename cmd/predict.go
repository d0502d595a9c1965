package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/crimeloom/internal/forecast"
	"github.com/KaramelBytes/crimeloom/internal/utils"
)

var (
	predMunicipality string
	predCrime        string
	predYear         int64
	predJSON         bool
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Estimate next year's cases as the mean of the last three years",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if predMunicipality == "" || predCrime == "" {
			return errors.New("--municipio and --delito are required")
		}
		facts, err := loadFacts(cmd.Context())
		if err != nil {
			return err
		}
		year := predYear
		if year == 0 {
			for _, f := range facts {
				year = max(year, f.Year+1)
			}
		}
		p, err := forecast.Baseline(facts, predMunicipality, predCrime, year)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if predJSON {
			b, err := utils.PrettyJSON(p)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}
		fmt.Fprintf(out, "✓ %s en %s, %d: %.1f casos estimados\n", p.Crime, p.Municipality, p.Year, p.Value)
		for _, h := range p.History {
			fmt.Fprintf(out, "  %d: %.0f\n", h.Year, h.Cases)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(predictCmd)
	predictCmd.Flags().StringVarP(&predMunicipality, "municipio", "m", "", "municipality name")
	predictCmd.Flags().StringVarP(&predCrime, "delito", "d", "", "crime category")
	predictCmd.Flags().Int64Var(&predYear, "anio", 0, "target year (default: the year after the latest)")
	predictCmd.Flags().BoolVar(&predJSON, "json", false, "print the prediction as JSON")
}
