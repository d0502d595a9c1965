package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	cfgpkg "github.com/KaramelBytes/crimeloom/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set crimeloom configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), string(b))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a scalar config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := setKey(cfg, args[0], args[1]); err != nil {
			return err
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Saved config")
		return nil
	},
}

func setKey(c *cfgpkg.Pipeline, key, val string) error {
	atoi := func(min int) (int, error) {
		i, err := strconv.Atoi(val)
		if err != nil || i < min {
			return 0, fmt.Errorf("invalid int for %s: %v", key, val)
		}
		return i, nil
	}
	fraction := func() (float64, error) {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f < 0 || f > 1 {
			return 0, fmt.Errorf("invalid fraction for %s: %v (use 0..1)", key, val)
		}
		return f, nil
	}
	var err error
	switch key {
	case "data_dir":
		c.DataDir = val
	case "department.name":
		c.Department.Name = val
	case "department.code":
		c.Department.Code = val
	case "silver.header_from":
		c.Silver.HeaderFrom, err = atoi(0)
	case "silver.header_to":
		c.Silver.HeaderTo, err = atoi(0)
	case "silver.divipola_sheet":
		c.Silver.DivipolaSheet = val
	case "silver.divipola_header":
		c.Silver.DivipolaHeader, err = atoi(0)
	case "cleaning.strip_digits":
		c.Cleaning.StripDigits, err = atoi(0)
	case "cleaning.default_crs":
		c.Cleaning.DefaultCRS = val
	case "analytics.per":
		f, perr := strconv.ParseFloat(val, 64)
		if perr != nil || f <= 0 {
			return fmt.Errorf("invalid float for analytics.per: %v", val)
		}
		c.Analytics.Per = f
	case "models.risk_low":
		c.Models.RiskLow, err = fraction()
	case "models.risk_high":
		c.Models.RiskHigh, err = fraction()
	case "models.clusters":
		c.Models.Clusters, err = atoi(1)
	case "serve.addr":
		c.Serve.Addr = val
	case "serve.ask_per_second":
		f, perr := strconv.ParseFloat(val, 64)
		if perr != nil || f <= 0 {
			return fmt.Errorf("invalid float for serve.ask_per_second: %v", val)
		}
		c.Serve.AskPerSecond = f
	case "serve.ask_burst":
		c.Serve.AskBurst, err = atoi(1)
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return err
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
