package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/crimeloom/internal/audit"
	cfgpkg "github.com/KaramelBytes/crimeloom/internal/config"
	"github.com/KaramelBytes/crimeloom/internal/pipeline"
	"github.com/KaramelBytes/crimeloom/internal/utils"
)

var (
	// Global flags
	cfgFile string
	dataDir string
	debug   bool

	// Loaded configuration and logger, set before any subcommand runs
	cfg *cfgpkg.Pipeline
	log = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "crimeloom",
	Short: "crimeloom: crime, population and geography pipeline for one department",
	Long: `crimeloom runs the bronze, silver and gold pipeline that turns police
spreadsheets, open-data exports, census population files and municipality
polygons into an integrated monthly table, its analytics features and the
model datasets. Each stage is a subcommand; "run" executes all of them.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = log.Sync()
	},
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./crimeloom.yaml, then ~/.crimeloom/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// setup loads .env.local, the configuration and the logger.
func setup(cmd *cobra.Command, args []string) error {
	if utils.Exists(".env.local") {
		if err := godotenv.Load(".env.local"); err != nil {
			fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load .env.local: %v\n", err)
		}
	}
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return err
	}
	if dataDir != "" {
		c.DataDir = dataDir
	}
	cfg = c

	zc := zap.NewProductionConfig()
	if debug {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	l, err := zc.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	log = l
	return nil
}

func paths() pipeline.Paths { return pipeline.Paths{Root: cfg.DataDir} }

func openLedger(ctx context.Context) (*audit.Ledger, error) {
	return audit.Open(ctx, paths().Of(pipeline.Ledger))
}
