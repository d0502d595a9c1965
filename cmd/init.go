package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/crimeloom/internal/config"
	"github.com/KaramelBytes/crimeloom/internal/utils"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config and create the data layout",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			p, err := cfgpkg.DefaultPath()
			if err != nil {
				return err
			}
			path = p
		}
		// Refuse to overwrite an existing config.
		if utils.Exists(path) && !initForce {
			return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
		}
		c := cfgpkg.Default()
		c.DataDir = cfg.DataDir
		if err := cfgpkg.Save(c, path); err != nil {
			return err
		}
		for _, dir := range paths().Dirs() {
			if err := utils.EnsureDir(dir); err != nil {
				return fmt.Errorf("create %s: %w", dir, err)
			}
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ Config written: %s\n", path)
		fmt.Fprintf(out, "✓ Data layout created under %s\n", cfg.DataDir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing config")
}
