package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/crimeloom/internal/profile"
)

var (
	profOutputDir  string
	profDelimiter  string
	profSampleRows int
	profGroupBy    []string
	profCorr       bool
	profOutliers   bool
	profOutlierThr float64
	profSheetName  string
	profSheetIndex int
	profQuiet      bool
)

var profileCmd = &cobra.Command{
	Use:   "profile <files or datasets...>",
	Short: "Summarize pipeline tables (parquet) or raw CSV/XLSX files as markdown",
	Long: `Summarize one or more tables. Arguments are file paths, globs or dataset
names of the data layout (for example gold_analytics). Reports print to
stdout unless --output-dir is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := profileInputs(args)
		if err != nil {
			return err
		}

		opt := profile.DefaultOptions()
		if profSampleRows > 0 {
			opt.SampleRows = profSampleRows
		}
		opt.GroupBy = profGroupBy
		opt.Correlations = profCorr
		if cmd.Flags().Changed("outliers") {
			opt.Outliers = profOutliers
		}
		if profOutlierThr > 0 {
			opt.OutlierThreshold = profOutlierThr
		}
		src := profile.Source{Sheet: profSheetName, SheetIndex: profSheetIndex}
		switch profDelimiter {
		case "", ",":
		case "\t", "tab":
			src.Delimiter = '\t'
		case ";":
			src.Delimiter = ';'
		case "|", "pipe":
			src.Delimiter = '|'
		default:
			return fmt.Errorf("unsupported --delimiter: %s", profDelimiter)
		}

		out := cmd.OutOrStdout()
		total := len(files)
		for i, path := range files {
			if !profQuiet && profOutputDir != "" {
				fmt.Fprintf(out, "[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
			}
			t, err := profile.Load(cmd.Context(), path, src)
			if err != nil {
				return err
			}
			rep, err := profile.Profile(filepath.Base(path), t, opt)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			md := rep.Markdown()
			if profOutputDir == "" {
				fmt.Fprintln(out, md)
				continue
			}
			dst, err := reportPath(profOutputDir, path)
			if err != nil {
				return err
			}
			if err := os.WriteFile(dst, []byte(md), 0o644); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			if !profQuiet {
				fmt.Fprintf(out, "✓ Wrote profile to %s\n", dst)
			}
		}
		return nil
	},
}

// profileInputs expands globs and dataset names, keeping first occurrences
// in sorted order.
func profileInputs(args []string) ([]string, error) {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			// treat as literal path if exists, else as a dataset name
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			} else if p, ok := datasetPath(arg); ok {
				matches = []string{p}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files matched")
	}
	sort.Strings(files)
	return files, nil
}

func datasetPath(name string) (string, bool) {
	p, ok := paths().Lookup(name)
	if !ok || !strings.HasSuffix(p, ".parquet") {
		return "", false
	}
	if _, err := os.Stat(p); err != nil {
		return "", false
	}
	return p, true
}

// reportPath is <dir>/<stem>.profile.md, suffixed __2, __3... when taken.
func reportPath(dir, src string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	out := filepath.Join(dir, stem+".profile.md")
	for idx := 2; ; idx++ {
		if _, err := os.Stat(out); os.IsNotExist(err) {
			return out, nil
		}
		out = filepath.Join(dir, fmt.Sprintf("%s__%d.profile.md", stem, idx))
	}
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.Flags().StringVarP(&profOutputDir, "output-dir", "o", "", "write one <name>.profile.md per input into this directory")
	profileCmd.Flags().StringVar(&profDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' | 'pipe'")
	profileCmd.Flags().IntVar(&profSampleRows, "sample-rows", 5, "number of sample rows to include")
	profileCmd.Flags().StringSliceVar(&profGroupBy, "group-by", nil, "comma-separated column names to group by (repeatable)")
	profileCmd.Flags().BoolVar(&profCorr, "correlations", false, "compute Pearson correlations among numeric columns")
	profileCmd.Flags().BoolVar(&profOutliers, "outliers", true, "compute robust outlier counts (MAD)")
	profileCmd.Flags().Float64Var(&profOutlierThr, "outlier-threshold", 3.5, "robust |z| threshold for outliers (MAD-based)")
	profileCmd.Flags().StringVar(&profSheetName, "sheet-name", "", "XLSX: sheet name to profile")
	profileCmd.Flags().IntVar(&profSheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
	profileCmd.Flags().BoolVarP(&profQuiet, "quiet", "q", false, "suppress progress lines")
}
