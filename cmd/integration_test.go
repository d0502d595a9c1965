package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/KaramelBytes/crimeloom/internal/integrate"
	"github.com/KaramelBytes/crimeloom/internal/pipeline"
	"github.com/KaramelBytes/crimeloom/internal/records"
	"github.com/KaramelBytes/crimeloom/internal/store"
	"github.com/KaramelBytes/crimeloom/internal/table"
)

// resetFlags restores every flag of c and its subcommands to its default so
// values and Changed state do not leak between invocations.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

// runCmd is a helper to execute the root command with args.
func runCmd(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execute(t, args...)
	if err != nil {
		t.Fatalf("command %v failed: %v", args, err)
	}
	return out
}

// isolate points HOME at a temp dir and returns a data dir inside it.
func isolate(t *testing.T) (home, data string) {
	t.Helper()
	home = t.TempDir()
	t.Setenv("HOME", home)
	return home, filepath.Join(home, "data")
}

func TestCLI_InitCreatesConfigAndLayout(t *testing.T) {
	home, data := isolate(t)

	out := runCmd(t, "--data-dir", data, "init")
	if !strings.Contains(out, "Config written") {
		t.Errorf("output = %q", out)
	}
	if _, err := os.Stat(filepath.Join(home, ".crimeloom", "config.yaml")); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	for _, dir := range []string{"bronze/policia_scraping", "bronze/socrata_api", "gold/model", "audit"} {
		if fi, err := os.Stat(filepath.Join(data, filepath.FromSlash(dir))); err != nil || !fi.IsDir() {
			t.Errorf("missing layout dir %s: %v", dir, err)
		}
	}

	if _, err := execute(t, "init"); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("second init err = %v, want already exists", err)
	}
	runCmd(t, "init", "--force")
}

func TestCLI_ConfigSetAndShow(t *testing.T) {
	_, data := isolate(t)
	runCmd(t, "--data-dir", data, "init")

	runCmd(t, "config", "set", "models.clusters", "6")
	runCmd(t, "config", "set", "department.name", "BOYACA")
	out := runCmd(t, "config", "show")
	for _, want := range []string{"clusters: 6", "name: BOYACA", "data_dir: " + data} {
		if !strings.Contains(out, want) {
			t.Errorf("config show missing %q:\n%s", want, out)
		}
	}

	if _, err := execute(t, "config", "set", "models.risk_low", "1.5"); err == nil {
		t.Error("expected fraction error")
	}
	if _, err := execute(t, "config", "set", "nope", "1"); err == nil || !strings.Contains(err.Error(), "unknown key") {
		t.Errorf("err = %v, want unknown key", err)
	}
}

func TestCLI_StageWithMissingInputFails(t *testing.T) {
	_, data := isolate(t)

	_, err := execute(t, "--data-dir", data, "gold")
	if err == nil || !strings.Contains(err.Error(), "missing input") {
		t.Fatalf("err = %v, want missing input", err)
	}
	if !strings.Contains(err.Error(), pipeline.GeoGold) {
		t.Errorf("err = %v, want dataset name %s", err, pipeline.GeoGold)
	}

	out := runCmd(t, "--data-dir", data, "audit")
	if !strings.Contains(out, "failed") {
		t.Errorf("audit output = %q, want a failed run", out)
	}
}

func TestCLI_AuditWithoutRuns(t *testing.T) {
	_, data := isolate(t)
	out := runCmd(t, "--data-dir", data, "audit")
	if !strings.Contains(out, "No runs recorded") {
		t.Errorf("output = %q", out)
	}
	if _, err := execute(t, "--data-dir", data, "audit", "does-not-exist"); err == nil {
		t.Error("expected unknown run error")
	}
}

func TestCLI_ProfileCSV(t *testing.T) {
	home, data := isolate(t)
	csvPath := filepath.Join(home, "delitos.csv")
	body := "municipio,delito,cantidad\nGIRON,HURTOS,2\nLEBRIJA,LESIONES,5\nGIRON,HURTOS,1\n"
	if err := os.WriteFile(csvPath, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	out := runCmd(t, "--data-dir", data, "profile", csvPath)
	if !strings.Contains(out, "[SCHEMA]") || !strings.Contains(out, "cantidad") {
		t.Errorf("profile output missing schema:\n%s", out)
	}

	outDir := filepath.Join(home, "reports")
	runCmd(t, "--data-dir", data, "profile", "-q", "-o", outDir, csvPath)
	runCmd(t, "--data-dir", data, "profile", "-q", "-o", outDir, csvPath)
	for _, name := range []string{"delitos.profile.md", "delitos__2.profile.md"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("report %s not written: %v", name, err)
		}
	}

	if _, err := execute(t, "--data-dir", data, "profile", filepath.Join(home, "*.nothing")); err == nil {
		t.Error("expected no input files error")
	}
}

// writeAnalytics stores a small analytics table: HURTOS in BUCARAMANGA,
// 10, 20 and 30 cases in 2020, 2021 and 2022.
func writeAnalytics(t *testing.T, data string) {
	t.Helper()
	tbl := table.MustNew(
		table.IntColumn(records.ColCode, 68001, 68001, 68001),
		table.StringColumn(records.ColMunicipality, []string{"BUCARAMANGA", "BUCARAMANGA", "BUCARAMANGA"}),
		table.IntColumn(records.ColYear, 2020, 2021, 2022),
		table.IntColumn(records.ColMonth, 1, 1, 1),
		table.FloatColumn(integrate.ColPopTotal, 600000, 600000, 600000),
		table.FloatColumn("HURTOS", 10, 20, 30),
	)
	path := pipeline.Paths{Root: data}.Of(pipeline.Analytics)
	if err := store.Write(path, tbl); err != nil {
		t.Fatalf("write analytics: %v", err)
	}
}

func TestCLI_AskAndPredict(t *testing.T) {
	_, data := isolate(t)

	if _, err := execute(t, "--data-dir", data, "ask", "hurtos"); err == nil || !strings.Contains(err.Error(), "missing input") {
		t.Fatalf("err = %v, want missing input", err)
	}

	writeAnalytics(t, data)

	out := runCmd(t, "--data-dir", data, "ask", "¿Cuántos", "hurtos", "en", "Bucaramanga", "en", "2022?")
	if !strings.Contains(out, "**30 casos**") || !strings.Contains(out, "10 casos más") {
		t.Errorf("ask output:\n%s", out)
	}

	out = runCmd(t, "--data-dir", data, "predict", "-m", "bucaramanga", "-d", "hurtos")
	if !strings.Contains(out, "HURTOS en BUCARAMANGA, 2023: 20.0 casos estimados") {
		t.Errorf("predict output:\n%s", out)
	}

	out = runCmd(t, "--data-dir", data, "predict", "-m", "bucaramanga", "-d", "hurtos", "--anio", "2022", "--json")
	if !strings.Contains(out, `"prediccion": 15`) {
		t.Errorf("predict json:\n%s", out)
	}

	if _, err := execute(t, "--data-dir", data, "predict", "-m", "bucaramanga"); err == nil {
		t.Error("expected required flag error")
	}
}
