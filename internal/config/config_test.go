package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.DataDir != "data" || c.Department.Code != "68" {
		t.Fatalf("unexpected defaults: %+v", c.Department)
	}
	if c.Silver.HeaderFrom != 9 || c.Silver.HeaderTo != 12 {
		t.Fatalf("header range = %d..%d", c.Silver.HeaderFrom, c.Silver.HeaderTo)
	}
	if c.Cleaning.StripDigits != 3 {
		t.Fatalf("strip digits = %d", c.Cleaning.StripDigits)
	}
	if diff := cmp.Diff([]int{1, 3, 12}, c.Analytics.Lags); diff != "" {
		t.Fatalf("lags (-want +got):\n%s", diff)
	}
	if len(c.GapFill.Gaps) != 2 || c.GapFill.Gaps[0].Category != "DELITOS SEXUALES" {
		t.Fatalf("gaps = %+v", c.GapFill.Gaps)
	}
	if len(c.Silver.Vintages) != 2 || c.Silver.Vintages[0].ToYear != 2017 {
		t.Fatalf("vintages = %+v", c.Silver.Vintages)
	}
}

func TestEnvOverridesNestedKey(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	t.Setenv("CRIMELOOM_CLEANING_STRIP_DIGITS", "4")
	t.Setenv("CRIMELOOM_DATA_DIR", "/srv/crime")
	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Cleaning.StripDigits != 4 {
		t.Errorf("strip digits = %d, want 4", c.Cleaning.StripDigits)
	}
	if c.DataDir != "/srv/crime" {
		t.Errorf("data dir = %q", c.DataDir)
	}
}

func TestSaveThenLoad(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "crimeloom.yaml")
	c := Default()
	c.DataDir = "elsewhere"
	c.Models.Clusters = 6
	if err := Save(c, path); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.DataDir != "elsewhere" || got.Models.Clusters != 6 {
		t.Fatalf("got data_dir=%q clusters=%d", got.DataDir, got.Models.Clusters)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestLoadPrefersWorkingDirFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, "crimeloom.yaml"), []byte("data_dir: local\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.DataDir != "local" {
		t.Fatalf("data dir = %q", c.DataDir)
	}
}
