package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/crimeloom/internal/utils"
)

// Pipeline is the complete configuration of a run.
type Pipeline struct {
	DataDir     string      `mapstructure:"data_dir" yaml:"data_dir"`
	Department  Department  `mapstructure:"department" yaml:"department"`
	Categories  []string    `mapstructure:"categories" yaml:"categories"`
	Silver      Silver      `mapstructure:"silver" yaml:"silver"`
	Cleaning    Cleaning    `mapstructure:"cleaning" yaml:"cleaning"`
	GapFill     GapFill     `mapstructure:"gap_fill" yaml:"gap_fill"`
	Integration Integration `mapstructure:"integration" yaml:"integration"`
	Analytics   Analytics   `mapstructure:"analytics" yaml:"analytics"`
	Models      Models      `mapstructure:"models" yaml:"models"`
	Serve       Serve       `mapstructure:"serve" yaml:"serve"`
}

// Department selects the territory every source is filtered to.
type Department struct {
	Name string `mapstructure:"name" yaml:"name"`
	Code string `mapstructure:"code" yaml:"code"`
}

// Silver configures the bronze readers.
type Silver struct {
	HeaderFrom         int               `mapstructure:"header_from" yaml:"header_from"`
	HeaderTo           int               `mapstructure:"header_to" yaml:"header_to"`
	CrimeLabels        map[string]string `mapstructure:"crime_labels" yaml:"crime_labels"`
	ExcludedCategories []string          `mapstructure:"excluded_categories" yaml:"excluded_categories"`
	NoReport           []string          `mapstructure:"no_report" yaml:"no_report"`
	DivipolaSheet      string            `mapstructure:"divipola_sheet" yaml:"divipola_sheet"`
	DivipolaHeader     int               `mapstructure:"divipola_header" yaml:"divipola_header"`
	Vintages           []Vintage         `mapstructure:"vintages" yaml:"vintages"`
}

// Vintage is one census-based population export and the years taken from it.
type Vintage struct {
	File     string `mapstructure:"file" yaml:"file"`
	FromYear int    `mapstructure:"from_year" yaml:"from_year"`
	ToYear   int    `mapstructure:"to_year" yaml:"to_year"`
}

// Cleaning configures the per-source cleaners.
type Cleaning struct {
	StripDigits int    `mapstructure:"strip_digits" yaml:"strip_digits"`
	DefaultCRS  string `mapstructure:"default_crs" yaml:"default_crs"`
}

// Gap is one backfill rule: the secondary label and years that substitute
// for a primary category.
type Gap struct {
	Category  string `mapstructure:"category" yaml:"category"`
	Secondary string `mapstructure:"secondary" yaml:"secondary"`
	Years     []int  `mapstructure:"years" yaml:"years"`
}

// GapFill configures the crime merger.
type GapFill struct {
	Gaps []Gap `mapstructure:"gaps" yaml:"gaps"`
}

// Integration configures the gold integrator.
type Integration struct {
	Categories []string `mapstructure:"categories" yaml:"categories"`
}

// Analytics configures rates and time-series features.
type Analytics struct {
	RateCrimes []string `mapstructure:"rate_crimes" yaml:"rate_crimes"`
	Lags       []int    `mapstructure:"lags" yaml:"lags"`
	Windows    []int    `mapstructure:"windows" yaml:"windows"`
	PctPeriods []int    `mapstructure:"pct_periods" yaml:"pct_periods"`
	Per        float64  `mapstructure:"per" yaml:"per"`
}

// Models configures the model-dataset builders.
type Models struct {
	RiskLow  float64 `mapstructure:"risk_low" yaml:"risk_low"`
	RiskHigh float64 `mapstructure:"risk_high" yaml:"risk_high"`
	Clusters int     `mapstructure:"clusters" yaml:"clusters"`
}

// Serve configures the dashboard API.
type Serve struct {
	Addr         string  `mapstructure:"addr" yaml:"addr"`
	AskPerSecond float64 `mapstructure:"ask_per_second" yaml:"ask_per_second"`
	AskBurst     int     `mapstructure:"ask_burst" yaml:"ask_burst"`
}

// Canonical crime categories.
var defaultCategories = []string{
	"ABIGEATO", "AMENAZAS", "DELITOS INFORMÁTICOS", "DELITOS SEXUALES", "EXTORSION",
	"HOMICIDIOS", "HURTOS", "LESIONES", "VIOLENCIA INTRAFAMILIAR",
}

var defaultRateCrimes = []string{
	"ABIGEATO", "HURTOS", "LESIONES", "VIOLENCIA INTRAFAMILIAR",
	"AMENAZAS", "DELITOS SEXUALES", "EXTORSION", "HOMICIDIOS",
}

// Raw, URL-escaped labels found in police file names.
var defaultCrimeLabels = map[string]string{
	"Delitos%20sexuales":                               "Delitos sexuales",
	"Extorsi%C3%B3n":                                   "Extorsion",
	"Homicidio%20Intencional":                          "Homicidios",
	"Delitos":                                          "Delitos sexuales",
	"Violencia%20intrafamiliar":                        "Violencia intrafamiliar",
	"Violencia":                                        "Violencia intrafamiliar",
	"Lesiones%20personales":                            "Lesiones",
	"Lesiones":                                         "Lesiones",
	"Lesiones%20en%20accidente%20de%20tr%C3%A1nsito":   "Lesiones",
	"Hurto%20pirater%C3%ADa%20terrestre":               "Hurtos",
	"Hurto%20automotores":                              "Hurtos",
	"Hurto%20a%20residencias":                          "Hurtos",
	"Hurto%20a%20personas":                             "Hurtos",
	"Hurto%20a%20motocicletas":                         "Hurtos",
	"Hurto%20a%20entidades%20Financieras":              "Hurtos",
	"Hurto%20a%20comercio":                             "Hurtos",
	"Hurto%20a%20cabezas%20de%20ganado":                "Abigeato",
	"Hurto":                                            "Hurtos",
	"Homicidios%20en%20accidente%20de%20tr%C3%A1nsito": "Homicidios",
}

// Default returns the built-in configuration.
func Default() *Pipeline {
	labels := make(map[string]string, len(defaultCrimeLabels))
	for k, v := range defaultCrimeLabels {
		labels[k] = v
	}
	return &Pipeline{
		DataDir:    "data",
		Department: Department{Name: "SANTANDER", Code: "68"},
		Categories: append([]string(nil), defaultCategories...),
		Silver: Silver{
			HeaderFrom:         9,
			HeaderTo:           12,
			CrimeLabels:        labels,
			ExcludedCategories: []string{"PIRATERIA", "SECUESTRO"},
			NoReport:           []string{"", "-", "NO REPORTA", "NO REPORTADO", "NO RESPORTADO"},
			DivipolaSheet:      "LISTADO_VIGENTES",
			DivipolaHeader:     2,
			Vintages: []Vintage{
				{File: "TerriData_Pob_2005.txt", FromYear: 2010, ToYear: 2017},
				{File: "TerriData_Pob_2018.txt", FromYear: 2018, ToYear: 2035},
			},
		},
		Cleaning: Cleaning{StripDigits: 3, DefaultCRS: "EPSG:4326"},
		GapFill: GapFill{Gaps: []Gap{
			{Category: "DELITOS SEXUALES", Secondary: "DELITOS_SEXUALES", Years: []int{2010}},
			{Category: "DELITOS INFORMÁTICOS", Secondary: "DELITOS_INFORMATICOS", Years: []int{2010, 2011, 2012, 2013, 2014, 2015, 2016, 2017}},
		}},
		Integration: Integration{Categories: append([]string(nil), defaultCategories...)},
		Analytics: Analytics{
			RateCrimes: append([]string(nil), defaultRateCrimes...),
			Lags:       []int{1, 3, 12},
			Windows:    []int{3, 12},
			PctPeriods: []int{1, 3, 12},
			Per:        100000,
		},
		Models: Models{RiskLow: 0.33, RiskHigh: 0.66, Clusters: 4},
		Serve:  Serve{Addr: "127.0.0.1:8050", AskPerSecond: 2, AskBurst: 5},
	}
}

// setDefaults registers every default on v so env overrides of nested keys
// are picked up by Unmarshal.
func setDefaults(v *viper.Viper, d *Pipeline) {
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("department.name", d.Department.Name)
	v.SetDefault("department.code", d.Department.Code)
	v.SetDefault("categories", d.Categories)
	v.SetDefault("silver.header_from", d.Silver.HeaderFrom)
	v.SetDefault("silver.header_to", d.Silver.HeaderTo)
	v.SetDefault("silver.crime_labels", d.Silver.CrimeLabels)
	v.SetDefault("silver.excluded_categories", d.Silver.ExcludedCategories)
	v.SetDefault("silver.no_report", d.Silver.NoReport)
	v.SetDefault("silver.divipola_sheet", d.Silver.DivipolaSheet)
	v.SetDefault("silver.divipola_header", d.Silver.DivipolaHeader)
	v.SetDefault("silver.vintages", d.Silver.Vintages)
	v.SetDefault("cleaning.strip_digits", d.Cleaning.StripDigits)
	v.SetDefault("cleaning.default_crs", d.Cleaning.DefaultCRS)
	v.SetDefault("gap_fill.gaps", d.GapFill.Gaps)
	v.SetDefault("integration.categories", d.Integration.Categories)
	v.SetDefault("analytics.rate_crimes", d.Analytics.RateCrimes)
	v.SetDefault("analytics.lags", d.Analytics.Lags)
	v.SetDefault("analytics.windows", d.Analytics.Windows)
	v.SetDefault("analytics.pct_periods", d.Analytics.PctPeriods)
	v.SetDefault("analytics.per", d.Analytics.Per)
	v.SetDefault("models.risk_low", d.Models.RiskLow)
	v.SetDefault("models.risk_high", d.Models.RiskHigh)
	v.SetDefault("models.clusters", d.Models.Clusters)
	v.SetDefault("serve.addr", d.Serve.Addr)
	v.SetDefault("serve.ask_per_second", d.Serve.AskPerSecond)
	v.SetDefault("serve.ask_burst", d.Serve.AskBurst)
}

// DefaultPath returns ~/.crimeloom/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".crimeloom", "config.yaml"), nil
}

// Save writes the configuration to cfgFile, or to DefaultPath when empty.
func Save(c *Pipeline, cfgFile string) error {
	path := cfgFile
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from defaults, file and env.
// Precedence: env > config file > defaults. The file is cfgFile when given,
// else ./crimeloom.yaml, else ~/.crimeloom/config.yaml.
func Load(cfgFile string) (*Pipeline, error) {
	v := viper.New()
	v.SetEnvPrefix("CRIMELOOM")
	v.SetEnvKeyReplacer(envReplacer)
	v.AutomaticEnv()
	setDefaults(v, Default())

	path, explicit := cfgFile, cfgFile != ""
	if !explicit {
		path = findConfig()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Pipeline
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if len(c.Integration.Categories) == 0 {
		c.Integration.Categories = c.Categories
	}
	return &c, nil
}

var envReplacer = strings.NewReplacer(".", "_")

// findConfig returns the first existing default config location, or "".
func findConfig() string {
	if utils.Exists("crimeloom.yaml") {
		return "crimeloom.yaml"
	}
	if p, err := DefaultPath(); err == nil && utils.Exists(p) {
		return p
	}
	return ""
}
