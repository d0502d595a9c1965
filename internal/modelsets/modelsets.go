// Package modelsets projects the analytics table and the gold crime table
// into the datasets consumed by downstream model training.
package modelsets

import (
	"fmt"

	"github.com/KaramelBytes/crimeloom/internal/config"
	"github.com/KaramelBytes/crimeloom/internal/table"
)

// Dataset names, which are also the parquet file stems under gold/model.
const (
	RegressionTotal    = "regression_total_crimes"
	RegressionPerCrime = "regression_per_crime"
	RegressionGeo      = "regression_geo"
	MultiRegression    = "multi_regression"
	ClassRisk          = "classification_riesgo"
	ClassIncrease      = "classification_incremento"
	ClassDominantCrime = "classification_dominant_crime"
	ClassDominantArm   = "classification_dominant_weapon"
	ClassGeoClusters   = "classification_geo_clusters"
)

// Names lists every dataset in build order.
var Names = []string{
	RegressionTotal, RegressionPerCrime, RegressionGeo, MultiRegression,
	ClassRisk, ClassIncrease, ClassDominantCrime, ClassDominantArm, ClassGeoClusters,
}

// Dataset is one named model table.
type Dataset struct {
	Name  string
	Table *table.Table
}

// Options gathers the settings the builders read.
type Options struct {
	Models config.Models
	// Crimes are the crimes with annual rates in regression_geo.
	Crimes []string
}

// Build produces every dataset from the analytics table and the gold crime
// base table, in Names order.
func Build(analytics, crime *table.Table, o Options) ([]Dataset, error) {
	steps := []struct {
		name string
		fn   func() (*table.Table, error)
	}{
		{RegressionTotal, func() (*table.Table, error) { return TotalCrimes(analytics), nil }},
		{RegressionPerCrime, func() (*table.Table, error) { return PerCrime(analytics) }},
		{RegressionGeo, func() (*table.Table, error) { return Geo(analytics, o.Crimes) }},
		{MultiRegression, func() (*table.Table, error) { return Department(analytics) }},
		{ClassRisk, func() (*table.Table, error) { return Risk(analytics, o.Models.RiskLow, o.Models.RiskHigh) }},
		{ClassIncrease, func() (*table.Table, error) { return Increase(analytics) }},
		{ClassDominantCrime, func() (*table.Table, error) { return DominantCrime(crime) }},
		{ClassDominantArm, func() (*table.Table, error) { return DominantWeapon(crime) }},
		{ClassGeoClusters, func() (*table.Table, error) { return Clusters(analytics, o.Models.Clusters) }},
	}
	out := make([]Dataset, 0, len(steps))
	for _, s := range steps {
		t, err := s.fn()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
		out = append(out, Dataset{Name: s.name, Table: t})
	}
	return out, nil
}
