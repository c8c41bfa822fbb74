// Package phenotype holds trait observations keyed by accession and
// environment, and resolves raw phenotype exports into them.
package phenotype

import (
	"math"
	"slices"
	"strings"

	"github.com/emilybillow27-sudo/genopredict/pkg/errors"
)

// Observation is one trait value for an accession in an environment.
type Observation struct {
	AccessionID   string
	EnvironmentID string
	Value         float64
}

// EnvironmentID composes the environment key "location_year_study". When
// location and year are both blank the bare study name is used.
func EnvironmentID(location, year, study string) string {
	location, year, study = strings.TrimSpace(location), strings.TrimSpace(year), strings.TrimSpace(study)
	if location == "" && year == "" {
		return study
	}
	return location + "_" + year + "_" + study
}

// Table is an immutable set of observations with at most one row per
// (accession, environment). Rows are ordered by environment, then accession.
type Table struct {
	trait   string
	obs     []Observation
	merged  int
	skipped int
}

type obsKey struct{ acc, env string }

// NewTable builds a Table. Duplicate (accession, environment) pairs are
// averaged; NaN values are skipped. obs is not modified.
func NewTable(trait string, obs []Observation) (*Table, error) {
	sums := make(map[obsKey]float64, len(obs))
	counts := make(map[obsKey]int, len(obs))
	t := &Table{trait: trait}
	for i, o := range obs {
		if o.AccessionID == "" || o.EnvironmentID == "" {
			return nil, errors.NewValidationError("observation", "accession and environment ids are required", i)
		}
		if math.IsNaN(o.Value) {
			t.skipped++
			continue
		}
		if math.IsInf(o.Value, 0) {
			return nil, errors.NewNumericalInstabilityError("phenotype.NewTable", []float64{o.Value})
		}
		k := obsKey{o.AccessionID, o.EnvironmentID}
		sums[k] += o.Value
		counts[k]++
	}

	t.obs = make([]Observation, 0, len(sums))
	for k, s := range sums {
		c := counts[k]
		t.merged += c - 1
		t.obs = append(t.obs, Observation{AccessionID: k.acc, EnvironmentID: k.env, Value: s / float64(c)})
	}
	slices.SortFunc(t.obs, compareObservations)
	return t, nil
}

func compareObservations(a, b Observation) int {
	if c := strings.Compare(a.EnvironmentID, b.EnvironmentID); c != 0 {
		return c
	}
	return strings.Compare(a.AccessionID, b.AccessionID)
}

// Trait returns the resolved trait column name.
func (t *Table) Trait() string { return t.trait }

// Len returns the number of (deduplicated) observations.
func (t *Table) Len() int { return len(t.obs) }

// Merged returns how many input rows were folded into an existing pair.
func (t *Table) Merged() int { return t.merged }

// Skipped returns how many input rows had a missing value.
func (t *Table) Skipped() int { return t.skipped }

// Observations returns a copy of every row.
func (t *Table) Observations() []Observation {
	return slices.Clone(t.obs)
}

// Filter returns a copy of the rows for which keep returns true.
func (t *Table) Filter(keep func(Observation) bool) []Observation {
	var out []Observation
	for _, o := range t.obs {
		if keep(o) {
			out = append(out, o)
		}
	}
	return out
}

// InEnvironment returns the rows observed in env.
func (t *Table) InEnvironment(env string) []Observation {
	return t.Filter(func(o Observation) bool { return o.EnvironmentID == env })
}

// Environments returns the sorted unique environment ids.
func (t *Table) Environments() []string { return Environments(t.obs) }

// Accessions returns the sorted unique accession ids.
func (t *Table) Accessions() []string { return Accessions(t.obs) }

// Accessions returns the sorted unique accession ids in obs.
func Accessions(obs []Observation) []string {
	ids := make([]string, 0, len(obs))
	for _, o := range obs {
		ids = append(ids, o.AccessionID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

// Environments returns the sorted unique environment ids in obs.
func Environments(obs []Observation) []string {
	ids := make([]string, 0, len(obs))
	for _, o := range obs {
		ids = append(ids, o.EnvironmentID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

// Values returns the trait values of obs in order.
func Values(obs []Observation) []float64 {
	v := make([]float64, len(obs))
	for i, o := range obs {
		v[i] = o.Value
	}
	return v
}
