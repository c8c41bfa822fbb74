package gblup

import (
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/emilybillow27-sudo/genopredict/grm"
	"github.com/emilybillow27-sudo/genopredict/phenotype"
	"github.com/emilybillow27-sudo/genopredict/pkg/errors"
)

// BaselineModel is single-environment GBLUP on per-accession means.
//
// y is the mean phenotype of each genotyped training accession, centered by
// Intercept. α = (G_train + λI)⁻¹ y_c with λ = ε·trace(G_train)/n, and the
// prediction for any genotyped accession a is Intercept + G[a, train]·α.
type BaselineModel struct {
	genetic

	Intercept   float64
	RidgeFactor float64
}

// Kind returns KindBaseline.
func (m *BaselineModel) Kind() Kind { return KindBaseline }

func fitBaseline(op string, rel *grm.Relationship, train []phenotype.Observation, c *config) (*BaselineModel, error) {
	idx := rel.Index()
	sums := make(map[string]float64)
	counts := make(map[string]int)
	ungenotyped := 0
	for _, obs := range train {
		if !idx.Contains(obs.AccessionID) {
			ungenotyped++
			continue
		}
		sums[obs.AccessionID] += obs.Value
		counts[obs.AccessionID]++
	}
	if len(sums) == 0 {
		return nil, errors.NewModelError(op, "no genotyped training observations", errors.ErrEmptyData)
	}

	ids := make([]string, 0, len(sums))
	for id := range sums {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	y := make([]float64, len(ids))
	rows := make([]int, len(ids))
	for i, id := range ids {
		y[i] = sums[id] / float64(counts[id])
		rows[i], _ = idx.Row(id)
	}
	intercept := stat.Mean(y, nil)
	for i := range y {
		y[i] -= intercept
	}

	m := &BaselineModel{Intercept: intercept, RidgeFactor: c.ridgeFactor}
	m.TrainIDs = ids
	m.Policy = c.policy
	m.Diag = Diagnostics{
		TrainObservations:       len(train),
		TrainAccessions:         len(ids),
		UngenotypedObservations: ungenotyped,
	}

	lambda := c.ridgeFactor * rel.Trace(rows) / float64(len(rows))
	if err := m.solve(op, rel, rows, y, lambda, c.logger); err != nil {
		return nil, err
	}
	m.markFitted()
	return m, nil
}
