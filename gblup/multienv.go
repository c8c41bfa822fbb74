package gblup

import (
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/emilybillow27-sudo/genopredict/grm"
	"github.com/emilybillow27-sudo/genopredict/linear"
	"github.com/emilybillow27-sudo/genopredict/phenotype"
	"github.com/emilybillow27-sudo/genopredict/pkg/errors"
)

// MultiEnvModel is ME-GBLUP: environment fixed effects plus an
// observation-level genetic effect.
//
//	y = Xβ + Zu + e
//
// X holds an intercept and a one-hot column for every training environment
// except EnvLevels[0], the reference level. β is fitted by ridge least
// squares; the residuals of every genotyped observation are then solved
// against (G_obs + λI) with λ = (1−h²)/h².
type MultiEnvModel struct {
	genetic

	// Beta is [intercept, β(EnvLevels[1]), ..., β(EnvLevels[L-1])].
	Beta      []float64
	EnvLevels []string

	Heritability float64
}

// Kind returns KindMultiEnv.
func (m *MultiEnvModel) Kind() Kind { return KindMultiEnv }

// Fixed returns the fixed-effect prediction for env. An unseen environment
// or the reference level gets the intercept alone.
func (m *MultiEnvModel) Fixed(env string) float64 {
	v := m.Beta[0]
	if i, ok := slices.BinarySearch(m.EnvLevels, env); ok && i > 0 {
		v += m.Beta[i]
	}
	return v
}

// design returns the n × L fixed-effect matrix for obs over levels.
func design(obs []phenotype.Observation, levels []string) *mat.Dense {
	x := mat.NewDense(len(obs), len(levels), nil)
	for i, o := range obs {
		x.Set(i, 0, 1)
		if j, ok := slices.BinarySearch(levels, o.EnvironmentID); ok && j > 0 {
			x.Set(i, j, 1)
		}
	}
	return x
}

func fitMultiEnv(op string, rel *grm.Relationship, train []phenotype.Observation, c *config) (*MultiEnvModel, error) {
	if len(train) == 0 {
		return nil, errors.NewModelError(op, "no training observations", errors.ErrEmptyData)
	}

	levels := phenotype.Environments(train)
	x := design(train, levels)
	y := mat.NewVecDense(len(train), phenotype.Values(train))

	fixed := linear.NewRidgeRegression(
		linear.WithRidge(c.fixedRidge),
		linear.WithOperation(op+".fixed"),
	)
	if err := fixed.Fit(x, y); err != nil {
		return nil, err
	}
	resid, err := fixed.Residuals(x, y)
	if err != nil {
		return nil, err
	}

	idx := rel.Index()
	var (
		ids  []string
		rows []int
		yg   []float64
	)
	for i, obs := range train {
		r, ok := idx.Row(obs.AccessionID)
		if !ok {
			continue
		}
		ids = append(ids, obs.AccessionID)
		rows = append(rows, r)
		yg = append(yg, resid.AtVec(i))
	}

	m := &MultiEnvModel{
		Beta:         fixed.Coefficients(),
		EnvLevels:    levels,
		Heritability: c.heritability,
	}
	m.TrainIDs = ids
	m.Policy = c.policy
	m.Diag = Diagnostics{
		FixedEffectFallback:     fixed.Info.Fallback,
		TrainObservations:       len(train),
		TrainAccessions:         len(phenotype.Accessions(train)),
		UngenotypedObservations: len(train) - len(ids),
	}

	lambda := (1 - c.heritability) / c.heritability
	if err := m.solve(op, rel, rows, yg, lambda, c.logger); err != nil {
		return nil, err
	}
	m.markFitted()
	return m, nil
}
