// Package gblup fits genomic best linear unbiased predictors over a
// precomputed relationship matrix.
//
// Two estimators are provided:
//
//   - KindBaseline: single-environment GBLUP on per-accession means.
//   - KindMultiEnv: ME-GBLUP with environment fixed effects and an
//     observation-level genetic solve.
//
// Both share the same numerical policy: a Cholesky solve of the regularized
// kernel, falling back to an SVD minimum-norm solution with a warning when
// the system is not positive definite.
//
// Example:
//
//	m, err := gblup.Fit(gblup.KindMultiEnv, rel, part.Train)
//	if err != nil {
//	    return err
//	}
//	preds, err := gblup.Predict(m, rel, part.FocalEnv, part.TestAccessions)
package gblup

import (
	"strings"

	"github.com/emilybillow27-sudo/genopredict/core/model"
	"github.com/emilybillow27-sudo/genopredict/pkg/errors"
)

// Kind selects an estimator.
type Kind string

const (
	// KindBaseline is single-environment GBLUP.
	KindBaseline Kind = "gblup"
	// KindMultiEnv is GBLUP with environment fixed effects.
	KindMultiEnv Kind = "me_gblup"
)

// ParseKind accepts "gblup", "baseline", "me_gblup" or "me-gblup".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gblup", "baseline":
		return KindBaseline, nil
	case "me_gblup", "me-gblup", "megblup", "multienv":
		return KindMultiEnv, nil
	default:
		return "", errors.Wrapf(errors.ErrUnknownModelKind, "%q", s)
	}
}

// Model is a fitted estimator. The concrete types are *BaselineModel and
// *MultiEnvModel.
type Model interface {
	// Kind identifies the estimator.
	Kind() Kind
	// Diagnostics describes how the model was fitted.
	Diagnostics() Diagnostics
	// BreedingValues returns u for every genotyped training accession.
	BreedingValues() map[string]float64
	// IsFitted reports whether the model can predict.
	IsFitted() bool

	sealed()
}

// Diagnostics records the numerical path taken by Fit.
type Diagnostics struct {
	// Lambda is the ridge added to the kernel diagonal.
	Lambda float64
	// Fallback is true when the genetic solve used the SVD path.
	Fallback       bool
	FallbackReason string
	// Rank of the genetic system (its size for a direct solve).
	Rank int

	// Degenerate is true when the relationship had no informative markers,
	// so every genetic contribution is zero.
	Degenerate bool

	// FixedEffectFallback is true when the β solve used the SVD path.
	FixedEffectFallback bool

	TrainObservations int
	TrainAccessions   int
	// UngenotypedObservations were dropped from the genetic solve.
	UngenotypedObservations int
}

// Prediction is one predicted accession value.
type Prediction struct {
	AccessionID   string
	EnvironmentID string
	Value         float64
	// Missing is true when the accession is absent from the relationship
	// and the model was fitted with UngenotypedMissing. Value is NaN.
	Missing bool
}

// UngenotypedPolicy decides what Predict returns for an accession absent
// from the relationship index.
type UngenotypedPolicy int

const (
	// UngenotypedMissing marks the prediction Missing with a NaN value.
	UngenotypedMissing UngenotypedPolicy = iota
	// UngenotypedFixedEffect returns the fixed-effect prediction alone.
	UngenotypedFixedEffect
)

// String returns the policy name.
func (p UngenotypedPolicy) String() string {
	switch p {
	case UngenotypedMissing:
		return "missing"
	case UngenotypedFixedEffect:
		return "fixed_effect"
	default:
		return "unknown"
	}
}

// genetic is the random-effect part shared by both estimators.
type genetic struct {
	// TrainIDs labels the columns of the genetic solve: one accession per
	// column, repeated under ME-GBLUP when an accession has several
	// observations.
	TrainIDs []string
	Alpha    []float64
	U        map[string]float64
	Policy   UngenotypedPolicy
	Diag     Diagnostics

	state *model.StateManager
}

func (g *genetic) Diagnostics() Diagnostics { return g.Diag }

func (g *genetic) IsFitted() bool { return g.state.IsFitted() }

func (g *genetic) BreedingValues() map[string]float64 {
	out := make(map[string]float64, len(g.U))
	for k, v := range g.U {
		out[k] = v
	}
	return out
}

func (g *genetic) sealed() {}

func (g *genetic) markFitted() {
	g.state = model.NewStateManager()
	g.state.SetFitted(g.Diag.TrainAccessions, g.Diag.TrainObservations)
}
