package gblup

import (
	"math"
	"time"

	"github.com/emilybillow27-sudo/genopredict/grm"
	"github.com/emilybillow27-sudo/genopredict/phenotype"
	"github.com/emilybillow27-sudo/genopredict/pkg/errors"
	"github.com/emilybillow27-sudo/genopredict/pkg/log"
)

var nan = math.NaN()

func unknownKind(v interface{}) error {
	return errors.Mark(errors.NewValidationError("kind", "unknown model kind", v), errors.ErrUnknownModelKind)
}

// Fit fits an estimator of the given kind on train.
//
// Observations whose accession is absent from rel do not enter the genetic
// solve; under KindMultiEnv they still inform the fixed effects. rel and
// train are not modified.
func Fit(kind Kind, rel *grm.Relationship, train []phenotype.Observation, opts ...Option) (Model, error) {
	const op = "gblup.Fit"
	if rel == nil {
		return nil, errors.NewValidationError("relationship", "is required", nil)
	}
	c, err := newConfig(opts)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var m Model
	switch kind {
	case KindBaseline:
		m, err = fitBaseline(op, rel, train, c)
	case KindMultiEnv:
		m, err = fitMultiEnv(op, rel, train, c)
	default:
		return nil, unknownKind(kind)
	}
	if err != nil {
		return nil, err
	}

	d := m.Diagnostics()
	c.logger.Debug("fit completed",
		log.OperationKey, log.OperationFit,
		log.ModelKindKey, string(kind),
		log.TrainObservationsKey, d.TrainObservations,
		log.AccessionsKey, d.TrainAccessions,
		log.UngenotypedKey, d.UngenotypedObservations,
		log.LambdaKey, d.Lambda,
		log.FallbackKey, d.Fallback,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return m, nil
}

// Predict returns one Prediction per accession, in input order, for the
// focal environment.
//
// Accessions in rel get fixed + G[a, train]·α. Accessions absent from rel
// follow the model's UngenotypedPolicy and never cause an error.
func Predict(m Model, rel *grm.Relationship, focalEnv string, accessions []string) ([]Prediction, error) {
	const op = "gblup.Predict"
	if rel == nil {
		return nil, errors.NewValidationError("relationship", "is required", nil)
	}
	switch mm := m.(type) {
	case *BaselineModel:
		if mm == nil || !mm.IsFitted() {
			return nil, errors.NewNotFittedError("BaselineModel", "Predict")
		}
		return mm.predict(op, rel, mm.Intercept, focalEnv, accessions)
	case *MultiEnvModel:
		if mm == nil || !mm.IsFitted() {
			return nil, errors.NewNotFittedError("MultiEnvModel", "Predict")
		}
		return mm.predict(op, rel, mm.Fixed(focalEnv), focalEnv, accessions)
	case nil:
		return nil, errors.NewNotFittedError("Model", "Predict")
	default:
		return nil, unknownKind(m.Kind())
	}
}
