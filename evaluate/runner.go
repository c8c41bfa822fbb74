// Package evaluate runs the focal environment × protocol evaluation loop
// and the CV1 k-fold loop.
//
// The relationship, table and marker data are shared read-only between
// pairs. Each pair runs inside errors.SafeExecute: an error or panic is
// logged and recorded on that pair only, and the remaining pairs continue.
package evaluate

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/emilybillow27-sudo/genopredict/core/parallel"
	"github.com/emilybillow27-sudo/genopredict/cv"
	"github.com/emilybillow27-sudo/genopredict/gblup"
	"github.com/emilybillow27-sudo/genopredict/grm"
	"github.com/emilybillow27-sudo/genopredict/metrics"
	"github.com/emilybillow27-sudo/genopredict/phenotype"
	"github.com/emilybillow27-sudo/genopredict/pkg/errors"
	"github.com/emilybillow27-sudo/genopredict/pkg/log"
)

// Runner evaluates one estimator kind over many partitions.
type Runner struct {
	kind    gblup.Kind
	fitOpts []gblup.Option
	workers int
	kfold   cv.KFold
	runID   string
	logger  log.Logger
}

// NewRunner returns a sequential ME-GBLUP runner with 5-fold CV1.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		kind:    gblup.KindMultiEnv,
		workers: 1,
		kfold:   cv.NewKFold(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.GetLoggerWithName("evaluate")
	}
	if r.runID == "" {
		r.runID = uuid.NewString()
	}
	return r
}

// RunID returns the identifier attached to every result and log record.
func (r *Runner) RunID() string { return r.runID }

type pair struct {
	focal    string
	protocol cv.Protocol
}

// Run evaluates every focalEnvs × protocols pair (CV0 or CV00) in that
// order. A failed pair is recorded in the report and does not stop the
// others. The returned error is non-nil only for invalid arguments or a
// cancelled context; in the latter case the report holds every pair that
// ran.
func (r *Runner) Run(ctx context.Context, table *phenotype.Table, rel *grm.Relationship, focalEnvs []string, protocols []cv.Protocol) (*Report, error) {
	if table == nil || rel == nil {
		return nil, errors.NewValidationError("inputs", "table and relationship are required", nil)
	}
	var pairs []pair
	for _, focal := range focalEnvs {
		for _, p := range protocols {
			if p != cv.CV0 && p != cv.CV00 {
				return nil, errors.NewValidationError("protocol", "Run supports CV0 and CV00; use RunCV1 for CV1", string(p))
			}
			pairs = append(pairs, pair{focal: focal, protocol: p})
		}
	}

	report := &Report{RunID: r.runID, Kind: r.kind, Started: time.Now()}
	results := make([]PairResult, len(pairs))
	universe := rel.IDs()

	errs := parallel.ForEach(ctx, len(pairs), r.workers, func(ctx context.Context, i int) error {
		results[i] = r.runPair(table, rel, pairs[i], universe)
		return results[i].Err
	})
	for i, err := range errs {
		if err != nil && results[i].Err == nil {
			results[i] = PairResult{RunID: r.runID, Protocol: pairs[i].protocol, FocalEnv: pairs[i].focal, Err: err}
		}
	}
	report.Pairs = results
	report.Duration = time.Since(report.Started)

	r.logger.Info("evaluation finished",
		log.RunIDKey, r.runID,
		log.OperationKey, log.OperationEvaluate,
		log.ModelKindKey, string(r.kind),
		"pairs", len(pairs),
		"failed", len(report.Failed()),
		log.DurationMsKey, report.Duration.Milliseconds(),
	)
	return report, ctx.Err()
}

func (r *Runner) runPair(table *phenotype.Table, rel *grm.Relationship, pr pair, universe []string) PairResult {
	start := time.Now()
	logger := r.logger.With(
		log.RunIDKey, r.runID,
		log.ProtocolKey, string(pr.protocol),
		log.FocalEnvKey, pr.focal,
		log.ModelKindKey, string(r.kind),
	)

	res := PairResult{RunID: r.runID, Protocol: pr.protocol, FocalEnv: pr.focal}
	err := errors.SafeExecute(string(pr.protocol)+"/"+pr.focal, func() error {
		part, err := cv.Build(table, pr.focal, pr.protocol, cv.WithUniverse(universe), cv.WithLogger(logger))
		if err != nil {
			return err
		}
		m, err := gblup.Fit(r.kind, rel, part.Train, r.modelOptions(logger)...)
		if err != nil {
			return err
		}
		preds, err := gblup.Predict(m, rel, pr.focal, part.TestAccessions)
		if err != nil {
			return err
		}
		scores, err := score(part.Test, preds)
		if err != nil {
			return err
		}
		res.Partition = part
		res.Predictions = preds
		res.Diagnostics = m.Diagnostics()
		res.Scores = scores
		return nil
	})
	res.Duration = time.Since(start)

	if err != nil {
		logger.Error("pair failed", err, log.DurationMsKey, res.Duration.Milliseconds())
		return PairResult{RunID: r.runID, Protocol: pr.protocol, FocalEnv: pr.focal, Duration: res.Duration, Err: err}
	}
	logger.Info("pair completed",
		log.TrainObservationsKey, len(res.Partition.Train),
		log.TestAccessionsKey, len(res.Partition.TestAccessions),
		log.FallbackKey, res.Partition.Fallback,
		log.PearsonRKey, res.Scores.PearsonR,
		log.RMSEKey, res.Scores.RMSE,
		log.DurationMsKey, res.Duration.Milliseconds(),
	)
	return res
}

// score pairs each held-out observation with its accession's prediction.
func score(test []phenotype.Observation, preds []gblup.Prediction) (metrics.Scores, error) {
	byID := make(map[string]float64, len(preds))
	for _, p := range preds {
		byID[p.AccessionID] = p.Value
	}
	observed := make([]float64, len(test))
	predicted := make([]float64, len(test))
	for i, obs := range test {
		observed[i] = obs.Value
		v, ok := byID[obs.AccessionID]
		if !ok {
			v = math.NaN()
		}
		predicted[i] = v
	}
	return metrics.Score(observed, predicted)
}
