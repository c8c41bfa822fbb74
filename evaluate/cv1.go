package evaluate

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/emilybillow27-sudo/genopredict/core/parallel"
	"github.com/emilybillow27-sudo/genopredict/cv"
	"github.com/emilybillow27-sudo/genopredict/gblup"
	"github.com/emilybillow27-sudo/genopredict/grm"
	"github.com/emilybillow27-sudo/genopredict/metrics"
	"github.com/emilybillow27-sudo/genopredict/phenotype"
	"github.com/emilybillow27-sudo/genopredict/pkg/errors"
	"github.com/emilybillow27-sudo/genopredict/pkg/log"
)

// RunCV1 splits the table's accessions into folds, fits on every other
// fold and predicts each held-out observation in its own environment.
// A failed fold is recorded in FoldErrors and contributes no rows.
func (r *Runner) RunCV1(ctx context.Context, table *phenotype.Table, rel *grm.Relationship) (*CV1Result, error) {
	if table == nil || rel == nil {
		return nil, errors.NewValidationError("inputs", "table and relationship are required", nil)
	}
	start := time.Now()
	folds, err := r.kfold.Split(table.Accessions())
	if err != nil {
		return nil, err
	}

	rows := make([][]CV1Row, len(folds))
	foldErrs := parallel.ForEach(ctx, len(folds), r.workers, func(ctx context.Context, i int) error {
		logger := r.logger.With(
			log.RunIDKey, r.runID,
			log.ProtocolKey, string(cv.CV1),
			log.FoldKey, folds[i].Index,
			log.ModelKindKey, string(r.kind),
		)
		err := errors.SafeExecute("CV1/fold"+strconv.Itoa(i), func() error {
			var err error
			rows[i], err = r.runFold(table, rel, folds[i], logger)
			return err
		})
		if err != nil {
			rows[i] = nil
			logger.Error("fold failed", err)
		}
		return err
	})

	res := &CV1Result{
		RunID:       r.runID,
		Kind:        r.kind,
		K:           len(folds),
		Seed:        r.kfold.Seed,
		FoldPearson: make([]float64, len(folds)),
		FoldErrors:  foldErrs,
	}
	for i, fr := range rows {
		res.FoldPearson[i] = math.NaN()
		res.Rows = append(res.Rows, fr...)
		if foldErrs[i] != nil || len(fr) == 0 {
			continue
		}
		observed, predicted := make([]float64, len(fr)), make([]float64, len(fr))
		for j, row := range fr {
			observed[j], predicted[j] = row.Observed, row.Predicted
		}
		s, err := metrics.Score(observed, predicted)
		if err != nil {
			return nil, err
		}
		res.FoldPearson[i] = s.PearsonR
	}
	if res.Pooled, err = metrics.Score(res.Observed(), res.Predicted()); err != nil {
		return nil, err
	}
	res.Duration = time.Since(start)

	r.logger.Info("CV1 finished",
		log.RunIDKey, r.runID,
		log.ProtocolKey, string(cv.CV1),
		log.ModelKindKey, string(r.kind),
		"folds", res.K,
		log.SeedKey, res.Seed,
		log.PearsonRKey, res.Pooled.PearsonR,
		log.DurationMsKey, res.Duration.Milliseconds(),
	)
	return res, ctx.Err()
}

func (r *Runner) runFold(table *phenotype.Table, rel *grm.Relationship, fold cv.Fold, logger log.Logger) ([]CV1Row, error) {
	part := cv.BuildFold(table, fold)
	m, err := gblup.Fit(r.kind, rel, part.Train, r.modelOptions(logger)...)
	if err != nil {
		return nil, err
	}

	// Test is sorted by environment then accession, so each environment is
	// one contiguous run.
	rows := make([]CV1Row, 0, len(part.Test))
	for start := 0; start < len(part.Test); {
		env := part.Test[start].EnvironmentID
		end := start
		for end < len(part.Test) && part.Test[end].EnvironmentID == env {
			end++
		}
		block := part.Test[start:end]
		preds, err := gblup.Predict(m, rel, env, phenotype.Accessions(block))
		if err != nil {
			return nil, err
		}
		byID := make(map[string]float64, len(preds))
		for _, p := range preds {
			byID[p.AccessionID] = p.Value
		}
		for _, obs := range block {
			rows = append(rows, CV1Row{
				AccessionID:   obs.AccessionID,
				EnvironmentID: env,
				Observed:      obs.Value,
				Predicted:     byID[obs.AccessionID],
				Fold:          fold.Index,
			})
		}
		start = end
	}
	logger.Debug("fold completed",
		log.TrainObservationsKey, len(part.Train),
		log.TestAccessionsKey, len(fold.TestAccessions),
	)
	return rows, nil
}
