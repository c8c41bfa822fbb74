package evaluate

import (
	"slices"

	"github.com/emilybillow27-sudo/genopredict/cv"
	"github.com/emilybillow27-sudo/genopredict/gblup"
	"github.com/emilybillow27-sudo/genopredict/pkg/log"
)

// Option configures a Runner.
type Option func(*Runner)

// WithKind selects the estimator. Default gblup.KindMultiEnv.
func WithKind(kind gblup.Kind) Option {
	return func(r *Runner) {
		r.kind = kind
	}
}

// WithModelOptions passes options to every gblup.Fit call.
func WithModelOptions(opts ...gblup.Option) Option {
	return func(r *Runner) {
		r.fitOpts = append(r.fitOpts, opts...)
	}
}

// WithWorkers runs up to n pairs (or folds) concurrently. n <= 1 is
// sequential.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n < 1 {
			n = 1
		}
		r.workers = n
	}
}

// WithKFold sets the CV1 splitter.
func WithKFold(kf cv.KFold) Option {
	return func(r *Runner) {
		r.kfold = kf
	}
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id string) Option {
	return func(r *Runner) {
		r.runID = id
	}
}

// modelOptions appends the pair logger to a clipped copy of fitOpts.
// Pairs run concurrently.
func (r *Runner) modelOptions(logger log.Logger) []gblup.Option {
	return append(slices.Clip(r.fitOpts), gblup.WithLogger(logger))
}
