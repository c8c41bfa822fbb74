package grm

import (
	"github.com/emilybillow27-sudo/genopredict/pkg/log"
	"github.com/emilybillow27-sudo/genopredict/preprocessing"
)

// Method selects the marker standardization.
type Method = preprocessing.Method

const (
	// VanRaden standardizes each marker by 2p and sqrt(2p(1-p)).
	VanRaden = preprocessing.MethodVanRaden
	// Centered subtracts the column mean only.
	Centered = preprocessing.MethodCentered
)

// Option configures a Builder.
type Option func(*Builder)

// WithMethod sets the standardization method.
func WithMethod(method Method) Option {
	return func(b *Builder) {
		b.method = method
	}
}

// WithParallelThreshold sets the marker count above which standardization
// runs column-parallel, and the number of workers (0 = CPU count).
func WithParallelThreshold(threshold, workers int) Option {
	return func(b *Builder) {
		b.parallelThreshold = threshold
		b.workers = workers
	}
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}
