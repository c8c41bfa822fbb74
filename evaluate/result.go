package evaluate

import (
	"time"

	"github.com/emilybillow27-sudo/genopredict/cv"
	"github.com/emilybillow27-sudo/genopredict/gblup"
	"github.com/emilybillow27-sudo/genopredict/metrics"
)

// PairResult is the outcome of one focal environment × protocol pair.
// A failed pair carries only its identity, Duration and Err.
type PairResult struct {
	RunID    string
	Protocol cv.Protocol
	FocalEnv string

	Partition   *cv.Partition
	Predictions []gblup.Prediction
	Diagnostics gblup.Diagnostics
	// Scores compares Predictions with the focal observations. N is zero
	// when the focal environment had no rows.
	Scores metrics.Scores

	Duration time.Duration
	Err      error
}

// OK reports whether the pair completed.
func (p *PairResult) OK() bool { return p.Err == nil }

// Report collects every pair of one Run.
type Report struct {
	RunID    string
	Kind     gblup.Kind
	Started  time.Time
	Duration time.Duration
	Pairs    []PairResult
}

// Failed returns the pairs that did not complete.
func (r *Report) Failed() []PairResult {
	var out []PairResult
	for _, p := range r.Pairs {
		if !p.OK() {
			out = append(out, p)
		}
	}
	return out
}

// Pair returns the result for focalEnv under p.
func (r *Report) Pair(focalEnv string, p cv.Protocol) (PairResult, bool) {
	for _, pr := range r.Pairs {
		if pr.FocalEnv == focalEnv && pr.Protocol == p {
			return pr, true
		}
	}
	return PairResult{}, false
}

// CV1Row is one held-out observation with its prediction.
type CV1Row struct {
	AccessionID   string
	EnvironmentID string
	Observed      float64
	Predicted     float64
	Fold          int
}

// CV1Result is the outcome of a k-fold run.
type CV1Result struct {
	RunID string
	Kind  gblup.Kind
	K     int
	Seed  uint64

	// Rows are ordered by fold, then environment and accession.
	Rows []CV1Row
	// FoldPearson[i] is Pearson r within fold i; NaN when undefined or
	// when the fold failed.
	FoldPearson []float64
	// FoldErrors[i] is non-nil when fold i failed.
	FoldErrors []error
	// Pooled scores every row together.
	Pooled metrics.Scores

	Duration time.Duration
}

// Observed returns the observed values of every row.
func (c *CV1Result) Observed() []float64 {
	out := make([]float64, len(c.Rows))
	for i, row := range c.Rows {
		out[i] = row.Observed
	}
	return out
}

// Predicted returns the predicted values of every row.
func (c *CV1Result) Predicted() []float64 {
	out := make([]float64, len(c.Rows))
	for i, row := range c.Rows {
		out[i] = row.Predicted
	}
	return out
}
