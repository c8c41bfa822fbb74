// Package grm builds the genomic relationship matrix.
//
// G = Z·Zᵗ / m where Z is the standardized, mean-imputed dosage matrix
// restricted to the m polymorphic markers. When no marker survives the
// filter the Relationship is degenerate: it keeps the accession index but
// has no matrix, and estimators treat every genetic contribution as zero.
package grm

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/emilybillow27-sudo/genopredict/genotype"
	"github.com/emilybillow27-sudo/genopredict/pkg/errors"
	"github.com/emilybillow27-sudo/genopredict/pkg/log"
	"github.com/emilybillow27-sudo/genopredict/preprocessing"
)

const (
	defaultParallelThreshold = 4096
	symmetryTol              = 1e-8
)

// Builder constructs Relationship values.
type Builder struct {
	method            Method
	parallelThreshold int
	workers           int
	logger            log.Logger
}

// NewBuilder returns a Builder with VanRaden standardization.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		method:            VanRaden,
		parallelThreshold: defaultParallelThreshold,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = log.GetLoggerWithName("grm")
	}
	return b
}

// Build computes the relationship matrix over every accession in m.
// The input matrix is not modified.
func (b *Builder) Build(ctx context.Context, m *genotype.MarkerMatrix) (*Relationship, error) {
	start := time.Now()
	n, p := m.Dims()
	if n == 0 {
		return nil, errors.NewModelError("grm.Build", "no accessions", errors.ErrEmptyData)
	}

	rel := &Relationship{
		index:   m.Index(),
		markers: p,
		method:  b.method,
	}

	var z *mat.Dense
	if p > 0 {
		s := preprocessing.NewDosageStandardizer(b.method, b.parallelThreshold, b.workers)
		var err error
		z, err = s.FitTransform(ctx, m)
		if err != nil {
			return nil, errors.Wrap(err, "grm.Build")
		}
		rel.retained = len(s.Retained)
	}

	if rel.retained == 0 {
		errors.Warn(errors.NewDegenerateGRMWarning(n, p))
		b.logger.Warn("no informative markers; relationship matrix is empty",
			log.OperationKey, log.OperationBuildGRM,
			log.AccessionsKey, n,
			log.MarkersKey, p,
		)
		return rel, nil
	}

	var zzt mat.SymDense
	zzt.SymOuterK(1/float64(rel.retained), z)
	if err := errors.CheckMatrix("grm.Build", &zzt, n, n); err != nil {
		return nil, err
	}
	if err := errors.CheckSymmetric("grm.Build", &zzt, n, symmetryTol); err != nil {
		return nil, err
	}
	rel.g = &zzt

	lo, hi := rel.DiagonalRange()
	b.logger.Info("relationship matrix built",
		log.OperationKey, log.OperationBuildGRM,
		log.AccessionsKey, n,
		log.MarkersKey, p,
		log.RetainedMarkersKey, rel.retained,
		"diag.min", lo,
		"diag.max", hi,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return rel, nil
}

// Relationship is an n×n symmetric relationship matrix indexed by accession.
// It is read-only after construction and safe to share across goroutines.
type Relationship struct {
	index    *genotype.Index
	g        *mat.SymDense
	markers  int
	retained int
	method   Method
}

// NewRelationship wraps a precomputed symmetric matrix. g may be nil for a
// degenerate relationship.
func NewRelationship(index *genotype.Index, g *mat.SymDense) (*Relationship, error) {
	if g != nil && g.SymmetricDim() != index.Len() {
		return nil, errors.NewDimensionError("grm.NewRelationship", index.Len(), g.SymmetricDim(), 0)
	}
	rel := &Relationship{index: index, g: g}
	if g != nil {
		rel.retained = -1
	}
	return rel, nil
}

// Index returns the accession index.
func (r *Relationship) Index() *genotype.Index { return r.index }

// IDs returns the accession ids in row order.
func (r *Relationship) IDs() []string { return r.index.IDs() }

// Len returns the number of accessions.
func (r *Relationship) Len() int { return r.index.Len() }

// Empty reports a degenerate relationship (no informative markers).
func (r *Relationship) Empty() bool { return r.g == nil }

// Matrix returns the underlying matrix, nil when Empty.
func (r *Relationship) Matrix() mat.Symmetric {
	if r.g == nil {
		return nil
	}
	return r.g
}

// At returns G[i, j], zero when Empty.
func (r *Relationship) At(i, j int) float64 {
	if r.g == nil {
		return 0
	}
	return r.g.At(i, j)
}

// RetainedMarkers returns the number of polymorphic markers used, or -1 for
// a matrix supplied through NewRelationship.
func (r *Relationship) RetainedMarkers() int { return r.retained }

// DroppedMarkers returns the number of markers removed as monomorphic or
// unobserved.
func (r *Relationship) DroppedMarkers() int {
	if r.retained < 0 {
		return 0
	}
	return r.markers - r.retained
}

// Method returns the standardization used.
func (r *Relationship) Method() Method { return r.method }

// Diagonal returns a copy of diag(G); nil when Empty.
func (r *Relationship) Diagonal() []float64 {
	if r.g == nil {
		return nil
	}
	n := r.g.SymmetricDim()
	d := make([]float64, n)
	for i := range d {
		d[i] = r.g.At(i, i)
	}
	return d
}

// DiagonalRange returns min and max of diag(G); NaN for an empty matrix.
func (r *Relationship) DiagonalRange() (lo, hi float64) {
	d := r.Diagonal()
	if len(d) == 0 {
		return math.NaN(), math.NaN()
	}
	lo, hi = d[0], d[0]
	for _, v := range d[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// Submatrix returns G[rows, cols] as a new dense matrix; a zero matrix when
// Empty. rows and cols must be non-empty.
func (r *Relationship) Submatrix(rows, cols []int) *mat.Dense {
	out := mat.NewDense(len(rows), len(cols), nil)
	if r.g == nil {
		return out
	}
	for a, i := range rows {
		for b, j := range cols {
			out.Set(a, b, r.g.At(i, j))
		}
	}
	return out
}

// Trace returns the trace of G[rows, rows].
func (r *Relationship) Trace(rows []int) float64 {
	if r.g == nil {
		return 0
	}
	var t float64
	for _, i := range rows {
		t += r.g.At(i, i)
	}
	return t
}

// Principal returns G[rows, rows] as a new symmetric matrix; nil when Empty.
// rows may repeat, in which case the result is singular.
func (r *Relationship) Principal(rows []int) *mat.SymDense {
	if r.g == nil || len(rows) == 0 {
		return nil
	}
	out := mat.NewSymDense(len(rows), nil)
	for a, i := range rows {
		for b := a; b < len(rows); b++ {
			out.SetSym(a, b, r.g.At(i, rows[b]))
		}
	}
	return out
}
