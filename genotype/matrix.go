// Package genotype holds the accession × marker dosage matrix and the
// accession index shared by relationship construction, fitting and
// prediction.
package genotype

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/emilybillow27-sudo/genopredict/pkg/errors"
)

// Index maps an accession id to its row in the marker store. It is built
// once and shared read-only.
type Index struct {
	ids  []string
	rows map[string]int
}

// NewIndex builds an Index over ids. Duplicate or empty ids are rejected.
func NewIndex(ids []string) (*Index, error) {
	rows := make(map[string]int, len(ids))
	for i, id := range ids {
		if id == "" {
			return nil, errors.NewValidationError("accession_id", "must not be empty", i)
		}
		if prev, dup := rows[id]; dup {
			return nil, errors.NewValidationError("accession_id", "duplicate accession in marker index", []int{prev, i})
		}
		rows[id] = i
	}
	return &Index{ids: append([]string(nil), ids...), rows: rows}, nil
}

// Len returns the number of accessions.
func (x *Index) Len() int {
	if x == nil {
		return 0
	}
	return len(x.ids)
}

// Row returns the row for id.
func (x *Index) Row(id string) (int, bool) {
	if x == nil {
		return 0, false
	}
	r, ok := x.rows[id]
	return r, ok
}

// Contains reports whether id is genotyped.
func (x *Index) Contains(id string) bool {
	_, ok := x.Row(id)
	return ok
}

// ID returns the accession at row r.
func (x *Index) ID(r int) string {
	return x.ids[r]
}

// IDs returns a copy of the accession ids in row order.
func (x *Index) IDs() []string {
	if x == nil {
		return nil
	}
	return append([]string(nil), x.ids...)
}

// Split partitions ids into those present in the index (as rows) and those
// absent, preserving order.
func (x *Index) Split(ids []string) (rows []int, present, missing []string) {
	for _, id := range ids {
		if r, ok := x.Row(id); ok {
			rows = append(rows, r)
			present = append(present, id)
		} else {
			missing = append(missing, id)
		}
	}
	return rows, present, missing
}

// MarkerMatrix stores dosages for accessions (rows) × markers (columns).
// NaN marks a missing call.
type MarkerMatrix struct {
	index   *Index
	markers []string
	data    *mat.Dense
}

// NewMarkerMatrix wraps data (len(ids) × len(markers)). A zero-column matrix
// is allowed and yields a degenerate relationship downstream; data must be
// nil when either dimension is zero.
func NewMarkerMatrix(ids, markers []string, data *mat.Dense) (*MarkerMatrix, error) {
	index, err := NewIndex(ids)
	if err != nil {
		return nil, err
	}
	if data == nil {
		if len(markers) != 0 && len(ids) != 0 {
			return nil, errors.NewDimensionError("genotype.NewMarkerMatrix", len(markers), 0, 1)
		}
		return &MarkerMatrix{index: index, markers: append([]string(nil), markers...)}, nil
	}
	r, c := data.Dims()
	if r != len(ids) {
		return nil, errors.NewDimensionError("genotype.NewMarkerMatrix", len(ids), r, 0)
	}
	if c != len(markers) {
		return nil, errors.NewDimensionError("genotype.NewMarkerMatrix", len(markers), c, 1)
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if math.IsInf(data.At(i, j), 0) {
				return nil, errors.NewNumericalInstabilityError("genotype.NewMarkerMatrix", []float64{data.At(i, j)})
			}
		}
	}
	return &MarkerMatrix{index: index, markers: append([]string(nil), markers...), data: data}, nil
}

// Index returns the accession index.
func (m *MarkerMatrix) Index() *Index { return m.index }

// Markers returns a copy of the marker names.
func (m *MarkerMatrix) Markers() []string { return append([]string(nil), m.markers...) }

// Dims returns (accessions, markers).
func (m *MarkerMatrix) Dims() (int, int) {
	return m.index.Len(), len(m.markers)
}

// At returns the dosage for row i, marker j (NaN when missing).
func (m *MarkerMatrix) At(i, j int) float64 {
	return m.data.At(i, j)
}

// Column copies marker j into dst (allocated when nil) and returns it.
func (m *MarkerMatrix) Column(dst []float64, j int) []float64 {
	n := m.index.Len()
	if dst == nil {
		dst = make([]float64, n)
	}
	mat.Col(dst, j, m.data)
	return dst
}

// MissingRate returns the fraction of missing calls per marker.
func (m *MarkerMatrix) MissingRate() []float64 {
	n, p := m.Dims()
	rates := make([]float64, p)
	if n == 0 {
		return rates
	}
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		m.Column(col, j)
		missing := 0
		for _, v := range col {
			if math.IsNaN(v) {
				missing++
			}
		}
		rates[j] = float64(missing) / float64(n)
	}
	return rates
}

// Subset returns a new MarkerMatrix restricted to ids (in the given order).
// Unknown ids are reported with ErrUnknownAccession.
func (m *MarkerMatrix) Subset(ids []string) (*MarkerMatrix, error) {
	rows, _, missing := m.index.Split(ids)
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, errors.Wrapf(errors.ErrUnknownAccession, "genotype.Subset: %v", missing)
	}
	_, p := m.Dims()
	if p == 0 || len(rows) == 0 {
		return NewMarkerMatrix(ids, m.markers, nil)
	}
	out := mat.NewDense(len(rows), p, nil)
	for i, r := range rows {
		out.SetRow(i, m.data.RawRowView(r))
	}
	return NewMarkerMatrix(ids, m.markers, out)
}
