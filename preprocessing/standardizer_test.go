package preprocessing

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/emilybillow27-sudo/genopredict/genotype"
	"github.com/emilybillow27-sudo/genopredict/pkg/errors"
)

func newMatrix(t *testing.T, rows, cols int, data []float64) *genotype.MarkerMatrix {
	t.Helper()
	ids := make([]string, rows)
	for i := range ids {
		ids[i] = string(rune('A' + i))
	}
	markers := make([]string, cols)
	for j := range markers {
		markers[j] = "m" + string(rune('0'+j))
	}
	m, err := genotype.NewMarkerMatrix(ids, markers, mat.NewDense(rows, cols, data))
	require.NoError(t, err)
	return m
}

func TestParseMethod(t *testing.T) {
	tests := []struct {
		in      string
		want    Method
		wantErr bool
	}{
		{"vanraden", MethodVanRaden, false},
		{"centered", MethodCentered, false},
		{"", MethodVanRaden, false},
		{"yang", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMethod(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestDosageStandardizerVanRaden(t *testing.T) {
	// m0 is monomorphic, m2 has a missing call.
	nan := math.NaN()
	m := newMatrix(t, 4, 3, []float64{
		1, 0, 2,
		1, 1, nan,
		1, 2, 0,
		1, 1, 1,
	})

	s := NewDosageStandardizer(MethodVanRaden, 0, 1)
	z, err := s.FitTransform(context.Background(), m)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, s.Retained)
	assert.Equal(t, []int{0}, s.Dropped)

	r, c := z.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 2, c)

	// m1: mean 1, p = 0.5, scale sqrt(0.5)
	scale := math.Sqrt(0.5)
	assert.InDelta(t, -1/scale, z.At(0, 0), 1e-12)
	assert.InDelta(t, 1/scale, z.At(2, 0), 1e-12)

	// the missing call is imputed with the column mean, so it centers to 0
	assert.InDelta(t, 0, z.At(1, 1), 1e-12)
	assert.InDelta(t, 1.0, s.Mean[2], 1e-12)
}

func TestDosageStandardizerCentered(t *testing.T) {
	m := newMatrix(t, 3, 2, []float64{
		0, 2,
		1, 2,
		2, 2,
	})
	s := NewDosageStandardizer(MethodCentered, 0, 1)
	z, err := s.FitTransform(context.Background(), m)
	require.NoError(t, err)

	assert.Equal(t, []int{0}, s.Retained)
	assert.InDeltaSlice(t, []float64{-1, 0, 1}, mat.Col(nil, 0, z), 1e-12)
}

func TestDosageStandardizerParallelMatchesSequential(t *testing.T) {
	const rows, cols = 6, 40
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = float64((i*7 + i/cols) % 3)
	}
	m := newMatrix(t, rows, cols, data)

	seq := NewDosageStandardizer(MethodVanRaden, cols+1, 1)
	zs, err := seq.FitTransform(context.Background(), m)
	require.NoError(t, err)

	par := NewDosageStandardizer(MethodVanRaden, 1, 4)
	zp, err := par.FitTransform(context.Background(), m)
	require.NoError(t, err)

	assert.Equal(t, seq.Retained, par.Retained)
	assert.True(t, mat.EqualApprox(zs, zp, 1e-12))
}

func TestDosageStandardizerAllDropped(t *testing.T) {
	m := newMatrix(t, 2, 2, []float64{1, 0, 1, 0})
	s := NewDosageStandardizer(MethodVanRaden, 0, 1)
	z, err := s.FitTransform(context.Background(), m)
	require.NoError(t, err)
	assert.Nil(t, z)
	assert.Empty(t, s.Retained)
	assert.Equal(t, []int{0, 1}, s.Dropped)
}

func TestDosageStandardizerErrors(t *testing.T) {
	s := NewDosageStandardizer(MethodVanRaden, 0, 1)
	m := newMatrix(t, 2, 2, []float64{0, 1, 2, 1})

	_, err := s.Transform(context.Background(), m)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	require.NoError(t, s.Fit(context.Background(), m))
	other := newMatrix(t, 2, 3, []float64{0, 1, 2, 1, 0, 1})
	_, err = s.Transform(context.Background(), other)
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))

	empty, err := genotype.NewMarkerMatrix(nil, nil, nil)
	require.NoError(t, err)
	err = s.Fit(context.Background(), empty)
	assert.True(t, errors.Is(err, errors.ErrEmptyData))
}
