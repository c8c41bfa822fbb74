package linear

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/emilybillow27-sudo/genopredict/pkg/errors"
)

func captureWarnings(t *testing.T) *[]error {
	t.Helper()
	var got []error
	errors.SetZerologWarnFunc(func(w error) { got = append(got, w) })
	t.Cleanup(func() { errors.SetZerologWarnFunc(nil) })
	return &got
}

func TestSolveSPDDirect(t *testing.T) {
	warnings := captureWarnings(t)

	a := mat.NewSymDense(2, []float64{
		4, 1,
		1, 3,
	})
	b := mat.NewVecDense(2, []float64{1, 2})

	x, info, err := SolveSPD("test", a, b)
	require.NoError(t, err)
	assert.False(t, info.Fallback)
	assert.Equal(t, 2, info.Rank)

	var check mat.VecDense
	check.MulVec(a, x)
	assert.InDelta(t, 1.0, check.AtVec(0), 1e-12)
	assert.InDelta(t, 2.0, check.AtVec(1), 1e-12)
	assert.Empty(t, *warnings)
}

func TestSolveSPDFallbackMinimumNorm(t *testing.T) {
	warnings := captureWarnings(t)

	// Rank one: [1 1; 1 1]. The minimum-norm solution of x1 + x2 = 2 is (1, 1).
	a := mat.NewSymDense(2, []float64{
		1, 1,
		1, 1,
	})
	b := mat.NewVecDense(2, []float64{2, 2})

	x, info, err := SolveSPD("singular", a, b)
	require.NoError(t, err)
	assert.True(t, info.Fallback)
	assert.Equal(t, 1, info.Rank)
	assert.InDelta(t, 1.0, x.AtVec(0), 1e-10)
	assert.InDelta(t, 1.0, x.AtVec(1), 1e-10)

	require.Len(t, *warnings, 1)
	var w *errors.SingularMatrixWarning
	require.True(t, errors.As((*warnings)[0], &w))
	assert.Equal(t, "singular", w.Operation)
}

func TestSolveSPDZeroMatrix(t *testing.T) {
	captureWarnings(t)
	x, info, err := SolveSPD("zero", mat.NewSymDense(3, nil), mat.NewVecDense(3, []float64{1, 2, 3}))
	require.NoError(t, err)
	assert.True(t, info.Fallback)
	assert.Equal(t, 0, info.Rank)
	assert.Equal(t, []float64{0, 0, 0}, mat.Col(nil, 0, x))
}

func TestSolveSPDErrors(t *testing.T) {
	_, _, err := SolveSPD("dims", mat.NewSymDense(2, []float64{1, 0, 0, 1}), mat.NewVecDense(3, nil))
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))
}

func TestAddDiagonalDoesNotMutate(t *testing.T) {
	a := mat.NewSymDense(2, []float64{1, 0.5, 0.5, 1})
	out := AddDiagonal(a, 0.25)
	assert.Equal(t, 1.25, out.At(0, 0))
	assert.Equal(t, 0.5, out.At(0, 1))
	assert.Equal(t, 1.0, a.At(0, 0))
}

func TestRidgeRegression(t *testing.T) {
	tests := []struct {
		name string
		X    *mat.Dense
		y    []float64
		want []float64
	}{
		{
			name: "intercept and one slope",
			X:    mat.NewDense(4, 2, []float64{1, 0, 1, 1, 1, 2, 1, 3}),
			y:    []float64{1, 3, 5, 7},
			want: []float64{1, 2},
		},
		{
			name: "one-hot environments",
			X:    mat.NewDense(4, 2, []float64{1, 0, 1, 0, 1, 1, 1, 1}),
			y:    []float64{2, 4, 10, 12},
			want: []float64{3, 8},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRidgeRegression(WithRidge(1e-10))
			require.NoError(t, r.Fit(tt.X, mat.NewVecDense(len(tt.y), tt.y)))
			assert.InDeltaSlice(t, tt.want, r.Coefficients(), 1e-6)
			assert.False(t, r.Info.Fallback)

			res, err := r.Residuals(tt.X, mat.NewVecDense(len(tt.y), tt.y))
			require.NoError(t, err)
			assert.InDelta(t, 0, mat.Sum(res), 1e-6)
		})
	}
}

func TestRidgeRegressionErrors(t *testing.T) {
	r := NewRidgeRegression()
	_, err := r.Predict(mat.NewDense(1, 1, []float64{1}))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	err = r.Fit(mat.NewDense(2, 1, []float64{1, 1}), mat.NewVecDense(3, nil))
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))
}

func TestRidgeRegressionCollinearDesign(t *testing.T) {
	captureWarnings(t)
	// Duplicate columns; ε keeps the system positive definite.
	X := mat.NewDense(3, 2, []float64{1, 1, 1, 1, 1, 1})
	r := NewRidgeRegression(WithRidge(1e-6))
	require.NoError(t, r.Fit(X, mat.NewVecDense(3, []float64{2, 2, 2})))
	c := r.Coefficients()
	assert.InDelta(t, c[0], c[1], 1e-9)
	assert.InDelta(t, 2.0, c[0]+c[1], 1e-4)
}
