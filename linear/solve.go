// Package linear provides the regularized linear solves used by the
// mixed-model estimators.
package linear

import (
	"gonum.org/v1/gonum/mat"

	"github.com/emilybillow27-sudo/genopredict/pkg/errors"
)

// maxCondition is the Cholesky condition estimate above which the direct
// solution is not trusted.
const maxCondition = 1e14

// svdRcond is the relative singular value cutoff for the fallback.
const svdRcond = 1e-12

// SolveInfo describes how a system was solved.
type SolveInfo struct {
	// Fallback is true when the minimum-norm least-squares path was used.
	Fallback bool
	// Reason explains the fallback.
	Reason string
	// Rank is the numerical rank used by the fallback (n for a direct solve).
	Rank int
}

// SolveSPD solves a·x = b for a symmetric, nominally positive definite a.
//
// The direct path is a Cholesky factorization. When a is not positive
// definite or is too ill-conditioned, the minimum-norm least-squares
// solution from a thin SVD is returned instead, an
// errors.SingularMatrixWarning is emitted, and info.Fallback is set.
// a and b are not modified.
func SolveSPD(op string, a mat.Symmetric, b mat.Vector) (*mat.VecDense, SolveInfo, error) {
	n := a.SymmetricDim()
	if n == 0 {
		return nil, SolveInfo{}, errors.NewModelError(op, "empty system", errors.ErrEmptyData)
	}
	if b.Len() != n {
		return nil, SolveInfo{}, errors.NewDimensionError(op, n, b.Len(), 0)
	}

	var chol mat.Cholesky
	reason := "not positive definite"
	if chol.Factorize(a) {
		if cond := chol.Cond(); cond <= maxCondition {
			x := mat.NewVecDense(n, nil)
			if err := chol.SolveVecTo(x, b); err == nil {
				if err := errors.CheckMatrix(op, x, n, 1); err == nil {
					return x, SolveInfo{Rank: n}, nil
				}
				reason = "non-finite direct solution"
			} else {
				reason = err.Error()
			}
		} else {
			reason = "ill-conditioned"
		}
	}

	x, rank, err := minNormSolve(op, a, b)
	if err != nil {
		return nil, SolveInfo{}, err
	}
	errors.Warn(errors.NewSingularMatrixWarning(op, n, reason))
	return x, SolveInfo{Fallback: true, Reason: reason, Rank: rank}, nil
}

// minNormSolve returns the minimum-norm least-squares solution via SVD.
func minNormSolve(op string, a mat.Matrix, b mat.Vector) (*mat.VecDense, int, error) {
	_, n := a.Dims()
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return nil, 0, errors.NewModelError(op, "SVD did not converge", errors.ErrSingularMatrix)
	}
	x := mat.NewVecDense(n, nil)
	rank := svd.Rank(svdRcond)
	if rank == 0 {
		return x, 0, nil
	}
	svd.SolveVecTo(x, b, rank)
	if err := errors.CheckMatrix(op, x, n, 1); err != nil {
		return nil, rank, err
	}
	return x, rank, nil
}

// AddDiagonal returns a + λI as a new SymDense.
func AddDiagonal(a mat.Symmetric, lambda float64) *mat.SymDense {
	n := a.SymmetricDim()
	out := mat.NewSymDense(n, nil)
	out.CopySym(a)
	for i := 0; i < n; i++ {
		out.SetSym(i, i, out.At(i, i)+lambda)
	}
	return out
}
