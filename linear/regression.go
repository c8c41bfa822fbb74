package linear

import (
	"gonum.org/v1/gonum/mat"

	"github.com/emilybillow27-sudo/genopredict/core/model"
	"github.com/emilybillow27-sudo/genopredict/pkg/errors"
)

// RidgeRegression は正則化付き正規方程式による線形回帰
//
// β = (XᵗX + εI)⁻¹ Xᵗy。X には切片列を含める（自動では追加しない）。
type RidgeRegression struct {
	state *model.StateManager

	// Coef は回帰係数
	Coef *mat.VecDense

	// Info は求解の経路
	Info SolveInfo

	ridge float64
	op    string
}

// NewRidgeRegression は新しいRidgeRegressionを作成する
func NewRidgeRegression(opts ...Option) *RidgeRegression {
	r := &RidgeRegression{
		state: model.NewStateManager(),
		ridge: 1e-6,
		op:    "RidgeRegression.Fit",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Fit は正規方程式を解いて係数を求める
func (r *RidgeRegression) Fit(X mat.Matrix, y mat.Vector) error {
	n, p := X.Dims()
	if n == 0 || p == 0 {
		return errors.NewModelError(r.op, "empty data", errors.ErrEmptyData)
	}
	if y.Len() != n {
		return errors.NewDimensionError(r.op, n, y.Len(), 0)
	}

	var xtx mat.SymDense
	xtx.SymOuterK(1, X.T())
	for i := 0; i < p; i++ {
		xtx.SetSym(i, i, xtx.At(i, i)+r.ridge)
	}

	xty := mat.NewVecDense(p, nil)
	xty.MulVec(X.T(), y)

	coef, info, err := SolveSPD(r.op, &xtx, xty)
	if err != nil {
		return err
	}
	r.Coef = coef
	r.Info = info
	r.state.SetFitted(p, n)
	return nil
}

// Predict は X·β を返す
func (r *RidgeRegression) Predict(X mat.Matrix) (*mat.VecDense, error) {
	if err := r.state.RequireFitted("RidgeRegression", "Predict"); err != nil {
		return nil, err
	}
	n, p := X.Dims()
	if p != r.Coef.Len() {
		return nil, errors.NewDimensionError("RidgeRegression.Predict", r.Coef.Len(), p, 1)
	}
	out := mat.NewVecDense(n, nil)
	out.MulVec(X, r.Coef)
	return out, nil
}

// Residuals は y − X·β を返す
func (r *RidgeRegression) Residuals(X mat.Matrix, y mat.Vector) (*mat.VecDense, error) {
	fitted, err := r.Predict(X)
	if err != nil {
		return nil, err
	}
	if y.Len() != fitted.Len() {
		return nil, errors.NewDimensionError("RidgeRegression.Residuals", fitted.Len(), y.Len(), 0)
	}
	res := mat.NewVecDense(y.Len(), nil)
	res.SubVec(y, fitted)
	return res, nil
}

// Coefficients は係数のコピーを返す
func (r *RidgeRegression) Coefficients() []float64 {
	if r.Coef == nil {
		return nil
	}
	return mat.Col(nil, 0, r.Coef)
}
