// Package metrics scores predicted breeding values against observed trait
// values.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/emilybillow27-sudo/genopredict/pkg/errors"
)

func validate(op string, yTrue, yPred []float64) error {
	if len(yTrue) == 0 {
		return errors.NewValueError(op, "empty vector")
	}
	if len(yPred) != len(yTrue) {
		return errors.NewDimensionError(op, len(yTrue), len(yPred), 0)
	}
	return nil
}

// DropMissing は yTrue または yPred が NaN のペアを除いたコピーを返す
func DropMissing(yTrue, yPred []float64) (t, p []float64) {
	n := len(yTrue)
	if len(yPred) < n {
		n = len(yPred)
	}
	t = make([]float64, 0, n)
	p = make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(yTrue[i]) || math.IsNaN(yPred[i]) {
			continue
		}
		t = append(t, yTrue[i])
		p = append(p, yPred[i])
	}
	return t, p
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred []float64) (float64, error) {
	if err := validate("MSE", yTrue, yPred); err != nil {
		return 0, err
	}
	// MSE = (1/n) * Σ(yTrue - yPred)²
	d := floats.Distance(yTrue, yPred, 2)
	return d * d / float64(len(yTrue)), nil
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred []float64) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred []float64) (float64, error) {
	if err := validate("MAE", yTrue, yPred); err != nil {
		return 0, err
	}
	return floats.Distance(yTrue, yPred, 1) / float64(len(yTrue)), nil
}

// R2Score は決定係数（R²）を計算する
func R2Score(yTrue, yPred []float64) (float64, error) {
	if err := validate("R2Score", yTrue, yPred); err != nil {
		return 0, err
	}
	yMean := stat.Mean(yTrue, nil)

	// 全変動（TSS）と残差変動（RSS）を計算
	var tss, rss float64
	for i := range yTrue {
		tss += (yTrue[i] - yMean) * (yTrue[i] - yMean)
		rss += (yTrue[i] - yPred[i]) * (yTrue[i] - yPred[i])
	}

	// 全変動が0の場合（すべてのyTrueが同じ値）
	if tss == 0 {
		return 0, errors.Newf("R2Score: total sum of squares is zero (no variance in yTrue)")
	}
	return 1 - rss/tss, nil
}

// PearsonR は観測値と予測値の Pearson 相関係数を計算する
//
// 2 点未満、またはどちらかの分散がゼロの場合は NaN を返し、
// UndefinedMetricWarning を発行する（エラーにはしない）。
func PearsonR(yTrue, yPred []float64) (float64, error) {
	if len(yPred) != len(yTrue) {
		return 0, errors.NewDimensionError("PearsonR", len(yTrue), len(yPred), 0)
	}
	if len(yTrue) < 2 {
		errors.Warn(errors.NewUndefinedMetricWarning("pearson_r", "fewer than two pairs", math.NaN()))
		return math.NaN(), nil
	}
	if stat.Variance(yTrue, nil) == 0 || stat.Variance(yPred, nil) == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("pearson_r", "zero variance", math.NaN()))
		return math.NaN(), nil
	}
	return stat.Correlation(yTrue, yPred, nil), nil
}

// Scores bundles the accuracy metrics reported per evaluation pair.
type Scores struct {
	N        int
	PearsonR float64
	RMSE     float64
	MAE      float64
}

// Score drops missing pairs and computes Scores. With no complete pair every
// metric is NaN.
func Score(yTrue, yPred []float64) (Scores, error) {
	if len(yPred) != len(yTrue) {
		return Scores{}, errors.NewDimensionError("Score", len(yTrue), len(yPred), 0)
	}
	t, p := DropMissing(yTrue, yPred)
	s := Scores{N: len(t), PearsonR: math.NaN(), RMSE: math.NaN(), MAE: math.NaN()}
	if len(t) == 0 {
		return s, nil
	}
	var err error
	if s.PearsonR, err = PearsonR(t, p); err != nil {
		return s, err
	}
	if s.RMSE, err = RMSE(t, p); err != nil {
		return s, err
	}
	if s.MAE, err = MAE(t, p); err != nil {
		return s, err
	}
	return s, nil
}
