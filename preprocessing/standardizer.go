package preprocessing

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/emilybillow27-sudo/genopredict/core/model"
	"github.com/emilybillow27-sudo/genopredict/core/parallel"
	"github.com/emilybillow27-sudo/genopredict/genotype"
	"github.com/emilybillow27-sudo/genopredict/pkg/errors"
)

// Method は標準化の方式
type Method string

const (
	// MethodVanRaden scales each marker by sqrt(2p(1-p)).
	MethodVanRaden Method = "vanraden"
	// MethodCentered subtracts the column mean only.
	MethodCentered Method = "centered"
)

// ParseMethod validates a configured method name.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case MethodVanRaden, MethodCentered:
		return Method(s), nil
	case "":
		return MethodVanRaden, nil
	default:
		return "", errors.NewValidationError("grm.method", "must be vanraden or centered", s)
	}
}

// DosageStandardizer はマーカー列ごとの平均・アレル頻度を学習し、
// 欠測を列平均で補完したうえで標準化する
//
// 単型（分散ゼロ）の列と観測値のない列は除外される。
type DosageStandardizer struct {
	state *model.StateManager

	// Method は標準化の方式
	Method Method

	// Mean は各マーカーの非欠測平均
	Mean []float64

	// AlleleFreq は p_j = Mean_j / 2
	AlleleFreq []float64

	// Scale は各マーカーの除数（centered では 1）
	Scale []float64

	// Retained は残ったマーカー列の添字（昇順）
	Retained []int

	// Dropped は除外されたマーカー列の添字（昇順）
	Dropped []int

	// NMarkers は学習時の列数
	NMarkers int

	parallelThreshold int
	workers           int
}

// NewDosageStandardizer は新しいDosageStandardizerを作成する
//
// パラメータ:
//   - method: MethodVanRaden または MethodCentered
//   - parallelThreshold: この列数を超えると列単位で並列化する
//   - workers: 並列数（0 は CPU 数）
//
// 使用例:
//
//	s := preprocessing.NewDosageStandardizer(preprocessing.MethodVanRaden, 2048, 0)
//	Z, err := s.FitTransform(ctx, markers)
func NewDosageStandardizer(method Method, parallelThreshold, workers int) *DosageStandardizer {
	if method == "" {
		method = MethodVanRaden
	}
	return &DosageStandardizer{
		state:             model.NewStateManager(),
		Method:            method,
		parallelThreshold: parallelThreshold,
		workers:           workers,
	}
}

// Fit は各マーカー列の統計量を計算し、除外する列を決める
func (s *DosageStandardizer) Fit(ctx context.Context, m *genotype.MarkerMatrix) error {
	n, p := m.Dims()
	if n == 0 {
		return errors.NewModelError("DosageStandardizer.Fit", "no accessions", errors.ErrEmptyData)
	}
	if s.Method != MethodVanRaden && s.Method != MethodCentered {
		return errors.NewValidationError("method", "must be vanraden or centered", s.Method)
	}

	s.NMarkers = p
	s.Mean = make([]float64, p)
	s.AlleleFreq = make([]float64, p)
	s.Scale = make([]float64, p)
	keep := make([]bool, p)

	err := parallel.ParallelizeWithThreshold(ctx, p, s.parallelThreshold, s.workers, func(ctx context.Context, start, end int) error {
		col := make([]float64, n)
		observed := make([]float64, 0, n)
		for j := start; j < end; j++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			m.Column(col, j)
			observed = observed[:0]
			for _, v := range col {
				if !math.IsNaN(v) {
					observed = append(observed, v)
				}
			}
			if len(observed) < 2 {
				continue
			}
			mean, variance := stat.MeanVariance(observed, nil)
			s.Mean[j] = mean
			s.AlleleFreq[j] = mean / 2
			if variance <= 1e-12 {
				continue
			}
			switch s.Method {
			case MethodVanRaden:
				pj := s.AlleleFreq[j]
				denom := 2 * pj * (1 - pj)
				if denom <= 0 {
					continue
				}
				s.Scale[j] = math.Sqrt(denom)
			default:
				s.Scale[j] = 1
			}
			keep[j] = true
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.Retained = s.Retained[:0]
	s.Dropped = s.Dropped[:0]
	for j, k := range keep {
		if k {
			s.Retained = append(s.Retained, j)
		} else {
			s.Dropped = append(s.Dropped, j)
		}
	}
	s.state.SetFitted(n, p)
	return nil
}

// Transform は保持した列のみを標準化した行列 Z を返す
//
// 戻り値:
//   - *mat.Dense: n × len(Retained) の行列。保持列がない場合は nil
//   - error: エラーが発生した場合
func (s *DosageStandardizer) Transform(ctx context.Context, m *genotype.MarkerMatrix) (*mat.Dense, error) {
	if err := s.state.RequireFitted("DosageStandardizer", "Transform"); err != nil {
		return nil, err
	}
	n, p := m.Dims()
	if p != s.NMarkers {
		return nil, errors.NewDimensionError("DosageStandardizer.Transform", s.NMarkers, p, 1)
	}
	if n == 0 || len(s.Retained) == 0 {
		return nil, nil
	}

	z := mat.NewDense(n, len(s.Retained), nil)
	err := parallel.ParallelizeWithThreshold(ctx, len(s.Retained), s.parallelThreshold, s.workers, func(ctx context.Context, start, end int) error {
		col := make([]float64, n)
		for k := start; k < end; k++ {
			j := s.Retained[k]
			m.Column(col, j)
			for i, v := range col {
				if math.IsNaN(v) {
					v = s.Mean[j]
				}
				z.Set(i, k, (v-s.Mean[j])/s.Scale[j])
			}
		}
		return ctx.Err()
	})
	if err != nil {
		return nil, err
	}
	return z, nil
}

// FitTransform はFitとTransformを同時に実行する
func (s *DosageStandardizer) FitTransform(ctx context.Context, m *genotype.MarkerMatrix) (*mat.Dense, error) {
	if err := s.Fit(ctx, m); err != nil {
		return nil, err
	}
	return s.Transform(ctx, m)
}

// IsFitted reports whether Fit has completed.
func (s *DosageStandardizer) IsFitted() bool {
	return s.state.IsFitted()
}
