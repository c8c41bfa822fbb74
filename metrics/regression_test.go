package metrics

import (
	"math"
	"testing"

	"github.com/emilybillow27-sudo/genopredict/pkg/errors"
)

func TestMSE(t *testing.T) {
	tests := []struct {
		name      string
		yTrue     []float64
		yPred     []float64
		want      float64
		tolerance float64
		wantErr   bool
	}{
		{
			name:      "perfect prediction",
			yTrue:     []float64{1.0, 2.0, 3.0, 4.0, 5.0},
			yPred:     []float64{1.0, 2.0, 3.0, 4.0, 5.0},
			want:      0.0,
			tolerance: 1e-10,
		},
		{
			name:      "simple case",
			yTrue:     []float64{1.0, 2.0, 3.0, 4.0},
			yPred:     []float64{1.5, 2.5, 2.5, 3.5},
			want:      0.25,
			tolerance: 1e-10,
		},
		{
			name:      "larger errors",
			yTrue:     []float64{10.0, 20.0, 30.0},
			yPred:     []float64{12.0, 18.0, 33.0},
			want:      17.0 / 3.0,
			tolerance: 1e-10,
		},
		{
			name:    "dimension mismatch",
			yTrue:   []float64{1.0, 2.0, 3.0},
			yPred:   []float64{1.0, 2.0},
			wantErr: true,
		},
		{
			name:    "empty vectors",
			yTrue:   nil,
			yPred:   nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MSE(tt.yTrue, tt.yPred)
			if (err != nil) != tt.wantErr {
				t.Fatalf("MSE() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && math.Abs(got-tt.want) > tt.tolerance {
				t.Errorf("MSE() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRMSEAndMAE(t *testing.T) {
	yTrue := []float64{10.0, 20.0, 30.0}
	yPred := []float64{12.0, 18.0, 33.0}

	rmse, err := RMSE(yTrue, yPred)
	if err != nil {
		t.Fatal(err)
	}
	if want := math.Sqrt(17.0 / 3.0); math.Abs(rmse-want) > 1e-10 {
		t.Errorf("RMSE() = %v, want %v", rmse, want)
	}

	mae, err := MAE(yTrue, yPred)
	if err != nil {
		t.Fatal(err)
	}
	if want := 7.0 / 3.0; math.Abs(mae-want) > 1e-10 {
		t.Errorf("MAE() = %v, want %v", mae, want)
	}
}

func TestR2Score(t *testing.T) {
	got, err := R2Score([]float64{1, 2, 3, 4}, []float64{1, 2, 3, 4})
	if err != nil || got != 1 {
		t.Errorf("R2Score() = %v, %v; want 1", got, err)
	}
	if _, err := R2Score([]float64{2, 2}, []float64{1, 3}); err == nil {
		t.Error("expected error for constant yTrue")
	}
}

func TestPearsonR(t *testing.T) {
	var warned []error
	errors.SetZerologWarnFunc(func(w error) { warned = append(warned, w) })
	defer errors.SetZerologWarnFunc(nil)

	tests := []struct {
		name    string
		yTrue   []float64
		yPred   []float64
		want    float64
		wantNaN bool
	}{
		{"perfect positive", []float64{1, 2, 3, 4}, []float64{2, 4, 6, 8}, 1, false},
		{"perfect negative", []float64{1, 2, 3}, []float64{3, 2, 1}, -1, false},
		{"single pair", []float64{1}, []float64{1}, 0, true},
		{"constant prediction", []float64{1, 2, 3}, []float64{5, 5, 5}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PearsonR(tt.yTrue, tt.yPred)
			if err != nil {
				t.Fatal(err)
			}
			if tt.wantNaN {
				if !math.IsNaN(got) {
					t.Errorf("PearsonR() = %v, want NaN", got)
				}
				return
			}
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("PearsonR() = %v, want %v", got, tt.want)
			}
		})
	}
	if len(warned) != 2 {
		t.Errorf("expected 2 UndefinedMetricWarnings, got %d", len(warned))
	}
}

func TestScoreDropsMissing(t *testing.T) {
	nan := math.NaN()
	s, err := Score([]float64{1, 2, nan, 4, 5}, []float64{1, 2, 3, nan, 5})
	if err != nil {
		t.Fatal(err)
	}
	if s.N != 3 {
		t.Errorf("N = %d, want 3", s.N)
	}
	if math.Abs(s.PearsonR-1) > 1e-12 {
		t.Errorf("PearsonR = %v, want 1", s.PearsonR)
	}
	if s.RMSE != 0 {
		t.Errorf("RMSE = %v, want 0", s.RMSE)
	}

	empty, err := Score([]float64{nan}, []float64{1})
	if err != nil {
		t.Fatal(err)
	}
	if empty.N != 0 || !math.IsNaN(empty.PearsonR) || !math.IsNaN(empty.RMSE) {
		t.Errorf("expected all-NaN scores, got %+v", empty)
	}

	var dimErr *errors.DimensionError
	if _, err := Score([]float64{1}, nil); !errors.As(err, &dimErr) {
		t.Errorf("expected DimensionError, got %v", err)
	}
}
