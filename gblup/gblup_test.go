package gblup

import (
	"bytes"
	"math"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/emilybillow27-sudo/genopredict/genotype"
	"github.com/emilybillow27-sudo/genopredict/grm"
	"github.com/emilybillow27-sudo/genopredict/pkg/errors"
	"github.com/emilybillow27-sudo/genopredict/pkg/log"
	"github.com/emilybillow27-sudo/genopredict/phenotype"
)

func newRel(t *testing.T, ids []string, g []float64) *grm.Relationship {
	t.Helper()
	idx, err := genotype.NewIndex(ids)
	require.NoError(t, err)
	var sym *mat.SymDense
	if g != nil {
		sym = mat.NewSymDense(len(ids), g)
	}
	rel, err := grm.NewRelationship(idx, sym)
	require.NoError(t, err)
	return rel
}

func identity(n int) []float64 {
	g := make([]float64, n*n)
	for i := 0; i < n; i++ {
		g[i*n+i] = 1
	}
	return g
}

func quiet() Option { return WithLogger(log.NewTestLogger(log.LevelError)) }

func byID(preds []Prediction) map[string]Prediction {
	out := make(map[string]Prediction, len(preds))
	for _, p := range preds {
		out[p.AccessionID] = p
	}
	return out
}

// twoEnvTrain: env1 mean 2, env2 mean 12, residuals ±1.
func twoEnvTrain() []phenotype.Observation {
	return []phenotype.Observation{
		{AccessionID: "A", EnvironmentID: "env1", Value: 1},
		{AccessionID: "B", EnvironmentID: "env1", Value: 3},
		{AccessionID: "A", EnvironmentID: "env2", Value: 11},
		{AccessionID: "C", EnvironmentID: "env2", Value: 13},
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"gblup", KindBaseline},
		{"Baseline", KindBaseline},
		{"me_gblup", KindMultiEnv},
		{"ME-GBLUP", KindMultiEnv},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
	_, err := ParseKind("lasso")
	assert.True(t, errors.Is(err, errors.ErrUnknownModelKind))
}

func TestFitValidation(t *testing.T) {
	rel := newRel(t, []string{"A", "B", "C"}, identity(3))
	tests := []struct {
		name string
		kind Kind
		opts []Option
	}{
		{"heritability zero", KindMultiEnv, []Option{WithHeritability(0)}},
		{"heritability one", KindMultiEnv, []Option{WithHeritability(1)}},
		{"negative ridge", KindBaseline, []Option{WithRidgeFactor(-1)}},
		{"negative fixed ridge", KindMultiEnv, []Option{WithFixedEffectRidge(-1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Fit(tt.kind, rel, twoEnvTrain(), append(tt.opts, quiet())...)
			var vErr *errors.ValidationError
			assert.True(t, errors.As(err, &vErr), "got %v", err)
		})
	}

	_, err := Fit("lasso", rel, twoEnvTrain(), quiet())
	assert.True(t, errors.Is(err, errors.ErrUnknownModelKind))
	var vErr *errors.ValidationError
	assert.True(t, errors.As(err, &vErr))

	_, err = Fit(KindBaseline, nil, twoEnvTrain(), quiet())
	assert.True(t, errors.As(err, &vErr))
}

func TestFitEmptyTraining(t *testing.T) {
	rel := newRel(t, []string{"A", "B"}, identity(2))
	for _, kind := range []Kind{KindBaseline, KindMultiEnv} {
		_, err := Fit(kind, rel, nil, quiet())
		assert.True(t, errors.Is(err, errors.ErrEmptyData), string(kind))
	}

	// only ungenotyped rows: baseline has nothing to solve
	_, err := Fit(KindBaseline, rel, []phenotype.Observation{{AccessionID: "Z", EnvironmentID: "e", Value: 1}}, quiet())
	assert.True(t, errors.Is(err, errors.ErrEmptyData))
}

func TestBaselineShrinkageLimit(t *testing.T) {
	rel := newRel(t, []string{"A", "B", "C"}, []float64{
		1.0, 0.5, 0.0,
		0.5, 1.0, 0.2,
		0.0, 0.2, 1.0,
	})
	train := []phenotype.Observation{
		{AccessionID: "A", EnvironmentID: "env1", Value: 1},
		{AccessionID: "A", EnvironmentID: "env2", Value: 3},
		{AccessionID: "B", EnvironmentID: "env1", Value: 4},
		{AccessionID: "C", EnvironmentID: "env1", Value: 6},
		{AccessionID: "Z", EnvironmentID: "env1", Value: 100},
	}
	before := slices.Clone(train)

	m, err := Fit(KindBaseline, rel, train, WithRidgeFactor(1e-10), quiet())
	require.NoError(t, err)
	assert.Equal(t, before, train)

	base := m.(*BaselineModel)
	assert.InDelta(t, 4.0, base.Intercept, 1e-12)
	d := m.Diagnostics()
	assert.Equal(t, 1, d.UngenotypedObservations)
	assert.Equal(t, 3, d.TrainAccessions)
	assert.False(t, d.Fallback)
	assert.InDelta(t, 1e-10, d.Lambda, 1e-20)

	preds, err := Predict(m, rel, "env3", []string{"A", "B", "C"})
	require.NoError(t, err)
	want := []float64{2, 4, 6}
	for i, p := range preds {
		assert.Equal(t, "env3", p.EnvironmentID)
		assert.False(t, p.Missing)
		assert.InDelta(t, want[i], p.Value, 1e-6, p.AccessionID)
	}

	u := m.BreedingValues()
	assert.InDelta(t, -2.0, u["A"], 1e-6)
	assert.InDelta(t, 2.0, u["C"], 1e-6)
}

func TestBaselineDefaultRidgeShrinks(t *testing.T) {
	rel := newRel(t, []string{"A", "B"}, identity(2))
	train := []phenotype.Observation{
		{AccessionID: "A", EnvironmentID: "e", Value: 0},
		{AccessionID: "B", EnvironmentID: "e", Value: 2},
	}
	m, err := Fit(KindBaseline, rel, train, quiet())
	require.NoError(t, err)

	// λ = 1e-5·trace(I₂)/2 and u = y_c/(1+λ)
	lambda := DefaultRidgeFactor
	assert.InDelta(t, lambda, m.Diagnostics().Lambda, 1e-15)
	assert.InDelta(t, 1/(1+lambda), m.BreedingValues()["B"], 1e-12)
}

func TestMultiEnvFit(t *testing.T) {
	rel := newRel(t, []string{"A", "B", "C"}, identity(3))
	m, err := Fit(KindMultiEnv, rel, twoEnvTrain(), quiet())
	require.NoError(t, err)
	me := m.(*MultiEnvModel)

	assert.Equal(t, []string{"env1", "env2"}, me.EnvLevels)
	require.Len(t, me.Beta, 2)
	assert.InDelta(t, 2.0, me.Beta[0], 1e-4)
	assert.InDelta(t, 10.0, me.Beta[1], 1e-4)
	assert.InDelta(t, 7.0/3.0, m.Diagnostics().Lambda, 1e-12)

	// λ = 7/3: u_A = -2/(2+λ), u_B = u_C = 1/(1+λ)
	u := m.BreedingValues()
	assert.InDelta(t, -6.0/13.0, u["A"], 1e-4)
	assert.InDelta(t, 0.3, u["B"], 1e-4)
	assert.InDelta(t, 0.3, u["C"], 1e-4)

	tests := []struct {
		env   string
		fixed float64
	}{
		{"env1", 2},
		{"env2", 12},
		{"unseen", 2},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			preds, err := Predict(m, rel, tt.env, []string{"A", "B", "C", "Z"})
			require.NoError(t, err)
			got := byID(preds)
			assert.InDelta(t, tt.fixed-6.0/13.0, got["A"].Value, 1e-4)
			assert.InDelta(t, tt.fixed+0.3, got["B"].Value, 1e-4)
			assert.True(t, got["Z"].Missing)
			assert.True(t, math.IsNaN(got["Z"].Value))
		})
	}
}

func TestMultiEnvHeritabilityLimit(t *testing.T) {
	rel := newRel(t, []string{"A", "B", "C"}, identity(3))
	m, err := Fit(KindMultiEnv, rel, twoEnvTrain(), WithHeritability(1-1e-9), quiet())
	require.NoError(t, err)

	preds, err := Predict(m, rel, "env2", []string{"A", "C"})
	require.NoError(t, err)
	// A's two residuals are both -1; C's is +1
	assert.InDelta(t, 11.0, preds[0].Value, 1e-3)
	assert.InDelta(t, 13.0, preds[1].Value, 1e-3)
}

func TestUngenotypedPolicy(t *testing.T) {
	rel := newRel(t, []string{"A", "B", "C"}, identity(3))
	train := append(twoEnvTrain(), phenotype.Observation{AccessionID: "Z", EnvironmentID: "env2", Value: 12})

	m, err := Fit(KindMultiEnv, rel, train, WithUngenotypedPolicy(UngenotypedFixedEffect), quiet())
	require.NoError(t, err)
	assert.Equal(t, 1, m.Diagnostics().UngenotypedObservations)
	_, seen := m.BreedingValues()["Z"]
	assert.False(t, seen)

	preds, err := Predict(m, rel, "env2", []string{"Z", "Y"})
	require.NoError(t, err)
	me := m.(*MultiEnvModel)
	for _, p := range preds {
		assert.False(t, p.Missing)
		assert.Equal(t, me.Fixed("env2"), p.Value)
	}
}

func TestDegenerateRelationship(t *testing.T) {
	rel := newRel(t, []string{"A", "B", "C"}, nil)
	require.True(t, rel.Empty())

	base, err := Fit(KindBaseline, rel, twoEnvTrain(), quiet())
	require.NoError(t, err)
	assert.True(t, base.Diagnostics().Degenerate)
	preds, err := Predict(base, rel, "env1", []string{"A", "C", "Z"})
	require.NoError(t, err)
	// per-accession means: A 6, B 3, C 13
	assert.InDelta(t, 22.0/3.0, preds[0].Value, 1e-12)
	assert.InDelta(t, 22.0/3.0, preds[1].Value, 1e-12)
	assert.True(t, preds[2].Missing)

	me, err := Fit(KindMultiEnv, rel, twoEnvTrain(), quiet())
	require.NoError(t, err)
	preds, err = Predict(me, rel, "env2", []string{"A", "B"})
	require.NoError(t, err)
	for _, p := range preds {
		assert.InDelta(t, 12.0, p.Value, 1e-4)
	}
}

func TestSingularSystemFallsBack(t *testing.T) {
	var warned []error
	errors.SetZerologWarnFunc(func(w error) { warned = append(warned, w) })
	defer errors.SetZerologWarnFunc(nil)

	rel := newRel(t, []string{"A", "B"}, []float64{1, 1, 1, 1})
	train := []phenotype.Observation{
		{AccessionID: "A", EnvironmentID: "e", Value: 1},
		{AccessionID: "B", EnvironmentID: "e", Value: 3},
	}
	logger := log.NewTestLogger(log.LevelDebug)
	m, err := Fit(KindBaseline, rel, train, WithRidgeFactor(0), WithLogger(logger))
	require.NoError(t, err)

	d := m.Diagnostics()
	assert.True(t, d.Fallback)
	assert.Equal(t, 1, d.Rank)
	assert.NotEmpty(t, d.FallbackReason)
	require.Len(t, warned, 1)
	var sw *errors.SingularMatrixWarning
	assert.True(t, errors.As(warned[0], &sw))
	assert.Len(t, logger.EntriesAt(log.LevelWarn), 1)

	preds, err := Predict(m, rel, "e", []string{"A", "B"})
	require.NoError(t, err)
	for _, p := range preds {
		assert.False(t, math.IsNaN(p.Value))
		assert.InDelta(t, 2.0, p.Value, 1e-9)
	}
}

func TestPredictErrors(t *testing.T) {
	rel := newRel(t, []string{"A", "B", "C"}, identity(3))

	_, err := Predict(nil, rel, "e", []string{"A"})
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	_, err = Predict(&BaselineModel{}, rel, "e", []string{"A"})
	assert.True(t, errors.As(err, &nf))

	m, err := Fit(KindMultiEnv, rel, twoEnvTrain(), quiet())
	require.NoError(t, err)
	smaller := newRel(t, []string{"A", "B"}, identity(2))
	_, err = Predict(m, smaller, "env1", []string{"A"})
	assert.True(t, errors.Is(err, errors.ErrUnknownAccession))
}

func TestSaveLoad(t *testing.T) {
	rel := newRel(t, []string{"A", "B", "C"}, identity(3))
	for _, kind := range []Kind{KindBaseline, KindMultiEnv} {
		t.Run(string(kind), func(t *testing.T) {
			m, err := Fit(kind, rel, twoEnvTrain(), quiet())
			require.NoError(t, err)

			var buf bytes.Buffer
			require.NoError(t, Save(&buf, m))
			loaded, err := Load(&buf)
			require.NoError(t, err)
			assert.Equal(t, kind, loaded.Kind())
			assert.True(t, loaded.IsFitted())
			assert.Equal(t, m.Diagnostics(), loaded.Diagnostics())

			ids := []string{"A", "B", "C", "Z"}
			want, err := Predict(m, rel, "env2", ids)
			require.NoError(t, err)
			got, err := Predict(loaded, rel, "env2", ids)
			require.NoError(t, err)
			for i := range want {
				assert.Equal(t, want[i].Missing, got[i].Missing)
				if !want[i].Missing {
					assert.Equal(t, want[i].Value, got[i].Value)
				}
			}

			path := filepath.Join(t.TempDir(), "model.gob")
			require.NoError(t, SaveFile(m, path))
			fromFile, err := LoadFile(path)
			require.NoError(t, err)
			assert.Equal(t, m.BreedingValues(), fromFile.BreedingValues())
		})
	}

	var buf bytes.Buffer
	var nf *errors.NotFittedError
	assert.True(t, errors.As(Save(&buf, &MultiEnvModel{}), &nf))
}

func TestExportWeights(t *testing.T) {
	rel := newRel(t, []string{"A", "B", "C"}, identity(3))
	m, err := Fit(KindMultiEnv, rel, twoEnvTrain(), quiet())
	require.NoError(t, err)

	w, err := ExportWeights(m)
	require.NoError(t, err)
	assert.Equal(t, "me_gblup", w.ModelType)
	assert.InDelta(t, 2.0, w.Intercept, 1e-4)
	assert.InDelta(t, 10.0, w.FixedEffects["env2"], 1e-4)
	assert.Equal(t, "env1", w.Metadata["reference_environment"])
	assert.Equal(t, DefaultHeritability, w.Hyperparameters["heritability"])
	assert.Len(t, w.BreedingValues, 3)

	data, err := w.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"breeding_values"`)
}
