package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emilybillow27-sudo/genopredict/cv"
	"github.com/emilybillow27-sudo/genopredict/gblup"
	"github.com/emilybillow27-sudo/genopredict/grm"
	"github.com/emilybillow27-sudo/genopredict/pkg/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "genopredict.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	method, err := cfg.GRMMethod()
	require.NoError(t, err)
	assert.Equal(t, grm.VanRaden, method)

	kind, err := cfg.ModelKind()
	require.NoError(t, err)
	assert.Equal(t, gblup.KindMultiEnv, kind)

	protocols, err := cfg.Protocols()
	require.NoError(t, err)
	assert.Equal(t, []cv.Protocol{cv.CV0, cv.CV00}, protocols)

	assert.Equal(t, DefaultFocalTrials, cfg.CV.FocalTrials)
	assert.Equal(t, cv.NewKFold(), cfg.KFold())
	assert.Equal(t, 0.3, cfg.Model.Heritability)
	assert.Len(t, cfg.ModelOptions(), 4)

	// the default focal list is a copy
	cfg.CV.FocalTrials[0] = "changed"
	assert.Equal(t, "AWY1_DVPWA_2024", DefaultFocalTrials[0])
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
paths:
  phenotypes: pheno.csv
  markers: geno.csv
  results_db: runs.db
model:
  kind: gblup
  ridge_factor: 0.001
  ungenotyped: fixed_effect
cv:
  focal_trials: [T1, T2]
  protocols: [cv00]
  folds: 3
  seed: 7
execution:
  workers: 4
phenotype:
  accession_column: line
logging:
  level: debug
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "pheno.csv", cfg.Paths.Phenotypes)
	assert.Equal(t, "runs.db", cfg.Paths.ResultsDB)
	assert.Equal(t, "submission_output", cfg.Paths.Output)
	assert.Equal(t, 0.001, cfg.Model.RidgeFactor)
	assert.Equal(t, []string{"T1", "T2"}, cfg.CV.FocalTrials)
	assert.Equal(t, cv.KFold{K: 3, Seed: 7}, cfg.KFold())
	assert.Equal(t, 4, cfg.Execution.Workers)
	assert.Equal(t, "line", cfg.Phenotype.AccessionColumn)
	// unset phenotype fields keep their defaults
	assert.Equal(t, "environment_id", cfg.Phenotype.EnvironmentColumn)

	kind, err := cfg.ModelKind()
	require.NoError(t, err)
	assert.Equal(t, gblup.KindBaseline, kind)

	policy, err := cfg.UngenotypedPolicy()
	require.NoError(t, err)
	assert.Equal(t, gblup.UngenotypedFixedEffect, policy)

	protocols, err := cfg.Protocols()
	require.NoError(t, err)
	assert.Equal(t, []cv.Protocol{cv.CV00}, protocols)

	opts := cfg.LogOptions()
	assert.Equal(t, "debug", opts.Level)
	assert.Equal(t, "json", opts.Format)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "model:\n  knd: gblup\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "model:\n  kind: gblup\n")
	t.Setenv("GENOPREDICT_MODEL_KIND", "me_gblup")
	t.Setenv("GENOPREDICT_MODEL_HERITABILITY", "0.5")
	t.Setenv("GENOPREDICT_CV_FOCAL_TRIALS", "A,B,C")
	t.Setenv("GENOPREDICT_EXECUTION_WORKERS", "8")
	t.Setenv("GENOPREDICT_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "me_gblup", cfg.Model.Kind)
	assert.Equal(t, 0.5, cfg.Model.Heritability)
	assert.Equal(t, []string{"A", "B", "C"}, cfg.CV.FocalTrials)
	assert.Equal(t, 8, cfg.Execution.Workers)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		param  string
	}{
		{"heritability zero", func(c *Config) { c.Model.Heritability = 0 }, "model.heritability"},
		{"heritability one", func(c *Config) { c.Model.Heritability = 1 }, "model.heritability"},
		{"negative ridge", func(c *Config) { c.Model.RidgeFactor = -1 }, "model.ridge_factor"},
		{"negative fixed ridge", func(c *Config) { c.Model.FixedEffectRidge = -1 }, "model.fixed_effect_ridge"},
		{"one fold", func(c *Config) { c.CV.Folds = 1 }, "cv.folds"},
		{"cv1 in protocols", func(c *Config) { c.CV.Protocols = []string{"CV1"} }, "cv.protocols"},
		{"unknown protocol", func(c *Config) { c.CV.Protocols = []string{"CV2"} }, "protocol"},
		{"unknown method", func(c *Config) { c.GRM.Method = "yang" }, "grm.method"},
		{"unknown policy", func(c *Config) { c.Model.Ungenotyped = "zero" }, "model.ungenotyped"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }, "log.level"},
		{"negative workers", func(c *Config) { c.Execution.Workers = -1 }, "execution.workers"},
		{"no markers", func(c *Config) { c.Paths.Markers = "" }, "paths.markers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)

			var vErr *errors.ValidationError
			require.True(t, errors.As(err, &vErr), "got %v", err)
			assert.Equal(t, tt.param, vErr.ParamName)
		})
	}

	t.Run("unknown kind", func(t *testing.T) {
		cfg := Default()
		cfg.Model.Kind = "bayesb"
		assert.True(t, errors.Is(cfg.Validate(), errors.ErrUnknownModelKind))
	})

	t.Run("folds ignored without cv1", func(t *testing.T) {
		cfg := Default()
		cfg.CV.RunCV1 = false
		cfg.CV.Folds = 0
		assert.NoError(t, cfg.Validate())
	})
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Model.Kind = "gblup"
	cfg.CV.FocalTrials = []string{"X"}

	var buf bytes.Buffer
	require.NoError(t, cfg.Save(&buf))

	path := writeConfig(t, buf.String())
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Paths, got.Paths)
	assert.Equal(t, cfg.Model, got.Model)
	assert.Equal(t, cfg.CV, got.CV)
	assert.Equal(t, cfg.Phenotype.MetadataColumns, got.Phenotype.MetadataColumns)
}
