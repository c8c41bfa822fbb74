// Package config loads run configuration from YAML, then applies
// GENOPREDICT_* environment overrides.
package config

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/emilybillow27-sudo/genopredict/cv"
	"github.com/emilybillow27-sudo/genopredict/gblup"
	"github.com/emilybillow27-sudo/genopredict/genotype"
	"github.com/emilybillow27-sudo/genopredict/grm"
	"github.com/emilybillow27-sudo/genopredict/pkg/errors"
	"github.com/emilybillow27-sudo/genopredict/pkg/log"
	"github.com/emilybillow27-sudo/genopredict/phenotype"
	"github.com/emilybillow27-sudo/genopredict/preprocessing"
)

// EnvPrefix prefixes every environment override, e.g. GENOPREDICT_MODEL_KIND.
const EnvPrefix = "GENOPREDICT"

// DefaultFocalTrials are the challenge trials predicted by default.
var DefaultFocalTrials = []string{
	"AWY1_DVPWA_2024",
	"TCAP_2025_MANKS",
	"25_Big6_SVREC_SVREC",
	"OHRWW_2025_SPO",
	"CornellMaster_2025_McGowan",
	"24Crk_AY2-3",
	"2025_AYT_Aurora",
	"YT_Urb_25",
	"STP1_2025_MCG",
}

// Config holds every setting of a run.
type Config struct {
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	GRM       GRMConfig       `yaml:"grm" envconfig:"GRM"`
	Model     ModelConfig     `yaml:"model" envconfig:"MODEL"`
	CV        CVConfig        `yaml:"cv" envconfig:"CV"`
	Execution ExecutionConfig `yaml:"execution" envconfig:"EXECUTION"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOG"`

	// Column layouts are file-only.
	Phenotype phenotype.ColumnConfig `yaml:"phenotype" ignored:"true"`
	Genotype  GenotypeConfig         `yaml:"genotype" ignored:"true"`
}

// PathsConfig locates inputs and outputs.
type PathsConfig struct {
	Phenotypes string `yaml:"phenotypes" envconfig:"PHENOTYPES"`
	Markers    string `yaml:"markers" envconfig:"MARKERS"`
	Output     string `yaml:"output" envconfig:"OUTPUT"`
	// ResultsDB enables the SQLite run ledger when set.
	ResultsDB string `yaml:"results_db" envconfig:"RESULTS_DB"`
	// Plots enables CV1 PNG plots, written to this directory.
	Plots string `yaml:"plots" envconfig:"PLOTS"`
}

// GRMConfig configures relationship construction.
type GRMConfig struct {
	Method            string `yaml:"method" envconfig:"METHOD"`
	ParallelThreshold int    `yaml:"parallel_threshold" envconfig:"PARALLEL_THRESHOLD"`
}

// ModelConfig configures the estimator.
type ModelConfig struct {
	Kind             string  `yaml:"kind" envconfig:"KIND"`
	RidgeFactor      float64 `yaml:"ridge_factor" envconfig:"RIDGE_FACTOR"`
	FixedEffectRidge float64 `yaml:"fixed_effect_ridge" envconfig:"FIXED_EFFECT_RIDGE"`
	Heritability     float64 `yaml:"heritability" envconfig:"HERITABILITY"`
	// Ungenotyped is "missing" or "fixed_effect".
	Ungenotyped string `yaml:"ungenotyped" envconfig:"UNGENOTYPED"`
}

// CVConfig configures the evaluation protocols.
type CVConfig struct {
	FocalTrials []string `yaml:"focal_trials" envconfig:"FOCAL_TRIALS"`
	Protocols   []string `yaml:"protocols" envconfig:"PROTOCOLS"`
	RunCV1      bool     `yaml:"run_cv1" envconfig:"RUN_CV1"`
	Folds       int      `yaml:"folds" envconfig:"FOLDS"`
	Seed        uint64   `yaml:"seed" envconfig:"SEED"`
}

// ExecutionConfig configures concurrency.
type ExecutionConfig struct {
	// Workers is the number of pairs evaluated concurrently.
	Workers int `yaml:"workers" envconfig:"WORKERS"`
}

// LoggingConfig configures the zerolog backend.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL"`
	Format string `yaml:"format" envconfig:"FORMAT"`
}

// GenotypeConfig describes the marker table.
type GenotypeConfig struct {
	IDColumn      string   `yaml:"id_column"`
	MissingTokens []string `yaml:"missing_tokens"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			Phenotypes: "data/processed/preprocessed_final.csv",
			Markers:    "data/processed/geno_merged_raw.csv",
			Output:     "submission_output",
		},
		GRM: GRMConfig{
			Method:            string(grm.VanRaden),
			ParallelThreshold: 4096,
		},
		Model: ModelConfig{
			Kind:             string(gblup.KindMultiEnv),
			RidgeFactor:      gblup.DefaultRidgeFactor,
			FixedEffectRidge: gblup.DefaultFixedEffectRidge,
			Heritability:     gblup.DefaultHeritability,
			Ungenotyped:      gblup.UngenotypedMissing.String(),
		},
		CV: CVConfig{
			FocalTrials: append([]string(nil), DefaultFocalTrials...),
			Protocols:   []string{string(cv.CV0), string(cv.CV00)},
			RunCV1:      true,
			Folds:       cv.DefaultFolds,
			Seed:        cv.DefaultSeed,
		},
		Execution: ExecutionConfig{Workers: 1},
		Logging:   LoggingConfig{Level: "info", Format: "console"},
		Phenotype: phenotype.DefaultColumnConfig(),
		Genotype:  GenotypeConfig{IDColumn: genotype.DefaultIDColumn},
	}
}

// Load reads path (skipped when empty), applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
		if err := cfg.decode(bytes.NewReader(data)); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, errors.Wrap(err, "apply environment overrides")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode merges YAML from r into c, rejecting unknown keys.
func (c *Config) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && err != io.EOF {
		return errors.WithStack(err)
	}
	return nil
}

// Save writes c as YAML.
func (c *Config) Save(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return errors.Wrap(err, "encode config")
	}
	return errors.Wrap(enc.Close(), "encode config")
}

// Validate checks every enumerated and numeric field.
func (c *Config) Validate() error {
	if _, err := c.GRMMethod(); err != nil {
		return err
	}
	if _, err := c.ModelKind(); err != nil {
		return err
	}
	if _, err := c.UngenotypedPolicy(); err != nil {
		return err
	}
	if _, err := c.Protocols(); err != nil {
		return err
	}
	if _, err := log.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "console":
	default:
		return errors.NewValidationError("logging.format", "must be json or console", c.Logging.Format)
	}
	if !(c.Model.Heritability > 0 && c.Model.Heritability < 1) {
		return errors.NewValidationError("model.heritability", "must be in (0, 1)", c.Model.Heritability)
	}
	if c.Model.RidgeFactor < 0 {
		return errors.NewValidationError("model.ridge_factor", "must be non-negative", c.Model.RidgeFactor)
	}
	if c.Model.FixedEffectRidge < 0 {
		return errors.NewValidationError("model.fixed_effect_ridge", "must be non-negative", c.Model.FixedEffectRidge)
	}
	if c.CV.RunCV1 && c.CV.Folds < 2 {
		return errors.NewValidationError("cv.folds", "must be at least 2", c.CV.Folds)
	}
	if c.Execution.Workers < 0 {
		return errors.NewValidationError("execution.workers", "must be non-negative", c.Execution.Workers)
	}
	if c.Paths.Phenotypes == "" {
		return errors.NewValidationError("paths.phenotypes", "is required", c.Paths.Phenotypes)
	}
	if c.Paths.Markers == "" {
		return errors.NewValidationError("paths.markers", "is required", c.Paths.Markers)
	}
	if c.Phenotype.MinObservedFraction < 0 || c.Phenotype.MinObservedFraction > 1 {
		return errors.NewValidationError("phenotype.min_observed_fraction", "must be in [0, 1]", c.Phenotype.MinObservedFraction)
	}
	return nil
}

// GRMMethod returns the configured standardization.
func (c *Config) GRMMethod() (grm.Method, error) {
	return preprocessing.ParseMethod(strings.ToLower(c.GRM.Method))
}

// ModelKind returns the configured estimator.
func (c *Config) ModelKind() (gblup.Kind, error) {
	return gblup.ParseKind(c.Model.Kind)
}

// UngenotypedPolicy returns the configured policy.
func (c *Config) UngenotypedPolicy() (gblup.UngenotypedPolicy, error) {
	switch strings.ToLower(c.Model.Ungenotyped) {
	case "", "missing":
		return gblup.UngenotypedMissing, nil
	case "fixed_effect", "fixed":
		return gblup.UngenotypedFixedEffect, nil
	default:
		return 0, errors.NewValidationError("model.ungenotyped", "must be missing or fixed_effect", c.Model.Ungenotyped)
	}
}

// Protocols returns the configured CV0/CV00 protocols. CV1 is controlled
// by CV.RunCV1 and rejected here.
func (c *Config) Protocols() ([]cv.Protocol, error) {
	out := make([]cv.Protocol, 0, len(c.CV.Protocols))
	for _, s := range c.CV.Protocols {
		p, err := cv.ParseProtocol(s)
		if err != nil {
			return nil, err
		}
		if p == cv.CV1 {
			return nil, errors.NewValidationError("cv.protocols", "CV1 is enabled with run_cv1", s)
		}
		out = append(out, p)
	}
	return out, nil
}

// ModelOptions returns the gblup options for the configured
// hyperparameters.
func (c *Config) ModelOptions() []gblup.Option {
	policy, _ := c.UngenotypedPolicy()
	return []gblup.Option{
		gblup.WithRidgeFactor(c.Model.RidgeFactor),
		gblup.WithFixedEffectRidge(c.Model.FixedEffectRidge),
		gblup.WithHeritability(c.Model.Heritability),
		gblup.WithUngenotypedPolicy(policy),
	}
}

// KFold returns the CV1 splitter.
func (c *Config) KFold() cv.KFold {
	return cv.KFold{K: c.CV.Folds, Seed: c.CV.Seed}
}

// LogOptions returns the zerolog backend options.
func (c *Config) LogOptions() log.Options {
	return log.Options{Level: c.Logging.Level, Format: c.Logging.Format}
}

// GenotypeReadOptions returns the marker reader options.
func (c *Config) GenotypeReadOptions() genotype.ReadOptions {
	return genotype.ReadOptions{IDColumn: c.Genotype.IDColumn, MissingTokens: c.Genotype.MissingTokens}
}
