package gblup

import (
	"github.com/emilybillow27-sudo/genopredict/pkg/errors"
	"github.com/emilybillow27-sudo/genopredict/pkg/log"
)

// Defaults.
const (
	DefaultRidgeFactor      = 1e-5
	DefaultFixedEffectRidge = 1e-6
	DefaultHeritability     = 0.3
)

// Option configures Fit.
type Option func(*config)

type config struct {
	ridgeFactor  float64
	fixedRidge   float64
	heritability float64
	policy       UngenotypedPolicy
	logger       log.Logger
}

func newConfig(opts []Option) (*config, error) {
	c := &config{
		ridgeFactor:  DefaultRidgeFactor,
		fixedRidge:   DefaultFixedEffectRidge,
		heritability: DefaultHeritability,
		policy:       UngenotypedMissing,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.ridgeFactor < 0 {
		return nil, errors.NewValidationError("ridge_factor", "must be non-negative", c.ridgeFactor)
	}
	if c.fixedRidge < 0 {
		return nil, errors.NewValidationError("fixed_effect_ridge", "must be non-negative", c.fixedRidge)
	}
	if !(c.heritability > 0 && c.heritability < 1) {
		return nil, errors.NewValidationError("heritability", "must be in (0, 1)", c.heritability)
	}
	if c.logger == nil {
		c.logger = log.GetLoggerWithName("gblup")
	}
	return c, nil
}

// WithRidgeFactor sets ε in the baseline λ = ε·trace(G_train)/n.
func WithRidgeFactor(eps float64) Option {
	return func(c *config) {
		c.ridgeFactor = eps
	}
}

// WithFixedEffectRidge sets ε added to XᵗX in the ME-GBLUP β solve.
func WithFixedEffectRidge(eps float64) Option {
	return func(c *config) {
		c.fixedRidge = eps
	}
}

// WithHeritability sets h² for ME-GBLUP; λ = (1−h²)/h².
func WithHeritability(h2 float64) Option {
	return func(c *config) {
		c.heritability = h2
	}
}

// WithUngenotypedPolicy sets how the fitted model predicts accessions
// absent from the relationship.
func WithUngenotypedPolicy(p UngenotypedPolicy) Option {
	return func(c *config) {
		c.policy = p
	}
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}
