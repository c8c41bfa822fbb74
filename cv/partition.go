// Package cv builds train/test partitions for the CV0, CV00 and CV1
// evaluation protocols.
//
// Every derived list (training environments, training accessions, test
// accessions) is re-derived from the filtered rows on each call and
// returned sorted and de-duplicated.
package cv

import (
	"slices"
	"strings"

	"github.com/emilybillow27-sudo/genopredict/pkg/errors"
	"github.com/emilybillow27-sudo/genopredict/pkg/log"
	"github.com/emilybillow27-sudo/genopredict/phenotype"
)

// Protocol names a partitioning scheme.
type Protocol string

const (
	// CV0 predicts a focal environment from every other environment.
	CV0 Protocol = "CV0"
	// CV00 is CV0 with every accession observed in the focal environment
	// also removed from training.
	CV00 Protocol = "CV00"
	// CV1 is k-fold cross-validation by accession identity.
	CV1 Protocol = "CV1"
)

// ParseProtocol accepts "CV0", "CV00" or "CV1" (case-insensitive).
func ParseProtocol(s string) (Protocol, error) {
	switch p := Protocol(strings.ToUpper(strings.TrimSpace(s))); p {
	case CV0, CV00, CV1:
		return p, nil
	default:
		return "", errors.NewValidationError("protocol", "must be CV0, CV00 or CV1", s)
	}
}

// Partition is an immutable train/test split.
type Partition struct {
	Protocol Protocol
	FocalEnv string
	// Fold is the fold index under CV1, -1 otherwise.
	Fold int

	Train             []phenotype.Observation
	TrainEnvironments []string
	TrainAccessions   []string
	TestAccessions    []string

	// Test holds the held-out observations used for scoring. Empty under
	// fallback.
	Test []phenotype.Observation

	// Fallback is true when the focal environment had no rows and the
	// partition trains on everything.
	Fallback bool
}

func newPartition(p Protocol, focal string, fold int, train, test []phenotype.Observation, testAccessions []string) *Partition {
	return &Partition{
		Protocol:          p,
		FocalEnv:          focal,
		Fold:              fold,
		Train:             train,
		TrainEnvironments: phenotype.Environments(train),
		TrainAccessions:   phenotype.Accessions(train),
		TestAccessions:    testAccessions,
		Test:              test,
	}
}

// Option configures Build.
type Option func(*buildOptions)

type buildOptions struct {
	universe []string
	logger   log.Logger
}

// WithUniverse adds accession ids (typically every genotyped accession) to
// the test set used when the focal environment has no rows.
func WithUniverse(ids []string) Option {
	return func(o *buildOptions) {
		o.universe = ids
	}
}

// WithLogger sets the logger used for fallback warnings.
func WithLogger(logger log.Logger) Option {
	return func(o *buildOptions) {
		o.logger = logger
	}
}

// Build partitions table around focalEnv under CV0 or CV00.
//
// When focalEnv has no rows the partition falls back to training on every
// row and testing the full accession universe (training accessions plus
// WithUniverse ids); a warning is logged and Partition.Fallback is set.
func Build(table *phenotype.Table, focalEnv string, p Protocol, opts ...Option) (*Partition, error) {
	o := buildOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.GetLoggerWithName("cv")
	}

	if p != CV0 && p != CV00 {
		return nil, errors.NewValidationError("protocol", "Build supports CV0 and CV00; use KFold for CV1", string(p))
	}

	focal := table.InEnvironment(focalEnv)
	if len(focal) == 0 {
		train := table.Observations()
		universe := phenotype.Accessions(train)
		if len(o.universe) > 0 {
			universe = append(universe, o.universe...)
			slices.Sort(universe)
			universe = slices.Compact(universe)
		}
		part := newPartition(p, focalEnv, -1, train, nil, universe)
		part.Fallback = true

		errors.Warn(errors.NewPartitionFallbackWarning(focalEnv, string(p), len(train), len(universe)))
		o.logger.Warn("focal environment has no phenotype rows; training on all rows",
			log.OperationKey, log.OperationPartition,
			log.ProtocolKey, string(p),
			log.FocalEnvKey, focalEnv,
			log.FallbackKey, true,
			log.TrainObservationsKey, len(train),
			log.TestAccessionsKey, len(universe),
		)
		return part, nil
	}

	testAccessions := phenotype.Accessions(focal)
	var train []phenotype.Observation
	switch p {
	case CV0:
		train = table.Filter(func(obs phenotype.Observation) bool {
			return obs.EnvironmentID != focalEnv
		})
	case CV00:
		exclude := make(map[string]struct{}, len(testAccessions))
		for _, id := range testAccessions {
			exclude[id] = struct{}{}
		}
		train = table.Filter(func(obs phenotype.Observation) bool {
			if obs.EnvironmentID == focalEnv {
				return false
			}
			_, seen := exclude[obs.AccessionID]
			return !seen
		})
	}

	part := newPartition(p, focalEnv, -1, train, focal, testAccessions)
	o.logger.Debug("partition built",
		log.OperationKey, log.OperationPartition,
		log.ProtocolKey, string(p),
		log.FocalEnvKey, focalEnv,
		log.TrainObservationsKey, len(train),
		log.TestAccessionsKey, len(testAccessions),
	)
	return part, nil
}
