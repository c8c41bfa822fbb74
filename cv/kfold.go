package cv

import (
	"math/rand/v2"
	"slices"

	"github.com/emilybillow27-sudo/genopredict/pkg/errors"
	"github.com/emilybillow27-sudo/genopredict/phenotype"
)

// Default CV1 settings.
const (
	DefaultFolds = 5
	DefaultSeed  = 42
)

// Fold is one CV1 split of the accession set.
type Fold struct {
	Index           int
	TrainAccessions []string
	TestAccessions  []string
}

// KFold splits accessions into K folds after a seeded PCG shuffle.
type KFold struct {
	K    int
	Seed uint64
}

// NewKFold returns a KFold with the default 5 folds and seed 42.
func NewKFold() KFold {
	return KFold{K: DefaultFolds, Seed: DefaultSeed}
}

// Split assigns every accession to exactly one test fold. The input is
// de-duplicated and sorted first, so the split depends only on the set of
// ids and the seed. The first len%K folds get one extra accession.
func (kf KFold) Split(accessions []string) ([]Fold, error) {
	k := kf.K
	if k == 0 {
		k = DefaultFolds
	}
	ids := slices.Clone(accessions)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	if k < 2 {
		return nil, errors.NewValidationError("folds", "must be at least 2", k)
	}
	if len(ids) < k {
		return nil, errors.NewValidationError("folds", "cannot exceed the number of accessions", k)
	}

	r := rand.New(rand.NewPCG(kf.Seed, kf.Seed))
	r.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})

	folds := make([]Fold, k)
	foldSize := len(ids) / k
	remainder := len(ids) % k
	current := 0
	for i := 0; i < k; i++ {
		testSize := foldSize
		if i < remainder {
			testSize++
		}
		test := slices.Clone(ids[current : current+testSize])
		train := make([]string, 0, len(ids)-testSize)
		train = append(train, ids[:current]...)
		train = append(train, ids[current+testSize:]...)
		slices.Sort(test)
		slices.Sort(train)
		folds[i] = Fold{Index: i, TrainAccessions: train, TestAccessions: test}
		current += testSize
	}
	return folds, nil
}

// BuildFold turns a Fold into a Partition over every environment: training
// rows are those of the fold's training accessions and the held-out rows
// are scored.
func BuildFold(table *phenotype.Table, fold Fold) *Partition {
	test := make(map[string]struct{}, len(fold.TestAccessions))
	for _, id := range fold.TestAccessions {
		test[id] = struct{}{}
	}
	var train, held []phenotype.Observation
	for _, obs := range table.Observations() {
		if _, ok := test[obs.AccessionID]; ok {
			held = append(held, obs)
		} else {
			train = append(train, obs)
		}
	}
	return newPartition(CV1, "", fold.Index, train, held, slices.Clone(fold.TestAccessions))
}
