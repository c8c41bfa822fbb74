package gblup

import (
	"io"

	"github.com/emilybillow27-sudo/genopredict/core/model"
	"github.com/emilybillow27-sudo/genopredict/pkg/errors"
)

// snapshot is the gob form of a fitted model.
type snapshot struct {
	Kind     Kind
	Version  string
	TrainIDs []string
	Alpha    []float64
	U        map[string]float64
	Policy   UngenotypedPolicy
	Diag     Diagnostics

	Intercept   float64
	RidgeFactor float64

	Beta         []float64
	EnvLevels    []string
	Heritability float64
}

func toSnapshot(m Model) (*snapshot, error) {
	s := &snapshot{Version: model.WeightsVersion}
	var g *genetic
	switch mm := m.(type) {
	case *BaselineModel:
		if mm == nil || !mm.IsFitted() {
			return nil, errors.NewNotFittedError("BaselineModel", "Save")
		}
		s.Kind = KindBaseline
		s.Intercept = mm.Intercept
		s.RidgeFactor = mm.RidgeFactor
		g = &mm.genetic
	case *MultiEnvModel:
		if mm == nil || !mm.IsFitted() {
			return nil, errors.NewNotFittedError("MultiEnvModel", "Save")
		}
		s.Kind = KindMultiEnv
		s.Beta = mm.Beta
		s.EnvLevels = mm.EnvLevels
		s.Heritability = mm.Heritability
		g = &mm.genetic
	default:
		return nil, errors.NewNotFittedError("Model", "Save")
	}
	s.TrainIDs = g.TrainIDs
	s.Alpha = g.Alpha
	s.U = g.U
	s.Policy = g.Policy
	s.Diag = g.Diag
	return s, nil
}

// Save writes a gob snapshot of a fitted model to w.
func Save(w io.Writer, m Model) error {
	s, err := toSnapshot(m)
	if err != nil {
		return err
	}
	return model.SaveModelToWriter(s, w)
}

// Load reads a model written by Save.
func Load(r io.Reader) (Model, error) {
	var s snapshot
	if err := model.LoadModelFromReader(&s, r); err != nil {
		return nil, err
	}
	return loadSnapshot(&s)
}

func loadSnapshot(s *snapshot) (Model, error) {
	if s.Version != model.WeightsVersion {
		return nil, errors.NewValidationError("version", "unsupported snapshot version", s.Version)
	}
	if len(s.Alpha) != len(s.TrainIDs) {
		return nil, errors.NewDimensionError("gblup.Load", len(s.TrainIDs), len(s.Alpha), 0)
	}
	g := genetic{TrainIDs: s.TrainIDs, Alpha: s.Alpha, U: s.U, Policy: s.Policy, Diag: s.Diag}
	if g.U == nil {
		g.U = map[string]float64{}
	}
	g.markFitted()

	switch s.Kind {
	case KindBaseline:
		return &BaselineModel{genetic: g, Intercept: s.Intercept, RidgeFactor: s.RidgeFactor}, nil
	case KindMultiEnv:
		if len(s.Beta) != len(s.EnvLevels) || len(s.Beta) == 0 {
			return nil, errors.NewDimensionError("gblup.Load", len(s.EnvLevels), len(s.Beta), 0)
		}
		return &MultiEnvModel{genetic: g, Beta: s.Beta, EnvLevels: s.EnvLevels, Heritability: s.Heritability}, nil
	default:
		return nil, unknownKind(s.Kind)
	}
}

// SaveFile writes m to filename.
func SaveFile(m Model, filename string) error {
	s, err := toSnapshot(m)
	if err != nil {
		return err
	}
	return model.SaveModel(s, filename)
}

// LoadFile reads a model written by SaveFile.
func LoadFile(filename string) (Model, error) {
	var s snapshot
	if err := model.LoadModel(&s, filename); err != nil {
		return nil, err
	}
	return loadSnapshot(&s)
}

// ExportWeights returns the JSON-ready weights of a fitted model: breeding
// values by accession and β by environment level.
func ExportWeights(m Model) (*model.ModelWeights, error) {
	s, err := toSnapshot(m)
	if err != nil {
		return nil, err
	}
	w := &model.ModelWeights{
		ModelType:      string(s.Kind),
		Version:        model.WeightsVersion,
		BreedingValues: m.BreedingValues(),
		Hyperparameters: map[string]interface{}{
			"lambda":             s.Diag.Lambda,
			"ungenotyped_policy": s.Policy.String(),
		},
		Metadata: map[string]interface{}{
			"fallback":           s.Diag.Fallback,
			"degenerate":         s.Diag.Degenerate,
			"train_observations": s.Diag.TrainObservations,
		},
		IsFitted: true,
	}
	switch s.Kind {
	case KindBaseline:
		w.Intercept = s.Intercept
		w.Hyperparameters["ridge_factor"] = s.RidgeFactor
	case KindMultiEnv:
		w.Intercept = s.Beta[0]
		w.Hyperparameters["heritability"] = s.Heritability
		w.Metadata["reference_environment"] = s.EnvLevels[0]
		w.FixedEffects = make(map[string]float64, len(s.EnvLevels)-1)
		for i, env := range s.EnvLevels[1:] {
			w.FixedEffects[env] = s.Beta[i+1]
		}
	}
	return w, w.Validate()
}
