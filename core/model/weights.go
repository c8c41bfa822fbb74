package model

import (
	"encoding/json"

	"github.com/emilybillow27-sudo/genopredict/pkg/errors"
)

// WeightsVersion is written into every exported ModelWeights.
const WeightsVersion = "1"

// ModelWeights はモデルの重みを表す構造体（シリアライゼーション用）
type ModelWeights struct {
	// ModelType は "gblup" または "me_gblup"
	ModelType string `json:"model_type"`

	// Version はフォーマットのバージョン（互換性チェック用）
	Version string `json:"version"`

	// Intercept は切片（ME-GBLUPでは参照環境の固定効果）
	Intercept float64 `json:"intercept"`

	// FixedEffects maps each non-reference environment level to its β.
	FixedEffects map[string]float64 `json:"fixed_effects,omitempty"`

	// BreedingValues maps each training accession to its genetic value u.
	BreedingValues map[string]float64 `json:"breeding_values"`

	// Hyperparameters はλ、h²などのハイパーパラメータ
	Hyperparameters map[string]interface{} `json:"hyperparameters"`

	// Metadata は追加のメタデータ（フォールバックの有無等）
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// IsFitted はモデルが学習済みかどうか
	IsFitted bool `json:"is_fitted"`
}

// ToJSON はModelWeightsをJSON形式にシリアライズ
func (mw *ModelWeights) ToJSON() ([]byte, error) {
	return json.MarshalIndent(mw, "", "  ")
}

// FromJSON はJSON形式からModelWeightsをデシリアライズ
func (mw *ModelWeights) FromJSON(data []byte) error {
	if err := json.Unmarshal(data, mw); err != nil {
		return errors.Wrap(err, "decode model weights")
	}
	return mw.Validate()
}

// Validate はModelWeightsの妥当性を検証
func (mw *ModelWeights) Validate() error {
	if mw.ModelType == "" {
		return errors.NewValidationError("model_type", "is required", mw.ModelType)
	}
	if mw.Version == "" {
		return errors.NewValidationError("version", "is required", mw.Version)
	}
	if !mw.IsFitted && len(mw.BreedingValues) > 0 {
		return errors.NewValidationError("breeding_values", "unfitted model should not have breeding values", len(mw.BreedingValues))
	}
	return nil
}
