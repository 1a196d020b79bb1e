// Package interfaces defines the contracts between the scoring engine, its
// model adapter, the storage and market-data collaborators, and the API
// layer.
package interfaces

import (
	"context"

	"github.com/arbscope/cross-chain-arb-engine/pkg/features"
	"github.com/arbscope/cross-chain-arb-engine/pkg/types"
)

// Scorer turns one market observation into a profitability decision with a
// confidence score. Implementations never return an error for a single
// malformed request; failures degrade to a best-effort result.
type Scorer interface {
	Score(obs types.Observation) types.Result
}

// Prediction is one binary classification outcome with the probability of
// the positive (profitable) class.
type Prediction struct {
	Label       int
	Probability float64
}

// Classifier wraps a trained binary classifier behind its loaded feature
// schema. Predict is undefined for vectors not projected through Schema;
// implementations must reject misaligned vectors with a
// *types.FeatureAlignmentError.
type Classifier interface {
	// Ready reports whether a model is loaded and usable.
	Ready() bool

	// Schema returns the feature schema the loaded model was fitted on, or
	// nil when no model is loaded.
	Schema() *features.Schema

	// Predict classifies a schema-aligned feature vector.
	Predict(vector []float64) (*Prediction, error)
}

// Trainer fits a classifier on historical records and persists the model
// artifact together with its feature schema.
type Trainer interface {
	Train(ctx context.Context, records []types.HistoricalRecord) (*TrainingReport, error)
}

// TrainingReport summarizes a completed training run. Accuracy numbers and
// the confusion matrix are observability output, not correctness guarantees.
type TrainingReport struct {
	Samples       int       `json:"samples"`
	TrainSamples  int       `json:"trainSamples"`
	TestSamples   int       `json:"testSamples"`
	Features      int       `json:"features"`
	TrainAccuracy float64   `json:"trainAccuracy"`
	TestAccuracy  float64   `json:"testAccuracy"`
	Confusion     [2][2]int `json:"confusion"`
	ModelPath     string    `json:"modelPath"`
	SchemaPath    string    `json:"schemaPath"`
}
