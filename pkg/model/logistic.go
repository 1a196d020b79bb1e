// Package model provides the binary profitability classifier and the adapter
// that manages its loaded artifacts.
package model

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/arbscope/cross-chain-arb-engine/pkg/types"
)

// ArtifactVersion tags persisted model files. Loading rejects other versions.
const ArtifactVersion = "classifier-v1"

// Training hyperparameters. Inputs are standardized per column, so a single
// fixed learning rate is adequate across the feature ranges seen here.
const (
	learningRate = 0.1
	epochs       = 500
)

// LogisticModel is a standardized logistic regression classifier. The zero
// value is unusable; obtain instances through Fit or LoadModel.
type LogisticModel struct {
	Version      string    `json:"version"`
	FeatureCount int       `json:"feature_count"`
	Means        []float64 `json:"means"`
	Stds         []float64 `json:"stds"`
	Weights      []float64 `json:"weights"`
	Bias         float64   `json:"bias"`
	TrainedAt    time.Time `json:"trained_at"`
	Samples      int       `json:"samples"`
}

// Fit trains a logistic regression on the given feature matrix and binary
// labels using full-batch gradient descent over standardized inputs.
func Fit(matrix [][]float64, labels []int) (*LogisticModel, error) {
	if len(matrix) == 0 {
		return nil, fmt.Errorf("cannot fit on empty training matrix")
	}
	if len(matrix) != len(labels) {
		return nil, fmt.Errorf("matrix has %d rows but %d labels", len(matrix), len(labels))
	}
	cols := len(matrix[0])
	for _, row := range matrix {
		if len(row) != cols {
			return nil, &types.FeatureAlignmentError{Got: len(row), Want: cols}
		}
	}

	means, stds := standardization(matrix, cols)
	scaled := make([][]float64, len(matrix))
	for i, row := range matrix {
		scaled[i] = standardize(row, means, stds)
	}

	weights := make([]float64, cols)
	bias := 0.0
	n := float64(len(scaled))

	for epoch := 0; epoch < epochs; epoch++ {
		gradW := make([]float64, cols)
		gradB := 0.0
		for i, row := range scaled {
			p := sigmoid(dot(weights, row) + bias)
			diff := p - float64(labels[i])
			for j, v := range row {
				gradW[j] += diff * v
			}
			gradB += diff
		}
		for j := range weights {
			weights[j] -= learningRate * gradW[j] / n
		}
		bias -= learningRate * gradB / n
	}

	return &LogisticModel{
		Version:      ArtifactVersion,
		FeatureCount: cols,
		Means:        means,
		Stds:         stds,
		Weights:      weights,
		Bias:         bias,
		TrainedAt:    time.Now().UTC(),
		Samples:      len(matrix),
	}, nil
}

// PredictProba returns the probability of the profitable class for a
// schema-aligned feature vector.
func (m *LogisticModel) PredictProba(vector []float64) (float64, error) {
	if len(vector) != m.FeatureCount {
		return 0, &types.FeatureAlignmentError{Got: len(vector), Want: m.FeatureCount}
	}
	scaled := standardize(vector, m.Means, m.Stds)
	return sigmoid(dot(m.Weights, scaled) + m.Bias), nil
}

// PredictLabel thresholds PredictProba at 0.5.
func (m *LogisticModel) PredictLabel(vector []float64) (int, float64, error) {
	p, err := m.PredictProba(vector)
	if err != nil {
		return 0, 0, err
	}
	if p >= 0.5 {
		return 1, p, nil
	}
	return 0, p, nil
}

// Save writes the model artifact as JSON via a temp file rename, so readers
// never observe a partially written model.
func (m *LogisticModel) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".model-*")
	if err != nil {
		return fmt.Errorf("failed to create temp model file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close model file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace model file: %w", err)
	}
	return nil
}

// LoadModel reads a model artifact written by Save and validates its shape.
func LoadModel(path string) (*LogisticModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m LogisticModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode model %s: %w", path, err)
	}
	if m.Version != ArtifactVersion {
		return nil, fmt.Errorf("model %s has unsupported version %q", path, m.Version)
	}
	if m.FeatureCount <= 0 ||
		len(m.Weights) != m.FeatureCount ||
		len(m.Means) != m.FeatureCount ||
		len(m.Stds) != m.FeatureCount {
		return nil, fmt.Errorf("model %s is malformed: feature count %d does not match parameter shapes", path, m.FeatureCount)
	}
	return &m, nil
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// standardization computes per-column mean and standard deviation. Constant
// columns get a std of 1 so standardization stays defined.
func standardization(matrix [][]float64, cols int) (means, stds []float64) {
	means = make([]float64, cols)
	stds = make([]float64, cols)
	n := float64(len(matrix))

	for _, row := range matrix {
		for j, v := range row {
			means[j] += v
		}
	}
	for j := range means {
		means[j] /= n
	}
	for _, row := range matrix {
		for j, v := range row {
			d := v - means[j]
			stds[j] += d * d
		}
	}
	for j := range stds {
		stds[j] = math.Sqrt(stds[j] / n)
		if stds[j] == 0 {
			stds[j] = 1
		}
	}
	return means, stds
}

func standardize(row, means, stds []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - means[j]) / stds[j]
	}
	return out
}
