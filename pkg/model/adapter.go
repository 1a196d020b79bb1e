package model

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/arbscope/cross-chain-arb-engine/pkg/features"
	"github.com/arbscope/cross-chain-arb-engine/pkg/interfaces"
	"github.com/arbscope/cross-chain-arb-engine/pkg/types"
)

// State is the adapter's lifecycle position. There is no transition out of
// StateFallbackOnly; operators restart the service after placing artifacts.
type State int

const (
	StateUnloaded State = iota
	StateLoaded
	StateFallbackOnly
)

func (s State) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StateFallbackOnly:
		return "fallback-only"
	default:
		return "unloaded"
	}
}

// Adapter owns the trained classifier and the feature schema it was fitted
// on, loaded as a pair. Safe for concurrent use.
type Adapter struct {
	mu       sync.RWMutex
	state    State
	model    *LogisticModel
	schema   *features.Schema
	loadedAt time.Time
	logger   zerolog.Logger
}

// NewAdapter returns an adapter in the unloaded state.
func NewAdapter(logger zerolog.Logger) *Adapter {
	return &Adapter{logger: logger.With().Str("component", "model_adapter").Logger()}
}

// Load reads the model and schema artifacts. A missing artifact moves the
// adapter into fallback-only mode and returns a *types.MissingArtifactError;
// any other failure, including a feature count disagreement between the two
// artifacts, also ends in fallback-only mode. Load is effective once: after
// the first call the adapter never changes state again.
func (a *Adapter) Load(modelPath, schemaPath string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateUnloaded {
		return fmt.Errorf("model adapter already %s, restart to reload", a.state)
	}

	m, err := LoadModel(modelPath)
	if err != nil {
		a.state = StateFallbackOnly
		if errors.Is(err, os.ErrNotExist) {
			a.logger.Warn().Str("path", modelPath).Msg("model artifact missing, operating in fallback mode")
			return &types.MissingArtifactError{Path: modelPath, Err: err}
		}
		return fmt.Errorf("failed to load model: %w", err)
	}

	schema, err := features.LoadSchema(schemaPath)
	if err != nil {
		a.state = StateFallbackOnly
		if errors.Is(err, os.ErrNotExist) {
			a.logger.Warn().Str("path", schemaPath).Msg("schema artifact missing, operating in fallback mode")
			return &types.MissingArtifactError{Path: schemaPath, Err: err}
		}
		return fmt.Errorf("failed to load schema: %w", err)
	}

	// The two artifacts are only valid as the pair written by one training
	// run. A count mismatch means they drifted apart on disk.
	if schema.Len() != m.FeatureCount {
		a.state = StateFallbackOnly
		return fmt.Errorf("model expects %d features but schema lists %d: %w",
			m.FeatureCount, schema.Len(), &types.FeatureAlignmentError{Got: schema.Len(), Want: m.FeatureCount})
	}

	a.model = m
	a.schema = schema
	a.state = StateLoaded
	a.loadedAt = time.Now().UTC()
	a.logger.Info().
		Str("model", modelPath).
		Int("features", m.FeatureCount).
		Int("samples", m.Samples).
		Time("trained_at", m.TrainedAt).
		Msg("model loaded")
	return nil
}

// Ready reports whether predictions can be served from the loaded model.
func (a *Adapter) Ready() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state == StateLoaded
}

// Schema returns the loaded feature schema, or nil when not loaded.
func (a *Adapter) Schema() *features.Schema {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.schema
}

// State returns the adapter's current lifecycle state.
func (a *Adapter) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// LoadedAt returns when the model was loaded, or nil when not loaded.
func (a *Adapter) LoadedAt() *time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.state != StateLoaded {
		return nil
	}
	t := a.loadedAt
	return &t
}

// Mode returns the model identifier reported in result metadata.
func (a *Adapter) Mode() string {
	if a.Ready() {
		return types.ModelClassifierV1
	}
	return types.ModelFallbackHeuristic
}

// Predict classifies a schema-aligned feature vector.
func (a *Adapter) Predict(vector []float64) (*interfaces.Prediction, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.state != StateLoaded {
		return nil, fmt.Errorf("no model loaded")
	}
	label, probability, err := a.model.PredictLabel(vector)
	if err != nil {
		return nil, err
	}
	return &interfaces.Prediction{Label: label, Probability: probability}, nil
}
