// Package scoring implements the opportunity scoring engine: shared profit
// derivation, model-backed classification and the deterministic heuristic it
// degrades to when no trained model is usable.
package scoring

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/arbscope/cross-chain-arb-engine/pkg/features"
	"github.com/arbscope/cross-chain-arb-engine/pkg/interfaces"
	"github.com/arbscope/cross-chain-arb-engine/pkg/types"
)

// WarningModelNotTrained annotates results produced without a trained model.
const WarningModelNotTrained = "Model not trained yet, using heuristic score"

// Engine scores market observations. It is safe for concurrent use: the
// builder is immutable and the classifier guards its own state.
type Engine struct {
	builder    *features.Builder
	classifier interfaces.Classifier
	metrics    interfaces.MetricsCollector
	logger     zerolog.Logger
}

// NewEngine creates a scoring engine. classifier and metrics may be nil; a
// nil or unready classifier puts the engine in heuristic-only mode.
func NewEngine(builder *features.Builder, classifier interfaces.Classifier, metrics interfaces.MetricsCollector, logger zerolog.Logger) *Engine {
	return &Engine{
		builder:    builder,
		classifier: classifier,
		metrics:    metrics,
		logger:     logger.With().Str("component", "scoring_engine").Logger(),
	}
}

// Score evaluates one observation. It never fails the caller: invalid input
// is reported through Result.Error and inference failures degrade to the
// heuristic with the cause in Result.Warning.
func (e *Engine) Score(obs types.Observation) types.Result {
	start := time.Now()
	result := e.score(obs)
	e.record(result, time.Since(start))
	return result
}

func (e *Engine) score(obs types.Observation) types.Result {
	obs = obs.Normalized()
	if obs.Token == "" || obs.Chain == "" {
		return types.Result{Error: "token and chain are required"}
	}

	derived := e.builder.Derive(obs)
	info := e.builder.Recognize(obs)
	metadata := &types.ResultMetadata{
		TokenRecognized:  info.TokenRecognized,
		ChainRecognized:  info.ChainRecognized,
		ChainToDefaulted: info.ChainToDefaulted,
	}

	// A non-positive net return can never be profitable, regardless of what
	// a model would say. Skip inference entirely.
	if derived.Net <= 0 {
		metadata.ModelUsed = types.ModelFallbackHeuristic
		return types.Result{
			Profitable: false,
			ROI:        derived.ROI,
			Score:      0.0,
			Metadata:   metadata,
		}
	}

	if e.classifier == nil || !e.classifier.Ready() {
		return e.heuristic(derived, metadata, WarningModelNotTrained)
	}

	// The full one-hot mapping is only needed once inference is certain.
	mapping, _ := e.builder.Build(obs)
	vector := e.classifier.Schema().Project(mapping)
	prediction, err := e.classifier.Predict(vector)
	if err != nil {
		e.logger.Warn().Err(err).
			Str("token", obs.Token).
			Str("chain", obs.Chain).
			Msg("inference failed, degrading to heuristic")
		return e.heuristic(derived, metadata, "inference failed: "+err.Error())
	}

	metadata.ModelUsed = types.ModelClassifierV1
	return types.Result{
		Profitable: prediction.Label == 1,
		ROI:        derived.ROI,
		Score:      prediction.Probability,
		Metadata:   metadata,
	}
}

func (e *Engine) heuristic(derived features.Derived, metadata *types.ResultMetadata, warning string) types.Result {
	profitable, score := Fallback(derived.Net)
	metadata.ModelUsed = types.ModelFallbackHeuristic
	return types.Result{
		Profitable: profitable,
		ROI:        derived.ROI,
		Score:      score,
		Metadata:   metadata,
		Warning:    warning,
	}
}

func (e *Engine) record(result types.Result, latency time.Duration) {
	if e.metrics == nil || result.Metadata == nil {
		return
	}
	e.metrics.RecordPrediction(result.Metadata.ModelUsed, result.Profitable, latency)
}
