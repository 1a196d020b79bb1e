package model

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbscope/cross-chain-arb-engine/pkg/features"
	"github.com/arbscope/cross-chain-arb-engine/pkg/types"
)

var (
	testTokens = []string{"ETH", "USDT", "USDC", "BNB", "MATIC"}
	testChains = []string{"ethereum", "polygon", "bsc"}
)

// writeArtifacts trains a tiny model on schema-shaped vectors and persists
// both artifacts into dir.
func writeArtifacts(t *testing.T, dir string) (modelPath, schemaPath string, schema *features.Schema) {
	t.Helper()
	schema = features.NewSchema(testTokens, testChains)

	matrix := make([][]float64, 0, 12)
	labels := make([]int, 0, 12)
	for i := 0; i < 12; i++ {
		row := make([]float64, schema.Len())
		if i%2 == 0 {
			row[1] = 100 + float64(i) // net_profit
			labels = append(labels, 1)
		} else {
			row[1] = -40 - float64(i)
			labels = append(labels, 0)
		}
		matrix = append(matrix, row)
	}

	m, err := Fit(matrix, labels)
	require.NoError(t, err)

	modelPath = filepath.Join(dir, "arbitrage_model.json")
	schemaPath = filepath.Join(dir, "arbitrage_model_features.txt")
	require.NoError(t, m.Save(modelPath))
	require.NoError(t, schema.Save(schemaPath))
	return modelPath, schemaPath, schema
}

func TestAdapter_LoadSuccess(t *testing.T) {
	dir := t.TempDir()
	modelPath, schemaPath, schema := writeArtifacts(t, dir)
	adapter := NewAdapter(zerolog.Nop())

	require.NoError(t, adapter.Load(modelPath, schemaPath))

	assert.Equal(t, StateLoaded, adapter.State())
	assert.True(t, adapter.Ready())
	assert.Equal(t, types.ModelClassifierV1, adapter.Mode())
	require.NotNil(t, adapter.Schema())
	assert.Equal(t, schema.Names(), adapter.Schema().Names())
	assert.NotNil(t, adapter.LoadedAt())

	profitable := make([]float64, schema.Len())
	profitable[1] = 130
	prediction, err := adapter.Predict(profitable)
	require.NoError(t, err)
	assert.Equal(t, 1, prediction.Label)
	assert.Greater(t, prediction.Probability, 0.5)
}

func TestAdapter_MissingModelGoesFallbackOnly(t *testing.T) {
	dir := t.TempDir()
	adapter := NewAdapter(zerolog.Nop())

	err := adapter.Load(filepath.Join(dir, "absent.json"), filepath.Join(dir, "absent.txt"))

	var missing *types.MissingArtifactError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, StateFallbackOnly, adapter.State())
	assert.False(t, adapter.Ready())
	assert.Equal(t, types.ModelFallbackHeuristic, adapter.Mode())
	assert.Nil(t, adapter.Schema())
	assert.Nil(t, adapter.LoadedAt())
}

func TestAdapter_MissingSchemaGoesFallbackOnly(t *testing.T) {
	dir := t.TempDir()
	modelPath, _, _ := writeArtifacts(t, dir)
	adapter := NewAdapter(zerolog.Nop())

	err := adapter.Load(modelPath, filepath.Join(dir, "absent.txt"))

	var missing *types.MissingArtifactError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, StateFallbackOnly, adapter.State())
}

func TestAdapter_FeatureCountMismatchRejected(t *testing.T) {
	dir := t.TempDir()
	modelPath, _, _ := writeArtifacts(t, dir)

	// Schema from a different universe disagrees with the model's shape.
	narrow := features.NewSchema([]string{"ETH"}, []string{"ethereum"})
	narrowPath := filepath.Join(dir, "narrow.txt")
	require.NoError(t, narrow.Save(narrowPath))

	adapter := NewAdapter(zerolog.Nop())
	err := adapter.Load(modelPath, narrowPath)

	var alignErr *types.FeatureAlignmentError
	require.ErrorAs(t, err, &alignErr)
	assert.Equal(t, StateFallbackOnly, adapter.State())
	assert.False(t, adapter.Ready())
}

func TestAdapter_LoadIsEffectiveOnce(t *testing.T) {
	dir := t.TempDir()
	modelPath, schemaPath, _ := writeArtifacts(t, dir)
	adapter := NewAdapter(zerolog.Nop())

	require.NoError(t, adapter.Load(modelPath, schemaPath))
	assert.Error(t, adapter.Load(modelPath, schemaPath))

	// A failed load does not retry either.
	failed := NewAdapter(zerolog.Nop())
	_ = failed.Load(filepath.Join(dir, "absent.json"), schemaPath)
	assert.Error(t, failed.Load(modelPath, schemaPath))
	assert.Equal(t, StateFallbackOnly, failed.State())
}

func TestAdapter_PredictRequiresLoadedModel(t *testing.T) {
	adapter := NewAdapter(zerolog.Nop())

	_, err := adapter.Predict([]float64{1, 2, 3})
	assert.Error(t, err)
}

func TestAdapter_PredictRejectsMisalignedVector(t *testing.T) {
	dir := t.TempDir()
	modelPath, schemaPath, _ := writeArtifacts(t, dir)
	adapter := NewAdapter(zerolog.Nop())
	require.NoError(t, adapter.Load(modelPath, schemaPath))

	_, err := adapter.Predict([]float64{1, 2, 3})
	var alignErr *types.FeatureAlignmentError
	assert.ErrorAs(t, err, &alignErr)
}
