package features

import (
	"testing"

	"github.com/arbscope/cross-chain-arb-engine/pkg/types"
	"github.com/stretchr/testify/assert"
)

func newTestBuilder() *Builder {
	return NewBuilder(testTokens, testChains)
}

func TestDerive_Defaults(t *testing.T) {
	builder := newTestBuilder()

	derived := builder.Derive(types.Observation{Token: "ETH", Chain: "ethereum", Price: 150, Gas: 20})

	assert.Equal(t, 150.0, derived.Gross)
	assert.Equal(t, 130.0, derived.Net)
	assert.Equal(t, DefaultTradeVolume, derived.TradeValue)
	assert.InDelta(t, 13.0, derived.ROI, 1e-9)
}

func TestDerive_Overrides(t *testing.T) {
	builder := newTestBuilder()
	gross := 500.0
	net := 42.0
	roi := 7.5
	volume := 2000.0

	derived := builder.Derive(types.Observation{
		Token:       "ETH",
		Chain:       "ethereum",
		Price:       150,
		Gas:         20,
		GrossProfit: &gross,
		NetProfit:   &net,
		ROI:         &roi,
		TradeVolume: &volume,
	})

	assert.Equal(t, 500.0, derived.Gross)
	assert.Equal(t, 42.0, derived.Net)
	assert.Equal(t, 2000.0, derived.TradeValue)
	assert.Equal(t, 7.5, derived.ROI)
}

func TestDerive_NonPositiveVolumeUsesDefault(t *testing.T) {
	builder := newTestBuilder()
	volume := 0.0

	derived := builder.Derive(types.Observation{Token: "ETH", Chain: "ethereum", Price: 100, Gas: 10, TradeVolume: &volume})

	assert.Equal(t, DefaultTradeVolume, derived.TradeValue)
	assert.InDelta(t, 9.0, derived.ROI, 1e-9)
}

func TestBuild_OneHotEncoding(t *testing.T) {
	builder := newTestBuilder()

	features, info := builder.Build(types.Observation{Token: "eth", Chain: "Ethereum", Price: 150, Gas: 20})

	assert.True(t, info.TokenRecognized)
	assert.True(t, info.ChainRecognized)
	assert.Equal(t, 1.0, features["symbol_ETH"])
	assert.Equal(t, 0.0, features["symbol_BNB"])
	assert.Equal(t, 1.0, features["chainFrom_ethereum"])
	assert.Equal(t, 0.0, features["chainFrom_polygon"])
}

func TestBuild_CounterChainPolicy(t *testing.T) {
	builder := newTestBuilder()

	// Non-polygon source defaults destination to polygon
	features, info := builder.Build(types.Observation{Token: "ETH", Chain: "ethereum", Price: 150, Gas: 20})
	assert.True(t, info.ChainToDefaulted)
	assert.Equal(t, 1.0, features["chainTo_polygon"])
	assert.Equal(t, 0.0, features["chainTo_ethereum"])

	// Polygon source defaults destination to ethereum
	features, info = builder.Build(types.Observation{Token: "MATIC", Chain: "polygon", Price: 5, Gas: 1})
	assert.True(t, info.ChainToDefaulted)
	assert.Equal(t, 1.0, features["chainTo_ethereum"])

	// Explicit destination wins
	features, info = builder.Build(types.Observation{Token: "ETH", Chain: "ethereum", ChainTo: "bsc", Price: 150, Gas: 20})
	assert.False(t, info.ChainToDefaulted)
	assert.Equal(t, 1.0, features["chainTo_bsc"])
}

func TestBuild_UnrecognizedEntitiesDegradeSilently(t *testing.T) {
	builder := newTestBuilder()

	features, info := builder.Build(types.Observation{Token: "DOGE", Chain: "solana", Price: 10, Gas: 1})

	assert.False(t, info.TokenRecognized)
	assert.False(t, info.ChainRecognized)
	for _, token := range testTokens {
		assert.Equal(t, 0.0, features[SymbolPrefix+token])
	}
	for _, chain := range testChains {
		assert.Equal(t, 0.0, features[ChainFromPrefix+chain])
	}
}

func TestBuild_AlignsWithSchema(t *testing.T) {
	builder := newTestBuilder()
	schema := builder.Schema()

	features, _ := builder.Build(types.Observation{Token: "ETH", Chain: "ethereum", Price: 150, Gas: 20})

	assert.Equal(t, schema.Len(), len(features))
	vector := schema.Project(features)
	assert.Len(t, vector, schema.Len())
}

func TestBuildRecord_MatchesBuild(t *testing.T) {
	builder := newTestBuilder()

	rec := types.HistoricalRecord{
		Token:            "ETH",
		ChainFrom:        "ethereum",
		ChainTo:          "polygon",
		GrossProfit:      150,
		NetProfit:        130,
		GasCost:          20,
		PriceDiff:        150,
		PriceDiffPercent: 1.2,
		ROI:              13,
		TradeVolume:      1000,
		Profitable:       true,
	}
	features := builder.BuildRecord(rec)

	assert.Equal(t, 130.0, features[FeatNetProfit])
	assert.Equal(t, 20.0, features[FeatGasCost])
	assert.Equal(t, 1.0, features["symbol_ETH"])
	assert.Equal(t, 1.0, features["chainFrom_ethereum"])
	assert.Equal(t, 1.0, features["chainTo_polygon"])
}

func TestRecognize_MatchesBuild(t *testing.T) {
	builder := newTestBuilder()

	observations := []types.Observation{
		{Token: "ETH", Chain: "ethereum", ChainTo: "polygon", Price: 100, Gas: 5},
		{Token: "eth", Chain: "Ethereum", Price: 100, Gas: 5},
		{Token: "DOGE", Chain: "solana", Price: 100, Gas: 5},
		{Token: "USDT", Chain: "bsc", Price: 100, Gas: 5},
	}

	for _, obs := range observations {
		_, fromBuild := builder.Build(obs)
		assert.Equal(t, fromBuild, builder.Recognize(obs), "observation %+v", obs)
	}
}

func TestCounterChain(t *testing.T) {
	builder := newTestBuilder()

	assert.Equal(t, "polygon", builder.CounterChain("ethereum"))
	assert.Equal(t, "polygon", builder.CounterChain("bsc"))
	assert.Equal(t, "ethereum", builder.CounterChain("polygon"))
}
