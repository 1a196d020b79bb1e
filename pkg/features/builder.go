package features

import (
	"strings"

	"github.com/arbscope/cross-chain-arb-engine/pkg/types"
)

// DefaultTradeVolume is assumed (in USD) when an observation carries no
// positive trade volume, so ROI stays defined for single-quote requests.
const DefaultTradeVolume = 1000.0

// Counter-chain policy for single-leg observations: destination-chain
// information is structurally unavailable in a one-observation request, so
// the builder assumes the most common destination rather than failing.
// Callers needing accuracy must supply both chains explicitly; the applied
// default is surfaced through BuildInfo.ChainToDefaulted.
const (
	DefaultCounterChain  = "polygon"
	FallbackCounterChain = "ethereum"
)

// Derived holds the quantities computed from a raw observation. The same
// derivation rules are applied by the scoring engine and, through
// BuildRecord, by the training pipeline.
type Derived struct {
	Gross      float64
	Net        float64
	TradeValue float64
	ROI        float64
}

// BuildInfo reports what the builder had to assume while encoding.
type BuildInfo struct {
	TokenRecognized  bool
	ChainRecognized  bool
	ChainToDefaulted bool
}

// Builder converts observations and historical records into feature
// mappings against a fixed supported token/chain universe. It is immutable
// after construction and safe for concurrent use.
type Builder struct {
	tokens []string
	chains []string
}

// NewBuilder creates a feature builder for the given supported sets. Tokens
// are normalized to upper case and chains to lower case once, up front.
func NewBuilder(supportedTokens, supportedChains []string) *Builder {
	tokens := make([]string, len(supportedTokens))
	for i, t := range supportedTokens {
		tokens[i] = strings.ToUpper(t)
	}
	chains := make([]string, len(supportedChains))
	for i, c := range supportedChains {
		chains[i] = strings.ToLower(c)
	}
	return &Builder{tokens: tokens, chains: chains}
}

// SupportedTokens returns the normalized token universe.
func (b *Builder) SupportedTokens() []string {
	out := make([]string, len(b.tokens))
	copy(out, b.tokens)
	return out
}

// SupportedChains returns the normalized chain universe.
func (b *Builder) SupportedChains() []string {
	out := make([]string, len(b.chains))
	copy(out, b.chains)
	return out
}

// Schema builds the canonical schema for this builder's universe.
func (b *Builder) Schema() *Schema {
	return NewSchema(b.tokens, b.chains)
}

// CounterChain applies the documented destination-chain default for a
// single-leg observation originating on from.
func (b *Builder) CounterChain(from string) string {
	if strings.ToLower(from) == DefaultCounterChain {
		return FallbackCounterChain
	}
	return DefaultCounterChain
}

// Recognize reports what Build would have to assume for an observation,
// without paying for the full feature mapping.
func (b *Builder) Recognize(obs types.Observation) BuildInfo {
	obs = obs.Normalized()
	info := BuildInfo{ChainToDefaulted: obs.ChainTo == ""}
	for _, token := range b.tokens {
		if obs.Token == token {
			info.TokenRecognized = true
			break
		}
	}
	for _, chain := range b.chains {
		if obs.Chain == chain {
			info.ChainRecognized = true
			break
		}
	}
	return info
}

// Derive computes gross/net profit, trade value and ROI for an observation,
// honoring caller-supplied overrides.
func (b *Builder) Derive(obs types.Observation) Derived {
	gross := obs.Price
	if obs.GrossProfit != nil {
		gross = *obs.GrossProfit
	}

	net := gross - obs.Gas
	if obs.NetProfit != nil {
		net = *obs.NetProfit
	}

	tradeValue := DefaultTradeVolume
	if obs.TradeVolume != nil && *obs.TradeVolume > 0 {
		tradeValue = *obs.TradeVolume
	}

	var roi float64
	if obs.ROI != nil {
		roi = *obs.ROI
	} else if tradeValue > 0 {
		roi = net / tradeValue * 100
	}

	return Derived{Gross: gross, Net: net, TradeValue: tradeValue, ROI: roi}
}

// Build converts an observation into a feature mapping. Unrecognized tokens
// and chains never fail: they produce all-zero indicator columns and are
// flagged in the returned BuildInfo.
func (b *Builder) Build(obs types.Observation) (map[string]float64, BuildInfo) {
	obs = obs.Normalized()
	derived := b.Derive(obs)

	priceDiff := derived.Gross
	if obs.PriceDiff != nil {
		priceDiff = *obs.PriceDiff
	}
	var priceDiffPercent float64
	if obs.PriceDiffPercent != nil {
		priceDiffPercent = *obs.PriceDiffPercent
	}

	chainTo := obs.ChainTo
	info := BuildInfo{}
	if chainTo == "" {
		chainTo = b.CounterChain(obs.Chain)
		info.ChainToDefaulted = true
	}

	features := map[string]float64{
		FeatGrossProfit:      derived.Gross,
		FeatNetProfit:        derived.Net,
		FeatGasCost:          obs.Gas,
		FeatPriceDiff:        priceDiff,
		FeatPriceDiffPercent: priceDiffPercent,
		FeatROI:              derived.ROI,
		FeatTradeVolume:      derived.TradeValue,
	}

	for _, token := range b.tokens {
		value := 0.0
		if obs.Token == token {
			value = 1.0
			info.TokenRecognized = true
		}
		features[SymbolPrefix+token] = value
	}
	for _, chain := range b.chains {
		value := 0.0
		if obs.Chain == chain {
			value = 1.0
			info.ChainRecognized = true
		}
		features[ChainFromPrefix+chain] = value
	}
	for _, chain := range b.chains {
		value := 0.0
		if chainTo == chain {
			value = 1.0
		}
		features[ChainToPrefix+chain] = value
	}

	return features, info
}

// BuildRecord converts a labeled historical record into a feature mapping
// using the exact rules Build applies, so training and inference cannot
// drift apart.
func (b *Builder) BuildRecord(rec types.HistoricalRecord) map[string]float64 {
	gross := rec.GrossProfit
	net := rec.NetProfit
	roi := rec.ROI
	volume := rec.TradeVolume
	obs := types.Observation{
		Token:            rec.Token,
		Chain:            rec.ChainFrom,
		ChainTo:          rec.ChainTo,
		Gas:              rec.GasCost,
		GrossProfit:      &gross,
		NetProfit:        &net,
		ROI:              &roi,
		PriceDiff:        &rec.PriceDiff,
		PriceDiffPercent: &rec.PriceDiffPercent,
	}
	if volume > 0 {
		obs.TradeVolume = &volume
	}
	features, _ := b.Build(obs)
	return features
}
