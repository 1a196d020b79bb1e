package types

import (
	"strings"
	"time"
)

// Observation is a single market observation submitted for scoring. Price and
// Gas are denominated in USD. The optional pointer fields override the
// engine's derived quantities when the caller already knows them (for example
// when the observation comes from a full two-leg evaluation).
type Observation struct {
	Token            string   `json:"token"`
	Chain            string   `json:"chain"`
	Price            float64  `json:"price"`
	Gas              float64  `json:"gas"`
	GrossProfit      *float64 `json:"grossProfit,omitempty"`
	NetProfit        *float64 `json:"netProfit,omitempty"`
	ROI              *float64 `json:"roi,omitempty"`
	TradeVolume      *float64 `json:"tradeVolume,omitempty"`
	PriceDiff        *float64 `json:"priceDiff,omitempty"`
	PriceDiffPercent *float64 `json:"priceDiffPercent,omitempty"`
	PricePerToken    *float64 `json:"pricePerToken,omitempty"`

	// ChainTo is the destination chain when known. Empty means a single-leg
	// observation; the feature builder then applies its counter-chain policy.
	ChainTo string `json:"chainTo,omitempty"`
}

// Normalized returns a copy with the token upper-cased and chains
// lower-cased. All comparisons and encodings operate on normalized values.
func (o Observation) Normalized() Observation {
	o.Token = strings.ToUpper(strings.TrimSpace(o.Token))
	o.Chain = strings.ToLower(strings.TrimSpace(o.Chain))
	o.ChainTo = strings.ToLower(strings.TrimSpace(o.ChainTo))
	return o
}

// Model identifiers reported in result metadata so callers can tell a
// calibrated probability apart from the heuristic score.
const (
	ModelClassifierV1      = "classifier-v1"
	ModelFallbackHeuristic = "fallback-heuristic"
)

// ResultMetadata carries scoring provenance alongside the numeric result.
type ResultMetadata struct {
	TokenRecognized  bool   `json:"tokenRecognized"`
	ChainRecognized  bool   `json:"chainRecognized"`
	ModelUsed        string `json:"modelUsed"`
	ChainToDefaulted bool   `json:"chainToDefaulted,omitempty"`
}

// Result is the outcome of scoring one observation. Score is a calibrated
// probability when Metadata.ModelUsed is ModelClassifierV1 and a clamped
// linear heuristic otherwise; the two ranges are not comparable.
type Result struct {
	Profitable bool            `json:"profitable"`
	ROI        float64         `json:"roi"`
	Score      float64         `json:"score"`
	Metadata   *ResultMetadata `json:"metadata,omitempty"`
	Warning    string          `json:"warning,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// HistoricalRecord is one labeled training sample loaded from storage.
type HistoricalRecord struct {
	Token            string    `json:"token"`
	ChainFrom        string    `json:"chainFrom"`
	ChainTo          string    `json:"chainTo"`
	GrossProfit      float64   `json:"grossProfit"`
	NetProfit        float64   `json:"netProfit"`
	GasCost          float64   `json:"gasCost"`
	PriceDiff        float64   `json:"priceDiff"`
	PriceDiffPercent float64   `json:"priceDiffPercent"`
	ROI              float64   `json:"roi"`
	TradeVolume      float64   `json:"tradeVolume"`
	Profitable       bool      `json:"profitable"`
	Timestamp        time.Time `json:"timestamp"`
}

// Label returns the binary classification target for the record.
func (r HistoricalRecord) Label() int {
	if r.Profitable {
		return 1
	}
	return 0
}

// Opportunity statuses.
const (
	OpportunityActive  = "active"
	OpportunityExpired = "expired"
)

// Opportunity is a persisted cross-chain price gap together with its score.
type Opportunity struct {
	ID               string    `json:"id"`
	Token            string    `json:"token"`
	ChainFrom        string    `json:"chainFrom"`
	ChainTo          string    `json:"chainTo"`
	PriceFrom        float64   `json:"priceFrom"`
	PriceTo          float64   `json:"priceTo"`
	PriceDiff        float64   `json:"priceDiff"`
	PriceDiffPercent float64   `json:"priceDiffPercent"`
	GasCost          float64   `json:"gasCost"`
	NetProfit        float64   `json:"netProfit"`
	ROI              *float64  `json:"roi,omitempty"`
	Score            float64   `json:"score"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Token is a supported asset on one chain with its latest observed price.
type Token struct {
	Symbol       string    `json:"symbol"`
	Chain        string    `json:"chain"`
	Name         string    `json:"name"`
	CurrentPrice float64   `json:"currentPrice"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// GasPrice is the latest gas price observation for one chain, in gwei.
type GasPrice struct {
	Chain     string    `json:"chain"`
	Gwei      float64   `json:"gwei"`
	UpdatedAt time.Time `json:"updatedAt"`
}
