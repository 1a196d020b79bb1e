package interfaces

import (
	"context"
	"time"

	"github.com/arbscope/cross-chain-arb-engine/pkg/types"
)

// TokenStore persists supported tokens and their latest observed prices.
type TokenStore interface {
	UpsertToken(ctx context.Context, token types.Token) error
	GetToken(ctx context.Context, symbol, chain string) (*types.Token, error)
	ListTokens(ctx context.Context) ([]types.Token, error)
}

// OpportunityFilter narrows opportunity listings.
type OpportunityFilter struct {
	Status string
	Token  string
	Limit  int
	Offset int
}

// OpportunityStore persists scored arbitrage opportunities with an
// active/expired lifecycle.
type OpportunityStore interface {
	// Upsert inserts the opportunity, or refreshes the active one for the
	// same (token, chainFrom, chainTo) triple. It reports whether a new row
	// was created.
	Upsert(ctx context.Context, opp *types.Opportunity) (bool, error)

	// Expire marks the active opportunity for the triple as expired, if any.
	Expire(ctx context.Context, token, chainFrom, chainTo string) error

	GetByID(ctx context.Context, id string) (*types.Opportunity, error)
	List(ctx context.Context, filter OpportunityFilter) ([]types.Opportunity, int, error)
}

// HistoryStore persists labeled historical records used for training.
type HistoryStore interface {
	Append(ctx context.Context, rec types.HistoricalRecord) error
	ListRecords(ctx context.Context, limit int) ([]types.HistoricalRecord, error)
}

// PriceCache caches the latest spot price per (symbol, chain).
type PriceCache interface {
	SetPrice(ctx context.Context, symbol, chain string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, symbol, chain string) (float64, time.Time, error)
}

// GasCache caches the latest gas price per chain, in gwei.
type GasCache interface {
	SetGasPrice(ctx context.Context, chain string, gwei float64, ts time.Time) error
	GetGasPrice(ctx context.Context, chain string) (float64, time.Time, error)
}
