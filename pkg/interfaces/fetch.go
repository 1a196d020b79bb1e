package interfaces

import "context"

// PriceSource fetches current spot prices in USD, keyed by token symbol.
type PriceSource interface {
	FetchPrices(ctx context.Context) (map[string]float64, error)
}

// GasSource fetches the current gas price for one chain, in gwei.
type GasSource interface {
	FetchGasPrice(ctx context.Context, chain string) (float64, error)
}
