package fetch

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/params"
	"github.com/rs/zerolog"
)

// RPCGasSource reads the suggested gas price straight from a chain's JSON-RPC
// endpoint. Used for Ethereum, where no free oracle matches node accuracy.
type RPCGasSource struct {
	client *ethclient.Client
	logger zerolog.Logger
}

// NewRPCGasSource dials the JSON-RPC endpoint.
func NewRPCGasSource(ctx context.Context, rpcURL string, logger zerolog.Logger) (*RPCGasSource, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rpc endpoint: %w", err)
	}
	return &RPCGasSource{
		client: client,
		logger: logger.With().Str("component", "rpc_gas").Logger(),
	}, nil
}

// FetchGasPrice returns the node-suggested gas price in gwei.
func (s *RPCGasSource) FetchGasPrice(ctx context.Context, _ string) (float64, error) {
	wei, err := s.client.SuggestGasPrice(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch suggested gas price: %w", err)
	}

	gwei := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(params.GWei))
	value, _ := gwei.Float64()
	return value, nil
}

// Close releases the underlying RPC connection.
func (s *RPCGasSource) Close() {
	s.client.Close()
}
