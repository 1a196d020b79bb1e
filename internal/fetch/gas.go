package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/arbscope/cross-chain-arb-engine/pkg/interfaces"
	"github.com/arbscope/cross-chain-arb-engine/pkg/types"
)

// Router dispatches gas price lookups to a per-chain source.
type Router struct {
	mu      sync.RWMutex
	sources map[string]interfaces.GasSource
}

// NewRouter creates a gas source router over per-chain sources.
func NewRouter(sources map[string]interfaces.GasSource) *Router {
	if sources == nil {
		sources = make(map[string]interfaces.GasSource)
	}
	return &Router{sources: sources}
}

// Register adds or replaces the source for a chain.
func (r *Router) Register(chain string, source interfaces.GasSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[chain] = source
}

// FetchGasPrice returns the current gas price for the chain, in gwei.
func (r *Router) FetchGasPrice(ctx context.Context, chain string) (float64, error) {
	r.mu.RLock()
	source, ok := r.sources[chain]
	r.mu.RUnlock()
	if !ok {
		return 0, &types.UnsupportedChainError{Chain: chain}
	}
	return source.FetchGasPrice(ctx, chain)
}

// Chains lists the chains this router can serve.
func (r *Router) Chains() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chains := make([]string, 0, len(r.sources))
	for chain := range r.sources {
		chains = append(chains, chain)
	}
	return chains
}

// oracleSource polls one HTTP gas oracle and extracts a gwei value from its
// JSON response with a shape-specific parser.
type oracleSource struct {
	name    string
	url     string
	parse   func([]byte) (float64, error)
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  zerolog.Logger
}

func newOracleSource(name, url string, timeout time.Duration, parse func([]byte) (float64, error), logger zerolog.Logger) *oracleSource {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &oracleSource{
		name:    name,
		url:     url,
		parse:   parse,
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
		logger:  logger.With().Str("component", name).Logger(),
	}
}

func (s *oracleSource) FetchGasPrice(ctx context.Context, _ string) (float64, error) {
	raw, err := s.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return 0, fmt.Errorf("%s gas fetch failed: %w", s.name, err)
	}

	gwei, err := s.parse(raw.([]byte))
	if err != nil {
		return 0, fmt.Errorf("%s gas response invalid: %w", s.name, err)
	}
	return gwei, nil
}

// NewPolygonGasSource polls the Polygon gas station v2 endpoint.
func NewPolygonGasSource(url string, timeout time.Duration, logger zerolog.Logger) interfaces.GasSource {
	return newOracleSource("polygon_gas", url, timeout, func(raw []byte) (float64, error) {
		var decoded struct {
			Standard struct {
				MaxFee float64 `json:"maxFee"`
			} `json:"standard"`
		}
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return 0, err
		}
		if decoded.Standard.MaxFee <= 0 {
			return 0, fmt.Errorf("missing standard.maxFee")
		}
		return decoded.Standard.MaxFee, nil
	}, logger)
}

// NewBscGasSource polls a BSC gas oracle reporting flat gwei tiers.
func NewBscGasSource(url string, timeout time.Duration, logger zerolog.Logger) interfaces.GasSource {
	return newOracleSource("bsc_gas", url, timeout, func(raw []byte) (float64, error) {
		var decoded struct {
			Standard float64 `json:"standard"`
		}
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return 0, err
		}
		if decoded.Standard <= 0 {
			return 0, fmt.Errorf("missing standard tier")
		}
		return decoded.Standard, nil
	}, logger)
}
