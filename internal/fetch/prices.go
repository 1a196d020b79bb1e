// Package fetch pulls spot prices and gas prices from public market data
// sources. All sources are poll-based HTTP with circuit breaking; a tripped
// breaker fails fast until the source recovers.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// coinIDs maps token symbols to CoinGecko coin identifiers.
var coinIDs = map[string]string{
	"ETH":   "ethereum",
	"USDT":  "tether",
	"USDC":  "usd-coin",
	"BNB":   "binancecoin",
	"MATIC": "matic-network",
}

// CoinGeckoSource fetches USD spot prices from the CoinGecko simple price
// endpoint.
type CoinGeckoSource struct {
	baseURL string
	tokens  []string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  zerolog.Logger
}

// NewCoinGeckoSource creates a price source for the given token symbols.
// Symbols without a known CoinGecko id are skipped.
func NewCoinGeckoSource(baseURL string, tokens []string, timeout time.Duration, logger zerolog.Logger) *CoinGeckoSource {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "coingecko",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &CoinGeckoSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
		logger:  logger.With().Str("component", "coingecko").Logger(),
	}
}

// FetchPrices returns current USD prices keyed by token symbol.
func (s *CoinGeckoSource) FetchPrices(ctx context.Context) (map[string]float64, error) {
	ids := make([]string, 0, len(s.tokens))
	idToSymbol := make(map[string]string, len(s.tokens))
	for _, token := range s.tokens {
		symbol := strings.ToUpper(token)
		id, ok := coinIDs[symbol]
		if !ok {
			s.logger.Debug().Str("token", symbol).Msg("no coingecko id, skipping")
			continue
		}
		ids = append(ids, id)
		idToSymbol[id] = symbol
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no fetchable tokens configured")
	}

	endpoint := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd",
		s.baseURL, url.QueryEscape(strings.Join(ids, ",")))

	raw, err := s.breaker.Execute(func() (interface{}, error) {
		return s.get(ctx, endpoint)
	})
	if err != nil {
		return nil, fmt.Errorf("price fetch failed: %w", err)
	}

	var decoded map[string]struct {
		USD float64 `json:"usd"`
	}
	if err := json.Unmarshal(raw.([]byte), &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode price response: %w", err)
	}

	prices := make(map[string]float64, len(decoded))
	for id, entry := range decoded {
		symbol, ok := idToSymbol[id]
		if !ok {
			continue
		}
		prices[symbol] = entry.USD
	}
	return prices, nil
}

func (s *CoinGeckoSource) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
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
}
