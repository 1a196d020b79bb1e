// Package scanner periodically sweeps every supported token and chain pair,
// scores the price gaps and maintains the active opportunity set.
package scanner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/arbscope/cross-chain-arb-engine/pkg/features"
	"github.com/arbscope/cross-chain-arb-engine/pkg/interfaces"
	"github.com/arbscope/cross-chain-arb-engine/pkg/metrics"
	"github.com/arbscope/cross-chain-arb-engine/pkg/ranking"
	"github.com/arbscope/cross-chain-arb-engine/pkg/types"
)

// GasUnitsPerTransfer is the gas budget assumed for one transfer leg.
const GasUnitsPerTransfer = 21000

// NativeTokens maps each chain to the token its gas is paid in.
var NativeTokens = map[string]string{
	"ethereum": "ETH",
	"polygon":  "MATIC",
	"bsc":      "BNB",
}

// EstimateGasCostUSD converts a gas price in gwei into the USD cost of one
// transfer leg at the given native token price.
func EstimateGasCostUSD(gwei, nativeUSD float64) float64 {
	return gwei * GasUnitsPerTransfer * 1e-9 * nativeUSD
}

// Evaluation is the outcome of judging one token on one ordered chain pair.
type Evaluation struct {
	Token            string
	ChainFrom        string
	ChainTo          string
	PriceFrom        float64
	PriceTo          float64
	PriceDiffUSD     float64
	PriceDiffPercent float64
	GasCostUSD       float64
	NetProfitUSD     float64
	ROI              *float64
	Score            float64
	Profitable       bool
}

// Context is one scan's market snapshot: per token and chain prices, per
// chain gas prices in gwei, and native token prices for gas conversion.
type Context struct {
	Prices map[string]float64
	Gas    map[string]float64
	Native map[string]float64
}

func contextKey(symbol, chain string) string {
	return strings.ToUpper(symbol) + "-" + strings.ToLower(chain)
}

// Result summarizes one completed scan.
type Result struct {
	Found     int      `json:"opportunitiesFound"`
	Updated   int      `json:"opportunitiesUpdated"`
	Expired   int      `json:"opportunitiesExpired"`
	Errors    []string `json:"errors,omitempty"`
	Duration  string   `json:"duration"`
	Timestamp string   `json:"timestamp"`
}

// Config controls the scan loop.
type Config struct {
	Interval time.Duration
}

// Deps are the scanner's collaborators. Cache, WebSocket, alerts and metrics
// are optional; the rest are required.
type Deps struct {
	Builder    *features.Builder
	Scorer     interfaces.Scorer
	Prices     interfaces.PriceSource
	Gas        interfaces.GasSource
	Tokens     interfaces.TokenStore
	Opps       interfaces.OpportunityStore
	History    interfaces.HistoryStore
	PriceCache interfaces.PriceCache
	GasCache   interfaces.GasCache
	Rank       *ranking.Queue
	WS         interfaces.WebSocketServer
	Alerts     *metrics.AlertManager
	Metrics    interfaces.MetricsCollector
}

// Scanner sweeps the market on an interval. A scan already in progress is
// never overlapped; the tick is skipped instead.
type Scanner struct {
	cfg    Config
	deps   Deps
	logger zerolog.Logger

	mu           sync.Mutex
	running      bool
	lastScanTime time.Time
}

// New creates a scanner.
func New(cfg Config, deps Deps, logger zerolog.Logger) *Scanner {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	return &Scanner{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With().Str("component", "scanner").Logger(),
	}
}

// Run executes scans on the configured interval until ctx is cancelled.
func (s *Scanner) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.cfg.Interval).Msg("opportunity scanner started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Scan(ctx); err != nil {
				s.logger.Error().Err(err).Msg("scan failed")
			}
		}
	}
}

// Scan performs one full sweep: refresh prices, expire stale opportunities,
// evaluate every token on every ordered chain pair.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, fmt.Errorf("scan already in progress")
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.lastScanTime = time.Now().UTC()
		s.mu.Unlock()
	}()

	start := time.Now()
	result := &Result{Timestamp: start.UTC().Format(time.RFC3339)}

	scanCtx, err := s.buildContext(ctx)
	if err != nil {
		return nil, err
	}

	s.expireStale(ctx, scanCtx, result)

	tokens := s.deps.Builder.SupportedTokens()
	chains := s.deps.Builder.SupportedChains()
	evaluated := 0
	for _, token := range tokens {
		for _, chainFrom := range chains {
			for _, chainTo := range chains {
				if chainFrom == chainTo {
					continue
				}
				evaluated++
				if err := s.scanPair(ctx, token, chainFrom, chainTo, scanCtx, result); err != nil {
					result.Errors = append(result.Errors,
						fmt.Sprintf("%s %s->%s: %v", token, chainFrom, chainTo, err))
				}
			}
		}
	}

	duration := time.Since(start)
	result.Duration = duration.String()

	active := 0
	if s.deps.Rank != nil {
		active = s.deps.Rank.Size()
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordScan(duration, evaluated, active)
	}

	s.logger.Info().
		Int("found", result.Found).
		Int("updated", result.Updated).
		Int("expired", result.Expired).
		Int("errors", len(result.Errors)).
		Dur("duration", duration).
		Msg("scan completed")

	return result, nil
}

// Status reports scanner state for the status endpoint.
func (s *Scanner) Status() (running bool, lastScan time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running, s.lastScanTime
}

// buildContext fetches prices and gas in parallel and assembles the market
// snapshot for this scan. Fetch failures degrade to cached values where a
// cache is wired.
func (s *Scanner) buildContext(ctx context.Context) (*Context, error) {
	chains := s.deps.Builder.SupportedChains()

	var prices map[string]float64
	gas := make(map[string]float64, len(chains))
	var gasMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		prices, err = s.fetchPrices(gctx)
		return err
	})
	for _, chain := range chains {
		chain := chain
		g.Go(func() error {
			gwei, err := s.fetchGas(gctx, chain)
			if err != nil {
				s.logger.Warn().Err(err).Str("chain", chain).Msg("gas fetch failed")
				return nil
			}
			gasMu.Lock()
			gas[chain] = gwei
			gasMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	scanCtx := &Context{
		Prices: make(map[string]float64, len(prices)*len(chains)),
		Gas:    gas,
		Native: make(map[string]float64, len(chains)),
	}
	now := time.Now().UTC()
	for symbol, price := range prices {
		for _, chain := range chains {
			scanCtx.Prices[contextKey(symbol, chain)] = price
			if s.deps.Tokens != nil {
				token := types.Token{Symbol: symbol, Chain: chain, Name: symbol, CurrentPrice: price, UpdatedAt: now}
				if err := s.deps.Tokens.UpsertToken(ctx, token); err != nil {
					s.logger.Warn().Err(err).Str("token", symbol).Msg("token upsert failed")
				}
			}
		}
	}
	for _, chain := range chains {
		native, ok := NativeTokens[chain]
		if !ok {
			continue
		}
		if price, ok := scanCtx.Prices[contextKey(native, chain)]; ok {
			scanCtx.Native[chain] = price
		}
	}
	return scanCtx, nil
}

func (s *Scanner) fetchPrices(ctx context.Context) (map[string]float64, error) {
	prices, err := s.deps.Prices.FetchPrices(ctx)
	if err != nil {
		if s.deps.Metrics != nil {
			s.deps.Metrics.RecordFetchError("prices")
		}
		return nil, fmt.Errorf("price refresh failed: %w", err)
	}
	if s.deps.PriceCache != nil {
		now := time.Now().UTC()
		for symbol, price := range prices {
			for _, chain := range s.deps.Builder.SupportedChains() {
				if err := s.deps.PriceCache.SetPrice(ctx, symbol, chain, price, now); err != nil {
					s.logger.Debug().Err(err).Msg("price cache write failed")
				}
			}
		}
	}
	return prices, nil
}

func (s *Scanner) fetchGas(ctx context.Context, chain string) (float64, error) {
	gwei, err := s.deps.Gas.FetchGasPrice(ctx, chain)
	if err != nil {
		if s.deps.Metrics != nil {
			s.deps.Metrics.RecordFetchError("gas_" + chain)
		}
		// Fall back to the last cached value if one is fresh enough.
		if s.deps.GasCache != nil {
			if cached, _, cacheErr := s.deps.GasCache.GetGasPrice(ctx, chain); cacheErr == nil {
				return cached, nil
			}
		}
		return 0, err
	}
	if s.deps.GasCache != nil {
		if err := s.deps.GasCache.SetGasPrice(ctx, chain, gwei, time.Now().UTC()); err != nil {
			s.logger.Debug().Err(err).Msg("gas cache write failed")
		}
	}
	return gwei, nil
}

// Evaluate judges one token on one ordered chain pair against the snapshot.
// It returns nil when the snapshot is missing data for the pair.
func (s *Scanner) Evaluate(token, chainFrom, chainTo string, scanCtx *Context) *Evaluation {
	priceFrom, okFrom := scanCtx.Prices[contextKey(token, chainFrom)]
	priceTo, okTo := scanCtx.Prices[contextKey(token, chainTo)]
	if !okFrom || !okTo || priceFrom <= 0 || priceTo <= 0 {
		return nil
	}

	gasFrom, nativeFrom := scanCtx.Gas[chainFrom], scanCtx.Native[chainFrom]
	gasTo, nativeTo := scanCtx.Gas[chainTo], scanCtx.Native[chainTo]
	if gasFrom <= 0 || gasTo <= 0 || nativeFrom <= 0 || nativeTo <= 0 {
		return nil
	}

	priceDiff := priceTo - priceFrom
	priceDiffPercent := priceDiff / priceFrom * 100
	gasCost := EstimateGasCostUSD(gasFrom, nativeFrom) + EstimateGasCostUSD(gasTo, nativeTo)
	net := priceDiff - gasCost
	profitable := net > 0

	var roi *float64
	if gasCost > 0 {
		r := net / gasCost * 100
		roi = &r
	}

	eval := &Evaluation{
		Token:            token,
		ChainFrom:        chainFrom,
		ChainTo:          chainTo,
		PriceFrom:        priceFrom,
		PriceTo:          priceTo,
		PriceDiffUSD:     priceDiff,
		PriceDiffPercent: priceDiffPercent,
		GasCostUSD:       gasCost,
		NetProfitUSD:     net,
		ROI:              roi,
		Profitable:       profitable,
	}

	// Scoring a gap that cannot be profitable is wasted inference.
	if profitable {
		result := s.deps.Scorer.Score(types.Observation{
			Token:            token,
			Chain:            chainFrom,
			ChainTo:          chainTo,
			Price:            priceDiff,
			Gas:              gasCost,
			PriceDiffPercent: &priceDiffPercent,
		})
		eval.Score = clamp01(result.Score)
	}

	return eval
}

func (s *Scanner) scanPair(ctx context.Context, token, chainFrom, chainTo string, scanCtx *Context, result *Result) error {
	eval := s.Evaluate(token, chainFrom, chainTo, scanCtx)
	if eval == nil {
		return nil
	}

	s.appendHistory(ctx, eval)

	if !eval.Profitable {
		return nil
	}

	now := time.Now().UTC()
	opp := &types.Opportunity{
		ID:               uuid.NewString(),
		Token:            eval.Token,
		ChainFrom:        eval.ChainFrom,
		ChainTo:          eval.ChainTo,
		PriceFrom:        eval.PriceFrom,
		PriceTo:          eval.PriceTo,
		PriceDiff:        eval.PriceDiffUSD,
		PriceDiffPercent: eval.PriceDiffPercent,
		GasCost:          eval.GasCostUSD,
		NetProfit:        eval.NetProfitUSD,
		ROI:              eval.ROI,
		Score:            eval.Score,
		Status:           types.OpportunityActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	created, err := s.deps.Opps.Upsert(ctx, opp)
	if err != nil {
		return err
	}
	if created {
		result.Found++
	} else {
		result.Updated++
	}

	if s.deps.Rank != nil {
		if err := s.deps.Rank.Upsert(opp); err != nil {
			s.logger.Warn().Err(err).Msg("ranking upsert failed")
		}
	}
	if s.deps.WS != nil {
		if err := s.deps.WS.BroadcastOpportunity(opp); err != nil {
			s.logger.Debug().Err(err).Msg("opportunity broadcast failed")
		}
	}
	if created {
		s.alert(ctx, opp)
	}
	return nil
}

// expireStale re-evaluates every active opportunity against the fresh
// snapshot and expires the ones no longer profitable.
func (s *Scanner) expireStale(ctx context.Context, scanCtx *Context, result *Result) {
	active, _, err := s.deps.Opps.List(ctx, interfaces.OpportunityFilter{Status: types.OpportunityActive})
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("list active: %v", err))
		return
	}

	for _, opp := range active {
		eval := s.Evaluate(opp.Token, opp.ChainFrom, opp.ChainTo, scanCtx)
		if eval != nil && eval.Profitable {
			continue
		}
		if err := s.deps.Opps.Expire(ctx, opp.Token, opp.ChainFrom, opp.ChainTo); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("expire %s: %v", opp.ID, err))
			continue
		}
		if s.deps.Rank != nil {
			s.deps.Rank.Remove(opp.Token, opp.ChainFrom, opp.ChainTo)
		}
		result.Expired++
	}
}

// appendHistory stores the evaluation as a labeled training sample.
func (s *Scanner) appendHistory(ctx context.Context, eval *Evaluation) {
	if s.deps.History == nil {
		return
	}
	roi := 0.0
	if eval.ROI != nil {
		roi = *eval.ROI
	}
	rec := types.HistoricalRecord{
		Token:            eval.Token,
		ChainFrom:        eval.ChainFrom,
		ChainTo:          eval.ChainTo,
		GrossProfit:      eval.PriceDiffUSD,
		NetProfit:        eval.NetProfitUSD,
		GasCost:          eval.GasCostUSD,
		PriceDiff:        eval.PriceDiffUSD,
		PriceDiffPercent: eval.PriceDiffPercent,
		ROI:              roi,
		TradeVolume:      features.DefaultTradeVolume,
		Profitable:       eval.Profitable,
		Timestamp:        time.Now().UTC(),
	}
	if err := s.deps.History.Append(ctx, rec); err != nil {
		s.logger.Debug().Err(err).Msg("history append failed")
	}
}

func (s *Scanner) alert(ctx context.Context, opp *types.Opportunity) {
	if s.deps.Alerts == nil || opp.Score < s.deps.Alerts.ScoreThreshold() {
		return
	}
	alert := &interfaces.Alert{
		Level: "info",
		Message: fmt.Sprintf("New arbitrage opportunity: %s %s -> %s, net profit $%.2f",
			opp.Token, opp.ChainFrom, opp.ChainTo, opp.NetProfit),
		Token:     opp.Token,
		ChainFrom: opp.ChainFrom,
		ChainTo:   opp.ChainTo,
		Score:     opp.Score,
		Timestamp: time.Now().UTC(),
	}
	if err := s.deps.Alerts.SendAlert(ctx, alert); err != nil {
		s.logger.Debug().Err(err).Msg("alert dispatch failed")
	}
	if s.deps.WS != nil {
		if err := s.deps.WS.BroadcastAlert(alert); err != nil {
			s.logger.Debug().Err(err).Msg("alert broadcast failed")
		}
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
