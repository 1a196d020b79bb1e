// Package app assembles the engine's components into a running application.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/arbscope/cross-chain-arb-engine/internal/api"
	"github.com/arbscope/cross-chain-arb-engine/internal/cache/redis"
	"github.com/arbscope/cross-chain-arb-engine/internal/config"
	"github.com/arbscope/cross-chain-arb-engine/internal/fetch"
	"github.com/arbscope/cross-chain-arb-engine/internal/logging"
	"github.com/arbscope/cross-chain-arb-engine/internal/storage/postgres"
	"github.com/arbscope/cross-chain-arb-engine/pkg/features"
	"github.com/arbscope/cross-chain-arb-engine/pkg/interfaces"
	"github.com/arbscope/cross-chain-arb-engine/pkg/metrics"
	"github.com/arbscope/cross-chain-arb-engine/pkg/model"
	"github.com/arbscope/cross-chain-arb-engine/pkg/ranking"
	"github.com/arbscope/cross-chain-arb-engine/pkg/scanner"
	"github.com/arbscope/cross-chain-arb-engine/pkg/scoring"
	"github.com/arbscope/cross-chain-arb-engine/pkg/types"
	"github.com/arbscope/cross-chain-arb-engine/pkg/validation"
)

// Stores groups the persistence collaborators. All fields are nil when no
// database is configured; the engine then runs in-memory only.
type Stores struct {
	Client  *postgres.Client
	Tokens  interfaces.TokenStore
	Opps    interfaces.OpportunityStore
	History interfaces.HistoryStore
}

// Caches groups the optional Redis-backed caches.
type Caches struct {
	Client *redis.Client
	Prices interfaces.PriceCache
	Gas    interfaces.GasCache
}

func newLogger(cfg *config.Config) zerolog.Logger {
	return logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Pretty: cfg.Logging.Pretty,
	})
}

func newBuilder(cfg *config.Config) *features.Builder {
	return features.NewBuilder(cfg.Engine.SupportedTokens, cfg.Engine.SupportedChains)
}

func newAdapter(cfg *config.Config, logger zerolog.Logger) *model.Adapter {
	adapter := model.NewAdapter(logger)
	if err := adapter.Load(cfg.Model.ModelPath, cfg.Model.SchemaPath); err != nil {
		var missing *types.MissingArtifactError
		if errors.As(err, &missing) {
			logger.Warn().Str("path", missing.Path).Msg("model artifact missing, scoring falls back to heuristic")
		} else {
			logger.Warn().Err(err).Msg("model load failed, scoring falls back to heuristic")
		}
	}
	return adapter
}

func newCollector() *metrics.Collector {
	return metrics.NewCollector()
}

func newEngine(builder *features.Builder, adapter *model.Adapter, collector *metrics.Collector, logger zerolog.Logger) *scoring.Engine {
	return scoring.NewEngine(builder, adapter, collector, logger)
}

func newAlertManager(cfg *config.Config, logger zerolog.Logger) *metrics.AlertManager {
	amCfg := metrics.DefaultAlertManagerConfig()
	if cfg.Monitoring.AlertThreshold > 0 {
		amCfg.ScoreThreshold = cfg.Monitoring.AlertThreshold
	}
	if cfg.Monitoring.AlertWebhookURL != "" {
		amCfg.EnableWebhooks = true
		amCfg.WebhookURL = cfg.Monitoring.AlertWebhookURL
	}
	return metrics.NewAlertManager(amCfg, logger)
}

func newStores(lc fx.Lifecycle, cfg *config.Config, logger zerolog.Logger) (*Stores, error) {
	stores := &Stores{}
	if cfg.Database.PostgresURL == "" {
		logger.Warn().Msg("no postgres url configured, opportunities are not persisted")
		return stores, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.PostgresURL,
		MaxConns: cfg.Database.MaxOpenConns,
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := client.Migrate(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	stores.Client = client
	stores.Tokens = postgres.NewTokenStore(client.Pool())
	stores.Opps = postgres.NewOpportunityStore(client.Pool())
	stores.History = postgres.NewHistoryStore(client.Pool())

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			client.Close()
			return nil
		},
	})
	return stores, nil
}

func newCaches(lc fx.Lifecycle, cfg *config.Config, logger zerolog.Logger) *Caches {
	caches := &Caches{}
	if cfg.Database.RedisURL == "" {
		return caches
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := redis.New(ctx, redis.ClientConfig{URL: cfg.Database.RedisURL})
	if err != nil {
		// The cache is an optimization, not a dependency.
		logger.Warn().Err(err).Msg("redis unavailable, running without cache")
		return caches
	}

	caches.Client = client
	caches.Prices = redis.NewPriceCache(client, cfg.Database.CacheTTL)
	caches.Gas = redis.NewGasCache(client, cfg.Database.CacheTTL)

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return caches
}

func newPriceSource(cfg *config.Config, logger zerolog.Logger) interfaces.PriceSource {
	return fetch.NewCoinGeckoSource(cfg.Fetch.PriceAPIURL, cfg.Engine.SupportedTokens, cfg.Fetch.RequestTimeout, logger)
}

func newGasRouter(lc fx.Lifecycle, cfg *config.Config, logger zerolog.Logger) *fetch.Router {
	sources := map[string]interfaces.GasSource{
		"polygon": fetch.NewPolygonGasSource(cfg.Fetch.PolygonGasURL, cfg.Fetch.RequestTimeout, logger),
		"bsc":     fetch.NewBscGasSource(cfg.Fetch.BscGasURL, cfg.Fetch.RequestTimeout, logger),
	}
	router := fetch.NewRouter(sources)

	var rpc *fetch.RPCGasSource
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if cfg.Fetch.EthereumRPCURL == "" {
				return nil
			}
			src, err := fetch.NewRPCGasSource(ctx, cfg.Fetch.EthereumRPCURL, logger)
			if err != nil {
				logger.Warn().Err(err).Msg("ethereum rpc unavailable, no gas source for ethereum")
				return nil
			}
			rpc = src
			router.Register("ethereum", src)
			return nil
		},
		OnStop: func(context.Context) error {
			if rpc != nil {
				rpc.Close()
			}
			return nil
		},
	})
	return router
}

func newScanner(cfg *config.Config, builder *features.Builder, engine *scoring.Engine,
	prices interfaces.PriceSource, gas *fetch.Router, stores *Stores, caches *Caches,
	rank *ranking.Queue, ws *api.WebSocketServer, alerts *metrics.AlertManager,
	collector *metrics.Collector, logger zerolog.Logger) *scanner.Scanner {

	return scanner.New(scanner.Config{Interval: cfg.Scanner.Interval}, scanner.Deps{
		Builder:    builder,
		Scorer:     engine,
		Prices:     prices,
		Gas:        gas,
		Tokens:     stores.Tokens,
		Opps:       stores.Opps,
		History:    stores.History,
		PriceCache: caches.Prices,
		GasCache:   caches.Gas,
		Rank:       rank,
		WS:         ws,
		Alerts:     alerts,
		Metrics:    collector,
	}, logger)
}

func newHandlers(cfg *config.Config, engine *scoring.Engine, builder *features.Builder,
	adapter *model.Adapter, stores *Stores, rank *ranking.Queue, scn *scanner.Scanner,
	collector *metrics.Collector, logger zerolog.Logger) *api.Handlers {

	return api.NewHandlers(api.HandlerDeps{
		Scorer:    engine,
		Validator: validation.NewValidator(cfg.Engine.SupportedChains),
		Builder:   builder,
		ModelInfo: adapter,
		Opps:      stores.Opps,
		Rank:      rank,
		Scanner:   scn,
		Collector: collector,
		Version:   Version,
	}, logger)
}

func newWebSocketServer(logger zerolog.Logger) *api.WebSocketServer {
	return api.NewWebSocketServer(logger)
}

func newAPIServer(cfg *config.Config, handlers *api.Handlers, ws *api.WebSocketServer, logger zerolog.Logger) *api.Server {
	return api.NewServer(&cfg.Server, handlers, ws, logger)
}

// Version is stamped at build time via -ldflags.
var Version = "dev"

func run(lc fx.Lifecycle, cfg *config.Config, server *api.Server,
	alerts *metrics.AlertManager, scn *scanner.Scanner, logger zerolog.Logger) {

	var scanCancel context.CancelFunc

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := alerts.Start(ctx); err != nil {
				return fmt.Errorf("start alert manager: %w", err)
			}
			if err := server.Start(ctx); err != nil {
				return fmt.Errorf("start api server: %w", err)
			}
			if cfg.Scanner.Enabled {
				scanCtx, cancel := context.WithCancel(context.Background())
				scanCancel = cancel
				go func() {
					if err := scn.Run(scanCtx); err != nil && !errors.Is(err, context.Canceled) {
						logger.Error().Err(err).Msg("scanner stopped")
					}
				}()
			}
			logger.Info().Str("version", Version).Msg("arbitrage engine started")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if scanCancel != nil {
				scanCancel()
			}
			if err := server.Stop(ctx); err != nil {
				logger.Warn().Err(err).Msg("api server stop failed")
			}
			if err := alerts.Stop(); err != nil {
				logger.Warn().Err(err).Msg("alert manager stop failed")
			}
			logger.Info().Msg("arbitrage engine stopped")
			return nil
		},
	})
}

// Module provides the fx module for dependency injection
var Module = fx.Options(
	fx.Provide(
		config.Load,
		newLogger,
		newBuilder,
		newAdapter,
		newCollector,
		newEngine,
		newAlertManager,
		newStores,
		newCaches,
		newPriceSource,
		newGasRouter,
		ranking.NewQueue,
		newScanner,
		newWebSocketServer,
		newHandlers,
		newAPIServer,
	),
	fx.Invoke(run),
)

// New builds the full application. The returned fx.App runs until the
// process receives a termination signal.
func New() *fx.App {
	return fx.New(
		Module,
		fx.NopLogger,
	)
}
