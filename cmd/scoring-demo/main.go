// Command scoring-demo benchmarks the scoring pipeline end to end: it trains
// a classifier on synthetic records, then measures heuristic and model
// scoring throughput plus ranking queue performance.
package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/arbscope/cross-chain-arb-engine/pkg/features"
	"github.com/arbscope/cross-chain-arb-engine/pkg/model"
	"github.com/arbscope/cross-chain-arb-engine/pkg/ranking"
	"github.com/arbscope/cross-chain-arb-engine/pkg/scoring"
	"github.com/arbscope/cross-chain-arb-engine/pkg/training"
	"github.com/arbscope/cross-chain-arb-engine/pkg/types"
)

var (
	demoTokens = []string{"ETH", "USDT", "USDC", "BNB", "MATIC"}
	demoChains = []string{"ethereum", "polygon", "bsc"}
)

func main() {
	fmt.Println("Arbitrage Scoring Performance Demo")
	fmt.Println("==================================")

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel)
	builder := features.NewBuilder(demoTokens, demoChains)

	fmt.Println("\nTest 1: Heuristic scoring throughput")
	heuristicEngine := scoring.NewEngine(builder, nil, nil, logger)
	benchmarkScoring(heuristicEngine, builder)

	fmt.Println("\nTest 2: Classifier scoring throughput")
	adapter := trainDemoModel(builder, logger)
	modelEngine := scoring.NewEngine(builder, adapter, nil, logger)
	benchmarkScoring(modelEngine, builder)

	fmt.Println("\nTest 3: Ranking queue throughput")
	benchmarkRanking()

	fmt.Println("\nDemo completed")
}

func trainDemoModel(builder *features.Builder, logger zerolog.Logger) *model.Adapter {
	dir, err := os.MkdirTemp("", "scoring-demo")
	if err != nil {
		log.Fatalf("temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	modelPath := filepath.Join(dir, "model.json")
	schemaPath := filepath.Join(dir, "features.txt")

	pipeline := training.NewPipeline(builder, training.Config{
		ModelPath:  modelPath,
		SchemaPath: schemaPath,
	}, logger)

	records := training.GenerateSynthetic(2000, 42, builder)
	start := time.Now()
	report, err := pipeline.Train(context.Background(), records)
	if err != nil {
		log.Fatalf("training failed: %v", err)
	}
	fmt.Printf("   Trained on %d records in %v (test accuracy %.3f)\n",
		report.Samples, time.Since(start).Round(time.Millisecond), report.TestAccuracy)

	adapter := model.NewAdapter(logger)
	if err := adapter.Load(modelPath, schemaPath); err != nil {
		log.Fatalf("model load failed: %v", err)
	}
	return adapter
}

func benchmarkScoring(engine *scoring.Engine, builder *features.Builder) {
	rng := rand.New(rand.NewSource(7))
	const n = 100000

	observations := make([]types.Observation, n)
	for i := range observations {
		observations[i] = types.Observation{
			Token: demoTokens[rng.Intn(len(demoTokens))],
			Chain: demoChains[rng.Intn(len(demoChains))],
			Price: rng.Float64() * 500,
			Gas:   1 + rng.Float64()*50,
		}
	}

	start := time.Now()
	profitable := 0
	for _, obs := range observations {
		if engine.Score(obs).Profitable {
			profitable++
		}
	}
	elapsed := time.Since(start)

	fmt.Printf("   Scored %d observations in %v (%.0f ops/sec, %d profitable)\n",
		n, elapsed.Round(time.Millisecond), float64(n)/elapsed.Seconds(), profitable)
}

func benchmarkRanking() {
	rng := rand.New(rand.NewSource(11))
	queue := ranking.NewQueue()
	const n = 50000

	start := time.Now()
	for i := 0; i < n; i++ {
		roi := rng.Float64() * 500
		opp := &types.Opportunity{
			ID:        uuid.NewString(),
			Token:     demoTokens[rng.Intn(len(demoTokens))],
			ChainFrom: demoChains[rng.Intn(len(demoChains))],
			ChainTo:   demoChains[rng.Intn(len(demoChains))],
			NetProfit: rng.Float64() * 100,
			ROI:       &roi,
			Score:     rng.Float64(),
			Status:    types.OpportunityActive,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		if err := queue.Upsert(opp); err != nil {
			log.Fatalf("queue upsert: %v", err)
		}
	}
	elapsed := time.Since(start)

	top := queue.Top(10)
	fmt.Printf("   Upserted %d opportunities in %v (%.0f ops/sec, queue size %d)\n",
		n, elapsed.Round(time.Millisecond), float64(n)/elapsed.Seconds(), queue.Size())
	if len(top) > 0 {
		fmt.Printf("   Best score: %.4f (%s %s -> %s)\n",
			top[0].Score, top[0].Token, top[0].ChainFrom, top[0].ChainTo)
	}
}
