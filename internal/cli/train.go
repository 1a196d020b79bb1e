package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/arbscope/cross-chain-arb-engine/internal/config"
	"github.com/arbscope/cross-chain-arb-engine/internal/logging"
	"github.com/arbscope/cross-chain-arb-engine/internal/storage/postgres"
	"github.com/arbscope/cross-chain-arb-engine/pkg/features"
	"github.com/arbscope/cross-chain-arb-engine/pkg/training"
	"github.com/arbscope/cross-chain-arb-engine/pkg/types"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the opportunity classifier",
	Long: `Train the logistic regression classifier on historical arbitrage
records and persist the model artifact with its feature schema. Records come
from the configured database, or are generated synthetically with --synthetic
when no history exists yet.`,
	RunE: runTrain,
}

var (
	useSynthetic bool
	sampleCount  int
	trainSeed    int64
	maxRecords   int
)

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().BoolVar(&useSynthetic, "synthetic", false, "train on generated synthetic records")
	trainCmd.Flags().IntVar(&sampleCount, "samples", 0, "number of synthetic samples (default from config)")
	trainCmd.Flags().Int64Var(&trainSeed, "seed", 42, "random seed for splitting and synthetic generation")
	trainCmd.Flags().IntVar(&maxRecords, "max-records", 10000, "maximum historical records to load")
	trainCmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "output the training report as JSON")
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := logging.New(logging.Config{Level: cfg.Logging.Level, Pretty: true})

	builder := features.NewBuilder(cfg.Engine.SupportedTokens, cfg.Engine.SupportedChains)
	pipeline := training.NewPipeline(builder, training.Config{
		ModelPath:    cfg.Model.ModelPath,
		SchemaPath:   cfg.Model.SchemaPath,
		MinSamples:   cfg.Model.MinSamples,
		TestFraction: cfg.Model.TestFraction,
		Seed:         trainSeed,
	}, logger)

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	records, err := loadTrainingRecords(ctx, cfg, builder)
	if err != nil {
		return err
	}
	fmt.Printf("Training on %d records...\n", len(records))

	report, err := pipeline.Train(ctx, records)
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}

	if jsonOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	}

	fmt.Println("Training complete")
	fmt.Printf("  Samples:        %d (train %d / test %d)\n", report.Samples, report.TrainSamples, report.TestSamples)
	fmt.Printf("  Features:       %d\n", report.Features)
	fmt.Printf("  Train accuracy: %.4f\n", report.TrainAccuracy)
	fmt.Printf("  Test accuracy:  %.4f\n", report.TestAccuracy)
	fmt.Printf("  Confusion:      TN=%d FP=%d FN=%d TP=%d\n",
		report.Confusion[0][0], report.Confusion[0][1], report.Confusion[1][0], report.Confusion[1][1])
	fmt.Printf("  Model:          %s\n", report.ModelPath)
	fmt.Printf("  Schema:         %s\n", report.SchemaPath)
	return nil
}

func loadTrainingRecords(ctx context.Context, cfg *config.Config, builder *features.Builder) ([]types.HistoricalRecord, error) {
	if useSynthetic {
		n := sampleCount
		if n <= 0 {
			n = cfg.Model.SyntheticSamples
		}
		fmt.Printf("Generating %d synthetic records (seed %d)\n", n, trainSeed)
		return training.GenerateSynthetic(n, trainSeed, builder), nil
	}

	if cfg.Database.PostgresURL == "" {
		return nil, fmt.Errorf("no database configured; use --synthetic to train without history")
	}

	client, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.PostgresURL,
		MaxConns: cfg.Database.MaxOpenConns,
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	defer client.Close()

	records, err := postgres.NewHistoryStore(client.Pool()).ListRecords(ctx, maxRecords)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return records, nil
}
