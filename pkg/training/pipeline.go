// Package training fits the profitability classifier on historical records
// and persists the model together with the exact feature schema it was
// fitted on.
package training

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/arbscope/cross-chain-arb-engine/pkg/features"
	"github.com/arbscope/cross-chain-arb-engine/pkg/interfaces"
	"github.com/arbscope/cross-chain-arb-engine/pkg/model"
	"github.com/arbscope/cross-chain-arb-engine/pkg/types"
)

// MinSamples is the smallest dataset a training run accepts. Fewer samples
// than this produce a model too unreliable to persist.
const MinSamples = 10

// DefaultTestFraction is the share of samples held out for evaluation.
const DefaultTestFraction = 0.2

// defaultSeed keeps the train/test split reproducible across runs.
const defaultSeed = 42

const lockFileName = ".train.lock"

// Config controls one training run. Zero values take the documented
// defaults.
type Config struct {
	ModelPath    string
	SchemaPath   string
	MinSamples   int
	TestFraction float64
	Seed         int64
}

func (c Config) withDefaults() Config {
	if c.MinSamples <= 0 {
		c.MinSamples = MinSamples
	}
	if c.TestFraction <= 0 || c.TestFraction >= 1 {
		c.TestFraction = DefaultTestFraction
	}
	if c.Seed == 0 {
		c.Seed = defaultSeed
	}
	return c
}

// Pipeline trains and persists the classifier. It reuses the same feature
// builder as the scoring engine, so training and inference cannot drift
// apart on derivation or encoding rules.
type Pipeline struct {
	builder *features.Builder
	cfg     Config
	logger  zerolog.Logger
}

// NewPipeline creates a training pipeline over the given feature builder.
func NewPipeline(builder *features.Builder, cfg Config, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		builder: builder,
		cfg:     cfg.withDefaults(),
		logger:  logger.With().Str("component", "training").Logger(),
	}
}

// Train fits a classifier on the records and atomically persists the model
// artifact and its feature schema. It refuses datasets below the minimum
// sample count with a *types.InsufficientDataError and refuses to run while
// another training run holds the lock file.
func (p *Pipeline) Train(ctx context.Context, records []types.HistoricalRecord) (*interfaces.TrainingReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(records) < p.cfg.MinSamples {
		return nil, &types.InsufficientDataError{Samples: len(records), Minimum: p.cfg.MinSamples}
	}

	unlock, err := p.acquireLock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	schema := p.builder.Schema()
	matrix := make([][]float64, len(records))
	labels := make([]int, len(records))
	for i, rec := range records {
		matrix[i] = schema.Project(p.builder.BuildRecord(rec))
		labels[i] = rec.Label()
	}

	trainIdx, testIdx := stratifiedSplit(labels, p.cfg.TestFraction, p.cfg.Seed)
	trainX, trainY := subset(matrix, labels, trainIdx)
	testX, testY := subset(matrix, labels, testIdx)

	p.logger.Info().
		Int("samples", len(records)).
		Int("train", len(trainIdx)).
		Int("test", len(testIdx)).
		Int("features", schema.Len()).
		Msg("fitting classifier")

	fitted, err := model.Fit(trainX, trainY)
	if err != nil {
		return nil, fmt.Errorf("failed to fit classifier: %w", err)
	}

	report := &interfaces.TrainingReport{
		Samples:      len(records),
		TrainSamples: len(trainIdx),
		TestSamples:  len(testIdx),
		Features:     schema.Len(),
		ModelPath:    p.cfg.ModelPath,
		SchemaPath:   p.cfg.SchemaPath,
	}
	report.TrainAccuracy = evaluate(fitted, trainX, trainY, nil)
	report.TestAccuracy = evaluate(fitted, testX, testY, &report.Confusion)

	if err := fitted.Save(p.cfg.ModelPath); err != nil {
		return nil, err
	}
	if err := schema.Save(p.cfg.SchemaPath); err != nil {
		return nil, err
	}

	p.logger.Info().
		Float64("train_accuracy", report.TrainAccuracy).
		Float64("test_accuracy", report.TestAccuracy).
		Str("model", p.cfg.ModelPath).
		Str("schema", p.cfg.SchemaPath).
		Msg("training complete")
	return report, nil
}

// acquireLock takes an advisory lock next to the model artifact so two
// training runs cannot interleave their writes.
func (p *Pipeline) acquireLock() (func(), error) {
	dir := filepath.Dir(p.cfg.ModelPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create model directory: %w", err)
	}

	lockPath := filepath.Join(dir, lockFileName)
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("another training run is in progress (lock %s held)", lockPath)
		}
		return nil, fmt.Errorf("failed to acquire training lock: %w", err)
	}
	f.Close()
	return func() { os.Remove(lockPath) }, nil
}

// stratifiedSplit partitions sample indices into train and test sets. When
// both classes are present each class is split separately so the test set
// keeps the label distribution; single-class data falls back to a plain
// shuffle split.
func stratifiedSplit(labels []int, testFraction float64, seed int64) (train, test []int) {
	rng := rand.New(rand.NewSource(seed))

	var positives, negatives []int
	for i, label := range labels {
		if label == 1 {
			positives = append(positives, i)
		} else {
			negatives = append(negatives, i)
		}
	}

	split := func(idx []int) {
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		cut := int(float64(len(idx)) * testFraction)
		test = append(test, idx[:cut]...)
		train = append(train, idx[cut:]...)
	}

	if len(positives) == 0 || len(negatives) == 0 {
		all := append(positives, negatives...)
		split(all)
		return train, test
	}
	split(positives)
	split(negatives)
	return train, test
}

func subset(matrix [][]float64, labels []int, idx []int) ([][]float64, []int) {
	x := make([][]float64, len(idx))
	y := make([]int, len(idx))
	for i, j := range idx {
		x[i] = matrix[j]
		y[i] = labels[j]
	}
	return x, y
}

// evaluate returns accuracy over the set and, when confusion is non-nil,
// fills the confusion matrix indexed [actual][predicted]. An empty set
// yields accuracy 0.
func evaluate(m *model.LogisticModel, matrix [][]float64, labels []int, confusion *[2][2]int) float64 {
	if len(matrix) == 0 {
		return 0
	}
	correct := 0
	for i, row := range matrix {
		predicted, _, err := m.PredictLabel(row)
		if err != nil {
			continue
		}
		if predicted == labels[i] {
			correct++
		}
		if confusion != nil {
			confusion[labels[i]][predicted]++
		}
	}
	return float64(correct) / float64(len(matrix))
}
