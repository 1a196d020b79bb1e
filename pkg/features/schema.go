// Package features derives the numeric feature vectors shared by the
// training pipeline and the scoring engine. The ordered feature schema is the
// single source of truth for column order; training freezes it and inference
// only ever projects onto it.
package features

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Feature column names shared between training and inference. The one-hot
// prefixes are combined with normalized token symbols and chain identifiers.
const (
	FeatGrossProfit      = "gross_profit"
	FeatNetProfit        = "net_profit"
	FeatGasCost          = "gas_cost"
	FeatPriceDiff        = "price_diff"
	FeatPriceDiffPercent = "price_diff_percent"
	FeatROI              = "roi"
	FeatTradeVolume      = "trade_volume"

	SymbolPrefix    = "symbol_"
	ChainFromPrefix = "chainFrom_"
	ChainToPrefix   = "chainTo_"
)

// baseFeatures lists the numeric columns in canonical order.
var baseFeatures = []string{
	FeatGrossProfit,
	FeatNetProfit,
	FeatGasCost,
	FeatPriceDiff,
	FeatPriceDiffPercent,
	FeatROI,
	FeatTradeVolume,
}

// Schema is the frozen, ordered list of feature names a trained classifier
// expects as input. It is created once at training time and read-only
// afterwards.
type Schema struct {
	names []string
	index map[string]int
}

// NewSchema builds the canonical schema for the given supported token and
// chain sets: base numeric columns, then symbol one-hots, then chainFrom and
// chainTo one-hots. Token and chain casing is normalized before encoding.
func NewSchema(supportedTokens, supportedChains []string) *Schema {
	names := make([]string, 0, len(baseFeatures)+len(supportedTokens)+2*len(supportedChains))
	names = append(names, baseFeatures...)
	for _, token := range supportedTokens {
		names = append(names, SymbolPrefix+strings.ToUpper(token))
	}
	for _, chain := range supportedChains {
		names = append(names, ChainFromPrefix+strings.ToLower(chain))
	}
	for _, chain := range supportedChains {
		names = append(names, ChainToPrefix+strings.ToLower(chain))
	}
	return newSchema(names)
}

func newSchema(names []string) *Schema {
	index := make(map[string]int, len(names))
	for i, name := range names {
		index[name] = i
	}
	return &Schema{names: names, index: index}
}

// Names returns a copy of the ordered feature names.
func (s *Schema) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Len returns the number of feature columns.
func (s *Schema) Len() int {
	return len(s.names)
}

// Project maps a built feature mapping onto the schema order. Names missing
// from the mapping default to 0; computed features not present in the schema
// are dropped. Projection is idempotent: the same mapping always yields the
// same vector.
func (s *Schema) Project(features map[string]float64) []float64 {
	vector := make([]float64, len(s.names))
	for i, name := range s.names {
		vector[i] = features[name]
	}
	return vector
}

// Save writes the schema to path, one feature name per line, via a temp file
// rename so a concurrent reader never observes a partial manifest.
func (s *Schema) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create schema directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".schema-*")
	if err != nil {
		return fmt.Errorf("failed to create temp schema file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for _, name := range s.names {
		if _, err := fmt.Fprintln(w, name); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write schema: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush schema: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close schema file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace schema file: %w", err)
	}
	return nil
}

// LoadSchema reads an ordered feature manifest written by Save.
func LoadSchema(path string) (*Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read schema %s: %w", path, err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("schema %s contains no feature names", path)
	}

	return newSchema(names), nil
}
