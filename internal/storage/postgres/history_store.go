package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arbscope/cross-chain-arb-engine/pkg/types"
)

// HistoryStore implements interfaces.HistoryStore using PostgreSQL.
type HistoryStore struct {
	pool *pgxpool.Pool
}

// NewHistoryStore creates a HistoryStore backed by the given pool.
func NewHistoryStore(pool *pgxpool.Pool) *HistoryStore {
	return &HistoryStore{pool: pool}
}

// Append stores one labeled record.
func (s *HistoryStore) Append(ctx context.Context, rec types.HistoricalRecord) error {
	const query = `
		INSERT INTO history (
			token, chain_from, chain_to, gross_profit, net_profit, gas_cost,
			price_diff, price_diff_percent, roi, trade_volume, profitable, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := s.pool.Exec(ctx, query,
		rec.Token, rec.ChainFrom, rec.ChainTo, rec.GrossProfit, rec.NetProfit, rec.GasCost,
		rec.PriceDiff, rec.PriceDiffPercent, rec.ROI, rec.TradeVolume, rec.Profitable, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("postgres: append history record: %w", err)
	}
	return nil
}

// ListRecords returns up to limit records, newest first. A non-positive
// limit returns everything.
func (s *HistoryStore) ListRecords(ctx context.Context, limit int) ([]types.HistoricalRecord, error) {
	query := `
		SELECT token, chain_from, chain_to, gross_profit, net_profit, gas_cost,
			price_diff, price_diff_percent, roi, trade_volume, profitable, created_at
		FROM history ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list history: %w", err)
	}
	defer rows.Close()

	var records []types.HistoricalRecord
	for rows.Next() {
		var rec types.HistoricalRecord
		if err := rows.Scan(
			&rec.Token, &rec.ChainFrom, &rec.ChainTo, &rec.GrossProfit, &rec.NetProfit, &rec.GasCost,
			&rec.PriceDiff, &rec.PriceDiffPercent, &rec.ROI, &rec.TradeVolume, &rec.Profitable, &rec.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan history record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
