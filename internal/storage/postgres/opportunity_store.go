package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arbscope/cross-chain-arb-engine/pkg/interfaces"
	"github.com/arbscope/cross-chain-arb-engine/pkg/types"
)

// OpportunityStore implements interfaces.OpportunityStore using PostgreSQL.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates an OpportunityStore backed by the given pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

const opportunityCols = `id, token, chain_from, chain_to, price_from, price_to,
	price_diff, price_diff_percent, gas_cost, net_profit, roi, score,
	status, created_at, updated_at`

// Upsert inserts the opportunity or refreshes the active row for the same
// (token, chain_from, chain_to) triple. It reports whether a new row was
// created.
func (s *OpportunityStore) Upsert(ctx context.Context, opp *types.Opportunity) (bool, error) {
	const query = `
		INSERT INTO opportunities (
			id, token, chain_from, chain_to, price_from, price_to,
			price_diff, price_diff_percent, gas_cost, net_profit, roi, score,
			status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12,
			$13, $14, $15
		)
		ON CONFLICT (token, chain_from, chain_to) WHERE status = 'active'
		DO UPDATE SET
			price_from         = EXCLUDED.price_from,
			price_to           = EXCLUDED.price_to,
			price_diff         = EXCLUDED.price_diff,
			price_diff_percent = EXCLUDED.price_diff_percent,
			gas_cost           = EXCLUDED.gas_cost,
			net_profit         = EXCLUDED.net_profit,
			roi                = EXCLUDED.roi,
			score              = EXCLUDED.score,
			updated_at         = EXCLUDED.updated_at
		RETURNING created_at = updated_at`

	var created bool
	err := s.pool.QueryRow(ctx, query,
		opp.ID, opp.Token, opp.ChainFrom, opp.ChainTo, opp.PriceFrom, opp.PriceTo,
		opp.PriceDiff, opp.PriceDiffPercent, opp.GasCost, opp.NetProfit, opp.ROI, opp.Score,
		opp.Status, opp.CreatedAt, opp.UpdatedAt,
	).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("postgres: upsert opportunity %s: %w", opp.ID, err)
	}
	return created, nil
}

// Expire marks the active opportunity for the triple as expired, if any.
func (s *OpportunityStore) Expire(ctx context.Context, token, chainFrom, chainTo string) error {
	const query = `
		UPDATE opportunities SET
			status     = 'expired',
			updated_at = $4
		WHERE token = $1 AND chain_from = $2 AND chain_to = $3 AND status = 'active'`

	_, err := s.pool.Exec(ctx, query, token, chainFrom, chainTo, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("postgres: expire opportunity %s %s->%s: %w", token, chainFrom, chainTo, err)
	}
	return nil
}

// GetByID fetches one opportunity.
func (s *OpportunityStore) GetByID(ctx context.Context, id string) (*types.Opportunity, error) {
	query := `SELECT ` + opportunityCols + ` FROM opportunities WHERE id = $1`

	opp, err := scanOpportunity(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get opportunity %s: %w", id, err)
	}
	return opp, nil
}

// List returns opportunities matching the filter, newest first, together
// with the total count before limit/offset.
func (s *OpportunityStore) List(ctx context.Context, filter interfaces.OpportunityFilter) ([]types.Opportunity, int, error) {
	where := " WHERE 1=1"
	args := []any{}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Token != "" {
		args = append(args, filter.Token)
		where += fmt.Sprintf(" AND token = $%d", len(args))
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM opportunities"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres: count opportunities: %w", err)
	}

	query := `SELECT ` + opportunityCols + ` FROM opportunities` + where + ` ORDER BY updated_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: list opportunities: %w", err)
	}
	defer rows.Close()

	var opps []types.Opportunity
	for rows.Next() {
		opp, err := scanOpportunity(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("postgres: scan opportunity: %w", err)
		}
		opps = append(opps, *opp)
	}
	return opps, total, rows.Err()
}

func scanOpportunity(row pgx.Row) (*types.Opportunity, error) {
	var opp types.Opportunity
	err := row.Scan(
		&opp.ID, &opp.Token, &opp.ChainFrom, &opp.ChainTo, &opp.PriceFrom, &opp.PriceTo,
		&opp.PriceDiff, &opp.PriceDiffPercent, &opp.GasCost, &opp.NetProfit, &opp.ROI, &opp.Score,
		&opp.Status, &opp.CreatedAt, &opp.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &opp, nil
}
