package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arbscope/cross-chain-arb-engine/pkg/types"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// TokenStore implements interfaces.TokenStore using PostgreSQL.
type TokenStore struct {
	pool *pgxpool.Pool
}

// NewTokenStore creates a TokenStore backed by the given connection pool.
func NewTokenStore(pool *pgxpool.Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

// UpsertToken inserts the token or refreshes its price.
func (s *TokenStore) UpsertToken(ctx context.Context, token types.Token) error {
	const query = `
		INSERT INTO tokens (symbol, chain, name, current_price, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (symbol, chain) DO UPDATE SET
			name          = EXCLUDED.name,
			current_price = EXCLUDED.current_price,
			updated_at    = EXCLUDED.updated_at`

	_, err := s.pool.Exec(ctx, query,
		token.Symbol, token.Chain, token.Name, token.CurrentPrice, token.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: upsert token %s/%s: %w", token.Symbol, token.Chain, err)
	}
	return nil
}

// GetToken fetches one token by symbol and chain.
func (s *TokenStore) GetToken(ctx context.Context, symbol, chain string) (*types.Token, error) {
	const query = `
		SELECT symbol, chain, name, current_price, updated_at
		FROM tokens WHERE symbol = $1 AND chain = $2`

	var token types.Token
	err := s.pool.QueryRow(ctx, query, symbol, chain).Scan(
		&token.Symbol, &token.Chain, &token.Name, &token.CurrentPrice, &token.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get token %s/%s: %w", symbol, chain, err)
	}
	return &token, nil
}

// ListTokens returns all tracked tokens.
func (s *TokenStore) ListTokens(ctx context.Context) ([]types.Token, error) {
	const query = `
		SELECT symbol, chain, name, current_price, updated_at
		FROM tokens ORDER BY symbol, chain`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list tokens: %w", err)
	}
	defer rows.Close()

	var tokens []types.Token
	for rows.Next() {
		var token types.Token
		if err := rows.Scan(&token.Symbol, &token.Chain, &token.Name, &token.CurrentPrice, &token.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan token: %w", err)
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}
