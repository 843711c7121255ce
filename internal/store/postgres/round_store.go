package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/protocolsim/idlarena/internal/domain"
)

// RoundStore implements domain.RoundStore using PostgreSQL. Round results are
// stored whole as JSONB; queries never need to reach inside individual
// actions, so a document column keeps the schema stable as the result shape
// grows.
type RoundStore struct {
	pool *pgxpool.Pool
}

// NewRoundStore creates a new RoundStore backed by the given connection pool.
func NewRoundStore(pool *pgxpool.Pool) *RoundStore {
	return &RoundStore{pool: pool}
}

// Insert persists one round result. Re-inserting the same round for a run
// overwrites the previous row, which makes replay idempotent.
func (s *RoundStore) Insert(ctx context.Context, runID string, result domain.RoundResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("postgres: marshal round %d: %w", result.Round, err)
	}

	const query = `
		INSERT INTO rounds (run_id, round, occurred_at, result)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (run_id, round) DO UPDATE
		SET occurred_at = EXCLUDED.occurred_at, result = EXCLUDED.result`
	_, err = s.pool.Exec(ctx, query, runID, result.Round, result.Timestamp, payload)
	if err != nil {
		return fmt.Errorf("postgres: insert round %s/%d: %w", runID, result.Round, err)
	}
	return nil
}

// ListByRun returns round results in round order with pagination.
func (s *RoundStore) ListByRun(ctx context.Context, runID string, opts domain.ListOpts) ([]domain.RoundResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	const query = `
		SELECT result FROM rounds
		WHERE run_id = $1
		ORDER BY round ASC
		LIMIT $2 OFFSET $3`

	rows, err := s.pool.Query(ctx, query, runID, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list rounds %s: %w", runID, err)
	}
	defer rows.Close()

	var results []domain.RoundResult
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("postgres: scan round: %w", err)
		}
		var rr domain.RoundResult
		if err := json.Unmarshal(payload, &rr); err != nil {
			return nil, fmt.Errorf("postgres: decode round: %w", err)
		}
		results = append(results, rr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list rounds %s: %w", runID, err)
	}
	return results, nil
}

// GetRound returns one round result, or domain.ErrNotFound.
func (s *RoundStore) GetRound(ctx context.Context, runID string, round int) (domain.RoundResult, error) {
	const query = `SELECT result FROM rounds WHERE run_id = $1 AND round = $2`

	var payload []byte
	err := s.pool.QueryRow(ctx, query, runID, round).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RoundResult{}, domain.ErrNotFound
		}
		return domain.RoundResult{}, fmt.Errorf("postgres: get round %s/%d: %w", runID, round, err)
	}

	var rr domain.RoundResult
	if err := json.Unmarshal(payload, &rr); err != nil {
		return domain.RoundResult{}, fmt.Errorf("postgres: decode round %s/%d: %w", runID, round, err)
	}
	return rr, nil
}

// Compile-time interface check.
var _ domain.RoundStore = (*RoundStore)(nil)
