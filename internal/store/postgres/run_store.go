package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/protocolsim/idlarena/internal/domain"
)

// RunStore implements domain.RunStore using PostgreSQL.
type RunStore struct {
	pool *pgxpool.Pool
}

// NewRunStore creates a new RunStore backed by the given connection pool.
func NewRunStore(pool *pgxpool.Pool) *RunStore {
	return &RunStore{pool: pool}
}

const runSelectCols = `id, seed, rounds, agents, status, started_at, finished_at, winner, winner_pnl`

func scanRun(row pgx.Row) (domain.RunRecord, error) {
	var (
		r          domain.RunRecord
		finishedAt *time.Time
		winner     *string
	)
	err := row.Scan(
		&r.ID, &r.Seed, &r.Rounds, &r.Agents, &r.Status,
		&r.StartedAt, &finishedAt, &winner, &r.WinnerPnL,
	)
	if err != nil {
		return domain.RunRecord{}, err
	}
	if finishedAt != nil {
		r.FinishedAt = *finishedAt
	}
	if winner != nil {
		r.Winner = *winner
	}
	return r, nil
}

// Create inserts a new run row in running state.
func (s *RunStore) Create(ctx context.Context, run domain.RunRecord) error {
	const query = `
		INSERT INTO runs (id, seed, rounds, agents, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.pool.Exec(ctx, query,
		run.ID, run.Seed, run.Rounds, run.Agents, run.Status, run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create run %s: %w", run.ID, err)
	}
	return nil
}

// Finish marks a run as complete or failed and records the winner.
func (s *RunStore) Finish(ctx context.Context, id, status, winner string, winnerPnL domain.PnL, finishedAt time.Time) error {
	const query = `
		UPDATE runs
		SET status = $2, winner = NULLIF($3, ''), winner_pnl = $4, finished_at = $5
		WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, id, status, winner, winnerPnL, finishedAt)
	if err != nil {
		return fmt.Errorf("postgres: finish run %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: finish run %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// GetByID returns a single run, or domain.ErrNotFound.
func (s *RunStore) GetByID(ctx context.Context, id string) (domain.RunRecord, error) {
	query := `SELECT ` + runSelectCols + ` FROM runs WHERE id = $1`
	r, err := scanRun(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RunRecord{}, domain.ErrNotFound
		}
		return domain.RunRecord{}, fmt.Errorf("postgres: get run %s: %w", id, err)
	}
	return r, nil
}

// ListRecent returns runs ordered newest-first with pagination.
func (s *RunStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.RunRecord, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + runSelectCols + ` FROM runs ORDER BY started_at DESC LIMIT $1 OFFSET $2`

	rows, err := s.pool.Query(ctx, query, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list runs: %w", err)
	}
	return runs, nil
}

// Compile-time interface check.
var _ domain.RunStore = (*RunStore)(nil)
