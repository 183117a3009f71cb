package runs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/aristath/previ-optimizer/internal/database"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

const selectColumns = `id, created_at, dataset, risk_free_rate, max_position_size, min_weight,
	compound_return, sharpe_ratio, converged, status, years, payload`

// Repository handles optimization run database operations
// Database: runs.db (optimization_runs table)
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new runs repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "runs").Logger(),
	}
}

// Save inserts a run. A missing ID is generated and a zero CreatedAt is set
// to the current time; both are written back to rec.
func (r *Repository) Save(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	payload := rec.Payload
	payload.SharpeRatio = rec.SharpeRatio
	blob, err := msgpack.Marshal(&payload)
	if err != nil {
		return fmt.Errorf("failed to encode run payload: %w", err)
	}

	// Undefined Sharpe ratios are stored as NULL; the sentinel lives in the payload
	var sharpe sql.NullFloat64
	if rec.SharpeDefined && !math.IsInf(rec.SharpeRatio, 0) && !math.IsNaN(rec.SharpeRatio) {
		sharpe = sql.NullFloat64{Float64: rec.SharpeRatio, Valid: true}
	}

	err = database.WithTransaction(r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO optimization_runs (`+selectColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID,
			rec.CreatedAt.Unix(),
			rec.Dataset,
			rec.RiskFreeRate,
			rec.MaxPositionSize,
			rec.MinWeight,
			rec.CompoundReturn,
			sharpe,
			boolToInt(rec.Converged),
			rec.Status,
			rec.Years,
			blob,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", rec.ID, err)
	}

	r.log.Debug().Str("id", rec.ID).Msg("Saved optimization run")
	return nil
}

// Get returns the run with the given identifier or ErrRunNotFound.
func (r *Repository) Get(ctx context.Context, id string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM optimization_runs WHERE id = ?", id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	return rec, nil
}

// Latest returns the most recent run or ErrRunNotFound when there is none.
func (r *Repository) Latest(ctx context.Context) (*Record, error) {
	list, err := r.List(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrRunNotFound
	}
	return &list[0], nil
}

// List returns up to limit runs, newest first. A non-positive limit returns all runs.
func (r *Repository) List(ctx context.Context, limit int) ([]Record, error) {
	query := "SELECT " + selectColumns + " FROM optimization_runs ORDER BY created_at DESC, rowid DESC"
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return out, nil
}

// Prune deletes all but the newest keep runs and returns how many were removed.
func (r *Repository) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM optimization_runs WHERE id NOT IN (
			SELECT id FROM optimization_runs ORDER BY created_at DESC, rowid DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned runs: %w", err)
	}
	if n > 0 {
		r.log.Info().Int64("deleted", n).Int("kept", keep).Msg("Pruned optimization runs")
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (*Record, error) {
	var rec Record
	var createdAt int64
	var sharpe sql.NullFloat64
	var converged int
	var blob []byte

	if err := s.Scan(
		&rec.ID,
		&createdAt,
		&rec.Dataset,
		&rec.RiskFreeRate,
		&rec.MaxPositionSize,
		&rec.MinWeight,
		&rec.CompoundReturn,
		&sharpe,
		&converged,
		&rec.Status,
		&rec.Years,
		&blob,
	); err != nil {
		return nil, err
	}

	if err := msgpack.Unmarshal(blob, &rec.Payload); err != nil {
		return nil, fmt.Errorf("failed to decode payload of run %s: %w", rec.ID, err)
	}

	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	rec.Converged = converged != 0
	rec.SharpeDefined = sharpe.Valid
	rec.SharpeRatio = rec.Payload.SharpeRatio
	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
