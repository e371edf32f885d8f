package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// RatingSnapshot is one contestant's rating and rank for one variant,
// written back to the store after a successful reload.
type RatingSnapshot struct {
	ID          string
	DivisionAbr string
	Contestant  string
	RatingKey   string
	Rating      float64
	Rank        int
	Matches     int
	CreatedAt   time.Time
}

type SnapshotRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewSnapshotRepository(sqlDB *sql.DB, logger zerolog.Logger) *SnapshotRepository {
	return &SnapshotRepository{db: sqlDB, logger: logger}
}

// ReplaceAll swaps the snapshot table wholesale for the new engine state.
func (r *SnapshotRepository) ReplaceAll(ctx context.Context, records []RatingSnapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM rating_snapshots`); err != nil {
		return fmt.Errorf("failed to clear rating snapshots: %w", err)
	}

	for _, record := range records {
		id := record.ID
		if id == "" {
			id, err = gonanoid.New()
			if err != nil {
				return fmt.Errorf("failed to generate nanoid: %w", err)
			}
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rating_snapshots (id, division_abr, contestant, rating_key, rating, rank, matches, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, record.DivisionAbr, record.Contestant, record.RatingKey,
			record.Rating, record.Rank, record.Matches, record.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert rating snapshot: %w", err)
		}
	}

	r.logger.Debug().Int("count", len(records)).Msg("rating snapshots replaced")
	return tx.Commit()
}

// ByDivision reads the stored snapshots for one division and rating key,
// rank ascending.
func (r *SnapshotRepository) ByDivision(ctx context.Context, divisionAbr, ratingKey string) ([]RatingSnapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, division_abr, contestant, rating_key, rating, rank, matches, created_at
		 FROM rating_snapshots WHERE division_abr = ? AND rating_key = ? ORDER BY rank`,
		divisionAbr, ratingKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query rating snapshots: %w", err)
	}
	defer rows.Close()

	var out []RatingSnapshot
	for rows.Next() {
		var s RatingSnapshot
		if err := rows.Scan(&s.ID, &s.DivisionAbr, &s.Contestant, &s.RatingKey,
			&s.Rating, &s.Rank, &s.Matches, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rating snapshot: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
