package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"mmr-engine/internal/constants"
	"mmr-engine/internal/domain"

	"github.com/rs/zerolog"
)

// SourceRepository reads and writes the raw source tables the engine is
// rebuilt from: divisions, rosters, titles, and match results.
type SourceRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewSourceRepository(sqlDB *sql.DB, logger zerolog.Logger) *SourceRepository {
	return &SourceRepository{db: sqlDB, logger: logger}
}

type DivisionRow struct {
	Abr  string
	Name string
	Kind domain.DivisionKind
}

type RosterRow struct {
	DivisionAbr string
	Name        string
}

type TitleRow struct {
	Name         string
	Championship string
	DivisionAbr  string
}

// RawMatch is one source match row. Members columns hold pipe-separated
// lineups for team divisions and are empty for singles.
type RawMatch struct {
	ID           int64
	DivisionAbr  string
	Date         time.Time
	Event        string
	Title        string
	MatchType    string
	SideA        string
	SideAMembers string
	SideB        string
	SideBMembers string
	Result       domain.Result
}

func (r *SourceRepository) Divisions(ctx context.Context) ([]DivisionRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT abr, name, kind FROM divisions ORDER BY created_at, abr`)
	if err != nil {
		return nil, fmt.Errorf("failed to query divisions: %w", err)
	}
	defer rows.Close()

	var out []DivisionRow
	for rows.Next() {
		var d DivisionRow
		if err := rows.Scan(&d.Abr, &d.Name, &d.Kind); err != nil {
			return nil, fmt.Errorf("failed to scan division: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *SourceRepository) Roster(ctx context.Context) ([]RosterRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT division_abr, name FROM roster ORDER BY division_abr, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query roster: %w", err)
	}
	defer rows.Close()

	var out []RosterRow
	for rows.Next() {
		var e RosterRow
		if err := rows.Scan(&e.DivisionAbr, &e.Name); err != nil {
			return nil, fmt.Errorf("failed to scan roster entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SourceRepository) Titles(ctx context.Context) ([]TitleRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name, championship, division_abr FROM titles ORDER BY created_at, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query titles: %w", err)
	}
	defer rows.Close()

	var out []TitleRow
	for rows.Next() {
		var t TitleRow
		if err := rows.Scan(&t.Name, &t.Championship, &t.DivisionAbr); err != nil {
			return nil, fmt.Errorf("failed to scan title: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Matches returns every source match in replay order. Rating updates are
// order-dependent, so the ordering here is what makes reloads reproduce
// bit-identical ratings.
func (r *SourceRepository) Matches(ctx context.Context) ([]RawMatch, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, division_abr, date, event, title, match_type,
		        side_a, side_a_members, side_b, side_b_members, result
		 FROM raw_matches ORDER BY date, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	var out []RawMatch
	for rows.Next() {
		var m RawMatch
		if err := rows.Scan(&m.ID, &m.DivisionAbr, &m.Date, &m.Event, &m.Title, &m.MatchType,
			&m.SideA, &m.SideAMembers, &m.SideB, &m.SideBMembers, &m.Result); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *SourceRepository) AddDivision(ctx context.Context, d DivisionRow) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO divisions (abr, name, kind) VALUES (?, ?, ?)
		 ON CONFLICT (abr) DO UPDATE SET name = excluded.name, kind = excluded.kind`,
		d.Abr, d.Name, d.Kind)
	if err != nil {
		return fmt.Errorf("failed to upsert division %s: %w", d.Abr, err)
	}
	return nil
}

func (r *SourceRepository) AddTitle(ctx context.Context, t TitleRow) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO titles (name, championship, division_abr) VALUES (?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET championship = excluded.championship, division_abr = excluded.division_abr`,
		t.Name, t.Championship, t.DivisionAbr)
	if err != nil {
		return fmt.Errorf("failed to upsert title %s: %w", t.Name, err)
	}
	return nil
}

func (r *SourceRepository) AddRosterBatch(ctx context.Context, entries []RosterRow) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i := 0; i < len(entries); i += constants.DBBatchSize {
		end := i + constants.DBBatchSize
		if end > len(entries) {
			end = len(entries)
		}
		for _, e := range entries[i:end] {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO roster (division_abr, name) VALUES (?, ?)
				 ON CONFLICT (division_abr, name) DO NOTHING`,
				e.DivisionAbr, e.Name); err != nil {
				return fmt.Errorf("failed to upsert roster entry %s/%s: %w", e.DivisionAbr, e.Name, err)
			}
		}
	}

	return tx.Commit()
}

func (r *SourceRepository) AddMatchBatch(ctx context.Context, matches []RawMatch) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i := 0; i < len(matches); i += constants.DBBatchSize {
		end := i + constants.DBBatchSize
		if end > len(matches) {
			end = len(matches)
		}
		for _, m := range matches[i:end] {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO raw_matches (division_abr, date, event, title, match_type,
				                          side_a, side_a_members, side_b, side_b_members, result)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				m.DivisionAbr, m.Date, m.Event, m.Title, m.MatchType,
				m.SideA, m.SideAMembers, m.SideB, m.SideBMembers, m.Result); err != nil {
				return fmt.Errorf("failed to insert match %s vs %s: %w", m.SideA, m.SideB, err)
			}
		}
	}

	return tx.Commit()
}

// SplitMembers decodes a pipe-separated lineup column.
func SplitMembers(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "|")
}

// JoinMembers encodes a lineup for the members columns.
func JoinMembers(names []string) string {
	return strings.Join(names, "|")
}
