package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"mmr-engine/internal/database"
	"mmr-engine/internal/domain"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// a second connection would see a different in-memory database
	db.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db, zerolog.Nop()))
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSourceRoundTrip(t *testing.T) {
	db := newTestDB(t)
	repo := NewSourceRepository(db, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, repo.AddDivision(ctx, DivisionRow{Abr: "M1", Name: "Men's Singles", Kind: domain.KindSingles}))
	require.NoError(t, repo.AddDivision(ctx, DivisionRow{Abr: "T1", Name: "Tag Team", Kind: domain.KindDuos}))
	require.NoError(t, repo.AddRosterBatch(ctx, []RosterRow{
		{DivisionAbr: "M1", Name: "A"},
		{DivisionAbr: "M1", Name: "B"},
	}))
	require.NoError(t, repo.AddTitle(ctx, TitleRow{Name: "World Title", Championship: "World Championship", DivisionAbr: "M1"}))

	divisions, err := repo.Divisions(ctx)
	require.NoError(t, err)
	require.Len(t, divisions, 2)
	assert.Equal(t, domain.KindDuos, divisions[1].Kind)

	roster, err := repo.Roster(ctx)
	require.NoError(t, err)
	assert.Len(t, roster, 2)

	titles, err := repo.Titles(ctx)
	require.NoError(t, err)
	require.Len(t, titles, 1)
	assert.Equal(t, "World Title", titles[0].Name)
}

func TestRosterBatchIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	repo := NewSourceRepository(db, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, repo.AddDivision(ctx, DivisionRow{Abr: "M1", Name: "Men's Singles", Kind: domain.KindSingles}))
	entries := []RosterRow{{DivisionAbr: "M1", Name: "A"}}
	require.NoError(t, repo.AddRosterBatch(ctx, entries))
	require.NoError(t, repo.AddRosterBatch(ctx, entries))

	roster, err := repo.Roster(ctx)
	require.NoError(t, err)
	assert.Len(t, roster, 1)
}

func TestMatchesReplayOrder(t *testing.T) {
	db := newTestDB(t)
	repo := NewSourceRepository(db, zerolog.Nop())
	ctx := context.Background()

	day1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	// inserted out of date order on purpose
	require.NoError(t, repo.AddMatchBatch(ctx, []RawMatch{
		{DivisionAbr: "M1", Date: day2, Event: "Later", SideA: "A", SideB: "B", Result: domain.ResultA},
		{DivisionAbr: "M1", Date: day1, Event: "Earlier", SideA: "A", SideB: "B", Result: domain.ResultB},
		{DivisionAbr: "M1", Date: day1, Event: "Earlier Too", SideA: "A", SideB: "B", Result: domain.ResultDraw},
	}))

	matches, err := repo.Matches(ctx)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "Earlier", matches[0].Event)
	assert.Equal(t, "Earlier Too", matches[1].Event)
	assert.Equal(t, "Later", matches[2].Event)
	assert.Less(t, matches[0].ID, matches[1].ID)
}

func TestMembersEncoding(t *testing.T) {
	assert.Equal(t, "A|B", JoinMembers([]string{"A", "B"}))
	assert.Equal(t, []string{"A", "B"}, SplitMembers("A|B"))
	assert.Nil(t, SplitMembers(""))
}

func TestSnapshotReplaceAll(t *testing.T) {
	db := newTestDB(t)
	repo := NewSnapshotRepository(db, zerolog.Nop())
	ctx := context.Background()
	now := time.Now()

	first := []RatingSnapshot{
		{DivisionAbr: "M1", Contestant: "A", RatingKey: domain.KeyMMR, Rating: 1516, Rank: 1, Matches: 1, CreatedAt: now},
		{DivisionAbr: "M1", Contestant: "B", RatingKey: domain.KeyMMR, Rating: 1484, Rank: 2, Matches: 1, CreatedAt: now},
	}
	require.NoError(t, repo.ReplaceAll(ctx, first))

	stored, err := repo.ByDivision(ctx, "M1", domain.KeyMMR)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "A", stored[0].Contestant)
	assert.NotEmpty(t, stored[0].ID)

	// a second replace swaps the table wholesale
	second := []RatingSnapshot{
		{DivisionAbr: "M1", Contestant: "B", RatingKey: domain.KeyMMR, Rating: 1500, Rank: 1, Matches: 2, CreatedAt: now},
	}
	require.NoError(t, repo.ReplaceAll(ctx, second))

	stored, err = repo.ByDivision(ctx, "M1", domain.KeyMMR)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "B", stored[0].Contestant)
}
