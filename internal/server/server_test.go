package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mmr-engine/internal/config"
	"mmr-engine/internal/database"
	"mmr-engine/internal/domain"
	"mmr-engine/internal/engine"
	"mmr-engine/internal/repository"
	"mmr-engine/internal/service"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*http.ServeMux, *service.Loader, *repository.SourceRepository) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db, zerolog.Nop()))
	t.Cleanup(func() { db.Close() })

	source := repository.NewSourceRepository(db, zerolog.Nop())
	snapshots := repository.NewSnapshotRepository(db, zerolog.Nop())
	cfg := &config.Config{Rating: engine.DefaultRatingConfig()}
	loader := service.NewLoader(source, snapshots, cfg, zerolog.Nop())

	mux := http.NewServeMux()
	NewRatingServer(loader, zerolog.Nop()).Register(mux)
	return mux, loader, source
}

func seedAndReload(t *testing.T, loader *service.Loader, source *repository.SourceRepository) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, source.AddDivision(ctx, repository.DivisionRow{Abr: "M1", Name: "Men's Singles", Kind: domain.KindSingles}))
	require.NoError(t, source.AddRosterBatch(ctx, []repository.RosterRow{
		{DivisionAbr: "M1", Name: "Jon Moxley"},
		{DivisionAbr: "M1", Name: "Kenny Omega"},
	}))
	require.NoError(t, source.AddTitle(ctx, repository.TitleRow{Name: "World Title", Championship: "World Championship", DivisionAbr: "M1"}))
	require.NoError(t, source.AddMatchBatch(ctx, []repository.RawMatch{
		{
			DivisionAbr: "M1",
			Date:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Event:       "New Year Clash",
			Title:       "World Title",
			SideA:       "Jon Moxley",
			SideB:       "Kenny Omega",
			Result:      domain.ResultA,
		},
	}))
	require.NoError(t, loader.Reload(ctx))
}

func do(mux *http.ServeMux, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestUnavailableBeforeFirstLoad(t *testing.T) {
	mux, _, _ := newTestServer(t)

	rec := do(mux, http.MethodGet, "/rankings")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "no snapshot loaded yet", decode(t, rec)["error"])

	// health still answers, it just reports the missing snapshot
	rec = do(mux, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["snapshot_loaded"])
}

func TestRankings(t *testing.T) {
	mux, loader, source := newTestServer(t)
	seedAndReload(t, loader, source)

	rec := do(mux, http.MethodGet, "/rankings")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body := decode(t, rec)
	updated := body["updated_on"].(map[string]any)
	assert.Equal(t, "2024-01-01", updated["date"])
	assert.Equal(t, "New Year Clash", updated["event"])

	rankings := body["rankings"].(map[string]any)
	rows := rankings["Men's Singles"].([]any)
	require.Len(t, rows, 2)
	assert.Equal(t, "Jon Moxley", rows[0].(map[string]any)["name"])
}

func TestDivisionEndpoint(t *testing.T) {
	mux, loader, source := newTestServer(t)
	seedAndReload(t, loader, source)

	rec := do(mux, http.MethodGet, "/divisions/M1")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Men's Singles", body["name"])
	assert.Len(t, body["contestants"].([]any), 2)

	rec = do(mux, http.MethodGet, "/divisions/ZZ")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestContestantEndpoint(t *testing.T) {
	mux, loader, source := newTestServer(t)
	seedAndReload(t, loader, source)

	rec := do(mux, http.MethodGet, "/divisions/M1/contestants/Jon%20Moxley")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Jon Moxley", body["name"])

	rec = do(mux, http.MethodGet, "/divisions/M1/contestants/Nobody")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHeadToHead(t *testing.T) {
	mux, loader, source := newTestServer(t)
	seedAndReload(t, loader, source)

	rec := do(mux, http.MethodGet, "/divisions/M1/head-to-head?a=Jon%20Moxley&b=Kenny%20Omega")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(1), body["wins_a"])
	assert.Equal(t, float64(0), body["wins_b"])

	rec = do(mux, http.MethodGet, "/divisions/M1/head-to-head?a=Jon%20Moxley")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatsEndpoints(t *testing.T) {
	mux, loader, source := newTestServer(t)
	seedAndReload(t, loader, source)

	rec := do(mux, http.MethodGet, "/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(mux, http.MethodGet, "/stats/M1/alltime/mmr")
	require.Equal(t, http.StatusOK, rec.Code)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 2)

	rec = do(mux, http.MethodGet, "/stats/M1/alltime/glicko")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTitleEndpoints(t *testing.T) {
	mux, loader, source := newTestServer(t)
	seedAndReload(t, loader, source)

	rec := do(mux, http.MethodGet, "/titles")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Len(t, body["titles"].([]any), 1)

	rec = do(mux, http.MethodGet, "/titles/World%20Title")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(mux, http.MethodGet, "/titles/Ghost%20Title")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearchEndpoint(t *testing.T) {
	mux, loader, source := newTestServer(t)
	seedAndReload(t, loader, source)

	rec := do(mux, http.MethodGet, "/search?q=moxley")
	require.Equal(t, http.StatusOK, rec.Code)
	var results []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.NotEmpty(t, results)
	assert.Equal(t, "Jon Moxley", results[0]["name"])

	rec = do(mux, http.MethodGet, "/search")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminReload(t *testing.T) {
	mux, _, source := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, source.AddDivision(ctx, repository.DivisionRow{Abr: "M1", Name: "Men's Singles", Kind: domain.KindSingles}))
	require.NoError(t, source.AddRosterBatch(ctx, []repository.RosterRow{{DivisionAbr: "M1", Name: "Jon Moxley"}}))

	rec := do(mux, http.MethodPost, "/admin/reload")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "reloaded", decode(t, rec)["status"])

	// the reload made the query surface live
	rec = do(mux, http.MethodGet, "/rankings")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAnomaliesEndpoint(t *testing.T) {
	mux, loader, source := newTestServer(t)
	seedAndReload(t, loader, source)
	require.NoError(t, source.AddMatchBatch(context.Background(), []repository.RawMatch{
		{
			DivisionAbr: "M1",
			Date:        time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
			Event:       "Mystery Night",
			SideA:       "Jon Moxley",
			SideB:       "Stranger",
			Result:      domain.ResultA,
		},
	}))
	require.NoError(t, loader.Reload(context.Background()))

	rec := do(mux, http.MethodGet, "/debug/anomalies")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Len(t, body["rejected"].([]any), 1)
}
