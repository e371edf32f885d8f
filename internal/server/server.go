package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"mmr-engine/internal/constants"
	"mmr-engine/internal/domain"
	"mmr-engine/internal/engine"
	"mmr-engine/internal/service"

	"github.com/rs/zerolog"
)

// RatingServer exposes the engine's query surface as JSON. It is the only
// consumer of the engine boundary; everything it returns is a plain
// ordered structure the caller can render without engine logic.
type RatingServer struct {
	loader *service.Loader
	logger zerolog.Logger
}

func NewRatingServer(loader *service.Loader, logger zerolog.Logger) *RatingServer {
	return &RatingServer{loader: loader, logger: logger}
}

func (s *RatingServer) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /rankings", s.handleRankings)
	mux.HandleFunc("GET /rankings/extended", s.handleRankingsExtended)
	mux.HandleFunc("GET /divisions/{abr}", s.handleDivision)
	mux.HandleFunc("GET /divisions/{abr}/contestants/{name}", s.handleContestant)
	mux.HandleFunc("GET /divisions/{abr}/head-to-head", s.handleHeadToHead)
	mux.HandleFunc("GET /stats", s.handleStatsKeys)
	mux.HandleFunc("GET /stats/{abr}/{year}/{key}", s.handleStats)
	mux.HandleFunc("GET /titles", s.handleTitles)
	mux.HandleFunc("GET /titles/{name}", s.handleTitle)
	mux.HandleFunc("GET /search", s.handleSearch)
	mux.HandleFunc("GET /debug/anomalies", s.handleAnomalies)
	mux.HandleFunc("POST /admin/reload", s.handleReload)
}

func (s *RatingServer) engine(w http.ResponseWriter) *engine.Engine {
	eng := s.loader.Engine()
	if eng == nil {
		s.writeError(w, http.StatusServiceUnavailable, "no snapshot loaded yet")
		return nil
	}
	return eng
}

func (s *RatingServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{"status": "ok", "snapshot_loaded": s.loader.Engine() != nil}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *RatingServer) handleRankings(w http.ResponseWriter, r *http.Request) {
	eng := s.engine(w)
	if eng == nil {
		return
	}
	date, event := eng.LastUpdated()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"rankings":   eng.RankingsTop10(),
		"updated_on": map[string]any{"date": date.Format(time.DateOnly), "event": event},
	})
}

func (s *RatingServer) handleRankingsExtended(w http.ResponseWriter, r *http.Request) {
	eng := s.engine(w)
	if eng == nil {
		return
	}
	s.writeJSON(w, http.StatusOK, eng.RankingsExtended())
}

func (s *RatingServer) handleDivision(w http.ResponseWriter, r *http.Request) {
	eng := s.engine(w)
	if eng == nil {
		return
	}
	d, err := eng.Division(r.PathValue("abr"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	rows, err := eng.Stats(d.Abr, engine.YearAllTime, domain.KeyMMR)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"name":        d.Name,
		"abr":         d.Abr,
		"kind":        d.Kind,
		"contestants": rows,
	})
}

func (s *RatingServer) handleContestant(w http.ResponseWriter, r *http.Request) {
	eng := s.engine(w)
	if eng == nil {
		return
	}
	stats, err := eng.ContestantStats(r.PathValue("abr"), r.PathValue("name"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *RatingServer) handleHeadToHead(w http.ResponseWriter, r *http.Request) {
	eng := s.engine(w)
	if eng == nil {
		return
	}
	a, b := r.URL.Query().Get("a"), r.URL.Query().Get("b")
	if a == "" || b == "" {
		s.writeError(w, http.StatusBadRequest, "query parameters a and b are required")
		return
	}
	winsA, winsB, draws, err := eng.RecordVs(r.PathValue("abr"), a, b)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"a": a, "b": b, "wins_a": winsA, "wins_b": winsB, "draws": draws,
	})
}

func (s *RatingServer) handleStatsKeys(w http.ResponseWriter, r *http.Request) {
	eng := s.engine(w)
	if eng == nil {
		return
	}
	s.writeJSON(w, http.StatusOK, eng.StatsKeys())
}

func (s *RatingServer) handleStats(w http.ResponseWriter, r *http.Request) {
	eng := s.engine(w)
	if eng == nil {
		return
	}
	rows, err := eng.Stats(r.PathValue("abr"), r.PathValue("year"), r.PathValue("key"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rows)
}

func (s *RatingServer) handleTitles(w http.ResponseWriter, r *http.Request) {
	eng := s.engine(w)
	if eng == nil {
		return
	}
	titles, reigns, owners := eng.TitleTables()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"titles": titles, "reigns": reigns, "owners": owners,
	})
}

func (s *RatingServer) handleTitle(w http.ResponseWriter, r *http.Request) {
	eng := s.engine(w)
	if eng == nil {
		return
	}
	detail, err := eng.TitleDetail(r.PathValue("name"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, detail)
}

func (s *RatingServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	eng := s.engine(w)
	if eng == nil {
		return
	}
	query := r.URL.Query().Get("q")
	if query == "" {
		s.writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}
	s.writeJSON(w, http.StatusOK, eng.Search(query, constants.SearchSuggestionLimit))
}

func (s *RatingServer) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	eng := s.engine(w)
	if eng == nil {
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"new_contestants": eng.NewContestants(),
		"team_errors":     eng.TeamErrors(),
		"rejected":        eng.RejectedMatches(),
	})
}

func (s *RatingServer) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.loader.Reload(r.Context()); err != nil {
		var cerr *domain.ConsistencyError
		if errors.As(err, &cerr) {
			s.writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	eng := s.loader.Engine()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "reloaded",
		"built_at": eng.BuiltAt(),
		"rejected": len(eng.RejectedMatches()),
	})
}

func (s *RatingServer) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *RatingServer) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, map[string]string{"error": msg})
}

func (s *RatingServer) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}
