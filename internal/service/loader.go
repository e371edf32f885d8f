package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"mmr-engine/internal/config"
	"mmr-engine/internal/constants"
	"mmr-engine/internal/domain"
	"mmr-engine/internal/engine"
	"mmr-engine/internal/repository"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Loader rebuilds the engine from the source store and publishes each
// finished snapshot atomically. Readers always see either the previous
// engine or the new one, never a partial rebuild. Reloads are serialized;
// there is no concurrent ingestion path.
type Loader struct {
	source    *repository.SourceRepository
	snapshots *repository.SnapshotRepository
	cfg       *config.Config
	logger    zerolog.Logger

	reloadMu sync.Mutex
	current  atomic.Pointer[engine.Engine]

	// verify gates publication of a rebuilt engine.
	verify func(*engine.Engine) error
}

func NewLoader(source *repository.SourceRepository, snapshots *repository.SnapshotRepository, cfg *config.Config, logger zerolog.Logger) *Loader {
	return &Loader{
		source:    source,
		snapshots: snapshots,
		cfg:       cfg,
		logger:    logger,
		verify:    func(e *engine.Engine) error { return e.VerifyConsistency() },
	}
}

// Engine returns the currently published snapshot, or nil before the
// first successful reload.
func (l *Loader) Engine() *engine.Engine {
	return l.current.Load()
}

// Reload rebuilds everything from source data and swaps the published
// snapshot. A consistency failure keeps the previous snapshot in place.
func (l *Loader) Reload(ctx context.Context) error {
	l.reloadMu.Lock()
	defer l.reloadMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, constants.ReloadTimeout)
	defer cancel()

	start := time.Now()

	g, gCtx := errgroup.WithContext(ctx)
	var (
		divisions []repository.DivisionRow
		roster    []repository.RosterRow
		titles    []repository.TitleRow
		matches   []repository.RawMatch
	)
	g.Go(func() error {
		var err error
		divisions, err = l.source.Divisions(gCtx)
		return err
	})
	g.Go(func() error {
		var err error
		roster, err = l.source.Roster(gCtx)
		return err
	})
	g.Go(func() error {
		var err error
		titles, err = l.source.Titles(gCtx)
		return err
	})
	g.Go(func() error {
		var err error
		matches, err = l.source.Matches(gCtx)
		return err
	})
	if err := g.Wait(); err != nil {
		l.logger.Error().Err(err).Msg("failed to read source data")
		return fmt.Errorf("failed to read source data: %w", err)
	}

	eng := engine.New(l.cfg.Rating, l.logger)
	for _, d := range divisions {
		eng.AddDivision(d.Name, d.Abr, d.Kind)
	}
	for _, e := range roster {
		if err := eng.AddWrestler(e.DivisionAbr, e.Name); err != nil {
			l.logger.Warn().Str("division", e.DivisionAbr).Str("name", e.Name).Err(err).
				Msg("roster entry references unknown division, skipping")
		}
	}
	for _, t := range titles {
		eng.AddTitle(t.Name, t.Championship, t.DivisionAbr)
	}

	applied := 0
	for _, m := range matches {
		err := eng.RecordMatch(engine.MatchInput{
			SourceID:  m.ID,
			Division:  m.DivisionAbr,
			Date:      m.Date,
			Event:     m.Event,
			Title:     m.Title,
			MatchType: m.MatchType,
			SideA:     engine.Side{Name: m.SideA, Members: repository.SplitMembers(m.SideAMembers)},
			SideB:     engine.Side{Name: m.SideB, Members: repository.SplitMembers(m.SideBMembers)},
			Result:    m.Result,
		})
		if err != nil {
			var verr *domain.ValidationError
			if errors.As(err, &verr) {
				continue
			}
			return fmt.Errorf("failed to record match %d: %w", m.ID, err)
		}
		applied++
	}

	if err := l.verify(eng); err != nil {
		l.logger.Error().Err(err).Msg("reload aborted, previous snapshot retained")
		return err
	}

	// Rankings are frozen before publication so query handlers never
	// write into shared state.
	eng.ComputeRankings()

	l.current.Store(eng)

	l.logger.Info().
		Int("divisions", len(divisions)).
		Int("matches_applied", applied).
		Int("matches_rejected", len(eng.RejectedMatches())).
		Dur("took", time.Since(start)).
		Msg("engine rebuilt and published")

	if err := l.writeSnapshots(ctx, eng); err != nil {
		// The published engine is authoritative; persisted snapshots are a
		// convenience for external consumers.
		l.logger.Warn().Err(err).Msg("failed to persist rating snapshots")
	}
	return nil
}

func (l *Loader) writeSnapshots(ctx context.Context, eng *engine.Engine) error {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	now := time.Now()
	var records []repository.RatingSnapshot
	for _, d := range eng.Divisions() {
		for _, key := range domain.RatingKeys {
			for _, c := range eng.RankDivision(d, key) {
				records = append(records, repository.RatingSnapshot{
					DivisionAbr: d.Abr,
					Contestant:  c.DisplayName(),
					RatingKey:   key,
					Rating:      c.Rating(key),
					Rank:        c.Rank(key),
					Matches:     c.Record().Total(),
					CreatedAt:   now,
				})
			}
		}
	}
	return l.snapshots.ReplaceAll(ctx, records)
}
