package engine

import (
	"fmt"
	"math"
	"sort"
	"time"

	"mmr-engine/internal/domain"

	"github.com/rs/zerolog"
)

// Side identifies one participant of a match. Members is empty in singles
// divisions; in duo/trio divisions it declares the team's lineup.
type Side struct {
	Name    string
	Members []string
}

// MatchInput is an already-parsed source row handed to the engine.
type MatchInput struct {
	SourceID  int64
	Division  string
	Date      time.Time
	Event     string
	Title     string
	MatchType string
	SideA     Side
	SideB     Side
	Result    domain.Result
}

// TeamError reports a team whose declared lineup differs from the lineup
// it was first seen with. Reported, never auto-corrected.
type TeamError struct {
	Division string   `json:"division"`
	Team     string   `json:"team"`
	Known    []string `json:"known"`
	Declared []string `json:"declared"`
}

// RejectedMatch is a source row that failed validation.
type RejectedMatch struct {
	SourceID int64     `json:"source_id"`
	Division string    `json:"division"`
	Event    string    `json:"event"`
	Date     time.Time `json:"date"`
	Reason   string    `json:"reason"`
}

// Engine owns all contestants, divisions, and titles for one snapshot.
// It is built by a single writer during a reload and read-only afterward.
type Engine struct {
	cfg    RatingConfig
	logger zerolog.Logger

	divisions  []*domain.Division
	divIndex   map[string]*domain.Division
	titles     []*domain.Title
	titleIndex map[string]*domain.Title
	rankings   map[string]map[string][]domain.Contestant

	newContestants map[string]map[string]struct{}
	teamErrors     []TeamError
	rejected       []RejectedMatch

	nextMatchID uint64
	currentYear int
	lastDate    time.Time
	lastEvent   string
	builtAt     time.Time
}

func New(cfg RatingConfig, logger zerolog.Logger) *Engine {
	return &Engine{
		cfg:            cfg,
		logger:         logger,
		divIndex:       make(map[string]*domain.Division),
		titleIndex:     make(map[string]*domain.Title),
		newContestants: make(map[string]map[string]struct{}),
		nextMatchID:    1,
		builtAt:        time.Now(),
	}
}

func (e *Engine) AddDivision(name, abr string, kind domain.DivisionKind) *domain.Division {
	d := domain.NewDivision(name, abr, kind)
	e.divisions = append(e.divisions, d)
	e.divIndex[abr] = d
	return d
}

func (e *Engine) AddWrestler(divisionAbr, name string) error {
	d, ok := e.divIndex[divisionAbr]
	if !ok {
		return fmt.Errorf("division %q: %w", divisionAbr, domain.ErrNotFound)
	}
	if _, exists := d.Lookup(name); exists {
		return nil
	}
	d.Add(domain.NewWrestler(name, e.cfg.Initial))
	return nil
}

func (e *Engine) AddTitle(name, championship, divisionAbr string) *domain.Title {
	t := domain.NewTitle(name, championship, divisionAbr)
	e.titles = append(e.titles, t)
	e.titleIndex[name] = t
	return t
}

func (e *Engine) Division(abr string) (*domain.Division, error) {
	d, ok := e.divIndex[abr]
	if !ok {
		return nil, fmt.Errorf("division %q: %w", abr, domain.ErrNotFound)
	}
	return d, nil
}

func (e *Engine) Contestant(divisionAbr, name string) (domain.Contestant, error) {
	d, err := e.Division(divisionAbr)
	if err != nil {
		return nil, err
	}
	c, ok := d.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("contestant %q in %q: %w", name, divisionAbr, domain.ErrNotFound)
	}
	return c, nil
}

func (e *Engine) Title(name string) (*domain.Title, error) {
	t, ok := e.titleIndex[name]
	if !ok {
		return nil, fmt.Errorf("title %q: %w", name, domain.ErrNotFound)
	}
	return t, nil
}

func (e *Engine) Divisions() []*domain.Division { return e.divisions }
func (e *Engine) Titles() []*domain.Title       { return e.titles }
func (e *Engine) BuiltAt() time.Time            { return e.builtAt }

// LastUpdated is the date and event of the newest recorded match.
func (e *Engine) LastUpdated() (time.Time, string) { return e.lastDate, e.lastEvent }

// sidePlan is a resolved side: either an existing contestant or a team
// pending creation. Both sides are resolved before either mutates state,
// so a rejected match never leaves a half-created team behind.
type sidePlan struct {
	existing domain.Contestant
	teamName string
	members  []*domain.Wrestler
}

func (e *Engine) resolveSide(d *domain.Division, s Side) (*sidePlan, error) {
	if c, ok := d.Lookup(s.Name); ok {
		if team, isTeam := c.(*domain.Team); isTeam && len(s.Members) > 0 {
			if !sameLineup(team.MemberNames(), s.Members) {
				e.teamErrors = append(e.teamErrors, TeamError{
					Division: d.Abr,
					Team:     team.FullName,
					Known:    team.MemberNames(),
					Declared: append([]string(nil), s.Members...),
				})
			}
		}
		return &sidePlan{existing: c}, nil
	}

	size := d.Kind.TeamSize()
	if size == 0 {
		e.flagNewContestant(d.Abr, s.Name)
		return nil, &domain.ValidationError{Division: d.Abr, Detail: fmt.Sprintf("unknown contestant %q", s.Name)}
	}

	// Teams are created implicitly on first occurrence, but only from
	// wrestlers already on the division roster.
	if len(s.Members) != size {
		return nil, &domain.ValidationError{
			Division: d.Abr,
			Detail:   fmt.Sprintf("team %q declares %d members, division needs %d", s.Name, len(s.Members), size),
		}
	}
	members := make([]*domain.Wrestler, 0, size)
	for _, name := range s.Members {
		c, ok := d.Lookup(name)
		if !ok {
			e.flagNewContestant(d.Abr, name)
			return nil, &domain.ValidationError{Division: d.Abr, Detail: fmt.Sprintf("unknown team member %q", name)}
		}
		w, isWrestler := c.(*domain.Wrestler)
		if !isWrestler {
			return nil, &domain.ValidationError{Division: d.Abr, Detail: fmt.Sprintf("team member %q is itself a team", name)}
		}
		members = append(members, w)
	}
	return &sidePlan{teamName: s.Name, members: members}, nil
}

func (p *sidePlan) materialize(d *domain.Division, initial float64) domain.Contestant {
	if p.existing != nil {
		return p.existing
	}
	t := domain.NewTeam(p.teamName, p.members, initial)
	d.Add(t)
	return t
}

// RecordMatch validates and applies one match. A validation failure is
// recorded in the anomaly report and leaves every rating untouched.
func (e *Engine) RecordMatch(in MatchInput) error {
	d, ok := e.divIndex[in.Division]
	if !ok {
		err := &domain.ValidationError{Division: in.Division, Detail: "unknown division"}
		e.reject(in, err.Detail)
		return err
	}

	planA, err := e.resolveSide(d, in.SideA)
	if err != nil {
		e.reject(in, err.Error())
		return err
	}
	planB, err := e.resolveSide(d, in.SideB)
	if err != nil {
		e.reject(in, err.Error())
		return err
	}

	e.rollSeason(in.Date.Year())

	a := planA.materialize(d, e.cfg.Initial)
	b := planB.materialize(d, e.cfg.Initial)

	k := e.cfg.K
	if in.Title != "" {
		k = e.cfg.TitleK
	}

	scoreA := 0.5
	switch in.Result {
	case domain.ResultA:
		scoreA = 1
	case domain.ResultB:
		scoreA = 0
	}

	m := &domain.Match{
		MatchID:   e.nextMatchID,
		Date:      in.Date,
		Event:     in.Event,
		TitleName: in.Title,
		MatchType: in.MatchType,
		SideA:     a.DisplayName(),
		SideB:     b.DisplayName(),
		Result:    in.Result,
	}
	e.nextMatchID++

	// Each variant is an independent stream; the delta is computed once
	// per stream and applied with opposite signs so the division's rating
	// sum is conserved.
	for _, key := range domain.RatingKeys {
		expected := Probability(a.Rating(key), b.Rating(key))
		dlt := delta(expected, scoreA, k)
		a.SetRating(key, a.Rating(key)+dlt)
		b.SetRating(key, b.Rating(key)-dlt)
		if key == domain.KeyMMR {
			m.Points = math.Abs(dlt)
			m.MMRA = a.Rating(key)
			m.MMRB = b.Rating(key)
		}
	}

	year := in.Date.Year()
	switch in.Result {
	case domain.ResultA:
		a.Record().Wins++
		a.YearlyRecord(year).Wins++
		a.Streak().Update(domain.StreakWin)
		b.Record().Losses++
		b.YearlyRecord(year).Losses++
		b.Streak().Update(domain.StreakLoss)
	case domain.ResultB:
		b.Record().Wins++
		b.YearlyRecord(year).Wins++
		b.Streak().Update(domain.StreakWin)
		a.Record().Losses++
		a.YearlyRecord(year).Losses++
		a.Streak().Update(domain.StreakLoss)
	default:
		a.Record().Draws++
		a.YearlyRecord(year).Draws++
		a.Streak().Update(domain.StreakDraw)
		b.Record().Draws++
		b.YearlyRecord(year).Draws++
		b.Streak().Update(domain.StreakDraw)
	}

	if in.Title != "" && in.Result != domain.ResultDraw {
		t, ok := e.titleIndex[in.Title]
		if !ok {
			t = e.AddTitle(in.Title, in.Title, d.Abr)
		}
		winner := m.SideA
		if in.Result == domain.ResultB {
			winner = m.SideB
		}
		t.ChangeHands(winner, m)
	}

	d.MatchHistory = append(d.MatchHistory, m)

	if !in.Date.Before(e.lastDate) {
		e.lastDate = in.Date
		e.lastEvent = in.Event
	}
	return nil
}

// rollSeason applies the periodic reset to the "mmr" variant when the
// replay crosses into a new calendar year. Replay order is deterministic,
// so so is the reset point.
func (e *Engine) rollSeason(year int) {
	if e.currentYear == 0 {
		e.currentYear = year
		return
	}
	for e.currentYear < year {
		e.currentYear++
		for _, d := range e.divisions {
			for _, c := range d.Contestants {
				c.SetRating(domain.KeyMMR, yearlyReset(c.Rating(domain.KeyMMR), e.cfg))
			}
		}
		e.logger.Debug().Int("year", e.currentYear).Msg("applied season rating reset")
	}
}

// ComputeRankings sorts every division by every rating key descending
// (display name breaks ties), writes 1-based ranks into each contestant,
// and freezes the ordered slices. It must run as the last build step;
// once the snapshot is shared, ranking queries are pure reads. In team
// divisions only contestants that have competed are ranked, so roster
// wrestlers who only ever appear inside teams do not pad the tables.
func (e *Engine) ComputeRankings() {
	e.rankings = make(map[string]map[string][]domain.Contestant, len(e.divisions))
	for _, d := range e.divisions {
		eligible := d.Contestants
		if d.Kind.TeamSize() > 0 {
			eligible = make([]domain.Contestant, 0, len(d.Contestants))
			for _, c := range d.Contestants {
				if c.Record().Total() > 0 {
					eligible = append(eligible, c)
				}
			}
		}
		byKey := make(map[string][]domain.Contestant, len(domain.RatingKeys))
		for _, key := range domain.RatingKeys {
			ranked := append([]domain.Contestant(nil), eligible...)
			sort.SliceStable(ranked, func(i, j int) bool {
				ri, rj := ranked[i].Rating(key), ranked[j].Rating(key)
				if ri != rj {
					return ri > rj
				}
				return ranked[i].DisplayName() < ranked[j].DisplayName()
			})
			for i, c := range ranked {
				c.SetRank(key, i+1)
			}
			byKey[key] = ranked
		}
		e.rankings[d.Abr] = byKey
	}
}

// RankDivision returns the frozen ranking of a division for one rating
// key, best first. Safe for concurrent readers once ComputeRankings ran.
func (e *Engine) RankDivision(d *domain.Division, key string) []domain.Contestant {
	return e.rankings[d.Abr][key]
}

// RecordVs tallies the head-to-head between two contestants of a division.
func (e *Engine) RecordVs(divisionAbr, a, b string) (winsA, winsB, draws int, err error) {
	d, derr := e.Division(divisionAbr)
	if derr != nil {
		return 0, 0, 0, derr
	}
	for _, m := range d.MatchHistory {
		var aIsSideA bool
		switch {
		case m.SideA == a && m.SideB == b:
			aIsSideA = true
		case m.SideA == b && m.SideB == a:
			aIsSideA = false
		default:
			continue
		}
		switch m.Result {
		case domain.ResultDraw:
			draws++
		case domain.ResultA:
			if aIsSideA {
				winsA++
			} else {
				winsB++
			}
		case domain.ResultB:
			if aIsSideA {
				winsB++
			} else {
				winsA++
			}
		}
	}
	return winsA, winsB, draws, nil
}

// VerifyConsistency reconciles every contestant's records against the
// match history. A mismatch indicates a source-data or algorithm defect
// and must fail the reload.
func (e *Engine) VerifyConsistency() error {
	for _, d := range e.divisions {
		appearances := make(map[string]int, len(d.Contestants))
		for _, m := range d.MatchHistory {
			appearances[m.SideA]++
			appearances[m.SideB]++
		}
		for _, c := range d.Contestants {
			var yearly domain.Record
			for _, y := range c.Years() {
				rec := c.YearlyRecord(y)
				yearly.Wins += rec.Wins
				yearly.Losses += rec.Losses
				yearly.Draws += rec.Draws
			}
			rec := *c.Record()
			if yearly != rec {
				return &domain.ConsistencyError{
					Division:   d.Abr,
					Contestant: c.DisplayName(),
					Detail:     fmt.Sprintf("yearly records sum to %s, all-time record is %s", yearly, rec),
				}
			}
			if got := appearances[c.DisplayName()]; got != rec.Total() {
				return &domain.ConsistencyError{
					Division:   d.Abr,
					Contestant: c.DisplayName(),
					Detail:     fmt.Sprintf("record counts %d matches, history has %d", rec.Total(), got),
				}
			}
		}
	}
	return nil
}

func (e *Engine) flagNewContestant(divisionAbr, name string) {
	set, ok := e.newContestants[divisionAbr]
	if !ok {
		set = make(map[string]struct{})
		e.newContestants[divisionAbr] = set
	}
	set[name] = struct{}{}
}

func (e *Engine) reject(in MatchInput, reason string) {
	e.rejected = append(e.rejected, RejectedMatch{
		SourceID: in.SourceID,
		Division: in.Division,
		Event:    in.Event,
		Date:     in.Date,
		Reason:   reason,
	})
	e.logger.Warn().
		Int64("source_id", in.SourceID).
		Str("division", in.Division).
		Str("event", in.Event).
		Str("reason", reason).
		Msg("match rejected")
}

// NewContestants reports names seen in ingested data that were not on any
// roster, per division, sorted.
func (e *Engine) NewContestants() map[string][]string {
	out := make(map[string][]string, len(e.newContestants))
	for abr, set := range e.newContestants {
		names := make([]string, 0, len(set))
		for n := range set {
			names = append(names, n)
		}
		sort.Strings(names)
		out[abr] = names
	}
	return out
}

func (e *Engine) TeamErrors() []TeamError          { return e.teamErrors }
func (e *Engine) RejectedMatches() []RejectedMatch { return e.rejected }

func sameLineup(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
