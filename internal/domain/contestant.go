package domain

import (
	"fmt"
	"sort"
)

// Rating variant keys. Every match updates both streams; "mmr" is pulled
// toward the initial rating at each new calendar year, "mmr_noreset" never is.
const (
	KeyMMR        = "mmr"
	KeyMMRNoReset = "mmr_noreset"
)

// RatingKeys lists the variants in display order.
var RatingKeys = []string{KeyMMR, KeyMMRNoReset}

type Result string

const (
	ResultA    Result = "a"
	ResultB    Result = "b"
	ResultDraw Result = "draw"
)

// Record is a wins/losses/draws triple.
type Record struct {
	Wins   int
	Losses int
	Draws  int
}

func (r Record) Total() int { return r.Wins + r.Losses + r.Draws }

func (r Record) String() string {
	return fmt.Sprintf("%d-%d-%d", r.Wins, r.Losses, r.Draws)
}

type StreakKind string

const (
	StreakWin  StreakKind = "W"
	StreakLoss StreakKind = "L"
	StreakDraw StreakKind = "D"
)

// Streak is the current run of same-outcome results.
type Streak struct {
	Kind   StreakKind
	Length int
}

func (s *Streak) Update(kind StreakKind) {
	if s.Kind == kind {
		s.Length++
		return
	}
	s.Kind = kind
	s.Length = 1
}

func (s Streak) String() string {
	if s.Length == 0 {
		return ""
	}
	return fmt.Sprintf("%s%d", s.Kind, s.Length)
}

// Contestant is the shared capability set over individuals and teams.
type Contestant interface {
	DisplayName() string
	IsTeam() bool

	Rating(key string) float64
	SetRating(key string, v float64)

	Record() *Record
	YearlyRecord(year int) *Record
	Years() []int

	Streak() *Streak

	Rank(key string) int
	SetRank(key string, rank int)
}

// ratingState carries the fields common to wrestlers and teams.
type ratingState struct {
	ratings map[string]float64
	record  Record
	yearly  map[int]*Record
	streak  Streak
	ranks   map[string]int
}

func newRatingState(initial float64) ratingState {
	ratings := make(map[string]float64, len(RatingKeys))
	for _, key := range RatingKeys {
		ratings[key] = initial
	}
	return ratingState{
		ratings: ratings,
		yearly:  make(map[int]*Record),
		ranks:   make(map[string]int),
	}
}

func (s *ratingState) Rating(key string) float64       { return s.ratings[key] }
func (s *ratingState) SetRating(key string, v float64) { s.ratings[key] = v }
func (s *ratingState) Record() *Record                 { return &s.record }
func (s *ratingState) Streak() *Streak                 { return &s.streak }
func (s *ratingState) Rank(key string) int             { return s.ranks[key] }
func (s *ratingState) SetRank(key string, rank int)    { s.ranks[key] = rank }

func (s *ratingState) YearlyRecord(year int) *Record {
	rec, ok := s.yearly[year]
	if !ok {
		rec = &Record{}
		s.yearly[year] = rec
	}
	return rec
}

func (s *ratingState) Years() []int {
	years := make([]int, 0, len(s.yearly))
	for y := range s.yearly {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// Wrestler is an individual contestant.
type Wrestler struct {
	ratingState
	Name  string
	Teams []*Team
}

func NewWrestler(name string, initial float64) *Wrestler {
	return &Wrestler{ratingState: newRatingState(initial), Name: name}
}

func (w *Wrestler) DisplayName() string { return w.Name }
func (w *Wrestler) IsTeam() bool        { return false }

// Team is a duo or trio. Member references are non-owning; wrestlers
// outlive any one team grouping.
type Team struct {
	ratingState
	FullName string
	Members  []*Wrestler
}

func NewTeam(fullName string, members []*Wrestler, initial float64) *Team {
	t := &Team{ratingState: newRatingState(initial), FullName: fullName, Members: members}
	for _, m := range members {
		m.Teams = append(m.Teams, t)
	}
	return t
}

func (t *Team) DisplayName() string { return t.FullName }
func (t *Team) IsTeam() bool        { return true }

func (t *Team) MemberNames() []string {
	names := make([]string, len(t.Members))
	for i, m := range t.Members {
		names[i] = m.Name
	}
	return names
}
