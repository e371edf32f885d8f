package engine

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"mmr-engine/internal/domain"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// YearAllTime selects the all-time record in stats queries.
const YearAllTime = "alltime"

// RankingRow is one line of a division ranking table.
type RankingRow struct {
	Rank   int     `json:"rank"`
	Name   string  `json:"name"`
	MMR    float64 `json:"mmr"`
	Record string  `json:"record"`
	Streak string  `json:"streak,omitempty"`
}

// RankingsTop10 returns the ten highest rated contestants of every
// division by the main rating key.
func (e *Engine) RankingsTop10() map[string][]RankingRow {
	out := make(map[string][]RankingRow, len(e.divisions))
	for _, d := range e.divisions {
		rows := e.rankingRows(d, domain.KeyMMR)
		if len(rows) > 10 {
			rows = rows[:10]
		}
		out[d.Name] = rows
	}
	return out
}

// DivisionRankings is the full ranking of one division per rating variant.
type DivisionRankings struct {
	Name   string                  `json:"name"`
	Abr    string                  `json:"abr"`
	Tables map[string][]RankingRow `json:"tables"`
}

func (e *Engine) RankingsExtended() []DivisionRankings {
	out := make([]DivisionRankings, 0, len(e.divisions))
	for _, d := range e.divisions {
		tables := make(map[string][]RankingRow, len(domain.RatingKeys))
		for _, key := range domain.RatingKeys {
			tables[key] = e.rankingRows(d, key)
		}
		out = append(out, DivisionRankings{Name: d.Name, Abr: d.Abr, Tables: tables})
	}
	return out
}

func (e *Engine) rankingRows(d *domain.Division, key string) []RankingRow {
	ranked := e.RankDivision(d, key)
	rows := make([]RankingRow, len(ranked))
	for i, c := range ranked {
		rows[i] = RankingRow{
			Rank:   c.Rank(key),
			Name:   c.DisplayName(),
			MMR:    c.Rating(key),
			Record: c.Record().String(),
			Streak: c.Streak().String(),
		}
	}
	return rows
}

// StatsKeys enumerates the valid parameters of a stats query.
type StatsKeys struct {
	Divisions  []string `json:"divisions"`
	Years      []string `json:"years"`
	RatingKeys []string `json:"rating_keys"`
}

func (e *Engine) StatsKeys() StatsKeys {
	keys := StatsKeys{Years: []string{YearAllTime}, RatingKeys: domain.RatingKeys}
	yearSet := make(map[int]struct{})
	for _, d := range e.divisions {
		keys.Divisions = append(keys.Divisions, d.Abr)
		for _, c := range d.Contestants {
			for _, y := range c.Years() {
				yearSet[y] = struct{}{}
			}
		}
	}
	years := make([]int, 0, len(yearSet))
	for y := range yearSet {
		years = append(years, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	for _, y := range years {
		keys.Years = append(keys.Years, strconv.Itoa(y))
	}
	return keys
}

// StatRow is one line of a stats table.
type StatRow struct {
	Rank   int     `json:"rank"`
	Name   string  `json:"name"`
	MMR    float64 `json:"mmr"`
	Wins   int     `json:"wins"`
	Losses int     `json:"losses"`
	Draws  int     `json:"draws"`
	WinPct float64 `json:"win_pct"`
}

// Stats builds the stats table for one division, year selector, and
// rating variant, in ranking order.
func (e *Engine) Stats(divisionAbr, yearKey, ratingKey string) ([]StatRow, error) {
	d, err := e.Division(divisionAbr)
	if err != nil {
		return nil, err
	}
	if !validRatingKey(ratingKey) {
		return nil, fmt.Errorf("rating key %q: %w", ratingKey, domain.ErrNotFound)
	}
	var year int
	if yearKey != YearAllTime {
		year, err = strconv.Atoi(yearKey)
		if err != nil {
			return nil, fmt.Errorf("year %q: %w", yearKey, domain.ErrNotFound)
		}
	}

	ranked := e.RankDivision(d, ratingKey)
	rows := make([]StatRow, 0, len(ranked))
	for _, c := range ranked {
		rec := *c.Record()
		if yearKey != YearAllTime {
			rec = *c.YearlyRecord(year)
		}
		row := StatRow{
			Rank:   c.Rank(ratingKey),
			Name:   c.DisplayName(),
			MMR:    c.Rating(ratingKey),
			Wins:   rec.Wins,
			Losses: rec.Losses,
			Draws:  rec.Draws,
		}
		if total := rec.Total(); total > 0 {
			row.WinPct = float64(rec.Wins) / float64(total)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// TitleRow, ReignRow, and OwnerRow are the three tables of the titles
// overview.
type TitleRow struct {
	Name         string `json:"name"`
	Championship string `json:"championship"`
	Division     string `json:"division"`
	Holder       string `json:"holder"`
}

type ReignRow struct {
	Title string    `json:"title"`
	Owner string    `json:"owner"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end,omitzero"`
	Days  int       `json:"days"`
}

type OwnerRow struct {
	Owner   string `json:"owner"`
	Reigns  int    `json:"reigns"`
	Current int    `json:"current"`
}

func (e *Engine) TitleTables() ([]TitleRow, []ReignRow, []OwnerRow) {
	var titles []TitleRow
	var reigns []ReignRow
	ownerReigns := make(map[string]*OwnerRow)

	for _, t := range e.titles {
		titles = append(titles, TitleRow{
			Name:         t.Name,
			Championship: t.Championship,
			Division:     t.DivisionAbr,
			Holder:       t.Holder,
		})
		for _, r := range t.Reigns {
			reigns = append(reigns, reignRow(t.Name, r, e.lastDate))
			row, ok := ownerReigns[r.Owner]
			if !ok {
				row = &OwnerRow{Owner: r.Owner}
				ownerReigns[r.Owner] = row
			}
			row.Reigns++
			if r.Current() {
				row.Current++
			}
		}
	}

	owners := make([]OwnerRow, 0, len(ownerReigns))
	for _, row := range ownerReigns {
		owners = append(owners, *row)
	}
	sort.Slice(owners, func(i, j int) bool {
		if owners[i].Reigns != owners[j].Reigns {
			return owners[i].Reigns > owners[j].Reigns
		}
		return owners[i].Owner < owners[j].Owner
	})
	return titles, reigns, owners
}

// TitleDetail is the single-title view: reign history plus the matches
// that changed ownership.
type TitleDetail struct {
	Name         string     `json:"name"`
	Championship string     `json:"championship"`
	Division     string     `json:"division"`
	Holder       string     `json:"holder"`
	Reigns       []ReignRow `json:"reigns"`
	Matches      []MatchRow `json:"matches"`
}

func (e *Engine) TitleDetail(name string) (*TitleDetail, error) {
	t, err := e.Title(name)
	if err != nil {
		return nil, err
	}
	detail := &TitleDetail{
		Name:         t.Name,
		Championship: t.Championship,
		Division:     t.DivisionAbr,
		Holder:       t.Holder,
	}
	for _, r := range t.Reigns {
		detail.Reigns = append(detail.Reigns, reignRow(t.Name, r, e.lastDate))
	}
	for _, m := range t.Matches {
		detail.Matches = append(detail.Matches, matchRow(m, m.SideA))
	}
	return detail, nil
}

func reignRow(title string, r domain.Reign, asOf time.Time) ReignRow {
	end := r.End
	if r.Current() {
		end = asOf
	}
	days := int(end.Sub(r.Start).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return ReignRow{Title: title, Owner: r.Owner, Start: r.Start, End: r.End, Days: days}
}

// MatchRow is one line of a match-history table, from the perspective of
// the named contestant.
type MatchRow struct {
	MatchID   uint64    `json:"match_id"`
	Date      time.Time `json:"date"`
	Event     string    `json:"event"`
	Title     string    `json:"title,omitempty"`
	MatchType string    `json:"match_type,omitempty"`
	Opponent  string    `json:"opponent"`
	Result    string    `json:"result"`
	Points    float64   `json:"points"`
	MMR       float64   `json:"mmr"`
}

func matchRow(m *domain.Match, from string) MatchRow {
	row := MatchRow{
		MatchID:   m.MatchID,
		Date:      m.Date,
		Event:     m.Event,
		Title:     m.TitleName,
		MatchType: m.MatchType,
		Points:    m.Points,
	}
	fromSideA := m.SideA == from
	if fromSideA {
		row.Opponent = m.SideB
		row.MMR = m.MMRA
	} else {
		row.Opponent = m.SideA
		row.MMR = m.MMRB
	}
	switch {
	case m.Result == domain.ResultDraw:
		row.Result = "D"
	case (m.Result == domain.ResultA) == fromSideA:
		row.Result = "W"
	default:
		row.Result = "L"
	}
	return row
}

// YearStats is one year's (or the all-time) record line of a contestant.
type YearStats struct {
	Year   string `json:"year"`
	Wins   int    `json:"wins"`
	Losses int    `json:"losses"`
	Draws  int    `json:"draws"`
	Record string `json:"record"`
}

// ContestantStats is the full per-contestant block: ratings, ranks,
// records by year, and match history.
type ContestantStats struct {
	Name     string             `json:"name"`
	Division string             `json:"division"`
	IsTeam   bool               `json:"is_team"`
	Members  []string           `json:"members,omitempty"`
	Teams    []string           `json:"teams,omitempty"`
	MMR      map[string]float64 `json:"mmr"`
	Rank     map[string]int     `json:"rank"`
	Streak   string             `json:"streak,omitempty"`
	Stats    []YearStats        `json:"stats"`
	History  []MatchRow         `json:"match_history"`
}

func (e *Engine) ContestantStats(divisionAbr, name string) (*ContestantStats, error) {
	d, err := e.Division(divisionAbr)
	if err != nil {
		return nil, err
	}
	c, ok := d.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("contestant %q in %q: %w", name, divisionAbr, domain.ErrNotFound)
	}

	out := &ContestantStats{
		Name:     c.DisplayName(),
		Division: d.Abr,
		IsTeam:   c.IsTeam(),
		MMR:      make(map[string]float64, len(domain.RatingKeys)),
		Rank:     make(map[string]int, len(domain.RatingKeys)),
		Streak:   c.Streak().String(),
	}
	for _, key := range domain.RatingKeys {
		out.MMR[key] = c.Rating(key)
		out.Rank[key] = c.Rank(key)
	}

	switch v := c.(type) {
	case *domain.Team:
		out.Members = v.MemberNames()
	case *domain.Wrestler:
		for _, t := range v.Teams {
			out.Teams = append(out.Teams, t.FullName)
		}
	}

	for _, y := range c.Years() {
		rec := c.YearlyRecord(y)
		out.Stats = append(out.Stats, YearStats{
			Year: strconv.Itoa(y), Wins: rec.Wins, Losses: rec.Losses, Draws: rec.Draws, Record: rec.String(),
		})
	}
	rec := c.Record()
	out.Stats = append(out.Stats, YearStats{
		Year: YearAllTime, Wins: rec.Wins, Losses: rec.Losses, Draws: rec.Draws, Record: rec.String(),
	})

	for _, m := range d.MatchHistory {
		if m.SideA == out.Name || m.SideB == out.Name {
			out.History = append(out.History, matchRow(m, out.Name))
		}
	}
	return out, nil
}

// SearchResult is one fuzzy-search hit.
type SearchResult struct {
	Division string `json:"division"`
	Name     string `json:"name"`
}

// Search finds contestants whose names fuzzily match the query, best
// matches first. Names in this data are messy; exact lookup is not enough.
func (e *Engine) Search(query string, limit int) []SearchResult {
	type hit struct {
		result SearchResult
		rank   int
	}
	var hits []hit
	for _, d := range e.divisions {
		names := make([]string, len(d.Contestants))
		for i, c := range d.Contestants {
			names[i] = c.DisplayName()
		}
		for _, r := range fuzzy.RankFindNormalizedFold(query, names) {
			hits = append(hits, hit{result: SearchResult{Division: d.Abr, Name: r.Target}, rank: r.Distance})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].rank < hits[j].rank })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]SearchResult, len(hits))
	for i, h := range hits {
		out[i] = h.result
	}
	return out
}

func validRatingKey(key string) bool {
	for _, k := range domain.RatingKeys {
		if k == key {
			return true
		}
	}
	return false
}
