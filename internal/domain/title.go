package domain

import "time"

// Reign is a contiguous period during which Owner held the title.
// A zero End marks the current reign.
type Reign struct {
	Owner string
	Start time.Time
	End   time.Time
}

func (r Reign) Current() bool { return r.End.IsZero() }

// Title tracks the current holder, the ordered reign history, and the
// matches that changed ownership.
type Title struct {
	Name         string
	Championship string
	DivisionAbr  string
	Holder       string
	Reigns       []Reign
	Matches      []*Match
}

func NewTitle(name, championship, divisionAbr string) *Title {
	return &Title{Name: name, Championship: championship, DivisionAbr: divisionAbr}
}

// ChangeHands closes the current reign (if any) and opens a new one for
// the winner. No-op when the holder retains.
func (t *Title) ChangeHands(winner string, m *Match) {
	if winner == t.Holder {
		return
	}
	if n := len(t.Reigns); n > 0 && t.Reigns[n-1].Current() {
		t.Reigns[n-1].End = m.Date
	}
	t.Holder = winner
	t.Reigns = append(t.Reigns, Reign{Owner: winner, Start: m.Date})
	t.Matches = append(t.Matches, m)
}
