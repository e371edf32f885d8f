package domain

import "time"

type DivisionKind string

const (
	KindSingles DivisionKind = "singles"
	KindDuos    DivisionKind = "duos"
	KindTrios   DivisionKind = "trios"
)

// TeamSize is 0 for singles divisions.
func (k DivisionKind) TeamSize() int {
	switch k {
	case KindDuos:
		return 2
	case KindTrios:
		return 3
	default:
		return 0
	}
}

// Match is immutable once recorded. MatchID is assigned by the engine,
// strictly increasing and globally unique across divisions.
type Match struct {
	MatchID   uint64
	Date      time.Time
	Event     string
	TitleName string
	MatchType string
	SideA     string
	SideB     string
	Result    Result
	// Points is the magnitude of the "mmr" delta; side A gained it on
	// ResultA and lost it on ResultB.
	Points float64
	// Resulting "mmr" ratings per side after the update.
	MMRA float64
	MMRB float64
}

// Division groups the contestants ranked against each other.
type Division struct {
	Name         string
	Abr          string
	Kind         DivisionKind
	Contestants  []Contestant
	MatchHistory []*Match

	byName map[string]Contestant
}

func NewDivision(name, abr string, kind DivisionKind) *Division {
	return &Division{
		Name:   name,
		Abr:    abr,
		Kind:   kind,
		byName: make(map[string]Contestant),
	}
}

func (d *Division) Add(c Contestant) {
	d.Contestants = append(d.Contestants, c)
	d.byName[c.DisplayName()] = c
}

func (d *Division) Lookup(name string) (Contestant, bool) {
	c, ok := d.byName[name]
	return c, ok
}

// Wrestlers returns only the individual contestants of the division.
// In team divisions these are the roster members teams are built from.
func (d *Division) Wrestlers() []*Wrestler {
	var out []*Wrestler
	for _, c := range d.Contestants {
		if w, ok := c.(*Wrestler); ok {
			out = append(out, w)
		}
	}
	return out
}
