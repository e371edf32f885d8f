package engine

import "math"

// RatingConfig holds the tunable constants of the rating update. The
// historical data was fit with the defaults; treat them as configuration,
// not truths.
type RatingConfig struct {
	// Initial is the rating every contestant starts at.
	Initial float64
	// K scales how far a single result moves a rating.
	K float64
	// TitleK replaces K when a championship is on the line.
	TitleK float64
	// ResetCarryover is the fraction of the distance from Initial kept by
	// the "mmr" variant when a new calendar year starts. 1 disables the
	// reset entirely.
	ResetCarryover float64
}

func DefaultRatingConfig() RatingConfig {
	return RatingConfig{
		Initial:        1500,
		K:              32,
		TitleK:         32,
		ResetCarryover: 0.75,
	}
}

// Probability is the logistic expected score of the rating a side against
// the rating b side. Symmetric: Probability(a,b)+Probability(b,a) == 1.
func Probability(a, b float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (b-a)/400.0))
}

// delta is the signed rating change for a side with the given expected and
// actual score (1, 0, or 0.5). Applying +delta to one side and -delta to
// the other keeps the division's rating sum invariant.
func delta(expected, actual, k float64) float64 {
	return k * (actual - expected)
}

// yearlyReset pulls a rating toward the initial value at a season boundary.
func yearlyReset(rating float64, cfg RatingConfig) float64 {
	return cfg.Initial + (rating-cfg.Initial)*cfg.ResetCarryover
}
