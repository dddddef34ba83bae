// Package estimate turns an accuracy target into judgement counts and judgement
// counts back into accuracy, for each ruleset.
//
// Inputs are never clamped: counts that do not fit the beatmap, such as more
// misses than objects, produce negative results instead of errors.
package estimate

import (
	"math"

	"osupp/hitresult"
)

// Breakdown is a full set of judgement counts for one hypothetical play.
type Breakdown struct {
	Statistics hitresult.Statistics

	// LargeTickHits overrides the large tick hit count used for osu! accuracy.
	// It never reaches the performance calculator.
	LargeTickHits *int
}

// round matches the engine's midpoint rounding.
func round(x float64) int { return int(math.RoundToEven(x)) }

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
