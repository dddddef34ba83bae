package estimate

import (
	"osupp/beatmap"
	"osupp/hitresult"
)

type CatchParams struct {
	Accuracy      float64
	Misses        int
	SmallTickHits *int
	LargeTickHits *int
}

// Catch charges misses to droplets first, then to fruits. Tiny droplets absorb
// whatever accuracy is left.
func Catch(stats beatmap.Stats, p CatchParams) Breakdown {
	maxGreat := stats.Fruits
	maxLarge := stats.Droplets
	maxSmall := stats.TinyDroplets
	miss := p.Misses

	large := max(0, maxLarge-miss)
	if p.LargeTickHits != nil {
		large = *p.LargeTickHits
	}

	great := maxGreat - (miss - (maxLarge - large))

	var small int
	if p.SmallTickHits != nil {
		small = *p.SmallTickHits
	} else {
		small = round(p.Accuracy*float64(stats.MaxCombo+maxSmall)) - great - large
	}

	return Breakdown{Statistics: hitresult.Statistics{
		hitresult.Great:         great,
		hitresult.LargeTickHit:  large,
		hitresult.SmallTickHit:  small,
		hitresult.SmallTickMiss: maxSmall - small,
		hitresult.Miss:          miss,
	}}
}

func CatchAccuracy(b Breakdown) float64 {
	s := b.Statistics
	hits := s[hitresult.Great] + s[hitresult.LargeTickHit] + s[hitresult.SmallTickHit]
	return ratio(float64(hits), float64(hits+s[hitresult.Miss]+s[hitresult.SmallTickMiss]))
}
