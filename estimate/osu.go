package estimate

import (
	"osupp/beatmap"
	"osupp/hitresult"
)

// OsuParams are the inputs of an osu! estimate. Accuracy is a fraction.
//
// LargeTickMisses and SliderTailMisses switch on tracking of their category
// when non-nil. Classic plays leave both nil.
type OsuParams struct {
	Accuracy float64
	Misses   int
	Mehs     *int
	Oks      *int

	LargeTickMisses  *int
	SliderTailMisses *int
	LargeTickHits    *int
	SliderTailHits   *int
}

func Osu(stats beatmap.Stats, p OsuParams) Breakdown {
	total := stats.Objects
	miss := p.Misses

	var ok, meh int
	if p.Mehs != nil || p.Oks != nil {
		ok, meh = deref(p.Oks), deref(p.Mehs)
	} else {
		ok, meh = osuOkMeh(total, miss, p.Accuracy)
	}

	s := hitresult.Statistics{
		hitresult.Great: total - ok - meh - miss,
		hitresult.Ok:    ok,
		hitresult.Meh:   meh,
		hitresult.Miss:  miss,
	}
	if p.LargeTickMisses != nil {
		s[hitresult.LargeTickMiss] = *p.LargeTickMisses
	}
	if p.SliderTailMisses != nil {
		s[hitresult.SliderTailHit] = stats.Sliders - *p.SliderTailMisses
	}
	if p.SliderTailHits != nil {
		s[hitresult.SliderTailHit] = *p.SliderTailHits
	}

	b := Breakdown{Statistics: s}
	if p.LargeTickHits != nil {
		v := *p.LargeTickHits
		b.LargeTickHits = &v
	}
	return b
}

// osuOkMeh spreads the accuracy lost on non-missed objects over 100s and 50s.
func osuOkMeh(total, miss int, accuracy float64) (ok, meh int) {
	relevant := total - miss
	rel := float64(relevant)

	acc := 0.0
	if relevant > 0 {
		acc = accuracy * float64(total) / rel
	}
	acc = max(0, min(1, acc))

	switch {
	case acc >= 0.25:
		r := 1 - (acc-0.25)/0.75
		r *= r
		okEst := 6 * rel * (1 - acc) / (5*r + 4)
		mehEst := okEst * r
		ok = round(okEst)
		meh = round(okEst+mehEst) - ok
	case acc >= 1.0/6:
		okEst := 6*rel*acc - rel
		mehEst := rel - okEst
		ok = round(okEst)
		meh = round(okEst+mehEst) - ok
	default:
		meh = round(6 * rel * acc)
	}
	return ok, meh
}

// OsuAccuracy scores 300/100/50 as 6/2/1, with slider tails worth 3 and large
// ticks worth 0.6 when those categories are tracked.
func OsuAccuracy(stats beatmap.Stats, b Breakdown) float64 {
	s := b.Statistics
	great, ok, meh, miss := s[hitresult.Great], s[hitresult.Ok], s[hitresult.Meh], s[hitresult.Miss]

	total := float64(6*great + 2*ok + meh)
	maxScore := float64(6 * (great + ok + meh + miss))

	if s.Has(hitresult.SliderTailHit) {
		total += float64(3 * s[hitresult.SliderTailHit])
		maxScore += float64(3 * stats.Sliders)
	}

	if s.Has(hitresult.LargeTickMiss) || b.LargeTickHits != nil {
		hit := stats.LargeTicks - s[hitresult.LargeTickMiss]
		if b.LargeTickHits != nil {
			hit = *b.LargeTickHits
		}
		total += 0.6 * float64(hit)
		maxScore += 0.6 * float64(stats.LargeTicks)
	}

	return ratio(total, maxScore)
}
