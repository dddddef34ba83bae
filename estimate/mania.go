package estimate

import (
	"osupp/beatmap"
	"osupp/hitresult"
)

type ManiaParams struct {
	Accuracy float64
	Misses   int
	Mehs     *int
	Oks      *int
	Goods    *int
	Greats   *int

	// Classic drops the separate hold note tail judgement and weights a
	// perfect like a great.
	Classic bool
}

// ManiaTotal is the number of judgements a mania play receives.
func ManiaTotal(stats beatmap.Stats, classic bool) int {
	if classic {
		return stats.Objects
	}
	return stats.Objects + stats.HoldNotes
}

func Mania(stats beatmap.Stats, p ManiaParams) Breakdown {
	total := ManiaTotal(stats, p.Classic)
	miss := p.Misses

	if p.Mehs != nil || p.Oks != nil || p.Goods != nil || p.Greats != nil {
		meh, ok, good, great := deref(p.Mehs), deref(p.Oks), deref(p.Goods), deref(p.Greats)
		return Breakdown{Statistics: hitresult.Statistics{
			hitresult.Perfect: total - (miss + meh + ok + good + great),
			hitresult.Great:   great,
			hitresult.Good:    good,
			hitresult.Ok:      ok,
			hitresult.Meh:     meh,
			hitresult.Miss:    miss,
		}}
	}

	perfectValue := 61
	if p.Classic {
		perfectValue = 60
	}
	target := round(p.Accuracy * float64(total) * float64(perfectValue))

	remaining := total - miss
	delta := max(target-10*remaining, 0)

	// Greedy fill from the best judgement down. Weights are each judgement's
	// value above an ok.
	take := func(weight int) int {
		n := min(delta/weight, remaining)
		delta -= n * weight
		remaining -= n
		return n
	}
	perfect := take(perfectValue - 10)
	great := take(50)
	good := take(30)
	ok := take(10)

	return Breakdown{Statistics: hitresult.Statistics{
		hitresult.Perfect: perfect,
		hitresult.Great:   great,
		hitresult.Good:    good,
		hitresult.Ok:      ok,
		hitresult.Meh:     remaining,
		hitresult.Miss:    miss,
	}}
}

func ManiaAccuracy(b Breakdown, classic bool) float64 {
	s := b.Statistics
	perfectWeight := 305
	if classic {
		perfectWeight = 300
	}
	perfect, great, good := s[hitresult.Perfect], s[hitresult.Great], s[hitresult.Good]
	ok, meh, miss := s[hitresult.Ok], s[hitresult.Meh], s[hitresult.Miss]

	total := perfectWeight*perfect + 300*great + 200*good + 100*ok + 50*meh
	maxScore := perfectWeight * (perfect + great + good + ok + meh + miss)
	return ratio(float64(total), float64(maxScore))
}
