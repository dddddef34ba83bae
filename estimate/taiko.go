package estimate

import (
	"osupp/beatmap"
	"osupp/hitresult"
)

type TaikoParams struct {
	Accuracy float64
	Misses   int
	Oks      *int
}

// Taiko uses the max combo as the judged count; every hit is a great or an ok.
func Taiko(stats beatmap.Stats, p TaikoParams) Breakdown {
	total := stats.MaxCombo
	miss := p.Misses

	var great, ok int
	if p.Oks != nil {
		ok = *p.Oks
		great = total - ok - miss
	} else {
		target := round(p.Accuracy * float64(total) * 2)
		great = target - (total - miss)
		ok = total - great - miss
	}

	return Breakdown{Statistics: hitresult.Statistics{
		hitresult.Great: great,
		hitresult.Ok:    ok,
		hitresult.Meh:   0,
		hitresult.Miss:  miss,
	}}
}

func TaikoAccuracy(b Breakdown) float64 {
	s := b.Statistics
	great, ok, miss := s[hitresult.Great], s[hitresult.Ok], s[hitresult.Miss]
	return ratio(float64(2*great+ok), float64(2*(great+ok+miss)))
}
