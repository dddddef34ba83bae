package session

import (
	"osupp/beatmap"
	"osupp/estimate"
	"osupp/ruleset"
)

// Request is one hypothetical play to evaluate. The set of implementations is
// closed: OsuRequest, TaikoRequest, CatchRequest and ManiaRequest.
//
// Accuracy is a percentage and nil means 100. A nil Combo means the beatmap's
// max combo.
type Request interface {
	Ruleset() ruleset.ID
	isRequest()
}

type OsuRequest struct {
	Accuracy *float64
	Combo    *int
	Misses   int
	Mehs     *int
	Oks      *int

	// Tick and tail counts are ignored under classic slider accuracy.
	LargeTickMisses  int
	SliderTailMisses int
	LargeTickHits    *int
	SliderTailHits   *int
}

type TaikoRequest struct {
	Accuracy *float64
	Combo    *int
	Misses   int
	Oks      *int
}

type CatchRequest struct {
	Accuracy      *float64
	Combo         *int
	Misses        int
	SmallTickHits *int
	LargeTickHits *int
}

// ManiaRequest has no combo; mania plays are scored at max combo.
type ManiaRequest struct {
	Accuracy *float64
	Misses   int
	Mehs     *int
	Oks      *int
	Goods    *int
	Greats   *int
}

func (OsuRequest) Ruleset() ruleset.ID   { return ruleset.Osu }
func (TaikoRequest) Ruleset() ruleset.ID { return ruleset.Taiko }
func (CatchRequest) Ruleset() ruleset.ID { return ruleset.Catch }
func (ManiaRequest) Ruleset() ruleset.ID { return ruleset.Mania }

func (OsuRequest) isRequest()   {}
func (TaikoRequest) isRequest() {}
func (CatchRequest) isRequest() {}
func (ManiaRequest) isRequest() {}

// Ptr is a convenience for filling optional request fields.
func Ptr[T any](v T) *T { return &v }

func fraction(percent *float64) float64 {
	if percent == nil {
		return 1
	}
	return *percent / 100
}

// deref turns pointer requests into values. A nil pointer counts as no request.
func deref(req Request) Request {
	switch r := req.(type) {
	case *OsuRequest:
		if r == nil {
			return nil
		}
		return *r
	case *TaikoRequest:
		if r == nil {
			return nil
		}
		return *r
	case *CatchRequest:
		if r == nil {
			return nil
		}
		return *r
	case *ManiaRequest:
		if r == nil {
			return nil
		}
		return *r
	}
	return req
}

// judge estimates the breakdown for req and recomputes its accuracy. The
// returned combo is nil when the request leaves it to the beatmap.
func judge(req Request, stats beatmap.Stats, classic bool) (estimate.Breakdown, float64, *int) {
	switch r := req.(type) {
	case OsuRequest:
		p := estimate.OsuParams{
			Accuracy: fraction(r.Accuracy),
			Misses:   r.Misses,
			Mehs:     r.Mehs,
			Oks:      r.Oks,
		}
		if !classic {
			p.LargeTickMisses = &r.LargeTickMisses
			p.SliderTailMisses = &r.SliderTailMisses
			p.LargeTickHits = r.LargeTickHits
			p.SliderTailHits = r.SliderTailHits
		}
		b := estimate.Osu(stats, p)
		return b, estimate.OsuAccuracy(stats, b), r.Combo

	case TaikoRequest:
		b := estimate.Taiko(stats, estimate.TaikoParams{
			Accuracy: fraction(r.Accuracy),
			Misses:   r.Misses,
			Oks:      r.Oks,
		})
		return b, estimate.TaikoAccuracy(b), r.Combo

	case CatchRequest:
		b := estimate.Catch(stats, estimate.CatchParams{
			Accuracy:      fraction(r.Accuracy),
			Misses:        r.Misses,
			SmallTickHits: r.SmallTickHits,
			LargeTickHits: r.LargeTickHits,
		})
		return b, estimate.CatchAccuracy(b), r.Combo

	case ManiaRequest:
		b := estimate.Mania(stats, estimate.ManiaParams{
			Accuracy: fraction(r.Accuracy),
			Misses:   r.Misses,
			Mehs:     r.Mehs,
			Oks:      r.Oks,
			Goods:    r.Goods,
			Greats:   r.Greats,
			Classic:  classic,
		})
		return b, estimate.ManiaAccuracy(b, classic), nil
	}
	panic("session: unhandled request type")
}
