package beatmap

// Stats are the counts the judgement estimators need. They are fixed for a
// given beatmap, ruleset and mod combination.
type Stats struct {
	Objects  int
	MaxCombo int

	Sliders    int
	LargeTicks int // slider ticks and repeats

	Fruits       int // fruits, including those inside juice streams
	Droplets     int // large droplets inside juice streams
	TinyDroplets int

	HoldNotes int
}

func (p *Playable) Stats() Stats {
	var s Stats
	if p == nil {
		return s
	}
	s.Objects = len(p.HitObjects)
	for i := range p.HitObjects {
		h := &p.HitObjects[i]
		s.MaxCombo += comboOf(h)

		switch h.Kind {
		case KindSlider:
			s.Sliders++
		case KindFruit:
			s.Fruits++
		case KindHoldNote:
			s.HoldNotes++
		}

		for _, n := range h.Nested {
			switch n.Kind {
			case KindSliderTick, KindSliderRepeat:
				s.LargeTicks++
			}
			if h.Kind != KindJuiceStream {
				continue
			}
			switch n.Kind {
			case KindFruit:
				s.Fruits++
			case KindDroplet:
				s.Droplets++
			case KindTinyDroplet:
				s.TinyDroplets++
			}
		}
	}
	return s
}

func comboOf(h *HitObject) int {
	n := 0
	if h.AffectsCombo {
		n++
	}
	for i := range h.Nested {
		n += comboOf(&h.Nested[i])
	}
	return n
}
