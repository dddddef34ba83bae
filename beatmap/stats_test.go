package beatmap

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func circle(t float64) HitObject {
	return HitObject{Kind: KindCircle, StartTime: t, AffectsCombo: true}
}

func slider(t float64, ticks, repeats int) HitObject {
	s := HitObject{Kind: KindSlider, StartTime: t}
	s.Nested = append(s.Nested, HitObject{Kind: KindSliderHead, StartTime: t, AffectsCombo: true})
	for i := 0; i < ticks; i++ {
		s.Nested = append(s.Nested, HitObject{Kind: KindSliderTick, AffectsCombo: true})
	}
	for i := 0; i < repeats; i++ {
		s.Nested = append(s.Nested, HitObject{Kind: KindSliderRepeat, AffectsCombo: true})
	}
	s.Nested = append(s.Nested, HitObject{Kind: KindSliderTail, AffectsCombo: true})
	return s
}

func TestStatsOsu(t *testing.T) {
	p := &Playable{HitObjects: []HitObject{
		circle(0),
		slider(100, 2, 1),
		slider(400, 0, 0),
		{Kind: KindSpinner, StartTime: 800, AffectsCombo: true, Nested: []HitObject{
			{Kind: KindSpinnerTick},
			{Kind: KindSpinnerBonusTick},
		}},
	}}

	want := Stats{
		Objects:    4,
		MaxCombo:   1 + 5 + 2 + 1,
		Sliders:    2,
		LargeTicks: 3,
	}
	if diff := cmp.Diff(want, p.Stats()); diff != "" {
		t.Fatalf("stats mismatch (-want +got):\n%s", diff)
	}
}

func TestStatsCatch(t *testing.T) {
	stream := HitObject{Kind: KindJuiceStream, Nested: []HitObject{
		{Kind: KindFruit, AffectsCombo: true},
		{Kind: KindTinyDroplet},
		{Kind: KindTinyDroplet},
		{Kind: KindDroplet, AffectsCombo: true},
		{Kind: KindTinyDroplet},
		{Kind: KindFruit, AffectsCombo: true},
	}}
	p := &Playable{HitObjects: []HitObject{
		{Kind: KindFruit, AffectsCombo: true},
		stream,
		{Kind: KindBananaShower, Nested: []HitObject{{Kind: KindBanana}}},
	}}

	s := p.Stats()
	if s.Fruits != 3 || s.Droplets != 1 || s.TinyDroplets != 3 {
		t.Fatalf("unexpected catch counts %+v", s)
	}
	if s.MaxCombo != 4 {
		t.Fatalf("max combo = %d, want 4", s.MaxCombo)
	}
}

func TestStatsIgnoresOrphanDroplets(t *testing.T) {
	p := &Playable{HitObjects: []HitObject{
		{Kind: KindSlider, Nested: []HitObject{{Kind: KindDroplet}, {Kind: KindFruit}}},
	}}
	s := p.Stats()
	if s.Droplets != 0 || s.Fruits != 0 {
		t.Fatalf("droplets outside juice streams counted: %+v", s)
	}
}

func TestStatsMania(t *testing.T) {
	p := &Playable{HitObjects: []HitObject{
		{Kind: KindNote, AffectsCombo: true},
		{Kind: KindHoldNote, Nested: []HitObject{
			{Kind: KindHeadNote, AffectsCombo: true},
			{Kind: KindTailNote, AffectsCombo: true},
		}},
	}}
	s := p.Stats()
	if s.Objects != 2 || s.HoldNotes != 1 || s.MaxCombo != 3 {
		t.Fatalf("unexpected mania counts %+v", s)
	}
}

func TestParseKind(t *testing.T) {
	if ParseKind("SliderTailCircle") != KindSliderTail {
		t.Fatal("slider tail not parsed")
	}
	if ParseKind("StrongNestedHit") != KindUnknown {
		t.Fatal("unknown class should map to KindUnknown")
	}
	if KindTinyDroplet.String() != "TinyDroplet" {
		t.Fatal(KindTinyDroplet.String())
	}
}

func TestNilPlayable(t *testing.T) {
	var p *Playable
	if p.Stats() != (Stats{}) {
		t.Fatal("nil playable should have zero stats")
	}
}
