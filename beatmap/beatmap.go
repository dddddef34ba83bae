// Package beatmap describes a playable beatmap as the engine hands it back:
// an ordered list of hit objects, each with its own ordered nested objects.
package beatmap

import "osupp/ruleset"

type Kind uint8

const (
	KindUnknown Kind = iota

	// osu!
	KindCircle
	KindSlider
	KindSliderHead
	KindSliderTick
	KindSliderRepeat
	KindSliderTail
	KindSpinner
	KindSpinnerTick
	KindSpinnerBonusTick

	// taiko
	KindHit
	KindDrumRoll
	KindDrumRollTick
	KindSwell
	KindSwellTick

	// catch
	KindFruit
	KindJuiceStream
	KindDroplet
	KindTinyDroplet
	KindBanana
	KindBananaShower

	// mania
	KindNote
	KindHoldNote
	KindHeadNote
	KindTailNote

	kindCount
)

// kindNames are the engine's class names for each kind.
var kindNames = [kindCount]string{
	KindUnknown:          "Unknown",
	KindCircle:           "HitCircle",
	KindSlider:           "Slider",
	KindSliderHead:       "SliderHeadCircle",
	KindSliderTick:       "SliderTick",
	KindSliderRepeat:     "SliderRepeat",
	KindSliderTail:       "SliderTailCircle",
	KindSpinner:          "Spinner",
	KindSpinnerTick:      "SpinnerTick",
	KindSpinnerBonusTick: "SpinnerBonusTick",
	KindHit:              "Hit",
	KindDrumRoll:         "DrumRoll",
	KindDrumRollTick:     "DrumRollTick",
	KindSwell:            "Swell",
	KindSwellTick:        "SwellTick",
	KindFruit:            "Fruit",
	KindJuiceStream:      "JuiceStream",
	KindDroplet:          "Droplet",
	KindTinyDroplet:      "TinyDroplet",
	KindBanana:           "Banana",
	KindBananaShower:     "BananaShower",
	KindNote:             "Note",
	KindHoldNote:         "HoldNote",
	KindHeadNote:         "HeadNote",
	KindTailNote:         "TailNote",
}

func (k Kind) String() string {
	if k >= kindCount {
		return kindNames[KindUnknown]
	}
	return kindNames[k]
}

// ParseKind maps an engine class name to a Kind. Names it does not know map
// to KindUnknown; they still count as objects but never as ticks or droplets.
func ParseKind(name string) Kind {
	for i, n := range kindNames {
		if n == name {
			return Kind(i)
		}
	}
	return KindUnknown
}

type HitObject struct {
	Kind      Kind
	StartTime float64
	// AffectsCombo is set when the object's best judgement counts towards combo.
	AffectsCombo bool
	Nested       []HitObject
}

// Playable is a beatmap after ruleset conversion and mod application.
type Playable struct {
	Ruleset    ruleset.ID
	HitObjects []HitObject
}
