// Package hitresult names the judgements a score can award and counts them.
package hitresult

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
)

type Result uint8

const (
	None Result = iota
	Miss
	Meh
	Ok
	Good
	Great
	Perfect
	SmallTickMiss
	SmallTickHit
	LargeTickMiss
	LargeTickHit
	SmallBonus
	LargeBonus
	IgnoreMiss
	IgnoreHit
	ComboBreak
	SliderTailHit
	LegacyComboIncrease

	count
)

var names = [count]string{
	None:                "none",
	Miss:                "miss",
	Meh:                 "meh",
	Ok:                  "ok",
	Good:                "good",
	Great:               "great",
	Perfect:             "perfect",
	SmallTickMiss:       "small_tick_miss",
	SmallTickHit:        "small_tick_hit",
	LargeTickMiss:       "large_tick_miss",
	LargeTickHit:        "large_tick_hit",
	SmallBonus:          "small_bonus",
	LargeBonus:          "large_bonus",
	IgnoreMiss:          "ignore_miss",
	IgnoreHit:           "ignore_hit",
	ComboBreak:          "combo_break",
	SliderTailHit:       "slider_tail_hit",
	LegacyComboIncrease: "legacy_combo_increase",
}

func (r Result) String() string {
	if r >= count {
		return "result(" + strconv.Itoa(int(r)) + ")"
	}
	return names[r]
}

// Parse maps a wire name back to its Result.
func Parse(name string) (Result, error) {
	for i, n := range names {
		if n == name {
			return Result(i), nil
		}
	}
	return None, fmt.Errorf("unknown hit result %q", name)
}

// Statistics counts judgements by kind. A missing key and a zero count are
// different things: accuracy formulas check presence to decide whether a
// category is tracked at all.
type Statistics map[Result]int

func (s Statistics) Has(r Result) bool {
	_, ok := s[r]
	return ok
}

func (s Statistics) Sum() int {
	total := 0
	for _, n := range s {
		total += n
	}
	return total
}

func (s Statistics) Clone() Statistics {
	out := make(Statistics, len(s))
	for r, n := range s {
		out[r] = n
	}
	return out
}

// Keys returns the present results in enum order.
func (s Statistics) Keys() []Result {
	keys := make([]Result, 0, len(s))
	for r := range s {
		keys = append(keys, r)
	}
	slices.Sort(keys)
	return keys
}

// MarshalJSON writes the counts keyed by wire name, in enum order.
func (s Statistics) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, r := range s.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(r.String()))
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(s[r]))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s *Statistics) UnmarshalJSON(b []byte) error {
	var raw map[string]int
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(Statistics, len(raw))
	for name, n := range raw {
		r, err := Parse(name)
		if err != nil {
			return err
		}
		out[r] = n
	}
	*s = out
	return nil
}
