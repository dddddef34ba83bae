// Package ruleset identifies the four osu! game modes.
package ruleset

import (
	"fmt"
	"strconv"
	"strings"
)

type ID int

const (
	// Auto selects the ruleset the beatmap was made for.
	Auto ID = -1

	Osu   ID = 0
	Taiko ID = 1
	Catch ID = 2
	Mania ID = 3
)

var shortNames = [...]string{
	Osu:   "osu",
	Taiko: "taiko",
	Catch: "fruits",
	Mania: "mania",
}

var aliases = map[string]ID{
	"osu":      Osu,
	"std":      Osu,
	"standard": Osu,
	"taiko":    Taiko,
	"fruits":   Catch,
	"catch":    Catch,
	"ctb":      Catch,
	"mania":    Mania,
	"auto":     Auto,
	"":         Auto,
}

// All lists the concrete rulesets in id order.
func All() []ID { return []ID{Osu, Taiko, Catch, Mania} }

func (id ID) Valid() bool { return id >= Osu && id <= Mania }

// ShortName is the name the engine uses for the ruleset.
func (id ID) ShortName() string {
	if !id.Valid() {
		return "auto"
	}
	return shortNames[id]
}

func (id ID) String() string { return id.ShortName() }

// Parse accepts a short name, a common alias or a numeric id.
func Parse(s string) (ID, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if id, ok := aliases[s]; ok {
		return id, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return Auto, fmt.Errorf("unknown ruleset %q, want one of %v", s, All())
	}
	return FromInt(n)
}

func FromInt(n int) (ID, error) {
	id := ID(n)
	if !id.Valid() {
		return Auto, fmt.Errorf("ruleset id %d out of range", n)
	}
	return id, nil
}

func (id ID) MarshalText() ([]byte, error) { return []byte(id.ShortName()), nil }

func (id *ID) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*id = v
	return nil
}
