package ruleset

import (
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	cases := map[string]ID{
		"osu":    Osu,
		"STD":    Osu,
		"1":      Taiko,
		"fruits": Catch,
		"ctb":    Catch,
		" mania": Mania,
		"":       Auto,
	}
	for in, want := range cases {
		got, err := Parse(in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("Parse(%q) = %v, want %v", in, got, want)
		}
	}

	if _, err := Parse("4"); err == nil {
		t.Fatal("expected error for id 4")
	}
	_, err := Parse("drums")
	if err == nil {
		t.Fatal("expected error for unknown name")
	}
	if !strings.Contains(err.Error(), "[osu taiko fruits mania]") {
		t.Fatalf("error does not list the rulesets: %v", err)
	}
}

func TestShortName(t *testing.T) {
	if Catch.ShortName() != "fruits" {
		t.Fatalf("got %s", Catch.ShortName())
	}
	if Auto.ShortName() != "auto" {
		t.Fatalf("got %s", Auto.ShortName())
	}
}

func TestTextRoundTrip(t *testing.T) {
	var id ID
	if err := id.UnmarshalText([]byte("taiko")); err != nil {
		t.Fatal(err)
	}
	b, _ := id.MarshalText()
	if string(b) != "taiko" {
		t.Fatalf("got %s", b)
	}
}
