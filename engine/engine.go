// Package engine is the boundary to the external scoring engine. Everything
// the sessions need from it goes through Engine; nothing else in the module
// knows how the engine is hosted.
package engine

import (
	"context"
	"errors"
	"slices"
	"strings"

	"osupp/beatmap"
	"osupp/hitresult"
	"osupp/ruleset"
)

// ErrCancelled is the engine's cancellation signal. Some malformed beatmaps
// raise it from deep inside difficulty calculation.
var ErrCancelled = errors.New("engine: operation cancelled")

// Handle refers to an object that lives inside the engine until released.
type Handle string

type Beatmap struct {
	Handle Handle
	// Info is the handle of the beatmap's descriptive metadata.
	Info Handle
	// Ruleset is the ruleset the beatmap was authored for.
	Ruleset ruleset.ID
}

type Mod struct {
	Acronym  string
	Settings map[string]any
}

type ModSet struct {
	Handle Handle
	Mods   []Mod
}

func (m *ModSet) find(acronym string) *Mod {
	if m == nil {
		return nil
	}
	for i := range m.Mods {
		if strings.EqualFold(m.Mods[i].Acronym, acronym) {
			return &m.Mods[i]
		}
	}
	return nil
}

func (m *ModSet) Has(acronym string) bool { return m.find(acronym) != nil }

// Bool reads a boolean mod setting. def is returned when the mod is active but
// the setting was not reported; false when the mod is not active.
func (m *ModSet) Bool(acronym, setting string, def bool) bool {
	mod := m.find(acronym)
	if mod == nil {
		return false
	}
	v, ok := mod.Settings[setting].(bool)
	if !ok {
		return def
	}
	return v
}

func (m *ModSet) Acronyms() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.Mods))
	for i, mod := range m.Mods {
		out[i] = mod.Acronym
	}
	return slices.Clip(out)
}

type Difficulty struct {
	Handle Handle
	// JSON is the serialized difficulty attributes.
	JSON []byte
}

// ScoreRecord is the hypothetical play handed to the performance calculator.
type ScoreRecord struct {
	Ruleset    ruleset.ID
	Beatmap    Handle
	Accuracy   float64
	MaxCombo   int
	Statistics hitresult.Statistics
	Mods       Handle
}

type StrainPoint struct {
	Time  float64
	Value float64
}

type Timelines struct {
	Aim   []StrainPoint
	Speed []StrainPoint
}

// SettingDescriptor describes one configurable mod setting in the engine's own
// terms. Type is the engine's type name; IsEnum is set for enumerations.
type SettingDescriptor struct {
	Name        string
	Type        string
	IsEnum      bool
	Label       string
	Description string
}

type ModDescriptor struct {
	Acronym  string
	Settings []SettingDescriptor
}

type Engine interface {
	OpenBeatmap(ctx context.Context, path string) (*Beatmap, error)
	ParseMods(ctx context.Context, rs ruleset.ID, acronyms, options []string) (*ModSet, error)
	ModSettings(ctx context.Context, rs ruleset.ID) ([]ModDescriptor, error)

	// CalculateDifficulty may fail with ErrCancelled.
	CalculateDifficulty(ctx context.Context, b *Beatmap, rs ruleset.ID, mods *ModSet) (*Difficulty, error)
	PlayableBeatmap(ctx context.Context, b *Beatmap, rs ruleset.ID, mods *ModSet) (*beatmap.Playable, error)
	// StrainTimeline runs the osu! aim and speed skills over the beatmap.
	StrainTimeline(ctx context.Context, b *Beatmap, mods *ModSet) (*Timelines, error)
	CalculatePerformance(ctx context.Context, score ScoreRecord, diff *Difficulty) ([]byte, error)

	// Serialize renders any engine object as JSON.
	Serialize(ctx context.Context, h Handle) ([]byte, error)
	Release(ctx context.Context, handles ...Handle) error
	Close() error
}
