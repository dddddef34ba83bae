// Package enginetest provides an in-memory engine.Engine for tests.
package enginetest

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/tidwall/gjson"

	"osupp/beatmap"
	"osupp/engine"
	"osupp/ruleset"
)

// Beatmap is a scripted beatmap the fake engine can open.
type Beatmap struct {
	Ruleset    ruleset.ID
	Info       string // JSON object
	Difficulty string // JSON object
	Playable   []beatmap.HitObject
	Timelines  *engine.Timelines
	// Cancel makes difficulty calculation fail with engine.ErrCancelled.
	Cancel bool
}

type Engine struct {
	Beatmaps map[string]*Beatmap
	Mods     map[ruleset.ID][]engine.ModDescriptor

	// Performance renders the performance attributes for a score. The default
	// echoes the score back.
	Performance func(engine.ScoreRecord) string

	mu     sync.Mutex
	next   int
	live   map[engine.Handle]any
	calls  []string
	scores []engine.ScoreRecord
	closed bool
}

func New() *Engine {
	return &Engine{
		Beatmaps: make(map[string]*Beatmap),
		Mods:     make(map[ruleset.ID][]engine.ModDescriptor),
	}
}

func (e *Engine) Add(path string, b *Beatmap) *Engine {
	e.Beatmaps[path] = b
	return e
}

// Calls lists the operations invoked so far, in order.
func (e *Engine) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

func (e *Engine) Count(op string) int {
	n := 0
	for _, c := range e.Calls() {
		if c == op {
			n++
		}
	}
	return n
}

func (e *Engine) Scores() []engine.ScoreRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]engine.ScoreRecord(nil), e.scores...)
}

// Live is the number of handles not yet released.
func (e *Engine) Live() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.live)
}

func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func (e *Engine) record(op string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return fmt.Errorf("enginetest: %s on closed engine", op)
	}
	e.calls = append(e.calls, op)
	return nil
}

func (e *Engine) alloc(v any) engine.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.live == nil {
		e.live = make(map[engine.Handle]any)
	}
	e.next++
	h := engine.Handle("h" + strconv.Itoa(e.next))
	e.live[h] = v
	return h
}

func (e *Engine) get(h engine.Handle) (any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.live[h]
	return v, ok
}

type infoObject struct{ json string }

func (e *Engine) OpenBeatmap(_ context.Context, path string) (*engine.Beatmap, error) {
	if err := e.record("open_beatmap"); err != nil {
		return nil, err
	}
	b, ok := e.Beatmaps[path]
	if !ok {
		return nil, fmt.Errorf("enginetest: no beatmap at %s", path)
	}
	return &engine.Beatmap{
		Handle:  e.alloc(b),
		Info:    e.alloc(infoObject{json: b.Info}),
		Ruleset: b.Ruleset,
	}, nil
}

func (e *Engine) beatmap(b *engine.Beatmap) (*Beatmap, error) {
	v, ok := e.get(b.Handle)
	if !ok {
		return nil, fmt.Errorf("enginetest: stale beatmap handle %s", b.Handle)
	}
	return v.(*Beatmap), nil
}

// ParseMods accepts options of the form ACRONYM_setting=value.
func (e *Engine) ParseMods(_ context.Context, rs ruleset.ID, acronyms, options []string) (*engine.ModSet, error) {
	if err := e.record("parse_mods"); err != nil {
		return nil, err
	}
	set := &engine.ModSet{}
	for _, a := range acronyms {
		set.Mods = append(set.Mods, engine.Mod{Acronym: strings.ToUpper(a), Settings: map[string]any{}})
	}
	for _, opt := range options {
		key, val, ok := strings.Cut(opt, "=")
		acronym, setting, ok2 := strings.Cut(key, "_")
		if !ok || !ok2 {
			return nil, fmt.Errorf("enginetest: bad mod option %q", opt)
		}
		found := false
		for i := range set.Mods {
			if strings.EqualFold(set.Mods[i].Acronym, acronym) {
				set.Mods[i].Settings[setting] = coerce(val)
				found = true
			}
		}
		if !found {
			return nil, fmt.Errorf("enginetest: option %q for inactive mod", opt)
		}
	}
	set.Handle = e.alloc(set)
	return set, nil
}

func coerce(s string) any {
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func (e *Engine) ModSettings(_ context.Context, rs ruleset.ID) ([]engine.ModDescriptor, error) {
	if err := e.record("mod_settings"); err != nil {
		return nil, err
	}
	return e.Mods[rs], nil
}

func (e *Engine) CalculateDifficulty(_ context.Context, b *engine.Beatmap, rs ruleset.ID, mods *engine.ModSet) (*engine.Difficulty, error) {
	if err := e.record("difficulty"); err != nil {
		return nil, err
	}
	bm, err := e.beatmap(b)
	if err != nil {
		return nil, err
	}
	if bm.Cancel {
		return nil, fmt.Errorf("difficulty: %w", engine.ErrCancelled)
	}
	d := &engine.Difficulty{JSON: []byte(bm.Difficulty)}
	d.Handle = e.alloc(d)
	return d, nil
}

func (e *Engine) PlayableBeatmap(_ context.Context, b *engine.Beatmap, rs ruleset.ID, mods *engine.ModSet) (*beatmap.Playable, error) {
	if err := e.record("playable"); err != nil {
		return nil, err
	}
	bm, err := e.beatmap(b)
	if err != nil {
		return nil, err
	}
	return &beatmap.Playable{Ruleset: rs, HitObjects: bm.Playable}, nil
}

func (e *Engine) StrainTimeline(_ context.Context, b *engine.Beatmap, mods *engine.ModSet) (*engine.Timelines, error) {
	if err := e.record("strain_timeline"); err != nil {
		return nil, err
	}
	bm, err := e.beatmap(b)
	if err != nil {
		return nil, err
	}
	if bm.Timelines == nil {
		return &engine.Timelines{}, nil
	}
	return bm.Timelines, nil
}

func (e *Engine) CalculatePerformance(_ context.Context, score engine.ScoreRecord, diff *engine.Difficulty) ([]byte, error) {
	if err := e.record("performance"); err != nil {
		return nil, err
	}
	if _, ok := e.get(diff.Handle); !ok {
		return nil, fmt.Errorf("enginetest: stale difficulty handle %s", diff.Handle)
	}
	e.mu.Lock()
	e.scores = append(e.scores, score)
	e.mu.Unlock()

	if e.Performance != nil {
		return []byte(e.Performance(score)), nil
	}
	stats, err := json.Marshal(score.Statistics)
	if err != nil {
		return nil, err
	}
	return fmt.Appendf(nil, `{"pp":%g,"accuracy":%g,"max_combo":%d,"statistics":%s}`,
		score.Accuracy*float64(score.MaxCombo), score.Accuracy, score.MaxCombo, stats), nil
}

func (e *Engine) Serialize(_ context.Context, h engine.Handle) ([]byte, error) {
	if err := e.record("serialize"); err != nil {
		return nil, err
	}
	v, ok := e.get(h)
	if !ok {
		return nil, fmt.Errorf("enginetest: stale handle %s", h)
	}
	switch v := v.(type) {
	case infoObject:
		if !gjson.Valid(v.json) {
			return nil, fmt.Errorf("enginetest: invalid info json")
		}
		return []byte(v.json), nil
	case *engine.Difficulty:
		return v.JSON, nil
	}
	return nil, fmt.Errorf("enginetest: %s is not serializable", h)
}

func (e *Engine) Release(_ context.Context, handles ...engine.Handle) error {
	if err := e.record("release"); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, h := range handles {
		delete(e.live, h)
	}
	return nil
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
