// Package session evaluates many hypothetical plays against one beatmap while
// paying for beatmap loading and difficulty calculation only once.
//
// A Session moves through four states. Next loads the beatmap and returns the
// difficulty attributes. Each Submit then returns the performance attributes
// of one play. Close, or a nil Submit, ends the session with the beatmap's
// metadata.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"osupp/beatmap"
	"osupp/config"
	"osupp/engine"
	"osupp/result"
	"osupp/ruleset"
)

var (
	ErrClosed          = errors.New("session: closed")
	ErrNotStarted      = errors.New("session: not started")
	ErrStarted         = errors.New("session: already started")
	ErrRulesetMismatch = errors.New("session: request is for another ruleset")
)

type State int

const (
	Uninitialized State = iota
	AwaitingFirstRequest
	Active
	Closed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case AwaitingFirstRequest:
		return "awaiting-first-request"
	case Active:
		return "active"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type Kind int

const (
	KindDifficulty Kind = iota + 1
	KindPerformance
	KindBeatmapInfo
)

func (k Kind) String() string {
	switch k {
	case KindDifficulty:
		return "difficulty"
	case KindPerformance:
		return "performance"
	case KindBeatmapInfo:
		return "beatmap_info"
	}
	return "none"
}

// Payload is one value produced by a session.
type Payload struct {
	Kind   Kind
	Result result.Envelope
}

// Final reports whether p is the terminal beatmap metadata.
func (p Payload) Final() bool { return p.Kind == KindBeatmapInfo }

const (
	ExtraAimTimeline   = "aim_strain_timeline"
	ExtraSpeedTimeline = "speed_strain_timeline"
)

type options struct {
	mods       []string
	modOptions []string
	strain     bool
	log        zerolog.Logger
}

type Option func(*options)

func WithMods(acronyms ...string) Option {
	return func(o *options) { o.mods = append(o.mods, acronyms...) }
}

// WithModOptions passes mod settings as ACRONYM_setting=value strings.
func WithModOptions(opts ...string) Option {
	return func(o *options) { o.modOptions = append(o.modOptions, opts...) }
}

// WithStrainTimeline asks for aim and speed strain timelines on the difficulty
// payload. They are only produced for osu! and only while
// config.StrainTimeline is on.
func WithStrainTimeline(on bool) Option {
	return func(o *options) { o.strain = on }
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

func newOptions(opts []Option) options {
	o := options{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type Session struct {
	id   uuid.UUID
	eng  engine.Engine
	path string
	rs   ruleset.ID
	opts options
	log  zerolog.Logger

	state     State
	beatmap   *engine.Beatmap
	mods      *engine.ModSet
	diff      *engine.Difficulty
	stats     beatmap.Stats
	classic   bool
	evaluated int
}

// New prepares a session for the beatmap at path. Nothing is loaded until
// Next. rs may be ruleset.Auto to use the beatmap's own ruleset.
func New(eng engine.Engine, path string, rs ruleset.ID, opts ...Option) *Session {
	o := newOptions(opts)
	id := uuid.New()
	return &Session{
		id:   id,
		eng:  eng,
		path: path,
		rs:   rs,
		opts: o,
		log:  o.log.With().Str("session", id.String()).Str("beatmap", path).Logger(),
	}
}

// NewOsu opens an osu! session. Strain timelines are on unless an option
// turns them off.
func NewOsu(eng engine.Engine, path string, opts ...Option) *Session {
	return New(eng, path, ruleset.Osu, append([]Option{WithStrainTimeline(true)}, opts...)...)
}

func NewTaiko(eng engine.Engine, path string, opts ...Option) *Session {
	return New(eng, path, ruleset.Taiko, opts...)
}

func NewCatch(eng engine.Engine, path string, opts ...Option) *Session {
	return New(eng, path, ruleset.Catch, opts...)
}

func NewMania(eng engine.Engine, path string, opts ...Option) *Session {
	return New(eng, path, ruleset.Mania, opts...)
}

func (s *Session) ID() uuid.UUID { return s.id }

func (s *Session) State() State { return s.state }

// Ruleset is the session's ruleset. Before Next it may still be ruleset.Auto.
func (s *Session) Ruleset() ruleset.ID { return s.rs }

func (s *Session) Stats() beatmap.Stats { return s.stats }

// Evaluated counts the performance payloads produced so far.
func (s *Session) Evaluated() int { return s.evaluated }

// Next loads the beatmap, computes its difficulty and returns it. It may only
// be called once.
//
// A difficulty calculation the engine cancels yields an empty payload rather
// than an error; the session then accepts no requests and the next Submit or
// Close returns the beatmap metadata.
func (s *Session) Next(ctx context.Context) (Payload, error) {
	switch s.state {
	case Closed:
		return Payload{}, ErrClosed
	case Uninitialized:
	default:
		return Payload{}, ErrStarted
	}

	p, err := s.open(ctx)
	if err != nil {
		s.abort(ctx)
		return Payload{}, err
	}
	s.state = AwaitingFirstRequest
	return p, nil
}

func (s *Session) open(ctx context.Context) (Payload, error) {
	b, err := s.eng.OpenBeatmap(ctx, s.path)
	if err != nil {
		return Payload{}, fmt.Errorf("open beatmap %s: %w", s.path, err)
	}
	s.beatmap = b
	if s.rs == ruleset.Auto {
		s.rs = b.Ruleset
	}

	mods, err := s.eng.ParseMods(ctx, s.rs, s.opts.mods, s.opts.modOptions)
	if err != nil {
		return Payload{}, fmt.Errorf("parse mods %v: %w", s.opts.mods, err)
	}
	s.mods = mods

	diff, err := s.eng.CalculateDifficulty(ctx, b, s.rs, mods)
	if errors.Is(err, engine.ErrCancelled) {
		s.log.Warn().Err(err).Msg("difficulty calculation cancelled, session will only report beatmap info")
		return Payload{Kind: KindDifficulty, Result: result.Empty()}, nil
	}
	if err != nil {
		return Payload{}, fmt.Errorf("calculate difficulty: %w", err)
	}
	s.diff = diff

	playable, err := s.eng.PlayableBeatmap(ctx, b, s.rs, mods)
	if err != nil {
		return Payload{}, fmt.Errorf("playable beatmap: %w", err)
	}
	s.stats = playable.Stats()
	s.classic = isClassic(s.rs, mods)

	env, err := result.FromJSON(diff.JSON)
	if err != nil {
		return Payload{}, fmt.Errorf("difficulty attributes: %w", err)
	}

	if s.rs == ruleset.Osu && s.opts.strain && config.StrainTimeline() {
		env, err = s.withTimelines(ctx, env)
		if err != nil {
			return Payload{}, err
		}
	}

	s.log.Debug().
		Stringer("ruleset", s.rs).
		Strs("mods", mods.Acronyms()).
		Int("objects", s.stats.Objects).
		Int("max_combo", s.stats.MaxCombo).
		Bool("classic", s.classic).
		Msg("difficulty computed")
	return Payload{Kind: KindDifficulty, Result: env}, nil
}

func (s *Session) withTimelines(ctx context.Context, env result.Envelope) (result.Envelope, error) {
	tl, err := s.eng.StrainTimeline(ctx, s.beatmap, s.mods)
	if err != nil {
		return env, fmt.Errorf("strain timeline: %w", err)
	}
	aim, speed := tl.Aim, tl.Speed
	if aim == nil {
		aim = []engine.StrainPoint{}
	}
	if speed == nil {
		speed = []engine.StrainPoint{}
	}
	if env, err = env.WithExtra(ExtraAimTimeline, aim); err != nil {
		return env, err
	}
	return env.WithExtra(ExtraSpeedTimeline, speed)
}

// isClassic reports whether the mods revert judgement tracking to stable.
func isClassic(rs ruleset.ID, mods *engine.ModSet) bool {
	switch rs {
	case ruleset.Osu:
		return mods.Bool("CL", "no_slider_head_accuracy", true)
	case ruleset.Mania:
		return mods.Has("CL")
	}
	return false
}

// Submit evaluates one play. A nil request ends the session and returns the
// terminal payload, as does any request after a cancelled difficulty
// calculation.
func (s *Session) Submit(ctx context.Context, req Request) (Payload, error) {
	switch s.state {
	case Closed:
		return Payload{}, ErrClosed
	case Uninitialized:
		return Payload{}, ErrNotStarted
	}

	req = deref(req)
	if req == nil || s.diff == nil {
		return s.Close(ctx)
	}
	if req.Ruleset() != s.rs {
		return Payload{}, fmt.Errorf("%w: %s request on %s session", ErrRulesetMismatch, req.Ruleset(), s.rs)
	}

	b, acc, combo := judge(req, s.stats, s.classic)
	score := engine.ScoreRecord{
		Ruleset:    s.rs,
		Beatmap:    s.beatmap.Handle,
		Accuracy:   acc,
		MaxCombo:   s.stats.MaxCombo,
		Statistics: b.Statistics,
		Mods:       s.mods.Handle,
	}
	if combo != nil {
		score.MaxCombo = *combo
	}

	raw, err := s.eng.CalculatePerformance(ctx, score, s.diff)
	if err != nil {
		return Payload{}, fmt.Errorf("calculate performance: %w", err)
	}
	env, err := result.FromJSON(raw)
	if err != nil {
		return Payload{}, fmt.Errorf("performance attributes: %w", err)
	}

	s.state = Active
	s.evaluated++
	s.log.Debug().
		Int("n", s.evaluated).
		Float64("accuracy", acc).
		Int("combo", score.MaxCombo).
		Float64("pp", env.Float("pp")).
		Msg("performance computed")
	return Payload{Kind: KindPerformance, Result: env}, nil
}

// Close ends the session and returns the beatmap metadata. Closing a session
// that never started returns an empty terminal payload.
func (s *Session) Close(ctx context.Context) (Payload, error) {
	switch s.state {
	case Closed:
		return Payload{}, ErrClosed
	case Uninitialized:
		s.state = Closed
		return Payload{Kind: KindBeatmapInfo, Result: result.Empty()}, nil
	}

	raw, err := s.eng.Serialize(ctx, s.beatmap.Info)
	s.abort(ctx)
	if err != nil {
		return Payload{}, fmt.Errorf("serialize beatmap info: %w", err)
	}
	env, err := result.FromJSON(raw)
	if err != nil {
		return Payload{}, fmt.Errorf("beatmap info: %w", err)
	}
	s.log.Debug().Int("evaluated", s.evaluated).Msg("session closed")
	return Payload{Kind: KindBeatmapInfo, Result: env}, nil
}

// abort releases whatever the engine still holds for this session and marks
// it closed.
func (s *Session) abort(ctx context.Context) {
	s.state = Closed
	var handles []engine.Handle
	if s.beatmap != nil {
		handles = append(handles, s.beatmap.Handle, s.beatmap.Info)
	}
	if s.mods != nil {
		handles = append(handles, s.mods.Handle)
	}
	if s.diff != nil {
		handles = append(handles, s.diff.Handle)
	}
	if len(handles) == 0 {
		return
	}
	if err := s.eng.Release(ctx, handles...); err != nil {
		s.log.Warn().Err(err).Msg("release engine handles")
	}
}
