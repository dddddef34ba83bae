package session

import (
	"context"
	"errors"
	"fmt"

	"osupp/engine"
	"osupp/result"
	"osupp/ruleset"
)

// Run is everything one session produced.
type Run struct {
	Difficulty  result.Envelope
	Performance []result.Envelope
	Beatmap     result.Envelope
}

// Evaluate drives s through a full protocol run: the difficulty, one
// performance result per request, then the beatmap metadata. s must be fresh.
func Evaluate(ctx context.Context, s *Session, reqs ...Request) (*Run, error) {
	p, err := s.Next(ctx)
	if err != nil {
		return nil, err
	}
	run := &Run{Difficulty: p.Result}

	for _, req := range reqs {
		if deref(req) == nil {
			break
		}
		p, err := s.Submit(ctx, req)
		if err != nil {
			if s.State() != Closed {
				_, _ = s.Close(ctx)
			}
			return nil, err
		}
		if p.Final() {
			run.Beatmap = p.Result
			return run, nil
		}
		run.Performance = append(run.Performance, p.Result)
	}

	p, err = s.Close(ctx)
	if err != nil {
		return nil, err
	}
	run.Beatmap = p.Result
	return run, nil
}

// CalculateDifficulty computes difficulty attributes once, without a session.
// rs may be ruleset.Auto. A cancelled calculation returns an empty envelope.
func CalculateDifficulty(ctx context.Context, eng engine.Engine, path string, rs ruleset.ID, opts ...Option) (result.Envelope, error) {
	o := newOptions(opts)

	b, err := eng.OpenBeatmap(ctx, path)
	if err != nil {
		return result.Empty(), fmt.Errorf("open beatmap %s: %w", path, err)
	}
	handles := []engine.Handle{b.Handle, b.Info}
	defer func() {
		if err := eng.Release(ctx, handles...); err != nil {
			o.log.Warn().Err(err).Str("beatmap", path).Msg("release engine handles")
		}
	}()

	if rs == ruleset.Auto {
		rs = b.Ruleset
	}
	mods, err := eng.ParseMods(ctx, rs, o.mods, o.modOptions)
	if err != nil {
		return result.Empty(), fmt.Errorf("parse mods %v: %w", o.mods, err)
	}
	handles = append(handles, mods.Handle)

	diff, err := eng.CalculateDifficulty(ctx, b, rs, mods)
	if errors.Is(err, engine.ErrCancelled) {
		o.log.Warn().Err(err).Str("beatmap", path).Msg("difficulty calculation cancelled")
		return result.Empty(), nil
	}
	if err != nil {
		return result.Empty(), fmt.Errorf("calculate difficulty: %w", err)
	}
	handles = append(handles, diff.Handle)

	return result.FromJSON(diff.JSON)
}
