package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"osupp/dotosu"
	"osupp/engine"
	"osupp/result"
	"osupp/ruleset"
	"osupp/session"
	"osupp/store"
)

// Recorder keeps results and failures. *store.Store is one.
type Recorder interface {
	SaveResults(ctx context.Context, recs []store.Record) error
	Fail(ctx context.Context, job, beatmap, reason string) error
}

// Downloader resolves a beatmap id to a local .osu path. *fetch.Fetcher is
// one.
type Downloader interface {
	Beatmap(ctx context.Context, id int) (string, error)
}

// Outcome is what one beatmap of one job produced.
type Outcome struct {
	Job         string            `json:"job"`
	Beatmap     string            `json:"beatmap"`
	Title       string            `json:"title,omitempty"`
	Ruleset     ruleset.ID        `json:"ruleset"`
	Session     uuid.UUID         `json:"session"`
	Difficulty  result.Envelope   `json:"difficulty"`
	Performance []result.Envelope `json:"performance"`
	BeatmapInfo result.Envelope   `json:"beatmap_info"`
	Error       string            `json:"error,omitempty"`
}

type Runner struct {
	// Engines opens the engine a worker uses for its lifetime.
	Engines func(ctx context.Context) (engine.Engine, error)
	Store   Recorder
	Fetcher Downloader
	Workers int
	Log     zerolog.Logger
}

type task struct {
	job  *Job
	path string
	id   int
}

func (t task) beatmap() string {
	if t.path != "" {
		return t.path
	}
	return strconv.Itoa(t.id)
}

func expand(jobs []Job) []task {
	var tasks []task
	for i := range jobs {
		j := &jobs[i]
		for _, p := range j.Beatmaps {
			tasks = append(tasks, task{job: j, path: p})
		}
		for _, id := range j.BeatmapIDs {
			tasks = append(tasks, task{job: j, id: id})
		}
	}
	return tasks
}

// Run evaluates every beatmap of every job. Outcomes come back in job file
// order. A beatmap that fails is reported in its outcome and recorded; only
// failing to start an engine stops the run.
func (r *Runner) Run(ctx context.Context, jobs []Job) ([]Outcome, error) {
	tasks := expand(jobs)
	out := make([]Outcome, len(tasks))
	workers := min(max(r.Workers, 1), max(len(tasks), 1))
	runID := uuid.New()
	log := r.Log.With().Str("run", runID.String()).Logger()
	log.Info().Int("jobs", len(jobs)).Int("beatmaps", len(tasks)).Int("workers", workers).Msg("batch started")

	queue := make(chan int)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(queue)
		for i := range tasks {
			select {
			case queue <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			eng, err := r.Engines(ctx)
			if err != nil {
				return fmt.Errorf("worker %d: start engine: %w", w, err)
			}
			defer eng.Close()

			wlog := log.With().Int("worker", w).Logger()
			for i := range queue {
				out[i] = r.runTask(ctx, eng, tasks[i], wlog)
			}
			return nil
		})
	}

	err := g.Wait()
	failed := 0
	for _, o := range out {
		if o.Error != "" {
			failed++
		}
	}
	log.Info().Int("failed", failed).Err(err).Msg("batch finished")
	return out, err
}

func (r *Runner) runTask(ctx context.Context, eng engine.Engine, t task, log zerolog.Logger) (o Outcome) {
	o = Outcome{Job: t.job.Name, Beatmap: t.beatmap()}
	log = log.With().Str("job", o.Job).Str("beatmap", o.Beatmap).Logger()

	defer func() {
		if p := recover(); p != nil {
			o.Error = fmt.Sprintf("panic: %v", p)
			log.Error().Str("stack", stack()).Msg(o.Error)
			r.fail(ctx, o, log)
		}
	}()

	if err := r.evaluate(ctx, eng, t, &o, log); err != nil {
		o.Error = err.Error()
		log.Warn().Err(err).Msg("beatmap failed")
		r.fail(ctx, o, log)
	}
	return o
}

func stack() string {
	buf := make([]byte, 100000)
	return string(buf[:runtime.Stack(buf, false)])
}

func (r *Runner) fail(ctx context.Context, o Outcome, log zerolog.Logger) {
	if r.Store == nil {
		return
	}
	if err := r.Store.Fail(ctx, o.Job, o.Beatmap, o.Error); err != nil {
		log.Error().Err(err).Msg("record failure")
	}
}

func (r *Runner) evaluate(ctx context.Context, eng engine.Engine, t task, o *Outcome, log zerolog.Logger) error {
	path := t.path
	if path == "" {
		if r.Fetcher == nil {
			return errors.New("beatmap ids need a fetcher")
		}
		var err error
		if path, err = r.Fetcher.Beatmap(ctx, t.id); err != nil {
			return err
		}
	}
	if h, err := dotosu.ReadHeaderFile(path); err == nil {
		o.Title = h.Label()
	}

	rs, err := t.job.ruleset()
	if err != nil {
		return err
	}
	s := session.New(eng, path, rs,
		session.WithMods(t.job.Mods...),
		session.WithModOptions(t.job.ModOptions...),
		session.WithStrainTimeline(t.job.strain()),
		session.WithLogger(log),
	)

	o.Session = s.ID()

	p, err := s.Next(ctx)
	if err != nil {
		return err
	}
	o.Ruleset = s.Ruleset()
	o.Difficulty = p.Result

	recs := []store.Record{r.record(t, o, p, 0, nil)}
	for i, play := range t.job.Requests {
		req, err := play.Request(s.Ruleset())
		if err != nil {
			_, _ = s.Close(ctx)
			return err
		}
		p, err := s.Submit(ctx, req)
		if err != nil {
			if s.State() != session.Closed {
				_, _ = s.Close(ctx)
			}
			return err
		}
		if p.Final() {
			o.BeatmapInfo = p.Result
			recs = append(recs, r.record(t, o, p, len(recs), nil))
			return r.save(ctx, recs)
		}
		o.Performance = append(o.Performance, p.Result)
		specJSON, _ := json.Marshal(t.job.Requests[i])
		recs = append(recs, r.record(t, o, p, len(recs), specJSON))
	}

	p, err = s.Close(ctx)
	if err != nil {
		return err
	}
	o.BeatmapInfo = p.Result
	recs = append(recs, r.record(t, o, p, len(recs), nil))
	return r.save(ctx, recs)
}

func (r *Runner) record(t task, o *Outcome, p session.Payload, seq int, req []byte) store.Record {
	return store.Record{
		Job:     t.job.Name,
		Beatmap: o.Beatmap,
		Title:   o.Title,
		Ruleset: o.Ruleset,
		Mods:    strings.Join(t.job.Mods, ","),
		Kind:    p.Kind.String(),
		Seq:     seq,
		Request: req,
		Payload: p.Result.JSON(),
	}
}

func (r *Runner) save(ctx context.Context, recs []store.Record) error {
	if r.Store == nil {
		return nil
	}
	return r.Store.SaveResults(ctx, recs)
}
