package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"osupp/beatmap"
	"osupp/engine"
	"osupp/engine/enginetest"
	"osupp/ruleset"
	"osupp/session"
	"osupp/store"
)

func writeJobs(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobs.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadJobs(t *testing.T) {
	t.Parallel()
	path := writeJobs(t, `
[[job]]
name = "dt-fc"
beatmaps = ["maps/a.osu", "maps/b.osu"]
ruleset = "osu"
mods = ["HD", "DT"]
mod_options = ["DT_speed_change=1.3"]
strain_timeline = false

[[job.request]]
accuracy = 98.5
misses = 1

[[job.request]]
oks = 12
combo = 500

[[job]]
name = "ids"
beatmap_ids = [129891]
`)
	jobs, err := LoadJobs(path)
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	j := jobs[0]
	assert.Equal(t, "dt-fc", j.Name)
	assert.Equal(t, []string{"HD", "DT"}, j.Mods)
	assert.False(t, j.strain())
	require.Len(t, j.Requests, 2)
	assert.Equal(t, 98.5, *j.Requests[0].Accuracy)
	assert.Equal(t, 1, j.Requests[0].Misses)
	assert.Nil(t, j.Requests[1].Accuracy)
	assert.Equal(t, 500, *j.Requests[1].Combo)

	rs, err := jobs[1].ruleset()
	require.NoError(t, err)
	assert.Equal(t, ruleset.Auto, rs)
	assert.True(t, jobs[1].strain())
	assert.Equal(t, []int{129891}, jobs[1].BeatmapIDs)
}

func TestLoadJobsRejects(t *testing.T) {
	t.Parallel()
	for name, body := range map[string]string{
		"empty":       ``,
		"unknown key": "[[job]]\nname = \"a\"\nbeatmaps = [\"x\"]\nspeed = 2\n",
		"no name":     "[[job]]\nbeatmaps = [\"x\"]\n",
		"duplicate":   "[[job]]\nname = \"a\"\nbeatmaps = [\"x\"]\n[[job]]\nname = \"a\"\nbeatmaps = [\"y\"]\n",
		"no beatmaps": "[[job]]\nname = \"a\"\n",
		"ruleset":     "[[job]]\nname = \"a\"\nbeatmaps = [\"x\"]\nruleset = \"drums\"\n",
		"syntax":      "[[job]\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadJobs(writeJobs(t, body))
			assert.Error(t, err)
		})
	}

	_, err := LoadJobs(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestRequestSpec(t *testing.T) {
	t.Parallel()
	play := RequestSpec{
		Accuracy:      session.Ptr(97.0),
		Combo:         session.Ptr(300),
		Misses:        2,
		Oks:           session.Ptr(10),
		Greats:        session.Ptr(400),
		LargeTickHits: session.Ptr(5),
	}

	req, err := play.Request(ruleset.Osu)
	require.NoError(t, err)
	osu := req.(session.OsuRequest)
	assert.Equal(t, 2, osu.Misses)
	assert.Equal(t, 5, *osu.LargeTickHits)

	req, err = play.Request(ruleset.Taiko)
	require.NoError(t, err)
	assert.Equal(t, 10, *req.(session.TaikoRequest).Oks)

	req, err = play.Request(ruleset.Catch)
	require.NoError(t, err)
	assert.Equal(t, 300, *req.(session.CatchRequest).Combo)

	req, err = play.Request(ruleset.Mania)
	require.NoError(t, err)
	assert.Equal(t, 400, *req.(session.ManiaRequest).Greats)

	_, err = play.Request(ruleset.Auto)
	assert.Error(t, err)
}

type memStore struct {
	mu       sync.Mutex
	records  []store.Record
	failures map[string]string
}

func (m *memStore) SaveResults(_ context.Context, recs []store.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, recs...)
	return nil
}

func (m *memStore) Fail(_ context.Context, job, beatmap, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures == nil {
		m.failures = make(map[string]string)
	}
	m.failures[job+"/"+beatmap] = reason
	return nil
}

func (m *memStore) byBeatmap(name string) []store.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Record
	for _, r := range m.records {
		if r.Beatmap == name {
			out = append(out, r)
		}
	}
	return out
}

type idMap map[int]string

func (m idMap) Beatmap(_ context.Context, id int) (string, error) {
	p, ok := m[id]
	if !ok {
		return "", errors.New("not found")
	}
	return p, nil
}

func circles(n int) []beatmap.HitObject {
	objs := make([]beatmap.HitObject, n)
	for i := range objs {
		objs[i] = beatmap.HitObject{Kind: beatmap.KindCircle, StartTime: float64(i * 100), AffectsCombo: true}
	}
	return objs
}

func hits(n int) []beatmap.HitObject {
	objs := make([]beatmap.HitObject, n)
	for i := range objs {
		objs[i] = beatmap.HitObject{Kind: beatmap.KindHit, StartTime: float64(i * 100), AffectsCombo: true}
	}
	return objs
}

func newEngine(perf func(engine.ScoreRecord) string) *enginetest.Engine {
	e := enginetest.New().
		Add("osu.osu", &enginetest.Beatmap{
			Ruleset:    ruleset.Osu,
			Info:       `{"DifficultyName":"Extra"}`,
			Difficulty: `{"star_rating":6.1,"max_combo":100}`,
			Playable:   circles(100),
		}).
		Add("taiko.osu", &enginetest.Beatmap{
			Ruleset:    ruleset.Taiko,
			Info:       `{"DifficultyName":"Oni"}`,
			Difficulty: `{"star_rating":5.2,"max_combo":578}`,
			Playable:   hits(578),
		}).
		Add("broken.osu", &enginetest.Beatmap{
			Ruleset:    ruleset.Osu,
			Info:       `{"DifficultyName":"Broken"}`,
			Difficulty: `{}`,
			Cancel:     true,
		})
	e.Performance = perf
	return e
}

func TestRunnerRun(t *testing.T) {
	t.Parallel()
	var (
		mu      sync.Mutex
		engines []*enginetest.Engine
	)
	rec := &memStore{}
	r := &Runner{
		Engines: func(context.Context) (engine.Engine, error) {
			e := newEngine(nil)
			mu.Lock()
			engines = append(engines, e)
			mu.Unlock()
			return e, nil
		},
		Store:   rec,
		Fetcher: idMap{578: "taiko.osu"},
		Workers: 3,
	}
	jobs := []Job{
		{
			Name:     "osu",
			Beatmaps: []string{"osu.osu", "broken.osu", "missing.osu"},
			Ruleset:  "osu",
			Mods:     []string{"HD"},
			Requests: []RequestSpec{
				{Accuracy: session.Ptr(100.0)},
				{Accuracy: session.Ptr(95.0), Misses: 1, Combo: session.Ptr(50)},
			},
		},
		{
			Name:       "taiko",
			BeatmapIDs: []int{578, 9},
			Requests:   []RequestSpec{{Accuracy: session.Ptr(98.0)}},
		},
	}

	out, err := r.Run(context.Background(), jobs)
	require.NoError(t, err)
	require.Len(t, out, 5)

	osu := out[0]
	assert.Empty(t, osu.Error)
	assert.Equal(t, "osu.osu", osu.Beatmap)
	assert.Equal(t, ruleset.Osu, osu.Ruleset)
	assert.NotEqual(t, uuid.Nil, osu.Session)
	assert.Equal(t, 6.1, osu.Difficulty.Float("star_rating"))
	require.Len(t, osu.Performance, 2)
	assert.Equal(t, 100.0, osu.Performance[0].Float("pp"))
	assert.Equal(t, 50, osu.Performance[1].Int("max_combo"))
	assert.Equal(t, "Extra", osu.BeatmapInfo.String("DifficultyName"))

	recs := rec.byBeatmap("osu.osu")
	require.Len(t, recs, 4)
	for i, r := range recs {
		assert.Equal(t, i, r.Seq)
		assert.Equal(t, "HD", r.Mods)
	}
	assert.Equal(t, "difficulty", recs[0].Kind)
	assert.Equal(t, "performance", recs[1].Kind)
	assert.JSONEq(t, `{"accuracy":95,"combo":50,"misses":1}`, string(recs[2].Request))
	assert.Equal(t, "beatmap_info", recs[3].Kind)

	broken := out[1]
	assert.Empty(t, broken.Error)
	assert.Zero(t, broken.Difficulty.Len())
	assert.Empty(t, broken.Performance)
	assert.Equal(t, "Broken", broken.BeatmapInfo.String("DifficultyName"))

	assert.NotEmpty(t, out[2].Error)
	assert.Contains(t, rec.failures, "osu/missing.osu")

	taiko := out[3]
	assert.Empty(t, taiko.Error)
	assert.Equal(t, "578", taiko.Beatmap)
	assert.Equal(t, ruleset.Taiko, taiko.Ruleset)
	require.Len(t, taiko.Performance, 1)

	assert.NotEmpty(t, out[4].Error)
	assert.Contains(t, rec.failures, "taiko/9")

	mu.Lock()
	defer mu.Unlock()
	for _, e := range engines {
		assert.True(t, e.Closed())
		assert.Zero(t, e.Live())
	}
}

func TestRunnerRecoversPanics(t *testing.T) {
	t.Parallel()
	rec := &memStore{}
	r := &Runner{
		Engines: func(context.Context) (engine.Engine, error) {
			return newEngine(func(engine.ScoreRecord) string { panic("calculator exploded") }), nil
		},
		Store:   rec,
		Workers: 1,
	}
	jobs := []Job{{
		Name:     "boom",
		Beatmaps: []string{"osu.osu", "taiko.osu"},
		Requests: []RequestSpec{{}},
	}}

	out, err := r.Run(context.Background(), jobs)
	require.NoError(t, err)
	require.Len(t, out, 2)
	for _, o := range out {
		assert.Equal(t, "panic: calculator exploded", o.Error)
	}
	assert.Len(t, rec.failures, 2)
}

func TestRunnerEngineStartFailure(t *testing.T) {
	t.Parallel()
	r := &Runner{
		Engines: func(context.Context) (engine.Engine, error) {
			return nil, errors.New("dotnet not installed")
		},
		Workers: 2,
	}
	_, err := r.Run(context.Background(), []Job{{Name: "a", Beatmaps: []string{"osu.osu"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dotnet not installed")
}

func TestRunnerNeedsFetcherForIDs(t *testing.T) {
	t.Parallel()
	r := &Runner{
		Engines: func(context.Context) (engine.Engine, error) { return newEngine(nil), nil },
	}
	out, err := r.Run(context.Background(), []Job{{Name: "a", BeatmapIDs: []int{1}}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Contains(t, out[0].Error, "fetcher")
}
