package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"osupp/ruleset"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "osupp.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestResultsRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTemp(t)

	recs := []Record{
		{Job: "weekly", Beatmap: "b.osu", Title: "B", Ruleset: ruleset.Taiko, Kind: "difficulty", Seq: 0, Payload: []byte(`{"star_rating":5}`)},
		{Job: "weekly", Beatmap: "a.osu", Title: "A", Ruleset: ruleset.Osu, Mods: "HD,DT", Kind: "performance", Seq: 1,
			Request: []byte(`{"accuracy":98}`), Payload: []byte(`{"pp":300}`)},
		{Job: "weekly", Beatmap: "a.osu", Title: "A", Ruleset: ruleset.Osu, Mods: "HD,DT", Kind: "difficulty", Seq: 0, Payload: []byte(`{"star_rating":7}`)},
		{Job: "other", Beatmap: "a.osu", Kind: "difficulty", Payload: []byte(`{}`)},
	}
	require.NoError(t, s.SaveResults(ctx, recs))
	require.NoError(t, s.SaveResults(ctx, nil))

	got, err := s.Results(ctx, "weekly")
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "a.osu", got[0].Beatmap)
	assert.Equal(t, 0, got[0].Seq)
	assert.Equal(t, "a.osu", got[1].Beatmap)
	assert.Equal(t, "performance", got[1].Kind)
	assert.Equal(t, "HD,DT", got[1].Mods)
	assert.Equal(t, ruleset.Osu, got[1].Ruleset)
	assert.JSONEq(t, `{"accuracy":98}`, string(got[1].Request))
	assert.JSONEq(t, `{"pp":300}`, string(got[1].Payload))
	assert.Empty(t, got[0].Request)
	assert.Equal(t, ruleset.Taiko, got[2].Ruleset)
	assert.False(t, got[2].Created.IsZero())

	none, err := s.Results(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTemp(t)

	require.NoError(t, s.Fail(ctx, "weekly", "1709211", "download: Slow down, play more."))
	require.NoError(t, s.Fail(ctx, "weekly", "broken.osu", "panic: index out of range"))
	require.NoError(t, s.Fail(ctx, "other", "x.osu", "nope"))

	got, err := s.Failures(ctx, "weekly")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "1709211", got[0].Beatmap)
	assert.Equal(t, "panic: index out of range", got[1].Reason)
}

func TestReopenKeepsData(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "osupp.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveResults(ctx, []Record{{Job: "j", Beatmap: "m", Kind: "beatmap_info", Payload: []byte(`{}`)}}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Results(ctx, "j")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
