package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"osupp/config"
)

const osuFile = "osu file format v14\n\n[Metadata]\nTitle:Freedom Dive\nBeatmapID:129891\n\n[HitObjects]\n"

func newFetcher(t *testing.T, h http.Handler, opts ...Option) *Fetcher {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	f, err := New(config.Fetch{
		Dir:               t.TempDir(),
		BaseURL:           srv.URL + "/",
		RequestsPerMinute: 60000,
	}, zerolog.Nop(), append([]Option{WithCooldown(time.Millisecond)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(f.Close)
	return f
}

func TestBeatmapDownloadsAndCaches(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	f := newFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/osu/129891", r.URL.Path)
		_, _ = w.Write([]byte(osuFile))
	}))

	ctx := context.Background()
	path, err := f.Beatmap(ctx, 129891)
	require.NoError(t, err)
	assert.Equal(t, f.Path(129891), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, osuFile, string(data))

	_, err = f.Beatmap(ctx, 129891)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestBeatmapRetriesWhenRateLimited(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	f := newFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch hits.Add(1) {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			_, _ = w.Write([]byte("<html>" + slowDown + "</html>"))
		default:
			_, _ = w.Write([]byte(osuFile))
		}
	}))

	_, err := f.Beatmap(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int32(3), hits.Load())
}

func TestBeatmapGivesUp(t *testing.T) {
	t.Parallel()
	f := newFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}), WithAttempts(3))

	_, err := f.Beatmap(context.Background(), 1)
	require.ErrorIs(t, err, ErrRateLimited)
}

func TestBeatmapErrors(t *testing.T) {
	t.Parallel()
	f := newFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/osu/404":
			http.NotFound(w, r)
		case "/osu/500":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			_, _ = w.Write([]byte("<!doctype html><p>beatmap gone</p>"))
		}
	}))
	ctx := context.Background()

	_, err := f.Beatmap(ctx, 404)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.Beatmap(ctx, 500)
	require.Error(t, err)

	_, err = f.Beatmap(ctx, 7)
	var invalid *InvalidError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, 7, invalid.ID)
	_, statErr := os.Stat(f.Path(7))
	assert.True(t, os.IsNotExist(statErr))
}

func TestBeatmapSharesConcurrentDownloads(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	release := make(chan struct{})
	f := newFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		_, _ = w.Write([]byte(osuFile))
	}))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.Beatmap(context.Background(), 42)
			assert.NoError(t, err)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), hits.Load())
}

func TestThrottleWindow(t *testing.T) {
	t.Parallel()
	th := NewThrottle(2, 100*time.Millisecond)
	defer th.Stop()
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, th.Wait(ctx))
	}
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, th.Wait(cancelled), context.Canceled)
}

func TestBackoffGrows(t *testing.T) {
	t.Parallel()
	b := backoff{min: 10 * time.Millisecond}
	assert.Equal(t, 10*time.Millisecond, b.next())
	time.Sleep(20 * time.Millisecond)
	assert.GreaterOrEqual(t, b.next(), 20*time.Millisecond)
	b.reset()
	assert.Equal(t, 10*time.Millisecond, b.next())
}
