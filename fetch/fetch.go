// Package fetch downloads .osu files by beatmap id into a local cache.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"osupp/config"
	"osupp/dotosu"
)

const slowDown = "Slow down, play more."

var (
	ErrNotFound    = errors.New("fetch: beatmap not found")
	ErrRateLimited = errors.New("fetch: still rate limited")
)

// InvalidError is returned when the server answers with something that is
// not a beatmap.
type InvalidError struct {
	ID  int
	Err error
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("fetch: beatmap %d is not an .osu file: %v", e.ID, e.Err)
}

func (e *InvalidError) Unwrap() error { return e.Err }

type Fetcher struct {
	dir      string
	baseURL  string
	client   *http.Client
	throttle *Throttle
	limited  backoff
	attempts int
	group    singleflight.Group
	log      zerolog.Logger
}

type Option func(*Fetcher)

func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithCooldown sets the shortest wait after the server rate limits us.
func WithCooldown(d time.Duration) Option {
	return func(f *Fetcher) { f.limited.min = d }
}

// WithAttempts bounds how many rate-limited answers one download tolerates.
func WithAttempts(n int) Option {
	return func(f *Fetcher) { f.attempts = n }
}

func New(cfg config.Fetch, log zerolog.Logger, opts ...Option) (*Fetcher, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("fetch: cache dir: %w", err)
	}
	rpm := max(cfg.RequestsPerMinute, 1)
	f := &Fetcher{
		dir:      cfg.Dir,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		client:   &http.Client{Timeout: time.Minute},
		throttle: NewThrottle(rpm, time.Minute),
		attempts: 10,
		log:      log.With().Str("component", "fetch").Logger(),
	}
	f.limited.min = time.Minute
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func (f *Fetcher) Close() { f.throttle.Stop() }

// Path is where beatmap id lives in the cache.
func (f *Fetcher) Path(id int) string {
	return filepath.Join(f.dir, strconv.Itoa(id)+".osu")
}

// Beatmap returns the path of a valid cached copy of beatmap id, downloading
// it first when needed.
func (f *Fetcher) Beatmap(ctx context.Context, id int) (string, error) {
	path := f.Path(id)
	if _, err := dotosu.ReadHeaderFile(path); err == nil {
		return path, nil
	}

	_, err, _ := f.group.Do(strconv.Itoa(id), func() (any, error) {
		body, err := f.download(ctx, id)
		if err != nil {
			return nil, err
		}
		if _, err := dotosu.ReadHeader(bytes.NewReader(body)); err != nil {
			return nil, &InvalidError{ID: id, Err: err}
		}
		return nil, writeFile(path, body)
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

func (f *Fetcher) download(ctx context.Context, id int) ([]byte, error) {
	for i := 0; i < f.attempts; i++ {
		if err := f.throttle.Wait(ctx); err != nil {
			return nil, err
		}
		body, status, err := f.get(ctx, id)

		limited := status == http.StatusTooManyRequests || bytes.Contains(body, []byte(slowDown))
		if err != nil && strings.Contains(err.Error(), "connection refused") {
			limited = true
		}
		if limited {
			cooldown := f.limited.next()
			f.log.Warn().Int("beatmap_id", id).Dur("cooldown", cooldown).Msg("rate limited")
			if err := sleep(ctx, cooldown); err != nil {
				return nil, err
			}
			continue
		}
		f.limited.reset()

		switch {
		case err != nil:
			return nil, fmt.Errorf("fetch: beatmap %d: %w", id, err)
		case status == http.StatusNotFound:
			return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
		case status != http.StatusOK:
			return nil, fmt.Errorf("fetch: beatmap %d: status %d", id, status)
		}
		f.log.Debug().Int("beatmap_id", id).Int("bytes", len(body)).Msg("downloaded")
		return body, nil
	}
	return nil, fmt.Errorf("%w: beatmap %d", ErrRateLimited, id)
}

func (f *Fetcher) get(ctx context.Context, id int) ([]byte, int, error) {
	url := fmt.Sprintf("%s/osu/%d", f.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "text/plain,*/*;q=0.8")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("User-Agent", "osupp/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// writeFile replaces path so readers never see a partial file.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".download-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
