// Package bridge talks to the scoring engine through a host process.
//
// The host reads one JSON request per line on stdin and answers with one JSON
// line on stdout:
//
//	{"id":"…","op":"open_beatmap","args":{"path":"…"}}
//	{"id":"…","result":{"beatmap":"b1","info":"b2","ruleset_id":0}}
//	{"id":"…","error":{"kind":"cancelled","message":"…"}}
//
// Objects the host creates stay alive until released and are referred to by
// string handles.
package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"osupp/engine"
)

// ErrBroken means the request stream lost sync with the host. The client
// refuses further calls.
var ErrBroken = errors.New("bridge: connection broken")

// HostError is an error the host reported for a request.
type HostError struct {
	Op      string
	Kind    string
	Message string
}

func (e *HostError) Error() string {
	return fmt.Sprintf("bridge: %s failed (%s): %s", e.Op, e.Kind, e.Message)
}

// Unwrap exposes engine.ErrCancelled for cancellation errors.
func (e *HostError) Unwrap() error {
	if e.Kind == "cancelled" {
		return engine.ErrCancelled
	}
	return nil
}

type Client struct {
	w       io.WriteCloser
	r       *bufio.Reader
	wait    func() error
	log     zerolog.Logger
	timeout time.Duration

	// one request in flight at a time
	token chan struct{}

	broken    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

type ClientOption func(*Client)

func WithLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) { c.log = l }
}

// WithTimeout bounds every call. Zero disables the bound.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// NewClient speaks the protocol over r and w. Closing the client closes w.
func NewClient(r io.Reader, w io.WriteCloser, opts ...ClientOption) *Client {
	c := &Client{
		w:     w,
		r:     bufio.NewReaderSize(r, 1<<16),
		log:   zerolog.Nop(),
		token: make(chan struct{}, 1),
	}
	c.token <- struct{}{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) acquire(ctx context.Context) (func(), error) {
	select {
	case <-c.token:
		return func() { c.token <- struct{}{} }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func frame(id, op string, args any) ([]byte, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("bridge: encode %s args: %w", op, err)
	}
	b := []byte(`{}`)
	if b, err = sjson.SetBytes(b, "id", id); err != nil {
		return nil, err
	}
	if b, err = sjson.SetBytes(b, "op", op); err != nil {
		return nil, err
	}
	if b, err = sjson.SetRawBytes(b, "args", raw); err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

type reply struct {
	line []byte
	err  error
}

// call sends one request and waits for its reply.
func (c *Client) call(ctx context.Context, op string, args any) (gjson.Result, error) {
	if c.broken.Load() {
		return gjson.Result{}, ErrBroken
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	done, err := c.acquire(ctx)
	if err != nil {
		return gjson.Result{}, err
	}
	defer done()
	// the previous holder may have broken the stream while we waited
	if c.broken.Load() {
		return gjson.Result{}, ErrBroken
	}

	id := uuid.NewString()
	req, err := frame(id, op, args)
	if err != nil {
		return gjson.Result{}, err
	}

	start := time.Now()
	if _, err := c.w.Write(req); err != nil {
		c.broken.Store(true)
		return gjson.Result{}, fmt.Errorf("%w: write %s: %v", ErrBroken, op, err)
	}

	ch := make(chan reply, 1)
	go func() {
		line, err := c.r.ReadBytes('\n')
		ch <- reply{line: line, err: err}
	}()

	var rep reply
	select {
	case <-ctx.Done():
		// the reply, if it ever comes, would be read by the next call
		c.broken.Store(true)
		return gjson.Result{}, fmt.Errorf("bridge: %s: %w", op, ctx.Err())
	case rep = <-ch:
	}
	if rep.err != nil {
		c.broken.Store(true)
		return gjson.Result{}, fmt.Errorf("%w: read %s: %v", ErrBroken, op, rep.err)
	}
	if !gjson.ValidBytes(rep.line) {
		c.broken.Store(true)
		return gjson.Result{}, fmt.Errorf("%w: invalid reply to %s", ErrBroken, op)
	}

	res := gjson.ParseBytes(rep.line)
	if got := res.Get("id").String(); got != id {
		c.broken.Store(true)
		return gjson.Result{}, fmt.Errorf("%w: reply %q to request %q", ErrBroken, got, id)
	}

	c.log.Debug().Str("op", op).Dur("took", time.Since(start)).Msg("bridge call")

	if e := res.Get("error"); e.Exists() {
		return gjson.Result{}, &HostError{
			Op:      op,
			Kind:    e.Get("kind").String(),
			Message: e.Get("message").String(),
		}
	}
	return res.Get("result"), nil
}

// Close ends the conversation and, for spawned hosts, waits for the process
// to exit.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.broken.Store(true)
		c.closeErr = c.w.Close()
		if c.wait != nil {
			if err := c.wait(); err != nil && c.closeErr == nil {
				c.closeErr = fmt.Errorf("bridge: host exit: %w", err)
			}
		}
	})
	return c.closeErr
}
