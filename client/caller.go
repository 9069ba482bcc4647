package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"lean-rpc/codec"
	"lean-rpc/message"
	"lean-rpc/transport"
	"lean-rpc/value"
)

// ErrClosed is returned for calls on a closed Caller.
var ErrClosed = errors.New("client: caller closed")

// Caller matches responses to outstanding calls on one transport.
//
// Each call gets its own id and waits on its own channel. The transport
// delivers responses to Consume, which routes them by id:
//
//	goroutine-1 ──Call(id=1)──┐
//	goroutine-2 ──Call(id=2)──┼──→ transport ──→ server
//	goroutine-3 ──Call(id=3)──┘
//
//	Consume(response id=2) → pending[2] ← response → goroutine-2 wakes up
type Caller struct {
	pc      transport.ProducerConsumer
	builder *Builder
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[int32]chan result
	err     error // set once the caller can no longer complete calls
}

type result struct {
	resp message.Response
	err  error
}

var _ transport.Consumer = (*Caller)(nil)

type CallerOption func(*Caller)

func WithCallerLogger(l *slog.Logger) CallerOption {
	return func(c *Caller) { c.logger = l }
}

// WithBuilder shares an id counter between callers.
func WithBuilder(b *Builder) CallerOption {
	return func(c *Caller) { c.builder = b }
}

// NewCaller registers a Caller as pc's client consumer.
func NewCaller(pc transport.ProducerConsumer, opts ...CallerOption) *Caller {
	c := &Caller{
		pc:      pc,
		builder: NewBuilder(),
		logger:  slog.Default(),
		pending: make(map[int32]chan result),
	}
	for _, opt := range opts {
		opt(c)
	}
	pc.RegisterClient(c)
	return c
}

// Call invokes method with args and waits for its result. A fault response
// is returned as a *fault.Fault error that matches its fault.Kind with
// errors.Is.
func (c *Caller) Call(ctx context.Context, method string, args ...any) (value.Value, error) {
	params, err := Params(args...)
	if err != nil {
		return value.Value{}, err
	}
	return c.CallParams(ctx, method, params)
}

// CallInto is Call followed by decoding the result into reply, which must be
// a non-nil pointer.
func (c *Caller) CallInto(ctx context.Context, reply any, method string, args ...any) error {
	v, err := c.Call(ctx, method, args...)
	if err != nil {
		return err
	}
	if err := v.Decode(reply); err != nil {
		return fmt.Errorf("client: decode %s result: %w", method, err)
	}
	return nil
}

// CallParams is Call with a prepared parameter list.
func (c *Caller) CallParams(ctx context.Context, method string, params message.Params) (value.Value, error) {
	id := c.builder.NextID()
	data, err := encodeRequest(method, params, id)
	if err != nil {
		return value.Value{}, err
	}

	// Register before transmitting: an in-memory transport may deliver the
	// response before Transmit returns.
	ch := make(chan result, 1)
	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return value.Value{}, c.err
	}
	c.pending[id] = ch
	c.mu.Unlock()

	if err := transport.TransmitContext(ctx, c.pc, data.Bytes()); err != nil {
		c.forget(id)
		return value.Value{}, fmt.Errorf("client: transmit %s: %w", method, err)
	}

	select {
	case r := <-ch:
		if r.err != nil {
			return value.Value{}, r.err
		}
		if err := r.resp.Err(); err != nil {
			return value.Value{}, err
		}
		return r.resp.Result(), nil
	case <-ctx.Done():
		c.forget(id)
		return value.Value{}, ctx.Err()
	}
}

// Notify sends a notification. It returns once the transport has accepted
// the message; no response is expected.
func (c *Caller) Notify(method string, args ...any) error {
	return c.NotifyContext(context.Background(), method, args...)
}

// NotifyContext is Notify with ctx bounding the transmit on transports that
// support it.
func (c *Caller) NotifyContext(ctx context.Context, method string, args ...any) error {
	c.mu.Lock()
	err := c.err
	c.mu.Unlock()
	if err != nil {
		return err
	}

	data, err := c.builder.BuildNotification(method, args...)
	if err != nil {
		return err
	}
	if err := transport.TransmitContext(ctx, c.pc, data.Bytes()); err != nil {
		return fmt.Errorf("client: transmit %s: %w", method, err)
	}
	return nil
}

func (c *Caller) forget(id int32) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Consume routes one response to the call waiting for its id. Responses
// nobody waits for are logged and dropped.
func (c *Caller) Consume(msg []byte) {
	resp, err := parseResponse(msg)
	if err != nil {
		c.logger.Warn("client: dropping malformed response", "error", err)
		return
	}

	c.mu.Lock()
	ch, ok := c.pending[resp.ID()]
	delete(c.pending, resp.ID())
	c.mu.Unlock()

	if !ok {
		if resp.IsFault() {
			code, msg := resp.Fault()
			c.logger.Warn("client: uncorrelated fault", "id", resp.ID(), "code", code, "error", msg)
			return
		}
		c.logger.Debug("client: dropping response without a pending call", "id", resp.ID())
		return
	}
	ch <- result{resp: resp}
}

func parseResponse(msg []byte) (message.Response, error) {
	r, err := codec.NewReader(msg)
	if err != nil {
		return message.Response{}, err
	}
	return r.ParseResponse()
}

// Disconnect fails every pending call with an error wrapping err. Later
// calls fail the same way.
func (c *Caller) Disconnect(err error) {
	c.fail(fmt.Errorf("client: transport disconnected: %w", err))
}

// Close detaches the caller from its transport and fails pending calls
// with ErrClosed. It does not close the transport.
func (c *Caller) Close() error {
	c.fail(ErrClosed)
	c.pc.RegisterClient(nil)
	return nil
}

func (c *Caller) fail(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	pending := c.pending
	c.pending = make(map[int32]chan result)
	c.mu.Unlock()

	for _, ch := range pending {
		ch <- result{err: err}
	}
}

// Err reports why the caller stopped, or nil while it is usable.
func (c *Caller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}
