// Package client builds JSON-RPC requests and correlates their responses.
//
//   - Builder: request and notification bytes with atomic id allocation.
//   - Caller: calls over one transport, matching responses by id.
//   - Client: calls to a named service found through a registry, spread over
//     its instances by a load balancer, with a small connection pool per
//     instance.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"lean-rpc/loadbalance"
	"lean-rpc/message"
	"lean-rpc/registry"
	"lean-rpc/transport"
	"lean-rpc/value"
)

// Dial connects to a framed lean-rpc endpoint and returns a Caller on it.
// The connection is read in the background until it is closed.
func Dial(ctx context.Context, network, address string, opts ...CallerOption) (*Caller, *transport.Conn, error) {
	conn, err := transport.Dial(ctx, network, address)
	if err != nil {
		return nil, nil, fmt.Errorf("client: dial %s: %w", address, err)
	}
	caller := NewCaller(conn, opts...)
	go conn.Serve(context.Background())
	return caller, conn, nil
}

// Client calls one service discovered through a registry.
type Client struct {
	registry    registry.Registry
	balancer    loadbalance.Balancer
	service     string
	poolSize    int
	dialTimeout time.Duration
	logger      *slog.Logger
	builder     *Builder // ids stay unique across every pooled connection

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	pools     map[string]*pool // transport pool for each service instance
	instances []registry.ServiceInstance
	watching  bool
}

// pool holds up to poolSize multiplexed connections to one address, used in
// turn.
type pool struct {
	next  int
	slots []*link
}

type link struct {
	conn   *transport.Conn
	caller *Caller
}

type Option func(*Client)

// WithPoolSize sets the number of connections per instance (default 1).
func WithPoolSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.poolSize = n
		}
	}
}

func WithDialTimeout(d time.Duration) Option {
	return func(c *Client) { c.dialTimeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func NewClient(reg registry.Registry, bal loadbalance.Balancer, service string, opts ...Option) *Client {
	c := &Client{
		registry:    reg,
		balancer:    bal,
		service:     service,
		poolSize:    1,
		dialTimeout: 5 * time.Second,
		logger:      slog.Default(),
		builder:     NewBuilder(),
		pools:       make(map[string]*pool),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c
}

// Call invokes method on an instance picked by the balancer, keyed by the
// method name.
func (c *Client) Call(ctx context.Context, method string, args ...any) (value.Value, error) {
	params, err := Params(args...)
	if err != nil {
		return value.Value{}, err
	}
	caller, err := c.pick(ctx, method)
	if err != nil {
		return value.Value{}, err
	}
	return caller.CallParams(ctx, method, params)
}

// CallInto is Call followed by decoding the result into reply.
func (c *Client) CallInto(ctx context.Context, reply any, method string, args ...any) error {
	caller, err := c.pick(ctx, method)
	if err != nil {
		return err
	}
	return caller.CallInto(ctx, reply, method, args...)
}

// Notify sends a notification to one instance.
func (c *Client) Notify(ctx context.Context, method string, args ...any) error {
	caller, err := c.pick(ctx, method)
	if err != nil {
		return err
	}
	return caller.NotifyContext(ctx, method, args...)
}

func (c *Client) pick(ctx context.Context, key string) (*Caller, error) {
	instances, err := c.discover(ctx)
	if err != nil {
		return nil, err
	}
	instance, err := c.balancer.Pick(key, instances)
	if err != nil {
		return nil, fmt.Errorf("client: %s: %w", c.service, err)
	}
	return c.getCaller(ctx, instance.Addr)
}

// discover returns the instance list. The first call lists the registry and
// starts a watch that keeps the list current.
func (c *Client) discover(ctx context.Context) ([]registry.ServiceInstance, error) {
	c.mu.Lock()
	if c.watching {
		instances := c.instances
		c.mu.Unlock()
		return instances, nil
	}
	c.mu.Unlock()

	instances, err := c.registry.Discover(ctx, c.service)
	if err != nil {
		return nil, fmt.Errorf("client: discover %s: %w", c.service, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.watching {
		c.watching = true
		c.instances = instances
		go c.watch(c.registry.Watch(c.ctx, c.service))
	}
	return c.instances, nil
}

func (c *Client) watch(updates <-chan []registry.ServiceInstance) {
	for instances := range updates {
		c.logger.Debug("client: instances changed", "service", c.service, "count", len(instances))
		c.mu.Lock()
		c.instances = instances
		stale := c.pruneLocked()
		c.mu.Unlock()
		closeLinks(stale)
	}
}

// pruneLocked drops the pools of addresses no instance uses any more and
// returns their links for closing.
func (c *Client) pruneLocked() []*link {
	live := make(map[string]bool, len(c.instances))
	for _, inst := range c.instances {
		live[inst.Addr] = true
	}
	var stale []*link
	for addr, p := range c.pools {
		if live[addr] {
			continue
		}
		for _, l := range p.slots {
			if l != nil {
				stale = append(stale, l)
			}
		}
		delete(c.pools, addr)
		c.logger.Debug("client: closing pool of departed instance", "service", c.service, "addr", addr)
	}
	return stale
}

func closeLinks(links []*link) {
	for _, l := range links {
		l.conn.Close()
	}
}

// getCaller returns the next pooled caller for addr, dialing a fresh
// connection for empty or broken slots.
func (c *Client) getCaller(ctx context.Context, addr string) (*Caller, error) {
	c.mu.Lock()
	p, ok := c.pools[addr]
	if !ok {
		p = &pool{slots: make([]*link, c.poolSize)}
		c.pools[addr] = p
	}
	idx := p.next
	p.next = (p.next + 1) % len(p.slots)
	l := p.slots[idx]
	c.mu.Unlock()

	if l != nil && l.caller.Err() == nil {
		return l.caller, nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	defer cancel()
	conn, err := transport.Dial(dialCtx, "tcp", addr, transport.WithConnLogger(c.logger))
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", addr, err)
	}
	fresh := &link{
		conn:   conn,
		caller: NewCaller(conn, WithBuilder(c.builder), WithCallerLogger(c.logger)),
	}

	c.mu.Lock()
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		fresh.conn.Close()
		return nil, ErrClosed
	}
	if cur, ok := c.pools[addr]; !ok {
		// Pruned while dialing; the instance was picked, so keep serving it
		// until the next registry update.
		c.pools[addr] = p
	} else if cur != p {
		p = cur
	}
	use, stale := p.refill(idx, l, fresh)
	c.mu.Unlock()

	closeLinks(stale)
	if use != fresh {
		return use.caller, nil
	}
	go conn.Serve(c.ctx)
	return fresh.caller, nil
}

// refill settles slot idx after a dial. seen is what the slot held before
// dialing. A healthy link installed meanwhile by another goroutine wins and
// fresh is returned as stale; otherwise fresh takes the slot and every link
// it displaces is stale.
func (p *pool) refill(idx int, seen, fresh *link) (use *link, stale []*link) {
	current := p.slots[idx]
	if current != nil && current != seen && current.caller.Err() == nil {
		return current, []*link{fresh}
	}
	p.slots[idx] = fresh
	if seen != nil {
		stale = append(stale, seen)
	}
	if current != nil && current != seen {
		stale = append(stale, current)
	}
	return fresh, stale
}

// Close stops watching the registry and closes every pooled connection.
func (c *Client) Close() error {
	c.cancel()
	c.mu.Lock()
	defer c.mu.Unlock()
	for addr, p := range c.pools {
		for _, l := range p.slots {
			if l != nil {
				l.conn.Close()
			}
		}
		delete(c.pools, addr)
	}
	return nil
}

// CallParams forwards a prepared parameter list; see Caller.CallParams.
func (c *Client) CallParams(ctx context.Context, method string, params message.Params) (value.Value, error) {
	caller, err := c.pick(ctx, method)
	if err != nil {
		return value.Value{}, err
	}
	return caller.CallParams(ctx, method, params)
}
