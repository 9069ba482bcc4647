package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"lean-rpc/protocol"
)

// Conn carries envelopes over a stream connection using protocol framing.
//
// One goroutine (Serve) reads frames and hands each body to the consumer
// its frame kind names; requests go to the service consumer, responses to
// the client consumer. Consume runs on the read goroutine, so inbound
// messages are delivered one at a time in arrival order.
//
// Writes may come from any goroutine. They are serialized by writeMu so
// that a frame's header and body are never split by another frame.
type Conn struct {
	conn   net.Conn
	logger *slog.Logger

	writeMu sync.Mutex

	mu      sync.RWMutex
	client  Consumer
	service Consumer

	closeOnce      sync.Once
	disconnectOnce sync.Once
}

var _ ProducerConsumer = (*Conn)(nil)

type ConnOption func(*Conn)

// WithConnLogger sets the logger used for dropped frames and disconnects.
func WithConnLogger(l *slog.Logger) ConnOption {
	return func(c *Conn) { c.logger = l }
}

// NewConn wraps an established connection. Call Serve to start reading.
func NewConn(conn net.Conn, opts ...ConnOption) *Conn {
	c := &Conn{conn: conn, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("remote", conn.RemoteAddr().String())
	return c
}

// Dial connects to address and wraps the connection.
func Dial(ctx context.Context, network, address string, opts ...ConnOption) (*Conn, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	return NewConn(nc, opts...), nil
}

func (c *Conn) RegisterClient(consumer Consumer) {
	c.mu.Lock()
	c.client = consumer
	c.mu.Unlock()
}

func (c *Conn) RegisterService(consumer Consumer) {
	c.mu.Lock()
	c.service = consumer
	c.mu.Unlock()
}

// Transmit frames msg and writes it. The frame kind is chosen with
// IsRequest.
func (c *Conn) Transmit(msg []byte) error {
	kind := protocol.KindResponse
	if IsRequest(msg) {
		kind = protocol.KindRequest
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return protocol.Encode(c.conn, kind, msg)
}

// Serve reads frames until the connection fails, the peer hangs up, ctx is
// cancelled or Close is called. Every registered consumer then receives
// Disconnect exactly once.
//
// A clean hang-up and a cancelled ctx return nil. Cancelling ctx stops the
// read loop between frames, so a request being dispatched is still answered
// before the connection closes.
func (c *Conn) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		hdr, body, err := protocol.Decode(c.conn)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				c.disconnect(ErrClosed)
				_ = c.Close()
				return nil
			case errors.Is(err, io.EOF):
				c.disconnect(io.EOF)
				_ = c.Close()
				return nil
			case errors.Is(err, net.ErrClosed):
				c.disconnect(ErrClosed)
				return nil
			}
			c.logger.Warn("transport: read failed", "error", err)
			c.disconnect(err)
			_ = c.Close()
			return err
		}
		c.route(hdr.Kind, body)
	}
}

func (c *Conn) route(kind protocol.Kind, body []byte) {
	c.mu.RLock()
	target := c.client
	if kind == protocol.KindRequest {
		target = c.service
	}
	c.mu.RUnlock()

	if target == nil {
		c.logger.Warn("transport: dropping frame", "kind", kind.String(), "error", ErrNoConsumer)
		return
	}
	target.Consume(body)
}

// Close closes the connection and reports ErrClosed to the consumers.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
		c.disconnect(ErrClosed)
	})
	return err
}

func (c *Conn) disconnect(reason error) {
	c.disconnectOnce.Do(func() {
		c.mu.RLock()
		client, service := c.client, c.service
		c.mu.RUnlock()

		c.logger.Debug("transport: disconnected", "reason", reason)
		if client != nil {
			client.Disconnect(reason)
		}
		if service != nil && service != client {
			service.Disconnect(reason)
		}
	})
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }
