package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/netutil"
)

// ConnHandler serves one accepted connection. ctx is cancelled when the
// listener shuts down; the handler should return soon after.
type ConnHandler func(ctx context.Context, conn net.Conn)

// Listener runs the accept loop for a stream endpoint.
//
//	Accept conn → go handler(ctx, conn)   (one goroutine per connection)
//	Shutdown    → close listener, cancel ctx, wait for handlers
type Listener struct {
	ln     net.Listener
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Set before the listener is closed so that Serve can tell an
	// intentional close from an accept failure.
	shutdown atomic.Bool
}

type ListenerOption func(*Listener)

func WithListenerLogger(l *slog.Logger) ListenerOption {
	return func(ln *Listener) { ln.logger = l }
}

// Listen opens network/address. When maxConns is positive, at most that
// many connections are served at once; further clients wait in the kernel
// backlog.
func Listen(network, address string, maxConns int, opts ...ListenerOption) (*Listener, error) {
	ln, err := net.Listen(network, address)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s %s: %w", network, address, err)
	}
	if maxConns > 0 {
		ln = netutil.LimitListener(ln, maxConns)
	}

	l := &Listener{ln: ln, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	l.ctx, l.cancel = context.WithCancel(context.Background())
	return l, nil
}

// Addr is the bound address, useful after listening on port 0.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Serve accepts connections until Shutdown. It returns nil after Shutdown
// and the accept error otherwise.
func (l *Listener) Serve(handler ConnHandler) error {
	l.logger.Info("transport: listening", "addr", l.ln.Addr().String())
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if l.shutdown.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("transport: accept: %w", err)
		}

		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			defer conn.Close()
			handler(l.ctx, conn)
		}()
	}
}

// Shutdown stops accepting, cancels the handlers' context and waits up to
// timeout for them to return.
func (l *Listener) Shutdown(timeout time.Duration) error {
	l.shutdown.Store(true)
	err := l.ln.Close()
	l.cancel()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("transport: timeout waiting for %s connections to finish", l.ln.Addr())
	}
}

// ServeConn is the standard ConnHandler body: it wraps nc in a Conn, lets
// attach register consumers on it, then reads until ctx ends or the peer
// leaves.
func ServeConn(ctx context.Context, nc net.Conn, attach func(*Conn), opts ...ConnOption) error {
	c := NewConn(nc, opts...)
	attach(c)
	return c.Serve(ctx)
}
