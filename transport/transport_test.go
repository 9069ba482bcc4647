package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sink records what a transport delivers.
type sink struct {
	msgs chan string

	mu   sync.Mutex
	errs []error
}

func newSink() *sink { return &sink{msgs: make(chan string, 16)} }

func (s *sink) Consume(msg []byte) { s.msgs <- string(msg) }

func (s *sink) Disconnect(err error) {
	s.mu.Lock()
	s.errs = append(s.errs, err)
	s.mu.Unlock()
}

func (s *sink) disconnects() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.errs...)
}

func (s *sink) next(t *testing.T) string {
	t.Helper()
	select {
	case m := <-s.msgs:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return ""
	}
}

const (
	request  = `{"jsonrpc":"2.0","method":"add","params":[2,3],"id":1}`
	response = `{"jsonrpc":"2.0","id":1,"result":5}`
)

func TestIsRequest(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{request, true},
		{`{"jsonrpc":"2.0","method":"log","params":["x"],"id":0}`, true},
		{response, false},
		{`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"x"}}`, false},
		{`{"jsonrpc":"2.0","id":1}`, true},
		{`not json`, true},
		{`[1,2]`, true},
		{``, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsRequest([]byte(tt.msg)), tt.msg)
	}
}

func TestPipeRoutesByEnvelope(t *testing.T) {
	a, b := Pipe()
	service, client := newSink(), newSink()
	a.RegisterService(service)
	b.RegisterClient(client)

	require.NoError(t, b.Transmit([]byte(request)))
	assert.Equal(t, request, service.next(t))

	require.NoError(t, a.Transmit([]byte(response)))
	assert.Equal(t, response, client.next(t))

	// Nobody is registered as client on a.
	assert.ErrorIs(t, b.Transmit([]byte(response)), ErrNoConsumer)
}

func TestPipeCopiesMessage(t *testing.T) {
	a, b := Pipe()
	service := newSink()
	a.RegisterService(service)

	buf := []byte(request)
	require.NoError(t, b.Transmit(buf))
	buf[0] = 'X'
	assert.Equal(t, request, service.next(t))
}

func TestPipeClose(t *testing.T) {
	a, b := Pipe()
	sa, sb := newSink(), newSink()
	a.RegisterService(sa)
	b.RegisterClient(sb)

	require.NoError(t, a.Close())
	assert.Equal(t, []error{ErrClosed}, sa.disconnects())
	assert.Equal(t, []error{ErrClosed}, sb.disconnects())
	assert.ErrorIs(t, a.Transmit([]byte(request)), ErrClosed)
	assert.ErrorIs(t, b.Transmit([]byte(request)), ErrClosed)

	// Closing again does not notify twice.
	require.NoError(t, b.Close())
	assert.Len(t, sa.disconnects(), 1)
}

func connPair(t *testing.T) (*Conn, *Conn) {
	t.Helper()
	x, y := net.Pipe()
	return NewConn(x), NewConn(y)
}

func TestConnExchange(t *testing.T) {
	cli, srv := connPair(t)
	service, client := newSink(), newSink()
	srv.RegisterService(service)
	cli.RegisterClient(client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cli.Serve(ctx)
	go srv.Serve(ctx)

	require.NoError(t, cli.Transmit([]byte(request)))
	assert.Equal(t, request, service.next(t))

	require.NoError(t, srv.Transmit([]byte(response)))
	assert.Equal(t, response, client.next(t))
}

func TestConnPeerHangUp(t *testing.T) {
	cli, srv := connPair(t)
	client := newSink()
	cli.RegisterClient(client)

	done := make(chan error, 1)
	go func() { done <- cli.Serve(context.Background()) }()

	require.NoError(t, srv.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after peer closed")
	}
	errs := client.disconnects()
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], io.EOF))
}

func TestConnServeStopsOnCancel(t *testing.T) {
	cli, _ := connPair(t)
	client := newSink()
	cli.RegisterClient(client)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cli.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	assert.Equal(t, []error{ErrClosed}, client.disconnects())
}

func TestConnRejectsGarbage(t *testing.T) {
	x, y := net.Pipe()
	c := NewConn(x)
	service := newSink()
	c.RegisterService(service)

	done := make(chan error, 1)
	go func() { done <- c.Serve(context.Background()) }()

	go y.Write([]byte("GET / HTTP/1.1\r\n\r\n"))
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve accepted a non-protocol stream")
	}
	assert.Len(t, service.disconnects(), 1)
	_ = y.Close()
}

func TestListenerServeAndShutdown(t *testing.T) {
	l, err := Listen("tcp", "127.0.0.1:0", 4)
	require.NoError(t, err)

	service := newSink()
	served := make(chan error, 1)
	go func() {
		served <- l.Serve(func(ctx context.Context, nc net.Conn) {
			_ = ServeConn(ctx, nc, func(c *Conn) { c.RegisterService(service) })
		})
	}()

	c, err := Dial(context.Background(), "tcp", l.Addr().String())
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Transmit([]byte(request)))
	assert.Equal(t, request, service.next(t))

	require.NoError(t, l.Shutdown(2*time.Second))
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
	assert.Len(t, service.disconnects(), 1)
}
