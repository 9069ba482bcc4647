package httptransport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"lean-rpc/transport"
)

// ClientAdapter is the client side of the HTTP transport. Transmit POSTs one
// message and hands a non-empty reply body to the registered client
// consumer before returning.
type ClientAdapter struct {
	url    string
	client *http.Client
	logger *slog.Logger

	mu       sync.RWMutex
	consumer transport.Consumer
	closed   bool
}

var _ transport.ProducerConsumer = (*ClientAdapter)(nil)

type ClientOption func(*ClientAdapter)

func WithHTTPClient(c *http.Client) ClientOption {
	return func(a *ClientAdapter) { a.client = c }
}

func WithClientLogger(l *slog.Logger) ClientOption {
	return func(a *ClientAdapter) { a.logger = l }
}

// NewClientAdapter posts to url.
func NewClientAdapter(url string, opts ...ClientOption) *ClientAdapter {
	a := &ClientAdapter{
		url:    url,
		client: http.DefaultClient,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *ClientAdapter) RegisterClient(c transport.Consumer) {
	a.mu.Lock()
	a.consumer = c
	a.mu.Unlock()
}

// RegisterService is a no-op: an HTTP client never receives requests.
func (a *ClientAdapter) RegisterService(transport.Consumer) {}

var _ transport.ContextTransmitter = (*ClientAdapter)(nil)

// Transmit sends msg without a deadline. See TransmitContext.
func (a *ClientAdapter) Transmit(msg []byte) error {
	return a.TransmitContext(context.Background(), msg)
}

// TransmitContext sends msg as one POST bound to ctx. Failures are returned
// to the caller and leave the adapter usable; only Close disconnects the
// consumer.
func (a *ClientAdapter) TransmitContext(ctx context.Context, msg []byte) error {
	a.mu.RLock()
	closed, consumer := a.closed, a.consumer
	a.mu.RUnlock()
	if closed {
		return transport.ErrClosed
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(msg))
	if err != nil {
		return fmt.Errorf("httptransport: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("httptransport: post %s: %w", a.url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("httptransport: read reply from %s: %w", a.url, err)
	}

	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil
	case http.StatusOK:
	default:
		return fmt.Errorf("httptransport: post %s: unexpected status %s", a.url, resp.Status)
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if consumer == nil {
		a.logger.Warn("httptransport: dropping reply, no client registered", "url", a.url)
		return transport.ErrNoConsumer
	}
	consumer.Consume(body)
	return nil
}

// Close rejects further transmits and reports transport.ErrClosed to the
// registered consumer.
func (a *ClientAdapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	consumer := a.consumer
	a.mu.Unlock()

	if consumer != nil {
		consumer.Disconnect(transport.ErrClosed)
	}
	return nil
}
