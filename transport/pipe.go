package transport

import (
	"slices"
	"sync"
)

// PipeEnd is one side of an in-memory transport. Transmit on one end
// delivers synchronously to the consumers registered on the other end.
type PipeEnd struct {
	peer *PipeEnd

	mu      sync.RWMutex
	client  Consumer
	service Consumer
	closed  bool
}

var _ ProducerConsumer = (*PipeEnd)(nil)

// Pipe returns two connected ends.
func Pipe() (*PipeEnd, *PipeEnd) {
	a, b := &PipeEnd{}, &PipeEnd{}
	a.peer, b.peer = b, a
	return a, b
}

func (p *PipeEnd) RegisterClient(c Consumer) {
	p.mu.Lock()
	p.client = c
	p.mu.Unlock()
}

func (p *PipeEnd) RegisterService(c Consumer) {
	p.mu.Lock()
	p.service = c
	p.mu.Unlock()
}

// Transmit hands a copy of msg to the peer. It returns once the peer's
// consumer has returned.
func (p *PipeEnd) Transmit(msg []byte) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	return p.peer.deliver(slices.Clone(msg))
}

func (p *PipeEnd) deliver(msg []byte) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrClosed
	}
	target := p.client
	if IsRequest(msg) {
		target = p.service
	}
	p.mu.RUnlock()

	if target == nil {
		return ErrNoConsumer
	}
	target.Consume(msg)
	return nil
}

// Close shuts both ends and reports ErrClosed to every registered consumer.
func (p *PipeEnd) Close() error {
	p.shutdown()
	p.peer.shutdown()
	return nil
}

func (p *PipeEnd) shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	client, service := p.client, p.service
	p.mu.Unlock()

	if client != nil {
		client.Disconnect(ErrClosed)
	}
	if service != nil && service != client {
		service.Disconnect(ErrClosed)
	}
}
