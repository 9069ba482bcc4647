// Package transport defines the datagram contract between the RPC core and
// whatever carries its bytes, and provides the adapters lean-rpc ships with.
//
// The core only ever sees three roles:
//
//	Transmitter       Transmit(msg)            core → wire
//	Consumer          Consume(msg), Disconnect  wire → core
//	ProducerConsumer  both, plus RegisterClient / RegisterService
//
// A ProducerConsumer routes each inbound message either to the registered
// service consumer (requests and notifications) or to the registered client
// consumer (responses):
//
//	             ┌──────── RegisterService ── server.Server
//	wire ──→ PC ─┤
//	             └──────── RegisterClient ─── client.Caller
//
// Adapters: Pipe (in-memory pair), Conn (framed net.Conn) and Listener
// (accept loop). The httptransport subpackage adapts HTTP.
package transport

import (
	"context"
	"errors"

	"github.com/buger/jsonparser"
)

// Transmitter sends one serialized envelope.
type Transmitter interface {
	Transmit(msg []byte) error
}

// ContextTransmitter is implemented by transports whose Transmit can block
// on the remote side, such as one HTTP round trip per message. Callers that
// hold a context prefer it over Transmit.
type ContextTransmitter interface {
	TransmitContext(ctx context.Context, msg []byte) error
}

// TransmitContext sends msg through t, passing ctx along when t supports it.
func TransmitContext(ctx context.Context, t Transmitter, msg []byte) error {
	if ct, ok := t.(ContextTransmitter); ok {
		return ct.TransmitContext(ctx, msg)
	}
	return t.Transmit(msg)
}

// Consumer receives serialized envelopes from a transport. Disconnect is
// called once when the transport goes away; no Consume follows it.
type Consumer interface {
	Consume(msg []byte)
	Disconnect(err error)
}

// ProducerConsumer is a bidirectional transport that a client and a server
// can attach to.
type ProducerConsumer interface {
	Transmitter
	RegisterClient(c Consumer)
	RegisterService(c Consumer)
}

var (
	// ErrClosed is reported to consumers when their transport is closed
	// locally.
	ErrClosed = errors.New("transport: closed")

	// ErrNoConsumer means an inbound message had nobody to deliver to.
	ErrNoConsumer = errors.New("transport: no consumer registered")
)

// IsRequest reports whether msg should be routed to a service consumer.
//
// Envelopes with a "method" member are requests. Envelopes carrying "result"
// or "error" without a method are responses. Anything else, including text
// that is not JSON at all, counts as a request so that the server side gets
// to answer it with a fault.
func IsRequest(msg []byte) bool {
	if has(msg, "method") {
		return true
	}
	return !has(msg, "result") && !has(msg, "error")
}

func has(msg []byte, key string) bool {
	_, typ, _, err := jsonparser.Get(msg, key)
	return err == nil && typ != jsonparser.NotExist
}
