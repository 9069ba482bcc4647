// Package server implements the JSON-RPC ingestion pipeline.
//
//	transport ──Consume──→ backlog ──(enabled)──→ handle ──Transmit──→ transport
//	                                               │
//	                                  parse → Dispatcher.Invoke → encode
//
// A Server attaches to a transport as its service consumer when it is
// created, but answers nothing until Enable is called. Messages consumed in
// the meantime are kept in a backlog and answered in arrival order once the
// server is enabled, before any message that arrives later.
//
// handle never fails. Malformed input yields a fault response with id 0,
// notifications yield no output, and everything else yields the encoded
// response.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"lean-rpc/codec"
	"lean-rpc/fault"
	"lean-rpc/message"
	"lean-rpc/transport"
)

// Dispatcher invokes a method by name. Failures are reported inside the
// returned Response, never as a Go error.
type Dispatcher interface {
	Invoke(ctx context.Context, method string, params message.Params, id int32) message.Response
}

// Server is the service side of one transport.
type Server struct {
	pc         transport.ProducerConsumer
	dispatcher Dispatcher
	logger     *slog.Logger
	ctx        context.Context

	// mu guards the gate and the backlog only. Dispatch and Transmit run
	// with mu released, so a transport may call Consume from inside
	// Transmit.
	mu       sync.Mutex
	enabled  bool
	draining bool
	backlog  [][]byte
}

var _ transport.Consumer = (*Server)(nil)

type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithContext sets the context passed to the dispatcher for messages that
// arrive through Consume.
func WithContext(ctx context.Context) Option {
	return func(s *Server) { s.ctx = ctx }
}

// New creates a disabled server and registers it as pc's service consumer.
// pc may be nil for a server that is only reached through HandleRequest.
func New(pc transport.ProducerConsumer, d Dispatcher, opts ...Option) *Server {
	s := &Server{
		pc:         pc,
		dispatcher: d,
		logger:     slog.Default(),
		ctx:        context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if pc != nil {
		pc.RegisterService(s)
	}
	return s
}

// Consume queues one inbound message and, when the server is enabled,
// answers everything queued so far.
func (s *Server) Consume(msg []byte) {
	s.mu.Lock()
	s.backlog = append(s.backlog, msg)
	start := s.enabled && !s.draining
	if start {
		s.draining = true
	}
	s.mu.Unlock()

	if start {
		s.drain()
	}
}

// Enable opens the gate and answers the backlog in arrival order.
func (s *Server) Enable() {
	s.mu.Lock()
	s.enabled = true
	start := !s.draining
	if start {
		s.draining = true
	}
	pending := len(s.backlog)
	s.mu.Unlock()

	if pending > 0 {
		s.logger.Debug("server: flushing backlog", "messages", pending)
	}
	if start {
		s.drain()
	}
}

// Enabled reports whether the gate is open.
func (s *Server) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Disconnect is called by the transport when it goes away. Queued messages
// can no longer be answered and are dropped.
func (s *Server) Disconnect(err error) {
	s.mu.Lock()
	dropped := len(s.backlog)
	s.backlog = nil
	s.mu.Unlock()

	s.logger.Info("server: transport disconnected", "reason", err, "dropped", dropped)
}

// drain answers backlogged messages until the backlog is empty. Only one
// goroutine drains at a time; the draining flag is set by the caller.
func (s *Server) drain() {
	for {
		s.mu.Lock()
		if !s.enabled || len(s.backlog) == 0 {
			s.draining = false
			s.mu.Unlock()
			return
		}
		batch := s.backlog
		s.backlog = nil
		s.mu.Unlock()

		for _, msg := range batch {
			s.respond(msg)
		}
	}
}

func (s *Server) respond(msg []byte) {
	data := s.handle(s.ctx, msg)
	if data.IsEmpty() {
		return
	}
	if s.pc == nil {
		s.logger.Warn("server: no transport to answer on", "id", data.ID())
		return
	}
	if err := s.pc.Transmit(data.Bytes()); err != nil {
		s.logger.Warn("server: transmit failed", "id", data.ID(), "error", err)
	}
}

// HandleRequest answers one message directly, bypassing the gate and the
// backlog. It is meant for transports that already order their messages,
// such as one HTTP request per call. An empty result means nothing should be
// sent back.
func (s *Server) HandleRequest(ctx context.Context, msg []byte) *codec.Data {
	return s.handle(ctx, msg)
}

func (s *Server) handle(ctx context.Context, msg []byte) (data *codec.Data) {
	var (
		id     int32
		parsed bool
	)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("server: dispatch panicked", "id", id, "panic", r)
			if parsed && id == 0 {
				// Notifications stay unanswered even when their handler fails.
				data = codec.Empty()
				return
			}
			data = s.encode(message.FromError(fault.NewInternalError(fmt.Sprint(r)), id))
		}
	}()

	req, err := parse(msg)
	if err != nil {
		s.logger.Debug("server: rejecting message", "error", err)
		return s.encode(message.FromError(err, 0))
	}
	id, parsed = req.ID().Value(), true

	resp := s.dispatcher.Invoke(ctx, req.Method(), req.Params(), id)
	if resp.ID() == 0 {
		return codec.Empty()
	}
	return s.encode(resp)
}

func parse(msg []byte) (message.Request, error) {
	r, err := codec.NewReader(msg)
	if err != nil {
		return message.Request{}, err
	}
	return r.ParseRequest()
}

// encode serializes resp. A result that cannot be serialized (a NaN, for
// example) is replaced by an internal-error fault for the same id.
func (s *Server) encode(resp message.Response) *codec.Data {
	data, err := codec.Encode(resp)
	if err == nil {
		return data
	}
	s.logger.Error("server: encode response", "id", resp.ID(), "error", err)
	data, err = codec.Encode(message.FromError(fault.NewInternalError(err.Error()), resp.ID()))
	if err != nil {
		// A fault envelope holds only an int and two strings.
		panic(err)
	}
	return data
}
