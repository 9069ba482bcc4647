// Package message defines the in-memory protocol objects exchanged between
// client and server.
//
//   - Request: one call or notification (method, positional params, id).
//   - Response: the outcome of a call, either a result or a fault.
//
// Both serialize themselves through the Writer contract, which the codec
// package implements.
package message

import (
	"slices"

	"lean-rpc/value"
)

// Params is the ordered positional parameter list of a request.
type Params []value.Value

// ParamsAppender receives the serialized parameters of a request in order.
type ParamsAppender interface {
	Append(v value.Value)
}

// Writer emits exactly one envelope. A Writer is single-use.
type Writer interface {
	StartRequest(method string, id int32) ParamsAppender
	WriteResponse(id int32, result value.Value)
	WriteFault(code int, id int32, message string)
}

// Request is one decoded or to-be-encoded call.
type Request struct {
	method string
	params Params
	id     ID
}

// NewRequest builds a request. The params slice is copied.
func NewRequest(method string, params Params, id ID) Request {
	return Request{method: method, params: slices.Clone(params), id: id}
}

func (r Request) Method() string { return r.method }

// Params returns a copy of the positional parameters.
func (r Request) Params() Params { return slices.Clone(r.params) }

func (r Request) ID() ID { return r.id }

// IsNotification reports whether no response is expected.
func (r Request) IsNotification() bool { return r.id.IsNotification() }

// Write serializes the request into w.
func (r Request) Write(w Writer) {
	WriteRequest(w, r.method, r.params, r.id.Value())
}

// WriteRequest serializes a call with an explicit id. Parameter order is
// preserved.
func WriteRequest(w Writer, method string, params Params, id int32) {
	out := w.StartRequest(method, id)
	for _, p := range params {
		out.Append(p)
	}
}

// WriteNotification serializes a notification: the id is forced to 0.
func WriteNotification(w Writer, method string, params Params) {
	WriteRequest(w, method, params, 0)
}
