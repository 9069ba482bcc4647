package message

import (
	"lean-rpc/fault"
	"lean-rpc/value"
)

// Response is the outcome of one call: a result or a fault, never both.
type Response struct {
	result  value.Value
	isFault bool
	code    int
	message string
	id      int32
}

// NewResult builds a successful response.
func NewResult(result value.Value, id int32) Response {
	return Response{result: result, id: id}
}

// NewFault builds a fault response.
func NewFault(code int, message string, id int32) Response {
	return Response{isFault: true, code: code, message: message, id: id}
}

// FromError turns err into a fault response. Faults keep their code, other
// errors become internal errors.
func FromError(err error, id int32) Response {
	f := fault.From(err)
	return NewFault(f.Code, f.Message, id)
}

func (r Response) ID() int32 { return r.id }

func (r Response) IsFault() bool { return r.isFault }

// Result is the call result; Null for faults.
func (r Response) Result() value.Value { return r.result }

// Fault returns the fault code and message; zero values for results.
func (r Response) Fault() (code int, message string) { return r.code, r.message }

// WithID returns a copy of r answering id.
func (r Response) WithID(id int32) Response {
	r.id = id
	return r
}

// Write serializes the response into w.
func (r Response) Write(w Writer) {
	if r.isFault {
		w.WriteFault(r.code, r.id, r.message)
		return
	}
	w.WriteResponse(r.id, r.result)
}

// Err interprets a fault response as an error and returns nil for results.
// The returned *fault.Fault matches the fault.Kind selected by its code.
func (r Response) Err() error {
	if !r.isFault {
		return nil
	}
	return &fault.Fault{Code: r.code, Message: r.message}
}
