// Package fault is the error taxonomy of JSON-RPC 2.0.
//
// A Fault carries a numeric code and a message and maps one-to-one onto the
// wire "error" object. Codes fall into the reserved ranges defined by the
// protocol; Classify tells which one. Faults compare with errors.Is against a
// Kind:
//
//	if errors.Is(err, fault.MethodNotFound) { ... }
package fault

import "fmt"

// Reserved codes and ranges.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	ServerErrorCodeMin = -32099
	ServerErrorCodeMax = -32000

	ReservedCodeMin = -32768
	ReservedCodeMax = -32000
)

// Kind classifies a fault code. A Kind is itself an error so that it can be
// used as an errors.Is target.
type Kind int

const (
	Application Kind = iota
	ParseError
	InvalidRequest
	MethodNotFound
	InvalidParams
	InternalError
	ServerError
	PreDefined
)

var kindText = map[Kind]string{
	Application:    "application error",
	ParseError:     "parse error",
	InvalidRequest: "invalid request",
	MethodNotFound: "method not found",
	InvalidParams:  "invalid params",
	InternalError:  "internal error",
	ServerError:    "server error",
	PreDefined:     "pre-defined error",
}

func (k Kind) Error() string {
	if s, ok := kindText[k]; ok {
		return s
	}
	return fmt.Sprintf("fault kind %d", int(k))
}

// Classify maps a code onto its Kind. The five fixed codes win over the
// server-error range, which wins over the wider reserved range.
func Classify(code int) Kind {
	switch code {
	case CodeParseError:
		return ParseError
	case CodeInvalidRequest:
		return InvalidRequest
	case CodeMethodNotFound:
		return MethodNotFound
	case CodeInvalidParams:
		return InvalidParams
	case CodeInternalError:
		return InternalError
	}
	if code >= ServerErrorCodeMin && code <= ServerErrorCodeMax {
		return ServerError
	}
	if code >= ReservedCodeMin && code <= ReservedCodeMax {
		return PreDefined
	}
	return Application
}

// Fault is a JSON-RPC error.
type Fault struct {
	Code    int
	Message string
}

// New returns a Fault with the given code. An empty message is replaced by
// the standard text for the code's kind.
func New(code int, message string) *Fault {
	if message == "" {
		message = Classify(code).Error()
	}
	return &Fault{Code: code, Message: message}
}

// Newf is New with a formatted message.
func Newf(code int, format string, args ...any) *Fault {
	return New(code, fmt.Sprintf(format, args...))
}

func (f *Fault) Error() string {
	return fmt.Sprintf("jsonrpc: %s (%d)", f.Message, f.Code)
}

// Kind classifies the fault's code.
func (f *Fault) Kind() Kind { return Classify(f.Code) }

// Is matches a Kind target against the fault's classification, and a *Fault
// target by code.
func (f *Fault) Is(target error) bool {
	switch t := target.(type) {
	case Kind:
		return f.Kind() == t
	case *Fault:
		return t != nil && f.Code == t.Code
	}
	return false
}

func NewParseError(message string) *Fault { return New(CodeParseError, message) }

func NewInvalidRequest(message string) *Fault { return New(CodeInvalidRequest, message) }

func NewMethodNotFound(message string) *Fault { return New(CodeMethodNotFound, message) }

func NewInvalidParams(message string) *Fault { return New(CodeInvalidParams, message) }

func NewInternalError(message string) *Fault { return New(CodeInternalError, message) }

// NewServerError builds a fault in the implementation-defined server range.
// Codes outside the range are clamped to ServerErrorCodeMax.
func NewServerError(code int, message string) *Fault {
	if code < ServerErrorCodeMin || code > ServerErrorCodeMax {
		code = ServerErrorCodeMax
	}
	return New(code, message)
}
