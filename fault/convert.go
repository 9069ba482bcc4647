package fault

import "errors"

// From converts any error into a Fault. Faults anywhere in the chain keep
// their code; a bare Kind becomes a fault with the kind's representative
// code; everything else is an internal error carrying err.Error().
func From(err error) *Fault {
	if err == nil {
		return nil
	}
	var f *Fault
	if errors.As(err, &f) {
		return f
	}
	var k Kind
	if errors.As(err, &k) {
		return New(k.Code(), "")
	}
	return NewInternalError(err.Error())
}

// Code returns the representative code of a kind. Application maps to 0,
// the ranges to their upper bound.
func (k Kind) Code() int {
	switch k {
	case ParseError:
		return CodeParseError
	case InvalidRequest:
		return CodeInvalidRequest
	case MethodNotFound:
		return CodeMethodNotFound
	case InvalidParams:
		return CodeInvalidParams
	case InternalError:
		return CodeInternalError
	case ServerError:
		return ServerErrorCodeMax
	case PreDefined:
		return ReservedCodeMin
	}
	return 0
}
