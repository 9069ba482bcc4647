package codec

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/buger/jsonparser"

	"lean-rpc/fault"
	"lean-rpc/message"
	"lean-rpc/value"
)

// Reader decodes one JSON document into protocol objects. Every error it
// returns is a *fault.Fault: malformed text is a parse error, well-formed
// JSON of the wrong shape is an invalid request.
type Reader struct {
	doc []byte
	typ jsonparser.ValueType
}

// NewReader validates data as a single JSON document.
func NewReader(data []byte) (*Reader, error) {
	if !json.Valid(data) {
		return nil, fault.NewParseError("parse error")
	}
	doc, typ, _, err := jsonparser.Get(data)
	if err != nil {
		return nil, fault.NewParseError(err.Error())
	}
	return &Reader{doc: doc, typ: typ}, nil
}

// ParseRequest decodes a request or notification envelope.
//
// An absent id yields message.NoID; a null id yields a present zero id; a
// string id must hold a base-10 int32.
func (r *Reader) ParseRequest() (message.Request, error) {
	if r.typ != jsonparser.Object {
		return message.Request{}, fault.NewInvalidRequest("request is not an object")
	}
	if err := r.checkVersion(); err != nil {
		return message.Request{}, err
	}

	raw, typ, err := r.member(fieldMethod)
	if err != nil {
		return message.Request{}, err
	}
	if typ != jsonparser.String {
		return message.Request{}, fault.NewInvalidRequest("method must be a string")
	}
	method, err := jsonparser.ParseString(raw)
	if err != nil {
		return message.Request{}, fault.NewParseError(err.Error())
	}

	var params message.Params
	raw, typ, err = r.member(fieldParams)
	if err != nil {
		return message.Request{}, err
	}
	switch typ {
	case jsonparser.NotExist:
	case jsonparser.Array:
		if params, err = convertArray(raw); err != nil {
			return message.Request{}, err
		}
	default:
		return message.Request{}, fault.NewInvalidRequest("params must be an array")
	}

	raw, typ, err = r.member(fieldID)
	if err != nil {
		return message.Request{}, err
	}
	if typ == jsonparser.NotExist {
		return message.NewRequest(method, params, message.NoID), nil
	}
	id, err := parseID(raw, typ)
	if err != nil {
		return message.Request{}, err
	}
	return message.NewRequest(method, params, message.NewID(id)), nil
}

// ParseResponse decodes a response envelope. Exactly one of result and
// error must be present, and error must carry an integer code and a string
// message.
func (r *Reader) ParseResponse() (message.Response, error) {
	if r.typ != jsonparser.Object {
		return message.Response{}, fault.NewInvalidRequest("response is not an object")
	}
	if err := r.checkVersion(); err != nil {
		return message.Response{}, err
	}

	raw, typ, err := r.member(fieldID)
	if err != nil {
		return message.Response{}, err
	}
	if typ == jsonparser.NotExist {
		return message.Response{}, fault.NewInvalidRequest("response id missing")
	}
	id, err := parseID(raw, typ)
	if err != nil {
		return message.Response{}, err
	}

	result, resultType, err := r.member(fieldResult)
	if err != nil {
		return message.Response{}, err
	}
	errObj, errType, err := r.member(fieldError)
	if err != nil {
		return message.Response{}, err
	}
	hasResult, hasError := resultType != jsonparser.NotExist, errType != jsonparser.NotExist
	if hasResult == hasError {
		return message.Response{}, fault.NewInvalidRequest("response needs exactly one of result and error")
	}

	if hasResult {
		v, err := convert(result, resultType)
		if err != nil {
			return message.Response{}, err
		}
		return message.NewResult(v, id), nil
	}

	if errType != jsonparser.Object {
		return message.Response{}, fault.NewInvalidRequest("error must be an object")
	}
	rawCode, codeType, _, err := jsonparser.Get(errObj, fieldCode)
	if err != nil && codeType != jsonparser.NotExist {
		return message.Response{}, fault.NewParseError(err.Error())
	}
	if codeType != jsonparser.Number {
		return message.Response{}, fault.NewInvalidRequest("error code must be an integer")
	}
	code, err := strconv.ParseInt(string(rawCode), 10, 32)
	if err != nil {
		return message.Response{}, fault.NewInvalidRequest("error code must be an integer")
	}
	rawMsg, msgType, _, err := jsonparser.Get(errObj, fieldMessage)
	if err != nil && msgType != jsonparser.NotExist {
		return message.Response{}, fault.NewParseError(err.Error())
	}
	if msgType != jsonparser.String {
		return message.Response{}, fault.NewInvalidRequest("error message must be a string")
	}
	msg, err := jsonparser.ParseString(rawMsg)
	if err != nil {
		return message.Response{}, fault.NewParseError(err.Error())
	}
	return message.NewFault(int(code), msg, id), nil
}

// ParseValue converts the whole document into a Value. Objects become
// Structs and arrays keep their element order.
//
// Numbers with a fraction or exponent become Float. Integers become
// Integer; an unsigned integer above math.MaxInt64 is narrowed to int64
// (two's complement), and integers beyond 64 bits become Float.
func (r *Reader) ParseValue() (value.Value, error) {
	return convert(r.doc, r.typ)
}

// ParseValue is NewReader followed by Reader.ParseValue.
func ParseValue(data []byte) (value.Value, error) {
	r, err := NewReader(data)
	if err != nil {
		return value.Value{}, err
	}
	return r.ParseValue()
}

func (r *Reader) checkVersion() error {
	raw, typ, err := r.member(fieldJSONRPC)
	if err != nil {
		return err
	}
	if typ != jsonparser.String {
		return fault.NewInvalidRequest("jsonrpc version missing")
	}
	v, err := jsonparser.ParseString(raw)
	if err != nil || v != Version {
		return fault.NewInvalidRequest("unsupported jsonrpc version")
	}
	return nil
}

// member looks up a top-level member. A missing member is reported through
// jsonparser.NotExist, not as an error.
func (r *Reader) member(key string) ([]byte, jsonparser.ValueType, error) {
	raw, typ, _, err := jsonparser.Get(r.doc, key)
	if errors.Is(err, jsonparser.KeyPathNotFoundError) {
		return nil, jsonparser.NotExist, nil
	}
	if err != nil {
		return nil, typ, fault.NewParseError(err.Error())
	}
	return raw, typ, nil
}

func parseID(raw []byte, typ jsonparser.ValueType) (int32, error) {
	switch typ {
	case jsonparser.Null:
		return 0, nil
	case jsonparser.String:
		s, err := jsonparser.ParseString(raw)
		if err != nil {
			return 0, fault.NewParseError(err.Error())
		}
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
		if err != nil {
			return 0, fault.NewInvalidRequest("id is not an integer")
		}
		return int32(n), nil
	case jsonparser.Number:
		n, err := strconv.ParseInt(string(raw), 10, 32)
		if err != nil {
			return 0, fault.NewInvalidRequest("id is not a 32-bit integer")
		}
		return int32(n), nil
	}
	return 0, fault.NewInvalidRequest("id must be a number, string or null")
}

func convert(raw []byte, typ jsonparser.ValueType) (value.Value, error) {
	switch typ {
	case jsonparser.Null:
		return value.NewNull(), nil
	case jsonparser.Boolean:
		b, err := jsonparser.ParseBoolean(raw)
		if err != nil {
			return value.Value{}, fault.NewParseError(err.Error())
		}
		return value.NewBool(b), nil
	case jsonparser.String:
		s, err := jsonparser.ParseString(raw)
		if err != nil {
			return value.Value{}, fault.NewParseError(err.Error())
		}
		return value.NewString(s), nil
	case jsonparser.Number:
		return convertNumber(string(raw))
	case jsonparser.Array:
		elems, err := convertArray(raw)
		if err != nil {
			return value.Value{}, err
		}
		return value.NewArray(elems...), nil
	case jsonparser.Object:
		members := make(map[string]value.Value)
		err := jsonparser.ObjectEach(raw, func(key, raw []byte, typ jsonparser.ValueType, _ int) error {
			v, err := convert(raw, typ)
			if err != nil {
				return err
			}
			members[string(key)] = v
			return nil
		})
		if err != nil {
			return value.Value{}, asFault(err)
		}
		return value.NewStruct(members), nil
	}
	return value.Value{}, fault.NewInternalError("unsupported JSON value type " + typ.String())
}

func convertArray(raw []byte) ([]value.Value, error) {
	elems := []value.Value{}
	var convErr error
	_, err := jsonparser.ArrayEach(raw, func(raw []byte, typ jsonparser.ValueType, _ int, err error) {
		if convErr != nil {
			return
		}
		if err != nil {
			convErr = err
			return
		}
		v, err := convert(raw, typ)
		if err != nil {
			convErr = err
			return
		}
		elems = append(elems, v)
	})
	if convErr != nil {
		return nil, asFault(convErr)
	}
	if err != nil {
		return nil, asFault(err)
	}
	return elems, nil
}

func convertNumber(s string) (value.Value, error) {
	if strings.ContainsAny(s, ".eE") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return value.Value{}, fault.NewParseError("number out of range: " + s)
		}
		return value.NewFloat(f), nil
	}
	if strings.HasPrefix(s, "-") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return value.NewInt(i), nil
		}
	} else if u, err := strconv.ParseUint(s, 10, 64); err == nil {
		// Above math.MaxInt64 this wraps negative.
		return value.NewInt(int64(u)), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return value.Value{}, fault.NewParseError("number out of range: " + s)
	}
	return value.NewFloat(f), nil
}

func asFault(err error) error {
	var f *fault.Fault
	if errors.As(err, &f) {
		return f
	}
	return fault.NewParseError(err.Error())
}
