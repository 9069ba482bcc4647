package codec

import (
	"encoding/json"
	"fmt"

	"lean-rpc/message"
	"lean-rpc/value"
)

type requestEnvelope struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []value.Value `json:"params"`
	ID      int32         `json:"id"`
}

type resultEnvelope struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int32       `json:"id"`
	Result  value.Value `json:"result"`
}

type errorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type faultEnvelope struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int32       `json:"id"`
	Error   errorObject `json:"error"`
}

// Writer builds exactly one envelope. It implements message.Writer.
//
// StartRequest, WriteResponse and WriteFault are mutually exclusive; calling
// a second one on the same Writer panics.
type Writer struct {
	envelope any
	id       int32
	data     *Data
}

var _ message.Writer = (*Writer)(nil)

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) begin(id int32, envelope any) {
	if w.envelope != nil {
		panic("codec: Writer already holds an envelope")
	}
	w.id = id
	w.envelope = envelope
}

// paramsAppender appends into the params array of a started request.
type paramsAppender struct {
	env *requestEnvelope
}

func (p paramsAppender) Append(v value.Value) {
	p.env.Params = append(p.env.Params, v)
}

// StartRequest begins a request envelope and returns the params array for
// the caller to fill in call order.
func (w *Writer) StartRequest(method string, id int32) message.ParamsAppender {
	env := &requestEnvelope{
		JSONRPC: Version,
		Method:  method,
		Params:  []value.Value{},
		ID:      id,
	}
	w.begin(id, env)
	return paramsAppender{env: env}
}

func (w *Writer) WriteResponse(id int32, result value.Value) {
	w.begin(id, &resultEnvelope{JSONRPC: Version, ID: id, Result: result})
}

func (w *Writer) WriteFault(code int, id int32, msg string) {
	w.begin(id, &faultEnvelope{
		JSONRPC: Version,
		ID:      id,
		Error:   errorObject{Code: code, Message: msg},
	})
}

// Data serializes the envelope. A Writer that was never written yields the
// empty Data. The result is cached; later calls return the same Data.
func (w *Writer) Data() (*Data, error) {
	if w.data != nil {
		return w.data, nil
	}
	if w.envelope == nil {
		w.data = Empty()
		return w.data, nil
	}
	body, err := json.Marshal(w.envelope)
	if err != nil {
		return nil, fmt.Errorf("codec: encode envelope %d: %w", w.id, err)
	}
	w.data = &Data{id: w.id, body: body}
	return w.data, nil
}

// Encodable is implemented by message.Request and message.Response.
type Encodable interface {
	Write(w message.Writer)
}

// Encode writes m through a fresh Writer.
func Encode(m Encodable) (*Data, error) {
	w := NewWriter()
	m.Write(w)
	return w.Data()
}
