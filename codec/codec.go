// Package codec transcodes between JSON-RPC 2.0 wire text and the protocol
// objects of the message and value packages.
//
// Wire shapes produced by the Writer (one JSON object per message):
//
//	request:  {"jsonrpc":"2.0","method":"add","params":[2,3],"id":1}
//	notify:   {"jsonrpc":"2.0","method":"log","params":["x"],"id":0}
//	result:   {"jsonrpc":"2.0","id":1,"result":5}
//	fault:    {"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"method not found"}}
//
// The Reader accepts the same shapes, plus string and null ids and requests
// without params or id.
package codec

// Version is the protocol version literal carried by every envelope.
const Version = "2.0"

// Envelope member names.
const (
	fieldJSONRPC = "jsonrpc"
	fieldMethod  = "method"
	fieldParams  = "params"
	fieldID      = "id"
	fieldResult  = "result"
	fieldError   = "error"
	fieldCode    = "code"
	fieldMessage = "message"
)

// Data is one serialized envelope tagged with the id it answers or carries.
// A Data with no bytes means nothing needs to be transmitted.
type Data struct {
	id   int32
	body []byte
}

// Empty is the "no transmission required" output.
func Empty() *Data { return &Data{} }

func (d *Data) ID() int32 { return d.id }

// Bytes returns the serialized envelope. Callers must not modify it.
func (d *Data) Bytes() []byte { return d.body }

func (d *Data) Len() int { return len(d.body) }

func (d *Data) IsEmpty() bool { return len(d.body) == 0 }

func (d *Data) String() string { return string(d.body) }
