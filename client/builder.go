package client

import (
	"fmt"
	"sync/atomic"

	"lean-rpc/codec"
	"lean-rpc/message"
	"lean-rpc/value"
)

// Builder turns a method name and arguments into wire-ready requests and
// notifications. Its only state is the call id counter, so one Builder can
// be shared by any number of goroutines.
//
// Ids start at 1 and increase by one per request. Zero is never handed out:
// it marks notifications. After math.MaxInt32 the counter wraps to negative
// ids and skips zero on its way back up.
type Builder struct {
	counter atomic.Int32
}

func NewBuilder() *Builder {
	return &Builder{}
}

// NextID allocates a call id.
func (b *Builder) NextID() int32 {
	for {
		if id := b.counter.Add(1); id != 0 {
			return id
		}
	}
}

// Params converts Go arguments into positional parameters with value.From.
func Params(args ...any) (message.Params, error) {
	params := make(message.Params, len(args))
	for i, arg := range args {
		v, err := value.From(arg)
		if err != nil {
			return nil, fmt.Errorf("client: argument %d: %w", i, err)
		}
		params[i] = v
	}
	return params, nil
}

// BuildRequest serializes a call of method with args under a fresh id. The
// id is available from the returned Data.
func (b *Builder) BuildRequest(method string, args ...any) (*codec.Data, error) {
	params, err := Params(args...)
	if err != nil {
		return nil, err
	}
	return b.BuildRequestParams(method, params)
}

// BuildRequestParams is BuildRequest with a prepared parameter list.
func (b *Builder) BuildRequestParams(method string, params message.Params) (*codec.Data, error) {
	return encodeRequest(method, params, b.NextID())
}

// BuildNotification serializes a notification. It allocates no id.
func (b *Builder) BuildNotification(method string, args ...any) (*codec.Data, error) {
	params, err := Params(args...)
	if err != nil {
		return nil, err
	}
	return b.BuildNotificationParams(method, params)
}

// BuildNotificationParams is BuildNotification with a prepared parameter
// list.
func (b *Builder) BuildNotificationParams(method string, params message.Params) (*codec.Data, error) {
	w := codec.NewWriter()
	message.WriteNotification(w, method, params)
	return w.Data()
}

func encodeRequest(method string, params message.Params, id int32) (*codec.Data, error) {
	w := codec.NewWriter()
	message.WriteRequest(w, method, params, id)
	return w.Data()
}
