// Package middleware wraps method dispatch in an onion of cross-cutting
// handlers.
//
//	Chain(A, B, C)(h) == A(B(C(h)))
//
// Execution order: A.before → B.before → C.before → h → C.after → B.after → A.after
package middleware

import (
	"context"

	"lean-rpc/message"
)

// HandlerFunc answers one decoded request. It is called for notifications
// too; the caller discards their responses.
type HandlerFunc func(ctx context.Context, req message.Request) message.Response

type Middleware func(next HandlerFunc) HandlerFunc

// Chain 将多个中间件组合成一个中间件
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
