package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"lean-rpc/fault"
	"lean-rpc/message"
)

// RecoverMiddleware turns a panicking handler into an internal-error
// response for the same id.
func RecoverMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req message.Request) (resp message.Response) {
			defer func() {
				if r := recover(); r != nil {
					logger.ErrorContext(ctx, "rpc handler panicked",
						slog.String("method", req.Method()),
						slog.Any("panic", r),
						slog.String("stack", string(debug.Stack())))
					resp = message.FromError(fault.NewInternalError(fmt.Sprint(r)), req.ID().Value())
				}
			}()
			return next(ctx, req)
		}
	}
}
