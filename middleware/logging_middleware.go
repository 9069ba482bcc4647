package middleware

import (
	"context"
	"log/slog"
	"time"

	"lean-rpc/message"
)

// LoggingMiddleware logs every call with its duration. Calls that end in a
// fault are logged at warn level with the fault code and message.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req message.Request) message.Response {
			start := time.Now()
			resp := next(ctx, req)
			duration := time.Since(start)

			attrs := []any{
				slog.String("method", req.Method()),
				slog.String("id", req.ID().String()),
				slog.Duration("duration", duration),
			}
			if resp.IsFault() {
				code, msg := resp.Fault()
				logger.WarnContext(ctx, "rpc call failed", append(attrs, slog.Int("code", code), slog.String("error", msg))...)
				return resp
			}
			logger.DebugContext(ctx, "rpc call", attrs...)
			return resp
		}
	}
}
