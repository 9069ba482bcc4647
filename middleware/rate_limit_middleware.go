package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"lean-rpc/fault"
	"lean-rpc/message"
)

// ErrRateLimited is the fault returned for calls over the limit. Its code
// lies in the server-error range.
var ErrRateLimited = fault.NewServerError(fault.ServerErrorCodeMax, "rate limit exceeded")

// RateLimitMiddleware 创建一个基于令牌桶算法的限流中间件
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req message.Request) message.Response {
			if !limiter.Allow() {
				return message.FromError(ErrRateLimited, req.ID().Value())
			}
			return next(ctx, req)
		}
	}
}
