package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"thtp/thtperrors"
)

// RateLimitMiddleware rejects calls once the token bucket bounded by r
// (events/sec) and burst is exhausted. It is typically installed on the
// server side, ahead of the handler.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, rpcName string, args []any, opts Opts) (any, error) {
			if !limiter.Allow() {
				return nil, thtperrors.New(thtperrors.Internal, "rate limit exceeded")
			}
			return next(ctx, rpcName, args, opts)
		}
	}
}
