package middleware

import (
	"context"
	"time"

	"thtp/thtperrors"
)

// TimeoutMiddleware bounds a single RPC's handling time. On expiry it
// raises RpcTimeoutError rather than waiting for the (possibly still
// running) inner handler.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, rpcName string, args []any, opts Opts) (any, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			type result struct {
				reply any
				err   error
			}
			done := make(chan result, 1)
			go func() {
				reply, err := next(ctx, rpcName, args, opts)
				done <- result{reply, err}
			}()

			select {
			case r := <-done:
				return r.reply, r.err
			case <-ctx.Done():
				return nil, thtperrors.RpcTimeoutError(rpcName)
			}
		}
	}
}
