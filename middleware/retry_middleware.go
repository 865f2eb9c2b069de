package middleware

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"thtp/thtperrors"
)

// RetryMiddleware is a client-side middleware: it retries an RPC that
// failed with a transport-level error (ServerUnreachableError or
// RpcTimeoutError), using exponential backoff. Schema-declared
// exceptions and any other taxonomy error are returned immediately —
// retrying a DivideByZero won't make the division succeed.
func RetryMiddleware(logger *zap.Logger, maxRetries int, baseDelay time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, rpcName string, args []any, opts Opts) (any, error) {
			reply, err := next(ctx, rpcName, args, opts)
			for attempt := 0; attempt < maxRetries && isRetryable(err); attempt++ {
				logger.Warn("retrying rpc",
					zap.String("rpc", rpcName),
					zap.Int("attempt", attempt+1),
					zap.Error(err))
				select {
				case <-time.After(baseDelay * time.Duration(1<<attempt)):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
				reply, err = next(ctx, rpcName, args, opts)
			}
			return reply, err
		}
	}
}

func isRetryable(err error) bool {
	var taxErr *thtperrors.Error
	if !errors.As(err, &taxErr) {
		return false
	}
	return taxErr.Kind == thtperrors.ServerUnreachable || taxErr.Kind == thtperrors.RPCTimeout
}
