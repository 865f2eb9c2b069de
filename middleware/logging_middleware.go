package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// LoggingMiddleware logs every RPC's name, duration, and outcome through
// the given structured logger.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, rpcName string, args []any, opts Opts) (any, error) {
			start := time.Now()
			reply, err := next(ctx, rpcName, args, opts)
			duration := time.Since(start)
			if err != nil {
				logger.Info("rpc completed with error",
					zap.String("rpc", rpcName),
					zap.Duration("duration", duration),
					zap.Error(err))
			} else {
				logger.Info("rpc completed",
					zap.String("rpc", rpcName),
					zap.Duration("duration", duration))
			}
			return reply, err
		}
	}
}
