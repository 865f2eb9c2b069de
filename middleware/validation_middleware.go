package middleware

import (
	"context"

	"thtp/thtperrors"
)

// validatable is implemented by generated structs that carry a schema
// validate() method.
type validatable interface{ Validate() error }

// ValidationMiddleware runs schema validate() on both the inbound args
// and the outbound reply, resolving the open question of which
// direction(s) validation covers: both. kind selects which taxonomy
// error a failure is reported as — ServerValidation on the server,
// ClientValidation on the client — since the two sides have distinct
// wire consequences for the same underlying check.
func ValidationMiddleware(kind thtperrors.Kind) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, rpcName string, args []any, opts Opts) (any, error) {
			for _, a := range args {
				if v, ok := a.(validatable); ok {
					if err := v.Validate(); err != nil {
						return nil, thtperrors.Wrap(kind, err)
					}
				}
			}
			reply, err := next(ctx, rpcName, args, opts)
			if err != nil {
				return reply, err
			}
			if v, ok := reply.(validatable); ok {
				if verr := v.Validate(); verr != nil {
					return nil, thtperrors.Wrap(kind, verr)
				}
			}
			return reply, nil
		}
	}
}
