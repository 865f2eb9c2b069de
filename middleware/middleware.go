// Package middleware implements the "around" interceptor chain shared by
// both the server and the client dispatcher. Each middleware wraps an
// inner HandlerFunc and may delegate to it, short-circuit it, or inspect
// what it returns — the same shape whether the terminal handler invokes
// a local Go method (server side) or POSTs to a remote peer (client
// side).
package middleware

import (
	"context"
	"sync"
	"sync/atomic"
)

// Opts is the free-form side channel middleware use to coordinate with
// each other. The terminal dispatcher ignores it.
type Opts map[string]any

// HandlerFunc is the shape of both the terminal dispatcher and every
// middleware-wrapped handler: given an RPC name and its positional
// arguments, it returns the reply value or raises an error (a
// schema-declared exception or a taxonomy error).
type HandlerFunc func(ctx context.Context, rpcName string, args []any, opts Opts) (any, error)

// Middleware wraps an inner HandlerFunc to produce an outer one.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middlewares so the first one registered is outermost:
// Chain(A, B, C)(terminal) calls A, which calls B, which calls C, which
// calls terminal.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// Stack is a middleware list that is mutable only until it is built into
// a dispatch chain. Building seals it: a Use call afterward is a
// programming error, not a silently-ignored one, because a middleware
// registered after traffic has already started flowing would only ever
// see a fraction of requests.
type Stack struct {
	mu     sync.Mutex
	mws    []Middleware
	frozen atomic.Bool
}

// NewStack creates an empty middleware stack.
func NewStack() *Stack { return &Stack{} }

// Use appends mw to the stack. It panics if the stack has already been
// built.
func (s *Stack) Use(mw Middleware) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen.Load() {
		panic("middleware: Use called on a stack that has already been built")
	}
	s.mws = append(s.mws, mw)
}

// Build freezes the stack and wraps terminal with every registered
// middleware, outermost first. It is idempotent-safe to call once at
// startup; subsequent Use calls will panic.
func (s *Stack) Build(terminal HandlerFunc) HandlerFunc {
	s.mu.Lock()
	s.frozen.Store(true)
	mws := append([]Middleware(nil), s.mws...)
	s.mu.Unlock()
	return Chain(mws...)(terminal)
}

// Frozen reports whether the stack has been built.
func (s *Stack) Frozen() bool { return s.frozen.Load() }
