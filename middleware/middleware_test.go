package middleware

import (
	"context"
	"testing"
)

func recordingMiddleware(name string, trace *[]string) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, rpcName string, args []any, opts Opts) (any, error) {
			*trace = append(*trace, name+":before")
			reply, err := next(ctx, rpcName, args, opts)
			*trace = append(*trace, name+":after")
			return reply, err
		}
	}
}

func TestChainOrdersOutermostFirst(t *testing.T) {
	var trace []string
	terminal := func(ctx context.Context, rpcName string, args []any, opts Opts) (any, error) {
		trace = append(trace, "terminal")
		return nil, nil
	}
	handler := Chain(
		recordingMiddleware("A", &trace),
		recordingMiddleware("B", &trace),
	)(terminal)

	if _, err := handler(context.Background(), "do_operation", nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"A:before", "B:before", "terminal", "B:after", "A:after"}
	if len(trace) != len(want) {
		t.Fatalf("trace = %v, want %v", trace, want)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("trace = %v, want %v", trace, want)
		}
	}
}

func TestStackFreezesOnBuild(t *testing.T) {
	s := NewStack()
	s.Use(func(next HandlerFunc) HandlerFunc { return next })

	terminal := func(ctx context.Context, rpcName string, args []any, opts Opts) (any, error) {
		return "ok", nil
	}
	handler := s.Build(terminal)

	if _, err := handler(context.Background(), "x", nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.Frozen() {
		t.Fatal("stack should be frozen after Build")
	}

	defer func() {
		if recover() == nil {
			t.Fatal("Use after Build should panic")
		}
	}()
	s.Use(func(next HandlerFunc) HandlerFunc { return next })
}
