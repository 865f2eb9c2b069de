package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"thtp/thtperrors"
)

func testPool(size int, timeout time.Duration) *Pool {
	return New(Config{
		Scheme:      "http",
		Host:        "127.0.0.1",
		Port:        9999,
		OpenTimeout: 50 * time.Millisecond,
		RPCTimeout:  50 * time.Millisecond,
		KeepAlive:   time.Second,
		PoolSize:    size,
		PoolTimeout: timeout,
	})
}

func TestCheckoutBoundsConcurrency(t *testing.T) {
	p := testPool(1, 50*time.Millisecond)

	_, release, err := p.Checkout(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, _, err = p.Checkout(context.Background())
	if err == nil {
		t.Fatal("expected second checkout to time out while slot is held")
	}
	var taxErr *thtperrors.Error
	if !errors.As(err, &taxErr) || taxErr.Kind != thtperrors.ServerUnreachable {
		t.Fatalf("expected ServerUnreachableError, got %v", err)
	}

	release(true)

	_, release2, err := p.Checkout(context.Background())
	if err != nil {
		t.Fatalf("expected checkout to succeed after release: %v", err)
	}
	release2(true)
}

func TestCheckoutRespectsContextCancellation(t *testing.T) {
	p := testPool(1, time.Second)
	_, release, err := p.Checkout(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer release(true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err = p.Checkout(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestReleaseUnreusableFreesSlot(t *testing.T) {
	p := testPool(2, 50*time.Millisecond)
	_, release, err := p.Checkout(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	release(false)

	_, release2, err := p.Checkout(context.Background())
	if err != nil {
		t.Fatalf("unexpected error after unreusable release: %v", err)
	}
	release2(true)
}

func TestBaseURL(t *testing.T) {
	p := testPool(1, time.Second)
	if got, want := p.BaseURL(), "http://127.0.0.1:9999"; got != want {
		t.Fatalf("BaseURL() = %q, want %q", got, want)
	}
}
