// Package transport implements the client-side connection pool: a
// bounded number of concurrent in-flight HTTP calls against one base
// URL, backed by a single keep-alive http.Client.
//
// Unlike the TCP case, Go's net/http.Transport already pools and reuses
// the underlying TCP/TLS connections internally — reimplementing that
// would just be a worse version of the standard library. What the pool
// adds on top is the piece net/http doesn't give you: a bounded
// checkout/release gate, with its own timeout, so a burst of concurrent
// calls queues instead of opening unbounded connections. The buffered
// channel used as a FIFO semaphore is the same structure a literal
// object pool would use; here the "object" passed around is a
// permission slip rather than a *http.Client.
package transport

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"strconv"
	"time"

	"thtp/thtperrors"
)

// Config configures the pool's target endpoint and timeouts.
type Config struct {
	Scheme string // "http" or "https"
	Host   string
	Port   int

	OpenTimeout time.Duration // connect timeout
	RPCTimeout  time.Duration // per-call receive timeout
	KeepAlive   time.Duration // idle connection lifetime
	PoolSize    int           // max concurrent in-flight calls
	PoolTimeout time.Duration // checkout timeout
}

// BaseURL returns the pool's scheme://host:port prefix, with no trailing
// slash.
func (c Config) BaseURL() string {
	scheme := c.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return scheme + "://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Pool is a fixed-capacity gate around a single shared keep-alive HTTP
// client bound to one base URL.
type Pool struct {
	baseURL string
	client  *http.Client
	tokens  chan struct{}
	timeout time.Duration
}

// New builds a Pool from cfg. The returned pool owns its own
// http.Transport, configured for the requested connect timeout, pool
// size, and keep-alive lifetime; response bodies are transparently
// gzip-decoded, and TLS verification uses the host OS's default trust
// store.
func New(cfg Config) *Pool {
	dialer := &net.Dialer{Timeout: cfg.OpenTimeout}
	rt := &http.Transport{
		DialContext:         dialer.DialContext,
		MaxIdleConns:        cfg.PoolSize,
		MaxIdleConnsPerHost: cfg.PoolSize,
		MaxConnsPerHost:     cfg.PoolSize,
		IdleConnTimeout:     cfg.KeepAlive,
		TLSClientConfig:     &tls.Config{},
		DisableCompression:  false,
	}
	return &Pool{
		baseURL: cfg.BaseURL(),
		client:  &http.Client{Transport: rt, Timeout: cfg.RPCTimeout},
		tokens:  make(chan struct{}, cfg.PoolSize),
		timeout: cfg.PoolTimeout,
	}
}

// BaseURL returns the pool's target scheme://host:port prefix.
func (p *Pool) BaseURL() string { return p.baseURL }

// Checkout blocks up to the pool's configured timeout for a free slot.
// release must be called exactly once on every exit path; pass false
// when the call failed in a way that leaves the connection in a bad
// state (a timeout), so the pool drops its idle connections rather than
// handing a half-read stream to the next caller.
func (p *Pool) Checkout(ctx context.Context) (client *http.Client, release func(reusable bool), err error) {
	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case p.tokens <- struct{}{}:
		return p.client, func(reusable bool) {
			if !reusable {
				p.client.CloseIdleConnections()
			}
			<-p.tokens
		}, nil
	case <-timer.C:
		return nil, nil, thtperrors.ServerUnreachableError(context.DeadlineExceeded)
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

// Close releases the pool's idle connections.
func (p *Pool) Close() {
	p.client.CloseIdleConnections()
}
