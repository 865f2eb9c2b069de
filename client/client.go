// Package client implements the THTP client dispatcher: a per-service
// Call entry point that serialises arguments, checks out a pooled
// keep-alive HTTP connection, POSTs to the target RPC, and interprets
// the response status code back into a reply, a schema-declared
// exception, or a taxonomy error.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/apache/thrift/lib/go/thrift"

	"thtp/codec"
	"thtp/message"
	"thtp/middleware"
	"thtp/protocol"
	"thtp/thtperrors"
	"thtp/transport"
)

const userAgent = "thtp-go-client"

// Client is a dispatcher for every RPC declared on one service
// descriptor. A single Client is safe for concurrent use; the
// underlying connection pool is the serialisation point.
type Client struct {
	desc  *message.ServiceDescriptor
	pool  *transport.Pool
	proto protocol.Protocol
	mws   *middleware.Stack

	once  sync.Once
	chain middleware.HandlerFunc
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithProtocol overrides the client's default wire protocol (Compact).
func WithProtocol(p protocol.Protocol) Option {
	return func(c *Client) { c.proto = p }
}

// New builds a Client for desc, dispatching calls through pool.
func New(desc *message.ServiceDescriptor, pool *transport.Pool, opts ...Option) *Client {
	c := &Client{
		desc:  desc,
		pool:  pool,
		proto: protocol.Default,
		mws:   middleware.NewStack(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Use registers a middleware run around every Call. Panics if called
// after the first Call.
func (c *Client) Use(mw middleware.Middleware) {
	c.mws.Use(mw)
}

// Call invokes the named RPC with positional arguments in the order the
// service descriptor declares them. It returns the reply value, raises
// a schema-declared exception (as the returned error), or raises a
// taxonomy error describing a transport, protocol, or validation
// failure.
func (c *Client) Call(ctx context.Context, rpcName string, args ...any) (any, error) {
	invoke := c.chainHandler()
	return invoke(ctx, rpcName, args, middleware.Opts{})
}

func (c *Client) chainHandler() middleware.HandlerFunc {
	c.once.Do(func() {
		c.chain = c.mws.Build(c.dispatch)
	})
	return c.chain
}

func (c *Client) dispatch(ctx context.Context, rpcName string, args []any, _ middleware.Opts) (any, error) {
	rpc, ok := c.desc.Lookup(rpcName)
	if !ok {
		return nil, thtperrors.UnknownRpcError(rpcName)
	}

	body, err := codec.SerializeArgs(ctx, c.proto, rpc, args)
	if err != nil {
		return nil, err
	}

	httpClient, release, err := c.pool.Checkout(ctx)
	if err != nil {
		return nil, err
	}
	reusable := true
	defer func() { release(reusable) }()

	url := fmt.Sprintf("%s/%s/%s", c.pool.BaseURL(), c.desc.Path, rpcName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, thtperrors.BadRequestError(err.Error())
	}
	req.Header.Set("Content-Type", protocol.ContentTypeFor(c.proto))
	req.Header.Set("User-Agent", userAgent)

	resp, err := httpClient.Do(req)
	if err != nil {
		reusable = false
		return nil, classifyTransportError(err, rpcName)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		reusable = false
		return nil, classifyTransportError(err, rpcName)
	}

	respProto, ok := protocol.ForContentType(resp.Header.Get("Content-Type"))
	if !ok {
		respProto = c.proto
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return codec.DeserializeReply(ctx, respProto, rpc, respBody)
	case http.StatusInternalServerError:
		msg, typeID, derr := codec.DecodeApplicationException(ctx, respProto, respBody)
		if derr != nil {
			return nil, thtperrors.BadResponseError(derr.Error())
		}
		return nil, thrift.NewTApplicationException(typeID, msg)
	default:
		return nil, thtperrors.UnknownMessageTypeError(resp.StatusCode)
	}
}

// classifyTransportError maps a failed HTTP round trip onto the
// client-side taxonomy: a timed-out dial or response read is
// RpcTimeoutError; anything else reaching the network layer (refused,
// reset, unresolvable) is ServerUnreachableError.
func classifyTransportError(err error, rpcName string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return thtperrors.RpcTimeoutError(rpcName)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return thtperrors.RpcTimeoutError(rpcName)
	}
	return thtperrors.ServerUnreachableError(err)
}
