// Package test exercises the full client/server round trip described in
// the end-to-end scenarios: a real HTTP listener, a real client
// dispatcher, and the generated-style CalculatorService fixture in
// internal/calculator.
package test

import (
	"context"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"thtp/client"
	"thtp/internal/calculator"
	"thtp/middleware"
	"thtp/protocol"
	"thtp/pubsub"
	"thtp/server"
	"thtp/thtperrors"
	"thtp/transport"

	"github.com/apache/thrift/lib/go/thrift"
)

type recordedEvent struct {
	name pubsub.EventName
	ev   pubsub.Event
}

type recorder struct {
	events []recordedEvent
}

func (r *recorder) OnRPCSuccess(ev pubsub.Event)    { r.events = append(r.events, recordedEvent{pubsub.RPCSuccess, ev}) }
func (r *recorder) OnRPCException(ev pubsub.Event)  { r.events = append(r.events, recordedEvent{pubsub.RPCException, ev}) }
func (r *recorder) OnRPCError(ev pubsub.Event)      { r.events = append(r.events, recordedEvent{pubsub.RPCError, ev}) }
func (r *recorder) OnInternalError(ev pubsub.Event) { r.events = append(r.events, recordedEvent{pubsub.InternalErr, ev}) }

func newTestServer(t *testing.T, rec *recorder) (*server.Server, *httptest.Server) {
	t.Helper()
	desc := calculator.NewServiceDescriptor()
	svr := server.New(desc)
	svr.RegisterHandler(server.NewServiceHandler(desc, calculator.Handler{}))
	if rec != nil {
		svr.Subscribe(rec)
	}
	ts := httptest.NewServer(svr)
	t.Cleanup(ts.Close)
	return svr, ts
}

func newTestClient(t *testing.T, ts *httptest.Server, rpcTimeout time.Duration) *client.Client {
	t.Helper()
	u, err := url.Parse(ts.URL)
	if err != nil {
		t.Fatalf("parse test server url: %v", err)
	}
	host, portStr, err := splitHostPort(u.Host)
	if err != nil {
		t.Fatalf("split host/port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	pool := transport.New(transport.Config{
		Scheme:      "http",
		Host:        host,
		Port:        port,
		OpenTimeout: time.Second,
		RPCTimeout:  rpcTimeout,
		KeepAlive:   time.Minute,
		PoolSize:    4,
		PoolTimeout: time.Second,
	})
	desc := calculator.NewServiceDescriptor()
	return client.New(desc, pool, client.WithProtocol(protocol.Compact))
}

func splitHostPort(hostport string) (string, string, error) {
	i := strings.LastIndexByte(hostport, ':')
	if i < 0 {
		return hostport, "", nil
	}
	return hostport[:i], hostport[i+1:], nil
}

func TestSuccessCompact(t *testing.T) {
	rec := &recorder{}
	_, ts := newTestServer(t, rec)
	c := newTestClient(t, ts, time.Second)

	reply, err := c.Call(context.Background(), "do_operation", calculator.ADD, int32(2), int32(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, ok := reply.(int32)
	if !ok || got != 5 {
		t.Fatalf("reply = %#v, want int32(5)", reply)
	}

	if len(rec.events) != 1 || rec.events[0].name != pubsub.RPCSuccess {
		t.Fatalf("events = %#v, want exactly one rpc_success", rec.events)
	}
	if rec.events[0].ev.ElapsedMS < 0 {
		t.Fatalf("elapsed ms should be non-negative, got %v", rec.events[0].ev.ElapsedMS)
	}
}

func TestSchemaException(t *testing.T) {
	rec := &recorder{}
	_, ts := newTestServer(t, rec)
	c := newTestClient(t, ts, time.Second)

	_, err := c.Call(context.Background(), "do_operation", calculator.DIVIDE, int32(1), int32(0))
	if err == nil {
		t.Fatal("expected a DivideByZero error")
	}
	dvz, ok := err.(*calculator.DivideByZero)
	if !ok {
		t.Fatalf("error = %#v (%T), want *calculator.DivideByZero", err, err)
	}
	if dvz.ErrorString != "nope" {
		t.Fatalf("ErrorString = %q, want %q", dvz.ErrorString, "nope")
	}

	if len(rec.events) != 1 || rec.events[0].name != pubsub.RPCException {
		t.Fatalf("events = %#v, want exactly one rpc_exception", rec.events)
	}
}

func TestUnknownRPC(t *testing.T) {
	rec := &recorder{}
	svr, ts := newTestServer(t, rec)
	_ = svr

	resp := postRaw(t, ts.URL+"/thtp.test.calculator_service/ponder")
	if resp.StatusCode != 500 {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}

	if len(rec.events) != 1 || rec.events[0].name != pubsub.RPCError {
		t.Fatalf("events = %#v, want exactly one rpc_error", rec.events)
	}
}

func TestBadRequestWrongVerb(t *testing.T) {
	rec := &recorder{}
	_, ts := newTestServer(t, rec)

	resp := getRaw(t, ts.URL+"/thtp.test.calculator_service/do_operation")
	if resp.StatusCode != 500 {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}

	if len(rec.events) != 1 || rec.events[0].name != pubsub.RPCError {
		t.Fatalf("events = %#v, want exactly one rpc_error", rec.events)
	}
}

func TestInternalErrorScenario(t *testing.T) {
	rec := &recorder{}
	_, ts := newTestServer(t, rec)
	c := newTestClient(t, ts, time.Second)

	_, err := c.Call(context.Background(), "test_internal_error")
	if err == nil {
		t.Fatal("expected an error")
	}
	appExc, ok := err.(thrift.TApplicationException)
	if !ok {
		t.Fatalf("error = %#v (%T), want thrift.TApplicationException", err, err)
	}
	if appExc.TypeId() != thrift.INTERNAL_ERROR {
		t.Fatalf("type = %d, want INTERNAL_ERROR", appExc.TypeId())
	}
	if !strings.Contains(appExc.Error(), "kaboom") {
		t.Fatalf("message %q does not mention the original error", appExc.Error())
	}

	if len(rec.events) != 1 || rec.events[0].name != pubsub.InternalErr {
		t.Fatalf("events = %#v, want exactly one internal_error", rec.events)
	}
}

func TestClientTimeoutDoesNotReturnConnectionToPool(t *testing.T) {
	desc := calculator.NewServiceDescriptor()
	svr := server.New(desc)
	svr.RegisterHandler(slowHandler{})
	ts := httptest.NewServer(svr)
	defer ts.Close()

	u, _ := url.Parse(ts.URL)
	host, portStr, _ := splitHostPort(u.Host)
	port, _ := strconv.Atoi(portStr)
	pool := transport.New(transport.Config{
		Scheme:      "http",
		Host:        host,
		Port:        port,
		OpenTimeout: time.Second,
		RPCTimeout:  10 * time.Millisecond,
		KeepAlive:   time.Minute,
		PoolSize:    1,
		PoolTimeout: time.Second,
	})
	c := client.New(desc, pool, client.WithProtocol(protocol.Compact))
	c.Use(middleware.TimeoutMiddleware(10 * time.Millisecond))

	_, err := c.Call(context.Background(), "test_internal_error")
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	var taxErr *thtperrors.Error
	if !isTimeoutErr(err, &taxErr) {
		t.Fatalf("error = %v, want RpcTimeoutError", err)
	}
}

func isTimeoutErr(err error, out **thtperrors.Error) bool {
	if e, ok := err.(*thtperrors.Error); ok {
		*out = e
		return e.Kind == thtperrors.RPCTimeout
	}
	return false
}

// slowHandler sleeps well past any reasonable client timeout before
// replying, to exercise the client's receive-timeout path.
type slowHandler struct{}

func (slowHandler) CanHandle(rpcName string) bool { return rpcName == "test_internal_error" }

func (slowHandler) Handle(ctx context.Context, rpcName string, args []any) (any, error) {
	time.Sleep(time.Second)
	return nil, nil
}
