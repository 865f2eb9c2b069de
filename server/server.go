// Package server implements the THTP server handler: an http.Handler
// that routes a POST body carrying a Thrift-encoded args struct to a
// registered RPC handler, and writes back either a REPLY (status 200)
// or an EXCEPTION (status 500), publishing exactly one lifecycle event
// per request along the way.
//
// Request processing pipeline:
//
//	ServeHTTP → protocol select → route match → C2 decode args
//	  → middleware chain → RPCHandler.Handle → C2 encode reply/error
//	  → pubsub publish → HTTP response
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"regexp"
	"sync"
	"time"

	"go.uber.org/zap"

	"thtp/codec"
	"thtp/message"
	"thtp/middleware"
	"thtp/protocol"
	"thtp/pubsub"
	"thtp/thtperrors"
)

// Server is an http.Handler implementing one THTP service.
type Server struct {
	desc     *message.ServiceDescriptor
	routeRe  *regexp.Regexp
	handlers []RPCHandler
	mws      *middleware.Stack
	bus      *pubsub.Bus
	fallback http.Handler
	logger   *zap.Logger

	once  sync.Once
	chain middleware.HandlerFunc
}

// Option configures a Server at construction time.
type Option func(*Server)

// WithFallback sets the http.Handler that non-THTP routes (any path not
// of the form /<service path>/<rpc name>, with an optional trailing
// slash) are delegated to. Without one,
// unmatched routes get a BadRequestError exception response.
func WithFallback(h http.Handler) Option {
	return func(s *Server) { s.fallback = h }
}

// WithLogger overrides the server's zap logger. The default is a no-op
// logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// New builds a Server for desc. Handlers, middleware, and subscribers
// are registered afterward via RegisterHandler, Use, and Subscribe,
// before the first request is served.
func New(desc *message.ServiceDescriptor, opts ...Option) *Server {
	s := &Server{
		desc:    desc,
		routeRe: regexp.MustCompile(`^/` + regexp.QuoteMeta(desc.Path) + `/([A-Za-z_][A-Za-z0-9_.]*)/?$`),
		mws:     middleware.NewStack(),
		bus:     pubsub.New(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterHandler adds h to the ordered list of handler objects
// consulted for each RPC. The first one whose CanHandle reports true
// handles the request.
func (s *Server) RegisterHandler(h RPCHandler) {
	s.handlers = append(s.handlers, h)
}

// Use registers a middleware. Panics if called after the first request
// has reached the middleware chain (requests rejected before their args
// are decoded do not build the chain).
func (s *Server) Use(mw middleware.Middleware) {
	s.mws.Use(mw)
}

// Subscribe adds a lifecycle-event subscriber. Has no effect once the
// first event has already been published.
func (s *Server) Subscribe(sub any) {
	s.bus.Subscribe(sub)
}

const healthOK = "Everything is OK"

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.Method == http.MethodGet && (r.URL.Path == "/health" || r.URL.Path == "/health/") {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(healthOK))
		return
	}

	reqProto, ok := protocol.ForContentType(r.Header.Get("Content-Type"))
	if !ok {
		reqProto = protocol.Default
	}

	m := s.routeRe.FindStringSubmatch(r.URL.Path)
	if m == nil {
		if s.fallback != nil {
			s.fallback.ServeHTTP(w, r)
			return
		}
		s.finish(w, r, start, reqProto, "", nil,
			thtperrors.BadRequestError(fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path)))
		return
	}
	rpcName := m[1]

	if r.Method != http.MethodPost {
		s.finish(w, r, start, reqProto, rpcName, nil,
			thtperrors.BadRequestError(fmt.Sprintf("method %s not allowed", r.Method)))
		return
	}

	rpc, ok := s.desc.Lookup(rpcName)
	if !ok {
		s.finish(w, r, start, reqProto, rpcName, nil, thtperrors.UnknownRpcError(rpcName))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.finish(w, r, start, reqProto, rpcName, nil, thtperrors.BadRequestError(err.Error()))
		return
	}

	args, err := codec.DeserializeArgs(r.Context(), reqProto, rpc, body)
	if err != nil {
		s.finish(w, r, start, reqProto, rpcName, nil, err)
		return
	}

	reply, err := s.dispatch(r, rpcName, args)
	if err != nil {
		s.finish(w, r, start, reqProto, rpcName, args, err)
		return
	}
	s.finishReply(w, r, start, reqProto, rpcName, args, rpc, reply)
}

func (s *Server) dispatch(r *http.Request, rpcName string, args []any) (reply any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in handler for %q: %v", rpcName, rec)
		}
	}()
	invoke := s.chainHandler()
	return invoke(r.Context(), rpcName, args, middleware.Opts{})
}

func (s *Server) chainHandler() middleware.HandlerFunc {
	s.once.Do(func() {
		s.chain = s.mws.Build(s.terminal)
	})
	return s.chain
}

func (s *Server) terminal(ctx context.Context, rpcName string, args []any, _ middleware.Opts) (any, error) {
	for _, h := range s.handlers {
		if h.CanHandle(rpcName) {
			return h.Handle(ctx, rpcName, args)
		}
	}
	return nil, thtperrors.UnknownRpcError(rpcName)
}

// finishReply encodes a non-error handler result. A nil reply is a void
// return; a reply whose type matches no declared result field is itself
// a codec failure, handled through the same error path as any other.
func (s *Server) finishReply(w http.ResponseWriter, r *http.Request, start time.Time, proto protocol.Protocol, rpcName string, args []any, rpc *message.RPCDescriptor, reply any) {
	body, err := codec.SerializeReply(r.Context(), proto, rpc, reply)
	if err != nil {
		s.finish(w, r, start, proto, rpcName, args, err)
		return
	}
	w.Header().Set("Content-Type", protocol.ContentTypeFor(proto))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
	s.publish(r, start, pubsub.RPCSuccess, rpcName, args, reply)
}

// finish handles every error outcome: a schema-declared exception
// routed back into a 200 REPLY, or a taxonomy/runtime error serialised
// as a 500 EXCEPTION. Exactly one event is published either way.
func (s *Server) finish(w http.ResponseWriter, r *http.Request, start time.Time, proto protocol.Protocol, rpcName string, args []any, err error) {
	if taxErr, ok := err.(*thtperrors.Error); ok {
		s.respondException(w, r, start, proto, rpcName, args, taxErr)
		return
	}

	if rpc, ok := s.desc.Lookup(rpcName); ok {
		if body, serr := codec.SerializeReply(r.Context(), proto, rpc, err); serr == nil {
			w.Header().Set("Content-Type", protocol.ContentTypeFor(proto))
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(body)
			s.publish(r, start, pubsub.RPCException, rpcName, args, err)
			return
		}
	}

	wrapped := thtperrors.InternalError(classNameOf(err), err)
	s.respondException(w, r, start, proto, rpcName, args, wrapped)
}

func (s *Server) respondException(w http.ResponseWriter, r *http.Request, start time.Time, proto protocol.Protocol, rpcName string, args []any, taxErr *thtperrors.Error) {
	eventName := pubsub.RPCError
	if taxErr.Kind == thtperrors.Internal {
		eventName = pubsub.InternalErr
	}

	typeCode, ok := taxErr.Kind.TypeCode()
	if !ok {
		typeCode = 0 // UNKNOWN
	}
	body, encErr := codec.EncodeApplicationException(r.Context(), proto, taxErr.Message, typeCode)
	if encErr != nil {
		s.logger.Error("failed to encode application exception", zap.Error(encErr))
		http.Error(w, taxErr.Error(), http.StatusInternalServerError)
		s.publish(r, start, eventName, rpcName, args, taxErr)
		return
	}
	w.Header().Set("Content-Type", protocol.ContentTypeFor(proto))
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write(body)
	s.publish(r, start, eventName, rpcName, args, taxErr)
}

func (s *Server) publish(r *http.Request, start time.Time, name pubsub.EventName, rpcName string, args []any, result any) {
	s.bus.Publish(r.Context(), pubsub.Event{
		Name:      name,
		Request:   r,
		RPCName:   rpcName,
		Args:      args,
		Result:    result,
		ElapsedMS: float64(time.Since(start)) / float64(time.Millisecond),
	})
}

func classNameOf(err error) string {
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil {
		return "error"
	}
	if name := t.Name(); name != "" {
		return name
	}
	return t.String()
}
