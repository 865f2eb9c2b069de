package server

import (
	"context"
	"reflect"
	"strings"
	"unicode"

	"thtp/message"
	"thtp/thtperrors"
)

// RPCHandler is a registered handler object. When more than one is
// registered on a Server, the first one whose CanHandle reports true
// for a given RPC name handles it.
type RPCHandler interface {
	CanHandle(rpcName string) bool
	Handle(ctx context.Context, rpcName string, args []any) (any, error)
}

// ServiceHandler adapts a plain Go receiver into an RPCHandler by
// reflecting over its exported methods, the same way the generated
// dispatch table in the design notes is built: once at construction,
// not per-call. An RPC named "do_operation" in the service descriptor
// is matched against a method named "DoOperation" on the receiver, with
// signature (context.Context, <args...>) (T, error) for a value-
// returning RPC or (context.Context, <args...>) error for a void one.
type ServiceHandler struct {
	desc    *message.ServiceDescriptor
	methods map[string]reflect.Value
}

// NewServiceHandler scans receiver for methods matching the RPCs
// declared on desc. RPCs with no matching method are simply not
// handled by this ServiceHandler — useful when several handler objects
// split a service between them.
func NewServiceHandler(desc *message.ServiceDescriptor, receiver any) *ServiceHandler {
	rv := reflect.ValueOf(receiver)
	sh := &ServiceHandler{desc: desc, methods: make(map[string]reflect.Value)}
	for _, name := range desc.Order {
		m := rv.MethodByName(pascalCase(name))
		if m.IsValid() {
			sh.methods[name] = m
		}
	}
	return sh
}

func (sh *ServiceHandler) CanHandle(rpcName string) bool {
	_, ok := sh.methods[rpcName]
	return ok
}

// Handle invokes the bound method for rpcName via reflection. args must
// already be in the RPC's declared field-id order (as produced by
// codec.DeserializeArgs); ctx is passed as the method's first
// parameter.
func (sh *ServiceHandler) Handle(ctx context.Context, rpcName string, args []any) (any, error) {
	m, ok := sh.methods[rpcName]
	if !ok {
		return nil, thtperrors.UnknownRpcError(rpcName)
	}
	rpc, _ := sh.desc.Lookup(rpcName)

	in := make([]reflect.Value, 0, len(args)+1)
	in = append(in, reflect.ValueOf(ctx))
	for _, a := range args {
		in = append(in, reflect.ValueOf(a))
	}
	out := m.Call(in)

	errVal := out[len(out)-1]
	var callErr error
	if !errVal.IsNil() {
		callErr = errVal.Interface().(error)
	}
	if rpc.ResultSpec.HasSuccess() && len(out) == 2 {
		if callErr != nil {
			return nil, callErr
		}
		return out[0].Interface(), nil
	}
	return nil, callErr
}

// pascalCase converts a Thrift-style snake_case RPC name ("do_operation")
// to the Go exported method name a generated handler interface would use
// ("DoOperation").
func pascalCase(name string) string {
	parts := strings.Split(name, "_")
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		r := []rune(p)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}
