// Package message defines the shared data model for a THTP service: the
// struct-level description of an RPC's arguments and result envelope,
// built once from generated schema structs and consulted by both the
// codec and the server/client dispatch paths.
//
// A "generated" args or result struct is just an ordinary Go struct whose
// exported fields carry a `thtp:"<id>,<name>"` tag giving the Thrift field
// id and wire name — the same information a real Thrift compiler would
// bake into hand-written Read/Write methods. FieldSpec captures that
// metadata once via reflection so the codec package never has to special
// case a particular generated type.
package message

import (
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// FieldSpec describes one field of a generated struct: its Thrift field
// id, wire name, declared Go type, and the reflect.Index path used to
// reach it (supports only direct, non-embedded fields).
type FieldSpec struct {
	ID       int16
	Name     string
	Type     reflect.Type
	Index    []int
	Optional bool // true when Type is a pointer — at most one may be set
}

// StructSpec is the field table for one generated struct type, built once
// from its field tags and cached for the lifetime of the process.
type StructSpec struct {
	GoType reflect.Type
	Fields []FieldSpec

	byID map[int16]*FieldSpec
}

// FieldByID returns the field registered under the given Thrift field id.
func (s *StructSpec) FieldByID(id int16) (*FieldSpec, bool) {
	f, ok := s.byID[id]
	return f, ok
}

// HasSuccess reports whether this struct declares a field named "success" —
// the discriminator between a void result and a value-returning one.
func (s *StructSpec) HasSuccess() bool {
	for _, f := range s.Fields {
		if f.Name == "success" {
			return true
		}
	}
	return false
}

var specCache sync.Map // reflect.Type -> *StructSpec

// SpecOf returns the cached StructSpec for sample's type, building it on
// first use. sample may be a struct value, a struct pointer, or a
// reflect.Type.
func SpecOf(sample any) *StructSpec {
	var t reflect.Type
	if rt, ok := sample.(reflect.Type); ok {
		t = rt
	} else {
		t = reflect.TypeOf(sample)
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if cached, ok := specCache.Load(t); ok {
		return cached.(*StructSpec)
	}
	spec := buildSpec(t)
	actual, _ := specCache.LoadOrStore(t, spec)
	return actual.(*StructSpec)
}

func buildSpec(t reflect.Type) *StructSpec {
	spec := &StructSpec{GoType: t, byID: make(map[int16]*FieldSpec)}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" {
			continue // unexported
		}
		tag := sf.Tag.Get("thtp")
		if tag == "" || tag == "-" {
			continue
		}
		parts := strings.SplitN(tag, ",", 2)
		id, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 16)
		if err != nil {
			continue
		}
		name := sf.Name
		if len(parts) == 2 && strings.TrimSpace(parts[1]) != "" {
			name = strings.TrimSpace(parts[1])
		}
		spec.Fields = append(spec.Fields, FieldSpec{
			ID:       int16(id),
			Name:     name,
			Type:     sf.Type,
			Index:    append([]int(nil), sf.Index...),
			Optional: sf.Type.Kind() == reflect.Ptr,
		})
	}
	// Declared field-id order, not source order — matters for positional
	// argument mapping and for the declared-order scan on result decode.
	sort.Slice(spec.Fields, func(i, j int) bool { return spec.Fields[i].ID < spec.Fields[j].ID })
	for i := range spec.Fields {
		spec.byID[spec.Fields[i].ID] = &spec.Fields[i]
	}
	return spec
}

// RPCDescriptor describes one RPC declared on a service: its wire name and
// the field tables for its args and result envelopes.
type RPCDescriptor struct {
	Name       string
	ArgsSpec   *StructSpec
	ResultSpec *StructSpec
}

// NewRPCDescriptor builds an RPCDescriptor from zero-value samples of the
// generated args and result structs.
func NewRPCDescriptor(name string, argsSample, resultSample any) *RPCDescriptor {
	return &RPCDescriptor{
		Name:       name,
		ArgsSpec:   SpecOf(argsSample),
		ResultSpec: SpecOf(resultSample),
	}
}

// ServiceDescriptor identifies a logical RPC service by its canonical
// dotted-lowercase path and enumerates its RPCs in declaration order.
// Descriptors are built once at startup from generated schema code and are
// never mutated afterward.
type ServiceDescriptor struct {
	Path  string // e.g. "thtp.test.calculator_service"
	RPCs  map[string]*RPCDescriptor
	Order []string
}

// NewServiceDescriptor builds a ServiceDescriptor from its canonical path
// and an ordered list of RPCs.
func NewServiceDescriptor(path string, rpcs ...*RPCDescriptor) *ServiceDescriptor {
	sd := &ServiceDescriptor{Path: path, RPCs: make(map[string]*RPCDescriptor, len(rpcs))}
	for _, r := range rpcs {
		sd.RPCs[r.Name] = r
		sd.Order = append(sd.Order, r.Name)
	}
	return sd
}

// Lookup returns the descriptor for rpcName, if declared.
func (sd *ServiceDescriptor) Lookup(rpcName string) (*RPCDescriptor, bool) {
	r, ok := sd.RPCs[rpcName]
	return r, ok
}
