// Package codec implements the RPC envelope codec: it bridges the
// schema-generated `<RPC>_args` / `<RPC>_result` wrapper structs
// (described by a message.StructSpec) to native Go argument lists and
// return values, using reflection over field tags instead of the
// per-type Read/Write methods a Thrift compiler would normally emit.
//
// The generic struct marshaler walks a StructSpec's FieldSpec table and
// drives the real apache/thrift TProtocol primitives directly, so the
// bytes on the wire are indistinguishable from what generated code would
// produce for an equivalent schema.
package codec

import (
	"context"
	"fmt"
	"reflect"

	"github.com/apache/thrift/lib/go/thrift"

	"thtp/message"
)

// ttypeOf maps a Go reflect.Type onto the Thrift wire type used to
// describe it in a field header.
func ttypeOf(t reflect.Type) thrift.TType {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch {
	case t == reflect.TypeOf([]byte(nil)):
		return thrift.STRING
	case t.Kind() == reflect.Bool:
		return thrift.BOOL
	case t.Kind() == reflect.Int8, t.Kind() == reflect.Uint8:
		return thrift.BYTE
	case t.Kind() == reflect.Int16:
		return thrift.I16
	case t.Kind() == reflect.Int32:
		return thrift.I32
	case t.Kind() == reflect.Int64, t.Kind() == reflect.Int:
		return thrift.I64
	case t.Kind() == reflect.Float64, t.Kind() == reflect.Float32:
		return thrift.DOUBLE
	case t.Kind() == reflect.String:
		return thrift.STRING
	case t.Kind() == reflect.Slice:
		return thrift.LIST
	case t.Kind() == reflect.Map:
		return thrift.MAP
	case t.Kind() == reflect.Struct:
		return thrift.STRUCT
	default:
		return thrift.STOP
	}
}

// marshalStruct writes rv (a value of spec.GoType) as a Thrift struct,
// skipping optional fields left at their nil zero value.
func marshalStruct(ctx context.Context, oprot thrift.TProtocol, spec *message.StructSpec, rv reflect.Value) error {
	if err := oprot.WriteStructBegin(ctx, spec.GoType.Name()); err != nil {
		return err
	}
	for _, f := range spec.Fields {
		fv := rv.FieldByIndex(f.Index)
		if f.Optional && fv.IsNil() {
			continue
		}
		if err := oprot.WriteFieldBegin(ctx, f.Name, ttypeOf(f.Type), f.ID); err != nil {
			return err
		}
		if err := writeValue(ctx, oprot, fv); err != nil {
			return err
		}
		if err := oprot.WriteFieldEnd(ctx); err != nil {
			return err
		}
	}
	if err := oprot.WriteFieldStop(ctx); err != nil {
		return err
	}
	return oprot.WriteStructEnd(ctx)
}

// unmarshalStruct reads a Thrift struct into rv (a value of spec.GoType).
// Wire fields with no matching id are skipped, matching Thrift's
// tolerance for schema evolution.
func unmarshalStruct(ctx context.Context, iprot thrift.TProtocol, spec *message.StructSpec, rv reflect.Value) error {
	if _, err := iprot.ReadStructBegin(ctx); err != nil {
		return err
	}
	for {
		_, wireType, id, err := iprot.ReadFieldBegin(ctx)
		if err != nil {
			return err
		}
		if wireType == thrift.STOP {
			break
		}
		f, ok := spec.FieldByID(id)
		if !ok {
			if err := iprot.Skip(ctx, wireType); err != nil {
				return err
			}
			if err := iprot.ReadFieldEnd(ctx); err != nil {
				return err
			}
			continue
		}
		val, err := readValue(ctx, iprot, f.Type)
		if err != nil {
			return err
		}
		rv.FieldByIndex(f.Index).Set(val)
		if err := iprot.ReadFieldEnd(ctx); err != nil {
			return err
		}
	}
	if err := iprot.ReadStructEnd(ctx); err != nil {
		return err
	}
	return nil
}

func writeValue(ctx context.Context, oprot thrift.TProtocol, rv reflect.Value) error {
	t := rv.Type()
	switch {
	case t.Kind() == reflect.Ptr:
		if rv.IsNil() {
			return fmt.Errorf("codec: cannot write nil value of type %s", t)
		}
		return writeValue(ctx, oprot, rv.Elem())
	case t == reflect.TypeOf([]byte(nil)):
		return oprot.WriteBinary(ctx, rv.Bytes())
	case t.Kind() == reflect.Slice:
		if err := oprot.WriteListBegin(ctx, ttypeOf(t.Elem()), rv.Len()); err != nil {
			return err
		}
		for i := 0; i < rv.Len(); i++ {
			if err := writeValue(ctx, oprot, rv.Index(i)); err != nil {
				return err
			}
		}
		return oprot.WriteListEnd(ctx)
	case t.Kind() == reflect.Map:
		keys := rv.MapKeys()
		if err := oprot.WriteMapBegin(ctx, ttypeOf(t.Key()), ttypeOf(t.Elem()), len(keys)); err != nil {
			return err
		}
		for _, k := range keys {
			if err := writeValue(ctx, oprot, k); err != nil {
				return err
			}
			if err := writeValue(ctx, oprot, rv.MapIndex(k)); err != nil {
				return err
			}
		}
		return oprot.WriteMapEnd(ctx)
	case t.Kind() == reflect.Struct:
		return marshalStruct(ctx, oprot, message.SpecOf(t), rv)
	case t.Kind() == reflect.Bool:
		return oprot.WriteBool(ctx, rv.Bool())
	case t.Kind() == reflect.Int8:
		return oprot.WriteByte(ctx, int8(rv.Int()))
	case t.Kind() == reflect.Int16:
		return oprot.WriteI16(ctx, int16(rv.Int()))
	case t.Kind() == reflect.Int32:
		return oprot.WriteI32(ctx, int32(rv.Int()))
	case t.Kind() == reflect.Int64, t.Kind() == reflect.Int:
		return oprot.WriteI64(ctx, rv.Int())
	case t.Kind() == reflect.Float64, t.Kind() == reflect.Float32:
		return oprot.WriteDouble(ctx, rv.Float())
	case t.Kind() == reflect.String:
		return oprot.WriteString(ctx, rv.String())
	default:
		return fmt.Errorf("codec: unsupported field type %s", t)
	}
}

func readValue(ctx context.Context, iprot thrift.TProtocol, t reflect.Type) (reflect.Value, error) {
	switch {
	case t.Kind() == reflect.Ptr:
		inner, err := readValue(ctx, iprot, t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		p := reflect.New(t.Elem())
		p.Elem().Set(inner)
		return p, nil
	case t == reflect.TypeOf([]byte(nil)):
		b, err := iprot.ReadBinary(ctx)
		return reflect.ValueOf(b), err
	case t.Kind() == reflect.Slice:
		_, size, err := iprot.ReadListBegin(ctx)
		if err != nil {
			return reflect.Value{}, err
		}
		sl := reflect.MakeSlice(t, 0, max(size, 0))
		for i := 0; i < size; i++ {
			ev, err := readValue(ctx, iprot, t.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			sl = reflect.Append(sl, ev)
		}
		if err := iprot.ReadListEnd(ctx); err != nil {
			return reflect.Value{}, err
		}
		return sl, nil
	case t.Kind() == reflect.Map:
		_, _, size, err := iprot.ReadMapBegin(ctx)
		if err != nil {
			return reflect.Value{}, err
		}
		m := reflect.MakeMapWithSize(t, max(size, 0))
		for i := 0; i < size; i++ {
			k, err := readValue(ctx, iprot, t.Key())
			if err != nil {
				return reflect.Value{}, err
			}
			v, err := readValue(ctx, iprot, t.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			m.SetMapIndex(k, v)
		}
		if err := iprot.ReadMapEnd(ctx); err != nil {
			return reflect.Value{}, err
		}
		return m, nil
	case t.Kind() == reflect.Struct:
		spec := message.SpecOf(t)
		nv := reflect.New(t).Elem()
		if err := unmarshalStruct(ctx, iprot, spec, nv); err != nil {
			return reflect.Value{}, err
		}
		return nv, nil
	case t.Kind() == reflect.Bool:
		v, err := iprot.ReadBool(ctx)
		return reflect.ValueOf(v).Convert(t), err
	case t.Kind() == reflect.Int8:
		v, err := iprot.ReadByte(ctx)
		return reflect.ValueOf(v).Convert(t), err
	case t.Kind() == reflect.Int16:
		v, err := iprot.ReadI16(ctx)
		return reflect.ValueOf(v).Convert(t), err
	case t.Kind() == reflect.Int32:
		v, err := iprot.ReadI32(ctx)
		return reflect.ValueOf(v).Convert(t), err
	case t.Kind() == reflect.Int64, t.Kind() == reflect.Int:
		v, err := iprot.ReadI64(ctx)
		return reflect.ValueOf(v).Convert(t), err
	case t.Kind() == reflect.Float64, t.Kind() == reflect.Float32:
		v, err := iprot.ReadDouble(ctx)
		return reflect.ValueOf(v).Convert(t), err
	case t.Kind() == reflect.String:
		v, err := iprot.ReadString(ctx)
		return reflect.ValueOf(v).Convert(t), err
	default:
		return reflect.Value{}, fmt.Errorf("codec: unsupported field type %s", t)
	}
}
