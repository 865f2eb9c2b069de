package codec

import (
	"context"
	"fmt"
	"reflect"

	"github.com/apache/thrift/lib/go/thrift"

	"thtp/message"
	"thtp/protocol"
	"thtp/thtperrors"
)

// SerializeArgs instantiates rpc's args struct, assigns positional in
// declared field-id order, and serialises it with proto. It fails with a
// ClientValidationError if a value does not match the schema's declared
// field type.
func SerializeArgs(ctx context.Context, proto protocol.Protocol, rpc *message.RPCDescriptor, positional []any) ([]byte, error) {
	spec := rpc.ArgsSpec
	if len(positional) != len(spec.Fields) {
		return nil, thtperrors.ClientValidationError(
			fmt.Sprintf("rpc %q expects %d arguments, got %d", rpc.Name, len(spec.Fields), len(positional)))
	}
	argsPtr := reflect.New(spec.GoType)
	for i, f := range spec.Fields {
		val := reflect.ValueOf(positional[i])
		target := argsPtr.Elem().FieldByIndex(f.Index)
		if !val.IsValid() || !val.Type().AssignableTo(target.Type()) {
			return nil, thtperrors.ClientValidationError(
				fmt.Sprintf("argument %d (%s): expected %s", i, f.Name, target.Type()))
		}
		target.Set(val)
	}

	trans := thrift.NewTMemoryBuffer()
	oprot := protocol.New(proto, trans)
	if err := marshalStruct(ctx, oprot, spec, argsPtr.Elem()); err != nil {
		return nil, thtperrors.ClientValidationError(err.Error())
	}
	if err := oprot.Flush(ctx); err != nil {
		return nil, thtperrors.ClientValidationError(err.Error())
	}
	return trans.Bytes(), nil
}

// DeserializeArgs decodes data into rpc's args struct and projects its
// fields out in declared field-id order as a positional list.
func DeserializeArgs(ctx context.Context, proto protocol.Protocol, rpc *message.RPCDescriptor, data []byte) ([]any, error) {
	spec := rpc.ArgsSpec
	trans := thrift.NewTMemoryBuffer()
	if _, err := trans.Write(data); err != nil {
		return nil, thtperrors.DeserializationError(err)
	}
	iprot := protocol.New(proto, trans)

	argsPtr := reflect.New(spec.GoType)
	if err := unmarshalStruct(ctx, iprot, spec, argsPtr.Elem()); err != nil {
		return nil, thtperrors.DeserializationError(err)
	}

	positional := make([]any, len(spec.Fields))
	for i, f := range spec.Fields {
		positional[i] = argsPtr.Elem().FieldByIndex(f.Index).Interface()
	}
	return positional, nil
}

// SerializeReply wraps reply in rpc's result struct and serialises it. A
// nil reply emits an empty result struct (void return). A non-nil reply
// whose type matches no declared field fails with BadResponseError.
func SerializeReply(ctx context.Context, proto protocol.Protocol, rpc *message.RPCDescriptor, reply any) ([]byte, error) {
	spec := rpc.ResultSpec
	resultPtr := reflect.New(spec.GoType)

	if reply != nil {
		field, ok := findFieldForValue(spec, reply)
		if !ok {
			return nil, thtperrors.BadResponseError(
				fmt.Sprintf("rpc %q: no result field matches type %T", rpc.Name, reply))
		}
		target := resultPtr.Elem().FieldByIndex(field.Index)
		rv := reflect.ValueOf(reply)
		if target.Kind() == reflect.Ptr && rv.Kind() != reflect.Ptr {
			boxed := reflect.New(rv.Type())
			boxed.Elem().Set(rv)
			rv = boxed
		}
		target.Set(rv)
	}

	trans := thrift.NewTMemoryBuffer()
	oprot := protocol.New(proto, trans)
	if err := marshalStruct(ctx, oprot, spec, resultPtr.Elem()); err != nil {
		return nil, thtperrors.SerializationError(err)
	}
	if err := oprot.Flush(ctx); err != nil {
		return nil, thtperrors.SerializationError(err)
	}
	return trans.Bytes(), nil
}

// DeserializeReply decodes data into rpc's result struct and resolves the
// single set field: "success" is returned as a value, any other set
// field is returned as an error (it is a schema-declared exception), and
// an entirely unset struct returns (nil, nil) for a void RPC or
// BadResponseError otherwise.
func DeserializeReply(ctx context.Context, proto protocol.Protocol, rpc *message.RPCDescriptor, data []byte) (any, error) {
	spec := rpc.ResultSpec
	trans := thrift.NewTMemoryBuffer()
	if _, err := trans.Write(data); err != nil {
		return nil, thtperrors.BadResponseError(err.Error())
	}
	iprot := protocol.New(proto, trans)

	resultPtr := reflect.New(spec.GoType)
	if err := unmarshalStruct(ctx, iprot, spec, resultPtr.Elem()); err != nil {
		return nil, thtperrors.BadResponseError(err.Error())
	}

	for _, f := range spec.Fields {
		fv := resultPtr.Elem().FieldByIndex(f.Index)
		if fv.Kind() != reflect.Ptr || fv.IsNil() {
			continue
		}
		if f.Name == "success" {
			return fv.Elem().Interface(), nil
		}
		if exc, ok := fv.Interface().(error); ok {
			return nil, exc
		}
		return nil, thtperrors.BadResponseError(
			fmt.Sprintf("declared exception field %q does not implement error", f.Name))
	}

	if !spec.HasSuccess() {
		return nil, nil
	}
	return nil, thtperrors.BadResponseError(fmt.Sprintf("rpc %q: result has no field set", rpc.Name))
}

// findFieldForValue searches spec's fields for one whose declared class
// equals the runtime type of reply. The success field participates in
// the search on equal footing with declared exceptions.
func findFieldForValue(spec *message.StructSpec, reply any) (*message.FieldSpec, bool) {
	replyType := reflect.TypeOf(reply)
	for replyType.Kind() == reflect.Ptr {
		replyType = replyType.Elem()
	}
	for i := range spec.Fields {
		f := &spec.Fields[i]
		fieldType := f.Type
		for fieldType.Kind() == reflect.Ptr {
			fieldType = fieldType.Elem()
		}
		if fieldType == replyType {
			return f, true
		}
	}
	return nil, false
}
