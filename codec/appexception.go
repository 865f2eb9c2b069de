package codec

import (
	"context"
	"reflect"

	"github.com/apache/thrift/lib/go/thrift"

	"thtp/message"
	"thtp/protocol"
)

// wireApplicationException is the schemaless struct written for every
// status-500 EXCEPTION response: struct { 1: string message, 2: i32 type }.
type wireApplicationException struct {
	Message string `thtp:"1,message"`
	Type    int32  `thtp:"2,type"`
}

// EncodeApplicationException serialises message/typeID as the schemaless
// ApplicationException body used for every status-500 response.
func EncodeApplicationException(ctx context.Context, proto protocol.Protocol, msg string, typeID int32) ([]byte, error) {
	spec := message.SpecOf(wireApplicationException{})
	trans := thrift.NewTMemoryBuffer()
	oprot := protocol.New(proto, trans)
	v := wireApplicationException{Message: msg, Type: typeID}
	if err := marshalStruct(ctx, oprot, spec, reflect.ValueOf(v)); err != nil {
		return nil, err
	}
	if err := oprot.Flush(ctx); err != nil {
		return nil, err
	}
	return trans.Bytes(), nil
}

// DecodeApplicationException parses a status-500 EXCEPTION body back into
// its message and Thrift application-exception type code.
func DecodeApplicationException(ctx context.Context, proto protocol.Protocol, data []byte) (msg string, typeID int32, err error) {
	spec := message.SpecOf(wireApplicationException{})
	trans := thrift.NewTMemoryBuffer()
	if _, err = trans.Write(data); err != nil {
		return "", 0, err
	}
	iprot := protocol.New(proto, trans)
	var v wireApplicationException
	if err = unmarshalStruct(ctx, iprot, spec, reflect.ValueOf(&v).Elem()); err != nil {
		return "", 0, err
	}
	return v.Message, v.Type, nil
}
