package thtperrors

import (
	"errors"
	"testing"

	"github.com/apache/thrift/lib/go/thrift"
)

func TestTypeCodeMapping(t *testing.T) {
	cases := []struct {
		kind Kind
		want int32
	}{
		{BadRequest, thrift.UNKNOWN_METHOD},
		{UnknownRPC, thrift.WRONG_METHOD_NAME},
		{BadResponse, thrift.MISSING_RESULT},
		{Serialization, thrift.PROTOCOL_ERROR},
		{Deserialization, thrift.PROTOCOL_ERROR},
		{ServerValidation, thrift.UNKNOWN_APPLICATION_EXCEPTION},
		{Internal, thrift.INTERNAL_ERROR},
		{UnknownMessageType, thrift.INVALID_MESSAGE_TYPE_EXCEPTION},
	}
	for _, c := range cases {
		got, ok := c.kind.TypeCode()
		if !ok || got != c.want {
			t.Fatalf("%s.TypeCode() = (%d, %v), want (%d, true)", c.kind, got, ok, c.want)
		}
	}
}

func TestClientKindsHaveNoTypeCode(t *testing.T) {
	for _, kind := range []Kind{ServerUnreachable, RPCTimeout, ClientValidation} {
		if _, ok := kind.TypeCode(); ok {
			t.Fatalf("%s should not have a wire type code", kind)
		}
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(Internal, cause)
	if !errors.Is(err, cause) {
		t.Fatalf("errors.Is(err, cause) = false, want true")
	}
}

func TestInternalErrorMessage(t *testing.T) {
	err := InternalError("RuntimeError", errors.New("divide by zero"))
	want := "Internal error (RuntimeError): divide by zero"
	if err.Message != want {
		t.Fatalf("Message = %q, want %q", err.Message, want)
	}
}
