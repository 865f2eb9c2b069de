// Package thtperrors defines the sealed set of error kinds a THTP server
// or client can raise, and the mapping from server-side kinds onto
// Thrift ApplicationException type codes.
package thtperrors

import (
	"fmt"

	"github.com/apache/thrift/lib/go/thrift"
)

// Kind is one of the sealed error kinds described in the error taxonomy.
// Server-side kinds and UnknownMessageType carry a Thrift
// application-exception type code; the other client-side kinds do not.
type Kind int

const (
	BadRequest Kind = iota
	UnknownRPC
	BadResponse
	Serialization
	Deserialization
	ServerValidation
	Internal
	UnknownMessageType
	ServerUnreachable
	RPCTimeout
	ClientValidation
)

func (k Kind) String() string {
	switch k {
	case BadRequest:
		return "BadRequestError"
	case UnknownRPC:
		return "UnknownRpcError"
	case BadResponse:
		return "BadResponseError"
	case Serialization:
		return "SerializationError"
	case Deserialization:
		return "DeserializationError"
	case ServerValidation:
		return "ServerValidationError"
	case Internal:
		return "InternalError"
	case UnknownMessageType:
		return "UnknownMessageType"
	case ServerUnreachable:
		return "ServerUnreachableError"
	case RPCTimeout:
		return "RpcTimeoutError"
	case ClientValidation:
		return "ClientValidationError"
	default:
		return "UnknownError"
	}
}

// TypeCode returns the Thrift ApplicationException type code for a kind.
// The second return value is false for the client-only kinds
// ServerUnreachable, RPCTimeout and ClientValidation, which never appear
// on the wire; UnknownMessageType, although raised by the client, maps
// to INVALID_MESSAGE_TYPE_EXCEPTION.
func (k Kind) TypeCode() (int32, bool) {
	switch k {
	case BadRequest:
		return thrift.UNKNOWN_METHOD, true
	case UnknownRPC:
		return thrift.WRONG_METHOD_NAME, true
	case BadResponse:
		return thrift.MISSING_RESULT, true
	case Serialization, Deserialization:
		return thrift.PROTOCOL_ERROR, true
	case ServerValidation:
		return thrift.UNKNOWN_APPLICATION_EXCEPTION, true
	case Internal:
		return thrift.INTERNAL_ERROR, true
	case UnknownMessageType:
		return thrift.INVALID_MESSAGE_TYPE_EXCEPTION, true
	default:
		return 0, false
	}
}

// Error is the concrete error value carried through the dispatch pipeline.
// It wraps an optional underlying cause so callers can still errors.As
// down to the original failure.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an Error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error from kind, describing cause in its message.
func Wrap(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Message: cause.Error(), Cause: cause}
}

// Constructors mirroring the named kinds in the error taxonomy table.

func BadRequestError(message string) *Error { return New(BadRequest, message) }

func UnknownRpcError(rpcName string) *Error {
	return New(UnknownRPC, fmt.Sprintf("Unknown RPC '%s'", rpcName))
}

func BadResponseError(message string) *Error { return New(BadResponse, message) }

func SerializationError(cause error) *Error { return Wrap(Serialization, cause) }

func DeserializationError(cause error) *Error { return Wrap(Deserialization, cause) }

func ServerValidationError(cause error) *Error { return Wrap(ServerValidation, cause) }

func InternalError(className string, cause error) *Error {
	return &Error{
		Kind:    Internal,
		Message: fmt.Sprintf("Internal error (%s): %s", className, cause.Error()),
		Cause:   cause,
	}
}

func UnknownMessageTypeError(status int) *Error {
	return New(UnknownMessageType, fmt.Sprintf("unexpected response status %d", status))
}

func ServerUnreachableError(cause error) *Error { return Wrap(ServerUnreachable, cause) }

func RpcTimeoutError(rpcName string) *Error {
	return New(RPCTimeout, fmt.Sprintf("RPC %q timed out", rpcName))
}

func ClientValidationError(message string) *Error { return New(ClientValidation, message) }
