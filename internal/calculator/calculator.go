// Package calculator is a hand-written stand-in for what a Thrift
// compiler would generate from:
//
//	service CalculatorService {
//	  i32 do_operation(1: Operation op, 2: i32 operand_one, 3: i32 operand_two) throws (1: DivideByZero dvz_exception),
//	  RetVal set_variables(1: string reason, 2: string req) throws (1: OhNo ohno_exception),
//	  void test_internal_error(),
//	}
//
// The args/result wrapper structs and the service descriptor built from
// them are exactly what real generated code would hand to the server
// and client packages; CalculatorHandler plays the role of a
// hand-written service implementation.
package calculator

import (
	"context"
	"errors"
	"fmt"

	"thtp/message"
)

// Operation is the Thrift enum selecting do_operation's arithmetic.
type Operation int32

const (
	ADD      Operation = 1
	SUBTRACT Operation = 2
	MULTIPLY Operation = 3
	DIVIDE   Operation = 4
)

// DivideByZero is a schema-declared exception on do_operation.
type DivideByZero struct {
	ErrorString string `thtp:"1,error_string"`
	Zero        int32  `thtp:"2,zero"`
}

func (e *DivideByZero) Error() string { return e.ErrorString }

// OhNo is a schema-declared exception on set_variables.
type OhNo struct {
	Message string `thtp:"1,message"`
}

func (e *OhNo) Error() string { return e.Message }

// RetVal is set_variables' success value.
type RetVal struct {
	Code int32  `thtp:"1,code"`
	Note string `thtp:"2,note"`
}

type doOperationArgs struct {
	Op         Operation `thtp:"1,op"`
	OperandOne int32     `thtp:"2,operand_one"`
	OperandTwo int32     `thtp:"3,operand_two"`
}

type doOperationResult struct {
	Success      *int32        `thtp:"0,success"`
	DvzException *DivideByZero `thtp:"1,dvz_exception"`
}

type setVariablesArgs struct {
	Reason string `thtp:"1,reason"`
	Req    string `thtp:"2,req"`
}

type setVariablesResult struct {
	Success       *RetVal `thtp:"0,success"`
	OhnoException *OhNo   `thtp:"1,ohno_exception"`
}

type testInternalErrorArgs struct{}

type testInternalErrorResult struct{}

// NewServiceDescriptor builds the descriptor a real Thrift compiler
// would emit for CalculatorService, canonically named as the
// dotted-lowercase form of its fully qualified schema name.
func NewServiceDescriptor() *message.ServiceDescriptor {
	return message.NewServiceDescriptor(
		"thtp.test.calculator_service",
		message.NewRPCDescriptor("do_operation", doOperationArgs{}, doOperationResult{}),
		message.NewRPCDescriptor("set_variables", setVariablesArgs{}, setVariablesResult{}),
		message.NewRPCDescriptor("test_internal_error", testInternalErrorArgs{}, testInternalErrorResult{}),
	)
}

// Handler is a hand-written implementation of CalculatorService, wired
// to the server via server.NewServiceHandler.
type Handler struct{}

func (Handler) DoOperation(ctx context.Context, op Operation, a, b int32) (int32, error) {
	switch op {
	case ADD:
		return a + b, nil
	case SUBTRACT:
		return a - b, nil
	case MULTIPLY:
		return a * b, nil
	case DIVIDE:
		if b == 0 {
			return 0, &DivideByZero{ErrorString: "nope", Zero: 0}
		}
		return a / b, nil
	default:
		return 0, fmt.Errorf("unknown operation %d", op)
	}
}

func (Handler) SetVariables(ctx context.Context, reason, req string) (*RetVal, error) {
	if reason == "" {
		return nil, &OhNo{Message: "reason is required"}
	}
	return &RetVal{Code: 0, Note: req}, nil
}

func (Handler) TestInternalError(ctx context.Context) error {
	return errors.New("kaboom")
}
