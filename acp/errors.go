package acp

import (
	"errors"
	"fmt"
)

// ErrEmptyFrame is returned by ParseFrame for blank lines.
var ErrEmptyFrame = errors.New("empty frame")

// RPCError is an error response the agent sent for a prompt.
type RPCError struct {
	Message string
	Code    int
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("agent error %d: %s", e.Code, e.Message)
}

// ProtocolError is returned for lines that are not valid ACP frames. Line
// holds the offending input.
type ProtocolError struct {
	Cause   error
	Message string
	Line    string
}

func (e *ProtocolError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

func (e *ProtocolError) Unwrap() error { return e.Cause }
