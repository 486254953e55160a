package jsonrpc

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// ErrorCode is a JSON-RPC 2.0 error code.
type ErrorCode int

const (
	// ErrorCodeParseError indicates invalid JSON was received by the server.
	ErrorCodeParseError ErrorCode = -32700
	// ErrorCodeInvalidRequest indicates the JSON sent is not a valid Request object.
	ErrorCodeInvalidRequest ErrorCode = -32600
	// ErrorCodeMethodNotFound indicates the method does not exist / is not available.
	ErrorCodeMethodNotFound ErrorCode = -32601
	// ErrorCodeInvalidParams indicates invalid method parameters.
	ErrorCodeInvalidParams ErrorCode = -32602
	// ErrorCodeInternalError indicates an internal JSON-RPC error.
	ErrorCodeInternalError ErrorCode = -32603
)

// ParseError reports a payload that is not well-formed JSON, or whose
// charset could not be decoded.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return "parse error: " + e.Err.Error() }
func (e *ParseError) Unwrap() error { return e.Err }

// SchemaError reports well-formed JSON that is not a conforming JSON-RPC
// 2.0 envelope.
type SchemaError struct {
	Err error
}

func (e *SchemaError) Error() string { return "invalid message: " + e.Err.Error() }
func (e *SchemaError) Unwrap() error { return e.Err }

// TooLargeError reports a body that exceeds the configured size limit.
type TooLargeError struct {
	Limit int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("request body exceeds %s", humanize.Bytes(uint64(e.Limit)))
}
