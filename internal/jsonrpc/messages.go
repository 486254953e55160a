package jsonrpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ProtocolVersion is the supported JSON-RPC protocol version.
const ProtocolVersion = "2.0"

// Message is the raw JSON representation of a JSON-RPC message.
type Message []byte

// Kind discriminates the four JSON-RPC envelope shapes.
type Kind string

const (
	KindRequest       Kind = "request"
	KindNotification  Kind = "notification"
	KindResponse      Kind = "response"
	KindErrorResponse Kind = "error_response"
)

// AnyMessage is a generic JSON-RPC message (request, notification, or response).
type AnyMessage struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	ID             *RequestID      `json:"id,omitempty"`
	Method         string          `json:"method,omitempty"`
	Params         json.RawMessage `json:"params,omitempty"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          *Error          `json:"error,omitempty"`
}

// Request represents a JSON-RPC request (with an ID) or notification (without ID).
type Request struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Method         string          `json:"method"`
	Params         json.RawMessage `json:"params,omitempty"`
	ID             *RequestID      `json:"id,omitempty"`
}

// Response represents a JSON-RPC response.
type Response struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          *Error          `json:"error,omitempty"`
	ID             *RequestID      `json:"id,omitempty"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Data    any       `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// NewRequest builds a request carrying id. params may be nil.
func NewRequest(id *RequestID, method string, params any) (*AnyMessage, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &AnyMessage{JSONRPCVersion: ProtocolVersion, Method: method, Params: raw, ID: id}, nil
}

// NewNotification builds a notification. params may be nil.
func NewNotification(method string, params any) (*AnyMessage, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &AnyMessage{JSONRPCVersion: ProtocolVersion, Method: method, Params: raw}, nil
}

// NewResult builds a successful JSON-RPC response object.
func NewResult(id *RequestID, result any) (*AnyMessage, error) {
	resultBytes, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	return &AnyMessage{
		JSONRPCVersion: ProtocolVersion,
		Result:         resultBytes,
		ID:             id,
	}, nil
}

// NewError builds an error JSON-RPC response with the given code.
func NewError(id *RequestID, code ErrorCode, message string, data any) *AnyMessage {
	return &AnyMessage{
		JSONRPCVersion: ProtocolVersion,
		Error: &Error{
			Code:    code,
			Message: message,
			Data:    data,
		},
		ID: id,
	}
}

func marshalParams(params any) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	if raw, ok := params.(json.RawMessage); ok {
		return raw, nil
	}
	b, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}
	return b, nil
}

// UnmarshalJSON enforces JSON-RPC 2.0 semantics and validates message structure.
func (m *AnyMessage) UnmarshalJSON(data []byte) error {
	type rawMessage struct {
		JSONRPCVersion string          `json:"jsonrpc"`
		Method         string          `json:"method,omitempty"`
		Params         json.RawMessage `json:"params,omitempty"`
		Result         json.RawMessage `json:"result,omitempty"`
		Error          json.RawMessage `json:"error,omitempty"`
		ID             *RequestID      `json:"id,omitempty"`
	}

	var raw rawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	if raw.JSONRPCVersion != ProtocolVersion {
		return fmt.Errorf("invalid JSON-RPC version: expected %q, got %q", ProtocolVersion, raw.JSONRPCVersion)
	}

	hasMethod := raw.Method != ""
	hasResult := len(raw.Result) > 0
	hasError := len(raw.Error) > 0 && string(raw.Error) != "null"

	var rpcErr *Error
	if hasMethod {
		if hasResult || hasError {
			return errors.New("request message cannot have result or error fields")
		}
		if len(raw.Params) > 0 && raw.Params[0] != '{' && raw.Params[0] != '[' {
			return errors.New("params must be an object or an array")
		}
	} else {
		if hasResult && hasError {
			return errors.New("response message cannot have both result and error fields")
		}
		if !hasResult && !hasError {
			return errors.New("response message must have either result or error field")
		}
		if hasError {
			e, err := decodeError(raw.Error)
			if err != nil {
				return err
			}
			rpcErr = e
		}
	}

	m.JSONRPCVersion = raw.JSONRPCVersion
	m.Method = raw.Method
	m.Params = raw.Params
	m.Result = raw.Result
	m.Error = rpcErr
	m.ID = raw.ID

	return nil
}

func decodeError(b json.RawMessage) (*Error, error) {
	var e struct {
		Code    *ErrorCode `json:"code"`
		Message *string    `json:"message"`
		Data    any        `json:"data,omitempty"`
	}
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, fmt.Errorf("invalid error object: %w", err)
	}
	if e.Code == nil || e.Message == nil {
		return nil, errors.New("error object requires code and message")
	}
	return &Error{Code: *e.Code, Message: *e.Message, Data: e.Data}, nil
}

// Kind classifies the message.
func (m *AnyMessage) Kind() Kind {
	switch {
	case m.Method != "" && m.ID.IsNil():
		return KindNotification
	case m.Method != "":
		return KindRequest
	case m.Error != nil:
		return KindErrorResponse
	default:
		return KindResponse
	}
}

// Type returns "request", "notification" or "response". Error responses
// report "response".
func (m *AnyMessage) Type() string {
	if k := m.Kind(); k != KindErrorResponse {
		return string(k)
	}
	return string(KindResponse)
}

// ExpectsReply reports whether the peer owes exactly one response for m.
func (m *AnyMessage) ExpectsReply() bool {
	return m.Kind() == KindRequest
}

// AsRequest returns the message as a Request if it is a request message, otherwise nil
func (m *AnyMessage) AsRequest() *Request {
	if m.Method == "" {
		return nil
	}

	return &Request{
		JSONRPCVersion: m.JSONRPCVersion,
		Method:         m.Method,
		Params:         m.Params,
		ID:             m.ID,
	}
}

// AsResponse returns the message as a Response if it is a response message, otherwise nil
func (m *AnyMessage) AsResponse() *Response {
	if m.Method != "" {
		return nil
	}

	return &Response{
		JSONRPCVersion: m.JSONRPCVersion,
		Result:         m.Result,
		Error:          m.Error,
		ID:             m.ID,
	}
}
