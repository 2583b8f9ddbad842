package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

const (
	// JSONRPCVersion is the supported JSON-RPC version
	JSONRPCVersion = "2.0"
)

// ErrorCode represents standard JSON-RPC 2.0 error codes
type ErrorCode int

// Standard error codes as per JSON-RPC 2.0 specification
const (
	ParseError     ErrorCode = -32700
	InvalidRequest ErrorCode = -32600
	MethodNotFound ErrorCode = -32601
	InvalidParams  ErrorCode = -32602
	InternalError  ErrorCode = -32603
)

// Request represents a JSON-RPC 2.0 request
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// NewRequest creates a new JSON-RPC 2.0 request
func NewRequest(id interface{}, method string, params interface{}) (*Request, error) {
	paramsJSON, err := marshalOptional(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}

	return &Request{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Method:  method,
		Params:  paramsJSON,
	}, nil
}

// Response represents a JSON-RPC 2.0 response
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// NewResponse creates a new JSON-RPC 2.0 success response.
// A nil result is encoded as an empty object.
func NewResponse(id interface{}, result interface{}) (*Response, error) {
	if result == nil {
		return &Response{JSONRPC: JSONRPCVersion, ID: id, Result: json.RawMessage("{}")}, nil
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	return &Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  resultJSON,
	}, nil
}

// NewErrorResponse creates a new JSON-RPC 2.0 error response
func NewErrorResponse(id interface{}, code ErrorCode, message string, data interface{}) *Response {
	return &Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error: &Error{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// Notification represents a JSON-RPC 2.0 notification
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// NewNotification creates a new JSON-RPC 2.0 notification
func NewNotification(method string, params interface{}) (*Notification, error) {
	paramsJSON, err := marshalOptional(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}

	return &Notification{
		JSONRPC: JSONRPCVersion,
		Method:  method,
		Params:  paramsJSON,
	}, nil
}

// Error represents a JSON-RPC 2.0 error object
type Error struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// MessageKind classifies an inbound JSON-RPC message
type MessageKind int

const (
	KindInvalid MessageKind = iota
	KindRequest
	KindResponse
	KindNotification
)

// String returns the kind name
func (k MessageKind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindResponse:
		return "response"
	case KindNotification:
		return "notification"
	default:
		return "invalid"
	}
}

// Message is the decoded envelope of any inbound JSON-RPC message.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Kind reports which JSON-RPC message shape m has
func (m *Message) Kind() MessageKind {
	if m.JSONRPC != JSONRPCVersion {
		return KindInvalid
	}
	switch {
	case m.Method != "" && m.ID != nil:
		return KindRequest
	case m.Method != "":
		return KindNotification
	case m.ID != nil && (m.Result != nil || m.Error != nil):
		return KindResponse
	default:
		return KindInvalid
	}
}

// AsRequest converts the envelope into a Request
func (m *Message) AsRequest() *Request {
	return &Request{JSONRPC: m.JSONRPC, ID: m.ID, Method: m.Method, Params: m.Params}
}

// AsResponse converts the envelope into a Response
func (m *Message) AsResponse() *Response {
	return &Response{JSONRPC: m.JSONRPC, ID: m.ID, Result: m.Result, Error: m.Error}
}

// AsNotification converts the envelope into a Notification
func (m *Message) AsNotification() *Notification {
	return &Notification{JSONRPC: m.JSONRPC, Method: m.Method, Params: m.Params}
}

// ParseMessages decodes a payload holding a single message or a batch array.
func ParseMessages(data []byte) ([]*Message, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty message")
	}

	if trimmed[0] == '[' {
		var batch []*Message
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			return nil, fmt.Errorf("failed to decode batch: %w", err)
		}
		return batch, nil
	}

	var msg Message
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}
	return []*Message{&msg}, nil
}

// IDString normalizes a JSON-RPC id into a map key. Numeric ids decode as
// float64 and are printed without a fractional part.
func IDString(id interface{}) string {
	switch v := id.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func marshalOptional(v interface{}) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(v)
}
