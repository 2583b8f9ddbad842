package errors

import (
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/protocol"
)

// RemoteErrorData carries the raw error object returned by the server
type RemoteErrorData struct {
	Method string      `json:"method,omitempty"`
	Data   interface{} `json:"data,omitempty"`
}

// FromJSONRPCError converts an error object received from the server into
// an MCPError. Unknown codes are classified as remote failures.
func FromJSONRPCError(method string, rpcErr *protocol.Error) MCPError {
	if rpcErr == nil {
		return nil
	}

	code := int(rpcErr.Code)
	category, severity := CategoryRemote, SeverityError
	if info, ok := GetErrorCodeInfo(code); ok && (info.Category == CategoryProtocol || info.Category == CategoryRemote) {
		category, severity = info.Category, info.Severity
	}

	err := NewError(code, rpcErr.Message, category, severity).
		WithData(&RemoteErrorData{Method: method, Data: rpcErr.Data})
	return err.WithContext(&Context{Method: method, Component: "server"})
}

// ToJSONRPCError converts any error into a JSON-RPC error object suitable for
// answering a server-initiated request.
func ToJSONRPCError(err error) *protocol.Error {
	if err == nil {
		return nil
	}

	if mcpErr, ok := AsMCPError(err); ok {
		return &protocol.Error{
			Code:    protocol.ErrorCode(mcpErr.Code()),
			Message: mcpErr.Error(),
		}
	}

	return &protocol.Error{
		Code:    protocol.InternalError,
		Message: err.Error(),
	}
}
