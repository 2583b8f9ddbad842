package errors

import (
	"fmt"
	"net/url"
)

// TransportErrorData contains structured data for transport-related errors
type TransportErrorData struct {
	Transport  string `json:"transport"`
	Operation  string `json:"operation,omitempty"`
	Endpoint   string `json:"endpoint,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// SessionErrorData identifies the session that was rejected
type SessionErrorData struct {
	SessionID string `json:"session_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// TransportError reports that a message could not be moved over the wire
func TransportError(transport, operation string, cause error) MCPError {
	message := fmt.Sprintf("%s transport error", transport)
	if operation != "" {
		message = fmt.Sprintf("%s transport error during %s", transport, operation)
	}

	data := &TransportErrorData{Transport: transport, Operation: operation}
	if cause != nil {
		data.Reason = cause.Error()
		message = fmt.Sprintf("%s: %s", message, cause.Error())
	}

	return WrapError(cause, CodeTransportError, message, CategoryTransport, SeverityError).
		WithData(data)
}

// HTTPStatusError reports a non-success status from the server endpoint
func HTTPStatusError(endpoint, operation string, status int, body string) MCPError {
	message := fmt.Sprintf("unexpected HTTP status %d during %s", status, operation)
	err := NewError(CodeTransportError, message, CategoryTransport, SeverityError).
		WithData(&TransportErrorData{
			Transport:  "streamable-http",
			Operation:  operation,
			Endpoint:   hostOf(endpoint),
			StatusCode: status,
			Reason:     body,
		})
	if body != "" {
		err = err.WithDetail(body)
	}
	return err
}

// ConnectionFailed reports that a connection attempt did not complete
func ConnectionFailed(endpoint string, cause error) MCPError {
	message := fmt.Sprintf("failed to connect to %s", hostOf(endpoint))
	if cause != nil {
		message = fmt.Sprintf("%s: %s", message, cause.Error())
	}

	return WrapError(cause, CodeConnectionFailed, message, CategoryTransport, SeverityCritical).
		WithData(&TransportErrorData{Transport: "streamable-http", Operation: "connect", Endpoint: hostOf(endpoint)})
}

// ConnectionLost reports that an established stream dropped
func ConnectionLost(reason string, cause error) MCPError {
	return WrapError(cause, CodeConnectionLost, "connection lost", CategoryTransport, SeverityError).
		WithDetail(reason)
}

// SessionInvalid reports that the server no longer recognizes the session
func SessionInvalid(sessionID, reason string) MCPError {
	return NewError(CodeSessionInvalid, "session is no longer valid", CategorySession, SeverityError).
		WithDetail(reason).
		WithData(&SessionErrorData{SessionID: sessionID, Reason: reason})
}

// NoSession reports that no persisted session exists to resume
func NoSession() MCPError {
	return NewError(CodeNoSession, "no persisted session to resume", CategoryState, SeverityWarning)
}

// NotConnected reports an operation attempted without an active connection
func NotConnected(operation string) MCPError {
	return NewError(CodeNotConnected, "not connected", CategoryState, SeverityWarning).
		WithDetail(operation)
}

func hostOf(endpoint string) string {
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		return u.Host
	}
	return endpoint
}
