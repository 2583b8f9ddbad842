// Package errors provides the structured error type used across the chat
// client. Every error carries a JSON-RPC compatible code, a category that
// drives recovery (tear down the session, retry, surface to the user) and
// optional structured data.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"
)

// Category classifies an error for recovery decisions
type Category string

const (
	CategoryTransport  Category = "transport"
	CategorySession    Category = "session"
	CategoryTimeout    Category = "timeout"
	CategoryCancelled  Category = "cancelled"
	CategoryProtocol   Category = "protocol"
	CategoryRemote     Category = "remote"
	CategoryCatalog    Category = "catalog"
	CategoryValidation Category = "validation"
	CategoryState      Category = "state"
	CategoryInternal   Category = "internal"
)

// Severity indicates how critical an error is
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Context records where an error happened
type Context struct {
	RequestID string    `json:"request_id,omitempty"`
	Method    string    `json:"method,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Endpoint  string    `json:"endpoint,omitempty"`
	Component string    `json:"component,omitempty"`
	Operation string    `json:"operation,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// MCPError is implemented by every error this module returns
type MCPError interface {
	error

	// Code returns the JSON-RPC error code
	Code() int
	// Message returns the human-readable message without details
	Message() string
	// Details returns accumulated technical detail
	Details() string
	// Data returns structured data for programmatic handling
	Data() interface{}
	Category() Category
	Severity() Severity
	Context() *Context

	WithContext(ctx *Context) MCPError
	WithDetail(detail string) MCPError
	WithData(data interface{}) MCPError

	Unwrap() error
}

type baseError struct {
	code     int
	message  string
	details  string
	data     interface{}
	category Category
	severity Severity
	context  *Context
	cause    error
}

func (e *baseError) Error() string {
	if e.details != "" {
		return fmt.Sprintf("%s: %s", e.message, e.details)
	}
	return e.message
}

func (e *baseError) Code() int          { return e.code }
func (e *baseError) Message() string    { return e.message }
func (e *baseError) Details() string    { return e.details }
func (e *baseError) Data() interface{}  { return e.data }
func (e *baseError) Category() Category { return e.category }
func (e *baseError) Severity() Severity { return e.severity }
func (e *baseError) Context() *Context  { return e.context }
func (e *baseError) Unwrap() error      { return e.cause }

func (e *baseError) WithContext(ctx *Context) MCPError {
	newErr := *e
	if ctx != nil && ctx.Timestamp.IsZero() && e.context != nil {
		ctx.Timestamp = e.context.Timestamp
	}
	newErr.context = ctx
	return &newErr
}

func (e *baseError) WithDetail(detail string) MCPError {
	newErr := *e
	if newErr.details != "" {
		newErr.details = newErr.details + "; " + detail
	} else {
		newErr.details = detail
	}
	return &newErr
}

func (e *baseError) WithData(data interface{}) MCPError {
	newErr := *e
	newErr.data = data
	return &newErr
}

// MarshalJSON renders the error for logs and error events
func (e *baseError) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"code":     e.code,
		"message":  e.message,
		"category": string(e.category),
		"severity": string(e.severity),
	}
	if e.details != "" {
		out["details"] = e.details
	}
	if e.data != nil {
		out["data"] = e.data
	}
	if e.context != nil {
		out["context"] = e.context
	}
	if e.cause != nil {
		out["cause"] = e.cause.Error()
	}
	return json.Marshal(out)
}

// NewError creates a new MCPError
func NewError(code int, message string, category Category, severity Severity) MCPError {
	return &baseError{
		code:     code,
		message:  message,
		category: category,
		severity: severity,
		context:  &Context{Timestamp: time.Now()},
	}
}

// WrapError wraps cause as an MCPError
func WrapError(cause error, code int, message string, category Category, severity Severity) MCPError {
	return &baseError{
		code:     code,
		message:  message,
		category: category,
		severity: severity,
		cause:    cause,
		context:  &Context{Timestamp: time.Now()},
	}
}

// AsMCPError finds the first MCPError in err's chain
func AsMCPError(err error) (MCPError, bool) {
	if err == nil {
		return nil, false
	}

	var mcpErr MCPError
	if stderrors.As(err, &mcpErr) {
		return mcpErr, true
	}
	return nil, false
}

// IsCategory checks if an error is of a specific category
func IsCategory(err error, category Category) bool {
	if mcpErr, ok := AsMCPError(err); ok {
		return mcpErr.Category() == category
	}
	return false
}

// IsCode checks if an error has a specific error code
func IsCode(err error, code int) bool {
	if mcpErr, ok := AsMCPError(err); ok {
		return mcpErr.Code() == code
	}
	return false
}

// IsConnectionFatal reports whether err means the current session can no
// longer be used and the connection must be torn down.
func IsConnectionFatal(err error) bool {
	return IsCategory(err, CategoryTransport) || IsCategory(err, CategorySession)
}
