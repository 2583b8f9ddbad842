package errors

import (
	"fmt"
	"strings"
	"time"
)

// TimeoutData records the bound that expired
type TimeoutData struct {
	Method  string        `json:"method"`
	Timeout time.Duration `json:"timeout"`
}

// Timeout reports that no response arrived within the bound
func Timeout(method string, timeout time.Duration) MCPError {
	return NewError(CodeOperationTimeout, fmt.Sprintf("%s timed out after %s", method, timeout), CategoryTimeout, SeverityWarning).
		WithData(&TimeoutData{Method: method, Timeout: timeout})
}

// Cancelled reports that the caller abandoned an operation
func Cancelled(operation string, cause error) MCPError {
	return WrapError(cause, CodeOperationCancelled, fmt.Sprintf("%s cancelled", operation), CategoryCancelled, SeverityInfo)
}

// ProtocolError reports a malformed or unexpected message shape
func ProtocolError(reason string, cause error) MCPError {
	err := WrapError(cause, CodeProtocolError, "protocol error", CategoryProtocol, SeverityError).
		WithDetail(reason)
	if cause != nil {
		err = err.WithDetail(cause.Error())
	}
	return err
}

// VersionMismatch reports a handshake negotiated an unsupported revision
func VersionMismatch(expected, actual string) MCPError {
	return NewError(CodeVersionMismatch, "protocol version mismatch", CategoryProtocol, SeverityError).
		WithDetail(fmt.Sprintf("expected %s, server offered %s", expected, actual))
}

// CatalogErrorData names the catalog whose refresh failed
type CatalogErrorData struct {
	Kind string `json:"kind"`
}

// CatalogRefreshError reports a failed tools/prompts/resources listing
func CatalogRefreshError(kind string, cause error) MCPError {
	return WrapError(cause, CodeCatalogRefresh, fmt.Sprintf("failed to refresh %s", kind), CategoryCatalog, SeverityWarning).
		WithDetail(causeText(cause)).
		WithData(&CatalogErrorData{Kind: kind})
}

// ElicitationBusy is returned to the server when a second elicitation arrives
// while one is still awaiting an answer.
func ElicitationBusy(pendingID string) MCPError {
	return NewError(CodeElicitationBusy, "another elicitation is awaiting an answer", CategoryState, SeverityWarning).
		WithDetail(pendingID)
}

// NoPendingElicitation is returned when an answer is submitted while idle
func NoPendingElicitation() MCPError {
	return NewError(CodeNoPendingElicitation, "no elicitation is awaiting an answer", CategoryState, SeverityInfo)
}

// FieldViolation describes one schema violation of a submitted answer
type FieldViolation struct {
	Field       string `json:"field"`
	Description string `json:"description"`
}

// InvalidAnswer reports that submitted content does not match the requested schema
func InvalidAnswer(violations []FieldViolation) MCPError {
	parts := make([]string, 0, len(violations))
	for _, v := range violations {
		parts = append(parts, fmt.Sprintf("%s: %s", v.Field, v.Description))
	}
	return NewError(CodeValidationError, "answer does not match the requested schema", CategoryValidation, SeverityWarning).
		WithDetail(strings.Join(parts, "; ")).
		WithData(violations)
}

// ToolError reports a tool result flagged with isError
func ToolError(tool, text string) MCPError {
	return NewError(CodeToolError, fmt.Sprintf("tool %s reported an error", tool), CategoryRemote, SeverityError).
		WithDetail(text)
}

// InvalidArgument reports a bad value passed by the caller
func InvalidArgument(name, reason string) MCPError {
	return NewError(CodeInvalidParams, fmt.Sprintf("invalid %s", name), CategoryValidation, SeverityWarning).
		WithDetail(reason)
}

func causeText(cause error) string {
	if cause == nil {
		return ""
	}
	return cause.Error()
}
