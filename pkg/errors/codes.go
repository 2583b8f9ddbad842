package errors

// JSON-RPC 2.0 standard error codes
const (
	CodeParseError     int = -32700
	CodeInvalidRequest int = -32600
	CodeMethodNotFound int = -32601
	CodeInvalidParams  int = -32602
	CodeInternalError  int = -32603
)

// Client error codes. They live in the JSON-RPC implementation-defined range
// and never collide with codes the server may send.
const (
	// Operation errors (-32300 to -32399)
	CodeOperationCancelled int = -32300
	CodeOperationTimeout   int = -32301

	// Transport and session errors (-32500 to -32599)
	CodeTransportError   int = -32500
	CodeConnectionFailed int = -32501
	CodeConnectionLost   int = -32502
	CodeSessionInvalid   int = -32504
	CodeNoSession        int = -32505
	CodeNotConnected     int = -32506

	// Catalog errors (-32650 to -32699)
	CodeCatalogRefresh int = -32650

	// Elicitation errors (-32750 to -32799)
	CodeValidationError      int = -32750
	CodeElicitationBusy      int = -32760
	CodeNoPendingElicitation int = -32761

	// Tool errors (-32800 to -32849)
	CodeToolError int = -32800

	// Protocol errors (-32900 to -32999)
	CodeProtocolError   int = -32900
	CodeVersionMismatch int = -32901
)

// ErrorCodeInfo describes a registered error code
type ErrorCodeInfo struct {
	Code     int
	Name     string
	Category Category
	Severity Severity
}

var errorCodeRegistry = map[int]ErrorCodeInfo{
	CodeParseError:     {CodeParseError, "ParseError", CategoryProtocol, SeverityError},
	CodeInvalidRequest: {CodeInvalidRequest, "InvalidRequest", CategoryProtocol, SeverityError},
	CodeMethodNotFound: {CodeMethodNotFound, "MethodNotFound", CategoryRemote, SeverityError},
	CodeInvalidParams:  {CodeInvalidParams, "InvalidParams", CategoryRemote, SeverityError},
	CodeInternalError:  {CodeInternalError, "InternalError", CategoryRemote, SeverityError},

	CodeOperationCancelled: {CodeOperationCancelled, "OperationCancelled", CategoryCancelled, SeverityInfo},
	CodeOperationTimeout:   {CodeOperationTimeout, "OperationTimeout", CategoryTimeout, SeverityWarning},

	CodeTransportError:   {CodeTransportError, "TransportError", CategoryTransport, SeverityError},
	CodeConnectionFailed: {CodeConnectionFailed, "ConnectionFailed", CategoryTransport, SeverityCritical},
	CodeConnectionLost:   {CodeConnectionLost, "ConnectionLost", CategoryTransport, SeverityError},
	CodeSessionInvalid:   {CodeSessionInvalid, "SessionInvalid", CategorySession, SeverityError},
	CodeNoSession:        {CodeNoSession, "NoSession", CategoryState, SeverityWarning},
	CodeNotConnected:     {CodeNotConnected, "NotConnected", CategoryState, SeverityWarning},

	CodeCatalogRefresh: {CodeCatalogRefresh, "CatalogRefreshError", CategoryCatalog, SeverityWarning},

	CodeValidationError:      {CodeValidationError, "ValidationError", CategoryValidation, SeverityWarning},
	CodeElicitationBusy:      {CodeElicitationBusy, "ElicitationBusy", CategoryState, SeverityWarning},
	CodeNoPendingElicitation: {CodeNoPendingElicitation, "NoPendingElicitation", CategoryState, SeverityInfo},

	CodeToolError: {CodeToolError, "ToolError", CategoryRemote, SeverityError},

	CodeProtocolError:   {CodeProtocolError, "ProtocolError", CategoryProtocol, SeverityError},
	CodeVersionMismatch: {CodeVersionMismatch, "VersionMismatch", CategoryProtocol, SeverityError},
}

// GetErrorCodeInfo returns information about an error code
func GetErrorCodeInfo(code int) (ErrorCodeInfo, bool) {
	info, exists := errorCodeRegistry[code]
	return info, exists
}

// GetErrorCodeName returns the name of an error code
func GetErrorCodeName(code int) string {
	if info, exists := errorCodeRegistry[code]; exists {
		return info.Name
	}
	return "UnknownError"
}
