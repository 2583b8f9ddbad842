package protocol

import "encoding/json"

// ProtocolVersion is the MCP revision negotiated during initialize
const ProtocolVersion = "2025-06-18"

// Lifecycle methods
const (
	MethodInitialize  = "initialize"
	MethodInitialized = "notifications/initialized"
	MethodPing        = "ping"
	MethodCancelled   = "notifications/cancelled"
)

// Client-to-server methods
const (
	MethodListTools             = "tools/list"
	MethodCallTool              = "tools/call"
	MethodListPrompts           = "prompts/list"
	MethodGetPrompt             = "prompts/get"
	MethodListResources         = "resources/list"
	MethodListResourceTemplates = "resources/templates/list"
	MethodReadResource          = "resources/read"
	MethodSetLogLevel           = "logging/setLevel"
)

// Server-to-client methods
const (
	MethodElicitationCreate    = "elicitation/create"
	MethodLogMessage           = "notifications/message"
	MethodProgress             = "notifications/progress"
	MethodToolsListChanged     = "notifications/tools/list_changed"
	MethodPromptsListChanged   = "notifications/prompts/list_changed"
	MethodResourcesListChanged = "notifications/resources/list_changed"
)

// Implementation identifies a client or server
type Implementation struct {
	Name    string `json:"name"`
	Title   string `json:"title,omitempty"`
	Version string `json:"version"`
}

// ClientCapabilities advertises what this client supports
type ClientCapabilities struct {
	Elicitation  *struct{}                  `json:"elicitation,omitempty"`
	Experimental map[string]json.RawMessage `json:"experimental,omitempty"`
}

// ListChangedCapability is shared by the tools, prompts and resources capabilities
type ListChangedCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
	Subscribe   bool `json:"subscribe,omitempty"`
}

// ServerCapabilities is what the server reports during initialize
type ServerCapabilities struct {
	Tools     *ListChangedCapability `json:"tools,omitempty"`
	Prompts   *ListChangedCapability `json:"prompts,omitempty"`
	Resources *ListChangedCapability `json:"resources,omitempty"`
	Logging   *struct{}              `json:"logging,omitempty"`
}

// InitializeParams is sent as the first request of a session
type InitializeParams struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ClientCapabilities `json:"capabilities"`
	ClientInfo      Implementation     `json:"clientInfo"`
}

// InitializeResult is the server's handshake reply
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      Implementation     `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitempty"`
}

// CancelledParams tells the server that a request was abandoned
type CancelledParams struct {
	RequestID interface{} `json:"requestId"`
	Reason    string      `json:"reason,omitempty"`
}

// LogLevel is a syslog-style severity used by notifications/message
type LogLevel string

const (
	LogLevelDebug     LogLevel = "debug"
	LogLevelInfo      LogLevel = "info"
	LogLevelNotice    LogLevel = "notice"
	LogLevelWarning   LogLevel = "warning"
	LogLevelError     LogLevel = "error"
	LogLevelCritical  LogLevel = "critical"
	LogLevelAlert     LogLevel = "alert"
	LogLevelEmergency LogLevel = "emergency"
)

// LoggingMessageParams is the payload of notifications/message
type LoggingMessageParams struct {
	Level  LogLevel        `json:"level"`
	Logger string          `json:"logger,omitempty"`
	Data   json.RawMessage `json:"data"`
}

// SetLevelParams is the payload of logging/setLevel
type SetLevelParams struct {
	Level LogLevel `json:"level"`
}

// Meta carries the reserved _meta object of a request
type Meta struct {
	ProgressToken string `json:"progressToken,omitempty"`
}

// ProgressParams is the payload of notifications/progress
type ProgressParams struct {
	ProgressToken interface{} `json:"progressToken"`
	Progress      float64     `json:"progress"`
	Total         *float64    `json:"total,omitempty"`
	Message       string      `json:"message,omitempty"`
}

// PaginatedParams is embedded by list requests
type PaginatedParams struct {
	Cursor string `json:"cursor,omitempty"`
}

// PaginatedResult is embedded by list results
type PaginatedResult struct {
	NextCursor string `json:"nextCursor,omitempty"`
}
