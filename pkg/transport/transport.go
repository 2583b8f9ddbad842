package transport

import (
	"context"
	"net/http"
	"time"
)

// HTTP headers defined by the streamable HTTP transport
const (
	HeaderSessionID       = "Mcp-Session-Id"
	HeaderProtocolVersion = "MCP-Protocol-Version"
	HeaderLastEventID     = "Last-Event-ID"
)

// Transport moves JSON-RPC messages between the client and one server
// endpoint. A Transport is used for a single connection attempt: once Close
// has been called it cannot be reopened.
type Transport interface {
	// Open binds the transport to endpoint. A non-empty sessionID resumes an
	// existing server session.
	Open(ctx context.Context, endpoint, sessionID string) error

	// Send transmits one JSON-RPC message. Messages the server returns in
	// reply, including those on a streamed reply, are passed to the message
	// handler. Send returns once the server has accepted the message.
	Send(ctx context.Context, message interface{}) error

	// Listen opens the standalone stream used for server-initiated messages.
	// It returns nil when the server does not offer one.
	Listen(ctx context.Context) error

	// SessionID returns the session assigned by the server, if any
	SessionID() string

	// SetProtocolVersion records the negotiated revision for later requests
	SetProtocolVersion(version string)

	SetMessageHandler(handler MessageHandler)
	SetErrorHandler(handler ErrorHandler)

	// Terminate asks the server to end the session
	Terminate(ctx context.Context) error

	// Close stops every stream and waits for the readers to exit
	Close() error
}

// MessageHandler receives each inbound JSON-RPC payload. It is called from
// reader goroutines and must not block for long.
type MessageHandler func(data []byte)

// ErrorHandler receives asynchronous failures, e.g. a listener stream that
// could not be re-established.
type ErrorHandler func(err error)

// Factory creates a fresh transport for each connection attempt
type Factory func() Transport

// Config configures the streamable HTTP transport
type Config struct {
	// Headers are added to every request, e.g. Authorization
	Headers map[string]string `json:"headers,omitempty" yaml:"headers"`

	Connection ConnectionConfig `json:"connection" yaml:"connection"`
	Listener   ListenerConfig   `json:"listener" yaml:"listener"`

	// MaxEventSize bounds a single SSE event. Zero uses the parser default.
	MaxEventSize int `json:"max_event_size" yaml:"max_event_size"`
	// MaxBodySize bounds a JSON reply body
	MaxBodySize int64 `json:"max_body_size" yaml:"max_body_size"`

	// HTTPClient overrides the client built from Connection
	HTTPClient *http.Client `json:"-" yaml:"-"`
}

// ConnectionConfig for connection management
type ConnectionConfig struct {
	DialTimeout     time.Duration `json:"dial_timeout" yaml:"dial_timeout"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`
	MaxConnsPerHost int           `json:"max_conns_per_host" yaml:"max_conns_per_host"`
	IdleConnTimeout time.Duration `json:"idle_conn_timeout" yaml:"idle_conn_timeout"`
}

// ListenerConfig controls the standalone server-to-client stream
type ListenerConfig struct {
	Enabled    bool          `json:"enabled" yaml:"enabled"`
	MaxRetries int           `json:"max_retries" yaml:"max_retries"`
	RetryDelay time.Duration `json:"retry_delay" yaml:"retry_delay"`
}

// DefaultConfig returns the configuration used when none is given
func DefaultConfig() Config {
	return Config{
		Headers: map[string]string{},
		Connection: ConnectionConfig{
			DialTimeout:     10 * time.Second,
			MaxIdleConns:    10,
			MaxConnsPerHost: 4,
			IdleConnTimeout: 90 * time.Second,
		},
		Listener: ListenerConfig{
			Enabled:    true,
			MaxRetries: 3,
			RetryDelay: time.Second,
		},
		MaxEventSize: 4 << 20,
		MaxBodySize:  8 << 20,
	}
}
