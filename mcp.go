// Package mcp is the client core of an MCP chat application
package mcp

import (
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/client"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/config"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/protocol"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/session"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/transport"
)

// Version represents the current version of the module
const Version = "1.0.0"

// ProtocolVersion is the MCP revision the client negotiates
const ProtocolVersion = protocol.ProtocolVersion

// These exports provide direct access to the core components
var (
	// NewClient creates a new MCP client
	NewClient = client.New

	// NewClientFromConfig creates a client from a loaded configuration
	NewClientFromConfig = client.NewFromConfig

	// LoadConfig reads defaults, an optional YAML file and MCP_* variables
	LoadConfig = config.Load

	// NewStreamableHTTPTransport creates a new Streamable HTTP transport
	NewStreamableHTTPTransport = transport.NewStreamableHTTPTransport
)

// Session stores
var (
	NewMemorySessionStore = session.NewMemoryStore
	NewFileSessionStore   = session.NewFileStore
	NewRedisSessionStore  = session.NewRedisStore
)

// Client options
var (
	WithClientName         = client.WithName
	WithClientVersion      = client.WithVersion
	WithEndpoint           = client.WithEndpoint
	WithSessionStore       = client.WithSessionStore
	WithLogger             = client.WithLogger
	WithRequestTimeout     = client.WithRequestTimeout
	WithElicitationTimeout = client.WithElicitationTimeout
	WithPollInterval       = client.WithPollInterval
)
