// Package mcp provides the client side of a Model Context Protocol chat
// application.
//
// The client connects to one MCP server over the streamable HTTP transport,
// keeps the server's tools, prompts and resources in an observable catalog,
// answers server questions (elicitations) through the user interface, and
// runs long tool calls as a stream of incremental results.
//
// # Overview
//
// The module consists of several sub-packages:
//
//   - pkg/client: Connection lifecycle, catalog, elicitation bridge and streaming calls
//   - pkg/config: Defaults, YAML file and MCP_* environment configuration
//   - pkg/protocol: MCP and JSON-RPC 2.0 message types
//   - pkg/transport: The streamable HTTP transport with SSE support
//   - pkg/session: Persistence of the session identifier (memory, file, Redis)
//   - pkg/pubsub: Replaying signals and fan-out topics used for observable state
//   - pkg/pagination: Cursor pagination helpers
//   - pkg/errors: Categorised MCP errors
//   - pkg/logging, pkg/observability: Structured logs, Prometheus metrics and tracing
//
// # Creating a Client
//
//	import (
//	    "context"
//	    "github.com/AbhilashPoshanagari/AI-powered-chatbot"
//	)
//
//	func main() {
//	    cfg, err := mcp.LoadConfig("client.yaml")
//	    if err != nil {
//	        // Handle error
//	    }
//	    client, err := mcp.NewClientFromConfig(cfg)
//	    if err != nil {
//	        // Handle error
//	    }
//	    defer client.Close()
//
//	    ctx := context.Background()
//	    if err := client.Connect(ctx, "http://localhost:8000/mcp"); err != nil {
//	        // Handle error
//	    }
//
//	    for _, tool := range client.Tools() {
//	        fmt.Println(tool.DisplayName)
//	    }
//	}
//
// # Answering Server Questions
//
// A server may ask the user for structured input in the middle of a tool
// call. The prompt is published on Client.Elicitations together with the
// flattened form fields; the interface answers with SubmitElicitationAnswer.
// Only one question is pending at a time and unanswered questions are
// declined after the elicitation timeout.
//
// # Streaming Tool Calls
//
//	events, err := client.InvokeStreaming(ctx, "generate_report", args)
//	if err != nil {
//	    // Handle error
//	}
//	for ev := range events {
//	    if ev.Err != nil {
//	        // Handle error
//	    }
//	    render(ev.Content)
//	}
//
// See examples/chat-client for a complete terminal client.
package mcp
