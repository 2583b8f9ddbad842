// Package transport implements the client side of the MCP streamable HTTP
// transport.
//
// Every JSON-RPC message is POSTed to the server endpoint. The server answers
// with a JSON body, with an SSE stream carrying the reply and any related
// server requests, or with 202 Accepted for notifications and responses. The
// session identifier assigned by the server travels in the Mcp-Session-Id
// header. An optional GET stream carries server-initiated messages and is
// resumed with Last-Event-ID when it drops.
//
// Usage:
//
//	t := transport.NewStreamableHTTPTransport(transport.DefaultConfig(), logger)
//	t.SetMessageHandler(func(data []byte) { ... })
//	if err := t.Open(ctx, "https://example.com/mcp", ""); err != nil {
//		return err
//	}
//	defer t.Close()
package transport
