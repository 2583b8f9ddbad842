// Package protocol defines the wire types used by the chat client to talk to
// Model Context Protocol servers.
//
// The Model Context Protocol (MCP) is JSON-RPC 2.0 based. This package covers
// the subset of the 2025-06-18 revision that a chat client consumes:
//
//   - jsonrpc.go: request, response and notification envelopes, batch parsing
//   - mcp.go: method names, the initialize handshake, logging and progress payloads
//   - tools.go, prompts.go, resources.go: catalog entries and their call/read payloads
//   - elicitation.go: server-initiated requests for user input
//
// # Streaming tool calls
//
// A server that supports incremental tool output accepts "stream": true in
// tools/call and reports "complete" and "progress" in each result. Follow-up
// calls carry "poll": true and the progress token of the original call.
package protocol
