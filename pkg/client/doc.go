// Package client implements the client side of an MCP session over the
// streamable HTTP transport, as needed by an interactive assistant.
//
// A Client owns at most one session at a time. Around it sit the pieces an
// assistant UI observes:
//
//   - Connection state: State and SubscribeState, IsConnected and
//     SubscribeConnected
//   - Catalogs: the tools, prompts and resources last listed by the server,
//     refreshed after connect and on list_changed notifications
//   - Notifications: server log messages, list changes and progress
//   - Elicitations: questions the server asks the user mid-request
//   - Errors: asynchronous connection failures
//
// State-like values are delivered through replaying signals, events through
// topics; see package pubsub.
//
// # Connecting
//
//	c := client.New(
//	    client.WithName("assistant"),
//	    client.WithSessionStore(session.NewMemoryStore()),
//	)
//	defer c.Close()
//
//	if err := c.Connect(ctx, "http://localhost:8080/mcp"); err != nil {
//	    return err
//	}
//
//	tools, cancel := context.WithCancel(ctx)
//	defer cancel()
//	for entries := range c.SubscribeCatalog(tools, client.CatalogTools) {
//	    render(entries)
//	}
//
// Reconnect resumes the session whose identifier is in the session store.
//
// # Answering elicitations
//
// A server may ask for user input while one of its own requests is running.
// The Client publishes the question and holds the server's request open
// until SubmitElicitationAnswer is called, the wait times out (the answer
// becomes decline) or the connection ends (cancel). Only one question may be
// pending; a second one is refused.
//
//	for prompt := range c.Elicitations(ctx) {
//	    content := askUser(prompt.Message, prompt.Fields)
//	    err := c.SubmitElicitationAnswer(client.ElicitationAnswer{
//	        Action:  protocol.ElicitAccept,
//	        Content: content,
//	    })
//	    // an invalid answer leaves the question pending
//	}
//
// # Streaming tool calls
//
// InvokeStreaming calls a tool with the stream flag and polls until the
// server marks the result complete. Each event carries the text accumulated
// so far; the last one has Done or Err set.
package client
