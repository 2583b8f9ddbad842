package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	mcperrors "github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/errors"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/logging"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/observability"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/protocol"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/session"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/transport"
)

// errNoReply makes a fake handler leave the request unanswered; the test
// may answer later through fakeCall.reply.
var errNoReply = errors.New("no reply")

type fakeCall struct {
	// ctx is the context the client passed to Send
	ctx       context.Context
	ID        interface{}
	Method    string
	Params    json.RawMessage
	transport *fakeTransport
}

func (c *fakeCall) reply(result interface{}) {
	resp, err := protocol.NewResponse(c.ID, result)
	if err != nil {
		panic(err)
	}
	c.transport.deliver(resp)
}

func (c *fakeCall) decode(v interface{}) {
	if err := json.Unmarshal(c.Params, v); err != nil {
		panic(err)
	}
}

type fakeHandler func(call *fakeCall) (interface{}, error)

// fakeServer scripts the server side of every fakeTransport it creates
type fakeServer struct {
	mu          sync.Mutex
	handlers    map[string]fakeHandler
	transports  []*fakeTransport
	sessions    map[string]bool
	nextSession int
	received    []*protocol.Message

	// responses carries the client's answers to server requests
	responses chan *protocol.Message
}

func newFakeServer() *fakeServer {
	s := &fakeServer{
		handlers:  make(map[string]fakeHandler),
		sessions:  make(map[string]bool),
		responses: make(chan *protocol.Message, 16),
	}
	s.handle(protocol.MethodInitialize, func(*fakeCall) (interface{}, error) {
		return protocol.InitializeResult{
			ProtocolVersion: protocol.ProtocolVersion,
			ServerInfo:      protocol.Implementation{Name: "fake", Version: "0.1.0"},
		}, nil
	})
	s.handle(protocol.MethodPing, func(*fakeCall) (interface{}, error) { return struct{}{}, nil })
	s.handle(protocol.MethodListTools, func(*fakeCall) (interface{}, error) {
		return protocol.ListToolsResult{Tools: []protocol.Tool{}}, nil
	})
	s.handle(protocol.MethodListPrompts, func(*fakeCall) (interface{}, error) {
		return protocol.ListPromptsResult{Prompts: []protocol.Prompt{}}, nil
	})
	s.handle(protocol.MethodListResources, func(*fakeCall) (interface{}, error) {
		return protocol.ListResourcesResult{Resources: []protocol.Resource{}}, nil
	})
	return s
}

func (s *fakeServer) handle(method string, h fakeHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
}

func (s *fakeServer) handler(method string) fakeHandler {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handlers[method]
}

func (s *fakeServer) factory() transport.Transport {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTransport{server: s}
	s.transports = append(s.transports, t)
	return t
}

func (s *fakeServer) last() *fakeTransport {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.transports) == 0 {
		return nil
	}
	return s.transports[len(s.transports)-1]
}

func (s *fakeServer) allTransports() []*fakeTransport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*fakeTransport(nil), s.transports...)
}

func (s *fakeServer) newSession() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSession++
	id := fmt.Sprintf("session-%d", s.nextSession)
	s.sessions[id] = true
	return id
}

func (s *fakeServer) validSession(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id]
}

func (s *fakeServer) expire(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

func (s *fakeServer) record(m *protocol.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, m)
}

// count returns how many client messages with method the server received
func (s *fakeServer) count(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.received {
		if m.Method == method {
			n++
		}
	}
	return n
}

// fakeTransport delivers scripted replies synchronously from Send, the way
// a JSON reply arrives on the streamable HTTP transport.
type fakeTransport struct {
	server *fakeServer

	mu         sync.Mutex
	onMessage  transport.MessageHandler
	onError    transport.ErrorHandler
	sessionID  string
	version    string
	opened     bool
	closed     bool
	terminated bool
	listening  bool
}

func (t *fakeTransport) Open(ctx context.Context, endpoint, sessionID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.opened {
		return mcperrors.TransportError("fake", "open", errors.New("transport reused"))
	}
	t.opened = true
	t.sessionID = sessionID
	return nil
}

func (t *fakeTransport) Send(ctx context.Context, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	msgs, err := protocol.ParseMessages(data)
	if err != nil {
		return err
	}
	m := msgs[0]

	t.mu.Lock()
	closed, sid := t.closed, t.sessionID
	t.mu.Unlock()
	if closed {
		return mcperrors.TransportError("fake", "send", errors.New("transport closed"))
	}
	if sid != "" && !t.server.validSession(sid) {
		return mcperrors.SessionInvalid(sid, "session not found")
	}

	t.server.record(m)

	switch m.Kind() {
	case protocol.KindResponse:
		select {
		case t.server.responses <- m:
		default:
		}
		return nil
	case protocol.KindNotification:
		return nil
	}

	if m.Method == protocol.MethodInitialize {
		id := t.server.newSession()
		t.mu.Lock()
		t.sessionID = id
		t.mu.Unlock()
	}

	h := t.server.handler(m.Method)
	if h == nil {
		t.deliver(protocol.NewErrorResponse(m.ID, protocol.MethodNotFound, "method not found", nil))
		return nil
	}

	result, err := h(&fakeCall{ctx: ctx, ID: m.ID, Method: m.Method, Params: m.Params, transport: t})
	switch {
	case errors.Is(err, errNoReply):
		return nil
	case mcperrors.IsConnectionFatal(err):
		return err
	case err != nil:
		rpcErr := mcperrors.ToJSONRPCError(err)
		t.deliver(protocol.NewErrorResponse(m.ID, rpcErr.Code, rpcErr.Message, nil))
		return nil
	}

	resp, err := protocol.NewResponse(m.ID, result)
	if err != nil {
		return err
	}
	t.deliver(resp)
	return nil
}

func (t *fakeTransport) deliver(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	t.mu.Lock()
	h, closed := t.onMessage, t.closed
	t.mu.Unlock()
	if h != nil && !closed {
		h(data)
	}
}

// push sends a server-initiated message to the client
func (t *fakeTransport) push(method string, id interface{}, params interface{}) {
	if id == nil {
		n, err := protocol.NewNotification(method, params)
		if err != nil {
			panic(err)
		}
		t.deliver(n)
		return
	}
	req, err := protocol.NewRequest(id, method, params)
	if err != nil {
		panic(err)
	}
	t.deliver(req)
}

// fail reports an asynchronous transport failure
func (t *fakeTransport) fail(err error) {
	t.mu.Lock()
	h := t.onError
	t.mu.Unlock()
	if h != nil {
		h(err)
	}
}

func (t *fakeTransport) Listen(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listening = true
	return nil
}

func (t *fakeTransport) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

func (t *fakeTransport) SetProtocolVersion(version string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.version = version
}

func (t *fakeTransport) SetMessageHandler(handler transport.MessageHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onMessage = handler
}

func (t *fakeTransport) SetErrorHandler(handler transport.ErrorHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onError = handler
}

func (t *fakeTransport) Terminate(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.terminated = true
	if t.sessionID != "" {
		t.server.mu.Lock()
		delete(t.server.sessions, t.sessionID)
		t.server.mu.Unlock()
	}
	return nil
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *fakeTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *fakeTransport) isTerminated() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.terminated
}

// recordingStore is a session store that remembers the order of writes
type recordingStore struct {
	*session.MemoryStore

	mu  sync.Mutex
	ops []string
}

func newRecordingStore() *recordingStore {
	return &recordingStore{MemoryStore: session.NewMemoryStore()}
}

func (s *recordingStore) Save(ctx context.Context, id string) error {
	s.mu.Lock()
	s.ops = append(s.ops, "save:"+id)
	s.mu.Unlock()
	return s.MemoryStore.Save(ctx, id)
}

func (s *recordingStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.ops = append(s.ops, "clear")
	s.mu.Unlock()
	return s.MemoryStore.Clear(ctx)
}

func (s *recordingStore) history() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ops...)
}

func newTestClient(t *testing.T, srv *fakeServer, opts ...ClientOption) *Client {
	t.Helper()
	base := []ClientOption{
		WithEndpoint("http://fake/mcp"),
		WithTransportFactory(srv.factory),
		WithLogger(logging.NewNop()),
		WithMetrics(observability.NoopMetricsProvider{}),
		WithRequestTimeout(2 * time.Second),
		WithPollInterval(10 * time.Millisecond),
	}
	c := New(append(base, opts...)...)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func connectTestClient(t *testing.T, srv *fakeServer, opts ...ClientOption) *Client {
	t.Helper()
	c := newTestClient(t, srv, opts...)
	require.NoError(t, c.Connect(context.Background(), ""))
	return c
}

// waitCatalog waits until the catalog of kind satisfies cond
func waitCatalog(t *testing.T, c *Client, kind CatalogKind, cond func([]CatalogEntry) bool) []CatalogEntry {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for entries := range c.SubscribeCatalog(ctx, kind) {
		if cond(entries) {
			return entries
		}
	}
	t.Fatalf("catalog %s never reached the expected state; last %v", kind, c.Catalog(kind))
	return nil
}
