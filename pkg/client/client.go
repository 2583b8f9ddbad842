package client

import (
	"context"
	"sync"
	"time"

	mcperrors "github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/errors"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/logging"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/observability"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/pagination"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/protocol"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/pubsub"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/session"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/transport"
)

// terminateTimeout bounds the session DELETE sent on disconnect
const terminateTimeout = 5 * time.Second

// SupportedProtocolVersions lists the revisions this client accepts from
// initialize, newest first.
var SupportedProtocolVersions = []string{protocol.ProtocolVersion, "2025-03-26"}

// ConnectionState is the lifecycle state of a Client
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// connection is everything that lives exactly as long as one session
type connection struct {
	endpoint   string
	transport  transport.Transport
	correlator *correlator
	ctx        context.Context
	cancel     context.CancelFunc
	server     protocol.InitializeResult
	sessionID  string
	resumed    bool
}

// Client is an MCP client bound to at most one server session at a time.
// All methods are safe for concurrent use.
type Client struct {
	opts    clientOptions
	logger  logging.Logger
	metrics observability.MetricsProvider
	tracer  *observability.TracingProvider
	store   session.Store

	state     *pubsub.Signal[ConnectionState]
	connected *pubsub.Signal[bool]
	errors    *pubsub.Topic[error]

	dispatcher  *dispatcher
	catalog     *catalogCache
	elicitation *elicitationBridge
	streams     *streamInvoker

	// connMu serializes Connect, Reconnect, Disconnect and teardown
	connMu       sync.Mutex
	mu           sync.RWMutex
	conn         *connection
	lastEndpoint string

	bgMu    sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

// New creates a disconnected client
func New(options ...ClientOption) *Client {
	opts := defaultOptions()
	for _, option := range options {
		option(&opts)
	}
	if opts.logger == nil {
		opts.logger = logging.Default()
	}
	if opts.metrics == nil {
		opts.metrics = observability.NoopMetricsProvider{}
	}
	if opts.tracer == nil {
		opts.tracer = observability.NewNoopTracingProvider()
	}
	if opts.store == nil {
		opts.store = session.NewMemoryStore()
	}
	if opts.transportFactory == nil {
		config, logger := opts.transportConfig, opts.logger
		opts.transportFactory = func() transport.Transport {
			return transport.NewStreamableHTTPTransport(config, logger)
		}
	}

	logger := opts.logger.WithFields(logging.Component("client"))
	c := &Client{
		opts:        opts,
		logger:      logger,
		metrics:     opts.metrics,
		tracer:      opts.tracer,
		store:       opts.store,
		state:       pubsub.NewSignal(StateDisconnected),
		connected:   pubsub.NewSignal(false),
		errors:      pubsub.NewTopic[error](pubsub.DefaultBuffer),
		dispatcher:  newDispatcher(opts.logger, opts.metrics),
		catalog:     newCatalogCache(opts.logger, opts.metrics),
		elicitation: newElicitationBridge(opts.elicitationTimeout, opts.logger, opts.metrics),
	}
	c.streams = &streamInvoker{
		sender:   requesterFunc(c.request),
		progress: func(ctx context.Context) <-chan Notification { return c.dispatcher.Subscribe(ctx, NotificationProgress) },
		interval: opts.pollInterval,
		logger:   opts.logger.WithFields(logging.Component("streaming")),
		metrics:  opts.metrics,
	}
	c.dispatcher.onListChanged = c.onListChanged
	c.dispatcher.onCancelled = c.elicitation.AbortID
	return c
}

// requesterFunc adapts a function to the requester interface
type requesterFunc func(ctx context.Context, method string, params, result interface{}) error

func (f requesterFunc) Send(ctx context.Context, method string, params, result interface{}) error {
	return f(ctx, method, params, result)
}

// Connect opens a new session with endpoint, or the configured endpoint
// when it is empty. An existing session is fully torn down first.
func (c *Client) Connect(ctx context.Context, endpoint string) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.isClosing() {
		return mcperrors.NotConnected("connect on closed client")
	}
	if endpoint == "" {
		endpoint = c.opts.endpoint
	}
	if endpoint == "" {
		return mcperrors.InvalidArgument("endpoint", "no endpoint given or configured")
	}

	c.teardownLocked(ctx, true, true)
	c.lastEndpoint = endpoint
	return c.establish(ctx, endpoint, "")
}

// Reconnect resumes the persisted session. It fails with NoSession when no
// identifier is stored.
func (c *Client) Reconnect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.isClosing() {
		return mcperrors.NotConnected("reconnect on closed client")
	}

	id, ok, err := c.store.Load(ctx)
	if err != nil {
		return mcperrors.WrapError(err, mcperrors.CodeNoSession, "failed to load session", mcperrors.CategoryState, mcperrors.SeverityError)
	}
	if !ok || id == "" {
		return mcperrors.NoSession()
	}

	endpoint := c.lastEndpoint
	if endpoint == "" {
		endpoint = c.opts.endpoint
	}
	if endpoint == "" {
		return mcperrors.InvalidArgument("endpoint", "no endpoint to reconnect to")
	}

	// Keep the stored id: it is the session being resumed
	c.teardownLocked(ctx, false, false)
	c.lastEndpoint = endpoint
	return c.establish(ctx, endpoint, id)
}

// establish runs one connection attempt. On failure nothing of the attempt
// survives.
func (c *Client) establish(ctx context.Context, endpoint, sessionID string) error {
	c.setState(ctx, StateConnecting)

	t := c.opts.transportFactory()
	conn := &connection{endpoint: endpoint, transport: t}
	conn.ctx, conn.cancel = context.WithCancel(context.Background())
	conn.correlator = newCorrelator(t, c.opts.requestTimeout, c.opts.logger, c.metrics, c.tracer)
	conn.correlator.onFailure = func(err error) { c.handleFatal(conn, err) }

	t.SetMessageHandler(func(data []byte) { c.routeMessage(conn, data) })
	t.SetErrorHandler(func(err error) { c.handleFatal(conn, err) })
	c.dispatcher.reset()

	logger := c.logger.WithFields(logging.String("endpoint", endpoint))
	logger.Info("connecting", logging.Bool("resume", sessionID != ""))

	fail := func(err error) error {
		conn.correlator.FailAll(err)
		conn.cancel()
		if closeErr := t.Close(); closeErr != nil {
			logger.Debug("failed to close transport", logging.ErrorField(closeErr))
		}
		if mcperrors.IsConnectionFatal(err) {
			c.clearSession(ctx)
		}
		c.setState(ctx, StateDisconnected)
		logger.Warn("connect failed", logging.ErrorField(err))
		return err
	}

	if err := t.Open(ctx, endpoint, sessionID); err != nil {
		return fail(err)
	}

	if sessionID == "" {
		if err := c.handshake(ctx, conn); err != nil {
			return fail(err)
		}
	} else {
		// The server negotiated this session already; check it is still alive
		t.SetProtocolVersion(protocol.ProtocolVersion)
		if err := conn.correlator.Send(ctx, protocol.MethodPing, nil, nil); err != nil {
			return fail(err)
		}
		conn.resumed = true
	}

	conn.sessionID = t.SessionID()
	if conn.sessionID != "" {
		if err := c.store.Save(ctx, conn.sessionID); err != nil {
			logger.Warn("failed to persist session", logging.ErrorField(err))
		}
	}

	if err := t.Listen(ctx); err != nil {
		if mcperrors.IsCategory(err, mcperrors.CategorySession) {
			return fail(err)
		}
		logger.Warn("listener stream unavailable", logging.ErrorField(err))
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.setState(ctx, StateConnected)
	logger.Info("connected",
		logging.String("session_id", conn.sessionID),
		logging.String("server", conn.server.ServerInfo.Name),
		logging.Bool("resumed", conn.resumed))

	c.refreshInBackground(conn, CatalogKinds...)
	return nil
}

func (c *Client) handshake(ctx context.Context, conn *connection) error {
	params := protocol.InitializeParams{
		ProtocolVersion: protocol.ProtocolVersion,
		Capabilities:    protocol.ClientCapabilities{Elicitation: &struct{}{}},
		ClientInfo:      protocol.Implementation{Name: c.opts.name, Version: c.opts.version},
	}

	var result protocol.InitializeResult
	if err := conn.correlator.Send(ctx, protocol.MethodInitialize, params, &result); err != nil {
		return err
	}
	if !supportedVersion(result.ProtocolVersion) {
		return mcperrors.VersionMismatch(protocol.ProtocolVersion, result.ProtocolVersion)
	}
	conn.transport.SetProtocolVersion(result.ProtocolVersion)
	conn.server = result

	return conn.correlator.Notify(ctx, protocol.MethodInitialized, nil)
}

func supportedVersion(v string) bool {
	for _, s := range SupportedProtocolVersions {
		if s == v {
			return true
		}
	}
	return false
}

// Disconnect ends the session and clears its persisted identifier. It is a
// no-op when already disconnected.
func (c *Client) Disconnect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	c.teardownLocked(ctx, true, true)
	return nil
}

// teardownLocked drops the current connection. The caller holds connMu.
func (c *Client) teardownLocked(ctx context.Context, terminate, clearStore bool) {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return
	}

	conn.correlator.FailAll(mcperrors.NotConnected("request interrupted by disconnect"))
	c.elicitation.Abort("disconnected")

	if terminate {
		termCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), terminateTimeout)
		if err := conn.transport.Terminate(termCtx); err != nil {
			c.logger.Debug("failed to terminate session", logging.ErrorField(err))
		}
		cancel()
	}

	conn.cancel()
	if err := conn.transport.Close(); err != nil {
		c.logger.Debug("failed to close transport", logging.ErrorField(err))
	}
	if clearStore {
		c.clearSession(ctx)
	}
	c.catalog.Reset()
	c.setState(ctx, StateDisconnected)
	c.logger.Info("disconnected", logging.String("session_id", conn.sessionID))
}

// handleFatal tears down conn after a transport or session failure. It
// ignores connections that are no longer current.
func (c *Client) handleFatal(conn *connection, err error) {
	c.spawn(func() {
		c.connMu.Lock()
		defer c.connMu.Unlock()

		c.mu.Lock()
		current := c.conn == conn
		if current {
			c.conn = nil
		}
		c.mu.Unlock()
		if !current {
			return
		}

		c.logger.Error("connection lost", logging.String("endpoint", conn.endpoint), logging.ErrorField(err))
		conn.correlator.FailAll(err)
		c.elicitation.Abort("connection lost")
		conn.cancel()
		if closeErr := conn.transport.Close(); closeErr != nil {
			c.logger.Debug("failed to close transport", logging.ErrorField(closeErr))
		}
		c.clearSession(context.Background())
		c.catalog.Reset()
		c.setState(context.Background(), StateDisconnected)
		c.errors.Publish(err)
	})
}

func (c *Client) clearSession(ctx context.Context) {
	if err := c.store.Clear(context.WithoutCancel(ctx)); err != nil {
		c.logger.Warn("failed to clear session", logging.ErrorField(err))
	}
}

func (c *Client) setState(ctx context.Context, s ConnectionState) {
	c.state.Set(s)
	c.connected.Set(s == StateConnected)
	c.metrics.RecordConnectionState(ctx, s.String())
}

// routeMessage sorts one inbound payload into responses, notifications and
// server requests.
func (c *Client) routeMessage(conn *connection, data []byte) {
	msgs, err := protocol.ParseMessages(data)
	if err != nil {
		c.logger.Warn("dropping undecodable message", logging.ErrorField(mcperrors.ProtocolError("invalid JSON-RPC payload", err)))
		return
	}

	for _, msg := range msgs {
		switch msg.Kind() {
		case protocol.KindResponse:
			conn.correlator.HandleResponse(msg.AsResponse())
		case protocol.KindNotification:
			c.dispatcher.Dispatch(conn.ctx, msg.AsNotification())
		case protocol.KindRequest:
			req := msg.AsRequest()
			c.spawn(func() { c.serveRequest(conn, req) })
		default:
			c.logger.Warn("dropping invalid JSON-RPC message")
		}
	}
}

// serveRequest answers one server-initiated request
func (c *Client) serveRequest(conn *connection, req *protocol.Request) {
	id := protocol.IDString(req.ID)

	var result interface{}
	var err error
	switch req.Method {
	case protocol.MethodElicitationCreate:
		result, err = c.elicitation.Handle(conn.ctx, id, req.Params)
	case protocol.MethodPing:
		result = struct{}{}
	default:
		err = mcperrors.NewError(mcperrors.CodeMethodNotFound, "method not found: "+req.Method, mcperrors.CategoryRemote, mcperrors.SeverityWarning)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.opts.requestTimeout)
	defer cancel()
	if sendErr := conn.correlator.Respond(ctx, req.ID, result, err); sendErr != nil {
		c.logger.Warn("failed to answer server request",
			logging.String("method", req.Method),
			logging.String("request_id", id),
			logging.ErrorField(sendErr))
	}
}

func (c *Client) onListChanged(kind CatalogKind) {
	if conn := c.currentConn(); conn != nil {
		c.catalog.Invalidate(kind)
		c.refreshInBackground(conn, kind)
	}
}

// refreshInBackground refreshes each kind on its own goroutine, bounded by
// the refresh timeout and the life of conn.
func (c *Client) refreshInBackground(conn *connection, kinds ...CatalogKind) {
	for _, kind := range kinds {
		c.spawn(func() {
			ctx, cancel := context.WithTimeout(conn.ctx, c.opts.refreshTimeout)
			defer cancel()
			if _, err := c.catalog.Refresh(ctx, conn.correlator, kind); err != nil {
				c.logger.Debug("background refresh failed", logging.String("kind", string(kind)), logging.ErrorField(err))
			}
		})
	}
}

// spawn runs fn on a goroutine that Close waits for
func (c *Client) spawn(fn func()) bool {
	c.bgMu.Lock()
	defer c.bgMu.Unlock()
	if c.closing {
		return false
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn()
	}()
	return true
}

func (c *Client) isClosing() bool {
	c.bgMu.Lock()
	defer c.bgMu.Unlock()
	return c.closing
}

func (c *Client) currentConn() *connection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

// request sends method on the current connection
func (c *Client) request(ctx context.Context, method string, params, result interface{}) error {
	conn := c.currentConn()
	if conn == nil {
		return mcperrors.NotConnected(method)
	}
	return conn.correlator.Send(ctx, method, params, result)
}

// Close disconnects, waits for background work and ends every subscription
func (c *Client) Close() error {
	c.bgMu.Lock()
	if c.closing {
		c.bgMu.Unlock()
		return nil
	}
	c.closing = true
	c.bgMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), terminateTimeout)
	defer cancel()

	c.connMu.Lock()
	c.teardownLocked(ctx, true, true)
	c.connMu.Unlock()

	c.elicitation.close()
	c.wg.Wait()

	c.dispatcher.close()
	c.catalog.close()
	c.errors.Close()
	c.state.Close()
	c.connected.Close()

	var firstErr error
	for _, closer := range c.opts.closers {
		if err := closer(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// State returns the current connection state
func (c *Client) State() ConnectionState {
	return c.state.Get()
}

// SubscribeState replays the current state, then every transition
func (c *Client) SubscribeState(ctx context.Context) <-chan ConnectionState {
	return c.state.Subscribe(ctx)
}

func (c *Client) IsConnected() bool {
	return c.connected.Get()
}

func (c *Client) SubscribeConnected(ctx context.Context) <-chan bool {
	return c.connected.Subscribe(ctx)
}

// Errors delivers asynchronous connection failures
func (c *Client) Errors(ctx context.Context) <-chan error {
	return c.errors.Subscribe(ctx)
}

// Notifications delivers future server notifications of kind
func (c *Client) Notifications(ctx context.Context, kind NotificationKind) <-chan Notification {
	return c.dispatcher.Subscribe(ctx, kind)
}

// Catalog returns the last fetched catalog of kind
func (c *Client) Catalog(kind CatalogKind) []CatalogEntry {
	return c.catalog.Get(kind)
}

func (c *Client) Tools() []CatalogEntry     { return c.catalog.Get(CatalogTools) }
func (c *Client) Prompts() []CatalogEntry   { return c.catalog.Get(CatalogPrompts) }
func (c *Client) Resources() []CatalogEntry { return c.catalog.Get(CatalogResources) }

// SubscribeCatalog replays the current catalog of kind, then every
// replacement.
func (c *Client) SubscribeCatalog(ctx context.Context, kind CatalogKind) <-chan []CatalogEntry {
	return c.catalog.Subscribe(ctx, kind)
}

// CatalogErrors delivers failed refreshes
func (c *Client) CatalogErrors(ctx context.Context) <-chan CatalogError {
	return c.catalog.Errors(ctx)
}

// RefreshCatalog refetches one catalog now
func (c *Client) RefreshCatalog(ctx context.Context, kind CatalogKind) ([]CatalogEntry, error) {
	conn := c.currentConn()
	if conn == nil {
		return nil, mcperrors.NotConnected("refresh " + string(kind))
	}
	return c.catalog.Refresh(ctx, conn.correlator, kind)
}

func (c *Client) RefreshTools(ctx context.Context) ([]CatalogEntry, error) {
	return c.RefreshCatalog(ctx, CatalogTools)
}

func (c *Client) RefreshPrompts(ctx context.Context) ([]CatalogEntry, error) {
	return c.RefreshCatalog(ctx, CatalogPrompts)
}

func (c *Client) RefreshResources(ctx context.Context) ([]CatalogEntry, error) {
	return c.RefreshCatalog(ctx, CatalogResources)
}

// RefreshCatalogs refetches every catalog concurrently
func (c *Client) RefreshCatalogs(ctx context.Context) error {
	conn := c.currentConn()
	if conn == nil {
		return mcperrors.NotConnected("refresh catalogs")
	}
	return c.catalog.RefreshAll(ctx, conn.correlator)
}

// Elicitations delivers each server question as it arrives
func (c *Client) Elicitations(ctx context.Context) <-chan ElicitationPrompt {
	return c.elicitation.prompts.Subscribe(ctx)
}

// SubscribeCurrentElicitation replays the pending prompt (nil when idle),
// then every change.
func (c *Client) SubscribeCurrentElicitation(ctx context.Context) <-chan *ElicitationPrompt {
	return c.elicitation.current.Subscribe(ctx)
}

func (c *Client) CurrentElicitation() (ElicitationPrompt, bool) {
	return c.elicitation.Current()
}

func (c *Client) ElicitationState() ElicitationState {
	return c.elicitation.State()
}

func (c *Client) ElicitationOutcomes(ctx context.Context) <-chan ElicitationOutcome {
	return c.elicitation.outcomes.Subscribe(ctx)
}

// SubmitElicitationAnswer answers the pending server question
func (c *Client) SubmitElicitationAnswer(answer ElicitationAnswer) error {
	return c.elicitation.Submit(answer)
}

// ServerInfo returns what the server reported during initialize. It is
// empty for resumed sessions.
func (c *Client) ServerInfo() (protocol.InitializeResult, bool) {
	conn := c.currentConn()
	if conn == nil {
		return protocol.InitializeResult{}, false
	}
	return conn.server, true
}

func (c *Client) SessionID() string {
	if conn := c.currentConn(); conn != nil {
		return conn.sessionID
	}
	return ""
}

// CallTool invokes a tool. A result flagged isError is returned together
// with a ToolError.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]interface{}) (*protocol.CallToolResult, error) {
	var result protocol.CallToolResult
	if err := c.request(ctx, protocol.MethodCallTool, protocol.CallToolParams{Name: name, Arguments: args}, &result); err != nil {
		return nil, err
	}
	if result.IsError {
		return &result, mcperrors.ToolError(name, result.Text())
	}
	return &result, nil
}

// InvokeStreaming calls a tool in streaming mode. The returned channel
// yields accumulated content until exactly one terminal event.
func (c *Client) InvokeStreaming(ctx context.Context, name string, args map[string]interface{}) (<-chan StreamEvent, error) {
	if c.currentConn() == nil {
		return nil, mcperrors.NotConnected(protocol.MethodCallTool)
	}
	if name == "" {
		return nil, mcperrors.InvalidArgument("tool", "name is required")
	}
	return c.streams.Invoke(ctx, name, args), nil
}

func (c *Client) GetPrompt(ctx context.Context, name string, args map[string]string) (*protocol.GetPromptResult, error) {
	var result protocol.GetPromptResult
	if err := c.request(ctx, protocol.MethodGetPrompt, protocol.GetPromptParams{Name: name, Arguments: args}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ReadResource(ctx context.Context, uri string) (*protocol.ReadResourceResult, error) {
	var result protocol.ReadResourceResult
	if err := c.request(ctx, protocol.MethodReadResource, protocol.ReadResourceParams{URI: uri}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ReadResourceTemplate expands an RFC 6570 template with vars and reads
// the resulting URI.
func (c *Client) ReadResourceTemplate(ctx context.Context, template string, vars map[string]string) (*protocol.ReadResourceResult, error) {
	uri, err := protocol.ExpandURITemplate(template, vars)
	if err != nil {
		return nil, mcperrors.InvalidArgument("uri template", err.Error())
	}
	return c.ReadResource(ctx, uri)
}

// ListResourceTemplates returns every resource template, following pagination
func (c *Client) ListResourceTemplates(ctx context.Context) ([]protocol.ResourceTemplate, error) {
	return pagination.FetchAll(ctx, func(ctx context.Context, cursor string) ([]protocol.ResourceTemplate, string, error) {
		var result protocol.ListResourceTemplatesResult
		params := protocol.PaginatedParams{Cursor: cursor}
		if err := c.request(ctx, protocol.MethodListResourceTemplates, params, &result); err != nil {
			return nil, "", err
		}
		return result.ResourceTemplates, result.NextCursor, nil
	})
}

// SetLogLevel asks the server to send notifications/message at level and above
func (c *Client) SetLogLevel(ctx context.Context, level protocol.LogLevel) error {
	return c.request(ctx, protocol.MethodSetLogLevel, protocol.SetLevelParams{Level: level}, nil)
}

func (c *Client) Ping(ctx context.Context) error {
	return c.request(ctx, protocol.MethodPing, nil, nil)
}
