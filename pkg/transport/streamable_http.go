package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tmaxmax/go-sse"

	mcperrors "github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/errors"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/logging"
)

const transportName = "streamable-http"

var errClosed = errors.New("transport closed")

// StreamableHTTPTransport implements Transport using the Streamable HTTP protocol
type StreamableHTTPTransport struct {
	config Config
	client *http.Client
	logger logging.Logger

	mu              sync.RWMutex
	endpoint        string
	sessionID       string
	protocolVersion string
	lastEventID     string
	onMessage       MessageHandler
	onError         ErrorHandler
	opened          bool
	closed          bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStreamableHTTPTransport creates a new Streamable HTTP transport
func NewStreamableHTTPTransport(config Config, logger logging.Logger) *StreamableHTTPTransport {
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.WithFields(logging.Component("transport"))

	client := config.HTTPClient
	if client == nil {
		dialer := &net.Dialer{Timeout: config.Connection.DialTimeout}
		base := &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         dialer.DialContext,
			MaxIdleConns:        config.Connection.MaxIdleConns,
			MaxConnsPerHost:     config.Connection.MaxConnsPerHost,
			IdleConnTimeout:     config.Connection.IdleConnTimeout,
			TLSHandshakeTimeout: 10 * time.Second,
		}
		// No client timeout: reply streams stay open as long as the server needs.
		client = &http.Client{Transport: logging.NewRoundTripper(base, logger)}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &StreamableHTTPTransport{
		config: config,
		client: client,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Open validates endpoint and binds the transport to it
func (t *StreamableHTTPTransport) Open(ctx context.Context, endpoint, sessionID string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return mcperrors.ConnectionFailed(endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return mcperrors.ConnectionFailed(endpoint, fmt.Errorf("unsupported scheme %q", u.Scheme))
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return mcperrors.ConnectionFailed(endpoint, errClosed)
	}
	if t.opened {
		return mcperrors.ConnectionFailed(endpoint, errors.New("transport already open"))
	}

	t.endpoint = u.String()
	t.sessionID = sessionID
	t.opened = true

	t.logger.Debug("transport opened", logging.String("endpoint", u.Redacted()), logging.Bool("resume", sessionID != ""))
	return nil
}

// SessionID returns the session assigned by the server
func (t *StreamableHTTPTransport) SessionID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sessionID
}

// SetProtocolVersion records the negotiated protocol revision
func (t *StreamableHTTPTransport) SetProtocolVersion(version string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.protocolVersion = version
}

// SetMessageHandler sets the inbound message callback
func (t *StreamableHTTPTransport) SetMessageHandler(handler MessageHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onMessage = handler
}

// SetErrorHandler sets the asynchronous error callback
func (t *StreamableHTTPTransport) SetErrorHandler(handler ErrorHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onError = handler
}

// Send POSTs one JSON-RPC message
func (t *StreamableHTTPTransport) Send(ctx context.Context, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return mcperrors.ProtocolError("failed to encode message", err)
	}

	endpoint, err := t.activeEndpoint()
	if err != nil {
		return err
	}

	// The request lives as long as the transport so that a streamed reply
	// survives the caller's context; the caller may only abort the POST itself.
	reqCtx, cancel := context.WithCancel(t.ctx)
	stop := context.AfterFunc(ctx, cancel)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		stop()
		cancel()
		return mcperrors.TransportError(transportName, "send", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	t.applyHeaders(req)

	resp, err := t.client.Do(req)
	if !stop() || err != nil {
		cancel()
		if resp != nil {
			resp.Body.Close()
		}
		return t.classifyDoError(ctx, "send", err)
	}

	return t.handleReply(resp, cancel)
}

// handleReply consumes a POST reply. Ownership of cancel passes to the
// stream reader when the reply is an SSE stream.
func (t *StreamableHTTPTransport) handleReply(resp *http.Response, cancel context.CancelFunc) error {
	handedOff := false
	defer func() {
		if !handedOff {
			resp.Body.Close()
			cancel()
		}
	}()

	requestSession := t.SessionID()
	if sid := resp.Header.Get(HeaderSessionID); sid != "" {
		t.mu.Lock()
		if t.sessionID != sid {
			t.logger.Debug("session assigned", logging.String("session_id", sid))
			t.sessionID = sid
		}
		t.mu.Unlock()
	}

	if resp.StatusCode == http.StatusNotFound && requestSession != "" {
		return mcperrors.SessionInvalid(requestSession, "server returned 404 for session")
	}
	if resp.StatusCode >= 400 {
		return mcperrors.HTTPStatusError(t.endpointSnapshot(), "send", resp.StatusCode, readSnippet(resp.Body))
	}
	if resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	contentType := resp.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "text/event-stream"):
		handedOff = true
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			defer cancel()
			defer resp.Body.Close()
			if err := t.readStream(resp.Body, false); err != nil && t.ctx.Err() == nil {
				t.logger.WithError(err).Warn("reply stream ended with error")
			}
		}()
		return nil

	case strings.HasPrefix(contentType, "application/json"):
		body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBodySize()))
		if err != nil {
			return mcperrors.TransportError(transportName, "read reply", err)
		}
		if len(bytes.TrimSpace(body)) > 0 {
			t.deliver(body)
		}
		return nil

	default:
		body := readSnippet(resp.Body)
		if body == "" {
			return nil
		}
		return mcperrors.ProtocolError(fmt.Sprintf("unexpected content type %q", contentType), nil)
	}
}

// Listen opens the standalone GET stream for server-initiated messages
func (t *StreamableHTTPTransport) Listen(ctx context.Context) error {
	if !t.config.Listener.Enabled {
		return nil
	}

	resp, err := t.openListener(ctx)
	if err != nil {
		return err
	}
	if resp == nil {
		t.logger.Debug("server does not offer a listener stream")
		return nil
	}

	t.wg.Add(1)
	go t.runListener(resp)
	return nil
}

// openListener returns a nil response when the server answers 405
func (t *StreamableHTTPTransport) openListener(ctx context.Context) (*http.Response, error) {
	endpoint, err := t.activeEndpoint()
	if err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithCancel(t.ctx)
	stop := context.AfterFunc(ctx, cancel)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		stop()
		cancel()
		return nil, mcperrors.TransportError(transportName, "listen", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	t.applyHeaders(req)

	t.mu.RLock()
	lastEventID := t.lastEventID
	t.mu.RUnlock()
	if lastEventID != "" {
		req.Header.Set(HeaderLastEventID, lastEventID)
	}

	resp, err := t.client.Do(req)
	if !stop() || err != nil {
		cancel()
		if resp != nil {
			resp.Body.Close()
		}
		return nil, t.classifyDoError(ctx, "listen", err)
	}

	switch {
	case resp.StatusCode == http.StatusMethodNotAllowed:
		resp.Body.Close()
		cancel()
		return nil, nil
	case resp.StatusCode == http.StatusNotFound && t.SessionID() != "":
		resp.Body.Close()
		cancel()
		return nil, mcperrors.SessionInvalid(t.SessionID(), "server returned 404 for listener stream")
	case resp.StatusCode != http.StatusOK:
		body := readSnippet(resp.Body)
		resp.Body.Close()
		cancel()
		return nil, mcperrors.HTTPStatusError(t.endpointSnapshot(), "listen", resp.StatusCode, body)
	case !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream"):
		resp.Body.Close()
		cancel()
		return nil, mcperrors.ProtocolError("listener stream is not text/event-stream", nil)
	}

	// reqCtx is derived from the transport context, so Close ends the stream
	// and the cancel func is no longer needed once the body is closed.
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// runListener reads the listener stream and re-establishes it with
// Last-Event-ID when it drops.
func (t *StreamableHTTPTransport) runListener(resp *http.Response) {
	defer t.wg.Done()

	retries := 0
	for {
		err := t.readStream(resp.Body, true)
		resp.Body.Close()
		if t.ctx.Err() != nil {
			return
		}
		if err == nil {
			err = io.EOF
		}

		for {
			if retries >= t.config.Listener.MaxRetries {
				t.reportError(mcperrors.ConnectionLost("listener stream could not be re-established", err))
				return
			}
			retries++

			t.logger.Debug("reconnecting listener stream", logging.Int("attempt", retries), logging.ErrorField(err))
			select {
			case <-t.ctx.Done():
				return
			case <-time.After(t.config.Listener.RetryDelay):
			}

			next, openErr := t.openListener(t.ctx)
			if mcperrors.IsCategory(openErr, mcperrors.CategorySession) {
				t.reportError(openErr)
				return
			}
			if openErr != nil {
				err = openErr
				continue
			}
			if next == nil {
				return
			}
			resp = next
			retries = 0
			break
		}
	}
}

// readStream delivers every message event of an SSE body
func (t *StreamableHTTPTransport) readStream(body io.Reader, listener bool) error {
	var cfg *sse.ReadConfig
	if t.config.MaxEventSize > 0 {
		cfg = &sse.ReadConfig{MaxEventSize: t.config.MaxEventSize}
	}

	for ev, err := range sse.Read(body, cfg) {
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		if listener && ev.LastEventID != "" {
			t.mu.Lock()
			t.lastEventID = ev.LastEventID
			t.mu.Unlock()
		}

		if ev.Type != "" && ev.Type != "message" {
			t.logger.Debug("ignoring SSE event", logging.String("type", ev.Type))
			continue
		}
		// Servers send empty priming events to hand out an event id
		if strings.TrimSpace(ev.Data) == "" {
			continue
		}
		t.deliver([]byte(ev.Data))
	}
	return nil
}

// Terminate sends DELETE for the current session
func (t *StreamableHTTPTransport) Terminate(ctx context.Context) error {
	sessionID := t.SessionID()
	if sessionID == "" {
		return nil
	}
	endpoint, err := t.activeEndpoint()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return mcperrors.TransportError(transportName, "terminate", err)
	}
	t.applyHeaders(req)

	resp, err := t.client.Do(req)
	if err != nil {
		return t.classifyDoError(ctx, "terminate", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode < 300, resp.StatusCode == http.StatusMethodNotAllowed, resp.StatusCode == http.StatusNotFound:
		return nil
	default:
		return mcperrors.HTTPStatusError(endpoint, "terminate", resp.StatusCode, readSnippet(resp.Body))
	}
}

// Close stops all streams. It is safe to call more than once.
func (t *StreamableHTTPTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	t.cancel()
	t.wg.Wait()
	t.logger.Debug("transport closed")
	return nil
}

func (t *StreamableHTTPTransport) activeEndpoint() (string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return "", mcperrors.TransportError(transportName, "send", errClosed)
	}
	if !t.opened {
		return "", mcperrors.TransportError(transportName, "send", errors.New("transport not open"))
	}
	return t.endpoint, nil
}

func (t *StreamableHTTPTransport) endpointSnapshot() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.endpoint
}

func (t *StreamableHTTPTransport) applyHeaders(req *http.Request) {
	for k, v := range t.config.Headers {
		req.Header.Set(k, v)
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.sessionID != "" {
		req.Header.Set(HeaderSessionID, t.sessionID)
	}
	if t.protocolVersion != "" {
		req.Header.Set(HeaderProtocolVersion, t.protocolVersion)
	}
}

func (t *StreamableHTTPTransport) classifyDoError(ctx context.Context, operation string, err error) error {
	if ctx.Err() != nil {
		return mcperrors.Cancelled(operation, ctx.Err())
	}
	if t.ctx.Err() != nil {
		return mcperrors.TransportError(transportName, operation, errClosed)
	}
	if err == nil {
		err = errors.New("request aborted")
	}
	return mcperrors.TransportError(transportName, operation, err)
}

func (t *StreamableHTTPTransport) deliver(data []byte) {
	t.mu.RLock()
	handler := t.onMessage
	t.mu.RUnlock()

	if handler == nil {
		t.logger.Warn("dropping inbound message: no handler")
		return
	}
	handler(data)
}

func (t *StreamableHTTPTransport) reportError(err error) {
	t.mu.RLock()
	handler := t.onError
	t.mu.RUnlock()

	t.logger.WithError(err).Warn("transport failure")
	if handler != nil {
		handler(err)
	}
}

func (t *StreamableHTTPTransport) maxBodySize() int64 {
	if t.config.MaxBodySize > 0 {
		return t.config.MaxBodySize
	}
	return 8 << 20
}

func readSnippet(r io.Reader) string {
	body, _ := io.ReadAll(io.LimitReader(r, 4<<10))
	return strings.TrimSpace(string(body))
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
