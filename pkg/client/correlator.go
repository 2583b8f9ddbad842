package client

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	mcperrors "github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/errors"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/logging"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/observability"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/protocol"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/transport"
)

// cancelNoticeTimeout bounds the best-effort notifications/cancelled send
const cancelNoticeTimeout = 2 * time.Second

// pendingRequest is one outstanding request. Its result slot is written at
// most once.
type pendingRequest struct {
	id       string
	method   string
	issuedAt time.Time
	result   chan callResult
	once     sync.Once
}

type callResult struct {
	response *protocol.Response
	err      error
}

func (p *pendingRequest) resolve(r callResult) bool {
	resolved := false
	p.once.Do(func() {
		p.result <- r
		resolved = true
	})
	return resolved
}

// correlator pairs outbound requests with their responses for one
// connection. It is discarded with the connection.
type correlator struct {
	transport transport.Transport
	timeout   time.Duration
	logger    logging.Logger
	metrics   observability.MetricsProvider
	tracer    *observability.TracingProvider

	// onFailure is told about transport failures so the connection can be
	// torn down. It must not block.
	onFailure func(error)

	mu      sync.Mutex
	pending map[string]*pendingRequest
	failed  error
}

func newCorrelator(t transport.Transport, timeout time.Duration, logger logging.Logger, metrics observability.MetricsProvider, tracer *observability.TracingProvider) *correlator {
	return &correlator{
		transport: t,
		timeout:   timeout,
		logger:    logger.WithFields(logging.Component("correlator")),
		metrics:   metrics,
		tracer:    tracer,
		pending:   make(map[string]*pendingRequest),
	}
}

// Send issues method and decodes the result into result, which may be nil.
func (c *correlator) Send(ctx context.Context, method string, params, result interface{}) error {
	id := uuid.NewString()
	start := time.Now()

	ctx, span := c.tracer.StartMethodSpan(ctx, method, attribute.String("mcp.request_id", id))
	defer span.End()

	err := c.roundTrip(ctx, id, method, params, result)
	c.metrics.RecordRequest(ctx, method, requestStatus(err), time.Since(start))
	if err != nil {
		c.tracer.RecordError(ctx, err)
	}
	return err
}

func (c *correlator) roundTrip(ctx context.Context, id, method string, params, result interface{}) error {
	req, err := protocol.NewRequest(id, method, params)
	if err != nil {
		return mcperrors.ProtocolError("failed to encode "+method+" params", err)
	}

	p, err := c.register(id, method)
	if err != nil {
		return err
	}
	defer c.remove(id)

	logger := c.logger.WithContext(logging.ContextWithRequestID(ctx, id))
	logger.Debug("sending request", logging.String("method", method))

	// The deadline covers the POST too: a JSON reply arrives while Send is
	// still blocked.
	sendCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.transport.Send(sendCtx, req); err != nil {
		if sendCtx.Err() != nil {
			return c.abandon(ctx, p, method, result, logger)
		}
		if mcperrors.IsConnectionFatal(err) && c.onFailure != nil {
			c.onFailure(err)
		}
		return err
	}

	select {
	case r := <-p.result:
		return r.decode(method, result)
	case <-sendCtx.Done():
		return c.abandon(ctx, p, method, result, logger)
	}
}

// abandon gives up on p once its deadline or the caller's context ends. A
// response that already resolved p still wins.
func (c *correlator) abandon(ctx context.Context, p *pendingRequest, method string, result interface{}, logger logging.Logger) error {
	if !p.resolve(callResult{}) {
		r := <-p.result
		return r.decode(method, result)
	}

	if ctx.Err() != nil {
		c.cancelRemote(ctx, p.id, "cancelled by client")
		return mcperrors.Cancelled(method, ctx.Err())
	}
	logger.Warn("request timed out", logging.String("method", method), logging.Duration("timeout", c.timeout))
	c.cancelRemote(ctx, p.id, "timeout")
	return mcperrors.Timeout(method, c.timeout)
}

func (r callResult) decode(method string, result interface{}) error {
	if r.err != nil {
		return r.err
	}
	return decodeResponse(method, r.response, result)
}

func (c *correlator) register(id, method string) (*pendingRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failed != nil {
		return nil, c.failed
	}

	p := &pendingRequest{
		id:       id,
		method:   method,
		issuedAt: time.Now(),
		result:   make(chan callResult, 1),
	}
	c.pending[id] = p
	return p, nil
}

func (c *correlator) remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
}

// cancelRemote tells the server to stop working on an abandoned request
func (c *correlator) cancelRemote(ctx context.Context, id, reason string) {
	c.tracer.AddEvent(ctx, "mcp.cancel", attribute.String("mcp.cancel_reason", reason))
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelNoticeTimeout)
	defer cancel()

	if err := c.Notify(ctx, protocol.MethodCancelled, protocol.CancelledParams{RequestID: id, Reason: reason}); err != nil {
		c.logger.Debug("failed to send cancellation", logging.String("request_id", id), logging.ErrorField(err))
	}
}

// HandleResponse resolves the pending request matching resp. Responses for
// unknown ids are dropped: they are late answers to requests that already
// timed out or were cancelled.
func (c *correlator) HandleResponse(resp *protocol.Response) {
	id := protocol.IDString(resp.ID)

	c.mu.Lock()
	p, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if !ok || !p.resolve(callResult{response: resp}) {
		c.logger.Warn("dropping response with no pending request", logging.String("request_id", id))
		c.metrics.RecordDroppedResponse(context.Background())
	}
}

// FailAll resolves every pending request with err and rejects later sends
func (c *correlator) FailAll(err error) {
	c.mu.Lock()
	if c.failed == nil {
		c.failed = err
	}
	pending := c.pending
	c.pending = make(map[string]*pendingRequest)
	c.mu.Unlock()

	for _, p := range pending {
		p.resolve(callResult{err: err})
	}
	if len(pending) > 0 {
		c.logger.Debug("failed pending requests", logging.Int("count", len(pending)), logging.ErrorField(err))
	}
}

// Pending returns the number of outstanding requests
func (c *correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Notify sends a notification; no response is expected
func (c *correlator) Notify(ctx context.Context, method string, params interface{}) error {
	n, err := protocol.NewNotification(method, params)
	if err != nil {
		return mcperrors.ProtocolError("failed to encode "+method+" params", err)
	}
	return c.transport.Send(ctx, n)
}

// Respond answers a server-initiated request
func (c *correlator) Respond(ctx context.Context, id interface{}, result interface{}, callErr error) error {
	var resp *protocol.Response
	if callErr != nil {
		rpcErr := mcperrors.ToJSONRPCError(callErr)
		resp = protocol.NewErrorResponse(id, rpcErr.Code, rpcErr.Message, rpcErr.Data)
	} else {
		var err error
		if resp, err = protocol.NewResponse(id, result); err != nil {
			return mcperrors.ProtocolError("failed to encode response", err)
		}
	}
	return c.transport.Send(ctx, resp)
}

func decodeResponse(method string, resp *protocol.Response, result interface{}) error {
	if resp.Error != nil {
		return mcperrors.FromJSONRPCError(method, resp.Error)
	}
	if result == nil {
		return nil
	}
	if len(resp.Result) == 0 {
		return mcperrors.ProtocolError(method+" response has no result", nil)
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return mcperrors.ProtocolError("failed to decode "+method+" result", err)
	}
	return nil
}

func requestStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case mcperrors.IsCategory(err, mcperrors.CategoryTimeout):
		return "timeout"
	case mcperrors.IsCategory(err, mcperrors.CategoryCancelled):
		return "cancelled"
	case mcperrors.IsConnectionFatal(err):
		return "transport_error"
	default:
		return "error"
	}
}
