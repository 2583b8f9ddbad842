package client

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	mcperrors "github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/errors"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/logging"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/observability"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/protocol"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/pubsub"
)

// ElicitationState is the state of the elicitation bridge
type ElicitationState int

const (
	ElicitationIdle ElicitationState = iota
	ElicitationAwaitingAnswer
)

func (s ElicitationState) String() string {
	if s == ElicitationAwaitingAnswer {
		return "awaiting-answer"
	}
	return "idle"
}

// How an elicitation was resolved
const (
	OutcomeAnswered = "answered"
	OutcomeTimeout  = "timeout"
	OutcomeAborted  = "aborted"
)

// ElicitationPrompt is a server question waiting for the user
type ElicitationPrompt struct {
	// ID is the JSON-RPC id of the server's elicitation/create request
	ID          string
	Message     string
	Fields      []FieldDescriptor
	Schema      json.RawMessage
	RequestedAt time.Time
}

// ElicitationAnswer is the user's reply. Content is only read for accept.
type ElicitationAnswer struct {
	Action  protocol.ElicitAction
	Content map[string]interface{}
}

// ElicitationOutcome reports how a prompt was resolved
type ElicitationOutcome struct {
	PromptID string
	Action   protocol.ElicitAction
	Outcome  string
}

type pendingElicitation struct {
	prompt ElicitationPrompt
	form   *formSchema
	answer chan protocol.ElicitResult
	done   chan struct{}
}

// elicitationBridge turns elicitation/create requests into prompts and
// relays the first terminal answer back to the waiting request handler.
type elicitationBridge struct {
	timeout time.Duration
	logger  logging.Logger
	metrics observability.MetricsProvider

	prompts  *pubsub.Topic[ElicitationPrompt]
	outcomes *pubsub.Topic[ElicitationOutcome]
	current  *pubsub.Signal[*ElicitationPrompt]

	mu      sync.Mutex
	pending *pendingElicitation
}

func newElicitationBridge(timeout time.Duration, logger logging.Logger, metrics observability.MetricsProvider) *elicitationBridge {
	return &elicitationBridge{
		timeout:  timeout,
		logger:   logger.WithFields(logging.Component("elicitation")),
		metrics:  metrics,
		prompts:  pubsub.NewTopic[ElicitationPrompt](pubsub.DefaultBuffer),
		outcomes: pubsub.NewTopic[ElicitationOutcome](pubsub.DefaultBuffer),
		current:  pubsub.NewSignal[*ElicitationPrompt](nil),
	}
}

// Handle serves one elicitation/create request. It blocks until the user
// answers, the wait times out, or ctx ends.
func (b *elicitationBridge) Handle(ctx context.Context, requestID string, params json.RawMessage) (*protocol.ElicitResult, error) {
	var req protocol.ElicitRequestParams
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, mcperrors.InvalidArgument("elicitation params", err.Error())
	}
	form, err := parseFormSchema(req.RequestedSchema)
	if err != nil {
		return nil, mcperrors.InvalidArgument("requestedSchema", err.Error())
	}

	p := &pendingElicitation{
		prompt: ElicitationPrompt{
			ID:          requestID,
			Message:     req.Message,
			Fields:      form.fields,
			Schema:      req.RequestedSchema,
			RequestedAt: time.Now(),
		},
		form:   form,
		answer: make(chan protocol.ElicitResult, 1),
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	if b.pending != nil {
		busy := b.pending.prompt.ID
		b.mu.Unlock()
		b.logger.Warn("rejecting elicitation while another is pending",
			logging.String("request_id", requestID),
			logging.String("pending_id", busy))
		b.metrics.RecordElicitation(ctx, "rejected")
		return nil, mcperrors.ElicitationBusy(busy)
	}
	b.pending = p
	b.mu.Unlock()

	prompt := p.prompt
	b.current.Set(&prompt)
	b.prompts.Publish(prompt)
	b.logger.Debug("awaiting elicitation answer", logging.String("request_id", requestID), logging.Int("fields", len(form.fields)))

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case <-p.done:
	case <-timer.C:
		if b.finish(p, protocol.ElicitResult{Action: protocol.ElicitDecline}, OutcomeTimeout) {
			b.logger.Warn("elicitation timed out", logging.String("request_id", requestID), logging.Duration("timeout", b.timeout))
		}
	case <-ctx.Done():
		b.finish(p, protocol.ElicitResult{Action: protocol.ElicitCancel}, OutcomeAborted)
	}

	// Whichever resolution won is in the slot
	result := <-p.answer
	return &result, nil
}

// finish resolves p if it is still the pending prompt. Only the first
// resolution of a prompt takes effect.
func (b *elicitationBridge) finish(p *pendingElicitation, result protocol.ElicitResult, outcome string) bool {
	b.mu.Lock()
	if b.pending != p {
		b.mu.Unlock()
		return false
	}
	b.pending = nil
	b.mu.Unlock()

	p.answer <- result
	close(p.done)

	b.current.Set(nil)
	b.outcomes.Publish(ElicitationOutcome{PromptID: p.prompt.ID, Action: result.Action, Outcome: outcome})

	label := outcome
	if outcome == OutcomeAnswered {
		label = string(result.Action)
	}
	b.metrics.RecordElicitation(context.Background(), label)
	return true
}

// Submit resolves the pending prompt with answer. Invalid accept content is
// rejected and the prompt stays pending.
func (b *elicitationBridge) Submit(answer ElicitationAnswer) error {
	b.mu.Lock()
	p := b.pending
	b.mu.Unlock()
	if p == nil {
		return mcperrors.NoPendingElicitation()
	}

	if !answer.Action.Valid() {
		return mcperrors.InvalidArgument("action", "must be accept, decline or cancel")
	}

	result := protocol.ElicitResult{Action: answer.Action}
	if answer.Action == protocol.ElicitAccept {
		content, err := p.form.normalize(answer.Content)
		if err != nil {
			b.logger.Debug("answer rejected", logging.String("request_id", p.prompt.ID), logging.ErrorField(err))
			return err
		}
		result.Content = content
	}

	if !b.finish(p, result, OutcomeAnswered) {
		// Timed out or aborted while the answer was being validated
		return mcperrors.NoPendingElicitation()
	}
	return nil
}

// Abort cancels the pending prompt, if any
func (b *elicitationBridge) Abort(reason string) {
	b.mu.Lock()
	p := b.pending
	b.mu.Unlock()
	if p != nil && b.finish(p, protocol.ElicitResult{Action: protocol.ElicitCancel}, OutcomeAborted) {
		b.logger.Info("elicitation aborted", logging.String("request_id", p.prompt.ID), logging.String("reason", reason))
	}
}

// AbortID cancels the pending prompt only if it belongs to requestID
func (b *elicitationBridge) AbortID(requestID string) {
	b.mu.Lock()
	p := b.pending
	b.mu.Unlock()
	if p == nil || p.prompt.ID != requestID {
		return
	}
	if b.finish(p, protocol.ElicitResult{Action: protocol.ElicitCancel}, OutcomeAborted) {
		b.logger.Info("elicitation cancelled by server", logging.String("request_id", requestID))
	}
}

func (b *elicitationBridge) State() ElicitationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending != nil {
		return ElicitationAwaitingAnswer
	}
	return ElicitationIdle
}

// Current returns the prompt awaiting an answer
func (b *elicitationBridge) Current() (ElicitationPrompt, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending == nil {
		return ElicitationPrompt{}, false
	}
	return b.pending.prompt, true
}

func (b *elicitationBridge) close() {
	b.Abort("client closed")
	b.prompts.Close()
	b.outcomes.Close()
	b.current.Close()
}
