package client

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	mcperrors "github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/errors"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/logging"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/observability"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/protocol"
)

// StreamEvent is one update of a streaming tool call. Content is always the
// full text accumulated so far. The last event on the channel has Done or
// Err set.
type StreamEvent struct {
	Content  string
	Progress *float64
	Done     bool
	Err      error
}

// streamAccumulator collects the output of one streaming call
type streamAccumulator struct {
	tool     string
	token    string
	content  strings.Builder
	progress *float64
}

func (a *streamAccumulator) event() StreamEvent {
	return StreamEvent{Content: a.content.String(), Progress: a.progress}
}

func (a *streamAccumulator) complete() StreamEvent {
	full := 100.0
	return StreamEvent{Content: a.content.String(), Progress: &full, Done: true}
}

// streamInvoker emulates streaming over request/response: one call with the
// stream flag, then polls until the server marks the result complete.
type streamInvoker struct {
	sender   requester
	progress func(ctx context.Context) <-chan Notification
	interval time.Duration
	logger   logging.Logger
	metrics  observability.MetricsProvider
}

// Invoke starts the call and returns its event channel. The channel is
// closed after the terminal event, or when ctx ends.
func (s *streamInvoker) Invoke(ctx context.Context, tool string, args map[string]interface{}) <-chan StreamEvent {
	out := make(chan StreamEvent, 16)
	go s.run(ctx, tool, args, out)
	return out
}

func (s *streamInvoker) run(ctx context.Context, tool string, args map[string]interface{}, out chan<- StreamEvent) {
	defer close(out)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	acc := &streamAccumulator{tool: tool, token: uuid.NewString()}
	logger := s.logger.WithFields(logging.String("tool", tool), logging.String("progress_token", acc.token))

	// Subscribe before the first call so early progress is not missed
	progress := s.progress(ctx)

	params := protocol.CallToolParams{
		Name:      tool,
		Arguments: args,
		Stream:    true,
		Meta:      &protocol.Meta{ProgressToken: acc.token},
	}

	done, err := s.call(ctx, params, acc, true)
	if err != nil {
		s.fail(ctx, out, logger, err)
		return
	}
	if done {
		s.emit(ctx, out, acc.complete())
		return
	}
	if !s.emit(ctx, out, acc.event()) {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	params.Poll = true
	for {
		select {
		case <-ctx.Done():
			s.fail(ctx, out, logger, mcperrors.Cancelled("streaming "+tool, ctx.Err()))
			return

		case n, ok := <-progress:
			if !ok {
				progress = nil
				continue
			}
			if n.Progress == nil || protocol.IDString(n.Progress.ProgressToken) != acc.token {
				continue
			}
			acc.progress = percent(n.Progress)
			if !s.emit(ctx, out, acc.event()) {
				return
			}

		case <-ticker.C:
			s.metrics.RecordStreamPoll(ctx, tool)
			done, err := s.call(ctx, params, acc, false)
			if err != nil {
				s.fail(ctx, out, logger, err)
				return
			}
			if done {
				s.emit(ctx, out, acc.complete())
				return
			}
			if !s.emit(ctx, out, acc.event()) {
				return
			}
		}
	}
}

// call issues one tools/call and folds its result into acc. A missing
// completion marker ends the stream only on the initial call.
func (s *streamInvoker) call(ctx context.Context, params protocol.CallToolParams, acc *streamAccumulator, initial bool) (bool, error) {
	var res protocol.CallToolResult
	if err := s.sender.Send(ctx, protocol.MethodCallTool, params, &res); err != nil {
		return false, err
	}
	if res.IsError {
		return false, mcperrors.ToolError(params.Name, res.Text())
	}

	acc.content.WriteString(res.Text())
	if res.Progress != nil {
		p := *res.Progress
		acc.progress = &p
	}

	if res.Complete == nil {
		return initial, nil
	}
	return *res.Complete, nil
}

// emit delivers ev unless ctx ends first
func (s *streamInvoker) emit(ctx context.Context, out chan<- StreamEvent, ev StreamEvent) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// fail delivers the terminal error event. When ctx is already done the
// consumer may be gone, so the send is only attempted if there is room.
func (s *streamInvoker) fail(ctx context.Context, out chan<- StreamEvent, logger logging.Logger, err error) {
	logger.Debug("streaming call failed", logging.ErrorField(err))
	ev := StreamEvent{Err: err}
	if ctx.Err() != nil {
		select {
		case out <- ev:
		default:
		}
		return
	}
	s.emit(ctx, out, ev)
}

func percent(p *protocol.ProgressParams) *float64 {
	v := p.Progress
	if p.Total != nil && *p.Total > 0 {
		v = 100 * p.Progress / *p.Total
	}
	return &v
}
