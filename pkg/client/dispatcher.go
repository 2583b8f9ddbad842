package client

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	mcperrors "github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/errors"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/logging"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/observability"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/protocol"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/pubsub"
)

// NotificationKind selects a notification stream
type NotificationKind string

const (
	NotificationLoggingMessage      NotificationKind = "logging-message"
	NotificationResourceListChanged NotificationKind = "resource-list-changed"
	NotificationToolListChanged     NotificationKind = "tool-list-changed"
	NotificationPromptListChanged   NotificationKind = "prompt-list-changed"
	NotificationProgress            NotificationKind = "progress"
)

var notificationKinds = map[string]NotificationKind{
	protocol.MethodLogMessage:           NotificationLoggingMessage,
	protocol.MethodResourcesListChanged: NotificationResourceListChanged,
	protocol.MethodToolsListChanged:     NotificationToolListChanged,
	protocol.MethodPromptsListChanged:   NotificationPromptListChanged,
	protocol.MethodProgress:             NotificationProgress,
}

// listChangedCatalogs maps list_changed notifications to the catalog they invalidate
var listChangedCatalogs = map[NotificationKind]CatalogKind{
	NotificationResourceListChanged: CatalogResources,
	NotificationToolListChanged:     CatalogTools,
	NotificationPromptListChanged:   CatalogPrompts,
}

// Notification is a server notification delivered to subscribers
type Notification struct {
	Kind   NotificationKind
	Method string
	// Seq increases monotonically per connection and restarts at 1 after
	// every connect.
	Seq        uint64
	ReceivedAt time.Time

	// Set for logging-message
	Level  protocol.LogLevel
	Logger string
	Data   json.RawMessage

	// Set for progress
	Progress *protocol.ProgressParams
}

// dispatcher fans server notifications out to per-kind topics. It is the
// only writer of those topics.
type dispatcher struct {
	logger  logging.Logger
	metrics observability.MetricsProvider
	topics  map[NotificationKind]*pubsub.Topic[Notification]
	seq     atomic.Uint64

	// onListChanged starts a background catalog refresh. It must not block.
	onListChanged func(kind CatalogKind)
	// onCancelled is told when the server abandons one of its requests
	onCancelled func(requestID string)
}

func newDispatcher(logger logging.Logger, metrics observability.MetricsProvider) *dispatcher {
	d := &dispatcher{
		logger:  logger.WithFields(logging.Component("dispatcher")),
		metrics: metrics,
		topics:  make(map[NotificationKind]*pubsub.Topic[Notification]),
	}
	for _, kind := range notificationKinds {
		d.topics[kind] = pubsub.NewTopic[Notification](pubsub.DefaultBuffer)
	}
	return d
}

// Subscribe returns future notifications of kind. Unknown kinds yield a
// closed channel.
func (d *dispatcher) Subscribe(ctx context.Context, kind NotificationKind) <-chan Notification {
	topic, ok := d.topics[kind]
	if !ok {
		ch := make(chan Notification)
		close(ch)
		return ch
	}
	return topic.Subscribe(ctx)
}

// reset restarts the sequence counter for a new connection
func (d *dispatcher) reset() {
	d.seq.Store(0)
}

// Dispatch routes one server notification. It never blocks on subscribers
// or on the catalog refresh it may trigger.
func (d *dispatcher) Dispatch(ctx context.Context, n *protocol.Notification) {
	d.metrics.RecordNotification(ctx, n.Method)

	if n.Method == protocol.MethodCancelled {
		var params protocol.CancelledParams
		if err := json.Unmarshal(n.Params, &params); err != nil {
			d.logger.Warn("malformed cancellation", logging.ErrorField(err))
			return
		}
		if d.onCancelled != nil {
			d.onCancelled(protocol.IDString(params.RequestID))
		}
		return
	}

	kind, ok := notificationKinds[n.Method]
	if !ok {
		d.logger.Debug("ignoring notification", logging.String("method", n.Method))
		return
	}

	event := Notification{
		Kind:       kind,
		Method:     n.Method,
		Seq:        d.seq.Add(1),
		ReceivedAt: time.Now(),
	}

	switch kind {
	case NotificationLoggingMessage:
		var params protocol.LoggingMessageParams
		if err := json.Unmarshal(n.Params, &params); err != nil {
			d.logger.Warn("malformed log message", logging.ErrorField(mcperrors.ProtocolError("bad notifications/message params", err)))
			return
		}
		event.Level, event.Logger, event.Data = params.Level, params.Logger, params.Data
		d.logger.Debug("server log",
			logging.String("level", string(params.Level)),
			logging.String("logger", params.Logger),
			logging.Any("seq", event.Seq),
			logging.String("data", string(params.Data)))

	case NotificationProgress:
		var params protocol.ProgressParams
		if err := json.Unmarshal(n.Params, &params); err != nil {
			d.logger.Warn("malformed progress", logging.ErrorField(err))
			return
		}
		event.Progress = &params
	}

	d.topics[kind].Publish(event)

	if catalogKind, ok := listChangedCatalogs[kind]; ok && d.onListChanged != nil {
		d.onListChanged(catalogKind)
	}
}

func (d *dispatcher) close() {
	for _, topic := range d.topics {
		topic.Close()
	}
}
