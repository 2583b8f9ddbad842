package client

import (
	"context"
	"time"

	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/logging"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/observability"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/session"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/transport"
)

// Defaults applied by New
const (
	DefaultName               = "mcp-chat-client"
	DefaultVersion            = "1.0.0"
	DefaultRequestTimeout     = 30 * time.Second
	DefaultElicitationTimeout = 60 * time.Second
	DefaultPollInterval       = 500 * time.Millisecond
	DefaultRefreshTimeout     = 15 * time.Second
)

type clientOptions struct {
	name     string
	version  string
	endpoint string

	store            session.Store
	transportFactory transport.Factory
	transportConfig  transport.Config

	logger  logging.Logger
	metrics observability.MetricsProvider
	tracer  *observability.TracingProvider

	requestTimeout     time.Duration
	elicitationTimeout time.Duration
	pollInterval       time.Duration
	refreshTimeout     time.Duration

	// closers run when the client is closed, for resources the client owns
	closers []func(ctx context.Context) error
}

func defaultOptions() clientOptions {
	return clientOptions{
		name:               DefaultName,
		version:            DefaultVersion,
		transportConfig:    transport.DefaultConfig(),
		requestTimeout:     DefaultRequestTimeout,
		elicitationTimeout: DefaultElicitationTimeout,
		pollInterval:       DefaultPollInterval,
		refreshTimeout:     DefaultRefreshTimeout,
	}
}

// ClientOption configures a Client
type ClientOption func(*clientOptions)

// WithName sets the client name sent during initialize
func WithName(name string) ClientOption {
	return func(o *clientOptions) {
		o.name = name
	}
}

// WithVersion sets the client version sent during initialize
func WithVersion(version string) ClientOption {
	return func(o *clientOptions) {
		o.version = version
	}
}

// WithEndpoint sets the server URL used when Connect is given none
func WithEndpoint(endpoint string) ClientOption {
	return func(o *clientOptions) {
		o.endpoint = endpoint
	}
}

// WithSessionStore sets where the session identifier is persisted
func WithSessionStore(store session.Store) ClientOption {
	return func(o *clientOptions) {
		o.store = store
	}
}

// WithTransportFactory replaces the streamable HTTP transport. The factory
// is called once per connection attempt.
func WithTransportFactory(factory transport.Factory) ClientOption {
	return func(o *clientOptions) {
		o.transportFactory = factory
	}
}

func WithTransportConfig(config transport.Config) ClientOption {
	return func(o *clientOptions) {
		o.transportConfig = config
	}
}

func WithLogger(logger logging.Logger) ClientOption {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

func WithMetrics(metrics observability.MetricsProvider) ClientOption {
	return func(o *clientOptions) {
		o.metrics = metrics
	}
}

func WithTracing(tracer *observability.TracingProvider) ClientOption {
	return func(o *clientOptions) {
		o.tracer = tracer
	}
}

// WithRequestTimeout bounds the wait for each response
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) {
		if d > 0 {
			o.requestTimeout = d
		}
	}
}

// WithElicitationTimeout bounds how long a server question waits for the
// user before it is declined.
func WithElicitationTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) {
		if d > 0 {
			o.elicitationTimeout = d
		}
	}
}

// WithPollInterval sets the delay between polls of a streaming tool call
func WithPollInterval(d time.Duration) ClientOption {
	return func(o *clientOptions) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithRefreshTimeout bounds background catalog refreshes
func WithRefreshTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) {
		if d > 0 {
			o.refreshTimeout = d
		}
	}
}

func withCloser(fn func(ctx context.Context) error) ClientOption {
	return func(o *clientOptions) {
		o.closers = append(o.closers, fn)
	}
}
