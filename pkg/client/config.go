package client

import (
	"context"
	"io"
	"os"

	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/config"
)

// NewFromConfig builds a Client with the store, logger, metrics and tracer
// described by cfg. Logs go to stderr. Options are applied after the
// configured ones and may override them. Resources created here are
// released by Close.
func NewFromConfig(cfg *config.Config, options ...ClientOption) (*Client, error) {
	return newFromConfig(cfg, os.Stderr, options...)
}

func newFromConfig(cfg *config.Config, logOutput io.Writer, options ...ClientOption) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := cfg.BuildLogger(logOutput)
	if err != nil {
		return nil, err
	}

	store, closeStore, err := cfg.BuildStore()
	if err != nil {
		return nil, err
	}

	metrics, err := cfg.BuildMetrics()
	if err != nil {
		closeStore()
		return nil, err
	}

	tracer, err := cfg.BuildTracer()
	if err != nil {
		closeStore()
		metrics.Shutdown(context.Background())
		return nil, err
	}

	base := []ClientOption{
		WithName(cfg.Client.Name),
		WithVersion(cfg.Client.Version),
		WithEndpoint(cfg.Endpoint),
		WithSessionStore(store),
		WithTransportConfig(cfg.Transport),
		WithLogger(logger),
		WithMetrics(metrics),
		WithTracing(tracer),
		WithRequestTimeout(cfg.Client.RequestTimeout),
		WithElicitationTimeout(cfg.Client.ElicitationTimeout),
		WithPollInterval(cfg.Client.PollInterval),
		WithRefreshTimeout(cfg.Client.RefreshTimeout),
		withCloser(tracer.Shutdown),
		withCloser(metrics.Shutdown),
		withCloser(func(context.Context) error { return closeStore() }),
	}
	return New(append(base, options...)...), nil
}
