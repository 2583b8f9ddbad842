package observability

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsConfig configures the metrics provider
type MetricsConfig struct {
	// Service identification
	ServiceName    string `json:"service_name" yaml:"service_name"`
	ServiceVersion string `json:"service_version" yaml:"service_version"`

	// Prometheus configuration
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	MetricsPath string `json:"metrics_path" yaml:"metrics_path"` // HTTP path for metrics endpoint (default: /metrics)
	MetricsPort int    `json:"metrics_port" yaml:"metrics_port"` // Port for metrics server; 0 disables the listener

	// Metric options
	Namespace        string    `json:"namespace" yaml:"namespace"` // Prometheus namespace (default: mcp_client)
	HistogramBuckets []float64 `json:"histogram_buckets" yaml:"histogram_buckets"`

	// Labels to add to all metrics
	ConstLabels prometheus.Labels `json:"const_labels" yaml:"const_labels"`
}

// MetricsProvider records client-side MCP metrics
type MetricsProvider interface {
	// Outbound requests, keyed by method and final status
	RecordRequest(ctx context.Context, method, status string, duration time.Duration)
	// Inbound notifications by method
	RecordNotification(ctx context.Context, method string)
	// Unmatched or late responses
	RecordDroppedResponse(ctx context.Context)

	RecordConnectionState(ctx context.Context, state string)
	RecordCatalogRefresh(ctx context.Context, kind, status string, duration time.Duration, items int)
	RecordElicitation(ctx context.Context, outcome string)
	RecordStreamPoll(ctx context.Context, tool string)

	// Management
	Handler() http.Handler
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// Connection states reported through RecordConnectionState
var connectionStates = []string{"disconnected", "connecting", "connected"}

// PrometheusMetricsProvider implements MetricsProvider using Prometheus
type PrometheusMetricsProvider struct {
	config   MetricsConfig
	registry *prometheus.Registry
	server   *http.Server
	serveErr atomic.Value
	mu       sync.Mutex

	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	notificationTotal *prometheus.CounterVec
	droppedResponses  prometheus.Counter

	connectionState *prometheus.GaugeVec

	catalogRefreshDuration *prometheus.HistogramVec
	catalogItems           *prometheus.GaugeVec

	elicitationTotal *prometheus.CounterVec
	streamPollTotal  *prometheus.CounterVec
}

// NewMetricsProvider creates a Prometheus metrics provider with its own
// registry, so several clients in one process do not collide.
func NewMetricsProvider(config MetricsConfig) (*PrometheusMetricsProvider, error) {
	if config.Namespace == "" {
		config.Namespace = "mcp_client"
	}
	if config.MetricsPath == "" {
		config.MetricsPath = "/metrics"
	}
	if config.HistogramBuckets == nil {
		// Default buckets for milliseconds
		config.HistogramBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}
	}
	if config.ConstLabels == nil {
		config.ConstLabels = prometheus.Labels{}
	}
	if config.ServiceName != "" {
		config.ConstLabels["service"] = config.ServiceName
	}
	if config.ServiceVersion != "" {
		config.ConstLabels["version"] = config.ServiceVersion
	}

	p := &PrometheusMetricsProvider{
		config:   config,
		registry: prometheus.NewRegistry(),
	}
	p.initializeMetrics()

	if err := p.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	return p, nil
}

// initializeMetrics creates all metric collectors
func (p *PrometheusMetricsProvider) initializeMetrics() {
	ns, labels, buckets := p.config.Namespace, p.config.ConstLabels, p.config.HistogramBuckets

	p.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   ns,
			Name:        "request_duration_milliseconds",
			Help:        "Duration of MCP requests in milliseconds",
			Buckets:     buckets,
			ConstLabels: labels,
		},
		[]string{"method", "status"},
	)

	p.requestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "request_total",
			Help:        "Total number of MCP requests",
			ConstLabels: labels,
		},
		[]string{"method", "status"},
	)

	p.notificationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "notification_total",
			Help:        "Total number of notifications received from the server",
			ConstLabels: labels,
		},
		[]string{"method"},
	)

	p.droppedResponses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "dropped_response_total",
			Help:        "Responses that matched no pending request",
			ConstLabels: labels,
		},
	)

	p.connectionState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   ns,
			Name:        "connection_state",
			Help:        "Current connection state (1 = active state)",
			ConstLabels: labels,
		},
		[]string{"state"},
	)

	p.catalogRefreshDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   ns,
			Name:        "catalog_refresh_duration_milliseconds",
			Help:        "Duration of catalog refreshes in milliseconds",
			Buckets:     buckets,
			ConstLabels: labels,
		},
		[]string{"kind", "status"},
	)

	p.catalogItems = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   ns,
			Name:        "catalog_items",
			Help:        "Number of entries in the last successful catalog refresh",
			ConstLabels: labels,
		},
		[]string{"kind"},
	)

	p.elicitationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "elicitation_total",
			Help:        "Elicitation requests by outcome",
			ConstLabels: labels,
		},
		[]string{"outcome"},
	)

	p.streamPollTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "stream_poll_total",
			Help:        "Poll requests issued for streaming tool calls",
			ConstLabels: labels,
		},
		[]string{"tool"},
	)
}

// registerMetrics registers all metrics with the provider's registry
func (p *PrometheusMetricsProvider) registerMetrics() error {
	collectors := []prometheus.Collector{
		p.requestDuration,
		p.requestTotal,
		p.notificationTotal,
		p.droppedResponses,
		p.connectionState,
		p.catalogRefreshDuration,
		p.catalogItems,
		p.elicitationTotal,
		p.streamPollTotal,
	}

	for _, collector := range collectors {
		if err := p.registry.Register(collector); err != nil {
			return err
		}
	}
	return nil
}

// RecordRequest records an outbound request
func (p *PrometheusMetricsProvider) RecordRequest(ctx context.Context, method, status string, duration time.Duration) {
	p.requestDuration.WithLabelValues(method, status).Observe(float64(duration.Milliseconds()))
	p.requestTotal.WithLabelValues(method, status).Inc()
}

// RecordNotification records an inbound notification
func (p *PrometheusMetricsProvider) RecordNotification(ctx context.Context, method string) {
	p.notificationTotal.WithLabelValues(method).Inc()
}

// RecordDroppedResponse counts a response nobody was waiting for
func (p *PrometheusMetricsProvider) RecordDroppedResponse(ctx context.Context) {
	p.droppedResponses.Inc()
}

// RecordConnectionState marks state as the active one
func (p *PrometheusMetricsProvider) RecordConnectionState(ctx context.Context, state string) {
	for _, s := range connectionStates {
		value := 0.0
		if s == state {
			value = 1.0
		}
		p.connectionState.WithLabelValues(s).Set(value)
	}
}

// RecordCatalogRefresh records one catalog fetch
func (p *PrometheusMetricsProvider) RecordCatalogRefresh(ctx context.Context, kind, status string, duration time.Duration, items int) {
	p.catalogRefreshDuration.WithLabelValues(kind, status).Observe(float64(duration.Milliseconds()))
	if status == "success" {
		p.catalogItems.WithLabelValues(kind).Set(float64(items))
	}
}

// RecordElicitation records how an elicitation ended
func (p *PrometheusMetricsProvider) RecordElicitation(ctx context.Context, outcome string) {
	p.elicitationTotal.WithLabelValues(outcome).Inc()
}

// RecordStreamPoll counts a poll request
func (p *PrometheusMetricsProvider) RecordStreamPoll(ctx context.Context, tool string) {
	p.streamPollTotal.WithLabelValues(tool).Inc()
}

// Registry exposes the underlying registry
func (p *PrometheusMetricsProvider) Registry() *prometheus.Registry {
	return p.registry
}

// Handler returns an HTTP handler serving this provider's metrics
func (p *PrometheusMetricsProvider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Start serves the metrics endpoint when a port is configured
func (p *PrometheusMetricsProvider) Start(ctx context.Context) error {
	if p.config.MetricsPort == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.server != nil {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(p.config.MetricsPath, p.Handler())

	addr := net.JoinHostPort("", strconv.Itoa(p.config.MetricsPort))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	p.server = srv
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.serveErr.Store(err)
		}
	}()
	return nil
}

// Shutdown stops the metrics server. It reports a serve failure that
// happened while running, if any.
func (p *PrometheusMetricsProvider) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.server == nil {
		return nil
	}
	err := p.server.Shutdown(ctx)
	p.server = nil
	if serveErr, ok := p.serveErr.Load().(error); ok && err == nil {
		err = serveErr
	}
	return err
}

// NoopMetricsProvider discards every measurement
type NoopMetricsProvider struct{}

func (NoopMetricsProvider) RecordRequest(context.Context, string, string, time.Duration)             {}
func (NoopMetricsProvider) RecordNotification(context.Context, string)                               {}
func (NoopMetricsProvider) RecordDroppedResponse(context.Context)                                    {}
func (NoopMetricsProvider) RecordConnectionState(context.Context, string)                            {}
func (NoopMetricsProvider) RecordCatalogRefresh(context.Context, string, string, time.Duration, int) {}
func (NoopMetricsProvider) RecordElicitation(context.Context, string)                                {}
func (NoopMetricsProvider) RecordStreamPoll(context.Context, string)                                 {}
func (NoopMetricsProvider) Handler() http.Handler                                                    { return http.NotFoundHandler() }
func (NoopMetricsProvider) Start(context.Context) error                                              { return nil }
func (NoopMetricsProvider) Shutdown(context.Context) error                                           { return nil }
