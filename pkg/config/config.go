// Package config loads client settings from defaults, an optional YAML file
// and MCP_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/logging"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/observability"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/session"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/transport"
)

// Config is the complete client configuration
type Config struct {
	// Endpoint is the MCP server URL used when Connect is given none
	Endpoint string `yaml:"endpoint"`

	Client    ClientConfig     `yaml:"client"`
	Session   SessionConfig    `yaml:"session"`
	Log       LogConfig        `yaml:"log"`
	Metrics   MetricsConfig    `yaml:"metrics"`
	Tracing   TracingConfig    `yaml:"tracing"`
	Transport transport.Config `yaml:"transport"`
}

// ClientConfig identifies the client and bounds its waits
type ClientConfig struct {
	Name               string        `yaml:"name" env:"MCP_CLIENT_NAME"`
	Version            string        `yaml:"version" env:"MCP_CLIENT_VERSION"`
	RequestTimeout     time.Duration `yaml:"request_timeout" env:"MCP_REQUEST_TIMEOUT"`
	ElicitationTimeout time.Duration `yaml:"elicitation_timeout" env:"MCP_ELICITATION_TIMEOUT"`
	RefreshTimeout     time.Duration `yaml:"refresh_timeout" env:"MCP_REFRESH_TIMEOUT"`
	PollInterval       time.Duration `yaml:"poll_interval" env:"MCP_POLL_INTERVAL"`
}

// SessionConfig selects where the session identifier is kept
type SessionConfig struct {
	Backend string `yaml:"backend" env:"MCP_SESSION_BACKEND"`
	// Path of the JSON file for the file backend
	Path string `yaml:"path" env:"MCP_SESSION_PATH"`

	RedisAddr     string        `yaml:"redis_addr" env:"MCP_REDIS_ADDR"`
	RedisPassword string        `yaml:"redis_password" env:"MCP_REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redis_db" env:"MCP_REDIS_DB"`
	KeyPrefix     string        `yaml:"key_prefix" env:"MCP_SESSION_KEY_PREFIX"`
	TTL           time.Duration `yaml:"ttl" env:"MCP_SESSION_TTL"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"MCP_LOG_LEVEL"`
	Format string `yaml:"format" env:"MCP_LOG_FORMAT"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" env:"MCP_METRICS_ENABLED"`
	Namespace string `yaml:"namespace" env:"MCP_METRICS_NAMESPACE"`
	// Port of the /metrics listener; 0 registers metrics without serving them
	Port int `yaml:"port" env:"MCP_METRICS_PORT"`
}

type TracingConfig struct {
	// Exporter is one of noop, otlp-grpc, otlp-http
	Exporter   string  `yaml:"exporter" env:"MCP_TRACING_EXPORTER"`
	Endpoint   string  `yaml:"endpoint" env:"MCP_TRACING_ENDPOINT"`
	Insecure   bool    `yaml:"insecure" env:"MCP_TRACING_INSECURE"`
	SampleRate float64 `yaml:"sample_rate" env:"MCP_TRACING_SAMPLE_RATE"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Client: ClientConfig{
			Name:               "mcp-chat-client",
			Version:            "1.0.0",
			RequestTimeout:     30 * time.Second,
			ElicitationTimeout: 60 * time.Second,
			RefreshTimeout:     15 * time.Second,
			PollInterval:       500 * time.Millisecond,
		},
		Session: SessionConfig{
			Backend:   string(session.BackendMemory),
			RedisAddr: "localhost:6379",
			KeyPrefix: "chatbot:",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Namespace: "mcp_client",
		},
		Tracing: TracingConfig{
			Exporter:   string(observability.ExporterTypeNoop),
			SampleRate: 1.0,
		},
		Transport: transport.DefaultConfig(),
	}
}

// Load builds a Config from the defaults, the YAML file at path (skipped
// when path is empty) and the environment. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()
		if err := decodeYAML(f, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

type endpointEnv struct {
	Endpoint string `env:"MCP_ENDPOINT"`
}

// applyEnv overrides fields whose MCP_* variable is set. Defaults live in
// Default, not in tags, so unset variables never clobber file values.
// Transport has no environment overrides.
func applyEnv(cfg *Config) error {
	ep := endpointEnv{Endpoint: cfg.Endpoint}
	targets := []interface{}{&ep, &cfg.Client, &cfg.Session, &cfg.Log, &cfg.Metrics, &cfg.Tracing}
	for _, target := range targets {
		err := envdecode.Decode(target)
		if err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
			return fmt.Errorf("failed to read environment: %w", err)
		}
	}
	cfg.Endpoint = ep.Endpoint
	return nil
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	if c.Endpoint != "" {
		u, err := url.Parse(c.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("endpoint must be an http(s) URL, got %q", c.Endpoint)
		}
	}
	if c.Client.Name == "" {
		return errors.New("client name is required")
	}

	durations := []struct {
		name string
		d    time.Duration
	}{
		{"request_timeout", c.Client.RequestTimeout},
		{"elicitation_timeout", c.Client.ElicitationTimeout},
		{"refresh_timeout", c.Client.RefreshTimeout},
		{"poll_interval", c.Client.PollInterval},
	}
	for _, v := range durations {
		if v.d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", v.name, v.d)
		}
	}

	backend, err := session.ParseBackend(c.Session.Backend)
	if err != nil {
		return err
	}
	switch backend {
	case session.BackendFile:
		if c.Session.Path == "" {
			return errors.New("session path is required for the file backend")
		}
	case session.BackendRedis:
		if c.Session.RedisAddr == "" {
			return errors.New("redis address is required for the redis backend")
		}
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}

	switch observability.ExporterType(c.Tracing.Exporter) {
	case "", observability.ExporterTypeNoop:
	case observability.ExporterTypeOTLPGRPC, observability.ExporterTypeOTLPHTTP:
		if c.Tracing.Endpoint == "" {
			return fmt.Errorf("tracing endpoint is required for exporter %s", c.Tracing.Exporter)
		}
	default:
		return fmt.Errorf("unknown tracing exporter %q", c.Tracing.Exporter)
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("sample_rate must be within [0, 1], got %v", c.Tracing.SampleRate)
	}
	return nil
}

// BuildStore opens the configured session store. The returned close
// function releases the backend's connections and is never nil.
func (c *Config) BuildStore() (session.Store, func() error, error) {
	noop := func() error { return nil }

	backend, err := session.ParseBackend(c.Session.Backend)
	if err != nil {
		return nil, noop, err
	}

	switch backend {
	case session.BackendFile:
		store, err := session.NewFileStore(c.Session.Path)
		return store, noop, err
	case session.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     c.Session.RedisAddr,
			Password: c.Session.RedisPassword,
			DB:       c.Session.RedisDB,
		})
		store, err := session.NewRedisStore(session.RedisConfig{
			Client:    rdb,
			KeyPrefix: c.Session.KeyPrefix,
			TTL:       c.Session.TTL,
		})
		if err != nil {
			rdb.Close()
			return nil, noop, err
		}
		return store, rdb.Close, nil
	default:
		return session.NewMemoryStore(), noop, nil
	}
}

// BuildLogger creates a logger writing to output
func (c *Config) BuildLogger(output io.Writer) (logging.Logger, error) {
	return logging.NewFromConfig(output, c.Log.Level, c.Log.Format)
}

// BuildMetrics returns a Prometheus provider, or the no-op provider when
// metrics are disabled.
func (c *Config) BuildMetrics() (observability.MetricsProvider, error) {
	if !c.Metrics.Enabled {
		return observability.NoopMetricsProvider{}, nil
	}
	return observability.NewMetricsProvider(observability.MetricsConfig{
		ServiceName:    c.Client.Name,
		ServiceVersion: c.Client.Version,
		Enabled:        true,
		MetricsPort:    c.Metrics.Port,
		Namespace:      c.Metrics.Namespace,
	})
}

func (c *Config) BuildTracer() (*observability.TracingProvider, error) {
	return observability.NewTracingProvider(observability.TracingConfig{
		ServiceName:    c.Client.Name,
		ServiceVersion: c.Client.Version,
		ExporterType:   observability.ExporterType(c.Tracing.Exporter),
		Endpoint:       c.Tracing.Endpoint,
		Insecure:       c.Tracing.Insecure,
		SampleRate:     c.Tracing.SampleRate,
	})
}
