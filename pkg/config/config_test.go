package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/observability"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/session"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "client.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 30*time.Second, cfg.Client.RequestTimeout)
	assert.Equal(t, 60*time.Second, cfg.Client.ElicitationTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Client.PollInterval)
	assert.Equal(t, "memory", cfg.Session.Backend)
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Client, cfg.Client)
}

func TestLoadFileThenEnvironment(t *testing.T) {
	path := writeConfig(t, `
endpoint: http://localhost:8000/mcp
client:
  name: chat-ui
  request_timeout: 5s
session:
  backend: file
  path: /tmp/chat/session.json
log:
  level: debug
  format: json
transport:
  headers:
    Authorization: Bearer abc
`)
	t.Setenv("MCP_ENDPOINT", "https://mcp.example.com/mcp")
	t.Setenv("MCP_POLL_INTERVAL", "250ms")
	t.Setenv("MCP_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://mcp.example.com/mcp", cfg.Endpoint, "environment wins over the file")
	assert.Equal(t, "chat-ui", cfg.Client.Name)
	assert.Equal(t, 5*time.Second, cfg.Client.RequestTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Client.PollInterval)
	assert.Equal(t, 60*time.Second, cfg.Client.ElicitationTimeout, "unset values keep their default")
	assert.Equal(t, "file", cfg.Session.Backend)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "Bearer abc", cfg.Transport.Headers["Authorization"])
	assert.True(t, cfg.Transport.Listener.Enabled)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "client:\n  nmae: typo\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, "mcp-chat-client", cfg.Client.Name)
}

func TestLoadBadEnvironment(t *testing.T) {
	t.Setenv("MCP_REQUEST_TIMEOUT", "soon")
	_, err := Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"relative endpoint", func(c *Config) { c.Endpoint = "/mcp" }},
		{"ws endpoint", func(c *Config) { c.Endpoint = "ws://localhost/mcp" }},
		{"empty name", func(c *Config) { c.Client.Name = "" }},
		{"zero request timeout", func(c *Config) { c.Client.RequestTimeout = 0 }},
		{"negative poll interval", func(c *Config) { c.Client.PollInterval = -time.Second }},
		{"unknown backend", func(c *Config) { c.Session.Backend = "etcd" }},
		{"file backend without path", func(c *Config) { c.Session.Backend = "file" }},
		{"redis backend without addr", func(c *Config) {
			c.Session.Backend = "redis"
			c.Session.RedisAddr = ""
		}},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
		{"unknown exporter", func(c *Config) { c.Tracing.Exporter = "jaeger" }},
		{"otlp without endpoint", func(c *Config) { c.Tracing.Exporter = "otlp-http" }},
		{"sample rate above one", func(c *Config) { c.Tracing.SampleRate = 1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestBuildStore(t *testing.T) {
	cfg := Default()
	store, closeStore, err := cfg.BuildStore()
	require.NoError(t, err)
	assert.IsType(t, &session.MemoryStore{}, store)
	assert.NoError(t, closeStore())

	cfg.Session.Backend = "file"
	cfg.Session.Path = filepath.Join(t.TempDir(), "session.json")
	store, closeStore, err = cfg.BuildStore()
	require.NoError(t, err)
	defer closeStore()

	require.NoError(t, store.Save(context.Background(), "abc"))
	id, ok, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", id)
}

func TestBuildRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	cfg := Default()
	cfg.Session.Backend = "redis"
	cfg.Session.RedisAddr = addr
	cfg.Session.KeyPrefix = "chatbot-test:" + t.Name() + ":"

	store, closeStore, err := cfg.BuildStore()
	require.NoError(t, err)
	defer closeStore()
	assert.IsType(t, &session.RedisStore{}, store)
	require.NoError(t, store.Clear(context.Background()))
}

func TestBuildLogger(t *testing.T) {
	cfg := Default()
	cfg.Log.Format = "json"
	cfg.Log.Level = "warn"

	var buf bytes.Buffer
	logger, err := cfg.BuildLogger(&buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"shown"`)
}

func TestBuildObservability(t *testing.T) {
	cfg := Default()

	metrics, err := cfg.BuildMetrics()
	require.NoError(t, err)
	assert.IsType(t, observability.NoopMetricsProvider{}, metrics)

	tracer, err := cfg.BuildTracer()
	require.NoError(t, err)
	assert.NoError(t, tracer.Shutdown(context.Background()))
}
