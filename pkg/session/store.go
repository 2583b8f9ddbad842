// Package session persists the identifier of the current MCP session so a
// client can resume it after a restart.
//
// A Store is a plain key-value contract: the identifier lives under the fixed
// key Key. Implementations are provided for process memory, a JSON file and
// Redis.
package session

import (
	"context"
	"fmt"
	"strings"
)

// Key is the fixed storage key of the session identifier
const Key = "mcp-session-id"

// Store persists the session identifier
type Store interface {
	// Load returns the stored identifier. ok is false when none is stored.
	Load(ctx context.Context) (id string, ok bool, err error)
	// Save stores id, replacing any previous identifier
	Save(ctx context.Context, id string) error
	// Clear removes the stored identifier. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

// Backend names a Store implementation in configuration
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendFile   Backend = "file"
	BackendRedis  Backend = "redis"
)

// ParseBackend validates a configured backend name
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case "":
		return BackendMemory, nil
	case BackendMemory, BackendFile, BackendRedis:
		return b, nil
	}
	return "", fmt.Errorf("unknown session backend %q", s)
}
