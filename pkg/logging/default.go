package logging

import (
	"os"
	"sync/atomic"
)

var defaultLogger atomic.Value

func init() {
	logger := New(os.Stderr, NewTextFormatter())
	logger.SetLevel(WarnLevel)
	defaultLogger.Store(&holder{logger})
}

type holder struct{ Logger }

// SetDefault replaces the logger used by components that were not given one
func SetDefault(logger Logger) {
	if logger == nil {
		logger = NewNop()
	}
	defaultLogger.Store(&holder{logger})
}

// Default returns the process-wide fallback logger
func Default() Logger {
	return defaultLogger.Load().(*holder).Logger
}
