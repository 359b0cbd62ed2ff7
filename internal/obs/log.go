package obs

import (
	"sync"

	"go.uber.org/zap"
)

var (
	loggerMu sync.Mutex
	logger   *zap.Logger
)

// Logger returns the shared structured logger used across the service.
func Logger() *zap.Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if logger == nil {
		l, err := zap.NewProduction()
		if err != nil {
			l = zap.NewNop()
		}
		logger = l
	}
	return logger
}

// SetLogger replaces the shared logger. Intended for tests and for main to
// install a configured instance.
func SetLogger(l *zap.Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if l != nil {
		logger = l
	}
}

// Sync flushes buffered log entries on shutdown.
func Sync() {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if logger != nil {
		_ = logger.Sync()
	}
}
