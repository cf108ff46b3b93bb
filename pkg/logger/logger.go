// Package logger provides a simple wrapper around Zap's SugaredLogger for the Verboo Realtime SDK.
//
// Usage:
// - Call Init(sug) with a *zap.SugaredLogger to initialize the global logger
// - Use S() to get the global logger instance anywhere in code
package logger

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu    sync.RWMutex
	sugar *zap.SugaredLogger // Global logger instance
	nop   = zap.NewNop().Sugar()
)

// Init initializes global sugared logger. Call once at startup.
// Caller should defer logger.Sync() if needed to flush logs on shutdown.
func Init(l *zap.SugaredLogger) {
	mu.Lock()
	sugar = l
	mu.Unlock()
}

// S returns the global *zap.SugaredLogger. If not initialized returns a nop logger.
func S() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	if sugar == nil {
		return nop
	}
	return sugar
}

// Sync flushes the global logger, ignoring errors from non-syncable sinks.
func Sync() {
	_ = S().Sync()
}

// New builds a production logger, or a development logger when debug is set.
// It falls back to the nop logger if zap cannot build one.
func New(debug bool) *zap.SugaredLogger {
	var (
		l   *zap.Logger
		err error
	)
	if debug {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return nop
	}
	return l.Sugar()
}
