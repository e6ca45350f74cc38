package gpufilter

import (
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
)

// logger holds the shared logger. Sub-packages read it on every call, so
// SetLogger takes effect immediately for filters that already exist.
var logger atomic.Pointer[slog.Logger]

var discard = slog.New(slog.DiscardHandler)

func init() {
	logger.Store(discard)
}

// SetLogger routes log output of gpufilter and its sub-packages to l.
// Logging is off by default; nil turns it off again. Safe for concurrent
// use.
//
// Levels:
//   - [slog.LevelDebug]: kernel compilation, dispatch geometry, bind failures, uploads
//   - [slog.LevelInfo]: device selection, filter construction
//   - [slog.LevelWarn]: backend fallback, filters released by the garbage collector
//
// Example:
//
//	gpufilter.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = discard
	}
	logger.Store(l)
}

// Logger returns the logger set by SetLogger, or a discarding logger.
func Logger() *slog.Logger {
	return logger.Load()
}

// ParseLevel maps a level name (debug, info, warn, error; any case) to a
// slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("gpufilter: unknown log level %q", s)
}
