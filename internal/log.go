package internal

import (
	"strings"
	"sync"
)

var (
	globalLogger *Logger
	loggerMutex  sync.RWMutex
)

// InitLogger seeds the global logger from a Config, the same one-time
// wiring step the teacher's cmd package performs in PersistentPreRunE.
func InitLogger(cfg *Config) {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()
	globalLogger = NewDefaultLogger(cfg.QuietMode)
	globalLogger.SetLevel(parseLogLevel(cfg.LogLevel))
}

func GetLogger() *Logger {
	loggerMutex.RLock()
	defer loggerMutex.RUnlock()
	if globalLogger == nil {
		return NewDefaultLogger(false)
	}
	return globalLogger
}

func parseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}
