package optimizely

import (
	"sync/atomic"

	"github.com/optimizely/go-sdk/v2/pkg/logging"
	"github.com/rs/zerolog"

	"github.com/TimurManjosov/flagedge/internal/decision"
)

// logConsumer routes SDK log lines into zerolog.
// Log is called from every client's goroutines, so the level is read atomically.
type logConsumer struct {
	log   zerolog.Logger
	level atomic.Int32
}

func newLogConsumer(log zerolog.Logger, level logging.LogLevel) *logConsumer {
	c := &logConsumer{log: log.With().Str("component", "optimizely").Logger()}
	c.level.Store(int32(level))
	return c
}

func (c *logConsumer) Log(level logging.LogLevel, message string, fields map[string]interface{}) {
	if int32(level) < c.level.Load() {
		return
	}
	c.log.WithLevel(zerologLevel(level)).Fields(fields).Msg(message)
}

func (c *logConsumer) SetLogLevel(level logging.LogLevel) {
	c.level.Store(int32(level))
}

func sdkLevel(l decision.LogLevel) logging.LogLevel {
	switch l {
	case decision.LogLevelDebug:
		return logging.LogLevelDebug
	case decision.LogLevelInfo:
		return logging.LogLevelInfo
	case decision.LogLevelWarning:
		return logging.LogLevelWarning
	default:
		return logging.LogLevelError
	}
}

func zerologLevel(l logging.LogLevel) zerolog.Level {
	switch l {
	case logging.LogLevelDebug:
		return zerolog.DebugLevel
	case logging.LogLevelInfo:
		return zerolog.InfoLevel
	case logging.LogLevelWarning:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}
