package entities

import (
	"fmt"
	"log/slog"
)

// LogLevel is the severity passed to the host logger callback.
type LogLevel uint32

const (
	LogTrace LogLevel = 0
	LogDebug LogLevel = 1
	LogInfo  LogLevel = 2
	LogWarn  LogLevel = 3
	LogError LogLevel = 4
)

// LevelTrace is the slog level used for TRACE records.
const LevelTrace = slog.LevelDebug - 4

func (l LogLevel) String() string {
	switch l {
	case LogTrace:
		return "TRACE"
	case LogDebug:
		return "DEBUG"
	case LogInfo:
		return "INFO"
	case LogWarn:
		return "WARN"
	case LogError:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", uint32(l))
	}
}

// SlogLevel maps the ABI level onto slog. Unknown levels are treated as ERROR.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogTrace:
		return LevelTrace
	case LogDebug:
		return slog.LevelDebug
	case LogInfo:
		return slog.LevelInfo
	case LogWarn:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// LogLevelFromSlog maps an slog level onto the closest ABI level.
func LogLevelFromSlog(level slog.Level) LogLevel {
	switch {
	case level < slog.LevelDebug:
		return LogTrace
	case level < slog.LevelInfo:
		return LogDebug
	case level < slog.LevelWarn:
		return LogInfo
	case level < slog.LevelError:
		return LogWarn
	default:
		return LogError
	}
}
