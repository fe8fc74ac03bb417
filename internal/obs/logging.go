// Package obs contains observability utilities such as logging.
package obs

import (
	"log/slog"
	"os"
	"strings"
)

// Logger is the global structured logger used by the service.
//
// It starts as a JSON logger at info level so packages can log before
// InitLogger runs (tests, for instance).
var Logger = newLogger(slog.LevelInfo)

func newLogger(level slog.Level) *slog.Logger {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}

// InitLogger initializes the global Logger with a JSON handler at the given
// level. Unknown levels fall back to info.
func InitLogger(level string) {
	Logger = newLogger(ParseLevel(level))
}

// ParseLevel maps debug|info|warn|error to a slog level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
