package logging

import (
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	logger zerolog.Logger
	once   sync.Once
)

// Level picks the level from LOG_LEVEL ("warn", "error", ...), falling back
// to info when NO_DEBUG is set and to debug otherwise.
func Level() zerolog.Level {
	if level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && level != zerolog.NoLevel {
		return level
	}
	if os.Getenv("NO_DEBUG") != "" {
		return zerolog.InfoLevel
	}

	return zerolog.DebugLevel
}

// Get returns the process wide logger. It writes to stderr so that the
// reports printed by the commands stay clean.
func Get() zerolog.Logger {
	once.Do(func() {
		console := zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}

		logger = zerolog.New(console).Level(Level()).With().Timestamp().Caller().Logger()
	})

	return logger
}
