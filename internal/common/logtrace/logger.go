// Package logtrace wires up structured logging for the portal client.
// All packages log through zerolog's global logger.
package logtrace

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger initializes the global logger with Unix timestamps on stderr.
func InitLogger() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// InitConsoleLogger initializes a human-readable logger for interactive use.
// The CLI uses this unless JSON output is requested.
func InitConsoleLogger() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}

// SetLevel sets the global log level from a string such as "debug" or "warn".
// Unknown values leave the level unchanged.
func SetLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return
	}
	zerolog.SetGlobalLevel(lvl)
}
