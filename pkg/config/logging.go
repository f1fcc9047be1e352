package config

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetupLogging configures the global zerolog logger. MOBILITY_LOG_FORMAT and
// MOBILITY_DEBUG take precedence over the file settings.
func SetupLogging(c LogConfig) {
	format := c.Format
	if v := os.Getenv("MOBILITY_LOG_FORMAT"); v != "" {
		format = v
	}
	if !strings.EqualFold(format, "json") {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	level, err := zerolog.ParseLevel(c.Level)
	if err != nil || c.Level == "" {
		level = zerolog.InfoLevel
	}
	if os.Getenv("MOBILITY_DEBUG") == "YES" {
		level = zerolog.DebugLevel
	}
	log.Logger = log.Logger.Level(level)
}
