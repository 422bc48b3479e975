package config

import (
    "os"
    "time"

    "github.com/rs/zerolog"
)

// NewLogger builds the service logger: JSON on stdout, a console writer at
// debug level in development.  LOG_LEVEL overrides the level.
func NewLogger(c Config) zerolog.Logger {
    level := zerolog.InfoLevel
    if c.Development() {
        level = zerolog.DebugLevel
    }
    if lv, err := zerolog.ParseLevel(c.LogLevel); err == nil && c.LogLevel != "" && !c.Development() {
        level = lv
    }

    logger := zerolog.New(os.Stdout).
        Level(level).
        With().
        Timestamp().
        Str("service", "donor-registry").
        Logger()

    if c.Development() {
        logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
    }
    return logger
}
