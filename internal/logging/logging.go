package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/directprint/agent/internal/config"
)

// New builds the process logger from config. Console output is the
// default since the agent usually runs interactively during setup; JSON
// is for when it runs as a service behind a log collector.
func New(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Format == "console" {
		out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		logger = zerolog.New(out)
	} else {
		logger = zerolog.New(os.Stderr)
	}

	return logger.Level(level).With().Timestamp().Logger()
}
