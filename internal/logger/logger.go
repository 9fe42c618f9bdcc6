package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"netmonitor/internal/config"
)

// Init configures the global zerolog logger. Output goes to stderr so reports
// written to stdout by the check command stay clean.
func Init(lcfg config.LoggingConfig) {
	InitWriter(lcfg, os.Stderr)
}

// InitWriter is Init with an explicit destination.
func InitWriter(lcfg config.LoggingConfig, out io.Writer) {
	zerolog.SetGlobalLevel(ParseLevel(lcfg.Level))

	if strings.ToLower(lcfg.Format) == "console" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
		return
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

// ParseLevel maps a config level name to zerolog, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
