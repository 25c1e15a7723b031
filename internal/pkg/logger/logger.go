package logger

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"taskhub/internal/platform/config"
)

// Init configures the global zerolog logger from the logging section of the config.
func Init(cfg config.LoggingConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	log.Logger = New(cfg, os.Stdout)
}

// New builds a logger without touching global state. out is used unless the
// config asks for a file and the file can be opened.
func New(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	if cfg.Output == "file" && cfg.FilePath != "" {
		if file, err := openLogFile(cfg.FilePath); err == nil {
			out = file
		} else {
			log.Error().Err(err).Str("path", cfg.FilePath).Msg("failed to open log file, falling back to stdout")
		}
	}

	if cfg.Format == "text" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).With().Timestamp().Logger()
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0664)
}
