// Package logging builds the process-wide zerolog logger. Components
// derive their own loggers from it with a "component" field, so one
// sink carries the whole engine's output.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"planik/internal/config"

	"github.com/rs/zerolog"
)

// New returns the root logger plus an optional closer for file sinks.
// Empty config fields mean info level, JSON, stdout.
func New(cfg config.LoggingConfig, app config.AppConfig) (*zerolog.Logger, io.Closer, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	sink, closer, err := openSink(cfg)
	if err != nil {
		return nil, nil, err
	}

	if strings.EqualFold(strings.TrimSpace(cfg.Format), "console") {
		sink = zerolog.ConsoleWriter{Out: sink, TimeFormat: time.RFC3339}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	root := zerolog.New(sink).
		Level(level).
		With().
		Timestamp().
		Str("app", app.Name).
		Str("env", app.Environment).
		Str("version", app.Version).
		Logger()
	return &root, closer, nil
}

func parseLevel(raw string) (zerolog.Level, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(raw)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("logging.level %q: %w", raw, err)
	}
	return level, nil
}

// openSink maps logging.output to a writer. Only the file sink needs
// closing; stdout and stderr are owned by the process.
func openSink(cfg config.LoggingConfig) (io.Writer, io.Closer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Output)) {
	case "", "stdout":
		return os.Stdout, nil, nil
	case "stderr":
		return os.Stderr, nil, nil
	case "file":
		if cfg.FilePath == "" {
			return nil, nil, fmt.Errorf("logging.output=file requires logging.file_path")
		}
		file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file %s: %w", cfg.FilePath, err)
		}
		return file, file, nil
	default:
		return nil, nil, fmt.Errorf("logging.output %q: unknown sink", cfg.Output)
	}
}
