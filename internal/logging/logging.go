package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config contains logging configuration.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string
	// FilePath is the path to the log file. Empty means no file logging.
	FilePath string
	// MaxSizeMB is the maximum size in MB before rotation (default: 10).
	MaxSizeMB int
	// MaxFiles is the maximum number of rotated files to keep (default: 5).
	MaxFiles int
	// WriteToStderr also writes every record to stderr.
	WriteToStderr bool
}

// DefaultConfig returns file plus stderr logging at info level.
func DefaultConfig() Config {
	return Config{
		Level:         "info",
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: true,
	}
}

// Setup builds a JSON logger and returns it with a cleanup function that
// flushes and closes the log file.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	var writers []io.Writer
	cleanup := func() {}

	if cfg.FilePath != "" {
		writer, err := NewRotatingWriter(cfg.FilePath, cfg.MaxSizeMB, cfg.MaxFiles)
		if err != nil {
			return nil, nil, err
		}
		writers = append(writers, writer)
		cleanup = func() {
			_ = writer.Sync()
			_ = writer.Close()
		}
	}
	if cfg.WriteToStderr {
		writers = append(writers, os.Stderr)
	}

	var output io.Writer
	switch len(writers) {
	case 0:
		output = io.Discard
	case 1:
		output = writers[0]
	default:
		output = io.MultiWriter(writers...)
	}

	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	})
	return slog.New(handler), cleanup, nil
}

// SetupStdio installs a file-only logger as the default.
// stdout carries the MCP JSON-RPC stream, so nothing may be written to it
// and stderr is kept quiet as well.
func SetupStdio(cfg Config) (func(), error) {
	cfg.WriteToStderr = false
	if cfg.FilePath == "" {
		cfg.FilePath = DefaultLogPath()
	}

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	slog.Info("stdio_logging_initialized",
		slog.String("log_file", cfg.FilePath),
		slog.String("level", cfg.Level))
	return cleanup, nil
}

// parseLevel converts string level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LevelFromString converts string level to slog.Level.
func LevelFromString(level string) slog.Level {
	return parseLevel(level)
}

// ValidLevel reports whether level names a known log level.
func ValidLevel(level string) bool {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}
