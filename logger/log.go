// Package logger provides the process-wide structured logger.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lmittmann/tint"
)

// Logger defaults to an info-level stdout handler so packages can log before
// main has called SetupLogger.
var Logger = slog.New(tint.NewHandler(os.Stdout, nil))

const (
	FilePermission = 0644
	timeFormat     = "2006-01-02 15:04:05"
)

// SetupLogger installs the global logger. Verbose enables debug level.
func SetupLogger(w io.Writer, verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}

	handler := tint.NewHandler(w, &tint.Options{
		Level:      logLevel,
		TimeFormat: timeFormat,
	})

	Logger = slog.New(handler)
}

// SetupLogWriter returns the writer logs should go to. With a log path set,
// output is mirrored to stdout and the file; the caller owns closing the file.
func SetupLogWriter(logPath string) (io.Writer, *os.File, error) {
	if logPath == "" {
		return os.Stdout, nil, nil
	}

	logDir := filepath.Dir(logPath)
	if logDir != "." && logDir != "" {
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, FilePermission)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return io.MultiWriter(os.Stdout, logFile), logFile, nil
}
