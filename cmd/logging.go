package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/gophersatwork/aspcheck"
)

// setupLogger logs to ~/.aspcheck/aspcheck.log, falling back to fallback
// when the file cannot be opened. The file stays open for the life of the
// process.
func setupLogger(verbose bool, fallback io.Writer) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}

	logFile, err := setupLogFile()
	if err != nil {
		logger := slog.New(slog.NewTextHandler(fallback, &slog.HandlerOptions{
			Level: slog.LevelWarn,
		}))
		logger.Warn("Failed to set up log file, falling back to stderr", "error", err)
		return logger
	}
	return slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{
		Level: logLevel,
	}))
}

// setupLogFile creates the .aspcheck directory if it doesn't exist and returns a file handle for the log file
func setupLogFile() (*os.File, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	dir := aspcheck.JoinPaths(home, ".aspcheck")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	return os.OpenFile(aspcheck.JoinPaths(dir, "aspcheck.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// logCommandError records a failed command with whatever context the
// error carries.
func logCommandError(err error) {
	logFile, logErr := setupLogFile()
	var logger *slog.Logger
	if logErr != nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	} else {
		defer logFile.Close()
		logger = slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}

	info, found := aspcheck.GetErrorInfo(err)
	if !found {
		logger.Error("Command failed", "error", err)
		return
	}
	logger.Error("Command failed", "error", err, "error_type", string(info.Type))
	if info.Details != "" {
		logger.Error("Additional details", "details", info.Details)
	}
	if info.File != "" {
		logger.Error("File information", "file", info.File)
	}
}
