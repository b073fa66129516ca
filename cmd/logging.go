package cmd

import (
	"log/slog"
	"os"
)

// logLevel is adjustable at runtime so --verbose can lower the threshold
// after flag parsing without rebuilding the handler.
var logLevel = new(slog.LevelVar)

// logger writes structured key-value lines to stderr. Secret values must
// never be passed as attributes; credential errors carry variable names only.
var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

// initLogging applies the verbosity selected on the command line.
func initLogging(verbose bool) {
	if verbose {
		logLevel.Set(slog.LevelDebug)
		return
	}
	logLevel.Set(slog.LevelInfo)
}
