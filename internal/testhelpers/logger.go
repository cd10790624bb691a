package testhelpers

import (
	"io"
	"log/slog"

	"github.com/myrjola/repsched/internal/logging"
)

// NewLogger creates a debug level logger writing to logSink such as the one returned by NewWriter.
func NewLogger(logSink io.Writer) *slog.Logger {
	handler := logging.NewContextHandler(slog.NewTextHandler(logSink, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	}))
	return slog.New(handler)
}
