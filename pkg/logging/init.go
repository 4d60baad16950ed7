package logging

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/lmittmann/tint"
)

const (
	JSON = "json"
	Text = "text"
	Tint = "tint"
)

// NewHandler builds the slog handler for a logging type and level name.
func NewHandler(w io.Writer, loggingType string, logLevelName string) (slog.Handler, error) {
	var logLevel slog.Level
	err := logLevel.UnmarshalText([]byte(logLevelName))
	if err != nil {
		return nil, fmt.Errorf("could not parse log level: %w", err)
	}

	logHandlerOptions := slog.HandlerOptions{
		AddSource: logLevel <= slog.LevelDebug,
		Level:     logLevel,
	}

	switch loggingType {
	case JSON:
		return slog.NewJSONHandler(w, &logHandlerOptions), nil
	case Text:
		return slog.NewTextHandler(w, &logHandlerOptions), nil
	case Tint:
		return tint.NewHandler(w, &tint.Options{
			AddSource: logHandlerOptions.AddSource,
			Level:     logHandlerOptions.Level,
		}), nil
	default:
		return nil, fmt.Errorf("unknown logging type: %s", loggingType)
	}
}

// Initialize installs the handler as the slog default.
func Initialize(w io.Writer, loggingType string, logLevelName string) error {
	h, err := NewHandler(w, loggingType, logLevelName)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(h))
	slog.Debug("logging initialized", "type", loggingType, "logLevel", logLevelName)
	return nil
}
