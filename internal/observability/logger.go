package observability

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/couchcryptid/buienradar-exporter/internal/config"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/lmittmann/tint"
)

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default. text and json come from the shared
// observability package; tint is a colored console handler for local runs.
func NewLogger(cfg *config.Config) *slog.Logger {
	if cfg.LogFormat != "tint" {
		return sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	}
	logger := newTintLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)
	return logger
}

func newTintLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      lvl,
		TimeFormat: time.Kitchen,
	}))
}
