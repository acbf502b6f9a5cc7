package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

func parseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return 0, fmt.Errorf("%w: unknown log.level %q", ErrInvalidConfig, level)
	}
	return l, nil
}

// NewLogger builds the logger described by the log section.
//
// Parameters:
//   - w: where records are written
//
// Returns:
//   - *slog.Logger: the logger, ready for common.SetLogger
//   - error: ErrInvalidConfig for an unknown level or format
func (c LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	switch c.Format {
	case LogFormatJSON:
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case LogFormatText, "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("%w: unknown log.format %q", ErrInvalidConfig, c.Format)
	}
}
