// Package logging builds the slog logger used across sftgen.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

// LevelSetter changes the level of a logger returned by New
type LevelSetter func(level string)

// New returns a logger writing to w in the given format, and a setter for
// changing its level later. Unknown levels fall back to info.
func New(level, format string, w io.Writer) (*slog.Logger, LevelSetter) {
	if w == nil {
		w = os.Stderr
	}

	if strings.ToLower(format) == FormatJSON {
		lvl := new(slog.LevelVar)
		lvl.Set(slogLevel(level))
		handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     lvl,
			AddSource: strings.ToLower(level) == "trace",
		})
		return slog.New(handler), func(level string) { lvl.Set(slogLevel(level)) }
	}

	charm := log.NewWithOptions(w, log.Options{})
	applyCharm(charm, level)
	return slog.New(charm), func(level string) { applyCharm(charm, level) }
}

// ValidLevel reports whether level is a recognized level name
func ValidLevel(level string) bool {
	switch strings.ToLower(level) {
	case "trace", "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

func applyCharm(l *log.Logger, level string) {
	reportCaller := false
	reportTimestamp := false
	lvl := log.InfoLevel
	switch strings.ToLower(level) {
	case "trace":
		reportCaller = true
		reportTimestamp = true
		lvl = log.DebugLevel
	case "debug":
		reportTimestamp = true
		lvl = log.DebugLevel
	case "warn", "warning":
		lvl = log.WarnLevel
	case "error":
		lvl = log.ErrorLevel
	}

	l.SetReportCaller(reportCaller)
	l.SetReportTimestamp(reportTimestamp)
	l.SetLevel(lvl)
}

func slogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "trace", "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
