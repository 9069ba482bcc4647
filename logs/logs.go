// Package logs builds the process logger from the log section of the
// configuration. It uses the standard library's slog package; file output
// rotates through lumberjack.
package logs

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"lean-rpc/config"
)

type levelsStruct struct {
	Available []string
	Fallback  string
}

var Levels = levelsStruct{
	Available: []string{"debug", "info", "warn", "error"},
	Fallback:  "info",
}

// ParseLevel maps a level name to its slog.Level. Unknown names fall back
// to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup returns a logger configured by o, and the closer for its output
// (a no-op for stdout and stderr).
func Setup(o config.Log) (*slog.Logger, io.Closer) {
	var writer io.Writer
	var closer io.Closer = nopCloser{}

	switch o.Output {
	case "", "stderr":
		writer = os.Stderr
	case "stdout":
		writer = os.Stdout
	default:
		logFile := &lumberjack.Logger{
			Filename:   o.Output,
			MaxSize:    o.MaxSizeMB,
			MaxBackups: o.MaxBackups,
			MaxAge:     o.MaxAgeDays,
			Compress:   o.Compress,
		}
		writer, closer = logFile, logFile
	}
	return New(writer, o.Level, o.Format), closer
}

// New builds a logger writing to w.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// SlogWriter adapts a logger to io.Writer for libraries that want a
// *log.Logger, such as http.Server.ErrorLog.
type SlogWriter struct {
	Logger *slog.Logger
	Level  slog.Level
}

func (w *SlogWriter) Write(p []byte) (n int, err error) {
	msg := string(bytes.TrimSpace(p))
	w.Logger.Log(context.TODO(), w.Level, msg)
	return len(p), nil
}
