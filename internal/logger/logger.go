package logger

import (
	"io"
	"log/slog"
	"os"
)

// Log глобальный логгер приложения
var Log *slog.Logger

func init() {
	Log = New(os.Stderr, "text", slog.LevelInfo)
}

// New создаёт логгер с форматом text или json
func New(w io.Writer, format string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Init пересоздаёт глобальный логгер (вывод в stderr)
func Init(format string, level slog.Level) {
	Log = New(os.Stderr, format, level)
	slog.SetDefault(Log)
}

// With returns a child of the global logger carrying args on every record.
func With(args ...any) *slog.Logger {
	return Log.With(args...)
}

func Info(msg string, args ...any) {
	Log.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	Log.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	Log.Error(msg, args...)
}

func Debug(msg string, args ...any) {
	Log.Debug(msg, args...)
}
