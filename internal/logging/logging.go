package logging

import (
	"io"
	"log/slog"
	"os"
	"runtime"
	"runtime/debug"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// Logger is the process-wide logger. Component loggers are derived from it
// with Component and carry a "component" attribute on every line.
type Logger struct {
	*slog.Logger
	LogFile string
	Start   time.Time

	file *lumberjack.Logger
}

// New builds a JSON slog logger writing to the rotated log file, stderr, and
// the optional ring (the in-memory buffer behind /api/logs). A nil ring is
// fine.
func New(opts Options, ring io.Writer) *Logger {
	writers := []io.Writer{os.Stderr}

	var file *lumberjack.Logger
	if opts.File != "" {
		file = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			Compress:   true,
		}
		if file.MaxSize <= 0 {
			file.MaxSize = 10 // MB
		}
		writers = append(writers, file)
	}
	if ring != nil {
		writers = append(writers, ring)
	}

	h := slog.NewJSONHandler(io.MultiWriter(writers...), &slog.HandlerOptions{Level: ParseLevel(opts.Level)})
	l := &Logger{
		Logger:  slog.New(h),
		LogFile: opts.File,
		Start:   time.Now(),
		file:    file,
	}

	l.Info("logging started",
		slog.String("GOARCH", runtime.GOARCH),
		slog.String("GOOS", runtime.GOOS),
		slog.Int("NumCPUs", runtime.NumCPU()))
	if bi, ok := debug.ReadBuildInfo(); ok {
		l.Info("build", slog.String("go", bi.GoVersion), slog.String("path", bi.Path))
	}

	return l
}

// ParseLevel maps a config level string onto a slog level. Unknown strings
// fall back to info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Component derives a logger scoped to one subsystem.
func (l *Logger) Component(name string) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l.Logger.With(slog.String("component", name))
}

// Close flushes and closes the rotated log file, if one is configured.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}
