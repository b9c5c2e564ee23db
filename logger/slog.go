package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/phsym/console-slog"
)

// SlogLogger implements Logger on top of log/slog.
type SlogLogger struct {
	mu     sync.Mutex
	logger *slog.Logger
	level  *slog.LevelVar
}

type slogConfig struct {
	output    io.Writer
	addSource bool
	console   bool
}

// SlogOption configures NewSlog.
type SlogOption func(*slogConfig)

// WithOutput directs log records to w instead of os.Stdout.
func WithOutput(w io.Writer) SlogOption {
	return func(cfg *slogConfig) {
		if w != nil {
			cfg.output = w
		}
	}
}

// WithSource adds the source file and line of the log site to every record.
func WithSource() SlogOption {
	return func(cfg *slogConfig) {
		cfg.addSource = true
	}
}

// WithConsole forces the human-readable console handler.
//
// The console handler is also selected when the ENV environment variable is "development".
func WithConsole() SlogOption {
	return func(cfg *slogConfig) {
		cfg.console = true
	}
}

// WithJSON forces the JSON handler regardless of ENV.
func WithJSON() SlogOption {
	return func(cfg *slogConfig) {
		cfg.console = false
	}
}

// NewSlog creates a slog based Logger with the given minimum level.
//
// Records are written as JSON with the time key renamed to "ts", or through
// console-slog when the console handler is selected.
func NewSlog(level Level, opts ...SlogOption) Logger {
	cfg := &slogConfig{
		output:  os.Stdout,
		console: os.Getenv("ENV") == "development",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	inst := &SlogLogger{level: &slog.LevelVar{}}
	inst.level.Set(toSlogLevel(level))

	var handler slog.Handler
	if cfg.console {
		handler = console.NewHandler(cfg.output, &console.HandlerOptions{
			AddSource: cfg.addSource,
			Level:     inst.level,
		})
	} else {
		handler = slog.NewJSONHandler(cfg.output, &slog.HandlerOptions{
			AddSource: cfg.addSource,
			Level:     inst.level,
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey {
					a.Key = "ts"
				}
				return a
			},
		})
	}
	inst.logger = slog.New(handler)

	return inst
}

func (l *SlogLogger) Debug(msg string, keysAndValues ...any) {
	l.log(context.Background(), slog.LevelDebug, msg, keysAndValues...)
}

func (l *SlogLogger) Info(msg string, keysAndValues ...any) {
	l.log(context.Background(), slog.LevelInfo, msg, keysAndValues...)
}

func (l *SlogLogger) Warn(msg string, keysAndValues ...any) {
	l.log(context.Background(), slog.LevelWarn, msg, keysAndValues...)
}

func (l *SlogLogger) Error(msg string, keysAndValues ...any) {
	l.log(context.Background(), slog.LevelError, msg, keysAndValues...)
}

func (l *SlogLogger) Fatal(msg string, keysAndValues ...any) {
	l.log(context.Background(), slog.LevelError, msg, keysAndValues...)
	os.Exit(1)
}

// With returns a child logger sharing the level of its parent.
func (l *SlogLogger) With(keyValues ...any) Logger {
	return &SlogLogger{
		logger: l.logger.With(keyValues...),
		level:  l.level,
	}
}

func (l *SlogLogger) Level() Level {
	switch l.level.Level() {
	case slog.LevelDebug:
		return DebugLevel
	case slog.LevelInfo:
		return InfoLevel
	case slog.LevelWarn:
		return WarnLevel
	default:
		return ErrorLevel
	}
}

func (l *SlogLogger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.level.Set(toSlogLevel(level))
}

// log is the low-level logging method for methods that take ...any.
// It must always be called directly by an exported logging method
// or function, because it uses a fixed call depth to obtain the pc.
func (l *SlogLogger) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	if !l.logger.Enabled(ctx, level) {
		return
	}
	var pcs [1]uintptr
	// skip [runtime.Callers, this function, this function's caller]
	runtime.Callers(3, pcs[:])
	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	r.Add(args...)
	_ = l.logger.Handler().Handle(ctx, r)
}

func toSlogLevel(level Level) slog.Level {
	switch level {
	case DebugLevel:
		return slog.LevelDebug
	case InfoLevel:
		return slog.LevelInfo
	case WarnLevel:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
