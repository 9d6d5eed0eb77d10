package logger

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Output encodings accepted by Options.Format.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

var (
	globalLogger = zap.NewNop()
	mu           sync.RWMutex
)

// Options configures the global logger.
type Options struct {
	// Level is a zap level name; unknown values fall back to info.
	Level string
	// Format is FormatJSON (default) or FormatConsole.
	Format string
	// Service, when set, is attached to every entry so split services can share a sink.
	Service string
}

// Init replaces the global logger according to opts.
func Init(opts Options) error {
	var cfg zap.Config
	if strings.EqualFold(strings.TrimSpace(opts.Format), FormatConsole) {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	level := zapcore.InfoLevel
	if err := level.UnmarshalText([]byte(strings.TrimSpace(opts.Level))); err != nil {
		level = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	if level == zapcore.DebugLevel {
		cfg.Sampling = nil
	}

	var zapOpts []zap.Option
	if service := strings.TrimSpace(opts.Service); service != "" {
		zapOpts = append(zapOpts, zap.Fields(zap.String("service", service)))
	}

	built, err := cfg.Build(zapOpts...)
	if err != nil {
		return err
	}
	Replace(built)
	return nil
}

// Replace swaps the global logger and returns a function restoring the previous one.
func Replace(l *zap.Logger) (restore func()) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	prev := globalLogger
	globalLogger = l
	mu.Unlock()
	return func() { Replace(prev) }
}

// Logger returns the configured global logger.
func Logger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return globalLogger
}

// Sync flushes buffered log entries.
func Sync() error {
	return Logger().Sync()
}

// WithModule returns a child logger annotated with the module name.
func WithModule(module string) *zap.Logger {
	return Logger().With(zap.String("module", module))
}
