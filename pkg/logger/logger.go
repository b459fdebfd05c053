// Package logger holds the process-wide structured logger shared by the
// analysis packages. Each stage attaches itself with Named (trace.reader,
// trace.source, session) so one recording's log stream can be split by
// component.
package logger

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	global   *zap.Logger
	initOnce sync.Once
	fallback sync.Once
)

// Config controls the global logger. The zero value means info-level JSON
// on stdout.
type Config struct {
	// Level is the lowest level emitted: debug, info, warn or error.
	// Empty means info.
	Level string
	// Development switches to colored console output with stack traces.
	Development bool
	// Encoding selects json or console. Empty means json.
	Encoding string
	// OutputPaths are zap sink URLs. Empty means stdout.
	OutputPaths []string
}

// Init builds the global logger. Only the first call takes effect; the
// session that opens first decides the process log configuration.
func Init(cfg Config) error {
	var err error
	initOnce.Do(func() {
		global, err = build(cfg)
	})
	return err
}

// Get returns the global logger, initializing the default configuration
// when Init was never called or failed.
func Get() *zap.Logger {
	_ = Init(Config{})
	fallback.Do(func() {
		if global == nil {
			global, _ = zap.NewProduction()
		}
	})
	return global
}

// Named returns a child of the global logger identifying one component.
func Named(name string) *zap.Logger {
	return Get().Named(name)
}

// Sync flushes buffered entries. Callers should invoke it before exiting.
func Sync() error {
	return Get().Sync()
}

func build(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	encoding := cfg.Encoding
	if encoding == "" {
		encoding = "json"
	}
	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	encCfg := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if cfg.Development {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Development,
		Encoding:         encoding,
		EncoderConfig:    encCfg,
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
	}

	log, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	if cfg.Development {
		log = log.WithOptions(zap.AddStacktrace(zapcore.ErrorLevel))
	}
	return log, nil
}
