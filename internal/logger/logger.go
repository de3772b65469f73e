// Package logger is the process-wide structured logger. It keeps the
// msg + fields call shape used across the service and writes through zap.
package logger

import (
	"errors"
	"os"
	"sort"

	"go.uber.org/zap"
)

var log = zap.NewNop()

// Init builds the global logger at the given level ("debug", "info", ...).
func Init(level string) error {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	cfg.OutputPaths = []string{"stdout"}
	cfg.Encoding = "json"

	zl, err := cfg.Build()
	if err != nil {
		return err
	}

	log = zl
	log.Info("logger initialized", zap.String("level", lvl.String()))
	return nil
}

// Set replaces the global logger. Used by tests to attach an observer.
func Set(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	log = l
}

// L returns the underlying zap logger.
func L() *zap.Logger {
	return log
}

// Sync flushes buffered entries. Stdout returns EINVAL on some platforms.
func Sync() error {
	if err := log.Sync(); err != nil && !errors.Is(err, os.ErrInvalid) {
		return err
	}
	return nil
}

func Debug(msg string, fields map[string]any) {
	log.Debug(msg, toZap(fields)...)
}

func Info(msg string, fields map[string]any) {
	log.Info(msg, toZap(fields)...)
}

func Warn(msg string, fields map[string]any) {
	log.Warn(msg, toZap(fields)...)
}

func Error(msg string, fields map[string]any) {
	log.Error(msg, toZap(fields)...)
}

func Fatal(msg string, fields map[string]any) {
	log.Fatal(msg, toZap(fields)...)
}

// toZap converts a field map into zap fields in key order so output is stable.
func toZap(fields map[string]any) []zap.Field {
	if len(fields) == 0 {
		return nil
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		if err, ok := fields[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, fields[k]))
	}
	return out
}
