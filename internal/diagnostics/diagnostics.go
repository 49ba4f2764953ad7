// Package diagnostics provides the optional fit-trace sink handed to the
// analysis pipeline. The default is a logger that drops everything.
package diagnostics

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Nop returns a logger that discards every record.
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
}

// NewFileSink returns a JSON logger writing to a size-rotated file, and a
// function closing the underlying writer. maxSizeMB <= 0 selects 10 MB.
func NewFileSink(path string, maxSizeMB int) (*slog.Logger, func() error, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create diagnostics directory %s: %w", dir, err)
		}
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: 3,
		MaxAge:     28,
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(h).With("component", "fit"), w.Close, nil
}

// Open returns NewFileSink for a non-empty path and Nop otherwise.
func Open(path string, maxSizeMB int) (*slog.Logger, func() error, error) {
	if path == "" {
		return Nop(), func() error { return nil }, nil
	}
	return NewFileSink(path, maxSizeMB)
}
