package gc

import (
	"log/slog"
	"os"

	"github.com/mattn/go-colorable"
)

// newLogger builds the structured logger every Heap uses for collection
// tracing (heap initialization and the end of each collection at Info,
// per-block checksums at Debug in gcdebug builds), with a colorized
// handler so it stays readable on a terminal on every OS go-colorable
// supports.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if debugAssertsEnabled {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(colorable.NewColorableStdout(), &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler).With("component", "gc")
}
