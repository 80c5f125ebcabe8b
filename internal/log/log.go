// Package log provides the context-aware structured logger used throughout
// actorcore. It wraps btclog/v2 with a small set of "S" (structured)
// methods that take a context.Context followed by a message and alternating
// key/value pairs, matching the call-site shape the rest of the module
// relies on.
package log

import (
	"context"
	"os"

	btclog "github.com/btcsuite/btclog/v2"
)

// backend is the package-level logger. It defaults to a plain stdout
// handler so the module is usable without any setup; SetBackend lets a host
// binary (see cmd/actorcore-demo) swap in a HandlerSet that fans out to
// both console and a rotating log file.
var backend btclog.Logger = btclog.NewSLogger(
	btclog.NewDefaultHandler(os.Stdout),
)

// SetBackend replaces the package-level logger.
func SetBackend(l btclog.Logger) {
	backend = l
}

// SetLevel adjusts the verbosity of the package-level logger.
func SetLevel(level btclog.Level) {
	backend.SetLevel(level)
}

// TraceS logs at trace level with structured key/value fields.
func TraceS(_ context.Context, msg string, kv ...any) {
	backend.TraceS(msg, kv...)
}

// DebugS logs at debug level with structured key/value fields.
func DebugS(_ context.Context, msg string, kv ...any) {
	backend.DebugS(msg, kv...)
}

// InfoS logs at info level with structured key/value fields.
func InfoS(_ context.Context, msg string, kv ...any) {
	backend.InfoS(msg, kv...)
}

// WarnS logs at warn level with structured key/value fields. err may be nil.
func WarnS(_ context.Context, msg string, err error, kv ...any) {
	backend.WarnS(msg, err, kv...)
}

// ErrorS logs at error level with structured key/value fields. err may be
// nil.
func ErrorS(_ context.Context, msg string, err error, kv ...any) {
	backend.ErrorS(msg, err, kv...)
}
