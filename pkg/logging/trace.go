package logging

import "log/slog"

// EnableTrace turns on per-fix debug logs. Set from log.trace in the config.
var EnableTrace = false

// TraceDefault logs to the default logger at DEBUG level if EnableTrace is set.
func TraceDefault(msg string, args ...any) {
	if EnableTrace {
		slog.Debug(msg, args...)
	}
}
