// export_test.go exports private functions for white-box testing.
package logger

import "log/slog"

var (
	CollectErrorEntries = collectErrorEntries
	FormatErrorEntries  = formatErrorEntries
)

// DropTime removes the clock stamp so golden output is stable.
func DropTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return a
}

// WithoutTime makes l omit the clock stamp.
func (l *Logger) WithoutTime() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.opts.ReplaceAttr = DropTime
	l.rebuild()
}
