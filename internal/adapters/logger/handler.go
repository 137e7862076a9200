package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/muesli/termenv"
	"go.trai.ch/kiln/internal/ui/output"
	"go.trai.ch/kiln/internal/ui/style"
)

// PrettyHandler is a slog.Handler writing one colored line per record,
// prefixed with the clock stamp used by task lifecycle lines.
type PrettyHandler struct {
	out         *termenv.Output
	level       slog.Leveler
	replaceAttr func(groups []string, a slog.Attr) slog.Attr
	attrs       []slog.Attr
	groups      []string
}

// NewPrettyHandler creates a PrettyHandler writing to w.
// As with the slog built-in handlers, a ReplaceAttr returning an empty
// attribute for slog.TimeKey drops the stamp.
func NewPrettyHandler(w io.Writer, opts *slog.HandlerOptions) *PrettyHandler {
	if w == nil {
		w = os.Stderr
	}

	h := &PrettyHandler{
		out:   output.New(w),
		level: slog.LevelInfo,
	}
	if opts != nil {
		if opts.Level != nil {
			h.level = opts.Level
		}
		h.replaceAttr = opts.ReplaceAttr
	}
	return h
}

// Enabled reports whether the handler handles records at the given level.
func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle formats and writes the record.
//
//nolint:gocritic // slog.Handler interface requires slog.Record by value
func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	msg := r.Message
	var color termenv.Color

	switch {
	case r.Level >= slog.LevelError:
		msg = style.Cross + " " + msg
		color = termenv.RGBColor(string(style.Red))
	case r.Level >= slog.LevelWarn:
		msg = style.Warning + " " + msg
		color = termenv.RGBColor(string(style.Yellow))
	default:
		color = termenv.RGBColor(string(style.Ash))
	}

	parts := make([]string, 0, len(h.attrs)+r.NumAttrs())
	for _, attr := range h.attrs {
		// Handler attrs were qualified when they were added.
		parts = appendAttr(parts, nil, attr)
	}
	r.Attrs(func(attr slog.Attr) bool {
		parts = appendAttr(parts, h.groups, attr)
		return true
	})
	if len(parts) > 0 {
		msg += " " + strings.Join(parts, " ")
	}

	line := h.out.String(msg).Foreground(color).String()
	if stamp := h.stamp(r); stamp != "" {
		line = h.out.String(stamp).Faint().String() + " " + line
	}

	_, err := h.out.WriteString(line + "\n")
	return err
}

//nolint:gocritic // slog.Record is passed by value throughout slog
func (h *PrettyHandler) stamp(r slog.Record) string {
	if r.Time.IsZero() {
		return ""
	}
	attr := slog.Time(slog.TimeKey, r.Time)
	if h.replaceAttr != nil {
		attr = h.replaceAttr(nil, attr)
	}
	if attr.Key == "" {
		return ""
	}
	if attr.Value.Kind() == slog.KindTime {
		return style.Stamp(attr.Value.Time())
	}
	return "[" + attr.Value.String() + "]"
}

// WithAttrs returns a new Handler with the given attributes appended.
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}

	next := *h
	next.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		if len(h.groups) > 0 {
			a = slog.Attr{Key: strings.Join(h.groups, ".") + "." + a.Key, Value: a.Value}
		}
		next.attrs = append(next.attrs, a)
	}
	return &next
}

// WithGroup returns a new Handler with the given group name.
// An empty name returns the receiver.
func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}

	next := *h
	next.groups = append(append([]string(nil), h.groups...), name)
	return &next
}

// appendAttr renders attr as key=value, flattening groups into dotted keys.
func appendAttr(parts, groups []string, attr slog.Attr) []string {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return parts
	}

	if attr.Value.Kind() == slog.KindGroup {
		nested := groups
		if attr.Key != "" {
			nested = append(append([]string(nil), groups...), attr.Key)
		}
		for _, a := range attr.Value.Group() {
			parts = appendAttr(parts, nested, a)
		}
		return parts
	}

	key := attr.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}
	return append(parts, key+"="+attr.Value.String())
}
