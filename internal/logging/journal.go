package logging

import (
	"context"
	"log/slog"
	"strings"

	"github.com/coreos/go-systemd/v22/journal"
)

// sendFunc matches journal.Send.
type sendFunc func(message string, priority journal.Priority, vars map[string]string) error

// JournalHandler is a slog.Handler that writes records to the systemd
// journal with attributes as structured fields.
type JournalHandler struct {
	level  slog.Leveler
	attrs  map[string]string
	prefix string
	send   sendFunc
}

// NewJournalHandler returns a handler backed by journald, or false when the
// journal socket is not available.
func NewJournalHandler(level slog.Leveler) (*JournalHandler, bool) {
	if !journal.Enabled() {
		return nil, false
	}
	return newJournalHandler(level, journal.Send), true
}

func newJournalHandler(level slog.Leveler, send sendFunc) *JournalHandler {
	return &JournalHandler{level: level, attrs: map[string]string{}, send: send}
}

func (h *JournalHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *JournalHandler) Handle(_ context.Context, r slog.Record) error {
	vars := make(map[string]string, len(h.attrs)+r.NumAttrs()+1)
	for k, v := range h.attrs {
		vars[k] = v
	}
	r.Attrs(func(a slog.Attr) bool {
		addAttr(vars, h.prefix, a)
		return true
	})
	vars["SLOG_LEVEL"] = r.Level.String()

	return h.send(r.Message, priority(r.Level), vars)
}

func (h *JournalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := h.clone()
	for _, a := range attrs {
		addAttr(next.attrs, next.prefix, a)
	}
	return next
}

func (h *JournalHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := h.clone()
	next.prefix = h.prefix + name + "_"
	return next
}

func (h *JournalHandler) clone() *JournalHandler {
	attrs := make(map[string]string, len(h.attrs))
	for k, v := range h.attrs {
		attrs[k] = v
	}
	return &JournalHandler{level: h.level, attrs: attrs, prefix: h.prefix, send: h.send}
}

func addAttr(vars map[string]string, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		sub := prefix
		if a.Key != "" {
			sub = prefix + a.Key + "_"
		}
		for _, ga := range v.Group() {
			addAttr(vars, sub, ga)
		}
		return
	}
	if a.Key == "" {
		return
	}
	vars[fieldName(prefix+a.Key)] = v.String()
}

// fieldName converts a slog key into a valid journal field name: uppercase
// letters, digits and underscores, not starting with an underscore or digit.
func fieldName(key string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, key)
	if name == "" || name[0] == '_' || (name[0] >= '0' && name[0] <= '9') {
		name = "F" + name
	}
	return name
}

func priority(l slog.Level) journal.Priority {
	switch {
	case l >= slog.LevelError:
		return journal.PriErr
	case l >= slog.LevelWarn:
		return journal.PriWarning
	case l >= slog.LevelInfo:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}
