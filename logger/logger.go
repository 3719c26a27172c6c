// Package logger provides the slog handler used by the simulator binaries.
// A line reads
//
//	2026/01/02 15:04:05 DEBUG [P(0)] replay started id=42 pc=0x1000
//
// where the bracketed part is the value of the "component" attribute.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// ComponentKey is the attribute rendered in brackets ahead of the message.
const ComponentKey = "component"

// Handler writes one plain-text line per record.
type Handler struct {
	out   io.Writer
	mu    *sync.Mutex
	level slog.Leveler

	component string
	prefix    string
	attrs     []string
}

// NewHandler creates a handler writing to out. A nil opts logs Info and
// above.
func NewHandler(out io.Writer, opts *slog.HandlerOptions) *Handler {
	var level slog.Leveler = slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level
	}

	return &Handler{out: out, mu: &sync.Mutex{}, level: level}
}

// New returns a logger writing lines at level and above to out.
func New(out io.Writer, level slog.Level) *slog.Logger {
	return slog.New(NewHandler(out, &slog.HandlerOptions{Level: level}))
}

// ParseLevel reads a level name such as "debug" or "warn".
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("bad log level %q: %w", s, err)
	}

	return level, nil
}

// Enabled reports whether level is logged.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *Handler) clone() *Handler {
	out := *h
	out.attrs = append([]string(nil), h.attrs...)

	return &out
}

// WithAttrs returns a handler that adds attrs to every line.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := h.clone()

	for _, a := range attrs {
		if a.Key == ComponentKey && h.prefix == "" {
			out.component = a.Value.String()
			continue
		}

		out.attrs = appendAttr(out.attrs, h.prefix, a)
	}

	return out
}

// WithGroup returns a handler that qualifies later keys with name.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}

	out := h.clone()
	out.prefix = h.prefix + name + "."

	return out
}

// Handle formats r and writes it.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	strs := []string{r.Time.Format("2006/01/02 15:04:05"), r.Level.String()}

	component := h.component
	var attrs []string

	r.Attrs(func(a slog.Attr) bool {
		if a.Key == ComponentKey && h.prefix == "" {
			component = a.Value.String()
			return true
		}

		attrs = appendAttr(attrs, h.prefix, a)

		return true
	})

	if component != "" {
		strs = append(strs, "["+component+"]")
	}

	strs = append(strs, r.Message)
	strs = append(strs, h.attrs...)
	strs = append(strs, attrs...)

	line := strings.Join(strs, " ") + "\n"

	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := io.WriteString(h.out, line)

	return err
}

func appendAttr(dst []string, prefix string, a slog.Attr) []string {
	a.Value = a.Value.Resolve()

	if a.Equal(slog.Attr{}) {
		return dst
	}

	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix += a.Key + "."
		}

		for _, g := range a.Value.Group() {
			dst = appendAttr(dst, prefix, g)
		}

		return dst
	}

	return append(dst, prefix+a.Key+"="+a.Value.String())
}
