package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"clearlink-hq/hermes/pkg/config"
)

// New builds the process logger from cfg. Output goes to w, or os.Stdout
// when w is nil. The returned logger carries request-scoped context
// fields and, when cfg.RedactSensitive is set, scrubs sensitive values
// before they reach the sink.
func New(cfg *config.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	if w == nil {
		w = os.Stdout
	}

	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	var inner slog.Handler
	switch cfg.Format {
	case "json", "":
		inner = slog.NewJSONHandler(w, opts)
	case "text":
		inner = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown log format: %s", cfg.Format)
	}

	var redactor *Redactor
	if cfg.RedactSensitive {
		redactor = NewRedactor()
	}

	return slog.New(&handler{next: inner, redactor: redactor}), nil
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", s)
	}
}

// handler decorates a slog.Handler with context field extraction and
// sensitive-value redaction.
type handler struct {
	next     slog.Handler
	redactor *Redactor
}

func (h *handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *handler) Handle(ctx context.Context, rec slog.Record) error {
	out := slog.NewRecord(rec.Time, rec.Level, rec.Message, rec.PC)
	rec.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.transform(a))
		return true
	})
	if id := RequestIDFrom(ctx); id != "" {
		out.AddAttrs(slog.String("request_id", id))
	}
	if owner := OwnerFrom(ctx); owner != "" {
		out.AddAttrs(slog.String("owner", owner))
	}
	return h.next.Handle(ctx, out)
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	transformed := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		transformed[i] = h.transform(a)
	}
	return &handler{next: h.next.WithAttrs(transformed), redactor: h.redactor}
}

func (h *handler) WithGroup(name string) slog.Handler {
	return &handler{next: h.next.WithGroup(name), redactor: h.redactor}
}

// transform redacts one attribute, recursing into groups.
func (h *handler) transform(a slog.Attr) slog.Attr {
	if h.redactor == nil {
		return a
	}
	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, h.redactor.RedactString(a.Value.String()))
	case slog.KindGroup:
		members := a.Value.Group()
		out := make([]any, 0, len(members))
		for _, m := range members {
			out = append(out, h.transform(m))
		}
		return slog.Group(a.Key, out...)
	default:
		return a
	}
}
