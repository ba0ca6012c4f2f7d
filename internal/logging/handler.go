// Package logging provides a slog handler that mirrors security relevant
// records into the activity log, a JSON-lines file kept next to the
// application logs.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Activity categories.
const (
	CategoryAuth         = "auth"
	CategoryRegistration = "registration"
	CategoryAdmin        = "admin"
	CategoryUpload       = "upload"
	CategorySystem       = "system"
)

// categoryKey is the attribute that routes a record to the activity log.
const categoryKey = "category"

// ActivityHandler is a slog.Handler that wraps another handler and also
// writes categorized records, plus every WARN and ERROR record, to the
// activity log.
type ActivityHandler struct {
	inner       slog.Handler
	activity    slog.Handler
	level       slog.Level // records at or above are always forwarded
	categorized bool       // a category attribute was bound with WithAttrs
}

// NewActivityHandler creates an ActivityHandler writing activity records to w
// as JSON lines.
func NewActivityHandler(inner slog.Handler, w io.Writer) *ActivityHandler {
	return &ActivityHandler{
		inner:    inner,
		activity: slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}),
		level:    slog.LevelWarn,
	}
}

// OpenActivityLog opens (creating if needed) the activity log for appending.
func OpenActivityLog(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating logs directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("opening activity log: %w", err)
	}
	return f, nil
}

// Enabled implements slog.Handler.
func (h *ActivityHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level) || h.activity.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *ActivityHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.inner.Enabled(ctx, r.Level) {
		if err := h.inner.Handle(ctx, r); err != nil {
			return err
		}
	}

	if !h.activity.Enabled(ctx, r.Level) {
		return nil
	}
	category, tagged := extractCategory(r)
	if !tagged && !h.categorized && r.Level < h.level {
		return nil
	}
	rec := r.Clone()
	if !tagged && !h.categorized {
		rec.AddAttrs(slog.String(categoryKey, category))
	}
	return h.activity.Handle(ctx, rec)
}

// WithAttrs implements slog.Handler.
func (h *ActivityHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	categorized := h.categorized
	for _, a := range attrs {
		if a.Key == categoryKey {
			categorized = true
		}
	}
	return &ActivityHandler{
		inner:       h.inner.WithAttrs(attrs),
		activity:    h.activity.WithAttrs(attrs),
		level:       h.level,
		categorized: categorized,
	}
}

// WithGroup implements slog.Handler.
func (h *ActivityHandler) WithGroup(name string) slog.Handler {
	return &ActivityHandler{
		inner:       h.inner.WithGroup(name),
		activity:    h.activity.WithGroup(name),
		level:       h.level,
		categorized: h.categorized,
	}
}

// extractCategory returns the record's category attribute, or one inferred
// from the message when the attribute is absent.
func extractCategory(r slog.Record) (string, bool) {
	var category string
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == categoryKey {
			category = a.Value.String()
			return false
		}
		return true
	})
	if category != "" {
		return category, true
	}

	msg := strings.ToLower(r.Message)
	switch {
	case strings.Contains(msg, "login") || strings.Contains(msg, "logout") ||
		strings.Contains(msg, "session") || strings.Contains(msg, "access denied"):
		return CategoryAuth, false
	case strings.Contains(msg, "regist"):
		return CategoryRegistration, false
	case strings.Contains(msg, "upload"):
		return CategoryUpload, false
	case strings.Contains(msg, "setting") || strings.Contains(msg, "backup") || strings.Contains(msg, "import"):
		return CategoryAdmin, false
	default:
		return CategorySystem, false
	}
}
