// Package logging builds the slog logger shared by the CLI, the importer and
// the stores.
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

type contextKey string

// BatchIDKey carries the import batch id through a context.
const BatchIDKey contextKey = "batch_id"

// Options mirror the logging section of the config file.
type Options struct {
	Level  string // debug, info, warn or error
	Format string // text or json
	Output string // stderr, stdout or a file path
}

// New creates a logger from cfg. The returned closer releases the log file
// when Output names one; it is a no-op otherwise.
func New(cfg Options) (*slog.Logger, io.Closer, error) {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var (
		out    io.Writer
		closer io.Closer = nopCloser{}
	)
	switch strings.ToLower(cfg.Output) {
	case "", "stderr":
		out = os.Stderr
	case "stdout":
		out = os.Stdout
	default:
		f, err := openLogFile(cfg.Output)
		if err != nil {
			return nil, nil, err
		}
		out, closer = f, f
	}

	return slog.New(NewHandler(out, cfg.Format, opts)), closer, nil
}

// NewHandler returns a text or JSON handler that adds the batch id found
// in the record's context.
func NewHandler(w io.Writer, format string, opts *slog.HandlerOptions) slog.Handler {
	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return &batchHandler{Handler: h}
}

// ParseLevel converts a level name; unknown names mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithBatchID tags ctx with an import batch id.
func WithBatchID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, BatchIDKey, id)
}

// BatchID returns the batch id stored in ctx, if any.
func BatchID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(BatchIDKey).(string)
	return id
}

type batchHandler struct {
	slog.Handler
}

func (h *batchHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := BatchID(ctx); id != "" {
		r.AddAttrs(slog.String(string(BatchIDKey), id))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *batchHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &batchHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *batchHandler) WithGroup(name string) slog.Handler {
	return &batchHandler{Handler: h.Handler.WithGroup(name)}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}
