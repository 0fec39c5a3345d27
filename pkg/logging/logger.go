// Package logging wires log/slog for the service: the server log (file,
// console and capture), the request log, and the session event log.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"saltydog/pkg/config"
)

// RequestLogger is the logger instance for HTTP requests.
var RequestLogger *slog.Logger

var (
	eventMu      sync.Mutex
	eventHandler slog.Handler // nil: events are only captured
)

// Init initializes the logging system based on configuration.
// It returns a cleanup function to close log files.
func Init(cfg *config.LogConfig) (func(), error) {
	// Each run starts with fresh files.
	rotatePaths(cfg.Server.Path, cfg.Requests.Path, cfg.Events.Path)
	EnableTrace = cfg.Trace

	var closers []io.Closer
	closeAll := func() {
		for _, c := range closers {
			c.Close()
		}
	}

	serverFile, err := openLog(cfg.Server.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to setup server logger: %w", err)
	}
	closers = append(closers, serverFile)
	slog.SetDefault(slog.New(serverHandler(serverFile, parseLevel(cfg.Server.Level))))

	requestFile, err := openLog(cfg.Requests.Path)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("failed to setup requests logger: %w", err)
	}
	closers = append(closers, requestFile)
	RequestLogger = slog.New(slog.NewTextHandler(requestFile, &slog.HandlerOptions{
		Level: parseLevel(cfg.Requests.Level),
	}))

	if cfg.Events.Path != "" {
		eventFile, err := openLog(cfg.Events.Path)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("failed to setup event log: %w", err)
		}
		closers = append(closers, eventFile)
		setEventHandler(slog.NewJSONHandler(eventFile, nil))
	}

	return func() {
		setEventHandler(nil)
		closeAll()
	}, nil
}

// parseLevel accepts slog level names in any case ("debug", "WARN",
// "INFO+2"). Anything else is INFO.
func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func openLog(path string) (*os.File, error) {
	if path == "" {
		return nil, errors.New("log path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}

// serverHandler fans out to the file at level, the console at INFO or
// above, and ServerCapture for /api/log/latest.
func serverHandler(file io.Writer, level slog.Level) slog.Handler {
	return &multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(file, &slog.HandlerOptions{
			Level:     level,
			AddSource: level <= slog.LevelDebug,
		}),
		slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: max(level, slog.LevelInfo)}),
		slog.NewTextHandler(ServerCapture, &slog.HandlerOptions{Level: slog.LevelInfo}),
	}}
}

type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle passes r to every enabled handler, even after one fails.
// nolint:gocritic // r must be passed by value to implement slog.Handler
func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range m.handlers {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return m.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	return m.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (m *multiHandler) each(f func(slog.Handler) slog.Handler) slog.Handler {
	out := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		out[i] = f(h)
	}
	return &multiHandler{handlers: out}
}

// rotatePaths renames existing log files to .old, replacing any previous .old.
func rotatePaths(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			oldPath := p + ".old"
			_ = os.Remove(oldPath)
			_ = os.Rename(p, oldPath)
		}
	}
}

func setEventHandler(h slog.Handler) {
	eventMu.Lock()
	defer eventMu.Unlock()
	eventHandler = h
}

// EventKind classifies session events.
type EventKind string

const (
	EventStart         EventKind = "start"
	EventStop          EventKind = "stop"
	EventReset         EventKind = "reset"
	EventAuthorization EventKind = "authorization"
	EventError         EventKind = "error"
)

// SessionEvent is a tracking transition worth keeping in the event log.
type SessionEvent struct {
	Time    time.Time
	Kind    EventKind
	Session uint64 // session number, 0 before the first start
	Title   string
	Detail  string
}

// String renders the event as "[2006-01-02 15:04:05] [kind] Title - Detail".
func (e SessionEvent) String() string {
	s := fmt.Sprintf("[%s] [%s] %s", e.Time.Format(time.DateTime), e.Kind, e.Title)
	if e.Detail != "" {
		s += " - " + e.Detail
	}
	return s
}

// LogEvent captures a session event and appends it to the event log as a
// JSON line. A zero Time is stamped with the current time.
func LogEvent(ev SessionEvent) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	_, _ = EventCapture.Write([]byte(ev.String()))

	eventMu.Lock()
	defer eventMu.Unlock()
	if eventHandler == nil {
		return
	}

	level := slog.LevelInfo
	if ev.Kind == EventError {
		level = slog.LevelWarn
	}
	r := slog.NewRecord(ev.Time, level, ev.Title, 0)
	r.AddAttrs(slog.String("kind", string(ev.Kind)))
	if ev.Session > 0 {
		r.AddAttrs(slog.Uint64("session", ev.Session))
	}
	if ev.Detail != "" {
		r.AddAttrs(slog.String("detail", ev.Detail))
	}
	if err := eventHandler.Handle(context.Background(), r); err != nil {
		slog.Error("Failed to write event log", "error", err)
	}
}
