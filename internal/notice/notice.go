// Package notice carries user-facing notifications (warnings, errors,
// informational messages) from the session to whatever surface shows them.
package notice

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Level of a notice.
type Level string

const (
	Info    Level = "info"
	Warning Level = "warning"
	Error   Level = "error"
)

// Notice is one user-visible message. Code is an apperr code when the
// notice stems from an error.
type Notice struct {
	Level   Level
	Code    string
	Message string
	At      time.Time
	Attrs   map[string]any
}

// Hook receives notices.
type Hook interface {
	Notify(ctx context.Context, n Notice) error
}

// HookFunc allows plain functions to satisfy Hook.
type HookFunc func(ctx context.Context, n Notice) error

// Notify dispatches to the underlying function.
func (fn HookFunc) Notify(ctx context.Context, n Notice) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, n)
}

// Hooks fans out notices to zero or more hooks.
type Hooks []Hook

// Notify normalizes n and forwards it to all hooks, returning a joined error
// if any fail. Notices without a message are dropped.
func (h Hooks) Notify(ctx context.Context, n Notice) error {
	if len(h) == 0 {
		return nil
	}
	n = Normalize(n)
	if n.Message == "" {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	var errs []error
	for _, hook := range h {
		if hook == nil {
			continue
		}
		if err := hook.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Normalize trims the message, defaults the level and timestamp, and clones
// attributes.
func Normalize(n Notice) Notice {
	out := n
	out.Message = strings.TrimSpace(n.Message)
	if out.Level == "" {
		out.Level = Info
	}
	if out.At.IsZero() {
		out.At = time.Now()
	}
	if len(n.Attrs) > 0 {
		out.Attrs = make(map[string]any, len(n.Attrs))
		for k, v := range n.Attrs {
			out.Attrs[k] = v
		}
	} else {
		out.Attrs = nil
	}
	return out
}

// SlogHook writes notices to a logger.
func SlogHook(logger *slog.Logger) Hook {
	if logger == nil {
		logger = slog.Default()
	}
	return HookFunc(func(ctx context.Context, n Notice) error {
		lvl := slog.LevelInfo
		switch n.Level {
		case Warning:
			lvl = slog.LevelWarn
		case Error:
			lvl = slog.LevelError
		}
		args := make([]any, 0, 2+2*len(n.Attrs))
		if n.Code != "" {
			args = append(args, "code", n.Code)
		}
		for k, v := range n.Attrs {
			args = append(args, k, v)
		}
		logger.Log(ctx, lvl, n.Message, args...)
		return nil
	})
}

// Recorder keeps every notice it receives. Used by tests and by the CLI to
// print a session's notices.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
	Err     error
}

func (r *Recorder) Notify(_ context.Context, n Notice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, Normalize(n))
	return r.Err
}

// Notices returns a copy of what was recorded.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// Codes lists the recorded notice codes in order, skipping empty ones.
func (r *Recorder) Codes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.notices {
		if n.Code != "" {
			out = append(out, n.Code)
		}
	}
	return out
}

// Reset drops recorded notices.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.notices = nil
	r.mu.Unlock()
}
