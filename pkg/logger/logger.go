// Package logger wraps zerolog with context-scoped fields. Fields attached
// to a context (request id, user, order) follow every entry logged with it.
package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Options struct {
	ServiceName string
	Level       zerolog.Level
	// WarnStack adds a stack trace to Warn entries, not just Error.
	WarnStack bool
	Console   bool
	Output    io.Writer
}

type Logger struct {
	root      zerolog.Logger
	warnStack bool
}

type scopedKey struct{}

func New(opts Options) *Logger {
	level := opts.Level
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	var out io.Writer = os.Stdout
	if opts.Output != nil {
		out = opts.Output
	}
	if opts.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano

	return &Logger{
		root: zerolog.New(out).Level(level).With().
			Timestamp().
			Str("service", opts.ServiceName).
			Logger(),
		warnStack: opts.WarnStack,
	}
}

// Nop discards everything.
func Nop() *Logger {
	return &Logger{root: zerolog.Nop()}
}

// ParseLevel is lenient: blank or unknown values mean info.
func ParseLevel(value string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func (l *Logger) from(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if scoped, ok := ctx.Value(scopedKey{}).(*zerolog.Logger); ok {
			return scoped
		}
	}
	return &l.root
}

func (l *Logger) scope(ctx context.Context, add func(zerolog.Context) zerolog.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	scoped := add(l.from(ctx).With()).Logger()
	return context.WithValue(ctx, scopedKey{}, &scoped)
}

func (l *Logger) WithField(ctx context.Context, key string, value any) context.Context {
	return l.scope(ctx, func(c zerolog.Context) zerolog.Context { return c.Interface(key, value) })
}

func (l *Logger) WithFields(ctx context.Context, fields map[string]any) context.Context {
	return l.scope(ctx, func(c zerolog.Context) zerolog.Context { return c.Fields(fields) })
}

func (l *Logger) WithRequestID(ctx context.Context, id string) context.Context {
	return l.scope(ctx, func(c zerolog.Context) zerolog.Context { return c.Str("request_id", id) })
}

func (l *Logger) WithUserID(ctx context.Context, id string) context.Context {
	return l.scope(ctx, func(c zerolog.Context) zerolog.Context { return c.Str("user_id", id) })
}

func (l *Logger) WithOrderID(ctx context.Context, id string) context.Context {
	return l.scope(ctx, func(c zerolog.Context) zerolog.Context { return c.Str("order_id", id) })
}

func (l *Logger) WithActorRole(ctx context.Context, role string) context.Context {
	return l.scope(ctx, func(c zerolog.Context) zerolog.Context { return c.Str("actor_role", role) })
}

func (l *Logger) Debug(ctx context.Context, msg string) { l.from(ctx).Debug().Msg(msg) }

func (l *Logger) Info(ctx context.Context, msg string) { l.from(ctx).Info().Msg(msg) }

func (l *Logger) Warn(ctx context.Context, msg string) {
	l.warn(ctx, nil, l.warnStack).Msg(msg)
}

// WarnErr logs a recoverable failure. It never carries a stack.
func (l *Logger) WarnErr(ctx context.Context, msg string, err error) {
	l.warn(ctx, err, false).Msg(msg)
}

func (l *Logger) warn(ctx context.Context, err error, withStack bool) *zerolog.Event {
	event := l.from(ctx).Warn()
	if err != nil {
		event = event.Err(err)
	}
	if withStack {
		event = event.Str("stack", stack())
	}
	return event
}

func (l *Logger) Error(ctx context.Context, msg string, err error) {
	event := l.from(ctx).Error()
	if err != nil {
		event = event.Err(err)
	}
	event.Str("stack", stack()).Msg(msg)
}

func stack() string {
	return strings.TrimSpace(string(debug.Stack()))
}
