package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/freshcut/chickenshop/api/responses"
	"github.com/freshcut/chickenshop/pkg/logger"
)

const defaultHeartbeat = 25 * time.Second

// BoardSource is a live snapshot that can be read, refreshed and followed.
type BoardSource[T any] interface {
	Snapshot() (T, bool)
	Refresh(ctx context.Context) error
	OnChange(fn func(T)) func()
}

// BoardGet serves the current snapshot, loading it first if the board has
// not completed a fetch yet.
func BoardGet[T any](board BoardSource[T], render func(T) any, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, ok := board.Snapshot()
		if !ok {
			if err := board.Refresh(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			snap, _ = board.Snapshot()
		}
		responses.WriteSuccess(w, render(snap))
	}
}

// BoardStream pushes every new snapshot as a server-sent event.
func BoardStream[T any](board BoardSource[T], event string, render func(T) any, heartbeat time.Duration, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		streamSnapshots(w, r, board, event, render, heartbeat, logg)
	}
}

func streamSnapshots[T any](w http.ResponseWriter, r *http.Request, board BoardSource[T], event string, render func(T) any, heartbeat time.Duration, logg *logger.Logger) {
	updates := newLatest()
	cancel := board.OnChange(func(v T) { updates.put(render(v)) })
	defer cancel()

	if snap, ok := board.Snapshot(); ok {
		updates.put(render(snap))
	}
	pump(w, r, event, updates, heartbeat, logg)
}

// latest is a one-slot mailbox where a newer value replaces an unread one.
type latest struct {
	ch chan any
}

func newLatest() *latest {
	return &latest{ch: make(chan any, 1)}
}

func (l *latest) put(v any) {
	for {
		select {
		case l.ch <- v:
			return
		default:
		}
		select {
		case <-l.ch:
		default:
		}
	}
}

// pump writes values from updates until the client goes away.
func pump(w http.ResponseWriter, r *http.Request, event string, updates *latest, heartbeat time.Duration, logg *logger.Logger) {
	ctx := r.Context()
	stream, err := responses.OpenEventStream(w)
	if err != nil {
		responses.WriteError(ctx, logg, w, err)
		return
	}
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case v := <-updates.ch:
			if err := stream.Send(event, v); err != nil {
				logg.Debug(logg.WithField(ctx, "error", err.Error()), "event stream write failed")
				return
			}
		case <-ticker.C:
			if err := stream.Ping(); err != nil {
				return
			}
		}
	}
}
