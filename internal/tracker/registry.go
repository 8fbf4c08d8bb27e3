package tracker

import (
	"context"
	"errors"
	"sync"
)

// Registry keeps the live controllers of every connected status bar, keyed
// by session id, so requests outside a stream can reach them.
type Registry struct {
	template Options

	mu       sync.Mutex
	sessions map[string]*Controller
}

// NewRegistry builds controllers from template; UserID and Route are set per session.
func NewRegistry(template Options) (*Registry, error) {
	if template.Orders == nil {
		return nil, errors.New("order source required")
	}
	if template.Effects == nil {
		return nil, errors.New("transition effects required")
	}
	return &Registry{
		template: template,
		sessions: make(map[string]*Controller),
	}, nil
}

// Open starts a controller for userID under a fresh session id, readable
// through SessionID and carried by every State. The returned release closes
// it and must be called once the connection ends; whatever the session held
// (route, modal depth, dismissals) goes with it.
func (r *Registry) Open(ctx context.Context, userID, route string) (*Controller, func(), error) {
	if userID == "" {
		return nil, nil, errors.New("user id required")
	}
	opts := r.template
	opts.UserID = userID
	opts.SessionID = ""
	opts.Route = route
	c, err := New(opts)
	if err != nil {
		return nil, nil, err
	}

	id := c.SessionID()
	r.mu.Lock()
	r.sessions[id] = c
	r.mu.Unlock()

	release := func() {
		r.mu.Lock()
		if r.sessions[id] == c {
			delete(r.sessions, id)
		}
		r.mu.Unlock()
		_ = c.Close()
	}

	if err := c.Start(ctx); err != nil {
		release()
		return nil, nil, err
	}
	return c, release, nil
}

// Snapshot returns the state of a live controller for userID, or a one-shot
// reading when none is connected. The result names no session.
func (r *Registry) Snapshot(ctx context.Context, userID string) (State, error) {
	if live := r.forUser(userID); live != nil {
		state := live.State()
		state.SessionID = ""
		return state, nil
	}
	opts := r.template
	opts.UserID = userID
	c, err := New(opts)
	if err != nil {
		return State{}, err
	}
	defer c.Close()
	if err := c.Refresh(ctx); err != nil {
		return State{}, err
	}
	state := c.State()
	state.SessionID = ""
	return state, nil
}

// Dismiss closes the terminal modal of one session owned by userID and
// reports whether that session is live.
func (r *Registry) Dismiss(userID, sessionID string) bool {
	c := r.lookup(userID, sessionID)
	if c == nil {
		return false
	}
	c.DismissModal()
	return true
}

// SetRoute moves one session owned by userID to route.
func (r *Registry) SetRoute(userID, sessionID, route string) bool {
	c := r.lookup(userID, sessionID)
	if c == nil {
		return false
	}
	c.SetRoute(route)
	return true
}

// Owns reports whether sessionID is a live session of userID.
func (r *Registry) Owns(userID, sessionID string) bool {
	return r.lookup(userID, sessionID) != nil
}

// Sessions counts live controllers across all users.
func (r *Registry) Sessions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close ends every live session.
func (r *Registry) Close() {
	r.mu.Lock()
	all := make([]*Controller, 0, len(r.sessions))
	for _, c := range r.sessions {
		all = append(all, c)
	}
	r.sessions = make(map[string]*Controller)
	r.mu.Unlock()
	for _, c := range all {
		_ = c.Close()
	}
}

func (r *Registry) lookup(userID, sessionID string) *Controller {
	if userID == "" || sessionID == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.sessions[sessionID]
	if !ok || c.userID != userID {
		return nil
	}
	return c
}

func (r *Registry) forUser(userID string) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.sessions {
		if c.userID == userID {
			return c
		}
	}
	return nil
}
