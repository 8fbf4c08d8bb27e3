package address

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	"github.com/freshcut/chickenshop/internal/storage"
	"github.com/freshcut/chickenshop/pkg/logger"
)

// ProfileWriter persists the encoded address on the user's profile.
type ProfileWriter interface {
	UpdateAddress(ctx context.Context, userID, encoded string) error
}

// Autosaver debounces address edits. Each edit is mirrored into durable
// storage right away and written to the profile once edits pause for the
// configured delay.
type Autosaver struct {
	writer  ProfileWriter
	storage *storage.Store
	clock   clock.Clock
	delay   time.Duration
	logg    *logger.Logger

	mu      sync.Mutex
	pending map[string]*pendingSave
	closed  bool
}

type pendingSave struct {
	ctx   context.Context
	draft Draft
	timer *clock.Timer
	gen   uint64
}

func NewAutosaver(writer ProfileWriter, st *storage.Store, clk clock.Clock, delay time.Duration, logg *logger.Logger) (*Autosaver, error) {
	if writer == nil {
		return nil, errors.New("profile writer required")
	}
	if st == nil {
		return nil, errors.New("storage required")
	}
	if delay <= 0 {
		return nil, fmt.Errorf("autosave delay must be positive, got %s", delay)
	}
	if clk == nil {
		clk = clock.New()
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Autosaver{
		writer:  writer,
		storage: st,
		clock:   clk,
		delay:   delay,
		logg:    logg,
		pending: map[string]*pendingSave{},
	}, nil
}

// Update records a new draft for userID and restarts the debounce timer.
func (a *Autosaver) Update(ctx context.Context, userID string, d Draft) error {
	if userID == "" {
		return errors.New("user id is required")
	}
	d = d.normalized()
	if err := a.storage.SetJSON(ctx, storage.AddressDraftKey(userID), d); err != nil {
		return fmt.Errorf("mirror address draft: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return errors.New("autosaver closed")
	}

	p, ok := a.pending[userID]
	if !ok {
		p = &pendingSave{}
		a.pending[userID] = p
	} else if p.timer != nil {
		p.timer.Stop()
	}
	p.ctx = context.WithoutCancel(a.logg.WithUserID(ctx, userID))
	p.draft = d
	p.gen++
	gen := p.gen
	p.timer = a.clock.AfterFunc(a.delay, func() { a.fire(userID, gen) })
	return nil
}

// Draft returns the mirrored draft for userID, if an edit is in progress.
func (a *Autosaver) Draft(ctx context.Context, userID string) (Draft, bool, error) {
	var d Draft
	ok, err := a.storage.GetJSON(ctx, storage.AddressDraftKey(userID), &d)
	if err != nil {
		return Draft{}, false, err
	}
	return d, ok, nil
}

// Pending reports whether a save is scheduled for userID.
func (a *Autosaver) Pending(userID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.pending[userID]
	return ok
}

// Flush saves userID's pending draft immediately.
func (a *Autosaver) Flush(ctx context.Context, userID string) error {
	p := a.take(userID, 0)
	if p == nil {
		return nil
	}
	return a.save(ctx, userID, p.draft)
}

// Close flushes every pending draft and rejects further updates.
func (a *Autosaver) Close(ctx context.Context) error {
	a.mu.Lock()
	a.closed = true
	users := make([]string, 0, len(a.pending))
	for userID := range a.pending {
		users = append(users, userID)
	}
	a.mu.Unlock()

	var err error
	for _, userID := range users {
		err = multierr.Append(err, a.Flush(ctx, userID))
	}
	return err
}

func (a *Autosaver) fire(userID string, gen uint64) {
	p := a.take(userID, gen)
	if p == nil {
		return
	}
	if err := a.save(p.ctx, userID, p.draft); err != nil {
		a.logg.Error(p.ctx, "address autosave failed", err)
	}
}

// take removes and returns the pending save. A non-zero gen only matches the
// timer that scheduled it.
func (a *Autosaver) take(userID string, gen uint64) *pendingSave {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.pending[userID]
	if !ok || (gen != 0 && p.gen != gen) {
		return nil
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	delete(a.pending, userID)
	return p
}

func (a *Autosaver) save(ctx context.Context, userID string, d Draft) error {
	encoded, err := Encode(d)
	if err != nil {
		return err
	}
	if err := a.writer.UpdateAddress(ctx, userID, encoded); err != nil {
		return fmt.Errorf("save address for %s: %w", userID, err)
	}
	if err := a.storage.Remove(ctx, storage.AddressDraftKey(userID)); err != nil {
		a.logg.WarnErr(ctx, "clear address draft mirror failed", err)
	}
	return nil
}
