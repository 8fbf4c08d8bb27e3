package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/freshcut/chickenshop/internal/bus"
	"github.com/freshcut/chickenshop/internal/storage"
	"github.com/freshcut/chickenshop/pkg/enums"
	"github.com/freshcut/chickenshop/pkg/logger"
)

// Store persists carts in durable storage. Every write made through it is
// announced on the in-process bus; writes from other origins arrive through
// Sync.
type Store struct {
	storage *storage.Store
	bus     bus.Publisher
	logg    *logger.Logger
}

func NewStore(st *storage.Store, pub bus.Publisher, logg *logger.Logger) (*Store, error) {
	if st == nil {
		return nil, errors.New("storage required")
	}
	if pub == nil {
		return nil, errors.New("bus publisher required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Store{storage: st, bus: pub, logg: logg}, nil
}

// Load returns the persisted cart, or an empty one. A corrupt entry is
// treated as empty.
func (s *Store) Load(ctx context.Context, userID string) (*Cart, error) {
	var items []LineItem
	if _, err := s.storage.GetJSON(ctx, storage.CartKey(userID), &items); err != nil {
		if errors.Is(err, storage.ErrCorrupt) {
			s.logg.WarnErr(s.logg.WithUserID(ctx, userID), "discarding unreadable cart", err)
			return &Cart{}, nil
		}
		return nil, err
	}
	return &Cart{Items: items}, nil
}

func (s *Store) Save(ctx context.Context, userID string, c *Cart) error {
	items := c.Items
	if items == nil {
		items = []LineItem{}
	}
	if err := s.storage.SetJSON(ctx, storage.CartKey(userID), items); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	s.announce(ctx, userID)
	return nil
}

func (s *Store) Add(ctx context.Context, userID string, p ProductSnapshot, quantity int) (*Cart, error) {
	return s.mutate(ctx, userID, func(c *Cart) error { return c.Add(p, quantity) })
}

func (s *Store) SetQuantity(ctx context.Context, userID, productID string, pieceWeight decimal.Decimal, quantity int) (*Cart, error) {
	return s.mutate(ctx, userID, func(c *Cart) error { return c.SetQuantity(productID, pieceWeight, quantity) })
}

func (s *Store) Remove(ctx context.Context, userID, productID string, pieceWeight decimal.Decimal) (*Cart, error) {
	return s.mutate(ctx, userID, func(c *Cart) error {
		c.Remove(productID, pieceWeight)
		return nil
	})
}

// Clear deletes the user's cart and announces the change.
func (s *Store) Clear(ctx context.Context, userID string) error {
	if err := s.storage.Remove(ctx, storage.CartKey(userID)); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	s.announce(ctx, userID)
	return nil
}

// Sync republishes cart writes made by other origins as cart_updated on the
// local bus. The returned function stops it.
func (s *Store) Sync(ctx context.Context) (cancel func()) {
	return s.storage.Watch(func(ch storage.Change) {
		owner, ok := storage.IsCartKey(ch.Key)
		if !ok {
			return
		}
		s.announce(ctx, owner)
	})
}

func (s *Store) mutate(ctx context.Context, userID string, fn func(*Cart) error) (*Cart, error) {
	c, err := s.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	if err := s.Save(ctx, userID, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) announce(ctx context.Context, userID string) {
	if err := s.bus.Publish(ctx, bus.Event{Signal: enums.SignalCartUpdated, UserID: userID}); err != nil {
		s.logg.WarnErr(s.logg.WithUserID(ctx, userID), "publish cart_updated failed", err)
	}
}
