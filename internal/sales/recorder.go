package sales

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/freshcut/chickenshop/internal/profiles"
	"github.com/freshcut/chickenshop/pkg/db"
	"github.com/freshcut/chickenshop/pkg/db/models"
	"github.com/freshcut/chickenshop/pkg/logger"
	"github.com/freshcut/chickenshop/pkg/metrics"
	"github.com/freshcut/chickenshop/pkg/redis"
)

const (
	guardScope      = "daily_sale"
	uniqueOrderSale = "daily_sales_order_id_key"
)

// Outcome is the result of one Record call.
type Outcome string

const (
	OutcomeInserted  Outcome = metrics.SaleInserted
	OutcomeDuplicate Outcome = metrics.SaleDuplicate
	OutcomeSkipped   Outcome = metrics.SaleSkipped
	OutcomeFailed    Outcome = metrics.SaleFailed
)

type ContactLookup interface {
	Contact(ctx context.Context, userID string) (profiles.Contact, error)
}

type RecorderOptions struct {
	Repo     Repository
	Contacts ContactLookup
	// Guard is optional; without it the once-only guarantee is per process
	// plus the unique order id constraint.
	Guard    redis.GuardStore
	GuardTTL time.Duration
	Location *time.Location
	Clock    clock.Clock
	Logger   *logger.Logger
	Metrics  *metrics.SalesMetrics
}

// Recorder writes at most one daily sale per order id.
type Recorder struct {
	repo     Repository
	contacts ContactLookup
	guard    redis.GuardStore
	guardTTL time.Duration
	loc      *time.Location
	clock    clock.Clock
	logg     *logger.Logger
	metrics  *metrics.SalesMetrics

	// inflight holds order ids with a Record in progress; settled ids are
	// covered by the guard, the existence check and the unique index.
	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewRecorder(opts RecorderOptions) (*Recorder, error) {
	if opts.Repo == nil {
		return nil, errors.New("sales repository required")
	}
	if opts.Contacts == nil {
		return nil, errors.New("contact lookup required")
	}
	if opts.GuardTTL <= 0 {
		opts.GuardTTL = 30 * 24 * time.Hour
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &Recorder{
		repo:      opts.Repo,
		contacts:  opts.Contacts,
		guard:     opts.Guard,
		guardTTL:  opts.GuardTTL,
		loc:       opts.Location,
		clock:     opts.Clock,
		logg:      opts.Logger,
		metrics:   opts.Metrics,
		inflight:  make(map[string]struct{}),
	}, nil
}

// Record stores the sale snapshot for a delivered order. It never returns an
// error: failures are logged and reported through the outcome only.
func (r *Recorder) Record(ctx context.Context, order models.Order, productName *string) Outcome {
	ctx = r.logg.WithOrderID(ctx, order.ID)
	out := r.record(ctx, order, productName)
	r.metrics.Inc(string(out))
	return out
}

func (r *Recorder) record(ctx context.Context, order models.Order, productName *string) Outcome {
	if order.ID == "" {
		return OutcomeSkipped
	}
	if !r.claim(order.ID) {
		r.logg.Debug(ctx, "daily sale already in flight in this process")
		return OutcomeSkipped
	}
	defer r.settle(order.ID)

	guarded := false
	if r.guard != nil {
		ok, err := r.guard.SetNX(ctx, r.guard.GuardKey(guardScope, order.ID), r.clock.Now().UTC().Format(time.RFC3339), r.guardTTL)
		switch {
		case err != nil:
			r.metrics.Inc(metrics.SaleGuardError)
			r.logg.WarnErr(ctx, "daily sale guard unavailable, falling back to existence check", err)
		case !ok:
			r.logg.Debug(ctx, "daily sale claimed by another replica")
			return OutcomeSkipped
		default:
			guarded = true
		}
	}

	exists, err := r.repo.ExistsForOrder(ctx, order.ID)
	if err != nil {
		r.release(ctx, order.ID, guarded)
		r.logg.Error(ctx, "daily sale existence check failed", err)
		return OutcomeFailed
	}
	if exists {
		return OutcomeDuplicate
	}

	var contact profiles.Contact
	if order.UserID != "" {
		c, err := r.contacts.Contact(ctx, order.UserID)
		if err != nil {
			r.logg.WarnErr(r.logg.WithUserID(ctx, order.UserID), "customer contact lookup failed", err)
		} else {
			contact = c
		}
	}

	if productName == nil {
		productName = order.ProductName
	}
	now := r.clock.Now()
	sale := &models.DailySale{
		ID:            uuid.NewString(),
		SaleDate:      SaleDay(now, r.loc),
		OrderID:       order.ID,
		CustomerName:  contact.Name,
		CustomerPhone: contact.Phone,
		ProductID:     order.ProductID,
		ProductName:   productName,
		Quantity:      order.Quantity,
		WeightKg:      order.WeightKg,
		TotalAmount:   order.TotalAmount,
		CreatedAt:     now.UTC(),
	}
	if err := r.repo.Create(ctx, sale); err != nil {
		if db.IsUniqueViolation(err, uniqueOrderSale) {
			return OutcomeDuplicate
		}
		r.release(ctx, order.ID, guarded)
		r.logg.Error(ctx, "daily sale insert failed", err)
		return OutcomeFailed
	}
	r.logg.Info(ctx, "daily sale recorded")
	return OutcomeInserted
}

func (r *Recorder) claim(orderID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.inflight[orderID]; ok {
		return false
	}
	r.inflight[orderID] = struct{}{}
	return true
}

func (r *Recorder) settle(orderID string) {
	r.mu.Lock()
	delete(r.inflight, orderID)
	r.mu.Unlock()
}

// release drops the replica guard of a failed attempt so a later delivered
// edge can retry.
func (r *Recorder) release(ctx context.Context, orderID string, guarded bool) {
	if !guarded {
		return
	}
	if err := r.guard.Del(ctx, r.guard.GuardKey(guardScope, orderID)); err != nil {
		r.logg.WarnErr(ctx, "release daily sale guard failed", err)
	}
}
