package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/freshcut/chickenshop/api/middleware"
	"github.com/freshcut/chickenshop/internal/address"
	"github.com/freshcut/chickenshop/internal/bus"
	"github.com/freshcut/chickenshop/internal/cart"
	"github.com/freshcut/chickenshop/internal/orders"
	"github.com/freshcut/chickenshop/internal/rpc"
	"github.com/freshcut/chickenshop/internal/tracker"
	"github.com/freshcut/chickenshop/pkg/db/models"
	"github.com/freshcut/chickenshop/pkg/enums"
	pkgerrors "github.com/freshcut/chickenshop/pkg/errors"
	"github.com/freshcut/chickenshop/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test-controllers", Level: logger.ParseLevel("debug"), Output: io.Discard})
}

func customerRequest(method, target, body string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	return req.WithContext(middleware.WithIdentity(req.Context(), "user-1", "ana", enums.RoleCustomer))
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func decodeData(t *testing.T, resp *httptest.ResponseRecorder, dest any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if err := json.Unmarshal(envelope.Data, dest); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

type fakeCart struct {
	cart      cart.Cart
	added     []cart.ProductSnapshot
	lastQty   int
	loadErr   error
	clearedBy string
}

func (f *fakeCart) Load(ctx context.Context, userID string) (*cart.Cart, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	c := f.cart
	return &c, nil
}

func (f *fakeCart) Add(ctx context.Context, userID string, p cart.ProductSnapshot, quantity int) (*cart.Cart, error) {
	f.added = append(f.added, p)
	if err := f.cart.Add(p, quantity); err != nil {
		return nil, err
	}
	c := f.cart
	return &c, nil
}

func (f *fakeCart) SetQuantity(ctx context.Context, userID, productID string, pieceWeight decimal.Decimal, quantity int) (*cart.Cart, error) {
	f.lastQty = quantity
	if err := f.cart.SetQuantity(productID, pieceWeight, quantity); err != nil {
		return nil, err
	}
	c := f.cart
	return &c, nil
}

func (f *fakeCart) Remove(ctx context.Context, userID, productID string, pieceWeight decimal.Decimal) (*cart.Cart, error) {
	f.cart.Remove(productID, pieceWeight)
	c := f.cart
	return &c, nil
}

func (f *fakeCart) Clear(ctx context.Context, userID string) error {
	f.clearedBy = userID
	f.cart = cart.Cart{}
	return nil
}

type fakeProducts map[string]models.Product

func (f fakeProducts) Find(ctx context.Context, id string) (*models.Product, error) {
	p, ok := f[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return &p, nil
}

func wings() models.Product {
	return models.Product{
		ID:            "wings",
		Name:          "Wings",
		PricePerKg:    decimal.RequireFromString("9.50"),
		PieceWeightKg: decimal.RequireFromString("0.500"),
		IsActive:      true,
	}
}

func TestCartAddItemSnapshotsProduct(t *testing.T) {
	store := &fakeCart{}
	handler := CartAddItem(store, fakeProducts{"wings": wings()}, testLogger())

	resp := httptest.NewRecorder()
	handler(resp, customerRequest(http.MethodPost, "/cart/items", `{"product_id":"wings","quantity":2,"piece_weight_kg":"0.750"}`))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", resp.Code, resp.Body.String())
	}
	if len(store.added) != 1 || !store.added[0].PieceWeightKg.Equal(decimal.RequireFromString("0.75")) {
		t.Fatalf("expected piece weight override, got %+v", store.added)
	}
}

func TestCartAddItemRejectsInactiveProduct(t *testing.T) {
	p := wings()
	p.IsActive = false
	handler := CartAddItem(&fakeCart{}, fakeProducts{"wings": p}, testLogger())

	resp := httptest.NewRecorder()
	handler(resp, customerRequest(http.MethodPost, "/cart/items", `{"product_id":"wings","quantity":1}`))
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
}

func TestCartAddItemValidatesQuantity(t *testing.T) {
	handler := CartAddItem(&fakeCart{}, fakeProducts{"wings": wings()}, testLogger())

	resp := httptest.NewRecorder()
	handler(resp, customerRequest(http.MethodPost, "/cart/items", `{"product_id":"wings","quantity":0}`))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCartUpdateItemZeroRemovesLine(t *testing.T) {
	store := &fakeCart{}
	if err := store.cart.Add(cart.SnapshotOf(wings()), 2); err != nil {
		t.Fatalf("seed cart: %v", err)
	}
	handler := CartUpdateItem(store, testLogger())

	req := withURLParam(customerRequest(http.MethodPatch, "/cart/items/wings", `{"piece_weight_kg":"0.5","quantity":0}`), "productID", "wings")
	resp := httptest.NewRecorder()
	handler(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", resp.Code, resp.Body.String())
	}
	if !store.cart.IsEmpty() {
		t.Fatalf("expected empty cart, got %+v", store.cart.Items)
	}
}

// fakeOrders with lostRace reports every update as a no-op, as when a
// concurrent request already applied the same status.
type fakeOrders struct {
	placed   orders.PlaceInput
	current  *models.Order
	updated  *models.Order
	lostRace bool
}

func (f *fakeOrders) Place(ctx context.Context, in orders.PlaceInput) ([]models.Order, error) {
	f.placed = in
	if len(in.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
	}
	return []models.Order{{ID: "o-1", UserID: in.UserID, Status: enums.OrderStatusPending, TotalAmount: decimal.NewFromInt(10)}}, nil
}

func (f *fakeOrders) Get(ctx context.Context, orderID, viewerID string, viewerRole enums.Role) (*models.Order, error) {
	if f.current == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return f.current, nil
}

func (f *fakeOrders) ListForUser(ctx context.Context, userID string) ([]models.Order, error) {
	return nil, nil
}

func (f *fakeOrders) UpdateStatus(ctx context.Context, orderID, rawStatus string) (*models.Order, bool, error) {
	status := enums.OrderStatus(rawStatus)
	changed := !f.lostRace && (f.current == nil || f.current.Status != status)
	f.updated = &models.Order{ID: orderID, Status: status}
	return f.updated, changed, nil
}

type fakeProfiles struct{ draft address.Draft }

func (f fakeProfiles) Address(ctx context.Context, userID string) (address.Draft, address.Variant, error) {
	return f.draft, address.VariantStructured, nil
}

func TestOrdersPlaceFallsBackToProfileAddress(t *testing.T) {
	store := &fakeCart{}
	if err := store.cart.Add(cart.SnapshotOf(wings()), 1); err != nil {
		t.Fatalf("seed cart: %v", err)
	}
	svc := &fakeOrders{}
	profiles := fakeProfiles{draft: address.Draft{House: "Calle 5 #12", Location: "Miraflores"}}
	handler := OrdersPlace(svc, store, profiles, testLogger())

	resp := httptest.NewRecorder()
	handler(resp, customerRequest(http.MethodPost, "/orders", ""))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", resp.Code, resp.Body.String())
	}
	if svc.placed.DeliveryAddress != profiles.draft.Format() {
		t.Fatalf("expected profile address, got %q", svc.placed.DeliveryAddress)
	}
	if svc.placed.UserID != "user-1" {
		t.Fatalf("expected caller id, got %q", svc.placed.UserID)
	}
	if store.clearedBy != "" {
		t.Fatalf("cart should stay until delivery")
	}
}

func TestOrdersPlaceEmptyCart(t *testing.T) {
	handler := OrdersPlace(&fakeOrders{}, &fakeCart{}, nil, testLogger())

	resp := httptest.NewRecorder()
	handler(resp, customerRequest(http.MethodPost, "/orders", `{"delivery_address":"Av. Sol 12"}`))
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
}

type recordingPublisher struct {
	events []bus.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, ev bus.Event) error {
	p.events = append(p.events, ev)
	return nil
}

func TestOrderBarModalPublishesForCallerSession(t *testing.T) {
	pub := &recordingPublisher{}
	handler := OrderBarModal(pub, testLogger())

	for action, signal := range map[string]enums.Signal{"open": enums.SignalOrderModalOpen, "close": enums.SignalOrderModalClose} {
		resp := httptest.NewRecorder()
		handler(resp, withURLParam(customerRequest(http.MethodPost, "/orderbar/modal/"+action, `{"session_id":"tab-1"}`), "action", action))
		if resp.Code != http.StatusNoContent {
			t.Fatalf("%s: expected 204 got %d", action, resp.Code)
		}
		last := pub.events[len(pub.events)-1]
		if last.Signal != signal || last.UserID != "user-1" || last.SessionID != "tab-1" {
			t.Fatalf("%s: unexpected event %+v", action, last)
		}
	}

	resp := httptest.NewRecorder()
	handler(resp, withURLParam(customerRequest(http.MethodPost, "/orderbar/modal/toggle", `{"session_id":"tab-1"}`), "action", "toggle"))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown action got %d", resp.Code)
	}

	published := len(pub.events)
	resp = httptest.NewRecorder()
	handler(resp, withURLParam(customerRequest(http.MethodPost, "/orderbar/modal/open", `{}`), "action", "open"))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without a session got %d", resp.Code)
	}
	if len(pub.events) != published {
		t.Fatalf("nothing should be published without a session")
	}
}

type fakeOrderBar struct {
	owner   string
	session string
	route   string
	dismiss int
}

func (f *fakeOrderBar) Open(ctx context.Context, userID, route string) (*tracker.Controller, func(), error) {
	return nil, nil, errors.New("not used")
}

func (f *fakeOrderBar) Snapshot(ctx context.Context, userID string) (tracker.State, error) {
	return tracker.State{}, nil
}

func (f *fakeOrderBar) Dismiss(userID, sessionID string) bool {
	if userID != f.owner || sessionID != f.session {
		return false
	}
	f.dismiss++
	return true
}

func (f *fakeOrderBar) SetRoute(userID, sessionID, route string) bool {
	if userID != f.owner || sessionID != f.session {
		return false
	}
	f.route = route
	return true
}

func TestOrderBarRouteAndDismissAddressOneSession(t *testing.T) {
	bar := &fakeOrderBar{owner: "user-1", session: "tab-1"}
	route := OrderBarRoute(bar, testLogger())
	dismiss := OrderBarDismiss(bar, testLogger())

	resp := httptest.NewRecorder()
	route(resp, customerRequest(http.MethodPost, "/orderbar/route", `{"session_id":"tab-1","route":"/kitchen/queue"}`))
	if resp.Code != http.StatusNoContent || bar.route != "/kitchen/queue" {
		t.Fatalf("expected route applied, got %d route=%q", resp.Code, bar.route)
	}

	resp = httptest.NewRecorder()
	route(resp, customerRequest(http.MethodPost, "/orderbar/route", `{"session_id":"tab-2","route":"/"}`))
	if resp.Code != http.StatusNotFound || bar.route != "/kitchen/queue" {
		t.Fatalf("unknown session must not move the route, got %d route=%q", resp.Code, bar.route)
	}

	resp = httptest.NewRecorder()
	route(resp, customerRequest(http.MethodPost, "/orderbar/route", `{"route":"/"}`))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without a session got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	dismiss(resp, customerRequest(http.MethodPost, "/orderbar/dismiss", `{"session_id":"tab-1"}`))
	if resp.Code != http.StatusNoContent || bar.dismiss != 1 {
		t.Fatalf("expected dismiss applied, got %d calls=%d", resp.Code, bar.dismiss)
	}

	resp = httptest.NewRecorder()
	dismiss(resp, customerRequest(http.MethodPost, "/orderbar/dismiss", `{"session_id":"tab-9"}`))
	if resp.Code != http.StatusNotFound || bar.dismiss != 1 {
		t.Fatalf("expected 404 for a closed session, got %d calls=%d", resp.Code, bar.dismiss)
	}
}

type countingMetrics struct {
	calls int
	err   error
}

func (m *countingMetrics) IncrementMetric(ctx context.Context, name string, delta int64) (int64, error) {
	if name != rpc.MetricDeliveredOrders {
		return 0, errors.New("unexpected metric " + name)
	}
	m.calls++
	return int64(m.calls), m.err
}

func TestStaffUpdateStatusCountsFirstDelivery(t *testing.T) {
	svc := &fakeOrders{current: &models.Order{ID: "o-1", Status: enums.OrderStatusReady}}
	metrics := &countingMetrics{}
	handler := StaffUpdateStatus(svc, metrics, testLogger())

	resp := httptest.NewRecorder()
	handler(resp, withURLParam(customerRequest(http.MethodPatch, "/staff/orders/o-1/status", `{"status":"DELIVERED"}`), "orderID", "o-1"))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", resp.Code, resp.Body.String())
	}
	if metrics.calls != 1 {
		t.Fatalf("expected one metric increment got %d", metrics.calls)
	}

	svc.current = &models.Order{ID: "o-1", Status: enums.OrderStatusDelivered}
	metrics.err = errors.New("rpc down")
	resp = httptest.NewRecorder()
	handler(resp, withURLParam(customerRequest(http.MethodPatch, "/staff/orders/o-1/status", `{"status":"delivered"}`), "orderID", "o-1"))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if metrics.calls != 1 {
		t.Fatalf("re-delivering must not count again, got %d", metrics.calls)
	}
}

func TestStaffUpdateStatusSkipsMetricWhenAnotherUpdateWon(t *testing.T) {
	// both requests read ready; only the one whose write landed counts
	svc := &fakeOrders{current: &models.Order{ID: "o-1", Status: enums.OrderStatusReady}, lostRace: true}
	metrics := &countingMetrics{}
	handler := StaffUpdateStatus(svc, metrics, testLogger())

	resp := httptest.NewRecorder()
	handler(resp, withURLParam(customerRequest(http.MethodPatch, "/staff/orders/o-1/status", `{"status":"delivered"}`), "orderID", "o-1"))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", resp.Code, resp.Body.String())
	}
	if metrics.calls != 0 {
		t.Fatalf("expected no metric increment got %d", metrics.calls)
	}
}

type fakeCatalog struct {
	cached []models.Product
	fresh  []models.Product
}

func (f fakeCatalog) List(ctx context.Context) ([]models.Product, error) { return f.fresh, nil }

func (f fakeCatalog) Cached(ctx context.Context) ([]models.Product, bool, error) {
	return f.cached, f.cached != nil, nil
}

func TestProductsListServesCacheOnRequest(t *testing.T) {
	catalog := fakeCatalog{cached: []models.Product{wings()}, fresh: []models.Product{wings(), wings()}}
	handler := ProductsList(catalog, testLogger())

	var body productsResponse
	resp := httptest.NewRecorder()
	handler(resp, httptest.NewRequest(http.MethodGet, "/products?cached=true", nil))
	decodeData(t, resp, &body)
	if !body.Cached || len(body.Items) != 1 {
		t.Fatalf("expected cached catalog, got %+v", body)
	}

	resp = httptest.NewRecorder()
	handler(resp, httptest.NewRequest(http.MethodGet, "/products", nil))
	body = productsResponse{}
	decodeData(t, resp, &body)
	if body.Cached || len(body.Items) != 2 {
		t.Fatalf("expected fresh catalog, got %+v", body)
	}
}

type fixedSales struct{ asked time.Time }

func (f *fixedSales) ListForDate(ctx context.Context, day time.Time) ([]models.DailySale, error) {
	f.asked = day
	return []models.DailySale{}, nil
}

type staticBoard[T any] struct {
	value  T
	loaded bool
}

func (b *staticBoard[T]) Snapshot() (T, bool) { return b.value, b.loaded }

func (b *staticBoard[T]) Refresh(ctx context.Context) error {
	b.loaded = true
	return nil
}

func (b *staticBoard[T]) OnChange(func(T)) func() { return func() {} }

func TestAdminSalesReadsHistoryForPastDate(t *testing.T) {
	history := &fixedSales{}
	today := func() time.Time { return time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC) }
	handler := AdminSales(&staticBoard[[]models.DailySale]{loaded: true}, history, today, testLogger())

	resp := httptest.NewRecorder()
	handler(resp, customerRequest(http.MethodGet, "/admin/sales?date=2026-03-01", ""))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", resp.Code, resp.Body.String())
	}
	if history.asked.Day() != 1 {
		t.Fatalf("expected history lookup for the 1st, got %v", history.asked)
	}

	resp = httptest.NewRecorder()
	handler(resp, customerRequest(http.MethodGet, "/admin/sales?date=yesterday", ""))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date got %d", resp.Code)
	}
}

func TestBoardGetRefreshesColdBoard(t *testing.T) {
	board := &staticBoard[[]models.Order]{value: []models.Order{{ID: "o-1"}}}
	handler := KitchenOrders(board, testLogger())

	resp := httptest.NewRecorder()
	handler(resp, customerRequest(http.MethodGet, "/kitchen/orders", ""))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !board.loaded {
		t.Fatalf("expected a refresh before serving a cold board")
	}
}
