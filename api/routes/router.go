package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/freshcut/chickenshop/api/controllers"
	"github.com/freshcut/chickenshop/api/middleware"
	"github.com/freshcut/chickenshop/internal/bus"
	"github.com/freshcut/chickenshop/pkg/config"
	"github.com/freshcut/chickenshop/pkg/db/models"
	"github.com/freshcut/chickenshop/pkg/enums"
	"github.com/freshcut/chickenshop/pkg/logger"
)

// Backend is the stored-procedure surface the API calls.
type Backend interface {
	controllers.Authenticator
	controllers.Registrar
	controllers.StockProcedures
	controllers.MetricIncrementer
}

type Catalog interface {
	controllers.ProductCatalog
	controllers.ProductFinder
}

type Orders interface {
	controllers.OrderService
	controllers.StatusUpdater
}

// Deps carries everything the router hands to controllers.
type Deps struct {
	Pingers      map[string]controllers.Pinger
	Metrics      http.Handler
	RateLimiter  middleware.RateLimiter
	Now          func() time.Time
	Backend      Backend
	Catalog      Catalog
	Cart         controllers.CartStore
	Orders       Orders
	Profiles     controllers.AddressReader
	Drafts       controllers.AddressDrafts
	Settings     controllers.SettingsService
	Delivered    controllers.DeliveredCounter
	OrderBar     controllers.OrderBarSessions
	Bus          bus.Publisher
	Tracking     controllers.TrackingOpener
	Kitchen      controllers.BoardSource[[]models.Order]
	Delivery     controllers.BoardSource[[]models.Order]
	Sales        controllers.BoardSource[[]models.DailySale]
	SalesHistory controllers.SalesLister
	SaleDay      func() time.Time
}

func NewRouter(cfg *config.Config, logg *logger.Logger, d Deps) http.Handler {
	if logg == nil {
		logg = logger.Nop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	heartbeat := cfg.App.StreamHeartbeat

	r := chi.NewRouter()
	r.Use(
		chimw.RealIP,
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)
	if len(cfg.App.CORSOrigins) > 0 {
		r.Use(middleware.CORS(cfg.App.CORSOrigins))
	}

	loginPolicy := middleware.ThrottlePolicy{
		Name:        "login",
		Window:      cfg.RateLimit.Window,
		PerIP:       cfg.RateLimit.IPLimit,
		PerUsername: cfg.RateLimit.UsernameLimit,
	}
	registerPolicy := middleware.ThrottlePolicy{Name: "register", Window: cfg.RateLimit.Window, PerIP: cfg.RateLimit.IPLimit}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, d.Pingers, logg))
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.Throttle(loginPolicy, d.RateLimiter, logg)).Post("/login", controllers.AuthLogin(d.Backend, cfg.JWT, d.Now, logg))
			r.With(middleware.Throttle(registerPolicy, d.RateLimiter, logg)).Post("/register", controllers.AuthRegister(d.Backend, cfg.JWT, d.Now, logg))
		})

		r.Get("/products", controllers.ProductsList(d.Catalog, logg))
		r.Get("/settings/{key}", controllers.SettingsGet(d.Settings, logg))
		r.Get("/stats/delivered", controllers.StatsDelivered(d.Delivered, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartFetch(d.Cart, logg))
				r.Delete("/", controllers.CartClear(d.Cart, logg))
				r.Post("/items", controllers.CartAddItem(d.Cart, d.Catalog, logg))
				r.Patch("/items/{productID}", controllers.CartUpdateItem(d.Cart, logg))
				r.Delete("/items/{productID}", controllers.CartRemoveItem(d.Cart, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", controllers.OrdersPlace(d.Orders, d.Cart, d.Profiles, logg))
				r.Get("/", controllers.OrdersList(d.Orders, logg))
				r.Get("/stream", controllers.OrdersStream(d.Tracking, heartbeat, logg))
				r.Get("/{orderID}", controllers.OrdersGet(d.Orders, logg))
			})

			r.Route("/orderbar", func(r chi.Router) {
				r.Get("/", controllers.OrderBarGet(d.OrderBar, logg))
				r.Get("/stream", controllers.OrderBarStream(d.OrderBar, heartbeat, logg))
				r.Post("/dismiss", controllers.OrderBarDismiss(d.OrderBar, logg))
				r.Post("/route", controllers.OrderBarRoute(d.OrderBar, logg))
				r.Post("/modal/{action}", controllers.OrderBarModal(d.Bus, logg))
			})

			r.Route("/profile/address", func(r chi.Router) {
				r.Get("/", controllers.ProfileAddressGet(d.Profiles, d.Drafts, logg))
				r.Put("/", controllers.ProfileAddressPut(d.Drafts, logg))
			})

			r.Delete("/settings/{key}", controllers.SettingsClear(d.Settings, logg))

			r.Route("/kitchen", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.RoleKitchen))
				r.Get("/orders", controllers.KitchenOrders(d.Kitchen, logg))
				r.Get("/orders/stream", controllers.KitchenOrdersStream(d.Kitchen, heartbeat, logg))
				r.Post("/butcher", controllers.KitchenButcher(d.Backend, logg))
				r.Post("/waste", controllers.KitchenWaste(d.Backend, logg))
			})

			r.Route("/delivery", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.RoleDelivery))
				r.Get("/orders", controllers.DeliveryOrders(d.Delivery, logg))
				r.Get("/orders/stream", controllers.DeliveryOrdersStream(d.Delivery, heartbeat, logg))
			})

			r.With(middleware.RequireRole(logg, enums.RoleKitchen, enums.RoleDelivery)).
				Patch("/staff/orders/{orderID}/status", controllers.StaffUpdateStatus(d.Orders, d.Backend, logg))

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.RoleAdmin))
				r.Get("/sales", controllers.AdminSales(d.Sales, d.SalesHistory, d.SaleDay, logg))
				r.Get("/sales/stream", controllers.AdminSalesStream(d.Sales, d.SaleDay, heartbeat, logg))
			})
		})
	})

	return r
}
