package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/benbjohnson/clock"
	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/freshcut/chickenshop/api/controllers"
	"github.com/freshcut/chickenshop/api/middleware"
	"github.com/freshcut/chickenshop/api/routes"
	"github.com/freshcut/chickenshop/internal/address"
	"github.com/freshcut/chickenshop/internal/bus"
	"github.com/freshcut/chickenshop/internal/cart"
	"github.com/freshcut/chickenshop/internal/counters"
	"github.com/freshcut/chickenshop/internal/feed"
	"github.com/freshcut/chickenshop/internal/orders"
	"github.com/freshcut/chickenshop/internal/products"
	"github.com/freshcut/chickenshop/internal/profiles"
	"github.com/freshcut/chickenshop/internal/rpc"
	"github.com/freshcut/chickenshop/internal/sales"
	"github.com/freshcut/chickenshop/internal/settings"
	"github.com/freshcut/chickenshop/internal/storage"
	"github.com/freshcut/chickenshop/internal/tracker"
	"github.com/freshcut/chickenshop/internal/watch"
	"github.com/freshcut/chickenshop/pkg/config"
	"github.com/freshcut/chickenshop/pkg/db"
	"github.com/freshcut/chickenshop/pkg/db/models"
	"github.com/freshcut/chickenshop/pkg/instance"
	"github.com/freshcut/chickenshop/pkg/logger"
	"github.com/freshcut/chickenshop/pkg/metrics"
	"github.com/freshcut/chickenshop/pkg/migrate"
	"github.com/freshcut/chickenshop/pkg/pubsub"
	"github.com/freshcut/chickenshop/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Console:     cfg.App.LogFormat == "console",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

// closers runs shutdown steps in reverse registration order.
type closers []func() error

func (c *closers) add(fn func() error) { *c = append(*c, fn) }

func (c closers) close() error {
	var err error
	for i := len(c) - 1; i >= 0; i-- {
		err = multierr.Append(err, c[i]())
	}
	return err
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	var shutdown closers
	defer func() {
		if cerr := shutdown.close(); cerr != nil {
			logg.Error(context.Background(), "error during shutdown", cerr)
		}
	}()

	clk := clock.New()
	metricSet := metrics.NewSet()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	shutdown.add(dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	pingers := map[string]controllers.Pinger{"db": dbClient}

	var (
		redisClient *redis.Client
		rateLimiter middleware.RateLimiter
		guard       redis.GuardStore
		counterKV   counters.Cache
	)
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		shutdown.add(redisClient.Close)
		pingers["redis"] = redisClient
		rateLimiter = redisClient
		guard = redisClient
		counterKV = redisClient
	} else {
		logg.Warn(ctx, "redis not configured; storage is process local and auth rate limits are off")
	}

	background, bgCtx := errgroup.WithContext(ctx)

	var backend storage.Backend
	if redisClient != nil {
		redisBackend, err := storage.NewRedis(redisClient, cfg.Storage.Namespace, cfg.Storage.Channel, logg)
		if err != nil {
			return err
		}
		background.Go(func() error { return redisBackend.Run(bgCtx) })
		backend = redisBackend
	} else {
		backend = storage.NewMemory()
	}
	store, err := storage.NewStore(backend, instance.GetID())
	if err != nil {
		return err
	}

	eventBus, err := bus.New(logg, metricSet.Bus)
	if err != nil {
		return err
	}
	shutdown.add(eventBus.Close)

	hub := feed.NewHub(logg)
	var changes feed.Feed = hub
	switch kind := cfg.Feed.Kind(); {
	case kind == config.FeedSourcePostgres && !dbClient.IsSQLite():
		source, err := feed.NewPostgresSource(cfg.DB.DSN, cfg.Feed.NotifyChannel, cfg.Feed.MinReconnect, cfg.Feed.MaxReconnect, hub, logg)
		if err != nil {
			return err
		}
		background.Go(func() error { return source.Run(bgCtx) })
	case kind == config.FeedSourcePubSub:
		psClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return err
		}
		shutdown.add(psClient.Close)
		pingers["pubsub"] = psClient
		source, err := feed.NewPubSubSource(psClient.ChangesSubscription(), hub, logg)
		if err != nil {
			return err
		}
		background.Go(func() error { return source.Run(bgCtx) })
	default:
		logg.Warn(logg.WithField(ctx, "feed_source", kind), "no change feed; views refresh by polling only")
		changes = nil
	}

	procs, err := rpc.NewClient(dbClient)
	if err != nil {
		return err
	}

	catalog, err := products.NewCatalog(products.NewRepository(dbClient.DB()), store, logg)
	if err != nil {
		return err
	}
	profileSvc, err := profiles.NewService(profiles.NewRepository(dbClient.DB()))
	if err != nil {
		return err
	}

	carts, err := cart.NewStore(store, eventBus, logg)
	if err != nil {
		return err
	}
	stopCartSync := carts.Sync(ctx)
	shutdown.add(func() error { stopCartSync(); return nil })

	orderRepo := orders.NewRepository(dbClient.DB())
	orderSvc, err := orders.NewService(orderRepo, dbClient, catalog, eventBus, clk, logg)
	if err != nil {
		return err
	}

	salesRepo := sales.NewRepository(dbClient.DB())
	saleLoc := cfg.Sales.Location()
	recorder, err := sales.NewRecorder(sales.RecorderOptions{
		Repo:     salesRepo,
		Contacts: profileSvc,
		Guard:    guard,
		GuardTTL: cfg.Sales.GuardTTL,
		Location: saleLoc,
		Clock:    clk,
		Logger:   logg,
		Metrics:  metricSet.Sales,
	})
	if err != nil {
		return err
	}

	effects, err := tracker.NewEffects(catalog, recorder, carts, eventBus, logg)
	if err != nil {
		return err
	}
	orderBar, err := tracker.NewRegistry(tracker.Options{
		Orders:  orderRepo,
		Effects: effects,
		Bus:     eventBus,
		Config:  cfg.Tracker,
		Clock:   clk,
		Logger:  logg,
		Metrics: metricSet.Tracker,
		Watch:   metricSet.Watch,
	})
	if err != nil {
		return err
	}
	shutdown.add(func() error { orderBar.Close(); return nil })

	delivered, err := counters.NewDelivered(procs, counterKV, logg)
	if err != nil {
		return err
	}
	if err := delivered.Start(ctx, eventBus); err != nil {
		return err
	}
	shutdown.add(func() error { delivered.Close(); return nil })

	settingSvc, err := settings.NewService(settings.NewRepository(dbClient.DB()), store, logg)
	if err != nil {
		return err
	}

	drafts, err := address.NewAutosaver(profileSvc, store, clk, cfg.Address.AutosaveDebounce, logg)
	if err != nil {
		return err
	}
	shutdown.add(func() error {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		return drafts.Close(flushCtx)
	})

	saleDay := func() time.Time { return sales.SaleDay(clk.Now(), saleLoc) }

	kitchenBoard, err := watch.OpenBoard(ctx, watch.KitchenPolicy(cfg.Boards.KitchenPoll), changes, clk, orderSvc.ListKitchen, logg, metricSet.Watch)
	if err != nil {
		return err
	}
	shutdown.add(kitchenBoard.Close)

	deliveryBoard, err := watch.OpenBoard(ctx, watch.DeliveryPolicy(cfg.Boards.DeliveryPoll), changes, clk, orderSvc.ListDelivery, logg, metricSet.Watch)
	if err != nil {
		return err
	}
	shutdown.add(deliveryBoard.Close)

	salesBoard, err := watch.OpenBoard(ctx, watch.SalesPolicy(cfg.Boards.SalesPoll), changes, clk, func(ctx context.Context) ([]models.DailySale, error) {
		return salesRepo.ListForDate(ctx, saleDay())
	}, logg, metricSet.Watch)
	if err != nil {
		return err
	}
	shutdown.add(salesBoard.Close)

	tracking := func(ctx context.Context, userID string) (controllers.BoardSource[[]models.Order], func(), error) {
		board, err := watch.OpenBoard(ctx, watch.TrackingPolicy(userID, cfg.Boards.TrackingPoll), changes, clk, func(ctx context.Context) ([]models.Order, error) {
			return orderSvc.ListForUser(ctx, userID)
		}, logg, metricSet.Watch)
		if err != nil {
			return nil, nil, err
		}
		return board, func() { _ = board.Close() }, nil
	}

	addr := ":" + cfg.App.Port
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	serverCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Deps{
			Pingers:      pingers,
			Metrics:      metricSet.Handler(),
			RateLimiter:  rateLimiter,
			Now:          clk.Now,
			Backend:      procs,
			Catalog:      catalog,
			Cart:         carts,
			Orders:       orderSvc,
			Profiles:     profileSvc,
			Drafts:       drafts,
			Settings:     settingSvc,
			Delivered:    delivered,
			OrderBar:     orderBar,
			Bus:          eventBus,
			Tracking:     tracking,
			Kitchen:      kitchenBoard,
			Delivery:     deliveryBoard,
			Sales:        salesBoard,
			SalesHistory: salesRepo,
			SaleDay:      saleDay,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	background.Go(func() error {
		logg.Info(serverCtx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	background.Go(func() error {
		<-bgCtx.Done()
		logg.Info(serverCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return background.Wait()
}
