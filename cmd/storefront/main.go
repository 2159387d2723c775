package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/storefront/internal/cart"
	"github.com/Skotchmaster/storefront/internal/catalog"
	"github.com/Skotchmaster/storefront/internal/checkout"
	"github.com/Skotchmaster/storefront/internal/config"
	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/httpserver"
	"github.com/Skotchmaster/storefront/internal/middleware/csrf"
	"github.com/Skotchmaster/storefront/internal/search"
	"github.com/Skotchmaster/storefront/internal/session"
	"github.com/Skotchmaster/storefront/pkg/apiclient"
	pkgdb "github.com/Skotchmaster/storefront/pkg/db"
	"github.com/Skotchmaster/storefront/pkg/logging"
	loggingmw "github.com/Skotchmaster/storefront/pkg/middleware/logging"
)

const sweepInterval = 10 * time.Minute

type publisher interface {
	checkout.EventPublisher
	Close() error
}

func main() {
	cfg := config.Load(".env")
	cfg.MustValidate()

	logger := logging.New(cfg.LogLevel).With("service", "storefront")
	slog.SetDefault(logger)
	decimal.MarshalJSONWithoutQuotes = true

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := pkgdb.Open(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db open: %v", err)
	}

	store, err := session.NewGormStore(db)
	if err != nil {
		log.Fatalf("session store: %v", err)
	}
	sessions := session.NewManager(store)
	carts := cart.NewRegistry()
	tracker := checkout.NewTracker()
	sessions.Subscribe(httpserver.DropOnInvalidate(carts, tracker))

	api := apiclient.NewClient(cfg.APIURL, apiclient.WithTimeout(cfg.APITimeout))

	var pub publisher = events.Nop{}
	if cfg.EventsEnabled() {
		p, err := events.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			log.Fatalf("kafka producer: %v", err)
		}
		pub = p
	}

	var searcher catalog.Searcher
	if cfg.SearchEnabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		es, err := search.NewClient(ctx, search.Config{URL: cfg.ESURL, Username: cfg.ESUser, Password: cfg.ESPassword}, logger)
		cancel()
		if err != nil {
			logger.Warn("search_index_disabled", "error", err)
		} else {
			searcher = &search.Products{ES: es, Index: cfg.ESIndex}
		}
	}

	platform := httpserver.NewPlatform(api)
	ctx, cancel = context.WithTimeout(context.Background(), cfg.APITimeout)
	if _, err := platform.Refresh(ctx); err != nil {
		logger.Warn("platform_config_unavailable", "error", err)
	}
	cancel()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(echomw.BodyLimit("1M"))

	csrfCfg := csrf.DefaultConfig()
	csrfCfg.Secure = cfg.CookieSecure
	csrfCfg.TrustedOrigins = cfg.TrustedOrigins
	guard := csrf.New(csrfCfg)

	httpserver.Register(e, &httpserver.Deps{
		Catalog:  &httpserver.CatalogHTTP{API: api, Search: searcher, Platform: platform},
		Cart:     &httpserver.CartHTTP{API: api, Carts: carts, Platform: platform, Events: pub},
		Checkout: &httpserver.CheckoutHTTP{API: api, Carts: carts, Tracker: tracker, Sessions: sessions, Events: pub},
		Auth:     &httpserver.AuthHTTP{API: api, Sessions: sessions, Carts: carts, CSRF: guard},
		Customer: &httpserver.CustomerHTTP{API: api, Sessions: sessions},

		Sessions:     sessions,
		CSRF:         guard,
		CookieSecure: cfg.CookieSecure,
		Ready:        func(ctx context.Context) error { return pkgdb.Ping(ctx, db) },
	})

	janitor := &httpserver.Janitor{Sessions: sessions, Carts: carts, Tracker: tracker, IdleTTL: cfg.IdleTTL}
	sweepCtx, stopSweep := context.WithCancel(logging.IntoContext(context.Background(), logger))
	go janitor.Run(sweepCtx, sweepInterval)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
	}

	go func() {
		logger.Info("storefront_listening", "addr", srv.Addr, "backend", api.BaseURL())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	stopSweep()

	if err := pub.Close(); err != nil {
		logger.Error("event_publisher_close_failed", "error", err)
	}
	_ = pkgdb.Close(db)

	logger.Info("storefront_stopped")
}
