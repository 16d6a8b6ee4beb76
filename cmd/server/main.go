package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/Skotchmaster/restaurant/internal/catalog"
	"github.com/Skotchmaster/restaurant/internal/httpserver"
	"github.com/Skotchmaster/restaurant/internal/idempotency"
	"github.com/Skotchmaster/restaurant/internal/middleware/csrf"
	"github.com/Skotchmaster/restaurant/internal/mykafka"
	"github.com/Skotchmaster/restaurant/internal/oauth"
	"github.com/Skotchmaster/restaurant/internal/repo"
	"github.com/Skotchmaster/restaurant/internal/service"
	"github.com/Skotchmaster/restaurant/pkg/config"
	pkgdb "github.com/Skotchmaster/restaurant/pkg/db"
	"github.com/Skotchmaster/restaurant/pkg/logging"
	loggingmw "github.com/Skotchmaster/restaurant/pkg/middleware/logging"
	"github.com/Skotchmaster/restaurant/pkg/tokens"
)

func main() {
	cfg := config.MustLoad()

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := pkgdb.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db open: %v", err)
	}

	rp := repo.New(db)
	if err := rp.Migrate(); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	var events service.EventPublisher = service.NopPublisher{}
	var producer *mykafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = mykafka.NewProducer(cfg.KafkaBrokers)
		events = producer
	} else {
		logger.Warn("kafka_disabled", "reason", "KAFKA_BROKERS not set")
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis url: %v", err)
		}
		rdb = redis.NewClient(opts)
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis_unavailable", "error", err)
		}
		pingCancel()
	} else {
		logger.Warn("redis_disabled", "reason", "REDIS_URL not set")
	}

	menu := &catalog.Service{Client: catalog.NewClient(cfg.CatalogURL)}
	var idemStore idempotency.Store
	if rdb != nil {
		menu.Cache = catalog.NewCache(rdb, cfg.CatalogCacheTTL)
		idemStore = idempotency.NewRedisStore(rdb, cfg.IdempotencyTTL)
	} else {
		idemStore = idempotency.NewMemoryStore(cfg.IdempotencyTTL)
	}

	if cfg.ESURL != "" {
		es, err := catalog.NewESClient(cfg.ESURL, cfg.ESUser, cfg.ESPassword)
		if err != nil {
			log.Fatalf("elasticsearch: %v", err)
		}
		menu.Index = catalog.NewIndex(es, cfg.ESIndex)
	} else {
		logger.Warn("search_fallback", "reason", "ES_URL not set")
	}

	registry := oauth.NewRegistry(cfg.OAuthRedirectBase, map[string]oauth.Credentials{
		oauth.GitHub: {ClientID: cfg.GithubClientID, ClientSecret: cfg.GithubClientSecret},
		oauth.Google: {ClientID: cfg.GoogleClientID, ClientSecret: cfg.GoogleClientSecret},
	})
	logger.Info("oauth_providers", "providers", registry.Names())

	var csrfCfg *csrf.Config
	if cfg.CSRFEnabled {
		csrfCfg = &csrf.Config{Secure: cfg.CookieSecure}
	}

	e := echo.New()
	e.HideBanner = true
	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(loggingmw.RequestLogger(logger))

	httpserver.Register(e, &httpserver.Deps{
		DB: db,
		Auth: &service.AuthService{
			Repo:   rp,
			Tokens: tokens.NewIssuer(cfg.JWTAccessSecret, cfg.JWTRefreshSecret),
			Events: events,
		},
		Cart:           &service.CartService{Repo: rp, Events: events},
		Orders:         &service.OrderService{Repo: rp, Events: events},
		Catalog:        menu,
		OAuth:          registry,
		Idempotency:    idemStore,
		Cookies:        tokens.Cookies{Secure: cfg.CookieSecure},
		CSRF:           csrfCfg,
		AuthRatePerMin: cfg.AuthRatePerMin,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Error("kafka close error", "error", err)
		}
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if err := pkgdb.Close(db); err != nil {
		logger.Error("db close error", "error", err)
	}

	logger.Info("shutdown complete")
}
