package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	analyticscache "sproutmarket/internal/analytics/cache"
	analyticshandler "sproutmarket/internal/analytics/handler"
	analyticsmetrics "sproutmarket/internal/analytics/metrics"
	analyticsservice "sproutmarket/internal/analytics/service"
	analyticsstore "sproutmarket/internal/analytics/store"
	carthandler "sproutmarket/internal/cart/handler"
	cartmetrics "sproutmarket/internal/cart/metrics"
	cartservice "sproutmarket/internal/cart/service"
	cartstore "sproutmarket/internal/cart/store"
	"sproutmarket/internal/catalog"
	jwttoken "sproutmarket/internal/jwt_token"
	orderhandler "sproutmarket/internal/order/handler"
	ordermetrics "sproutmarket/internal/order/metrics"
	orderservice "sproutmarket/internal/order/service"
	orderstore "sproutmarket/internal/order/store"
	"sproutmarket/internal/platform/config"
	"sproutmarket/internal/platform/httpserver"
	"sproutmarket/internal/platform/logger"
	"sproutmarket/internal/platform/postgres"
	platformredis "sproutmarket/internal/platform/redis"
	httptransport "sproutmarket/internal/transport/http"
	"sproutmarket/pkg/platform/events"
	"sproutmarket/pkg/platform/keylock"
)

// main wires infrastructure to services and keeps the server lifecycle small.
// Business rules live in the internal service packages.
func main() {
	cfg := config.FromEnv()

	log, err := logger.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("open postgres", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatal("run migrations", zap.Error(err))
	}

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Fatal("connect redis", zap.Error(err))
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	// Domain events: Kafka when brokers are configured, in-process otherwise.
	var sink events.Sink
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err := events.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Fatal("connect kafka", zap.Error(err))
		}
		defer kafkaSink.Close()
		sink = kafkaSink
	} else {
		log.Warn("no kafka brokers configured, order events stay in-process")
		sink = events.NewMemorySink()
	}
	publisher := events.NewPublisher(sink,
		events.WithAsyncBuffer(cfg.EventBuffer),
		events.WithLogger(log),
	)
	defer publisher.Close()

	var cat catalog.Catalog
	if cfg.CatalogURL != "" {
		cat = catalog.NewClient(cfg.CatalogURL)
	} else {
		log.Warn("no catalog URL configured, using empty in-memory catalog")
		cat = catalog.NewMemoryCatalog()
	}

	// Carts and orders share one lock arena so checkout serializes against
	// concurrent cart mutations for the same buyer.
	locks := keylock.New()

	var carts cartstore.Store
	if redisClient != nil {
		carts = cartstore.NewRedis(redisClient.Client, cfg.CartTTL)
	} else {
		log.Warn("no redis configured, carts are held in memory")
		carts = cartstore.NewMemory()
	}
	orders := orderstore.NewPostgres(db)

	cartSvc, err := cartservice.New(carts, cat, locks,
		cartservice.WithLogger(log),
		cartservice.WithMetrics(cartmetrics.New()),
	)
	if err != nil {
		log.Fatal("build cart service", zap.Error(err))
	}

	orderSvc, err := orderservice.New(orders, carts, cat, locks,
		orderservice.WithLogger(log),
		orderservice.WithMetrics(ordermetrics.New()),
		orderservice.WithEvents(publisher),
	)
	if err != nil {
		log.Fatal("build order service", zap.Error(err))
	}

	var resultCache *analyticscache.ResultCache
	if redisClient != nil {
		resultCache = analyticscache.New(redisClient.Client, log)
	}
	analyticsSvc, err := analyticsservice.New(analyticsstore.NewPostgres(db),
		analyticsservice.WithCache(resultCache),
		analyticsservice.WithMetrics(analyticsmetrics.New()),
		analyticsservice.WithLogger(log),
	)
	if err != nil {
		log.Fatal("build analytics service", zap.Error(err))
	}

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)

	router := httptransport.NewRouter(httptransport.Deps{
		Cart:           carthandler.New(cartSvc, log),
		Orders:         orderhandler.New(orderSvc, log),
		Analytics:      analyticshandler.New(analyticsSvc, log),
		Auth:           jwttoken.NewJWTServiceAdapter(jwtService),
		Logger:         log,
		RequestTimeout: cfg.RequestTimeout,
		Health: func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
			defer cancel()
			if err := db.PingContext(pingCtx); err != nil {
				return err
			}
			if redisClient != nil {
				return redisClient.Health(pingCtx)
			}
			return nil
		},
	})

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("order engine listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down", zap.Duration("grace", cfg.ShutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
