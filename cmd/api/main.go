package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/digital-store/internal/common"
	"github.com/noah-isme/digital-store/internal/config"
	"github.com/noah-isme/digital-store/internal/health"
	"github.com/noah-isme/digital-store/internal/obs"
	"github.com/noah-isme/digital-store/internal/order"
	"github.com/noah-isme/digital-store/internal/ratelimit"
)

const metricsNamespace = "store"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Str("component", "api").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx)

	obs.MustRegisterDomainMetrics(metricsNamespace, nil)
	httpMetrics := obs.NewHTTPMetrics(metricsNamespace, nil, nil)

	shutdownTracer, err := obs.InitTracer(ctx, obs.TracingConfig{
		ServiceName:   cfg.ServiceName,
		Endpoint:      cfg.OTLPEndpoint,
		SamplingRatio: cfg.TracingSampling,
		Environment:   cfg.AppEnv,
	})
	if err != nil {
		logger.Error().Err(err).Msg("initialise tracing")
		shutdownTracer = func(context.Context) error { return nil }
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(flushCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown tracer")
		}
	}()

	rdb := initRedis(ctx, cfg, logger)
	if rdb != nil {
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
	}

	pool := initDatabase(ctx, cfg, logger)
	if pool != nil {
		defer pool.Close()
	}

	svc, err := buildServices(cfg, rdb, pool, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("wire services")
	}

	limiter, err := ratelimit.New(cfg.RateLimitStrategy, rdb)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter")
	}

	handler := newRouter(svc, routerConfig{
		Logger:          logger,
		Metrics:         httpMetrics,
		Tracing:         cfg.OTLPEndpoint != "",
		Limiter:         limiter,
		RateRequests:    cfg.RateLimitRequests,
		RateWindow:      cfg.RateLimitWindow,
		Idem:            common.Idem{R: rdb, TTL: cfg.IdempotencyTTL},
		Health:          health.Handler{Probes: health.Dependencies{DB: pool, Redis: rdb}.Probes()},
		Admin:           adminGuard{Token: cfg.AdminToken},
		CORSOrigins:     cfg.CORSAllowedOrigins,
		MaxBodyBytes:    cfg.MaxBodyBytes,
		SecurityHeaders: cfg.SecurityHeaders,
		Pprof:           cfg.EnablePprof,
	})
	if cfg.AdminToken == "" {
		logger.Warn().Msg("ADMIN_TOKEN is empty; admin routes are open")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return logger.WithContext(context.Background()) },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Bool("redis", rdb != nil).Bool("postgres", pool != nil).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("server exited unexpectedly")
			stop()
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	health.SetReady(false)
	logger.Info().Msg("shutting down")
	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
}

func initRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	if cfg.RedisURL == "" {
		logger.Warn().Msg("REDIS_URL not set; carts, coupons and events stay in memory")
		return nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisotel.InstrumentMetrics(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis metrics")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return client
}

func initDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *pgxpool.Pool {
	if cfg.DatabaseURL == "" {
		logger.Warn().Msg("DATABASE_URL not set; orders stay in memory")
		return nil
	}
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = cfg.ServiceName

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(connectCtx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	if err := order.Migrate(pool); err != nil {
		logger.Fatal().Err(err).Msg("migrate orders schema")
	}
	return pool
}
