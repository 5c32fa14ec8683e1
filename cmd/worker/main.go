package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/digital-store/internal/config"
	"github.com/noah-isme/digital-store/internal/events"
	"github.com/noah-isme/digital-store/internal/notify"
	"github.com/noah-isme/digital-store/internal/obs"
	"github.com/noah-isme/digital-store/internal/resilience"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx)

	obs.MustRegisterDomainMetrics("store", nil)
	shutdownTracer, err := obs.InitTracer(ctx, obs.TracingConfig{
		ServiceName:   cfg.ServiceName + "-worker",
		Endpoint:      cfg.OTLPEndpoint,
		SamplingRatio: cfg.TracingSampling,
		Environment:   cfg.AppEnv,
	})
	if err != nil {
		logger.Error().Err(err).Msg("initialise tracing")
	} else {
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracer(flushCtx); err != nil {
				logger.Error().Err(err).Msg("shutdown tracer")
			}
		}()
	}

	if cfg.RedisURL == "" {
		logger.Fatal().Msg("REDIS_URL is required: the worker consumes the domain event stream")
	}
	redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	handlers, err := buildHandlers(cfg, redisClient, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("configure notification handlers")
	}

	relay := &notify.Relay{
		Client:   redisClient,
		Stream:   cfg.EventStream,
		Consumer: cfg.RelayConsumer,
		Handlers: handlers,
	}

	if cfg.WorkerMetricsAddr != "" {
		go serveMetrics(ctx, cfg.WorkerMetricsAddr, logger)
	}

	logger.Info().Str("stream", cfg.EventStream).Str("consumer", cfg.RelayConsumer).Int("handlers", len(handlers)).Msg("worker starting")
	if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("worker stopped with error")
		return
	}
	logger.Info().Msg("worker shutdown complete")
}

// buildHandlers assembles the relay consumers: transactional email and signed webhooks.
func buildHandlers(cfg *config.Config, rdb *redis.Client, logger zerolog.Logger) ([]notify.Handler, error) {
	var handlers []notify.Handler
	if cfg.NotifyEmailEnabled {
		handlers = append(handlers, notify.EmailNotifier{Mail: notify.LogMailer{}, TopicToggles: cfg.NotifyEmailTopics})
	}
	endpoints, err := notify.ParseEndpoints(cfg.WebhookEndpoints)
	if err != nil {
		return nil, err
	}
	if len(endpoints) > 0 {
		breaker := resilience.NewBreaker(5, 0.5, 30*time.Second).WithTarget("webhook").WithLogger(logger)
		handlers = append(handlers, &notify.Dispatcher{
			Endpoints: endpoints,
			HTTP:      notify.NewHTTPClient(cfg.WebhookTimeout, breaker),
			Replay:    notify.RedisReplayProtector{Client: rdb},
			ReplayTTL: cfg.WebhookReplayTTL,
		})
	}
	if len(handlers) == 0 {
		handlers = append(handlers, events.LogNotifier{})
	}
	return handlers, nil
}

func serveMetrics(ctx context.Context, addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server")
	}
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisotel.InstrumentMetrics(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis metrics")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return redisClient
}
