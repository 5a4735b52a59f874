package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vitorrgg/app-freteclick/internal/config"
	"github.com/vitorrgg/app-freteclick/internal/freteclick"
	"github.com/vitorrgg/app-freteclick/internal/health"
	"github.com/vitorrgg/app-freteclick/internal/lock"
	"github.com/vitorrgg/app-freteclick/internal/obs"
	"github.com/vitorrgg/app-freteclick/internal/postal"
	"github.com/vitorrgg/app-freteclick/internal/ratelimit"
	"github.com/vitorrgg/app-freteclick/internal/resilience"
	"github.com/vitorrgg/app-freteclick/internal/security"
	"github.com/vitorrgg/app-freteclick/internal/shipping"
	"github.com/vitorrgg/app-freteclick/internal/storeapi"
	"github.com/vitorrgg/app-freteclick/internal/tagging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.Log.Format, cfg.Log.Level).With().Str("env", cfg.AppEnv).Str("version", version).Logger()

	var httpMetrics *obs.HTTPMetrics
	if cfg.Metrics.Enabled {
		obs.MustRegisterDomainMetrics(cfg.Metrics.Namespace, nil)
		resilience.RegisterMetrics(nil)
		httpMetrics = obs.NewHTTPMetrics(cfg.Metrics.Namespace, obs.ParseBucketsCSV(cfg.Metrics.Buckets), nil)
	}

	tracingEnabled := cfg.Tracing.Enabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:    cfg.Tracing.ServiceName,
			ServiceVersion: version,
			Endpoint:       cfg.Tracing.Endpoint,
			Exporter:       cfg.Tracing.Exporter,
			SamplingRatio:  cfg.Tracing.SamplingRatio,
			Environment:    cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	redisClient := connectRedis(cfg, logger)
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
	}

	breaker := func(target string) *resilience.Breaker {
		return resilience.NewBreaker(resilience.BreakerConfig{
			Target:       target,
			MinRequests:  cfg.Breaker.MinRequests,
			FailureRatio: cfg.Breaker.FailureRatio,
			OpenFor:      cfg.Breaker.OpenFor,
		}, logger)
	}

	// Per-call timeouts are set by each client, so the transports carry none.
	carrier := freteclick.NewClient(
		freteclick.WithHTTPClient(resilience.NewHTTPClient("freteclick", 0, breaker("freteclick"))),
		freteclick.WithBaseURL(cfg.FreteClick.BaseURL),
		freteclick.WithTimeout(cfg.FreteClick.Timeout),
		freteclick.WithQuoteTimeout(cfg.FreteClick.QuoteTimeout),
	)

	resolver := &postal.Resolver{DefaultCountryCode: cfg.Postal.DefaultCountryCode}
	if cfg.Postal.Enabled {
		resolver.Lookup = postal.NewViaCEP(cfg.Postal.LookupURL,
			resilience.NewHTTPClient("viacep", cfg.Postal.Timeout, breaker("viacep")))
	}
	if redisClient != nil {
		resolver.Cache = postal.NewCache(redisClient, cfg.Postal.CacheTTL)
	}

	calcHandler := &shipping.Handler{
		Calc:      &shipping.Calculator{Quoter: carrier, Resolver: resolver},
		BodyLimit: cfg.BodyLimitBytes,
	}

	store := storeapi.NewClient(cfg.StoreAPI.BaseURL, cfg.StoreAPI.AppID,
		storeapi.StaticAuth{
			StoreID:     cfg.StoreAPI.StoreID,
			AuthID:      cfg.StoreAPI.AuthenticationID,
			AccessToken: cfg.StoreAPI.AccessToken,
		},
		resilience.NewHTTPClient("store_api", cfg.StoreAPI.Timeout, breaker("store_api")),
	)
	tagSvc := &tagging.Service{
		Store:    store,
		Carrier:  carrier,
		Resolver: resolver,
		LockTTL:  cfg.Webhook.TagLockTTL,
	}
	webhook := tagging.Webhook{Svc: tagSvc, ReplayTTL: cfg.Webhook.ReplayTTL, BodyLimit: cfg.BodyLimitBytes}
	if redisClient != nil {
		tagSvc.Locker = lock.Locker{R: redisClient}
		tagSvc.Tags = tagging.RedisTagRecord{R: redisClient, TTL: cfg.Webhook.TagRecordTTL}
		webhook.Replay = redisClient
	}

	limit, err := ratelimit.New(cfg.RateLimit, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter")
	}
	limiter := ratelimit.Handler{
		Limiter: limit,
		Key:     ratelimit.StoreOrIP,
		OnError: func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") },
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(security.Headers{HSTSMaxAge: cfg.HSTSMaxAge}.Middleware)
	r.Use(obs.StoreIDMiddleware)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", obs.StoreIDHeader},
		MaxAge:         300,
	}))

	if cfg.Metrics.Enabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	healthHandler := health.Handler{}
	if redisClient != nil {
		healthHandler.Checker = health.RedisChecker{Client: redisClient}
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/ecom", func(e chi.Router) {
		e.Use(limiter.Middleware)
		e.Post("/modules/calculate-shipping", calcHandler.Calculate)
		e.Post("/webhook", webhook.Handle)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
		return
	case <-ctx.Done():
	}

	health.SetReady(false)
	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
}

// connectRedis returns nil when no Redis is configured. The service then
// runs without postal caching, replay protection, tag locks or the bought
// tag record.
func connectRedis(cfg *config.Config, logger zerolog.Logger) *redis.Client {
	if cfg.RedisURL == "" {
		logger.Warn().Msg("REDIS_URL not set; running without redis")
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
	if cfg.Metrics.Enabled {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return client
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}
