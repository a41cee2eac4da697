package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/reigncloud/reigncloud/internal/adapter/httpserver"
	"github.com/reigncloud/reigncloud/internal/adapter/metrics"
	"github.com/reigncloud/reigncloud/internal/adapter/postgres"
	"github.com/reigncloud/reigncloud/internal/adapter/redis"
	"github.com/reigncloud/reigncloud/internal/app"
	"github.com/reigncloud/reigncloud/internal/auth"
	"github.com/reigncloud/reigncloud/internal/platform/config"
	"github.com/reigncloud/reigncloud/internal/platform/logging"
	"github.com/reigncloud/reigncloud/internal/platform/retry"
	"github.com/reigncloud/reigncloud/internal/platform/version"
	"github.com/reigncloud/reigncloud/internal/push"
	"golang.org/x/crypto/bcrypt"
)

const (
	setupTimeout    = 2 * time.Minute
	shutdownTimeout = 10 * time.Second
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func startupPolicy(name string) retry.Policy {
	p := retry.Startup
	p.OnRetry = func(attempt int, err error, backoff time.Duration) {
		slog.Warn("Backing service not ready, retrying", "service", name, "attempt", attempt, "backoff", backoff, "error", err)
	}
	return p
}

func setupDB(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, clock clockwork.Clock) *pgxpool.Pool {
	tracer := postgres.NewMetricsTracer(metrics.NewDBMetrics(reg), clock)

	pool, err := retry.Do(ctx, startupPolicy("postgres"), retry.Transient, func(ctx context.Context) (*pgxpool.Pool, error) {
		return postgres.Connect(ctx, cfg.DatabaseURL, tracer)
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func setupRedis(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, clock clockwork.Clock) *goredis.Client {
	m := metrics.NewRedisMetrics(reg)
	hooks := []goredis.Hook{
		redis.NewMetricsHook(m, clock),
		redis.NewCircuitBreakerHook(redis.DefaultBreakerSettings(), m),
	}

	client, err := retry.Do(ctx, startupPolicy("redis"), retry.Transient, func(ctx context.Context) (*goredis.Client, error) {
		return redis.NewClient(ctx, cfg.RedisURL, hooks...)
	})
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func runGracefulShutdown(srv *httpserver.Server, gate *push.Gate) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		// Hijacked push connections outlive the HTTP server; close them with a going-away frame.
		if err := gate.Stop(shutdownCtx); err != nil {
			slog.Error("Push sessions did not drain", "error", err, "remaining", gate.Connections())
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Get().String())

	reg := metrics.NewRegistry()

	setupCtx, cancelSetup := context.WithTimeout(context.Background(), setupTimeout)
	pool := setupDB(setupCtx, cfg, reg, clock)
	defer pool.Close()

	redisClient := setupRedis(setupCtx, cfg, reg, clock)
	defer func() { _ = redisClient.Close() }()
	cancelSetup()

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, clock)

	pushMetrics := metrics.NewPushMetrics(reg)
	registry := push.NewRegistry(pushMetrics)
	gate := push.NewGate(tokens, registry, clock, pushMetrics, push.GateConfig{
		CheckOrigin:    push.NewCheckOrigin(cfg.AppURL, cfg.IsDevelopment()),
		MaxConnections: int64(cfg.MaxWebSocketConnections),
	})

	appSvc := app.NewService(app.Deps{
		Users:    postgres.NewUserRepo(pool),
		Messages: postgres.NewMessageRepo(pool),
		Tokens:   tokens,
		Refresh:  redis.NewRefreshTokenStore(redisClient),
		Hasher:   auth.NewBcryptHasher(bcrypt.DefaultCost),
		Pusher:   push.NewGateway(registry),
		Metrics:  metrics.NewMessageMetrics(reg),
	})

	srv := httpserver.NewServer(cfg, httpserver.Deps{
		App:            appSvc,
		Verifier:       tokens,
		PushHandler:    gate,
		MetricsHandler: metrics.Handler(reg),
		HTTPMetrics:    metrics.NewHTTPMetrics(reg),
		HealthChecks: []httpserver.HealthCheck{
			{Name: "postgres", Check: pool.Ping},
			{Name: "redis", Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
		},
	})

	done := runGracefulShutdown(srv, gate)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
