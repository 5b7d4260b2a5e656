package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hackgods/telehealth-booking/internal/api"
	"github.com/hackgods/telehealth-booking/internal/appointment"
	"github.com/hackgods/telehealth-booking/internal/availability"
	"github.com/hackgods/telehealth-booking/internal/conferencing"
	"github.com/hackgods/telehealth-booking/internal/config"
	"github.com/hackgods/telehealth-booking/internal/db"
	"github.com/hackgods/telehealth-booking/internal/events"
	"github.com/hackgods/telehealth-booking/internal/identity"
	"github.com/hackgods/telehealth-booking/internal/logging"
	"github.com/hackgods/telehealth-booking/internal/metrics"
	"github.com/hackgods/telehealth-booking/internal/notification"
	"github.com/hackgods/telehealth-booking/internal/payment"
	redisclient "github.com/hackgods/telehealth-booking/internal/redis"
	"github.com/hackgods/telehealth-booking/internal/seed"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.LogLevel, cfg.Env).With().Str("service", "api-server").Logger()
	logger.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("storage", cfg.StorageDriver).
		Str("locks", cfg.LockBackend).
		Str("notifications", cfg.NotificationBackend).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(rootCtx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("api-server stopped with error")
	}
	logger.Info().Msg("api-server shut down cleanly")
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	var health []api.Dependency

	var (
		repo       appointment.Repository
		availStore availability.Store
	)
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.DefaultPoolConfig())
		cancel()
		if err != nil {
			return err
		}
		defer pool.Close()
		logger.Info().Msg("connected to Postgres")

		repo = appointment.NewPgRepository(pool)
		availStore = availability.NewPgStore(pool)
		health = append(health, api.Dependency{Name: "postgres", Critical: true, Ping: pool.Ping})
	default:
		repo = appointment.NewMemoryRepository()
		availStore = availability.NewMemoryStore()
	}

	var rdb *redis.Client
	if cfg.NeedsRedis() {
		client, err := redisclient.NewRedisClient(ctx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			return err
		}
		rdb = client
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing redis")
			}
		}()
		logger.Info().Str("addr", cfg.RedisAddr).Msg("connected to Redis")

		health = append(health, api.Dependency{
			Name:     "redis",
			Critical: cfg.LockBackend == config.LockRedis,
			Ping:     func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var locker redisclient.Locker
	if cfg.LockBackend == config.LockRedis {
		locker = redisclient.NewRedisLocker(rdb, cfg.LockTTL, cfg.LockWait)
	} else {
		locker = redisclient.NewLocalLocker(cfg.LockWait)
	}

	var inboxes notification.Store
	if cfg.NotificationBackend == config.NotificationsRedis {
		inboxes = notification.NewRedisStore(rdb, "")
	} else {
		inboxes = notification.NewMemoryStore()
	}
	notifications := notification.NewService(inboxes, m, logger)

	bus := events.NewBus(logger)
	if cfg.NotifyInProcess {
		bus.Subscribe("notifications", notification.NewDispatcher(notifications).HandleEvent)
	}
	publishers := events.Multi{bus}
	if cfg.EventRelay {
		publishers = append(publishers, events.NewRedisPublisher(rdb, cfg.EventChannel))
	}

	links, err := conferencing.NewLinkIssuer(cfg.MeetingBaseURL)
	if err != nil {
		return err
	}

	avail := availability.NewService(availStore, repo, locker, logger)
	appointments := appointment.NewService(repo, avail, locker, appointment.Collaborators{
		Conferencing: links,
		Payments:     payment.NewSimulated(decimal.NewFromFloat(cfg.PaymentLimit), logger),
		Events:       publishers,
		Metrics:      m,
	}, logger)

	if cfg.SeedDemoData && cfg.StorageDriver == config.StorageMemory {
		res, err := seed.Populate(ctx, seed.NewGenerator(0), repo, availStore, 10, 50)
		if err != nil {
			return err
		}
		logger.Info().Int("doctors", len(res.Doctors)).Int("patients", len(res.Patients)).Msg("demo data seeded")
	}

	router := api.NewRouter(api.RouterConfig{
		Appointments:  appointments,
		Availability:  avail,
		Notifications: notifications,
		Identity:      identity.NewResolver(cfg.JWTSecret),
		Logger:        logger,
		Metrics:       m,
		Gatherer:      reg,
		Limiter:       rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
		Dependencies:  health,
		Env:           cfg.Env,
		Version:       version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
