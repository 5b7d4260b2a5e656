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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/telehealth-booking/internal/config"
	"github.com/hackgods/telehealth-booking/internal/events"
	"github.com/hackgods/telehealth-booking/internal/logging"
	"github.com/hackgods/telehealth-booking/internal/metrics"
	"github.com/hackgods/telehealth-booking/internal/notification"
	redisclient "github.com/hackgods/telehealth-booking/internal/redis"
)

// notification-worker consumes ledger events relayed over Redis pub/sub and fills the
// Redis-backed inboxes. Run it with the api-server's NOTIFY_IN_PROCESS=false.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.LogLevel, cfg.Env).With().Str("service", "notification-worker").Logger()
	logger.Info().Str("env", cfg.Env).Str("channel", cfg.EventChannel).Msg("notification-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := redisclient.NewRedisClient(rootCtx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Msg("connected to Redis")

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	svc := notification.NewService(notification.NewRedisStore(rdb, ""), m, logger)
	dispatcher := notification.NewDispatcher(svc)

	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	srv := &http.Server{Addr: ":" + cfg.WorkerMetricsPort, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		return events.Subscribe(gctx, rdb, cfg.EventChannel, logger, func(ctx context.Context, e events.Event) error {
			start := time.Now()
			err := dispatcher.HandleEvent(ctx, e)
			logger.Debug().
				Str("event_type", string(e.Type)).
				Str("event_id", e.ID.String()).
				Dur("took", time.Since(start)).
				Msg("event dispatched")
			return err
		})
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("notification-worker stopped with error")
	}
	logger.Info().Msg("shutdown signal received, notification-worker stopped")
}
