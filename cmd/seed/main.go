package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/telehealth-booking/internal/appointment"
	"github.com/hackgods/telehealth-booking/internal/availability"
	"github.com/hackgods/telehealth-booking/internal/config"
	"github.com/hackgods/telehealth-booking/internal/db"
	"github.com/hackgods/telehealth-booking/internal/logging"
	"github.com/hackgods/telehealth-booking/internal/seed"
)

func main() {
	doctors := flag.Int("doctors", 100, "number of doctors to create")
	patients := flag.Int("patients", 9000, "number of patients to create")
	seedValue := flag.Uint64("seed", 0, "faker seed, 0 for random")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New(cfg.LogLevel, cfg.Env).With().Str("service", "seed").Logger()

	if cfg.PostgresDSN == "" {
		logger.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.DefaultPoolConfig())
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	logger.Info().Int("doctors", *doctors).Int("patients", *patients).Msg("seed starting")
	start := time.Now()

	res, err := seed.Populate(ctx, seed.NewGenerator(*seedValue),
		appointment.NewPgRepository(pool), availability.NewPgStore(pool), *doctors, *patients)
	if err != nil {
		logger.Fatal().Err(err).
			Int("doctors_done", len(res.Doctors)).
			Int("patients_done", len(res.Patients)).
			Msg("seed failed")
	}

	logger.Info().
		Int("doctors", len(res.Doctors)).
		Int("patients", len(res.Patients)).
		Dur("took", time.Since(start)).
		Msg("seed complete")
}
