package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/careline/callcenter-booking/internal/api"
	"github.com/careline/callcenter-booking/internal/booking"
	"github.com/careline/callcenter-booking/internal/config"
	"github.com/careline/callcenter-booking/internal/db"
	"github.com/careline/callcenter-booking/internal/directory"
	"github.com/careline/callcenter-booking/internal/identity"
	"github.com/careline/callcenter-booking/internal/lab"
	"github.com/careline/callcenter-booking/internal/logging"
	"github.com/careline/callcenter-booking/internal/mail"
	redisclient "github.com/careline/callcenter-booking/internal/redis"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	logging.Init("api-server", cfg.Env)
	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := db.Migrate(cfg.PostgresDSN); err != nil {
		log.Fatal().Err(err).Msg("migration error")
	}

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	mailer, err := mail.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("mailer init error")
	}
	if cfg.SMTPHost == "" {
		log.Warn().Msg("SMTP_HOST unset, outgoing mail disabled")
	}

	loc := cfg.Location()
	locker := redisclient.NewRedisDoctorLocker(rdb, cfg.LockTTL)

	bookingSvc := booking.NewService(booking.NewPgRepository(pgPool, loc), locker, mailer, loc)
	directorySvc := directory.NewService(directory.NewPgRepository(pgPool))
	identitySvc := identity.NewService(identity.NewPgRepository(pgPool), cfg.JWTSecret, cfg.JWTTTL, loc)
	labSvc := lab.NewService(lab.NewPgRepository(pgPool), mailer, loc)

	router := api.NewRouter(api.RouterConfig{
		Booking:   bookingSvc,
		Directory: directorySvc,
		Identity:  identitySvc,
		Lab:       labSvc,
		PgPool:    pgPool,
		Redis:     rdb,
		Location:  loc,
		Env:       cfg.Env,
		Version:   version,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-rootCtx.Done()
	log.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
