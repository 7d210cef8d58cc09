package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/violin-academy/academy-back/internal/api"
	"github.com/violin-academy/academy-back/internal/auth"
	"github.com/violin-academy/academy-back/internal/cache"
	"github.com/violin-academy/academy-back/internal/config"
	"github.com/violin-academy/academy-back/internal/cron"
	"github.com/violin-academy/academy-back/internal/db"
	"github.com/violin-academy/academy-back/internal/logger"
	"github.com/violin-academy/academy-back/internal/mail"
	"github.com/violin-academy/academy-back/internal/memdb"
	"github.com/violin-academy/academy-back/internal/metrics"
	"github.com/violin-academy/academy-back/internal/repo"
	"github.com/violin-academy/academy-back/internal/validate"
)

const appName = "Violin Academy"

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	log := logger.New(cfg.Env)
	if envErr != nil {
		log.Debug("no .env file found, using system env")
	}

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	validate.Setup()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	queryCache, closeCache, err := openCache(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeCache()

	var mailer mail.Mailer = mail.NewLog(log)
	if cfg.SendgridAPIKey != "" {
		mailer = mail.NewSendgrid(cfg.SendgridAPIKey, appName, cfg.MailFrom)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	tokens, err := auth.NewTokens(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		return err
	}
	var google *auth.Google
	if cfg.GoogleEnabled() {
		google = auth.NewGoogle(cfg.GoogleClientID, cfg.GoogleSecret, cfg.GoogleRedirectURL)
	}

	loc := cfg.Location()
	handler := api.NewHandler(store, queryCache, mailer, m, log, api.Options{
		Location:    loc,
		StreakLimit: cfg.PracticeStreakLimit,
		CacheTTL:    cfg.CacheTTL,
		NotifyEmail: cfg.AdminNotifyEmail,
	})
	router := api.SetupRouter(api.RouterDeps{
		Handler:  handler,
		Auth:     auth.NewHandler(tokens, store, google, log),
		Guard:    auth.NewGuard(tokens, store),
		Metrics:  m,
		Gatherer: reg,
		Log:      log,
	})

	if cfg.CronEnabled {
		jobs := cron.NewJobs(store, store, mailer, queryCache, m, log, cron.Config{
			Location:    loc,
			GraceDays:   cfg.FeeGraceDays,
			NotifyEmail: cfg.AdminNotifyEmail,
		})
		scheduler, err := jobs.Start()
		if err != nil {
			return err
		}
		defer func() { <-scheduler.Stop().Done() }()
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("server running", "addr", cfg.HTTPAddr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (repo.Store, func(), error) {
	if cfg.DBUrl == "memory" {
		log.Warn("using in-memory storage, data is lost on restart")
		return memdb.New(), func() {}, nil
	}
	store, err := db.Open(ctx, cfg.DBUrl, log, db.Options{ReadRetries: uint64(max(cfg.ProfileReadRetries, 0))})
	if err != nil {
		return nil, nil, err
	}
	return store, func() {
		if err := store.Close(); err != nil {
			log.Error("db close error", "err", err)
		}
	}, nil
}

func openCache(ctx context.Context, cfg *config.Config, log *slog.Logger) (cache.Cache, func(), error) {
	if cfg.RedisAddr == "" {
		return cache.NewMemory(), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, nil, err
	}
	log.Info("redis cache connected", "addr", cfg.RedisAddr)
	return cache.NewRedis(client), func() {
		if err := client.Close(); err != nil {
			log.Error("redis close error", "err", err)
		}
	}, nil
}
