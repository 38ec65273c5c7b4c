package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-placement/internal/apiclient"
	"github.com/stemsi/exstem-placement/internal/config"
	"github.com/stemsi/exstem-placement/internal/handler"
	"github.com/stemsi/exstem-placement/internal/i18n"
	"github.com/stemsi/exstem-placement/internal/logger"
	"github.com/stemsi/exstem-placement/internal/middleware"
	"github.com/stemsi/exstem-placement/internal/resume"
	"github.com/stemsi/exstem-placement/internal/router"
	"github.com/stemsi/exstem-placement/internal/service"
	"github.com/stemsi/exstem-placement/internal/validator"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat, nil)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("api", cfg.APIBaseURL).
		Str("resume_backend", cfg.ResumeBackend).
		Msg("Starting placement runner")

	// ─── Initialize Validator & Translations ───────────────────────────
	validator.Setup()
	tr := i18n.MustNew()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Open Resume Store ─────────────────────────────────────────────
	store, closeStore, err := resume.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open resume store")
	}
	defer closeStore()

	// ─── Initialize Services ──────────────────────────────────────────
	client := apiclient.NewClient(cfg.APIBaseURL, &http.Client{Timeout: cfg.HTTPTimeout}, cfg.AuthToken, logger.Component(log, "apiclient"))
	runner := service.NewRunnerService(ctx, client, store, service.RunnerOptions{
		TickInterval: cfg.TickInterval,
		CallTimeout:  cfg.HTTPTimeout,
	}, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Runner: handler.NewRunnerHandler(runner, tr),
		WS:     handler.NewWSHandler(runner, tr, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	startLimiter := middleware.NewRateLimiter(5, time.Minute)

	go runner.Run(workerCtx)
	go startLimiter.Run(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(handlers, startLimiter, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// Sessions keep their resume records; a restart picks them up again.
	workerCancel()
	runner.CloseAll()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
