package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/stemsi/exstem-placement/internal/apiclient"
	"github.com/stemsi/exstem-placement/internal/config"
	"github.com/stemsi/exstem-placement/internal/console"
	"github.com/stemsi/exstem-placement/internal/i18n"
	"github.com/stemsi/exstem-placement/internal/logger"
	"github.com/stemsi/exstem-placement/internal/model"
	"github.com/stemsi/exstem-placement/internal/resume"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	examFlag := flag.String("exam", "", "exam (form) id; skips the form menu")
	langFlag := flag.String("lang", cfg.Language, "display language (en, my)")
	flag.Parse()

	// ─── Initialize Logger ─────────────────────────────────────────────
	// stdout belongs to the exam screen.
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	var examID model.ID
	if *examFlag != "" {
		id, err := model.ParseID(*examFlag)
		if err != nil {
			log.Fatal().Err(err).Str("exam", *examFlag).Msg("Invalid exam id")
		}
		examID = id
	}

	// ─── Auth Token ────────────────────────────────────────────────────
	token := cfg.AuthToken
	if token == "" && term.IsTerminal(int(syscall.Stdin)) {
		fmt.Print("Access token (leave empty for none): ")
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read token")
		}
		token = strings.TrimSpace(string(raw))
	}
	if token != "" {
		if info, err := apiclient.InspectToken(token); err == nil && info.Expired(time.Now()) {
			log.Warn().Time("expired_at", *info.ExpiresAt).Msg("Access token has expired; the server will likely reject it")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ─── Open Resume Store ─────────────────────────────────────────────
	store, closeStore, err := resume.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open resume store")
	}
	defer closeStore()

	client := apiclient.NewClient(cfg.APIBaseURL, &http.Client{Timeout: cfg.HTTPTimeout}, token, logger.Component(log, "apiclient"))

	err = console.Run(ctx, os.Stdin, os.Stdout, console.Config{
		Backend:      client,
		Store:        store,
		Translator:   i18n.MustNew(),
		Lang:         i18n.ParseLang(*langFlag),
		ExamID:       examID,
		TickInterval: cfg.TickInterval,
		Log:          logger.Component(log, "console"),
	})
	if err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("Placement test ended with an error")
		closeStore()
		os.Exit(1)
	}
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
