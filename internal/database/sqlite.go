package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-placement/internal/config"
)

// NewSQLite opens the device-local SQLite database.
func NewSQLite(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*sql.DB, error) {
	path := strings.TrimSpace(cfg.SQLitePath)
	if path == "" {
		path = "placement.db"
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// One writer keeps SQLite from returning SQLITE_BUSY under the clock goroutine.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}

	log.Info().
		Str("path", path).
		Msg("SQLite opened")

	return db, nil
}
