package resume

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-placement/internal/config"
	"github.com/stemsi/exstem-placement/internal/database"
)

// Open builds the Store selected by cfg.ResumeBackend. The returned close
// function releases any connection the store holds.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (Store, func(), error) {
	noop := func() {}

	switch cfg.ResumeBackend {
	case config.ResumeBackendFile, "":
		return NewFileStore(cfg.ResumeDir, log), noop, nil

	case config.ResumeBackendMemory:
		return NewMemoryStore(), noop, nil

	case config.ResumeBackendSQLite:
		db, err := database.NewSQLite(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		store, err := NewSQLiteStore(ctx, db, log)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return store, func() { _ = db.Close() }, nil

	case config.ResumeBackendRedis:
		rdb, err := database.NewRedisClient(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		return NewRedisStore(rdb, cfg.ResumeTTL, log), func() { _ = rdb.Close() }, nil

	case config.ResumeBackendPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		return NewPostgresStore(pool, log), pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown resume backend %q", cfg.ResumeBackend)
	}
}
