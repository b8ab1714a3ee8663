package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hive-corporation/watchtower-chat/internal/core/domain"
	"github.com/hive-corporation/watchtower-chat/internal/core/ports"
)

// Open picks the backend from the DSN: postgres:// and postgresql:// URLs
// go to Postgres, anything else is a SQLite file path (an optional
// sqlite:// prefix is stripped). The schema is created if missing.
func Open(ctx context.Context, dsn string, logger *zap.SugaredLogger) (ports.IOCRepository, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, &domain.StorageError{Op: "open", Err: fmt.Errorf("unable to connect to database: %w", err)}
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, &domain.StorageError{Op: "open", Err: fmt.Errorf("unable to reach database: %w", err)}
		}

		repo := NewPostgresRepository(pool, logger)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return repo, nil

	default:
		path := strings.TrimPrefix(dsn, "sqlite://")
		if path == "" {
			return nil, &domain.StorageError{Op: "open", Err: errors.New("empty database path")}
		}
		repo, err := NewSQLiteRepository(ctx, path, logger)
		if err != nil {
			return nil, err
		}
		return repo, nil
	}
}
