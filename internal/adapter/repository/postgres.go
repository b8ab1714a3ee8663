package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hive-corporation/watchtower-chat/internal/core/domain"
)

// NULLS NOT DISTINCT (PostgreSQL 15+) makes every insert without a message
// id share one dedup bucket.
const postgresSchema = `
	CREATE TABLE IF NOT EXISTS iocs (
		id              BIGSERIAL PRIMARY KEY,
		value           TEXT NOT NULL,
		type            TEXT NOT NULL CHECK (type IN ('ip', 'domain', 'url')),
		chat_id         BIGINT,
		chat_title      TEXT,
		message_id      BIGINT,
		message_text    TEXT,
		sender_id       BIGINT,
		sender_username TEXT,
		detected_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT iocs_value_type_message_key UNIQUE NULLS NOT DISTINCT (value, type, message_id)
	);
	CREATE INDEX IF NOT EXISTS idx_iocs_value ON iocs (value);
	CREATE INDEX IF NOT EXISTS idx_iocs_type ON iocs (type);
	CREATE INDEX IF NOT EXISTS idx_iocs_detected_at ON iocs (detected_at);
`

const postgresColumns = `id, value, type, chat_id, chat_title, message_id, message_text, sender_id, sender_username, detected_at`

type PostgresRepository struct {
	db     *pgxpool.Pool
	logger *zap.SugaredLogger
}

func NewPostgresRepository(db *pgxpool.Pool, logger *zap.SugaredLogger) *PostgresRepository {
	return &PostgresRepository{db: db, logger: logger}
}

// EnsureSchema creates the iocs table and its indexes if they are missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, postgresSchema); err != nil {
		return &domain.StorageError{Op: "migrate", Err: err}
	}
	r.logger.Info("iocs table ensured in postgres")
	return nil
}

func (r *PostgresRepository) Insert(ctx context.Context, c domain.Candidate) (domain.InsertResult, error) {
	query := `
		INSERT INTO iocs (value, type, chat_id, chat_title, message_id, message_text, sender_id, sender_username)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT DO NOTHING
		RETURNING id, detected_at
	`

	ioc := domain.IOC{Value: c.Value, Type: c.Type, Source: c.Source}

	err := r.db.QueryRow(ctx, query,
		c.Value,
		string(c.Type),
		c.Source.ChatID,
		c.Source.ChatTitle,
		c.Source.MessageID,
		c.Source.MessageText,
		c.Source.SenderID,
		c.Source.SenderUsername,
	).Scan(&ioc.ID, &ioc.DetectedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// ON CONFLICT DO NOTHING returns no row for an existing triple.
			return domain.InsertResult{}, nil
		}
		return domain.InsertResult{}, &domain.StorageError{Op: "insert", Err: err}
	}

	return domain.InsertResult{Inserted: true, Record: ioc}, nil
}

func (r *PostgresRepository) Query(ctx context.Context, filter domain.QueryFilter) ([]domain.IOC, error) {
	query := `SELECT ` + postgresColumns + `
		FROM iocs
		WHERE ($1 = '' OR type = $1)
		ORDER BY detected_at DESC, id DESC
		LIMIT $2
	`
	return r.queryIOCs(ctx, "query", query, string(filter.Type), filter.EffectiveLimit())
}

func (r *PostgresRepository) UniqueValues(ctx context.Context, iocType domain.IOCType) ([]string, error) {
	// COLLATE "C" gives byte order regardless of the database locale.
	query := `
		SELECT DISTINCT value COLLATE "C" AS value
		FROM iocs
		WHERE ($1 = '' OR type = $1)
		ORDER BY 1
	`

	rows, err := r.db.Query(ctx, query, string(iocType))
	if err != nil {
		return nil, &domain.StorageError{Op: "unique", Err: err}
	}

	values, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, &domain.StorageError{Op: "unique", Err: err}
	}
	return values, nil
}

func (r *PostgresRepository) Search(ctx context.Context, substring string) ([]domain.IOC, error) {
	// strpos is case-sensitive and needs no LIKE escaping.
	query := `SELECT ` + postgresColumns + `
		FROM iocs
		WHERE strpos(value, $1) > 0
		ORDER BY detected_at DESC, id DESC
	`
	return r.queryIOCs(ctx, "search", query, substring)
}

func (r *PostgresRepository) Stats(ctx context.Context) (domain.Stats, error) {
	stats := domain.NewStats()

	err := r.db.QueryRow(ctx, `SELECT COUNT(*), COUNT(DISTINCT value) FROM iocs`).Scan(&stats.Total, &stats.Distinct)
	if err != nil {
		return domain.Stats{}, &domain.StorageError{Op: "stats", Err: err}
	}

	rows, err := r.db.Query(ctx, `SELECT type, COUNT(*) FROM iocs GROUP BY type`)
	if err != nil {
		return domain.Stats{}, &domain.StorageError{Op: "stats", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var iocType string
		var count int64
		if err := rows.Scan(&iocType, &count); err != nil {
			return domain.Stats{}, &domain.StorageError{Op: "stats", Err: err}
		}
		stats.PerType[domain.IOCType(iocType)] = count
	}
	if err := rows.Err(); err != nil {
		return domain.Stats{}, &domain.StorageError{Op: "stats", Err: err}
	}

	return stats, nil
}

func (r *PostgresRepository) ExportAll(ctx context.Context) ([]domain.IOC, error) {
	query := `SELECT ` + postgresColumns + `
		FROM iocs
		ORDER BY detected_at DESC, id DESC
	`
	return r.queryIOCs(ctx, "export", query)
}

func (r *PostgresRepository) Close() {
	r.db.Close()
}

func (r *PostgresRepository) queryIOCs(ctx context.Context, op, query string, args ...any) ([]domain.IOC, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, &domain.StorageError{Op: op, Err: err}
	}
	defer rows.Close()

	var iocs []domain.IOC

	for rows.Next() {
		var ioc domain.IOC
		var iocType string
		err := rows.Scan(
			&ioc.ID,
			&ioc.Value,
			&iocType,
			&ioc.Source.ChatID,
			&ioc.Source.ChatTitle,
			&ioc.Source.MessageID,
			&ioc.Source.MessageText,
			&ioc.Source.SenderID,
			&ioc.Source.SenderUsername,
			&ioc.DetectedAt,
		)
		if err != nil {
			return nil, &domain.StorageError{Op: op, Err: fmt.Errorf("failed to scan IOC: %w", err)}
		}
		ioc.Type = domain.IOCType(iocType)
		iocs = append(iocs, ioc)
	}

	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Op: op, Err: fmt.Errorf("error iterating rows: %w", err)}
	}

	return iocs, nil
}
