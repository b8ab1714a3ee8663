package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/hive-corporation/watchtower-chat/internal/core/domain"
)

// detected_at is stored as unix nanoseconds so ordering is numeric.
// IFNULL(message_id, '') puts every insert without a message id in one
// dedup bucket; SQLite would otherwise treat NULLs as distinct.
const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS iocs (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		value           TEXT NOT NULL,
		type            TEXT NOT NULL CHECK (type IN ('ip', 'domain', 'url')),
		chat_id         INTEGER,
		chat_title      TEXT,
		message_id      INTEGER,
		message_text    TEXT,
		sender_id       INTEGER,
		sender_username TEXT,
		detected_at     INTEGER NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_iocs_value_type_message ON iocs (value, type, IFNULL(message_id, ''));
	CREATE INDEX IF NOT EXISTS idx_iocs_value ON iocs (value);
	CREATE INDEX IF NOT EXISTS idx_iocs_type ON iocs (type);
	CREATE INDEX IF NOT EXISTS idx_iocs_detected_at ON iocs (detected_at);
`

const sqliteColumns = `id, value, type, chat_id, chat_title, message_id, message_text, sender_id, sender_username, detected_at`

// SQLiteRepository is the embedded store. Writes go through a single
// connection (WAL allows one writer); reads use a separate query_only pool.
type SQLiteRepository struct {
	writeDB *sql.DB
	readDB  *sql.DB
	logger  *zap.SugaredLogger
	now     func() time.Time
}

// SQLiteOption customizes a SQLiteRepository.
type SQLiteOption func(*SQLiteRepository)

// WithClock replaces time.Now as the source of detected_at.
func WithClock(now func() time.Time) SQLiteOption {
	return func(r *SQLiteRepository) {
		r.now = now
	}
}

func NewSQLiteRepository(ctx context.Context, dbPath string, logger *zap.SugaredLogger, opts ...SQLiteOption) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &domain.StorageError{Op: "open", Err: fmt.Errorf("failed to create database directory: %w", err)}
		}
	}

	writeDB, err := openSQLitePool(ctx, dbPath, false)
	if err != nil {
		return nil, &domain.StorageError{Op: "open", Err: fmt.Errorf("write pool: %w", err)}
	}
	writeDB.SetMaxOpenConns(1)
	writeDB.SetMaxIdleConns(1)
	writeDB.SetConnMaxLifetime(0)

	if _, err := writeDB.ExecContext(ctx, sqliteSchema); err != nil {
		_ = writeDB.Close()
		return nil, &domain.StorageError{Op: "migrate", Err: err}
	}

	readDB, err := openSQLitePool(ctx, dbPath, true)
	if err != nil {
		_ = writeDB.Close()
		return nil, &domain.StorageError{Op: "open", Err: fmt.Errorf("read pool: %w", err)}
	}
	readDB.SetMaxOpenConns(10)
	readDB.SetMaxIdleConns(5)
	readDB.SetConnMaxLifetime(5 * time.Minute)

	r := &SQLiteRepository{
		writeDB: writeDB,
		readDB:  readDB,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	logger.Infow("iocs table ensured in sqlite", "path", dbPath)
	return r, nil
}

// openSQLitePool opens a pool whose every connection runs the pragmas.
// Pragmas are per connection, so they go in the DSN rather than a one-off Exec.
func openSQLitePool(ctx context.Context, dbPath string, readOnly bool) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)", dbPath)
	if readOnly {
		dsn += "&_pragma=query_only(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	return db, nil
}

// Insert clamps detected_at to the newest stored value inside the statement.
// The INSERT holds the database write lock, so the order holds for every
// process sharing the file, whatever their clocks say.
func (r *SQLiteRepository) Insert(ctx context.Context, c domain.Candidate) (domain.InsertResult, error) {
	query := `
		INSERT INTO iocs (value, type, chat_id, chat_title, message_id, message_text, sender_id, sender_username, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, MAX(?, IFNULL((SELECT MAX(detected_at) FROM iocs), 0)))
		ON CONFLICT DO NOTHING
		RETURNING id, detected_at
	`

	ioc := domain.IOC{Value: c.Value, Type: c.Type, Source: c.Source}
	var detectedAt int64

	err := r.writeDB.QueryRowContext(ctx, query,
		c.Value,
		string(c.Type),
		c.Source.ChatID,
		c.Source.ChatTitle,
		c.Source.MessageID,
		c.Source.MessageText,
		c.Source.SenderID,
		c.Source.SenderUsername,
		r.now().UnixNano(),
	).Scan(&ioc.ID, &detectedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.InsertResult{}, nil
		}
		return domain.InsertResult{}, &domain.StorageError{Op: "insert", Err: err}
	}
	ioc.DetectedAt = time.Unix(0, detectedAt).UTC()

	return domain.InsertResult{Inserted: true, Record: ioc}, nil
}

func (r *SQLiteRepository) Query(ctx context.Context, filter domain.QueryFilter) ([]domain.IOC, error) {
	query := `SELECT ` + sqliteColumns + `
		FROM iocs
		WHERE (?1 = '' OR type = ?1)
		ORDER BY detected_at DESC, id DESC
		LIMIT ?2
	`
	return r.queryIOCs(ctx, "query", query, string(filter.Type), filter.EffectiveLimit())
}

func (r *SQLiteRepository) UniqueValues(ctx context.Context, iocType domain.IOCType) ([]string, error) {
	// SQLite's default BINARY collation already orders by bytes.
	query := `
		SELECT DISTINCT value
		FROM iocs
		WHERE (?1 = '' OR type = ?1)
		ORDER BY value
	`

	rows, err := r.readDB.QueryContext(ctx, query, string(iocType))
	if err != nil {
		return nil, &domain.StorageError{Op: "unique", Err: err}
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, &domain.StorageError{Op: "unique", Err: err}
		}
		values = append(values, value)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Op: "unique", Err: err}
	}
	return values, nil
}

func (r *SQLiteRepository) Search(ctx context.Context, substring string) ([]domain.IOC, error) {
	// instr is case-sensitive, unlike LIKE.
	query := `SELECT ` + sqliteColumns + `
		FROM iocs
		WHERE instr(value, ?) > 0
		ORDER BY detected_at DESC, id DESC
	`
	return r.queryIOCs(ctx, "search", query, substring)
}

func (r *SQLiteRepository) Stats(ctx context.Context) (domain.Stats, error) {
	stats := domain.NewStats()

	err := r.readDB.QueryRowContext(ctx, `SELECT COUNT(*), COUNT(DISTINCT value) FROM iocs`).Scan(&stats.Total, &stats.Distinct)
	if err != nil {
		return domain.Stats{}, &domain.StorageError{Op: "stats", Err: err}
	}

	rows, err := r.readDB.QueryContext(ctx, `SELECT type, COUNT(*) FROM iocs GROUP BY type`)
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

func (r *SQLiteRepository) ExportAll(ctx context.Context) ([]domain.IOC, error) {
	query := `SELECT ` + sqliteColumns + `
		FROM iocs
		ORDER BY detected_at DESC, id DESC
	`
	return r.queryIOCs(ctx, "export", query)
}

func (r *SQLiteRepository) Close() {
	if err := r.readDB.Close(); err != nil {
		r.logger.Warnw("failed to close sqlite read pool", "error", err)
	}
	if err := r.writeDB.Close(); err != nil {
		r.logger.Warnw("failed to close sqlite write pool", "error", err)
	}
}

func (r *SQLiteRepository) queryIOCs(ctx context.Context, op, query string, args ...any) ([]domain.IOC, error) {
	rows, err := r.readDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &domain.StorageError{Op: op, Err: err}
	}
	defer rows.Close()

	var iocs []domain.IOC

	for rows.Next() {
		var ioc domain.IOC
		var iocType string
		var detectedAt int64
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
			&detectedAt,
		)
		if err != nil {
			return nil, &domain.StorageError{Op: op, Err: fmt.Errorf("failed to scan IOC: %w", err)}
		}
		ioc.Type = domain.IOCType(iocType)
		ioc.DetectedAt = time.Unix(0, detectedAt).UTC()
		iocs = append(iocs, ioc)
	}

	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Op: op, Err: fmt.Errorf("error iterating rows: %w", err)}
	}

	return iocs, nil
}
