package ports

import (
	"context"

	"github.com/hive-corporation/watchtower-chat/internal/core/domain"
)

// TLDSource loads the registry used to validate domain candidates.
type TLDSource interface {
	Load(ctx context.Context) (*domain.TLDRegistry, error)
	Name() string
}

// IOCRepository is the deduplicated IOC store. Uniqueness of
// (value, type, message id) is enforced by the backing database, so Insert
// is safe to call from many goroutines and processes at once.
type IOCRepository interface {
	// Insert records a first sighting. A duplicate triple is reported through
	// InsertResult, not as an error.
	Insert(ctx context.Context, candidate domain.Candidate) (domain.InsertResult, error)
	// Query returns the most recent records, newest first.
	Query(ctx context.Context, filter domain.QueryFilter) ([]domain.IOC, error)
	// UniqueValues returns distinct values in lexicographic order.
	UniqueValues(ctx context.Context, iocType domain.IOCType) ([]string, error)
	// Search is a case-sensitive substring match on value, newest first.
	Search(ctx context.Context, substring string) ([]domain.IOC, error)
	Stats(ctx context.Context) (domain.Stats, error)
	// ExportAll returns every record, newest first.
	ExportAll(ctx context.Context) ([]domain.IOC, error)
	Close()
}
