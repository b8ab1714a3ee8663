package main

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hive-corporation/watchtower-chat/internal/adapter/repository"
	"github.com/hive-corporation/watchtower-chat/internal/core/domain"
	"github.com/hive-corporation/watchtower-chat/internal/core/service"
)

const messages = `{"text":"c2 at 10.0.0.1 and evil.com","chat_id":-100,"message_id":1}
not json at all

{"text":"again 10.0.0.1","chat_id":-100,"message_id":1}
{"text":"https://evil.com/drop.sh","chat_title":"IR","message_id":2}
`

func TestIngest(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop().Sugar()

	repo, err := repository.NewSQLiteRepository(ctx, filepath.Join(t.TempDir(), "ingest.db"), logger)
	require.NoError(t, err)
	t.Cleanup(repo.Close)

	tlds, err := domain.NewTLDRegistry([]string{"com"})
	require.NoError(t, err)
	pipeline := service.NewIngestionPipeline(repo, tlds, logger)

	sum, err := ingest(ctx, strings.NewReader(messages), pipeline, 3, logger)
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Messages)
	assert.Equal(t, 1, sum.Malformed)
	assert.Equal(t, 3, sum.Inserted)
	assert.Equal(t, 1, sum.Duplicates)
	assert.Zero(t, sum.Failures)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
}

func TestIngest_ReadError(t *testing.T) {
	boom := errors.New("read failed")
	_, err := ingest(context.Background(), iotest.ErrReader(boom), &countingProcessor{}, 1, zap.NewNop().Sugar())
	assert.ErrorIs(t, err, boom)
}

func TestIngest_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	proc := &countingProcessor{}
	_, err := ingest(ctx, strings.NewReader(messages), proc, 1, zap.NewNop().Sugar())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, proc.calls)
}

type countingProcessor struct {
	calls int
}

func (p *countingProcessor) ProcessMessage(context.Context, string, domain.Source) service.Report {
	p.calls++
	return service.Report{}
}
