package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hive-corporation/watchtower-chat/internal/adapter/provider"
	"github.com/hive-corporation/watchtower-chat/internal/config"
	"github.com/hive-corporation/watchtower-chat/internal/core/domain"
)

func observedLogger() (*zap.SugaredLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.InfoLevel)
	return zap.New(core).Sugar(), logs
}

func TestTLDSource(t *testing.T) {
	logger := zap.NewNop().Sugar()

	src := TLDSource(&config.Config{TLDFile: "/tmp/tlds.txt"}, logger)
	assert.IsType(t, &provider.FileTLDProvider{}, src)

	src = TLDSource(&config.Config{TLDSourceURL: "https://example.test/tlds.txt", TLDClient: provider.DefaultResilientClientConfig()}, logger)
	assert.IsType(t, &provider.IANATLDProvider{}, src)
	assert.Equal(t, "https://example.test/tlds.txt", src.Name())
}

func TestLoadTLDs_LogsRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tlds.txt")
	require.NoError(t, os.WriteFile(path, []byte("# header\nORG\nCOM\nNET\n"), 0o644))
	logger, logs := observedLogger()

	reg, err := LoadTLDs(context.Background(), provider.NewFileTLDProvider(path), true, logger)
	require.NoError(t, err)
	assert.Equal(t, 3, reg.Len())

	entries := logs.FilterMessage("loaded TLD registry").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "com", fields["first"])
	assert.Equal(t, "org", fields["last"])
	assert.EqualValues(t, 3, fields["count"])
}

func TestLoadTLDs_RequiredFailureAborts(t *testing.T) {
	src := provider.NewFileTLDProvider(filepath.Join(t.TempDir(), "missing.txt"))

	reg, err := LoadTLDs(context.Background(), src, true, zap.NewNop().Sugar())
	assert.Nil(t, reg)
	var fetchErr *domain.FetchError
	assert.True(t, errors.As(err, &fetchErr))
}

func TestLoadTLDs_OptionalFailureDisablesDomains(t *testing.T) {
	src := provider.NewFileTLDProvider(filepath.Join(t.TempDir(), "missing.txt"))
	logger, logs := observedLogger()

	reg, err := LoadTLDs(context.Background(), src, false, logger)
	require.NoError(t, err)
	assert.Nil(t, reg)
	assert.Equal(t, 1, logs.FilterMessage("TLD registry unavailable, domain detection disabled").Len())
}
