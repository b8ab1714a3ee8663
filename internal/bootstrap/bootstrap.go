package bootstrap

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hive-corporation/watchtower-chat/internal/adapter/provider"
	"github.com/hive-corporation/watchtower-chat/internal/config"
	"github.com/hive-corporation/watchtower-chat/internal/core/domain"
	"github.com/hive-corporation/watchtower-chat/internal/core/ports"
)

// TLDSource picks the registry source: a local file when TLD_FILE is set,
// the remote list otherwise.
func TLDSource(cfg *config.Config, logger *zap.SugaredLogger) ports.TLDSource {
	if cfg.TLDFile != "" {
		return provider.NewFileTLDProvider(cfg.TLDFile)
	}
	client := provider.NewResilientClient(30*time.Second, cfg.TLDClient, logger)
	return provider.NewIANATLDProvider(client, cfg.TLDSourceURL, logger)
}

// LoadTLDs loads the registry once. When the source fails and required is
// false, it returns a nil registry and no error: domain classification is
// then disabled for the life of the process.
func LoadTLDs(ctx context.Context, source ports.TLDSource, required bool, logger *zap.SugaredLogger) (*domain.TLDRegistry, error) {
	reg, err := source.Load(ctx)
	if err != nil {
		if required {
			return nil, err
		}
		logger.Warnw("TLD registry unavailable, domain detection disabled", "source", source.Name(), "error", err)
		return nil, nil
	}

	sorted := reg.Sorted()
	logger.Infow("loaded TLD registry",
		"source", source.Name(),
		"count", len(sorted),
		"first", sorted[0],
		"last", sorted[len(sorted)-1],
	)
	return reg, nil
}

// LogStats writes the current store totals at info level.
func LogStats(ctx context.Context, repo ports.IOCRepository, logger *zap.SugaredLogger, msg string) {
	stats, err := repo.Stats(ctx)
	if err != nil {
		logger.Warnw("failed to read IOC statistics", "error", err)
		return
	}
	logger.Infow(msg,
		"total", stats.Total,
		"distinct", stats.Distinct,
		"ip", stats.PerType[domain.IPAddress],
		"domain", stats.PerType[domain.Domain],
		"url", stats.PerType[domain.URL],
	)
}
