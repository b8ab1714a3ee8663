package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/hive-corporation/watchtower-chat/internal/adapter/metrics"
	"github.com/hive-corporation/watchtower-chat/internal/adapter/repository"
	"github.com/hive-corporation/watchtower-chat/internal/bootstrap"
	"github.com/hive-corporation/watchtower-chat/internal/config"
	"github.com/hive-corporation/watchtower-chat/internal/core/service"
	"github.com/hive-corporation/watchtower-chat/internal/logging"
)

func main() {
	file := flag.String("file", "", "JSON lines file of chat messages (default: stdin)")
	workers := flag.Int("workers", 4, "number of messages processed concurrently")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, *file, *workers, logger); err != nil {
		logger.Errorw("ingestion failed", "error", err)
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, file string, workers int, logger *zap.SugaredLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.InitMetrics()

	var input io.Reader = os.Stdin
	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("error reading file: %w", err)
		}
		defer f.Close()
		input = f
	}

	tlds, err := bootstrap.LoadTLDs(ctx, bootstrap.TLDSource(cfg, logger), cfg.TLDRequired, logger)
	if err != nil {
		return err
	}

	repo, err := repository.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	bootstrap.LogStats(ctx, repo, logger, "initial IOC statistics")

	pipeline := service.NewIngestionPipeline(repo, tlds, logger)

	logger.Infow("chat message ingestion started", "source", sourceName(file), "workers", workers)
	summary, err := ingest(ctx, input, pipeline, workers, logger)

	logger.Infow("chat message ingestion finished",
		"messages", summary.Messages,
		"malformed", summary.Malformed,
		"inserted", summary.Inserted,
		"duplicates", summary.Duplicates,
		"failures", summary.Failures,
	)
	bootstrap.LogStats(context.Background(), repo, logger, "final IOC statistics")
	return err
}

func sourceName(file string) string {
	if file == "" {
		return "stdin"
	}
	return file
}
