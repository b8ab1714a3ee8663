package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hive-corporation/watchtower-chat/internal/adapter/handler"
	"github.com/hive-corporation/watchtower-chat/internal/adapter/metrics"
	"github.com/hive-corporation/watchtower-chat/internal/adapter/repository"
	"github.com/hive-corporation/watchtower-chat/internal/adapter/transport"
	"github.com/hive-corporation/watchtower-chat/internal/bootstrap"
	"github.com/hive-corporation/watchtower-chat/internal/config"
	"github.com/hive-corporation/watchtower-chat/internal/core/service"
	"github.com/hive-corporation/watchtower-chat/internal/logging"
)

func main() {
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

	if err := run(cfg, logger); err != nil {
		logger.Errorw("watchtower stopped with error", "error", err)
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.SugaredLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.InitMetrics()

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
	// Built before any transport starts so its pipeline hooks are in place.
	restHandler := handler.NewRestHandler(repo, pipeline, tlds, cfg.StatsCacheTTL, logger)

	var subscriber *transport.NATSSubscriber
	if cfg.NATSURL != "" {
		subscriber, err = transport.NewNATSSubscriber(cfg.NATSURL, pipeline, logger)
		if err != nil {
			return err
		}
		if err := subscriber.Subscribe(cfg.NATSSubject, cfg.NATSQueue); err != nil {
			subscriber.Close()
			return err
		}
	} else {
		logger.Info("NATS ingress disabled (no NATS_URL)")
	}

	srv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      handler.NewRouter(restHandler, cfg.RESTAuthToken, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infow("Watchtower REST API listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	if subscriber != nil {
		subscriber.Close()
	}

	// The signal context is already cancelled here.
	finalCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	bootstrap.LogStats(finalCtx, repo, logger, "final IOC statistics")

	if err == nil {
		logger.Info("server stopped gracefully")
	}
	return err
}
