package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hive-corporation/watchtower-chat/internal/adapter/transport"
	"github.com/hive-corporation/watchtower-chat/internal/core/domain"
)

const maxLineBytes = 4 << 20

type summary struct {
	Messages   int
	Malformed  int
	Inserted   int
	Duplicates int
	Failures   int
}

// ingest feeds every JSON line of r through proc using up to workers
// goroutines. Malformed lines are skipped; only a read error or a
// cancelled context stops the run.
func ingest(ctx context.Context, r io.Reader, proc transport.MessageProcessor, workers int, logger *zap.SugaredLogger) (summary, error) {
	if workers < 1 {
		workers = 1
	}

	var (
		mu  sync.Mutex
		sum summary
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if gctx.Err() != nil {
			break
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg domain.Message
		if err := json.Unmarshal(line, &msg); err != nil {
			logger.Warnw("skipping malformed line", "line", lineNo, "error", err)
			mu.Lock()
			sum.Malformed++
			mu.Unlock()
			continue
		}

		g.Go(func() error {
			report := proc.ProcessMessage(gctx, msg.Text, msg.Source())

			mu.Lock()
			defer mu.Unlock()
			sum.Messages++
			sum.Inserted += report.Inserted
			sum.Duplicates += report.Duplicates
			sum.Failures += report.Failures
			return nil
		})
	}

	scanErr := scanner.Err()
	_ = g.Wait()

	if scanErr != nil {
		return sum, fmt.Errorf("scanner error at line %d: %w", lineNo+1, scanErr)
	}
	return sum, ctx.Err()
}
