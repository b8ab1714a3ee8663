package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	nats "github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/hive-corporation/watchtower-chat/internal/core/domain"
	"github.com/hive-corporation/watchtower-chat/internal/core/service"
)

// MessageProcessor is satisfied by *service.IngestionPipeline.
type MessageProcessor interface {
	ProcessMessage(ctx context.Context, text string, src domain.Source) service.Report
}

// NATSSubscriber feeds chat messages published on a subject into the
// pipeline. Subscribers sharing a queue group split the load.
type NATSSubscriber struct {
	conn      *nats.Conn
	sub       *nats.Subscription
	processor MessageProcessor
	logger    *zap.SugaredLogger
	timeout   time.Duration

	// closed is closed by the connection's ClosedHandler, which runs once
	// every drained subscription has returned from its last callback.
	closed       chan struct{}
	drainTimeout time.Duration
}

type errorReply struct {
	Error string `json:"error"`
}

// NewNATSSubscriber connects to url. The connection retries on its own
// after the first successful dial.
func NewNATSSubscriber(url string, processor MessageProcessor, logger *zap.SugaredLogger) (*NATSSubscriber, error) {
	closed := make(chan struct{})
	drainTimeout := 30 * time.Second

	conn, err := nats.Connect(url,
		nats.Name("watchtower-chat"),
		nats.DrainTimeout(drainTimeout),
		nats.ClosedHandler(func(_ *nats.Conn) {
			close(closed)
		}),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warnw("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Infow("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats at %s: %w", url, err)
	}

	return &NATSSubscriber{
		conn:      conn,
		processor: processor,
		logger:    logger,
		timeout:   30 * time.Second,

		closed:       closed,
		drainTimeout: drainTimeout,
	}, nil
}

// Subscribe starts consuming subject in queue group queue (empty for a
// plain subscription).
func (s *NATSSubscriber) Subscribe(subject, queue string) error {
	handler := func(m *nats.Msg) {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		reply := s.handle(ctx, m.Data)
		if m.Reply == "" {
			return
		}
		if err := m.Respond(reply); err != nil {
			s.logger.Warnw("failed to send nats reply", "subject", m.Reply, "error", err)
		}
	}

	var err error
	if queue != "" {
		s.sub, err = s.conn.QueueSubscribe(subject, queue, handler)
	} else {
		s.sub, err = s.conn.Subscribe(subject, handler)
	}
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	s.logger.Infow("listening for messages on nats", "subject", subject, "queue", queue)
	return nil
}

// handle decodes one envelope and returns the JSON reply payload.
func (s *NATSSubscriber) handle(ctx context.Context, data []byte) []byte {
	var msg domain.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Warnw("dropping malformed nats message", "error", err, "bytes", len(data))
		out, _ := json.Marshal(errorReply{Error: "invalid JSON payload"})
		return out
	}

	report := s.processor.ProcessMessage(ctx, msg.Text, msg.Source())
	out, err := json.Marshal(report)
	if err != nil {
		out, _ = json.Marshal(errorReply{Error: err.Error()})
	}
	return out
}

// Close stops taking new messages, lets every message already delivered to
// the subscription finish and then closes the connection. It returns once
// the connection is closed or the drain timeout has passed.
func (s *NATSSubscriber) Close() {
	if err := s.conn.Drain(); err != nil {
		s.logger.Warnw("failed to drain nats connection", "error", err)
		s.conn.Close()
	}

	select {
	case <-s.closed:
	case <-time.After(s.drainTimeout + 5*time.Second):
		s.logger.Warnw("timed out waiting for nats connection to close", "timeout", s.drainTimeout)
	}
}
