package transport

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	natstest "github.com/nats-io/nats-server/v2/test"
	nats "github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hive-corporation/watchtower-chat/internal/core/domain"
	"github.com/hive-corporation/watchtower-chat/internal/core/service"
)

type recordingProcessor struct {
	text string
	src  domain.Source
}

func (p *recordingProcessor) ProcessMessage(_ context.Context, text string, src domain.Source) service.Report {
	p.text = text
	p.src = src
	return service.Report{ScanID: "scan-1", Tokens: 2, Inserted: 1, Detections: []service.Detection{
		{Value: "8.8.8.8", Type: domain.IPAddress, Inserted: true},
	}}
}

func newTestSubscriber(p MessageProcessor) *NATSSubscriber {
	return &NATSSubscriber{processor: p, logger: zap.NewNop().Sugar()}
}

func TestHandle_DecodesEnvelope(t *testing.T) {
	p := &recordingProcessor{}
	s := newTestSubscriber(p)

	out := s.handle(context.Background(), []byte(`{"text":"ping 8.8.8.8","chat_id":-100,"chat_title":"ops","message_id":7,"sender_id":9,"sender_username":"bob"}`))

	assert.Equal(t, "ping 8.8.8.8", p.text)
	require.NotNil(t, p.src.ChatID)
	assert.Equal(t, int64(-100), *p.src.ChatID)
	assert.Equal(t, "ops", *p.src.ChatTitle)
	assert.Equal(t, int64(7), *p.src.MessageID)
	assert.Equal(t, "bob", *p.src.SenderUsername)
	assert.Nil(t, p.src.MessageText)

	var report service.Report
	require.NoError(t, json.Unmarshal(out, &report))
	assert.Equal(t, "scan-1", report.ScanID)
	assert.Equal(t, 1, report.Inserted)
}

func TestHandle_MalformedPayload(t *testing.T) {
	p := &recordingProcessor{}
	s := newTestSubscriber(p)

	out := s.handle(context.Background(), []byte("not json"))

	var reply errorReply
	require.NoError(t, json.Unmarshal(out, &reply))
	assert.Equal(t, "invalid JSON payload", reply.Error)
	assert.Empty(t, p.text)
}

// slowProcessor takes delay per message and counts completed messages.
type slowProcessor struct {
	delay time.Duration
	done  atomic.Int64
}

func (p *slowProcessor) ProcessMessage(_ context.Context, _ string, _ domain.Source) service.Report {
	time.Sleep(p.delay)
	p.done.Add(1)
	return service.Report{ScanID: "scan"}
}

func runNATSServer(t *testing.T) string {
	t.Helper()
	opts := natstest.DefaultTestOptions
	opts.Port = -1
	srv := natstest.RunServer(&opts)
	t.Cleanup(srv.Shutdown)
	return srv.ClientURL()
}

func TestSubscribe_RepliesWithReport(t *testing.T) {
	url := runNATSServer(t)
	p := &recordingProcessor{}

	s, err := NewNATSSubscriber(url, p, zap.NewNop().Sugar())
	require.NoError(t, err)
	require.NoError(t, s.Subscribe("chat.messages", "ingest"))
	defer s.Close()

	client, err := nats.Connect(url)
	require.NoError(t, err)
	defer client.Close()

	msg, err := client.Request("chat.messages", []byte(`{"text":"ping 8.8.8.8","message_id":1}`), 5*time.Second)
	require.NoError(t, err)

	var report service.Report
	require.NoError(t, json.Unmarshal(msg.Data, &report))
	assert.Equal(t, "scan-1", report.ScanID)
	assert.Equal(t, 1, report.Inserted)
}

func TestClose_WaitsForQueuedMessages(t *testing.T) {
	url := runNATSServer(t)
	p := &slowProcessor{delay: 20 * time.Millisecond}

	s, err := NewNATSSubscriber(url, p, zap.NewNop().Sugar())
	require.NoError(t, err)
	require.NoError(t, s.Subscribe("chat.messages", ""))

	client, err := nats.Connect(url)
	require.NoError(t, err)
	defer client.Close()

	const messages = 20
	for i := 0; i < messages; i++ {
		require.NoError(t, client.Publish("chat.messages", []byte(`{"text":"10.0.0.1"}`)))
	}
	require.NoError(t, client.Flush())

	require.Eventually(t, func() bool { return p.done.Load() > 0 }, 5*time.Second, time.Millisecond)

	s.Close()

	assert.Equal(t, int64(messages), p.done.Load())
	assert.True(t, s.conn.IsClosed())
}

func TestClose_Idle(t *testing.T) {
	url := runNATSServer(t)

	s, err := NewNATSSubscriber(url, &recordingProcessor{}, zap.NewNop().Sugar())
	require.NoError(t, err)
	require.NoError(t, s.Subscribe("chat.messages", "ingest"))

	s.Close()
	assert.True(t, s.conn.IsClosed())
}
