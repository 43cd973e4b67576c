package events

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"orgkit/pkg/platform/circuit"
)

// newIdleMirror builds a mirror whose client never contacts a broker; the
// kgo client only dials on produce.
func newIdleMirror(t *testing.T, inboxSize int) *Mirror {
	t.Helper()
	client, err := kgo.NewClient(kgo.SeedBrokers("127.0.0.1:1"))
	require.NoError(t, err)
	return &Mirror{
		client:  client,
		topic:   "orgkit-test",
		inbox:   make(chan message, inboxSize),
		breaker: circuit.New("kafka-mirror"),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestRunReturnsNilOnShutdown(t *testing.T) {
	m := newIdleMirror(t, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- m.Run(ctx)
	}()

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}

func TestPublishDropsWhenInboxFull(t *testing.T) {
	m := newIdleMirror(t, 1)
	defer m.client.Close()

	ctx := context.Background()
	m.Publish(ctx, "subscription.created", []byte(`{"id":"sub_1"}`))
	// No consumer is running; the second publish must drop, not block.
	m.Publish(ctx, "subscription.updated", []byte(`{"id":"sub_2"}`))

	assert.Len(t, m.inbox, 1)
	got := <-m.inbox
	assert.Equal(t, "subscription.created", got.eventType)
}
