//go:build integration

package events_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"orgkit/internal/events"
	"orgkit/pkg/testutil/containers"
)

func TestMirrorPublishesToBroker(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	broker := containers.GetManager().GetRedpanda(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	const topic = "orgkit-webhook-events-test"
	mirror, err := events.New(ctx, broker.Brokers, topic,
		events.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	runCtx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = mirror.Run(runCtx)
	}()

	payload := []byte(`{"event_type":"subscription.created","data":{"id":"sub_k"}}`)
	mirror.Publish(ctx, "subscription.created", payload)

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	deadline := time.Now().Add(30 * time.Second)
	var got *kgo.Record
	for got == nil && time.Now().Before(deadline) {
		fetchCtx, fetchCancel := context.WithTimeout(ctx, 5*time.Second)
		fetches := consumer.PollFetches(fetchCtx)
		fetchCancel()
		fetches.EachRecord(func(r *kgo.Record) {
			if got == nil {
				got = r
			}
		})
	}
	require.NotNil(t, got, "expected mirrored record on topic")
	assert.Equal(t, "subscription.created", string(got.Key))
	assert.Equal(t, payload, got.Value)

	stop()
	<-done
}
