package containers

import (
	"context"
	"fmt"
	"time"

	tcredpanda "github.com/testcontainers/testcontainers-go/modules/redpanda"
)

// RedpandaContainer wraps a running redpanda broker for Kafka integration
// tests.
type RedpandaContainer struct {
	Container *tcredpanda.Container
	Brokers   []string
}

func startRedpanda() (*RedpandaContainer, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := tcredpanda.Run(ctx, "redpandadata/redpanda:v24.2.1",
		tcredpanda.WithAutoCreateTopics(),
	)
	if err != nil {
		return nil, fmt.Errorf("run redpanda container: %w", err)
	}

	broker, err := container.KafkaSeedBroker(ctx)
	if err != nil {
		return nil, fmt.Errorf("redpanda seed broker: %w", err)
	}

	return &RedpandaContainer{Container: container, Brokers: []string{broker}}, nil
}
