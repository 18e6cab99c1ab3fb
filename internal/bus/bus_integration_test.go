package bus_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"

	"github.com/floroz/auction-core/internal/auction"
	"github.com/floroz/auction-core/internal/bus"
)

// TestBus_PublishConsume_PartitionsByAggregate runs Publisher and
// ConsumerGroup against a real broker, confirming every event for one
// aggregate lands on the same partition and is delivered in order
// (spec.md §4.2, §5).
func TestBus_PublishConsume_PartitionsByAggregate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping broker integration test in short mode")
	}

	ctx := context.Background()
	container, err := rabbitmq.Run(ctx,
		"rabbitmq:3.12-management-alpine",
		rabbitmq.WithAdminPassword("password"),
	)
	require.NoError(t, err)
	defer func() { _ = container.Terminate(ctx) }()

	amqpURL, err := container.AmqpURL(ctx)
	require.NoError(t, err)

	const partitions = 4
	itemID := uint64(42)
	wantPartition := bus.Partition(itemID, partitions)

	pubConn, err := amqp.Dial(amqpURL)
	require.NoError(t, err)
	defer pubConn.Close()

	publisher, err := bus.NewPublisher(pubConn, partitions)
	require.NoError(t, err)
	defer publisher.Close()

	consConn, err := amqp.Dial(amqpURL)
	require.NoError(t, err)
	defer consConn.Close()

	var (
		mu       sync.Mutex
		received []*auction.Event
	)
	handler := func(_ context.Context, event *auction.Event) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, event)
		return nil
	}

	partitionList := make([]int, partitions)
	for i := range partitionList {
		partitionList[i] = i
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	group := bus.NewConsumerGroup(consConn, partitionList, handler, logger)

	groupCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = group.Run(groupCtx) }()

	// Give the consumer goroutines time to declare topology and start
	// consuming before the publisher sends anything.
	time.Sleep(500 * time.Millisecond)

	for v := int64(1); v <= 3; v++ {
		err := publisher.Publish(ctx, &auction.Event{
			ID:          uint64(v),
			AggregateID: itemID,
			EventType:   auction.EventTypeBidPlaced,
			Data:        []byte(`{"bid_amount":1000}`),
			Version:     v,
			CreatedAt:   time.Now(),
		})
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 3
	}, 5*time.Second, 100*time.Millisecond, "expected all 3 events to be delivered")

	mu.Lock()
	defer mu.Unlock()
	for i, event := range received {
		assert.Equal(t, itemID, event.AggregateID)
		assert.Equal(t, int64(i+1), event.Version)
	}
	assert.Equal(t, wantPartition, bus.Partition(itemID, partitions), "partitioning is deterministic")
}
