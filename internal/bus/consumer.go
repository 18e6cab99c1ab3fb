package bus

import (
	"context"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"

	"github.com/floroz/auction-core/internal/auction"
)

// Handler processes one delivered event. Returning an error withholds the
// ack so the bus redelivers it (spec.md §4.4 failure handling).
type Handler func(ctx context.Context, event *auction.Event) error

// ConsumerGroup runs exactly one consumer goroutine per partition queue,
// the software equivalent of "one consumer per partition" on top of
// RabbitMQ's queue model (spec.md §4.2). Partition-to-process assignment is
// static: this process consumes every partition in `partitions`.
// cmd/projector passes all partitions 0..RABBITMQ_PARTITIONS-1; no config
// setting narrows the list, and partitions are not rebalanced across
// processes (see DESIGN.md, Open Question on rebalancing).
type ConsumerGroup struct {
	conn       *amqp.Connection
	partitions []int
	handler    Handler
	logger     *slog.Logger
}

func NewConsumerGroup(conn *amqp.Connection, partitions []int, handler Handler, logger *slog.Logger) *ConsumerGroup {
	return &ConsumerGroup{conn: conn, partitions: partitions, handler: handler, logger: logger}
}

// Run declares the topology and blocks, consuming every assigned partition
// concurrently, until ctx is cancelled or a partition consumer errors.
func (g *ConsumerGroup) Run(ctx context.Context) error {
	setupCh, err := g.conn.Channel()
	if err != nil {
		return fmt.Errorf("open setup channel: %w", err)
	}
	if err := declareTopology(setupCh, len(g.partitions)); err != nil {
		setupCh.Close()
		return err
	}
	setupCh.Close()

	group, ctx := errgroup.WithContext(ctx)
	for _, p := range g.partitions {
		p := p
		group.Go(func() error {
			return g.consumePartition(ctx, p)
		})
	}
	return group.Wait()
}

func (g *ConsumerGroup) consumePartition(ctx context.Context, partition int) error {
	ch, err := g.conn.Channel()
	if err != nil {
		return fmt.Errorf("partition %d: open channel: %w", partition, err)
	}
	defer ch.Close()

	deliveries, err := ch.Consume(
		queueName(partition),
		"",    // consumer tag
		false, // auto-ack: at-least-once, explicit Ack/Nack below
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("partition %d: consume: %w", partition, err)
	}

	g.logger.Info("consuming partition", "partition", partition, "queue", queueName(partition))

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("partition %d: delivery channel closed", partition)
			}
			g.handleDelivery(ctx, partition, d)
		}
	}
}

func (g *ConsumerGroup) handleDelivery(ctx context.Context, partition int, d amqp.Delivery) {
	event, err := decode(d.Body)
	if err != nil {
		g.logger.Error("poison delivery: cannot decode envelope", "partition", partition, "error", err)
		_ = d.Nack(false, false) // cannot parse it, never will: drop it
		return
	}

	if err := g.handler(ctx, event); err != nil {
		g.logger.Error("event processing failed, requeueing",
			"partition", partition, "aggregate_id", event.AggregateID, "version", event.Version, "error", err)
		_ = d.Nack(false, true)
		return
	}

	if err := d.Ack(false); err != nil {
		g.logger.Error("ack failed", "partition", partition, "error", err)
	}
}
