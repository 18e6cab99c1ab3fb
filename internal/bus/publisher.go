package bus

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/floroz/auction-core/internal/auction"
)

// Publisher publishes events to the partitioned exchange, keyed by
// aggregate_id so every event for an item lands on the same queue
// (spec.md §4.2).
type Publisher struct {
	channel    *amqp.Channel
	partitions int
}

// NewPublisher opens a channel, declares the topology, and returns a ready
// publisher. Grounded on the teacher's RabbitMQPublisher constructor shape.
func NewPublisher(conn *amqp.Connection, partitions int) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declareTopology(ch, partitions); err != nil {
		ch.Close()
		return nil, err
	}
	return &Publisher{channel: ch, partitions: partitions}, nil
}

func (p *Publisher) Close() error {
	return p.channel.Close()
}

// Publish implements eventstore.Publisher.
func (p *Publisher) Publish(ctx context.Context, event *auction.Event) error {
	body, err := encode(event)
	if err != nil {
		return err
	}

	partition := Partition(event.AggregateID, p.partitions)
	return p.channel.PublishWithContext(ctx,
		Exchange,
		routingKey(partition),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
}
