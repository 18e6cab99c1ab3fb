package bus

import (
	"fmt"
	"strconv"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange is the single durable direct exchange events are published
// through. A direct exchange (routing-key exact match) rather than the
// teacher's topic exchange, since routing here is purely numeric partition
// selection, not wildcard topic matching.
const Exchange = "auction.events"

// queueName returns the durable queue bound to partition p.
func queueName(p int) string {
	return fmt.Sprintf("events.partition.%d", p)
}

// routingKey returns the fixed routing key for partition p.
func routingKey(p int) string {
	return strconv.Itoa(p)
}

// declareTopology declares the exchange and all N partition queues, binding
// each queue to its routing key. Idempotent: safe to call from both the
// publisher and every consumer on startup.
func declareTopology(ch *amqp.Channel, partitions int) error {
	if err := ch.ExchangeDeclare(Exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for p := 0; p < partitions; p++ {
		q, err := ch.QueueDeclare(queueName(p), true, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("declare queue %d: %w", p, err)
		}
		if err := ch.QueueBind(q.Name, routingKey(p), Exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %d: %w", p, err)
		}
	}
	return nil
}
