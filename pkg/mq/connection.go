package mq

import (
	"fmt"

	"github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeName    = "events"
	DLQExchangeName = "events.dlq"
)

// Routing keys published by the project service.
const (
	RoutingKeyProjectImported = "project.imported"
	RoutingKeyProjectDeleted  = "project.deleted"
	RoutingKeyTaskUpdated     = "task.updated"
	RoutingKeyTaskDeleted     = "task.deleted"
)

// NewConnection creates a new RabbitMQ connection.
func NewConnection(url string) (*amqp091.Connection, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// DeclareExchange declares the events exchange and its dead letter exchange.
func DeclareExchange(ch *amqp091.Channel) error {
	if err := ch.ExchangeDeclare(ExchangeName, "topic", true, false, false, false, nil); err != nil {
		return err
	}
	return ch.ExchangeDeclare(DLQExchangeName, "topic", true, false, false, false, nil)
}

// DeclareQueue declares a durable queue bound to routingKey. Rejected messages
// are dead-lettered into "<queue>.dlq".
func DeclareQueue(ch *amqp091.Channel, queueName, routingKey string) (amqp091.Queue, error) {
	dlqName := queueName + ".dlq"
	if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to declare DLQ queue: %w", err)
	}
	if err := ch.QueueBind(dlqName, routingKey, DLQExchangeName, false, nil); err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to bind DLQ queue: %w", err)
	}

	q, err := ch.QueueDeclare(queueName, true, false, false, false, amqp091.Table{
		"x-dead-letter-exchange": DLQExchangeName,
	})
	if err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, routingKey, ExchangeName, false, nil); err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to bind queue: %w", err)
	}
	return q, nil
}
