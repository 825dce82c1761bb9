package queue

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// EventsQueue is the durable queue lifecycle events are routed to.
const EventsQueue = "booking.events"

// AMQPPublisher publishes ReservationEvents to RabbitMQ.  It dials per
// publish, so a broker outage only costs the events sent during it and
// never leaves a broken connection behind.
type AMQPPublisher struct {
	URL   string
	Queue string
}

// NewAMQPPublisher returns a publisher for url routing to EventsQueue.
func NewAMQPPublisher(url string) *AMQPPublisher {
	return &AMQPPublisher{URL: url, Queue: EventsQueue}
}

// Publish sends ev as a persistent JSON message through the default
// exchange.  Errors are logged and returned; callers may ignore them.
func (p *AMQPPublisher) Publish(ctx context.Context, ev ReservationEvent) error {
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		log.Printf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Idempotent; durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(p.Queue, true, false, false, false, nil); err != nil {
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	pub, err := amqpMessage(ev)
	if err != nil {
		return err
	}
	if err := ch.PublishWithContext(ctx, "", p.Queue, false, false, pub); err != nil {
		log.Printf("rabbitmq: publish %s failed: %v", ev.EventType, err)
		return err
	}
	return nil
}

// amqpMessage encodes ev for the events queue.  Consumers tell event kinds
// apart by Type, not by routing key.
func amqpMessage(ev ReservationEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.EventID,
		Type:         ev.EventType,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}, nil
}
