package queue

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// EventsTopic is the Kafka topic lifecycle events are written to.
const EventsTopic = "booking.events"

// KafkaPublisher writes ReservationEvents to Kafka keyed by reservation id,
// so every event of one reservation lands on the same partition in order.
type KafkaPublisher struct {
	w *kafka.Writer
}

// NewKafkaPublisher returns a synchronous writer for topic.  Writes wait for
// all in-sync replicas so a nil error means the event is durable.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Publish writes one event.
func (p *KafkaPublisher) Publish(ctx context.Context, ev ReservationEvent) error {
	m, err := kafkaMessage(ev)
	if err != nil {
		return err
	}
	if err := p.w.WriteMessages(ctx, m); err != nil {
		log.Printf("kafka: publish %s failed: %v", ev.EventType, err)
		return err
	}
	return nil
}

// Close flushes pending writes.
func (p *KafkaPublisher) Close() error { return p.w.Close() }

func kafkaMessage(ev ReservationEvent) (kafka.Message, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(strconv.FormatUint(ev.ReservationID, 10)),
		Value: body,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.EventType)},
			{Key: "event_id", Value: []byte(ev.EventID)},
		},
	}, nil
}
