package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"
)

// AuditLog appends one line per lifecycle event to <Dir>/booking.log.
type AuditLog struct {
	Dir string
	mu  sync.Mutex
}

// NewAuditLog returns an audit log writing under dir ("logs" when empty).
func NewAuditLog(dir string) *AuditLog {
	if dir == "" {
		dir = "logs"
	}
	return &AuditLog{Dir: dir}
}

// Path is the file the log appends to.
func (a *AuditLog) Path() string { return filepath.Join(a.Dir, "booking.log") }

// handleMessage decodes one message body and appends its line.
func (a *AuditLog) handleMessage(body []byte) error {
	var ev ReservationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.EventType == "" || ev.ReservationID == 0 {
		return errors.New("event without type or reservation id")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := os.MkdirAll(a.Dir, 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(a.Path(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatLine renders ev as a single human-friendly log line.
func FormatLine(ev ReservationEvent) string {
	seats := "[]"
	if len(ev.SeatLabels) > 0 {
		seats = fmt.Sprintf("[%s]", strings.Join(ev.SeatLabels, ","))
	}
	line := fmt.Sprintf("[%s] %s | reservation_id=%d | user_id=%d | showing_id=%d | type=%s | status=%s | theatre=%q | movie=%q | tickets=%d | total=%d %s | seats=%s",
		ev.OccurredAt.UTC().Format(time.RFC3339), ev.EventType, ev.ReservationID, ev.UserID, ev.ShowingID,
		ev.Type, ev.Status, ev.TheatreName, ev.MovieTitle, ev.TicketCount, ev.PricePaidCents, ev.Currency, seats)
	if ev.Reason != "" {
		line += fmt.Sprintf(" | reason=%q", ev.Reason)
	}
	return line + "\n"
}

// ConsumeAMQP declares EventsQueue and appends every delivery to the audit
// log.  It reconnects with backoff until ctx is cancelled.  Messages that
// cannot be handled are rejected without requeue to avoid tight loops.
func (a *AuditLog) ConsumeAMQP(ctx context.Context, url string) {
	backoff := time.Second
	for ctx.Err() == nil {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("booking-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			if !sleepCtx(ctx, backoff) {
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = a.consumeLoop(ctx, conn)
		_ = conn.Close()
		if err != nil {
			log.Printf("booking-consumer: consume loop ended: %v; reconnecting", err)
			if !sleepCtx(ctx, 2*time.Second) {
				return
			}
		}
	}
}

func (a *AuditLog) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("booking-consumer: set QoS failed: %v", err)
	}
	if _, err := ch.QueueDeclare(EventsQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(EventsQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := a.handleMessage(d.Body); err != nil {
				log.Printf("booking-consumer: handle message failed: %v", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// ConsumeKafka reads EventsTopic as consumer group and appends every
// message to the audit log, committing offsets only after a successful
// write.  It returns nil once ctx is cancelled.
func (a *AuditLog) ConsumeKafka(ctx context.Context, brokers []string, group string) error {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          EventsTopic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
	})
	defer r.Close()

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := a.handleMessage(m.Value); err != nil {
			// Poison messages are skipped; their offset is committed below.
			log.Printf("booking-consumer: handle message at offset %d failed: %v", m.Offset, err)
		}
		if err := r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			log.Printf("booking-consumer: commit offset %d: %v", m.Offset, err)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
