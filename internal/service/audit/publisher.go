// Package audit publishes authentication audit events to RabbitMQ on a
// best-effort basis. Failures are logged and swallowed so a broker
// outage never fails the request that triggered the event.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/campushub/campushub/internal/queue"
)

const dialTimeout = 2 * time.Second

// Publisher emits AuthEvents to the auth.events queue. A nil Publisher
// is valid and drops every event, which keeps handler wiring
// unconditional.
type Publisher struct {
	url string
	log *slog.Logger
}

func NewPublisher(url string, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{url: url, log: log}
}

// Record stamps the event and ships it from its own goroutine so a slow
// broker never delays the request path.
func (p *Publisher) Record(evType string, userID uint64, email, ip string) {
	if p == nil || p.url == "" {
		return
	}
	ev := queue.AuthEvent{
		Type:   evType,
		UserID: userID,
		Email:  email,
		IP:     ip,
		At:     time.Now().UTC().Format(time.RFC3339),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.publish(ctx, ev); err != nil {
			p.log.Warn("audit publish failed", "type", ev.Type, "err", err)
		}
	}()
}

// publish dials per event. Auth events are rare enough that holding a
// connection open buys nothing over dial-and-close.
func (p *Publisher) publish(ctx context.Context, ev queue.AuthEvent) error {
	conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(dialTimeout)})
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// Durable so events survive broker restarts. Idempotent declare.
	if _, err := ch.QueueDeclare(queue.AuthEventsQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue.AuthEventsQueue, false, false, pub); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}
