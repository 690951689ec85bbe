package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Event is a lightweight domain notification fanned out to downstream
// consumers (analytics, billing reconciliation). Publishing is
// best-effort; the request path never fails on a broker outage.
type Event struct {
	Type       string            `json:"type"`
	UserID     string            `json:"userId,omitempty"`
	ProjectID  string            `json:"projectId,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// Event types emitted by the service.
const (
	TypeBatchCompleted       = "generation.batch.completed"
	TypeOutputEdited         = "output.edited"
	TypeTranscriptionDone    = "transcription.completed"
	TypeProjectCreated       = "project.created"
	TypeProjectDeleted       = "project.deleted"
	TypeContentPackGenerated = "contentpack.generated"
)

// Publisher emits domain events.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
	Close() error
}

// AMQPPublisher publishes events to a fanout exchange on RabbitMQ.
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	url      string
	exchange string
}

// NewAMQPPublisher connects to the broker and declares the exchange.
func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	p := &AMQPPublisher{url: url, exchange: exchange}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *AMQPPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, "fanout", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}
	p.conn = conn
	p.channel = ch
	return nil
}

// Publish sends the event, reconnecting once on a stale channel.
// Failures are logged and swallowed.
func (p *AMQPPublisher) Publish(ctx context.Context, ev Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		slog.Warn("event marshal failed", "type", ev.Type, "error", err)
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.publishLocked(ctx, body); err != nil {
		if rerr := p.connect(); rerr != nil {
			slog.Warn("event publish failed", "type", ev.Type, "error", err)
			return
		}
		if err := p.publishLocked(ctx, body); err != nil {
			slog.Warn("event publish failed after reconnect", "type", ev.Type, "error", err)
		}
	}
}

func (p *AMQPPublisher) publishLocked(ctx context.Context, body []byte) error {
	return p.channel.PublishWithContext(ctx, p.exchange, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}

// Close shuts down the channel and connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// NopPublisher drops events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, ev Event) {}
func (NopPublisher) Close() error                          { return nil }

// MemoryPublisher records events in-process for tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher { return &MemoryPublisher{} }

func (m *MemoryPublisher) Publish(ctx context.Context, ev Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

func (m *MemoryPublisher) Close() error { return nil }

// Events returns a copy of everything published so far.
func (m *MemoryPublisher) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}
