package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
)

// Ключи маршрутизации событий учётной записи.
const (
	RoutingUserRegistered  = "user.registered"
	RoutingPasswordChanged = "user.password_changed"
	RoutingProfileUpdated  = "user.profile_updated"
)

// Event - конверт события учётной записи.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	UserUID    string    `json:"user_uid"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent создает событие с новым идентификатором.
func NewEvent(eventType, userUID string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		UserUID:    userUID,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher публикует события в exchange. Безопасен для конкурентного использования.
type Publisher struct {
	mu       sync.Mutex
	ch       *amqp.Channel
	exchange string
}

// NewPublisher создает Publisher поверх открытого канала.
func NewPublisher(ch *amqp.Channel, exchange string) *Publisher {
	return &Publisher{ch: ch, exchange: exchange}
}

// Publish публикует событие с ключом маршрутизации, равным его типу.
func (p *Publisher) Publish(ctx context.Context, event Event) error {
	const op = "rabbitmq.Publish"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.Publish(
		p.exchange,
		event.Type,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    event.ID,
			Timestamp:    event.OccurredAt,
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Close закрывает канал.
func (p *Publisher) Close() error {
	return p.ch.Close()
}

// NopPublisher отбрасывает события. Используется, когда RabbitMQ не настроен.
type NopPublisher struct{}

// Publish ничего не делает.
func (NopPublisher) Publish(context.Context, Event) error { return nil }
