package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/blog-auth/internal/lib/sl"
)

// ErrDeliveriesClosed возвращается, когда брокер закрыл канал доставки.
var ErrDeliveriesClosed = errors.New("deliveries channel closed")

// SetupQueue объявляет durable-очередь и привязывает её к exchange по ключам маршрутизации.
func SetupQueue(ch *amqp.Channel, exchange, queue string, routingKeys ...string) error {
	const op = "rabbitmq.SetupQueue"

	_, err := ch.QueueDeclare(
		queue,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	for _, key := range routingKeys {
		if err = ch.QueueBind(queue, key, exchange, false, nil); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

// Consume читает сообщения из очереди и передаёт их handler, не более workers одновременно.
// Успешно обработанное сообщение подтверждается, при ошибке возвращается в очередь.
//
// Consume блокируется до отмены ctx или закрытия канала и дожидается обработчиков,
// которые уже запущены.
func Consume(ctx context.Context, log *slog.Logger, ch *amqp.Channel, queue string, workers int, handler func(ctx context.Context, body []byte) error) error {
	const op = "rabbitmq.Consume"

	if workers < 1 {
		workers = 1
	}
	if err := ch.Qos(workers, 0, false); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	deliveries, err := ch.Consume(
		queue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log = log.With(slog.String("op", op), slog.String("queue", queue))
	if err := dispatch(ctx, log, deliveries, workers, handler); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// dispatch раздаёт сообщения обработчикам. Сообщение, для которого не нашлось
// свободного обработчика до отмены ctx, возвращается в очередь.
func dispatch(ctx context.Context, log *slog.Logger, deliveries <-chan amqp.Delivery, workers int, handler func(ctx context.Context, body []byte) error) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	sem := make(chan struct{}, workers)
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return ErrDeliveriesClosed
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				if err := d.Nack(false, true); err != nil {
					log.Error("failed to nack message", sl.Err(err))
				}
				return nil
			}
			wg.Add(1)
			go func(d amqp.Delivery) {
				defer func() {
					<-sem
					wg.Done()
				}()
				if err := handler(ctx, d.Body); err != nil {
					log.Error("failed to handle message, requeueing",
						slog.String("message_id", d.MessageId),
						sl.Err(err),
					)
					if nackErr := d.Nack(false, true); nackErr != nil {
						log.Error("failed to nack message", sl.Err(nackErr))
					}
					return
				}
				if ackErr := d.Ack(false); ackErr != nil {
					log.Error("failed to ack message", sl.Err(ackErr))
				}
			}(d)
		}
	}
}
