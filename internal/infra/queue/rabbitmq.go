package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"insta-poster-bot/internal/domain"
	"insta-poster-bot/internal/infra/metrics"
)

// RabbitIngestQueue реализует очередь кандидатов через AMQP.
type RabbitIngestQueue struct {
	conn       *amqp.Connection
	ch         *amqp.Channel
	queue      string
	deliveries <-chan amqp.Delivery
}

// NewRabbitIngestQueue подключается к брокеру и объявляет durable-очередь.
func NewRabbitIngestQueue(amqpURL, queue string) (*RabbitIngestQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url пустой")
	}
	if queue == "" {
		return nil, errors.New("имя очереди пустое")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("подключение к rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("открытие канала: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("объявление очереди: %w", err)
	}
	return &RabbitIngestQueue{conn: conn, ch: ch, queue: queue}, nil
}

var _ domain.IngestQueue = (*RabbitIngestQueue)(nil)

// Enqueue публикует задачу в очередь.
func (q *RabbitIngestQueue) Enqueue(ctx context.Context, job domain.IngestJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("сериализация задачи: %w", err)
	}
	start := time.Now()
	err = q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID,
		Timestamp:    time.Now().UTC(),
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("публикация задачи: %w", err)
	}
	return nil
}

// Receive блокирующе читает задачу; ack-функция подтверждает или возвращает её в очередь.
func (q *RabbitIngestQueue) Receive(ctx context.Context) (domain.IngestJob, domain.IngestAckFunc, error) {
	if q.deliveries == nil {
		deliveries, err := q.ch.Consume(q.queue, "", false, false, false, false, nil)
		if err != nil {
			return domain.IngestJob{}, nil, fmt.Errorf("подписка на очередь: %w", err)
		}
		q.deliveries = deliveries
	}

	for {
		select {
		case <-ctx.Done():
			return domain.IngestJob{}, nil, ctx.Err()
		case d, ok := <-q.deliveries:
			if !ok {
				return domain.IngestJob{}, nil, errors.New("канал доставки закрыт")
			}
			var job domain.IngestJob
			if err := json.Unmarshal(d.Body, &job); err != nil {
				// Нечитаемое сообщение не возвращаем в очередь.
				_ = d.Nack(false, false)
				continue
			}
			ack := func(success bool) error {
				if success {
					return d.Ack(false)
				}
				return d.Nack(false, true)
			}
			return job, ack, nil
		}
	}
}

// Close закрывает канал и подключение.
func (q *RabbitIngestQueue) Close() error {
	if err := q.ch.Close(); err != nil {
		_ = q.conn.Close()
		return err
	}
	return q.conn.Close()
}
