package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"insta-poster-bot/internal/domain"
)

// RedisIngestQueue реализует очередь кандидатов на базе Redis lists.
// Используется, когда RabbitMQ не настроен.
type RedisIngestQueue struct {
	client *redis.Client
	key    string
}

// NewRedisIngestQueue создаёт очередь по указанному ключу.
func NewRedisIngestQueue(client *redis.Client, key string) *RedisIngestQueue {
	return &RedisIngestQueue{client: client, key: key}
}

var _ domain.IngestQueue = (*RedisIngestQueue)(nil)

// Enqueue публикует задачу в очередь.
func (q *RedisIngestQueue) Enqueue(ctx context.Context, job domain.IngestJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("сериализация задачи: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("добавление задачи: %w", err)
	}
	return nil
}

// Receive блокирующе читает задачу из очереди. Подтверждение у Redis-списка
// номинальное: сообщение уже снято, при неуспехе возвращаем его в хвост.
func (q *RedisIngestQueue) Receive(ctx context.Context) (domain.IngestJob, domain.IngestAckFunc, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.IngestJob{}, nil, err
		}

		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.IngestJob{}, nil, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.IngestJob{}, nil, err
		}
		if len(res) != 2 {
			return domain.IngestJob{}, nil, errors.New("redis queue: неожиданный ответ")
		}
		payload := []byte(res[1])
		var job domain.IngestJob
		if err := json.Unmarshal(payload, &job); err != nil {
			return domain.IngestJob{}, nil, fmt.Errorf("распаковка задачи: %w", err)
		}
		ack := func(success bool) error {
			if success {
				return nil
			}
			return q.client.RPush(context.Background(), q.key, payload).Err()
		}
		return job, ack, nil
	}
}
