package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"insta-poster-bot/internal/adapters/news"
	"insta-poster-bot/internal/domain"
	"insta-poster-bot/internal/infra/config"
	applog "insta-poster-bot/internal/infra/log"
	"insta-poster-bot/internal/infra/metrics"
	"insta-poster-bot/internal/infra/queue"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), ":9090")

	if cfg.News.APIKey == "" {
		logger.Fatal().Msg("collector: не указан ключ ленты новостей (NEWS_API_KEY)")
	}
	feed := news.NewClient(cfg.News.APIKey, "", cfg.News.Country, cfg.News.PageSize)

	var ingestQueue domain.IngestQueue
	if cfg.RabbitURL != "" {
		rabbit, err := queue.NewRabbitIngestQueue(cfg.RabbitURL, cfg.Queues.Ingest)
		if err != nil {
			logger.Fatal().Err(err).Msg("collector: не удалось инициализировать очередь RabbitMQ")
		}
		defer rabbit.Close()
		ingestQueue = rabbit
	} else if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		ingestQueue = queue.NewRedisIngestQueue(redisClient, cfg.Queues.Ingest)
	} else {
		logger.Fatal().Msg("collector: нужна очередь — RABBITMQ_URL или REDIS_ADDR")
	}

	collect := func() {
		fetchCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		items, err := feed.TopHeadlines(fetchCtx)
		if err != nil {
			logger.Error().Err(err).Msg("collector: лента недоступна")
			return
		}
		for _, item := range items {
			job := domain.IngestJob{
				ID:          uuid.NewString(),
				Item:        item,
				Cause:       domain.IngestCauseFeed,
				RequestedAt: time.Now().UTC(),
			}
			if err := ingestQueue.Enqueue(fetchCtx, job); err != nil {
				logger.Error().Err(err).Str("title", item.Title).Msg("collector: не удалось поставить новость в очередь")
			}
		}
		logger.Info().Int("items", len(items)).Msg("collector: лента обработана")
	}

	collect()
	ticker := time.NewTicker(cfg.News.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			collect()
		}
	}
}
