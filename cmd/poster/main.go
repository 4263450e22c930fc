package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"insta-poster-bot/internal/adapters/instagram"
	"insta-poster-bot/internal/adapters/media"
	"insta-poster-bot/internal/adapters/notify"
	"insta-poster-bot/internal/adapters/repo"
	"insta-poster-bot/internal/adapters/summarizer"
	"insta-poster-bot/internal/domain"
	"insta-poster-bot/internal/infra/cache"
	"insta-poster-bot/internal/infra/config"
	"insta-poster-bot/internal/infra/db"
	"insta-poster-bot/internal/infra/groq"
	httpinfra "insta-poster-bot/internal/infra/http"
	applog "insta-poster-bot/internal/infra/log"
	"insta-poster-bot/internal/infra/metrics"
	"insta-poster-bot/internal/infra/queue"
	ingestusecase "insta-poster-bot/internal/usecase/ingest"
	"insta-poster-bot/internal/usecase/prepare"
	"insta-poster-bot/internal/usecase/publisher"
	"insta-poster-bot/internal/usecase/quota"
	sessionusecase "insta-poster-bot/internal/usecase/session"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("poster: нет подключения к БД")
	}
	defer pool.Close()

	if cfg.RedisAddr == "" {
		logger.Fatal().Msg("poster: не указан адрес Redis (REDIS_ADDR)")
	}
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	redisCache := cache.NewRedis(redisClient)

	repoAdapter := repo.NewPostgres(pool)

	groqClient := groq.NewClient(cfg.Groq.APIKey, cfg.Groq.BaseURL, cfg.Groq.Timeout)
	sum := summarizer.NewGroq(groqClient, cfg.Groq.Model, cfg.Groq.Timeout, cfg.Publish.CaptionMin, cfg.Publish.CaptionMax)

	fetcher := media.NewDownloader(30 * time.Second)
	composer := media.NewProcessor(cfg.Publish.LogoPath)
	preparer := prepare.NewService(sum, fetcher, composer, cfg.Publish.CaptionMax, logger.With().Str("component", "prepare").Logger())

	igClient := instagram.NewClient(cfg.Instagram.BaseURL, logger.With().Str("component", "instagram").Logger())
	sessions := sessionusecase.NewManager(
		igClient, redisCache, cfg.Instagram.SessionKey,
		cfg.Instagram.Username, cfg.Instagram.Password,
		logger.With().Str("component", "session").Logger(),
	)

	tracker := quota.NewTracker(repoAdapter, cfg.Publish.DailyLimit, cfg.Location())

	var notifier domain.Notifier
	if cfg.Telegram.Token != "" && cfg.Telegram.AdminChatID != 0 {
		botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			logger.Fatal().Err(err).Msg("poster: не удалось создать бота для оповещений")
		}
		notifier = notify.NewTelegram(botAPI, cfg.Telegram.AdminChatID, logger.With().Str("component", "notify").Logger())
	}

	status := publisher.NewStatus(sessions)
	pub := publisher.NewService(
		repoAdapter, tracker, preparer, sessions, igClient, notifier, status,
		logger.With().Str("component", "publisher").Logger(),
	)

	ingestService := ingestusecase.NewService(repoAdapter, sum, cfg.Publish.CaptionMax, logger.With().Str("component", "ingest").Logger())

	ingestQueue, err := buildIngestQueue(cfg, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("poster: не удалось инициализировать очередь приёма")
	}
	go func() {
		if err := ingestService.Consume(ctx, ingestQueue); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("poster: потребитель очереди остановился")
		}
	}()

	// Таймер публикации. Once-замок в Redis не даёт нескольким репликам
	// дёрнуть пайплайн на одном и том же тике.
	go func() {
		ticker := time.NewTicker(cfg.Publish.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				tickKey := "publish:tick:" + now.UTC().Truncate(cfg.Publish.Interval).Format(time.RFC3339)
				err := redisCache.Once(tickKey, cfg.Publish.Interval, func() error {
					pub.RunOnce(ctx)
					return nil
				})
				if err != nil {
					logger.Error().Err(err).Msg("poster: сбой тика публикации")
				}
			}
		}
	}()

	server := httpinfra.NewServer(logger.With().Str("component", "http").Logger())
	registerRoutes(server, cfg, pub, status, repoAdapter, ingestService, tracker)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("poster: HTTP сервер остановился с ошибкой")
	}
}

func buildIngestQueue(cfg config.AppConfig, redisClient *redis.Client) (domain.IngestQueue, error) {
	if cfg.RabbitURL != "" {
		return queue.NewRabbitIngestQueue(cfg.RabbitURL, cfg.Queues.Ingest)
	}
	return queue.NewRedisIngestQueue(redisClient, cfg.Queues.Ingest), nil
}

func registerRoutes(server *httpinfra.Server, cfg config.AppConfig, pub *publisher.Service, status *publisher.Status, repoAdapter *repo.Postgres, ingestService *ingestusecase.Service, tracker *quota.Tracker) {
	r := server.Router

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		snapshot := status.Snapshot()
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "Бот активен. Сессия: %s, последний запуск: %s (%s)\n",
			snapshot.SessionState, snapshot.LastRunState, snapshot.LastRunAt.Format(time.RFC3339))
	})

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, map[string]string{"status": "up"})
	})

	r.Get("/api/instagram/status", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, status.Snapshot())
	})

	r.Post("/api/instagram/post", func(w http.ResponseWriter, req *http.Request) {
		if pub.Running() {
			writeJSON(w, map[string]any{"accepted": false, "busy": true})
			return
		}
		go pub.RunOnce(context.Background())
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]any{"accepted": true, "busy": false})
	})

	r.Get("/api/instagram/stats", func(w http.ResponseWriter, req *http.Request) {
		stats, err := repoAdapter.Stats(req.Context(), tracker.DayKey())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "статистика недоступна")
			return
		}
		remaining, err := tracker.RemainingToday(req.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "квота недоступна")
			return
		}
		writeJSON(w, map[string]any{
			"total":          stats.Total,
			"posted_today":   stats.PostedToday,
			"unposted_count": stats.UnpostedCount,
			"daily_limit":    tracker.Limit(),
			"remaining":      remaining,
		})
	})

	r.Get("/api/instagram/unposted", func(w http.ResponseWriter, req *http.Request) {
		limit := 10
		if raw := req.URL.Query().Get("limit"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
				limit = parsed
			}
		}
		posts, err := repoAdapter.ListUnposted(req.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "список недоступен")
			return
		}
		writeJSON(w, map[string]any{"count": len(posts), "posts": posts})
	})

	r.Post("/api/instagram/create", func(w http.ResponseWriter, req *http.Request) {
		defer req.Body.Close()
		var body createPostRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "некорректное тело запроса")
			return
		}
		post, err := ingestService.Ingest(req.Context(), domain.NewsItem{
			Title:       body.Title,
			Description: body.Content,
			ImageURL:    body.ImageURL,
			SourceURL:   body.SourceURL,
			Category:    body.Category,
		})
		switch {
		case errors.Is(err, domain.ErrDuplicatePost):
			writeError(w, http.StatusBadRequest, "такой пост уже существует")
		case errors.Is(err, ingestusecase.ErrEmptyItem):
			writeError(w, http.StatusBadRequest, "нужны title и content")
		case err != nil:
			writeError(w, http.StatusInternalServerError, "не удалось сохранить пост")
		default:
			writeJSON(w, map[string]any{"id": post.ID, "summary": post.Summary})
		}
	})
}

type createPostRequest struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	ImageURL  string `json:"image_url"`
	SourceURL string `json:"source_url"`
	Category  string `json:"category"`
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
