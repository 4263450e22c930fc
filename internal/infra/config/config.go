package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	TZ     string `envconfig:"TZ" default:"Europe/Istanbul"`
	Port   int    `envconfig:"PORT" default:"8080"`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	RabbitURL string `envconfig:"RABBITMQ_URL"`

	Queues struct {
		Ingest string `envconfig:"INGEST_QUEUE_KEY" default:"ingest_jobs"`
	} `envconfig:""`

	Instagram struct {
		Username   string `envconfig:"INSTAGRAM_USERNAME"`
		Password   string `envconfig:"INSTAGRAM_PASSWORD"`
		BaseURL    string `envconfig:"INSTAGRAM_BASE_URL"`
		SessionKey string `envconfig:"INSTAGRAM_SESSION_KEY" default:"instagram:session"`
	} `envconfig:""`

	Groq struct {
		APIKey  string        `envconfig:"GROQ_API_KEY"`
		BaseURL string        `envconfig:"GROQ_BASE_URL"`
		Model   string        `envconfig:"GROQ_MODEL" default:"llama-3.3-70b-versatile"`
		Timeout time.Duration `envconfig:"GROQ_TIMEOUT" default:"20s"`
	} `envconfig:""`

	News struct {
		APIKey       string        `envconfig:"NEWS_API_KEY"`
		Country      string        `envconfig:"NEWS_COUNTRY" default:"tr"`
		PageSize     int           `envconfig:"NEWS_PAGE_SIZE" default:"20"`
		PollInterval time.Duration `envconfig:"NEWS_POLL_INTERVAL" default:"30m"`
	} `envconfig:""`

	Publish struct {
		DailyLimit int           `envconfig:"PUBLISH_DAILY_LIMIT" default:"5"`
		Interval   time.Duration `envconfig:"PUBLISH_INTERVAL" default:"2h"`
		CaptionMin int           `envconfig:"CAPTION_MIN_LEN" default:"200"`
		CaptionMax int           `envconfig:"CAPTION_MAX_LEN" default:"280"`
		LogoPath   string        `envconfig:"LOGO_PATH" default:"logo.png"`
	} `envconfig:""`

	Telegram struct {
		Token       string `envconfig:"TG_BOT_TOKEN"`
		AdminChatID int64  `envconfig:"TG_ADMIN_CHAT_ID"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// Location возвращает часовой пояс квоты; при ошибке — UTC.
func (c AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TZ)
	if err != nil {
		return time.UTC
	}
	return loc
}
