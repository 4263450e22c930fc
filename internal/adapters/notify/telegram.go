package notify

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"insta-poster-bot/internal/domain"
	"insta-poster-bot/internal/infra/metrics"
)

// Telegram доставляет оператору тревожные события в личный чат.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    zerolog.Logger
}

var _ domain.Notifier = (*Telegram)(nil)

// NewTelegram создаёт нотификатор.
func NewTelegram(bot *tgbotapi.BotAPI, chatID int64, logger zerolog.Logger) *Telegram {
	return &Telegram{bot: bot, chatID: chatID, log: logger}
}

// Alert отправляет сообщение оператору.
func (t *Telegram) Alert(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	start := time.Now()
	_, err := t.bot.Send(msg)
	metrics.ObserveNetworkRequest("telegram", "send_message", "operator", start, err)
	if err != nil {
		metrics.NotifyErrors.Inc()
		t.log.Error().Err(err).Msg("notify: не удалось доставить оповещение")
		return err
	}
	return nil
}
