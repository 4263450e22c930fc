package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"insta-poster-bot/internal/adapters/summarizer"
	"insta-poster-bot/internal/domain"
	"insta-poster-bot/internal/infra/metrics"
)

// ErrEmptyItem возвращается, когда у новости нет ни заголовка, ни текста.
var ErrEmptyItem = errors.New("новость без заголовка и текста")

// Service принимает новости в хранилище кандидатов. Подпись генерируется
// при приёме, чтобы кандидат сразу стал пригодным для публикации;
// однажды записанная подпись больше не меняется.
type Service struct {
	posts      domain.PostRepo
	summarizer domain.Summarizer
	captionMax int
	log        zerolog.Logger
}

// NewService создаёт сервис приёма.
func NewService(posts domain.PostRepo, sum domain.Summarizer, captionMax int, logger zerolog.Logger) *Service {
	if captionMax <= 0 {
		captionMax = 280
	}
	return &Service{posts: posts, summarizer: sum, captionMax: captionMax, log: logger}
}

// Ingest превращает новость в кандидата. Дубликат по (title, source_url)
// возвращает domain.ErrDuplicatePost; новость без изображения сохраняется,
// но пригодной для публикации не станет.
func (s *Service) Ingest(ctx context.Context, item domain.NewsItem) (domain.Post, error) {
	title := strings.TrimSpace(item.Title)
	body := strings.TrimSpace(item.Description)
	if title == "" && body == "" {
		metrics.IngestedPostsTotal.WithLabelValues("invalid").Inc()
		return domain.Post{}, ErrEmptyItem
	}

	summary, err := s.summarizer.Summarize(ctx, title, body)
	if err != nil {
		s.log.Warn().Err(err).Str("title", title).Msg("ingest: суммаризатор недоступен, используем шаблон")
		summary = summarizer.Fallback(title)
	}
	summary = summarizer.ClampCaption(summary, s.captionMax)

	post, err := s.posts.Create(ctx, domain.PostCandidate{
		Title:     title,
		Body:      body,
		Summary:   summary,
		ImageURL:  strings.TrimSpace(item.ImageURL),
		SourceURL: strings.TrimSpace(item.SourceURL),
		Category:  strings.TrimSpace(item.Category),
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicatePost) {
			metrics.IngestedPostsTotal.WithLabelValues("duplicate").Inc()
			return domain.Post{}, err
		}
		metrics.IngestedPostsTotal.WithLabelValues("error").Inc()
		return domain.Post{}, fmt.Errorf("сохранение кандидата: %w", err)
	}

	metrics.IngestedPostsTotal.WithLabelValues("created").Inc()
	s.log.Info().Int64("post_id", post.ID).Str("title", title).Msg("ingest: кандидат принят")
	return post, nil
}

// Consume читает очередь задач и принимает новости до отмены контекста.
// Дубликаты подтверждаются как успех: повторная доставка той же новости
// не должна крутиться в очереди вечно.
func (s *Service) Consume(ctx context.Context, queue domain.IngestQueue) error {
	for {
		job, ack, err := queue.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			return fmt.Errorf("чтение очереди: %w", err)
		}

		_, err = s.Ingest(ctx, job.Item)
		switch {
		case err == nil, errors.Is(err, domain.ErrDuplicatePost), errors.Is(err, ErrEmptyItem):
			if ackErr := ack(true); ackErr != nil {
				s.log.Warn().Err(ackErr).Str("job_id", job.ID).Msg("ingest: не удалось подтвердить задачу")
			}
		default:
			s.log.Error().Err(err).Str("job_id", job.ID).Msg("ingest: задача вернётся в очередь")
			if ackErr := ack(false); ackErr != nil {
				s.log.Warn().Err(ackErr).Str("job_id", job.ID).Msg("ingest: не удалось вернуть задачу")
			}
		}
	}
}
