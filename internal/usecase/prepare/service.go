package prepare

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"insta-poster-bot/internal/adapters/summarizer"
	"insta-poster-bot/internal/domain"
)

// ImageFetcher скачивает исходное изображение в файл.
type ImageFetcher interface {
	Fetch(ctx context.Context, rawURL, dest string) error
}

// ImageComposer собирает публикуемый JPEG из исходника.
type ImageComposer interface {
	Compose(srcPath string) ([]byte, error)
}

// Service готовит подпись и изображение для одного поста.
type Service struct {
	summarizer domain.Summarizer
	fetcher    ImageFetcher
	composer   ImageComposer
	captionMax int
	log        zerolog.Logger
}

var _ domain.ContentPreparer = (*Service)(nil)

// NewService создаёт подготовку контента.
func NewService(sum domain.Summarizer, fetcher ImageFetcher, composer ImageComposer, captionMax int, logger zerolog.Logger) *Service {
	if captionMax <= 0 {
		captionMax = 280
	}
	return &Service{summarizer: sum, fetcher: fetcher, composer: composer, captionMax: captionMax, log: logger}
}

// Prepare возвращает подпись и готовый JPEG либо *domain.PrepareError.
// Временная директория удаляется до возврата на любом пути: наружу уходят
// только байты в памяти, прибирать после вызова нечего.
func (s *Service) Prepare(ctx context.Context, post domain.Post) (domain.PreparedContent, error) {
	if post.ImageURL == "" {
		return domain.PreparedContent{}, &domain.PrepareError{Stage: "validate", Err: errors.New("у поста нет изображения")}
	}

	caption := s.buildCaption(ctx, post)

	dir, err := os.MkdirTemp("", "prepare-")
	if err != nil {
		return domain.PreparedContent{}, &domain.PrepareError{Stage: "workdir", Err: err}
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			s.log.Warn().Err(err).Str("dir", dir).Msg("prepare: не удалось удалить временные файлы")
		}
	}()

	raw := filepath.Join(dir, "raw.jpg")
	if err := s.fetcher.Fetch(ctx, post.ImageURL, raw); err != nil {
		return domain.PreparedContent{}, &domain.PrepareError{Stage: "download", Err: err}
	}

	image, err := s.composer.Compose(raw)
	if err != nil {
		return domain.PreparedContent{}, &domain.PrepareError{Stage: "compose", Err: err}
	}

	return domain.PreparedContent{Caption: caption, Image: image}, nil
}

// buildCaption выбирает подпись: сохранённая при приёме, иначе свежая от LLM,
// иначе шаблон из заголовка. Падение суммаризатора публикацию не блокирует.
func (s *Service) buildCaption(ctx context.Context, post domain.Post) string {
	caption := post.Summary
	if caption == "" {
		generated, err := s.summarizer.Summarize(ctx, post.Title, post.Body)
		if err != nil {
			s.log.Warn().Err(err).Int64("post_id", post.ID).Msg("prepare: суммаризатор недоступен, используем шаблон")
			generated = summarizer.Fallback(post.Title)
		}
		caption = generated
	}
	if utf8.RuneCountInString(caption) > s.captionMax {
		caption = summarizer.ClampCaption(caption, s.captionMax)
	}
	return caption
}
