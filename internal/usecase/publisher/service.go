package publisher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"insta-poster-bot/internal/domain"
	"insta-poster-bot/internal/infra/metrics"
	"insta-poster-bot/internal/usecase/quota"
)

// RunState — состояние конечного автомата одного запуска.
type RunState string

const (
	RunIdle           RunState = "idle"
	RunSelecting      RunState = "selecting"
	RunGating         RunState = "gating"
	RunPreparing      RunState = "preparing"
	RunAuthenticating RunState = "authenticating"
	RunPublishing     RunState = "publishing"
	RunCommitting     RunState = "committing"
	RunDone           RunState = "done"
	RunFailed         RunState = "failed"
)

// Outcome описывает итог одного запуска.
type Outcome struct {
	State     RunState
	Busy      bool
	Published bool
	PostID    int64
	MediaID   string
	Reason    string
	Err       error
}

// Service — конечный автомат публикации. За один запуск обрабатывается
// не больше одного кандидата; участок от выбора до фиксации сериализован
// замком, поэтому два триггера никогда не идут параллельно дальше Gating.
type Service struct {
	posts    domain.PostRepo
	quota    *quota.Tracker
	preparer domain.ContentPreparer
	sessions domain.SessionProvider
	platform domain.PlatformClient
	notifier domain.Notifier
	status   *Status
	log      zerolog.Logger

	runMu sync.Mutex
}

// NewService создаёт публикатор. notifier может быть nil.
func NewService(posts domain.PostRepo, tracker *quota.Tracker, preparer domain.ContentPreparer, sessions domain.SessionProvider, platform domain.PlatformClient, notifier domain.Notifier, status *Status, logger zerolog.Logger) *Service {
	return &Service{
		posts:    posts,
		quota:    tracker,
		preparer: preparer,
		sessions: sessions,
		platform: platform,
		notifier: notifier,
		status:   status,
		log:      logger,
	}
}

// Status возвращает процессное состояние пайплайна.
func (s *Service) Status() *Status { return s.status }

// Running сообщает, выполняется ли запуск прямо сейчас.
func (s *Service) Running() bool {
	if s.runMu.TryLock() {
		s.runMu.Unlock()
		return false
	}
	return true
}

// RunOnce выполняет один запуск автомата. Повторный вызов во время
// выполняющегося запуска сразу возвращает Busy, не дожидаясь замка.
func (s *Service) RunOnce(ctx context.Context) Outcome {
	if !s.runMu.TryLock() {
		s.log.Debug().Msg("publisher: запуск уже идёт, триггер отброшен")
		metrics.PublishRunsTotal.WithLabelValues("busy").Inc()
		return Outcome{State: RunIdle, Busy: true, Reason: "запуск уже выполняется"}
	}
	defer s.runMu.Unlock()

	start := time.Now()
	outcome := s.run(ctx)
	metrics.PublishRunSeconds.Observe(time.Since(start).Seconds())
	metrics.PublishRunsTotal.WithLabelValues(outcomeLabel(outcome)).Inc()
	s.status.finishRun(outcome)
	return outcome
}

func (s *Service) run(ctx context.Context) Outcome {
	// Selecting: без кандидата запуск завершается успешно и без работы.
	post, err := s.posts.NextUnposted(ctx)
	if err != nil {
		return s.failed(RunSelecting, 0, fmt.Errorf("выбор кандидата: %w", err))
	}
	if post == nil {
		s.log.Info().Msg("publisher: нет пригодных кандидатов")
		return Outcome{State: RunDone, Reason: "нет кандидатов"}
	}

	// Gating: исчерпанная квота — тоже не ошибка.
	allowed, err := s.quota.CanPublishNow(ctx)
	if err != nil {
		return s.failed(RunGating, post.ID, fmt.Errorf("проверка квоты: %w", err))
	}
	if !allowed {
		s.log.Info().Int64("post_id", post.ID).Msg("publisher: дневная квота исчерпана")
		return Outcome{State: RunDone, PostID: post.ID, Reason: "квота исчерпана"}
	}

	// Preparing: при ошибке пост остаётся unposted, повтор — на следующем триггере.
	content, err := s.preparer.Prepare(ctx, *post)
	if err != nil {
		return s.failed(RunPreparing, post.ID, err)
	}

	// Authenticating: дескриптор запрашивается заново на каждый запуск.
	handle, err := s.sessions.EnsureReady(ctx)
	if err != nil {
		return s.failed(RunAuthenticating, post.ID, err)
	}

	// Publishing: отказ платформы по авторизации инвалидирует сессию.
	media, err := s.platform.PublishPhoto(ctx, handle, content.Image, content.Caption)
	if err != nil {
		var authErr *domain.AuthError
		if errors.As(err, &authErr) {
			s.sessions.Invalidate()
		}
		return s.failed(RunPublishing, post.ID, err)
	}

	// Committing: пометка поста и инкремент квоты — одна атомарная запись.
	committed, err := s.posts.CommitPublication(ctx, post.ID, s.quota.DayKey())
	if err != nil {
		return s.hazard(post, media, err)
	}
	if !committed {
		// Пост уже был posted — внешняя публикация продублирована не будет,
		// но учёт этого запуска не менялся.
		s.log.Warn().Int64("post_id", post.ID).Msg("publisher: пост уже зафиксирован ранее")
		return Outcome{State: RunDone, PostID: post.ID, Reason: "уже зафиксирован"}
	}

	s.log.Info().
		Int64("post_id", post.ID).
		Str("media_id", media.MediaID).
		Msg("publisher: публикация зафиксирована")
	return Outcome{State: RunDone, Published: true, PostID: post.ID, MediaID: media.MediaID}
}

func (s *Service) failed(stage RunState, postID int64, err error) Outcome {
	s.log.Error().Err(err).Str("stage", string(stage)).Int64("post_id", postID).Msg("publisher: запуск завершился ошибкой")
	return Outcome{State: RunFailed, PostID: postID, Reason: string(stage), Err: err}
}

// hazard обрабатывает сбой фиксации после успешной внешней публикации:
// платформа пост уже показывает, а локальный учёт — нет. Автоповтор здесь
// опасен (дубль на платформе), поэтому событие выделяется в логе,
// на странице статуса и в оповещении оператора.
func (s *Service) hazard(post *domain.Post, media domain.MediaResult, err error) Outcome {
	commitErr := &domain.CommitError{PostID: post.ID, Err: err}
	metrics.ReconciliationHazards.Inc()
	s.log.Error().
		Err(commitErr).
		Int64("post_id", post.ID).
		Str("media_id", media.MediaID).
		Msg("publisher: РАССИНХРОНИЗАЦИЯ УЧЁТА: публикация прошла, фиксация не записана")
	s.status.markHazard(commitErr.Error())
	if s.notifier != nil {
		text := fmt.Sprintf("Рассинхронизация учёта: пост %d опубликован (media %s), но не зафиксирован: %v",
			post.ID, media.MediaID, err)
		notifyCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.notifier.Alert(notifyCtx, text)
	}
	return Outcome{State: RunFailed, PostID: post.ID, MediaID: media.MediaID, Reason: string(RunCommitting), Err: commitErr}
}

func outcomeLabel(outcome Outcome) string {
	switch {
	case outcome.Busy:
		return "busy"
	case outcome.Err != nil:
		return "failed"
	case outcome.Published:
		return "published"
	default:
		return "noop"
	}
}
