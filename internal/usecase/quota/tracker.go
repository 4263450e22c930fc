package quota

import (
	"context"
	"time"

	"insta-poster-bot/internal/domain"
	"insta-poster-bot/internal/infra/metrics"
)

// Tracker считает публикации за календарный день в настроенном часовом поясе.
// Новый день начинается лениво: смена dayKey при первом обращении,
// фоновый процесс перехода суток не нужен.
type Tracker struct {
	repo  domain.QuotaRepo
	limit int
	loc   *time.Location
	now   func() time.Time
}

// NewTracker создаёт трекер квоты.
func NewTracker(repo domain.QuotaRepo, limit int, loc *time.Location) *Tracker {
	if loc == nil {
		loc = time.UTC
	}
	if limit < 0 {
		limit = 0
	}
	return &Tracker{repo: repo, limit: limit, loc: loc, now: time.Now}
}

// WithNow подменяет источник времени (для тестов).
func (t *Tracker) WithNow(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// Limit возвращает настроенный дневной лимит.
func (t *Tracker) Limit() int { return t.limit }

// DayKey возвращает ключ текущего календарного дня.
func (t *Tracker) DayKey() string {
	return t.now().In(t.loc).Format("2006-01-02")
}

// RemainingToday возвращает остаток квоты на текущий день.
func (t *Tracker) RemainingToday(ctx context.Context) (int, error) {
	count, err := t.repo.CountForDay(ctx, t.DayKey())
	if err != nil {
		return 0, err
	}
	remaining := t.limit - count
	if remaining < 0 {
		remaining = 0
	}
	metrics.QuotaRemaining.Set(float64(remaining))
	return remaining, nil
}

// CanPublishNow сообщает, разрешена ли публикация сейчас.
func (t *Tracker) CanPublishNow(ctx context.Context) (bool, error) {
	remaining, err := t.RemainingToday(ctx)
	if err != nil {
		return false, err
	}
	return remaining > 0, nil
}
