package domain

import (
	"context"
	"time"
)

// PostRepo управляет кандидатами и их статусом публикации.
// Переход unposted → posted выполняется только через MarkPosted или CommitPublication.
type PostRepo interface {
	// Create сохраняет кандидата со статусом unposted.
	// Возвращает ErrDuplicatePost при нарушении уникальности (title, source_url).
	Create(ctx context.Context, candidate PostCandidate) (Post, error)
	// NextUnposted возвращает самый старый пригодный к публикации пост
	// (по created_at, при равенстве — по id) или nil, если таких нет.
	NextUnposted(ctx context.Context) (*Post, error)
	// MarkPosted идемпотентно переводит пост в posted и ставит posted_at.
	// Возвращает false без побочных эффектов, если пост уже posted или не найден.
	MarkPosted(ctx context.Context, id int64) (bool, error)
	// CommitPublication атомарно выполняет MarkPosted и инкремент дневного
	// счётчика за dayKey: либо происходят обе записи, либо ни одной.
	CommitPublication(ctx context.Context, id int64, dayKey string) (bool, error)
	// Stats возвращает агрегат для страницы статуса.
	Stats(ctx context.Context, dayKey string) (PostStats, error)
	// ListUnposted возвращает неопубликованные посты для предпросмотра.
	ListUnposted(ctx context.Context, limit int) ([]Post, error)
}

// QuotaRepo читает дневные счётчики публикаций.
type QuotaRepo interface {
	// CountForDay возвращает число публикаций, зафиксированных за день dayKey.
	CountForDay(ctx context.Context, dayKey string) (int, error)
}

// Summarizer строит текст подписи по заголовку и телу новости.
type Summarizer interface {
	Summarize(ctx context.Context, title, body string) (string, error)
}

// ContentPreparer готовит подпись и изображение для публикации.
type ContentPreparer interface {
	// Prepare возвращает PreparedContent либо *PrepareError.
	// Все временные артефакты удаляются до возврата на любом пути.
	Prepare(ctx context.Context, post Post) (PreparedContent, error)
}

// SessionHandle — непрозрачный дескриптор активной сессии платформы.
// Действителен ровно для одной попытки публикации.
type SessionHandle interface{}

// PlatformClient — клиент внешней платформы публикации.
type PlatformClient interface {
	// RestoreSession восстанавливает сессию из сохранённого блоба.
	RestoreSession(ctx context.Context, blob []byte) (SessionHandle, error)
	// Probe дёшево проверяет, что сессия ещё принимается платформой.
	Probe(ctx context.Context, handle SessionHandle) error
	// Login выполняет полный вход и возвращает новый блоб сессии.
	Login(ctx context.Context, username, password string) (SessionHandle, []byte, error)
	// PublishPhoto загружает изображение с подписью.
	PublishPhoto(ctx context.Context, handle SessionHandle, image []byte, caption string) (MediaResult, error)
}

// SessionProvider выдаёт готовую к публикации сессию.
type SessionProvider interface {
	// EnsureReady восстанавливает или создаёт сессию; ошибка — *AuthError.
	EnsureReady(ctx context.Context) (SessionHandle, error)
	// Invalidate помечает сессию недействительной после отказа платформы.
	Invalidate()
	// State возвращает текущее состояние жизненного цикла сессии.
	State() SessionState
}

// BlobStore — атомарное хранилище непрозрачных блобов (сессия платформы).
type BlobStore interface {
	Save(key string, blob []byte) error
	// Load возвращает ErrSessionBlobMissing, если ключа нет.
	Load(key string) ([]byte, error)
}

// NewsFeed поставляет свежие новости из внешнего источника.
type NewsFeed interface {
	TopHeadlines(ctx context.Context) ([]NewsItem, error)
}

// IngestAckFunc подтверждает обработку задачи или возвращает её в очередь.
type IngestAckFunc func(success bool) error

// IngestQueue — очередь задач на приём новостей.
type IngestQueue interface {
	Enqueue(ctx context.Context, job IngestJob) error
	Receive(ctx context.Context) (IngestJob, IngestAckFunc, error)
}

// Notifier доставляет оператору важные события (рассинхронизация учёта).
type Notifier interface {
	Alert(ctx context.Context, text string) error
}

// Cache используется для простых TTL-замков и значений.
type Cache interface {
	Once(key string, ttl time.Duration, fn func() error) error
}
