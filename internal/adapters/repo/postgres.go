package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"insta-poster-bot/internal/domain"
	"insta-poster-bot/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ domain.PostRepo = (*Postgres)(nil)
var _ domain.QuotaRepo = (*Postgres)(nil)

const uniqueViolation = "23505"

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func (p *Postgres) connCtxWithParent(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return p.connCtx()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// Create сохраняет кандидата со статусом unposted.
func (p *Postgres) Create(ctx context.Context, candidate domain.PostCandidate) (domain.Post, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	title := strings.TrimSpace(candidate.Title)
	if title == "" {
		return domain.Post{}, errors.New("заголовок пустой")
	}

	var post domain.Post
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO posts (title, body, summary, image_url, source_url, category, status)
VALUES ($1, $2, $3, $4, $5, $6, 'unposted')
RETURNING id, title, body, summary, image_url, source_url, category, status, created_at
`, title, candidate.Body, candidate.Summary, candidate.ImageURL, candidate.SourceURL, candidate.Category).Scan(
		&post.ID, &post.Title, &post.Body, &post.Summary, &post.ImageURL,
		&post.SourceURL, &post.Category, &post.Status, &post.CreatedAt,
	)
	metrics.ObserveNetworkRequest("postgres", "insert", "posts", start, err)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.Post{}, domain.ErrDuplicatePost
		}
		return domain.Post{}, fmt.Errorf("создание поста: %w", err)
	}
	return post, nil
}

// NextUnposted возвращает самый старый пригодный пост или nil.
func (p *Postgres) NextUnposted(ctx context.Context) (*domain.Post, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var post domain.Post
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT id, title, body, summary, image_url, source_url, category, status, created_at, posted_at
FROM posts
WHERE status = 'unposted' AND summary <> '' AND image_url <> ''
ORDER BY created_at, id
LIMIT 1
`).Scan(
		&post.ID, &post.Title, &post.Body, &post.Summary, &post.ImageURL,
		&post.SourceURL, &post.Category, &post.Status, &post.CreatedAt, &post.PostedAt,
	)
	metrics.ObserveNetworkRequest("postgres", "next_unposted", "posts", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("выбор кандидата: %w", err)
	}
	return &post, nil
}

// MarkPosted идемпотентно переводит пост в posted.
func (p *Postgres) MarkPosted(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE posts SET status = 'posted', posted_at = now()
WHERE id = $1 AND status = 'unposted'
`, id)
	metrics.ObserveNetworkRequest("postgres", "mark_posted", "posts", start, err)
	if err != nil {
		return false, fmt.Errorf("пометка поста: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// CommitPublication атомарно помечает пост и увеличивает дневной счётчик.
// Порядок фиксированный: сначала пост, затем счётчик, обе записи в одной транзакции.
func (p *Postgres) CommitPublication(ctx context.Context, id int64, dayKey string) (bool, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	metrics.ObserveNetworkRequest("postgres", "begin_tx", "posts", start, err)
	if err != nil {
		return false, fmt.Errorf("открытие транзакции: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	start = time.Now()
	tag, err := tx.Exec(ctx, `
UPDATE posts SET status = 'posted', posted_at = now()
WHERE id = $1 AND status = 'unposted'
`, id)
	metrics.ObserveNetworkRequest("postgres", "mark_posted", "posts", start, err)
	if err != nil {
		return false, fmt.Errorf("пометка поста: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	start = time.Now()
	_, err = tx.Exec(ctx, `
INSERT INTO daily_stats (stat_date, posts_count)
VALUES ($1, 1)
ON CONFLICT (stat_date) DO UPDATE SET posts_count = daily_stats.posts_count + 1, updated_at = now()
`, dayKey)
	metrics.ObserveNetworkRequest("postgres", "record_publish", "daily_stats", start, err)
	if err != nil {
		return false, fmt.Errorf("инкремент квоты: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("фиксация транзакции: %w", err)
	}
	return true, nil
}

// CountForDay возвращает число публикаций за день.
func (p *Postgres) CountForDay(ctx context.Context, dayKey string) (int, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var count int
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT posts_count FROM daily_stats WHERE stat_date = $1
`, dayKey).Scan(&count)
	metrics.ObserveNetworkRequest("postgres", "count_for_day", "daily_stats", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("чтение квоты: %w", err)
	}
	return count, nil
}

// Stats возвращает агрегат для страницы статуса.
func (p *Postgres) Stats(ctx context.Context, dayKey string) (domain.PostStats, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var stats domain.PostStats
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT
	count(*),
	count(*) FILTER (WHERE status = 'unposted'),
	coalesce((SELECT posts_count FROM daily_stats WHERE stat_date = $1), 0)
FROM posts
`, dayKey).Scan(&stats.Total, &stats.UnpostedCount, &stats.PostedToday)
	metrics.ObserveNetworkRequest("postgres", "stats", "posts", start, err)
	if err != nil {
		return domain.PostStats{}, fmt.Errorf("чтение статистики: %w", err)
	}
	return stats, nil
}

// ListUnposted возвращает неопубликованные посты, старые первыми.
func (p *Postgres) ListUnposted(ctx context.Context, limit int) ([]domain.Post, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 10
	}
	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, title, body, summary, image_url, source_url, category, status, created_at, posted_at
FROM posts
WHERE status = 'unposted'
ORDER BY created_at, id
LIMIT $1
`, limit)
	metrics.ObserveNetworkRequest("postgres", "list_unposted", "posts", start, err)
	if err != nil {
		return nil, fmt.Errorf("список неопубликованных: %w", err)
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		var post domain.Post
		if err := rows.Scan(
			&post.ID, &post.Title, &post.Body, &post.Summary, &post.ImageURL,
			&post.SourceURL, &post.Category, &post.Status, &post.CreatedAt, &post.PostedAt,
		); err != nil {
			return nil, fmt.Errorf("чтение строки: %w", err)
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}
