package domain

import "time"

// PostStatus описывает статус кандидата на публикацию.
type PostStatus string

const (
	// PostStatusUnposted — пост ещё не опубликован.
	PostStatusUnposted PostStatus = "unposted"
	// PostStatusPosted — пост опубликован, повторная публикация запрещена.
	PostStatusPosted PostStatus = "posted"
)

// Post представляет одну новость, проходящую путь unposted → posted.
type Post struct {
	ID        int64
	Title     string
	Body      string
	Summary   string
	ImageURL  string
	SourceURL string
	Category  string
	Status    PostStatus
	CreatedAt time.Time
	PostedAt  *time.Time
}

// Eligible сообщает, готов ли пост к публикации: нужны и подпись, и картинка.
func (p Post) Eligible() bool {
	return p.Status == PostStatusUnposted && p.Summary != "" && p.ImageURL != ""
}

// PostCandidate описывает входные данные новости до сохранения.
type PostCandidate struct {
	Title     string
	Body      string
	Summary   string
	ImageURL  string
	SourceURL string
	Category  string
}

// PostStats — агрегат по хранилищу для страницы статуса.
type PostStats struct {
	Total         int
	PostedToday   int
	UnpostedCount int
}

// PreparedContent — результат подготовки контента: подпись и собранный JPEG.
type PreparedContent struct {
	Caption string
	Image   []byte
}

// MediaResult — ответ платформы на успешную публикацию.
type MediaResult struct {
	MediaID   string
	MediaCode string
}

// SessionState описывает состояние сессии внешней платформы.
type SessionState string

const (
	// SessionAbsent — сессии ещё нет.
	SessionAbsent SessionState = "absent"
	// SessionAuthenticating — идёт восстановление или вход.
	SessionAuthenticating SessionState = "authenticating"
	// SessionValid — сессия проверена и готова к публикации.
	SessionValid SessionState = "valid"
	// SessionInvalid — платформа отвергла сессию, нужен повторный вход.
	SessionInvalid SessionState = "invalid"
)

// NewsItem — элемент новостной ленты до превращения в Post.
type NewsItem struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ImageURL    string    `json:"image_url"`
	SourceURL   string    `json:"source_url"`
	Category    string    `json:"category"`
	PublishedAt time.Time `json:"published_at"`
}

// IngestJobCause описывает источник задачи на приём новости.
type IngestJobCause string

const (
	// IngestCauseFeed — новость пришла от сборщика ленты.
	IngestCauseFeed IngestJobCause = "feed"
	// IngestCauseManual — новость создана вручную через API.
	IngestCauseManual IngestJobCause = "manual"
)

// IngestJob содержит одну новость для приёма в хранилище.
type IngestJob struct {
	ID          string         `json:"job_id"`
	Item        NewsItem       `json:"item"`
	Cause       IngestJobCause `json:"cause"`
	RequestedAt time.Time      `json:"requested_at"`
}
