package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"insta-poster-bot/internal/adapters/summarizer"
	"insta-poster-bot/internal/domain"
)

type stubPostRepo struct {
	mu      sync.Mutex
	created []domain.PostCandidate
	err     error
}

func (s *stubPostRepo) Create(_ context.Context, candidate domain.PostCandidate) (domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return domain.Post{}, s.err
	}
	for _, existing := range s.created {
		if existing.Title == candidate.Title && existing.SourceURL == candidate.SourceURL {
			return domain.Post{}, domain.ErrDuplicatePost
		}
	}
	s.created = append(s.created, candidate)
	return domain.Post{ID: int64(len(s.created)), Title: candidate.Title, Summary: candidate.Summary}, nil
}

func (s *stubPostRepo) NextUnposted(context.Context) (*domain.Post, error) { return nil, nil }

func (s *stubPostRepo) MarkPosted(context.Context, int64) (bool, error) { return false, nil }

func (s *stubPostRepo) CommitPublication(context.Context, int64, string) (bool, error) {
	return false, nil
}

func (s *stubPostRepo) Stats(context.Context, string) (domain.PostStats, error) {
	return domain.PostStats{}, nil
}

func (s *stubPostRepo) ListUnposted(context.Context, int) ([]domain.Post, error) { return nil, nil }

type stubSummarizer struct {
	text string
	err  error
}

func (s *stubSummarizer) Summarize(context.Context, string, string) (string, error) {
	return s.text, s.err
}

func newsItem(title string) domain.NewsItem {
	return domain.NewsItem{
		Title:       title,
		Description: "Подробности происшествия.",
		ImageURL:    "https://example.com/photo.jpg",
		SourceURL:   "https://example.com/" + title,
	}
}

func TestIngestCreatesEligibleCandidate(t *testing.T) {
	repo := &stubPostRepo{}
	svc := NewService(repo, &stubSummarizer{text: "Готовая подпись #новости"}, 280, zerolog.Nop())

	post, err := svc.Ingest(context.Background(), newsItem("новость"))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if post.Summary != "Готовая подпись #новости" {
		t.Fatalf("подпись должна записываться при приёме, получили %q", post.Summary)
	}
	if len(repo.created) != 1 {
		t.Fatalf("ожидали один сохранённый пост, получили %d", len(repo.created))
	}
}

func TestIngestFallbackWhenSummarizerDown(t *testing.T) {
	repo := &stubPostRepo{}
	svc := NewService(repo, &stubSummarizer{err: errors.New("LLM недоступна")}, 280, zerolog.Nop())

	post, err := svc.Ingest(context.Background(), newsItem("новость"))
	if err != nil {
		t.Fatalf("падение суммаризатора не должно блокировать приём: %v", err)
	}
	if !strings.Contains(post.Summary, summarizer.FallbackTag) {
		t.Fatalf("ожидали шаблонную подпись, получили %q", post.Summary)
	}
}

func TestIngestClampsSummary(t *testing.T) {
	long := strings.Repeat("очень длинная подпись ", 40)
	repo := &stubPostRepo{}
	svc := NewService(repo, &stubSummarizer{text: long}, 280, zerolog.Nop())

	post, err := svc.Ingest(context.Background(), newsItem("новость"))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if got := utf8.RuneCountInString(post.Summary); got > 280 {
		t.Fatalf("подпись должна быть усечена до 280 рун, длина %d", got)
	}
}

func TestIngestRejectsEmptyItem(t *testing.T) {
	svc := NewService(&stubPostRepo{}, &stubSummarizer{text: "x"}, 280, zerolog.Nop())

	_, err := svc.Ingest(context.Background(), domain.NewsItem{Title: "  ", Description: "\n"})
	if !errors.Is(err, ErrEmptyItem) {
		t.Fatalf("ожидали ErrEmptyItem, получили %v", err)
	}
}

func TestIngestPassesThroughDuplicate(t *testing.T) {
	repo := &stubPostRepo{}
	svc := NewService(repo, &stubSummarizer{text: "подпись"}, 280, zerolog.Nop())

	if _, err := svc.Ingest(context.Background(), newsItem("новость")); err != nil {
		t.Fatalf("первый приём должен пройти: %v", err)
	}
	_, err := svc.Ingest(context.Background(), newsItem("новость"))
	if !errors.Is(err, domain.ErrDuplicatePost) {
		t.Fatalf("ожидали ErrDuplicatePost, получили %v", err)
	}
}

func TestIngestKeepsItemWithoutImage(t *testing.T) {
	repo := &stubPostRepo{}
	svc := NewService(repo, &stubSummarizer{text: "подпись"}, 280, zerolog.Nop())

	item := newsItem("новость")
	item.ImageURL = ""
	post, err := svc.Ingest(context.Background(), item)
	if err != nil {
		t.Fatalf("новость без картинки сохраняется: %v", err)
	}
	if post.Eligible() {
		t.Fatalf("без картинки пост не может быть пригодным к публикации")
	}
}

type fakeQueue struct {
	jobs chan domain.IngestJob

	mu   sync.Mutex
	acks []bool
}

func (q *fakeQueue) Enqueue(_ context.Context, job domain.IngestJob) error {
	q.jobs <- job
	return nil
}

func (q *fakeQueue) Receive(ctx context.Context) (domain.IngestJob, domain.IngestAckFunc, error) {
	select {
	case <-ctx.Done():
		return domain.IngestJob{}, nil, ctx.Err()
	case job := <-q.jobs:
		ack := func(success bool) error {
			q.mu.Lock()
			defer q.mu.Unlock()
			q.acks = append(q.acks, success)
			return nil
		}
		return job, ack, nil
	}
}

func TestConsumeAcksDuplicatesAsSuccess(t *testing.T) {
	repo := &stubPostRepo{}
	svc := NewService(repo, &stubSummarizer{text: "подпись"}, 280, zerolog.Nop())

	queue := &fakeQueue{jobs: make(chan domain.IngestJob, 2)}
	queue.jobs <- domain.IngestJob{ID: "a", Item: newsItem("новость"), Cause: domain.IngestCauseFeed}
	queue.jobs <- domain.IngestJob{ID: "b", Item: newsItem("новость"), Cause: domain.IngestCauseFeed}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- svc.Consume(ctx, queue) }()

	deadline := time.After(2 * time.Second)
	for {
		queue.mu.Lock()
		processed := len(queue.acks)
		queue.mu.Unlock()
		if processed == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("обработаны не все задачи: %d из 2", processed)
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("ожидали остановку по контексту, получили %v", err)
	}

	queue.mu.Lock()
	defer queue.mu.Unlock()
	for i, ok := range queue.acks {
		if !ok {
			t.Fatalf("задача %d должна быть подтверждена: дубликат не возвращается в очередь", i)
		}
	}
	if len(repo.created) != 1 {
		t.Fatalf("в хранилище должен быть один пост, получили %d", len(repo.created))
	}
}
