package news

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const headlinesFixture = `{
	"status": "ok",
	"articles": [
		{
			"title": "Курс лиры обновил минимум",
			"description": "Подробности торгов.",
			"url": "https://example.com/lira",
			"urlToImage": "https://example.com/lira.jpg",
			"publishedAt": "2025-06-01T10:00:00Z",
			"source": {"name": "Economy"}
		},
		{
			"title": "  ",
			"description": "новость без заголовка",
			"url": "https://example.com/empty"
		},
		{
			"title": "Стамбул готовится к саммиту",
			"description": "",
			"url": "https://example.com/summit",
			"urlToImage": "",
			"source": {"name": "Politics"}
		}
	]
}`

func TestTopHeadlinesParsesFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/top-headlines" {
			t.Errorf("неожиданный путь %s", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "key" {
			t.Errorf("запрос должен нести X-Api-Key")
		}
		if r.URL.Query().Get("country") != "tr" || r.URL.Query().Get("pageSize") != "20" {
			t.Errorf("неожиданные параметры запроса: %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(headlinesFixture))
	}))
	defer server.Close()

	c := NewClient("key", server.URL, "tr", 20)
	items, err := c.TopHeadlines(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	// Статья без заголовка отбрасывается.
	if len(items) != 2 {
		t.Fatalf("ожидали 2 новости, получили %d", len(items))
	}
	first := items[0]
	if first.Title != "Курс лиры обновил минимум" {
		t.Fatalf("заголовок разобран неверно: %q", first.Title)
	}
	if first.ImageURL != "https://example.com/lira.jpg" || first.SourceURL != "https://example.com/lira" {
		t.Fatalf("ссылки разобраны неверно: %+v", first)
	}
	if first.Category != "economy" {
		t.Fatalf("категория должна быть в нижнем регистре, получили %q", first.Category)
	}
}

func TestTopHeadlinesAPIErrorSurfaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status":"error","message":"apiKeyInvalid"}`))
	}))
	defer server.Close()

	c := NewClient("bad", server.URL, "tr", 20)
	if _, err := c.TopHeadlines(context.Background()); err == nil {
		t.Fatalf("ошибка API должна пробрасываться")
	}
}
