package news

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"insta-poster-bot/internal/domain"
	"insta-poster-bot/internal/infra/metrics"
)

const defaultBaseURL = "https://newsapi.org/v2"

// Client читает ленту главных новостей NewsAPI.
type Client struct {
	http     *http.Client
	baseURL  string
	apiKey   string
	country  string
	pageSize int
}

var _ domain.NewsFeed = (*Client)(nil)

// NewClient создаёт клиента ленты.
func NewClient(apiKey, baseURL, country string, pageSize int) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if country == "" {
		country = "tr"
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	return &Client{
		http:     &http.Client{Timeout: 15 * time.Second},
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		country:  country,
		pageSize: pageSize,
	}
}

type headlinesResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Articles []struct {
		Title       string    `json:"title"`
		Description string    `json:"description"`
		URL         string    `json:"url"`
		URLToImage  string    `json:"urlToImage"`
		PublishedAt time.Time `json:"publishedAt"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

// TopHeadlines возвращает свежие главные новости настроенной страны.
func (c *Client) TopHeadlines(ctx context.Context) ([]domain.NewsItem, error) {
	query := url.Values{}
	query.Set("country", c.country)
	query.Set("pageSize", strconv.Itoa(c.pageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/top-headlines?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("создание запроса: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.ObserveNetworkRequest("newsapi", "top_headlines", c.country, start, err)
	if err != nil {
		return nil, fmt.Errorf("запрос ленты: %w", err)
	}
	defer resp.Body.Close()

	var parsed headlinesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("распаковка ответа: %w", err)
	}
	if resp.StatusCode != http.StatusOK || parsed.Status != "ok" {
		message := parsed.Message
		if message == "" {
			message = fmt.Sprintf("статус %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("newsapi: %s", message)
	}

	items := make([]domain.NewsItem, 0, len(parsed.Articles))
	for _, article := range parsed.Articles {
		title := strings.TrimSpace(article.Title)
		if title == "" {
			continue
		}
		items = append(items, domain.NewsItem{
			Title:       title,
			Description: strings.TrimSpace(article.Description),
			ImageURL:    strings.TrimSpace(article.URLToImage),
			SourceURL:   strings.TrimSpace(article.URL),
			Category:    strings.ToLower(strings.TrimSpace(article.Source.Name)),
			PublishedAt: article.PublishedAt,
		})
	}
	return items, nil
}
