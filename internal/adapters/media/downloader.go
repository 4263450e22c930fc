package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"insta-poster-bot/internal/infra/metrics"
)

const maxImageBytes = 20 << 20

// Downloader скачивает исходные изображения новостей.
type Downloader struct {
	http *http.Client
}

// NewDownloader создаёт загрузчик.
func NewDownloader(timeout time.Duration) *Downloader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Downloader{http: &http.Client{Timeout: timeout}}
}

// Fetch сохраняет изображение по ссылке в файл dest.
func (d *Downloader) Fetch(ctx context.Context, rawURL, dest string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return fmt.Errorf("некорректная ссылка на изображение: %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("создание запроса: %w", err)
	}

	start := time.Now()
	resp, err := d.http.Do(req)
	metrics.ObserveNetworkRequest("image", "download", parsed.Host, start, err)
	if err != nil {
		return fmt.Errorf("скачивание изображения: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("скачивание изображения: статус %d", resp.StatusCode)
	}

	file, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("создание файла: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, io.LimitReader(resp.Body, maxImageBytes)); err != nil {
		return fmt.Errorf("запись файла: %w", err)
	}
	return nil
}
