package instagram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"insta-poster-bot/internal/domain"
	"insta-poster-bot/internal/infra/metrics"
)

const (
	defaultBaseURL   = "https://i.instagram.com/api/v1"
	defaultUserAgent = "Instagram 269.0.0.18.75 Android"
)

// Session хранит состояние входа. Сериализуется целиком в блоб и
// заменяется только целиком, без частичных правок.
type Session struct {
	Username  string    `json:"username"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	CSRFToken string    `json:"csrf_token"`
	IssuedAt  time.Time `json:"issued_at"`
}

// Client — клиент приватного API Instagram.
type Client struct {
	http      *http.Client
	baseURL   string
	userAgent string
	log       zerolog.Logger
}

var _ domain.PlatformClient = (*Client)(nil)

// NewClient создаёт клиента платформы.
func NewClient(baseURL string, logger zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		http:      &http.Client{Timeout: 60 * time.Second},
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: defaultUserAgent,
		log:       logger,
	}
}

// RestoreSession восстанавливает сессию из блоба.
func (c *Client) RestoreSession(ctx context.Context, blob []byte) (domain.SessionHandle, error) {
	var session Session
	if err := json.Unmarshal(blob, &session); err != nil {
		return nil, fmt.Errorf("распаковка сессии: %w", err)
	}
	if session.SessionID == "" || session.UserID == "" {
		return nil, errors.New("блоб сессии неполный")
	}
	return &session, nil
}

// Probe дёшево проверяет сессию запросом текущего аккаунта.
func (c *Client) Probe(ctx context.Context, handle domain.SessionHandle) error {
	session, err := asSession(handle)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/accounts/current_user/", nil)
	if err != nil {
		return fmt.Errorf("создание запроса: %w", err)
	}
	c.applyHeaders(req, session)

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.ObserveNetworkRequest("instagram", "probe", "current_user", start, err)
	if err != nil {
		return fmt.Errorf("проверка сессии: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return domain.NewAuthError("probe", fmt.Errorf("платформа отвергла сессию: статус %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("проверка сессии: статус %d", resp.StatusCode)
	}
	return nil
}

type loginResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	LoggedIn struct {
		PK       json.Number `json:"pk"`
		Username string      `json:"username"`
	} `json:"logged_in_user"`
}

// Login выполняет полный вход и возвращает новый блоб сессии.
func (c *Client) Login(ctx context.Context, username, password string) (domain.SessionHandle, []byte, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/accounts/login/", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, nil, fmt.Errorf("создание запроса: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.ObserveNetworkRequest("instagram", "login", "accounts", start, err)
	if err != nil {
		return nil, nil, domain.NewAuthError("login", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, nil, fmt.Errorf("чтение ответа: %w", err)
	}

	var parsed loginResponse
	if resp.StatusCode != http.StatusOK || json.Unmarshal(data, &parsed) != nil || parsed.Status != "ok" {
		message := parsed.Message
		if message == "" {
			message = fmt.Sprintf("статус %d", resp.StatusCode)
		}
		return nil, nil, domain.NewAuthError("login", errors.New(message))
	}

	session := &Session{
		Username:  parsed.LoggedIn.Username,
		UserID:    parsed.LoggedIn.PK.String(),
		SessionID: extractCookie(resp, "sessionid"),
		CSRFToken: extractCookie(resp, "csrftoken"),
		IssuedAt:  time.Now().UTC(),
	}
	if session.SessionID == "" {
		return nil, nil, domain.NewAuthError("login", errors.New("платформа не вернула sessionid"))
	}

	blob, err := json.Marshal(session)
	if err != nil {
		return nil, nil, fmt.Errorf("сериализация сессии: %w", err)
	}
	c.log.Info().Str("username", session.Username).Msg("instagram: вход выполнен")
	return session, blob, nil
}

type uploadResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	UploadID string `json:"upload_id"`
	Media    struct {
		PK   json.Number `json:"pk"`
		Code string      `json:"code"`
	} `json:"media"`
}

// PublishPhoto загружает изображение и настраивает публикацию с подписью.
func (c *Client) PublishPhoto(ctx context.Context, handle domain.SessionHandle, image []byte, caption string) (domain.MediaResult, error) {
	session, err := asSession(handle)
	if err != nil {
		return domain.MediaResult{}, err
	}

	uploadID, err := c.uploadPhoto(ctx, session, image)
	if err != nil {
		return domain.MediaResult{}, err
	}
	return c.configureMedia(ctx, session, uploadID, caption)
}

func (c *Client) uploadPhoto(ctx context.Context, session *Session, image []byte) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("photo", "photo.jpg")
	if err != nil {
		return "", fmt.Errorf("сборка формы: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return "", fmt.Errorf("запись изображения: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("закрытие формы: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload/photo/", &body)
	if err != nil {
		return "", fmt.Errorf("создание запроса: %w", err)
	}
	c.applyHeaders(req, session)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.ObserveNetworkRequest("instagram", "upload_photo", "upload", start, err)
	if err != nil {
		return "", &domain.PublishError{Err: err}
	}
	defer resp.Body.Close()

	parsed, err := c.decodeUploadResponse(resp, "upload_photo")
	if err != nil {
		return "", err
	}
	if parsed.UploadID == "" {
		return "", &domain.PublishError{Err: errors.New("платформа не вернула upload_id")}
	}
	return parsed.UploadID, nil
}

func (c *Client) configureMedia(ctx context.Context, session *Session, uploadID, caption string) (domain.MediaResult, error) {
	form := url.Values{}
	form.Set("upload_id", uploadID)
	form.Set("caption", caption)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/media/configure/", strings.NewReader(form.Encode()))
	if err != nil {
		return domain.MediaResult{}, fmt.Errorf("создание запроса: %w", err)
	}
	c.applyHeaders(req, session)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.ObserveNetworkRequest("instagram", "configure_media", "media", start, err)
	if err != nil {
		return domain.MediaResult{}, &domain.PublishError{Err: err}
	}
	defer resp.Body.Close()

	parsed, err := c.decodeUploadResponse(resp, "configure_media")
	if err != nil {
		return domain.MediaResult{}, err
	}
	result := domain.MediaResult{MediaID: parsed.Media.PK.String(), MediaCode: parsed.Media.Code}
	c.log.Info().Str("media_id", result.MediaID).Msg("instagram: публикация завершена")
	return result, nil
}

func (c *Client) decodeUploadResponse(resp *http.Response, stage string) (uploadResponse, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return uploadResponse{}, fmt.Errorf("чтение ответа: %w", err)
	}

	var parsed uploadResponse
	_ = json.Unmarshal(data, &parsed)

	if resp.StatusCode == http.StatusUnauthorized || parsed.Message == "login_required" {
		return uploadResponse{}, domain.NewAuthError(stage, errors.New("требуется повторный вход"))
	}
	if resp.StatusCode != http.StatusOK || parsed.Status != "ok" {
		message := parsed.Message
		if message == "" {
			message = fmt.Sprintf("статус %d", resp.StatusCode)
		}
		return uploadResponse{}, &domain.PublishError{Err: errors.New(message)}
	}
	return parsed, nil
}

func (c *Client) applyHeaders(req *http.Request, session *Session) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-CSRFToken", session.CSRFToken)
	req.AddCookie(&http.Cookie{Name: "sessionid", Value: session.SessionID})
	req.AddCookie(&http.Cookie{Name: "csrftoken", Value: session.CSRFToken})
	req.AddCookie(&http.Cookie{Name: "ds_user_id", Value: session.UserID})
}

func extractCookie(resp *http.Response, name string) string {
	for _, cookie := range resp.Cookies() {
		if cookie.Name == name {
			return cookie.Value
		}
	}
	return ""
}

func asSession(handle domain.SessionHandle) (*Session, error) {
	session, ok := handle.(*Session)
	if !ok || session == nil {
		return nil, errors.New("неожиданный тип дескриптора сессии")
	}
	return session, nil
}
