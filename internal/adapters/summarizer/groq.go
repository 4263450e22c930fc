package summarizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"insta-poster-bot/internal/domain"
	"insta-poster-bot/internal/infra/groq"
)

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req groq.ChatCompletionRequest) (groq.ChatCompletionResponse, error)
}

// Groq реализует Summarizer через Groq Chat Completions.
type Groq struct {
	client     chatClient
	model      string
	timeout    time.Duration
	captionMin int
	captionMax int
}

var _ domain.Summarizer = (*Groq)(nil)

// NewGroq создаёт провайдер суммаризации.
func NewGroq(client chatClient, model string, timeout time.Duration, captionMin, captionMax int) *Groq {
	if model == "" {
		model = "llama-3.3-70b-versatile"
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if captionMin <= 0 {
		captionMin = 200
	}
	if captionMax <= captionMin {
		captionMax = captionMin + 80
	}
	return &Groq{client: client, model: model, timeout: timeout, captionMin: captionMin, captionMax: captionMax}
}

// Summarize строит подпись для публикации по заголовку и телу новости.
func (s *Groq) Summarize(ctx context.Context, title, body string) (string, error) {
	title = strings.TrimSpace(title)
	body = strings.TrimSpace(body)
	if title == "" && body == "" {
		return "", fmt.Errorf("пустая новость")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	userPrompt := fmt.Sprintf(`Сделай из новости короткий пост для Instagram на языке оригинала новости.
Правила:
1. Минимум %d и максимум %d символов, не превышай максимум.
2. Передай суть без кликбейта, сохрани все ключевые факты.
3. В конце добавь 3-4 подходящих хештега.
4. Верни только текст поста, без пояснений.
Заголовок: %s
Детали: %s`, s.captionMin, s.captionMax, title, clipRunes(body, 2000))

	req := groq.ChatCompletionRequest{
		Model:       s.model,
		Temperature: 0.7,
		MaxTokens:   300,
		Messages: []groq.ChatMessage{
			{
				Role:    groq.RoleSystem,
				Content: "Ты редактор социальных сетей. Пиши кратко и фактологично, ничего не выдумывай.",
			},
			{
				Role:    groq.RoleUser,
				Content: userPrompt,
			},
		},
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("groq completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("groq completion: пустой ответ")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("groq completion: пустой текст")
	}
	return content, nil
}

func clipRunes(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
