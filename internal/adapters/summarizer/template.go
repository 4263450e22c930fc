package summarizer

import (
	"strings"
	"unicode/utf8"
)

// FallbackTag добавляется к шаблонной подписи, когда LLM недоступна.
const FallbackTag = "#новости"

const fallbackCTA = "Подробности в источнике — следите за обновлениями!"

// Fallback строит детерминированную подпись из заголовка.
// Используется, когда суммаризатор недоступен: подготовка контента
// не должна падать только из-за LLM.
func Fallback(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Свежие новости"
	}
	return title + "\n\n" + fallbackCTA + " " + FallbackTag
}

// ClampCaption усекает подпись до limit рунами, стараясь резать по границе слова.
func ClampCaption(caption string, limit int) string {
	caption = strings.TrimSpace(caption)
	if limit <= 0 || utf8.RuneCountInString(caption) <= limit {
		return caption
	}
	runes := []rune(caption)
	cut := string(runes[:limit-1])
	if idx := strings.LastIndexAny(cut, " \n\t"); idx > limit/2 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut) + "…"
}
