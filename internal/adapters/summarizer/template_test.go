package summarizer

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestFallbackContainsTitleAndTag(t *testing.T) {
	caption := Fallback("Курс лиры обновил минимум")
	if !strings.Contains(caption, "Курс лиры обновил минимум") {
		t.Fatalf("подпись должна содержать заголовок: %q", caption)
	}
	if !strings.Contains(caption, FallbackTag) {
		t.Fatalf("подпись должна содержать хештег: %q", caption)
	}
}

func TestFallbackEmptyTitle(t *testing.T) {
	caption := Fallback("   ")
	if caption == "" {
		t.Fatalf("подпись не бывает пустой")
	}
	if !strings.Contains(caption, FallbackTag) {
		t.Fatalf("подпись должна содержать хештег: %q", caption)
	}
}

func TestClampCaptionShortTextUntouched(t *testing.T) {
	if got := ClampCaption("короткая подпись", 280); got != "короткая подпись" {
		t.Fatalf("короткая подпись не должна меняться: %q", got)
	}
}

func TestClampCaptionCutsByRunes(t *testing.T) {
	long := strings.Repeat("новость дня ", 60)
	got := ClampCaption(long, 280)
	if utf8.RuneCountInString(got) > 280 {
		t.Fatalf("подпись длиннее лимита: %d рун", utf8.RuneCountInString(got))
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("усечённая подпись должна оканчиваться многоточием: %q", got)
	}
	if strings.HasSuffix(strings.TrimSuffix(got, "…"), " ") {
		t.Fatalf("перед многоточием не должно быть пробела: %q", got)
	}
}

func TestClampCaptionPrefersWordBoundary(t *testing.T) {
	caption := "первое второе третье четвёртое пятое"
	got := ClampCaption(caption, 25)
	trimmed := strings.TrimSuffix(got, "…")
	for _, word := range strings.Fields(trimmed) {
		if !strings.Contains(caption, word) {
			t.Fatalf("усечение разрезало слово: %q", word)
		}
	}
}
