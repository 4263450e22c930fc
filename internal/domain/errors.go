package domain

import (
	"errors"
	"fmt"
)

// ErrDuplicatePost возвращается при попытке создать пост с уже известной парой (title, source_url).
var ErrDuplicatePost = errors.New("пост с таким заголовком и источником уже существует")

// ErrSessionBlobMissing возвращается, если сохранённой сессии нет в хранилище.
var ErrSessionBlobMissing = errors.New("сохранённая сессия не найдена")

// PrepareError означает, что контент не удалось подготовить в этом запуске.
// Пост остаётся unposted и будет выбран снова на следующем триггере.
type PrepareError struct {
	Stage string
	Err   error
}

func (e *PrepareError) Error() string {
	return fmt.Sprintf("подготовка контента (%s): %v", e.Stage, e.Err)
}

func (e *PrepareError) Unwrap() error { return e.Err }

// AuthError означает, что сессия платформы непригодна для публикации.
// Diag содержит усечённое описание без учётных данных.
type AuthError struct {
	Stage string
	Diag  string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("авторизация (%s): %s", e.Stage, e.Diag)
}

const authDiagLimit = 120

// NewAuthError строит AuthError, усекая диагностику до безопасной длины.
func NewAuthError(stage string, err error) *AuthError {
	diag := ""
	if err != nil {
		diag = err.Error()
	}
	runes := []rune(diag)
	if len(runes) > authDiagLimit {
		diag = string(runes[:authDiagLimit]) + "…"
	}
	return &AuthError{Stage: stage, Diag: diag}
}

// PublishError означает отказ или недоступность внешней платформы.
type PublishError struct {
	Err error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("публикация на платформе: %v", e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// CommitError означает сбой локальной фиксации после успешной внешней публикации.
// Это риск рассинхронизации: платформа пост уже показывает, а учёт — нет.
type CommitError struct {
	PostID int64
	Err    error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("фиксация публикации поста %d: %v", e.PostID, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }
