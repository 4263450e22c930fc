package instagram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"insta-poster-bot/internal/domain"
)

func testHandle() *Session {
	return &Session{Username: "bot", UserID: "123", SessionID: "sid", CSRFToken: "csrf"}
}

func TestRestoreSessionRoundTrip(t *testing.T) {
	c := NewClient("", zerolog.Nop())
	handle, err := c.RestoreSession(context.Background(), []byte(`{"username":"bot","user_id":"123","session_id":"sid","csrf_token":"csrf"}`))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	session, ok := handle.(*Session)
	if !ok {
		t.Fatalf("ожидали *Session, получили %T", handle)
	}
	if session.SessionID != "sid" || session.UserID != "123" {
		t.Fatalf("поля сессии потеряны: %+v", session)
	}
}

func TestRestoreSessionRejectsIncompleteBlob(t *testing.T) {
	c := NewClient("", zerolog.Nop())
	if _, err := c.RestoreSession(context.Background(), []byte(`{"username":"bot"}`)); err == nil {
		t.Fatalf("неполный блоб должен отклоняться")
	}
	if _, err := c.RestoreSession(context.Background(), []byte("мусор")); err == nil {
		t.Fatalf("мусорный блоб должен отклоняться")
	}
}

func TestProbeAcceptsLiveSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/accounts/current_user/" {
			t.Errorf("неожиданный путь %s", r.URL.Path)
		}
		if cookie, err := r.Cookie("sessionid"); err != nil || cookie.Value != "sid" {
			t.Errorf("запрос должен нести cookie sessionid")
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewClient(server.URL, zerolog.Nop())
	if err := c.Probe(context.Background(), testHandle()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
}

func TestProbeRejectedSessionIsAuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := NewClient(server.URL, zerolog.Nop())
	err := c.Probe(context.Background(), testHandle())
	var authErr *domain.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("ожидали AuthError, получили %v", err)
	}
}

func TestLoginBuildsReusableBlob(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/accounts/login/" {
			t.Errorf("неожиданный путь %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil || r.PostFormValue("username") != "bot" {
			t.Errorf("форма входа должна нести username")
		}
		http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "fresh-sid"})
		http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: "fresh-csrf"})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","logged_in_user":{"pk":123,"username":"bot"}}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, zerolog.Nop())
	handle, blob, err := c.Login(context.Background(), "bot", "secret")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	session, ok := handle.(*Session)
	if !ok || session.SessionID != "fresh-sid" || session.UserID != "123" {
		t.Fatalf("сессия собрана неверно: %+v", handle)
	}

	restored, err := c.RestoreSession(context.Background(), blob)
	if err != nil {
		t.Fatalf("блоб входа должен восстанавливаться: %v", err)
	}
	if restored.(*Session).SessionID != "fresh-sid" {
		t.Fatalf("блоб потерял sessionid")
	}
}

func TestLoginFailureIsAuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":"fail","message":"bad_password"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, zerolog.Nop())
	_, _, err := c.Login(context.Background(), "bot", "wrong")
	var authErr *domain.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("ожидали AuthError, получили %v", err)
	}
}

func TestLoginWithoutSessionCookieFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","logged_in_user":{"pk":123,"username":"bot"}}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, zerolog.Nop())
	_, _, err := c.Login(context.Background(), "bot", "secret")
	var authErr *domain.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("вход без sessionid должен быть AuthError, получили %v", err)
	}
}

func TestPublishPhotoUploadsAndConfigures(t *testing.T) {
	var gotCaption string
	mux := http.NewServeMux()
	mux.HandleFunc("/upload/photo/", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ожидали multipart форму: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","upload_id":"42"}`))
	})
	mux.HandleFunc("/media/configure/", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostFormValue("upload_id") != "42" {
			t.Errorf("настройка должна ссылаться на upload_id, получили %q", r.PostFormValue("upload_id"))
		}
		gotCaption = r.PostFormValue("caption")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","media":{"pk":777,"code":"abc"}}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := NewClient(server.URL, zerolog.Nop())
	result, err := c.PublishPhoto(context.Background(), testHandle(), []byte("jpeg"), "Подпись #новости")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if result.MediaID != "777" || result.MediaCode != "abc" {
		t.Fatalf("результат публикации собран неверно: %+v", result)
	}
	if gotCaption != "Подпись #новости" {
		t.Fatalf("подпись потеряна по дороге: %q", gotCaption)
	}
}

func TestPublishPhotoLoginRequiredIsAuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"fail","message":"login_required"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, zerolog.Nop())
	_, err := c.PublishPhoto(context.Background(), testHandle(), []byte("jpeg"), "подпись")
	var authErr *domain.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("login_required должен быть AuthError, получили %v", err)
	}
}

func TestPublishPhotoServerErrorIsPublishError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewClient(server.URL, zerolog.Nop())
	_, err := c.PublishPhoto(context.Background(), testHandle(), []byte("jpeg"), "подпись")
	var pubErr *domain.PublishError
	if !errors.As(err, &pubErr) {
		t.Fatalf("ожидали PublishError, получили %v", err)
	}
}
