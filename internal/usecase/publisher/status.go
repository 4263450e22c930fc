package publisher

import (
	"sync"
	"time"

	"insta-poster-bot/internal/domain"
)

// Status — процессное состояние пайплайна для страницы статуса.
// Пишут сюда только Publisher и менеджер сессии, читать можно свободно.
type Status struct {
	sessions domain.SessionProvider

	mu          sync.RWMutex
	lastState   RunState
	lastErr     string
	lastRunAt   time.Time
	lastMediaID string
	hazard      bool
	hazardMsg   string
	startedAt   time.Time
}

// StatusSnapshot — снимок состояния для HTTP-ответа.
type StatusSnapshot struct {
	SessionState string    `json:"session_state"`
	LastRunState string    `json:"last_run_state"`
	LastRunError string    `json:"last_run_error,omitempty"`
	LastRunAt    time.Time `json:"last_run_at"`
	LastMediaID  string    `json:"last_media_id,omitempty"`
	Hazard       bool      `json:"reconciliation_hazard"`
	HazardDetail string    `json:"hazard_detail,omitempty"`
	StartedAt    time.Time `json:"started_at"`
}

// NewStatus создаёт состояние с определёнными начальными значениями.
func NewStatus(sessions domain.SessionProvider) *Status {
	return &Status{
		sessions:  sessions,
		lastState: RunIdle,
		startedAt: time.Now().UTC(),
	}
}

func (s *Status) finishRun(outcome Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastState = outcome.State
	s.lastRunAt = time.Now().UTC()
	s.lastErr = ""
	if outcome.Err != nil {
		s.lastErr = outcome.Err.Error()
	}
	if outcome.MediaID != "" {
		s.lastMediaID = outcome.MediaID
	}
}

// markHazard фиксирует рассинхронизацию учёта: она требует внимания
// оператора и не сбрасывается до рестарта процесса.
func (s *Status) markHazard(detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hazard = true
	s.hazardMsg = detail
}

// Snapshot возвращает снимок для страницы статуса.
func (s *Status) Snapshot() StatusSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessionState := string(domain.SessionAbsent)
	if s.sessions != nil {
		sessionState = string(s.sessions.State())
	}
	return StatusSnapshot{
		SessionState: sessionState,
		LastRunState: string(s.lastState),
		LastRunError: s.lastErr,
		LastRunAt:    s.lastRunAt,
		LastMediaID:  s.lastMediaID,
		Hazard:       s.hazard,
		HazardDetail: s.hazardMsg,
		StartedAt:    s.startedAt,
	}
}
