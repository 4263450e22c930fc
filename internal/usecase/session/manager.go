package session

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"insta-poster-bot/internal/domain"
)

// Manager владеет жизненным циклом сессии платформы:
// absent → authenticating → valid, valid → invalid при отказе платформы,
// invalid → authenticating при восстановлении. Восстановление и полный вход
// идут строго последовательно, одновременно выполняется не больше одной попытки.
type Manager struct {
	client   domain.PlatformClient
	blobs    domain.BlobStore
	blobKey  string
	username string
	password string
	log      zerolog.Logger

	mu    sync.Mutex
	state domain.SessionState
}

var _ domain.SessionProvider = (*Manager)(nil)

// NewManager создаёт менеджер сессии.
func NewManager(client domain.PlatformClient, blobs domain.BlobStore, blobKey, username, password string, logger zerolog.Logger) *Manager {
	return &Manager{
		client:   client,
		blobs:    blobs,
		blobKey:  blobKey,
		username: username,
		password: password,
		log:      logger,
		state:    domain.SessionAbsent,
	}
}

// State возвращает текущее состояние жизненного цикла.
func (m *Manager) State() domain.SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Invalidate помечает сессию недействительной после отказа платформы.
// Блоб не трогаем: следующий EnsureReady сам решит, жив он или нет.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = domain.SessionInvalid
	m.log.Warn().Msg("session: сессия помечена недействительной")
}

// EnsureReady возвращает готовый дескриптор для одной попытки публикации.
// Сначала пробуем восстановить сохранённый блоб и дёшево его проверить,
// при неудаче выполняем полный вход и атомарно сохраняем новый блоб.
func (m *Manager) EnsureReady(ctx context.Context) (domain.SessionHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = domain.SessionAuthenticating

	if handle := m.tryRestore(ctx); handle != nil {
		m.state = domain.SessionValid
		return handle, nil
	}

	handle, blob, err := m.client.Login(ctx, m.username, m.password)
	if err != nil {
		m.state = domain.SessionInvalid
		if authErr, ok := err.(*domain.AuthError); ok {
			return nil, authErr
		}
		return nil, domain.NewAuthError("login", err)
	}

	if err := m.blobs.Save(m.blobKey, blob); err != nil {
		// Вход удался, потеряна только возможность переиспользовать сессию
		// после рестарта. Публикацию это не блокирует.
		m.log.Error().Err(err).Msg("session: не удалось сохранить блоб сессии")
	}

	m.state = domain.SessionValid
	return handle, nil
}

func (m *Manager) tryRestore(ctx context.Context) domain.SessionHandle {
	blob, err := m.blobs.Load(m.blobKey)
	if err != nil {
		if !errors.Is(err, domain.ErrSessionBlobMissing) {
			m.log.Warn().Err(err).Msg("session: блоб сессии недоступен")
		}
		return nil
	}

	handle, err := m.client.RestoreSession(ctx, blob)
	if err != nil {
		m.log.Warn().Err(err).Msg("session: блоб сессии не восстановился")
		return nil
	}

	if err := m.client.Probe(ctx, handle); err != nil {
		m.log.Warn().Err(err).Msg("session: проверка сессии не прошла, нужен полный вход")
		return nil
	}
	return handle
}
