package session

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// Ключи локального хранилища настроек.
const (
	KeyUserID    = "current_user_id"
	KeyToken     = "current_user_token"
	KeyExpiresAt = "current_user_token_exp"
)

// Session - текущий пользователь. Передается явно всем компонентам, которым он нужен.
type Session struct {
	UserID    string
	Token     string
	ExpiresAt time.Time
}

// AuthToken возвращает токен, если он еще действует.
func (s *Session) AuthToken() string {
	if s == nil || s.Token == "" {
		return ""
	}
	if !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt) {
		return ""
	}
	return s.Token
}

// Manager хранит текущую сессию в памяти и в Store.
type Manager struct {
	mu      sync.RWMutex
	store   Store
	current *Session
}

// NewManager создает менеджер и восстанавливает сохраненную сессию.
// Отсутствие ключа current_user_id означает, что пользователь не вошел.
func NewManager(ctx context.Context, store Store) (*Manager, error) {
	m := &Manager{store: store}
	uid, ok, err := store.Get(ctx, KeyUserID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return m, nil
	}

	s := &Session{UserID: uid}
	if tok, ok, err := store.Get(ctx, KeyToken); err == nil && ok {
		s.Token = tok
	}
	if exp, ok, err := store.Get(ctx, KeyExpiresAt); err == nil && ok {
		if unix, err := strconv.ParseInt(exp, 10, 64); err == nil {
			s.ExpiresAt = time.Unix(unix, 0)
		}
	}
	m.current = s
	return m, nil
}

// Current возвращает копию текущей сессии или nil.
func (m *Manager) Current() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	cp := *m.current
	return &cp
}

// UserID возвращает id текущего пользователя или пустую строку.
func (m *Manager) UserID() string {
	if s := m.Current(); s != nil {
		return s.UserID
	}
	return ""
}

// AuthToken подходит как remote.TokenSource.
func (m *Manager) AuthToken() string {
	return m.Current().AuthToken()
}

// Set сохраняет новую сессию.
func (m *Manager) Set(ctx context.Context, s Session) error {
	if s.UserID == "" {
		return fmt.Errorf("session without user id")
	}
	if err := m.store.Put(ctx, KeyUserID, s.UserID); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if err := m.putOrRemove(ctx, KeyToken, s.Token); err != nil {
		return err
	}
	exp := ""
	if !s.ExpiresAt.IsZero() {
		exp = strconv.FormatInt(s.ExpiresAt.Unix(), 10)
	}
	if err := m.putOrRemove(ctx, KeyExpiresAt, exp); err != nil {
		return err
	}

	m.mu.Lock()
	m.current = &s
	m.mu.Unlock()
	return nil
}

// Clear завершает сессию.
func (m *Manager) Clear(ctx context.Context) error {
	for _, key := range []string{KeyUserID, KeyToken, KeyExpiresAt} {
		if err := m.store.Remove(ctx, key); err != nil {
			return fmt.Errorf("clear session: %w", err)
		}
	}
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
	return nil
}

func (m *Manager) putOrRemove(ctx context.Context, key, value string) error {
	var err error
	if value == "" {
		err = m.store.Remove(ctx, key)
	} else {
		err = m.store.Put(ctx, key, value)
	}
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
