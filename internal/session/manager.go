// Package session owns guest-session bootstrap and restore, including
// recovery when a previously stored session id is rejected by the server.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/telamed/guestchat/internal/domain"
	"github.com/telamed/guestchat/internal/normalize"
)

// SessionKey is the persisted key holding the guest session id. The session
// manager is its only writer.
const SessionKey = "guest_session_id"

// Gateway is the slice of the API client the session manager needs.
type Gateway interface {
	StartSession(ctx context.Context) (string, error)
	FetchSession(ctx context.Context, sessionID string) (map[string]any, error)
	CreateChat(ctx context.Context, sessionID, title string) (map[string]any, error)
}

// Manager restores or creates the guest session once per process. Duplicate
// Initialize calls collapse into a single execution.
type Manager struct {
	gw    Gateway
	store domain.KeyValueStore
	log   zerolog.Logger

	mu          sync.Mutex
	initialized bool
	session     *domain.GuestSession
	chats       []domain.Chat
}

// NewManager creates a session manager.
func NewManager(gw Gateway, store domain.KeyValueStore, logger zerolog.Logger) *Manager {
	return &Manager{gw: gw, store: store, log: logger}
}

// Initialize restores the persisted session or creates a fresh one. A 404 on
// the stored id is recovered locally: the stale id is discarded and a new
// session created. Any other fetch error leaves the manager uninitialized so
// a later call can retry.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}

	stored, err := m.store.Get(ctx, SessionKey)
	if err != nil && !errors.Is(err, domain.ErrKeyNotFound) {
		m.log.Error().Err(err).Msg("failed to read persisted session id")
	}

	if stored != "" {
		payload, err := m.gw.FetchSession(ctx, stored)
		switch {
		case err == nil:
			return m.restoreLocked(ctx, stored, payload)
		case errors.Is(err, domain.ErrNotFound):
			// Stale id: clear it and fall through to creation.
			m.log.Info().Str("session_id", stored).Msg("stored session rejected by server, creating a new one")
			if err := m.store.Delete(ctx, SessionKey); err != nil {
				m.log.Error().Err(err).Msg("failed to clear stale session id")
			}
		default:
			m.log.Error().Err(err).Msg("failed to fetch session")
			return fmt.Errorf("failed to fetch session: %w", err)
		}
	}

	return m.createLocked(ctx)
}

func (m *Manager) restoreLocked(ctx context.Context, sessionID string, payload map[string]any) error {
	m.session = &domain.GuestSession{SessionID: sessionID, CreatedAt: time.Now()}
	m.chats = normalize.SessionChats(payload, sessionID)

	// The UI must never observe a session with zero chats.
	if len(m.chats) == 0 {
		m.chats = []domain.Chat{m.newChat(ctx, sessionID)}
	}

	// Re-persist before returning so a crash right after does not lose it.
	if err := m.store.Set(ctx, SessionKey, sessionID); err != nil {
		m.log.Error().Err(err).Msg("failed to persist session id")
	}

	m.initialized = true
	m.log.Info().Str("session_id", sessionID).Int("chats", len(m.chats)).Msg("guest session restored")
	return nil
}

func (m *Manager) createLocked(ctx context.Context) error {
	sessionID, err := m.gw.StartSession(ctx)
	if err != nil {
		return fmt.Errorf("failed to create guest session: %w", err)
	}

	// Persist immediately, before any follow-up call can fail.
	if err := m.store.Set(ctx, SessionKey, sessionID); err != nil {
		m.log.Error().Err(err).Msg("failed to persist session id")
	}

	m.session = &domain.GuestSession{SessionID: sessionID, CreatedAt: time.Now()}
	m.chats = []domain.Chat{m.newChat(ctx, sessionID)}
	m.initialized = true
	m.log.Info().Str("session_id", sessionID).Msg("guest session created")
	return nil
}

// newChat creates the initial chat server-side, degrading to a local
// optimistic chat when the call fails.
func (m *Manager) newChat(ctx context.Context, sessionID string) domain.Chat {
	now := time.Now()
	if payload, err := m.gw.CreateChat(ctx, sessionID, domain.DefaultChatTitle); err == nil {
		if chat := normalize.Chat(payload, sessionID); chat != nil {
			if chat.Title == "" {
				chat.Title = domain.DefaultChatTitle
			}
			return *chat
		}
	} else {
		m.log.Error().Err(err).Msg("failed to create initial chat, keeping local copy")
	}
	return domain.Chat{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Title:     domain.DefaultChatTitle,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Session returns the active guest session, or nil before initialization.
func (m *Manager) Session() *domain.GuestSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Chats returns the chats resolved during initialization, most recently
// active first.
func (m *Manager) Chats() []domain.Chat {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Chat, len(m.chats))
	copy(out, m.chats)
	return out
}

// Reset performs an explicit logout: the persisted id is deleted, in-memory
// state cleared, and a fresh session created.
func (m *Manager) Reset(ctx context.Context) error {
	m.mu.Lock()
	if err := m.store.Delete(ctx, SessionKey); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("failed to delete session id: %w", err)
	}
	m.session = nil
	m.chats = nil
	m.initialized = false
	m.mu.Unlock()

	return m.Initialize(ctx)
}
