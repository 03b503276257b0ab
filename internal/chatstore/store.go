// Package chatstore owns the in-memory chat collection for the active guest
// session: create, rename, delete, select, refresh, and the per-chat message
// lists. Mutations are optimistic; failed persistence is logged and the
// local state kept.
package chatstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/telamed/guestchat/internal/domain"
	"github.com/telamed/guestchat/internal/normalize"
)

// Gateway is the slice of the API client the chat store needs.
type Gateway interface {
	FetchSession(ctx context.Context, sessionID string) (map[string]any, error)
	CreateChat(ctx context.Context, sessionID, title string) (map[string]any, error)
	RenameChat(ctx context.Context, sessionID, chatID, title string) error
	DeleteChat(ctx context.Context, sessionID, chatID string) error
	FetchHistory(ctx context.Context, sessionID, chatID string) (any, error)
}

// Store holds the chat collection, most recently active first, and at most
// one selected chat id, which always references a resident chat.
type Store struct {
	gw  Gateway
	log zerolog.Logger

	mu         sync.Mutex
	sessionID  string
	chats      []domain.Chat
	selectedID string
}

// New creates a store seeded with the chats resolved at session init. The
// most recently active chat starts selected.
func New(gw Gateway, logger zerolog.Logger, sessionID string, chats []domain.Chat) *Store {
	s := &Store{
		gw:        gw,
		log:       logger,
		sessionID: sessionID,
		chats:     append([]domain.Chat(nil), chats...),
	}
	if len(s.chats) > 0 {
		s.selectedID = s.chats[0].ID
	}
	return s
}

// CreateNewChat optimistically inserts a chat at the head of the collection
// and selects it before the server call resolves. A failed call is not
// rolled back; the result reports Applied without Persisted.
func (s *Store) CreateNewChat(ctx context.Context, title string) (string, domain.ApplyResult) {
	if title == "" {
		title = domain.DefaultChatTitle
	}

	now := time.Now()
	local := domain.Chat{
		ID:        uuid.NewString(),
		SessionID: s.sessionID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.chats = append([]domain.Chat{local}, s.chats...)
	s.selectedID = local.ID
	s.mu.Unlock()

	payload, err := s.gw.CreateChat(ctx, s.sessionID, title)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to persist new chat, keeping optimistic copy")
		return local.ID, domain.ApplyResult{Applied: true}
	}

	chat := normalize.Chat(payload, s.sessionID)
	if chat == nil || !normalize.IsValidChatID(chat.ID) {
		s.log.Warn().Msg("create chat response had no usable id, keeping optimistic copy")
		return local.ID, domain.ApplyResult{Applied: true}
	}

	// Swap the optimistic id for the server-issued one.
	s.mu.Lock()
	for i := range s.chats {
		if s.chats[i].ID == local.ID {
			s.chats[i].ID = chat.ID
			break
		}
	}
	if s.selectedID == local.ID {
		s.selectedID = chat.ID
	}
	s.mu.Unlock()

	return chat.ID, domain.ApplyResult{Applied: true, Persisted: true}
}

// Select makes chatID current. Invalid ids and ids not present in the
// collection are rejected. Messages are already resident; no fetch happens.
func (s *Store) Select(chatID string) error {
	if !normalize.IsValidChatID(chatID) {
		s.log.Warn().Str("chat_id", chatID).Msg("refusing to select invalid chat id")
		return domain.ErrInvalidChatID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexLocked(chatID) < 0 {
		s.log.Warn().Str("chat_id", chatID).Msg("refusing to select unknown chat")
		return domain.ErrInvalidChatID
	}
	s.selectedID = chatID
	return nil
}

// Delete removes a chat. When the deleted chat was selected, selection moves
// to the next most-recent chat; when none remain a replacement is created so
// the collection is never left empty.
func (s *Store) Delete(ctx context.Context, chatID string) (domain.ApplyResult, error) {
	if !normalize.IsValidChatID(chatID) {
		return domain.ApplyResult{}, domain.ErrInvalidChatID
	}

	s.mu.Lock()
	idx := s.indexLocked(chatID)
	if idx < 0 {
		s.mu.Unlock()
		return domain.ApplyResult{}, domain.ErrInvalidChatID
	}
	s.chats = append(s.chats[:idx], s.chats[idx+1:]...)
	wasSelected := s.selectedID == chatID
	if wasSelected {
		s.selectedID = ""
		if len(s.chats) > 0 {
			s.selectedID = s.chats[0].ID
		}
	}
	needReplacement := len(s.chats) == 0
	s.mu.Unlock()

	if needReplacement {
		s.CreateNewChat(ctx, "")
	}

	if err := s.gw.DeleteChat(ctx, s.sessionID, chatID); err != nil {
		s.log.Error().Err(err).Str("chat_id", chatID).Msg("failed to delete chat on server")
		return domain.ApplyResult{Applied: true}, nil
	}
	return domain.ApplyResult{Applied: true, Persisted: true}, nil
}

// UpdateTitle renames a chat locally, then persists fire-and-forget. A
// failed persist is logged and the local rename kept (last writer wins from
// the client's perspective).
func (s *Store) UpdateTitle(ctx context.Context, chatID, title string) domain.ApplyResult {
	if !normalize.IsValidChatID(chatID) || title == "" {
		return domain.ApplyResult{}
	}

	s.mu.Lock()
	idx := s.indexLocked(chatID)
	if idx < 0 {
		s.mu.Unlock()
		return domain.ApplyResult{}
	}
	s.chats[idx].Title = title
	s.mu.Unlock()

	if err := s.gw.RenameChat(ctx, s.sessionID, chatID, title); err != nil {
		s.log.Error().Err(err).Str("chat_id", chatID).Msg("failed to persist chat title")
		return domain.ApplyResult{Applied: true}
	}
	return domain.ApplyResult{Applied: true, Persisted: true}
}

// Refresh re-fetches the session and reconciles: a still-existing selection
// is kept with its message list replaced, otherwise the first available chat
// is selected (or selection cleared when none exist).
func (s *Store) Refresh(ctx context.Context) error {
	payload, err := s.gw.FetchSession(ctx, s.sessionID)
	if err != nil {
		return err
	}
	fresh := normalize.SessionChats(payload, s.sessionID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats = fresh
	if s.indexLocked(s.selectedID) >= 0 {
		return nil
	}
	s.selectedID = ""
	if len(s.chats) > 0 {
		s.selectedID = s.chats[0].ID
	}
	return nil
}

// History re-pulls one chat's messages from the history endpoint and
// replaces its resident list.
func (s *Store) History(ctx context.Context, chatID string) error {
	if !normalize.IsValidChatID(chatID) {
		return domain.ErrInvalidChatID
	}
	resp, err := s.gw.FetchHistory(ctx, s.sessionID, chatID)
	if err != nil {
		return err
	}
	messages := normalize.MessagesFromHistory(resp)

	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indexLocked(chatID); idx >= 0 {
		s.chats[idx].Messages = messages
	}
	return nil
}

// AppendMessage appends to a chat's message list without re-sorting (the
// append-only fast path for newly sent messages).
func (s *Store) AppendMessage(chatID string, msg domain.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(chatID)
	if idx < 0 {
		return false
	}
	s.chats[idx].Messages = append(s.chats[idx].Messages, msg)
	return true
}

// RemoveLoading strips every loading placeholder from a chat. Called in both
// the success and failure paths of a send so a placeholder is never left
// dangling.
func (s *Store) RemoveLoading(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(chatID)
	if idx < 0 {
		return
	}
	// Filter into a fresh slice; snapshots handed out earlier alias the old
	// backing array and must not be rewritten under the caller.
	kept := make([]domain.Message, 0, len(s.chats[idx].Messages))
	for _, msg := range s.chats[idx].Messages {
		if !msg.Loading {
			kept = append(kept, msg)
		}
	}
	s.chats[idx].Messages = kept
}

// Touch records the latest exchange on a chat: last message, activity
// timestamp, and a move to the head of the collection.
func (s *Store) Touch(chatID, lastMessage string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(chatID)
	if idx < 0 {
		return
	}
	chat := s.chats[idx]
	chat.LastMessage = lastMessage
	chat.UpdatedAt = time.Now()
	s.chats = append(s.chats[:idx], s.chats[idx+1:]...)
	s.chats = append([]domain.Chat{chat}, s.chats...)
}

// MessageCount returns the resident message count of a chat.
func (s *Store) MessageCount(chatID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indexLocked(chatID); idx >= 0 {
		return len(s.chats[idx].Messages)
	}
	return 0
}

// Messages returns a copy of a chat's message list.
func (s *Store) Messages(chatID string) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(chatID)
	if idx < 0 {
		return nil
	}
	out := make([]domain.Message, len(s.chats[idx].Messages))
	copy(out, s.chats[idx].Messages)
	return out
}

// Chats returns a snapshot of the collection, most recently active first.
// Message lists are copied too, so later store mutations never show through.
func (s *Store) Chats() []domain.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Chat, len(s.chats))
	for i := range s.chats {
		out[i] = cloneChat(s.chats[i])
	}
	return out
}

// SelectedID returns the current selection, or "" when nothing is selected.
func (s *Store) SelectedID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedID
}

// Selected returns a copy of the selected chat.
func (s *Store) Selected() (domain.Chat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indexLocked(s.selectedID); idx >= 0 {
		return cloneChat(s.chats[idx]), true
	}
	return domain.Chat{}, false
}

func cloneChat(chat domain.Chat) domain.Chat {
	msgs := make([]domain.Message, len(chat.Messages))
	copy(msgs, chat.Messages)
	chat.Messages = msgs
	return chat
}

func (s *Store) indexLocked(chatID string) int {
	if chatID == "" {
		return -1
	}
	for i := range s.chats {
		if s.chats[i].ID == chatID {
			return i
		}
	}
	return -1
}
