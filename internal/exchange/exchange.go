// Package exchange orchestrates the send-message protocol: optimistic user
// insertion, assistant loading placeholder, reply reconciliation, and the
// inline failure path. A send always settles the chat into a defined state;
// no loading placeholder survives it.
package exchange

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/telamed/guestchat/internal/chatstore"
	"github.com/telamed/guestchat/internal/domain"
	"github.com/telamed/guestchat/internal/normalize"
	"github.com/telamed/guestchat/internal/upload"
)

// DefaultErrorReply is shown inline when the assistant call fails and no
// localized reply is configured.
const DefaultErrorReply = "Sorry, something went wrong while answering. Please try again."

const titleMaxLen = 30

// Gateway is the slice of the API client the exchange needs.
type Gateway interface {
	SendMessage(ctx context.Context, req domain.SendMessageRequest) (*domain.SendMessageResponse, error)
}

// Options carry the request metadata and the localized failure reply.
type Options struct {
	Language   string
	Specialty  string
	ErrorReply string
}

// Exchange sends user messages for the active session.
type Exchange struct {
	gw      Gateway
	chats   *chatstore.Store
	uploads *upload.Tracker
	opts    Options
	log     zerolog.Logger

	mu      sync.Mutex
	sending map[string]bool
}

// New creates a message exchange bound to a chat store and upload tracker.
func New(gw Gateway, chats *chatstore.Store, uploads *upload.Tracker, opts Options, logger zerolog.Logger) *Exchange {
	if opts.ErrorReply == "" {
		opts.ErrorReply = DefaultErrorReply
	}
	return &Exchange{
		gw:      gw,
		chats:   chats,
		uploads: uploads,
		opts:    opts,
		log:     logger,
		sending: make(map[string]bool),
	}
}

// Sending reports whether a send is outstanding for the chat.
func (e *Exchange) Sending(chatID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sending[chatID]
}

// Send runs the full send-message protocol for one chat. Validation failures
// (empty message with no attachments, concurrent send on the same chat) are
// returned before any state mutation; network failures settle into an inline
// assistant error message and a nil return.
func (e *Exchange) Send(ctx context.Context, sessionID, chatID, content string) error {
	trimmed := strings.TrimSpace(content)
	attachments := e.uploads.Pending(chatID)
	if trimmed == "" && len(attachments) == 0 {
		return domain.ErrEmptyMessage
	}

	e.mu.Lock()
	if e.sending[chatID] {
		e.mu.Unlock()
		e.log.Warn().Str("chat_id", chatID).Msg("send rejected, another send is in flight")
		return domain.ErrSendInFlight
	}
	e.sending[chatID] = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.sending, chatID)
		e.mu.Unlock()
	}()

	firstMessage := e.chats.MessageCount(chatID) == 0

	e.chats.AppendMessage(chatID, domain.Message{
		ID:          uuid.NewString(),
		Role:        domain.RoleUser,
		Content:     content,
		Timestamp:   time.Now(),
		Attachments: attachments,
	})
	e.chats.AppendMessage(chatID, domain.Message{
		Role:      domain.RoleAssistant,
		Loading:   true,
		Timestamp: time.Now(),
	})

	fileIDs := make([]string, 0, len(attachments))
	for _, file := range attachments {
		fileIDs = append(fileIDs, file.FileID)
	}

	resp, err := e.gw.SendMessage(ctx, domain.SendMessageRequest{
		ChatID:    chatID,
		SessionID: sessionID,
		Message:   content,
		Language:  e.opts.Language,
		FileIDs:   fileIDs,
		Specialty: e.opts.Specialty,
	})

	// The placeholder goes away in both paths, before any further mutation.
	e.chats.RemoveLoading(chatID)

	var reply string
	if err != nil {
		e.log.Error().Err(err).Str("chat_id", chatID).Msg("send message failed")
		reply = e.opts.ErrorReply
	} else {
		reply = normalize.ReplyContent(resp)
	}

	e.chats.AppendMessage(chatID, domain.Message{
		ID:        uuid.NewString(),
		Role:      domain.RoleAssistant,
		Content:   reply,
		Timestamp: time.Now(),
	})
	e.chats.Touch(chatID, reply)
	e.uploads.ClearPending(chatID)

	// One-time transition: the first message titles the chat.
	if firstMessage && trimmed != "" {
		e.chats.UpdateTitle(ctx, chatID, DeriveTitle(trimmed))
	}
	return nil
}

// DeriveTitle turns the first message into a display title: the leading
// words, truncated with an ellipsis when too long. Truncation counts runes,
// never bytes, so multi-byte scripts are not cut mid-character.
func DeriveTitle(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	runes := []rune(content)
	if len(runes) <= titleMaxLen {
		return content
	}
	cut := runes[:titleMaxLen]
	for i := len(cut) - 1; i > titleMaxLen/2; i-- {
		if cut[i] == ' ' {
			cut = cut[:i]
			break
		}
	}
	return string(cut) + "..."
}
