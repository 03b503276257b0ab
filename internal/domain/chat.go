package domain

import "time"

// MessageRole represents the sender of a message
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// DefaultChatTitle is the placeholder title for a chat that has not yet
// received its first message.
const DefaultChatTitle = "New Chat"

// Chat is a titled conversation thread belonging to exactly one guest
// session. Ids arrive from the server as strings or numbers; they are
// coerced to strings during normalization.
type Chat struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Title       string    `json:"title"`
	LastMessage string    `json:"last_message,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Messages    []Message `json:"messages"`
}

// Message is a single chat message. Loading marks an assistant placeholder
// awaiting a reply; it is always removed before or when the real assistant
// message is inserted.
type Message struct {
	ID          string         `json:"id,omitempty"`
	Role        MessageRole    `json:"role"`
	Content     string         `json:"content"`
	Timestamp   time.Time      `json:"timestamp"`
	Loading     bool           `json:"loading,omitempty"`
	Attachments []UploadedFile `json:"attachments,omitempty"`
}

// SendMessageRequest carries everything the send-message endpoint needs.
type SendMessageRequest struct {
	ChatID    string   `json:"-"`
	SessionID string   `json:"-"`
	Message   string   `json:"message"`
	Language  string   `json:"language"`
	FileIDs   []string `json:"fileIds,omitempty"`
	Specialty string   `json:"specialty,omitempty"`
}

// SendMessageResponse is the loosely-typed reply payload. Payload holds the
// decoded JSON object when the body was one; Raw always holds the body text
// so callers can fall back to it when no known reply field is present.
type SendMessageResponse struct {
	Payload map[string]any
	Raw     string
}
