// Package normalize converts loosely-typed server payloads into the
// canonical in-memory shapes. Every function is pure; unparseable records
// degrade to "drop the record" rather than aborting the caller's fetch.
package normalize

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/telamed/guestchat/internal/domain"
)

var (
	chatIDKeys      = []string{"id", "chatId", "_id", "chat_id"}
	chatTitleKeys   = []string{"title", "chatTitle", "name"}
	lastMessageKeys = []string{"lastMessage", "last_message", "preview"}
	updatedAtKeys   = []string{"updatedAt", "updated_at", "timestamp", "lastActivity"}
	createdAtKeys   = []string{"createdAt", "created_at"}
	messageListKeys = []string{"messages", "history", "chatMessages"}

	contentKeys   = []string{"content", "message", "text"}
	msgTimeKeys   = []string{"timestamp", "createdAt", "created_at", "time"}
	fileIDKeys    = []string{"fileId", "file_id", "id"}
	filenameKeys  = []string{"filename", "fileName", "name", "originalName"}
	fileURLKeys   = []string{"url", "fileUrl", "file_url"}
	fileTypeKeys  = []string{"fileType", "type", "mimeType", "mime_type"}
	fileSizeKeys  = []string{"fileSize", "size"}
	replyKeys     = []string{"response", "message", "content"}
	batchIDKeys   = []string{"batchId", "batch_id", "id"}
	progressKeys  = []string{"progressPercentage", "progress_percentage", "progress"}
	sessionIDKeys = []string{"sessionId", "session_id"}
)

// ChatID coerces a raw id value to its string form. Servers send chat ids
// as strings or numbers; anything else yields "".
func ChatID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case int:
		return strconv.Itoa(id)
	case int64:
		return strconv.FormatInt(id, 10)
	case json.Number:
		return id.String()
	default:
		return ""
	}
}

// IsValidChatID reports whether an id can address a chat. Empty ids and the
// literals "undefined"/"null" (serialized junk from loosely-typed clients)
// are invalid; every other non-empty value, including "0", is valid.
func IsValidChatID(id string) bool {
	return id != "" && id != "undefined" && id != "null"
}

// Chat converts a raw server chat object into a canonical Chat. Returns nil
// when no id field is present under any known name, which tells the caller
// to drop the record.
func Chat(raw map[string]any, sessionID string) *domain.Chat {
	if raw == nil {
		return nil
	}

	var id string
	for _, key := range chatIDKeys {
		if v, ok := raw[key]; ok {
			if id = ChatID(v); id != "" {
				break
			}
		}
	}
	if !IsValidChatID(id) {
		return nil
	}

	createdAt := timeField(raw, createdAtKeys)
	updatedAt := timeField(raw, updatedAtKeys)
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	chat := &domain.Chat{
		ID:          id,
		SessionID:   sessionID,
		Title:       stringField(raw, chatTitleKeys, domain.DefaultChatTitle),
		LastMessage: stringField(raw, lastMessageKeys, ""),
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}

	for _, key := range messageListKeys {
		if v, ok := raw[key]; ok {
			chat.Messages = MessagesFromHistory(v)
			break
		}
	}
	return chat
}

// Message converts a raw server message into a canonical Message. Payloads
// sometimes embed a self-referential "chat" sub-object; only the known
// scalar fields are extracted and any nested object graph is discarded.
func Message(raw map[string]any) domain.Message {
	msg := domain.Message{
		ID:        ChatID(rawValue(raw, "id", "messageId", "message_id")),
		Content:   stringField(raw, contentKeys, ""),
		Role:      messageRole(raw),
		Timestamp: timeField(raw, msgTimeKeys),
	}
	return msg
}

func messageRole(raw map[string]any) domain.MessageRole {
	if role, ok := raw["role"].(string); ok {
		switch domain.MessageRole(role) {
		case domain.RoleUser, domain.RoleAssistant:
			return domain.MessageRole(role)
		}
	}
	for _, key := range []string{"isUser", "is_user"} {
		if isUser, ok := raw[key].(bool); ok {
			if isUser {
				return domain.RoleUser
			}
			return domain.RoleAssistant
		}
	}
	return domain.RoleAssistant
}

// MessagesFromHistory flattens a history response into a deduplicated,
// timestamp-ordered message list. It accepts a bare array, a {data: [...]}
// envelope, or its own output, and is idempotent: re-running it on its own
// output yields the same sequence.
func MessagesFromHistory(resp any) []domain.Message {
	items := historyItems(resp)

	seen := make(map[string]bool, len(items))
	out := make([]domain.Message, 0, len(items))
	for _, msg := range items {
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		if msg.ID != "" {
			if seen[msg.ID] {
				continue // first occurrence wins
			}
			seen[msg.ID] = true
		}
		out = append(out, msg)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

func historyItems(resp any) []domain.Message {
	switch v := resp.(type) {
	case nil:
		return nil
	case []domain.Message:
		return v
	case []any:
		out := make([]domain.Message, 0, len(v))
		for _, item := range v {
			switch entry := item.(type) {
			case map[string]any:
				out = append(out, Message(entry))
			case domain.Message:
				out = append(out, entry)
			}
		}
		return out
	case []map[string]any:
		out := make([]domain.Message, 0, len(v))
		for _, item := range v {
			out = append(out, Message(item))
		}
		return out
	case map[string]any:
		if data, ok := v["data"]; ok {
			return historyItems(data)
		}
		return nil
	default:
		return nil
	}
}

// SessionChats extracts and normalizes the chat list from a session payload,
// dropping chats without a usable id and ordering most-recently-active
// first. One malformed chat never prevents the rest from loading.
func SessionChats(payload map[string]any, sessionID string) []domain.Chat {
	raw := rawValue(payload, "chats", "data")
	if nested, ok := raw.(map[string]any); ok {
		raw = rawValue(nested, "chats")
	}

	items, ok := raw.([]any)
	if !ok {
		return nil
	}

	chats := make([]domain.Chat, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if chat := Chat(obj, sessionID); chat != nil {
			chats = append(chats, *chat)
		}
	}

	sort.SliceStable(chats, func(i, j int) bool {
		return chats[i].UpdatedAt.After(chats[j].UpdatedAt)
	})
	return chats
}

// ReplyContent resolves the assistant reply text from a send-message
// response. Priority order: response, message, content, then the raw body.
func ReplyContent(resp *domain.SendMessageResponse) string {
	if resp == nil {
		return ""
	}
	for _, key := range replyKeys {
		switch v := resp.Payload[key].(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				return v
			}
		case map[string]any:
			if content := stringField(v, contentKeys, ""); content != "" {
				return content
			}
		}
	}
	return resp.Raw
}

// UploadedFile normalizes the metadata of one file from the batch files
// response.
func UploadedFile(raw map[string]any, category domain.FileCategory) domain.UploadedFile {
	return domain.UploadedFile{
		FileID:   ChatID(rawValue(raw, fileIDKeys...)),
		Filename: stringField(raw, filenameKeys, ""),
		URL:      stringField(raw, fileURLKeys, ""),
		FileType: stringField(raw, fileTypeKeys, ""),
		FileSize: intField(raw, fileSizeKeys),
		Category: category,
	}
}

// BatchID extracts the batch job id from an upload response.
func BatchID(raw map[string]any) string {
	return ChatID(rawValue(raw, batchIDKeys...))
}

// BatchJob normalizes a batch status payload.
func BatchJob(raw map[string]any, batchID string) domain.BatchUploadJob {
	return domain.BatchUploadJob{
		BatchID:  batchID,
		Status:   domain.BatchStatus(stringField(raw, []string{"status"}, string(domain.BatchProcessing))),
		Progress: int(intField(raw, progressKeys)),
	}
}

// SessionID extracts the session id from a session-start payload.
func SessionID(raw map[string]any) string {
	if id := stringField(raw, sessionIDKeys, ""); id != "" {
		return id
	}
	if data, ok := raw["data"].(map[string]any); ok {
		return stringField(data, sessionIDKeys, "")
	}
	return ""
}

func rawValue(raw map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := raw[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

func stringField(raw map[string]any, keys []string, fallback string) string {
	for _, key := range keys {
		if v, ok := raw[key].(string); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return fallback
}

func intField(raw map[string]any, keys []string) int64 {
	switch v := rawValue(raw, keys...).(type) {
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	case json.Number:
		n, _ := v.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}

// timeField resolves a timestamp through a fallback chain of key names,
// accepting RFC3339 strings, unix seconds and unix milliseconds.
func timeField(raw map[string]any, keys []string) time.Time {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		if ts := parseTime(v); !ts.IsZero() {
			return ts
		}
	}
	return time.Time{}
}

func parseTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts
			}
		}
		if n, err := strconv.ParseFloat(t, 64); err == nil {
			return unixTime(n)
		}
	case float64:
		return unixTime(t)
	case json.Number:
		if n, err := t.Float64(); err == nil {
			return unixTime(n)
		}
	}
	return time.Time{}
}

func unixTime(n float64) time.Time {
	if n <= 0 {
		return time.Time{}
	}
	if n > 1e12 { // millisecond epoch
		return time.UnixMilli(int64(n))
	}
	return time.Unix(int64(n), 0)
}
