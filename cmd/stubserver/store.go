package main

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/telamed/guestchat/internal/domain"
)

// memStore is the in-memory state behind the stub API. It exists so the CLI
// and SDK can be exercised without the real backend; nothing is persisted.
type memStore struct {
	mu       sync.Mutex
	sessions map[string]*stubSession
	batches  map[string]*stubBatch
}

type stubSession struct {
	ID    string
	Chats []*stubChat
}

type stubChat struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Messages  []*stubMessage `json:"messages"`
}

type stubMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type stubBatch struct {
	ID       string
	Category domain.FileCategory
	Files    []stubFile
	Polls    int
}

type stubFile struct {
	FileID   string `json:"fileId"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
	FileType string `json:"fileType"`
	FileSize int64  `json:"fileSize"`
}

func newMemStore() *memStore {
	return &memStore{
		sessions: make(map[string]*stubSession),
		batches:  make(map[string]*stubBatch),
	}
}

func (s *memStore) createSession() *stubSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := &stubSession{ID: uuid.NewString()}
	s.sessions[sess.ID] = sess
	return sess
}

func (s *memStore) session(id string) (*stubSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *memStore) createChat(sessionID, title string) (*stubChat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, false
	}
	now := time.Now()
	chat := &stubChat{ID: uuid.NewString(), Title: title, CreatedAt: now, UpdatedAt: now}
	sess.Chats = append(sess.Chats, chat)
	return chat, true
}

func (s *memStore) chat(sessionID, chatID string) (*stubChat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, false
	}
	for _, chat := range sess.Chats {
		if chat.ID == chatID {
			return chat, true
		}
	}
	return nil, false
}

func (s *memStore) findChat(chatID string) (*stubChat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		for _, chat := range sess.Chats {
			if chat.ID == chatID {
				return chat, true
			}
		}
	}
	return nil, false
}

func (s *memStore) renameChat(sessionID, chatID, title string) bool {
	chat, ok := s.chat(sessionID, chatID)
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	chat.Title = title
	chat.UpdatedAt = time.Now()
	return true
}

func (s *memStore) deleteChat(sessionID, chatID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return false
	}
	for i, chat := range sess.Chats {
		if chat.ID == chatID {
			sess.Chats = append(sess.Chats[:i], sess.Chats[i+1:]...)
			return true
		}
	}
	return false
}

func (s *memStore) appendMessage(chat *stubChat, role, content string) *stubMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := &stubMessage{ID: uuid.NewString(), Role: role, Content: content, Timestamp: time.Now()}
	chat.Messages = append(chat.Messages, msg)
	chat.UpdatedAt = msg.Timestamp
	return msg
}

func (s *memStore) createBatch(category domain.FileCategory, names []string, sizes []int64) *stubBatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := &stubBatch{ID: uuid.NewString(), Category: category}
	for i, name := range names {
		batch.Files = append(batch.Files, stubFile{
			FileID:   uuid.NewString(),
			Filename: name,
			URL:      "http://localhost/files/" + uuid.NewString(),
			FileType: "application/octet-stream",
			FileSize: sizes[i],
		})
	}
	s.batches[batch.ID] = batch
	return batch
}

// pollBatch advances a simulated processing job: each poll gains progress
// until the batch completes on the third one.
func (s *memStore) pollBatch(batchID string) (domain.BatchUploadJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, ok := s.batches[batchID]
	if !ok {
		return domain.BatchUploadJob{}, false
	}
	batch.Polls++
	job := domain.BatchUploadJob{BatchID: batchID, Status: domain.BatchProcessing}
	switch {
	case batch.Polls >= 3:
		job.Status = domain.BatchCompleted
		job.Progress = 100
	default:
		job.Progress = batch.Polls * 40
	}
	return job, true
}

func (s *memStore) batchFiles(batchID string) ([]stubFile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, ok := s.batches[batchID]
	if !ok {
		return nil, false
	}
	return batch.Files, true
}
