package chatstore

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockGateway mocks the chatstore Gateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) FetchSession(ctx context.Context, sessionID string) (map[string]any, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]any), args.Error(1)
}

func (m *MockGateway) CreateChat(ctx context.Context, sessionID, title string) (map[string]any, error) {
	args := m.Called(ctx, sessionID, title)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]any), args.Error(1)
}

func (m *MockGateway) RenameChat(ctx context.Context, sessionID, chatID, title string) error {
	args := m.Called(ctx, sessionID, chatID, title)
	return args.Error(0)
}

func (m *MockGateway) DeleteChat(ctx context.Context, sessionID, chatID string) error {
	args := m.Called(ctx, sessionID, chatID)
	return args.Error(0)
}

func (m *MockGateway) FetchHistory(ctx context.Context, sessionID, chatID string) (any, error) {
	args := m.Called(ctx, sessionID, chatID)
	return args.Get(0), args.Error(1)
}
