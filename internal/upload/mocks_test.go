package upload

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/telamed/guestchat/internal/domain"
	"github.com/telamed/guestchat/internal/gateway"
)

// MockGateway mocks the upload Gateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) UploadBatch(ctx context.Context, chatID string, files []gateway.FileUpload, category domain.FileCategory) (string, error) {
	args := m.Called(ctx, chatID, files, category)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) BatchStatus(ctx context.Context, batchID string) (*domain.BatchUploadJob, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BatchUploadJob), args.Error(1)
}

func (m *MockGateway) BatchFiles(ctx context.Context, batchID string) ([]map[string]any, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]map[string]any), args.Error(1)
}
