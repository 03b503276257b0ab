package exchange

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/telamed/guestchat/internal/domain"
	"github.com/telamed/guestchat/internal/gateway"
)

// MockGateway mocks the exchange Gateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) SendMessage(ctx context.Context, req domain.SendMessageRequest) (*domain.SendMessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SendMessageResponse), args.Error(1)
}

// stubChatGateway satisfies chatstore.Gateway; the exchange tests only care
// about the local chat state, so every server call trivially succeeds.
type stubChatGateway struct{}

func (stubChatGateway) FetchSession(context.Context, string) (map[string]any, error) {
	return map[string]any{}, nil
}

func (stubChatGateway) CreateChat(_ context.Context, _ string, title string) (map[string]any, error) {
	return map[string]any{"id": "server-chat", "title": title}, nil
}

func (stubChatGateway) RenameChat(context.Context, string, string, string) error { return nil }

func (stubChatGateway) DeleteChat(context.Context, string, string) error { return nil }

func (stubChatGateway) FetchHistory(context.Context, string, string) (any, error) {
	return []any{}, nil
}

// stubUploadGateway satisfies upload.Gateway with an immediately completed
// batch, used to stage pending attachments on a tracker.
type stubUploadGateway struct {
	files []map[string]any
}

func (stubUploadGateway) UploadBatch(context.Context, string, []gateway.FileUpload, domain.FileCategory) (string, error) {
	return "batch-1", nil
}

func (stubUploadGateway) BatchStatus(context.Context, string) (*domain.BatchUploadJob, error) {
	return &domain.BatchUploadJob{BatchID: "batch-1", Status: domain.BatchCompleted, Progress: 100}, nil
}

func (g stubUploadGateway) BatchFiles(context.Context, string) ([]map[string]any, error) {
	return g.files, nil
}
