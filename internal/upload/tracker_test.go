package upload

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/telamed/guestchat/internal/domain"
	"github.com/telamed/guestchat/internal/gateway"
)

func input(name string, size int64) FileInput {
	return FileInput{Name: name, Size: size, Content: strings.NewReader("content")}
}

func fastTracker(gw *MockGateway, opts ...Option) *Tracker {
	opts = append([]Option{WithPollInterval(time.Millisecond), WithMaxAttempts(5)}, opts...)
	return New(gw, zerolog.Nop(), opts...)
}

func completedJob(batchID string, progress int) *domain.BatchUploadJob {
	return &domain.BatchUploadJob{BatchID: batchID, Status: domain.BatchCompleted, Progress: progress}
}

func processingJob(batchID string, progress int) *domain.BatchUploadJob {
	return &domain.BatchUploadJob{BatchID: batchID, Status: domain.BatchProcessing, Progress: progress}
}

func TestValidate(t *testing.T) {
	t.Run("splits valid and rejected", func(t *testing.T) {
		files := []FileInput{
			input("report.pdf", 1<<20),
			input("photo.png", 2<<20),
			input("malware.exe", 1<<20),
			input("huge.pdf", 11<<20),
		}

		valid, rejected := Validate(files, domain.CategoryGeneral)

		assert.Len(t, valid, 2)
		assert.Len(t, rejected, 2)
		assert.Equal(t, "malware.exe", rejected[0].Filename)
		assert.Contains(t, rejected[0].Reason, "not accepted")
		assert.Equal(t, "huge.pdf", rejected[1].Filename)
		assert.Contains(t, rejected[1].Reason, "exceeds")
	})

	t.Run("unknown category rejects everything", func(t *testing.T) {
		valid, rejected := Validate([]FileInput{input("a.pdf", 1)}, "selfies")
		assert.Empty(t, valid)
		assert.Len(t, rejected, 1)
		assert.Contains(t, rejected[0].Reason, "unknown category")
	})

	t.Run("extension check is case-insensitive", func(t *testing.T) {
		valid, rejected := Validate([]FileInput{input("SCAN.PDF", 1)}, domain.CategoryGeneral)
		assert.Len(t, valid, 1)
		assert.Empty(t, rejected)
	})

	t.Run("category caps differ", func(t *testing.T) {
		// 20 MiB is too big for clinical notes but fine for imaging.
		_, rejected := Validate([]FileInput{input("notes.pdf", 20<<20)}, domain.CategoryClinicalNotes)
		assert.Len(t, rejected, 1)

		valid, _ := Validate([]FileInput{input("scan.png", 20<<20)}, domain.CategoryImaging)
		assert.Len(t, valid, 1)
	})
}

func TestTracker_SubmitBatch(t *testing.T) {
	t.Run("rejected files do not block valid ones", func(t *testing.T) {
		gw := new(MockGateway)
		tr := fastTracker(gw)

		gw.On("UploadBatch", mock.Anything, "c1", mock.MatchedBy(func(files []gateway.FileUpload) bool {
			return len(files) == 2
		}), domain.CategoryLabResults).Return("b1", nil)
		gw.On("BatchStatus", mock.Anything, "b1").Return(completedJob("b1", 100), nil)
		gw.On("BatchFiles", mock.Anything, "b1").Return([]map[string]any{
			{"fileId": "f1", "filename": "blood.pdf"},
			{"fileId": "f2", "filename": "urine.csv"},
		}, nil)

		result, err := tr.SubmitBatch(context.Background(), "c1", []FileInput{
			input("blood.pdf", 1<<20),
			input("urine.csv", 1<<20),
			input("notes.docx", 1<<20), // not accepted for lab results
		}, domain.CategoryLabResults)

		assert.NoError(t, err)
		assert.Equal(t, domain.BatchCompleted, result.Status)
		assert.Len(t, result.Files, 2)
		assert.Len(t, result.Rejected, 1)
		assert.Equal(t, "notes.docx", result.Rejected[0].Filename)
	})

	t.Run("nothing valid short-circuits before upload", func(t *testing.T) {
		gw := new(MockGateway)
		tr := fastTracker(gw)

		result, err := tr.SubmitBatch(context.Background(), "c1",
			[]FileInput{input("malware.exe", 1)}, domain.CategoryGeneral)

		assert.ErrorIs(t, err, domain.ErrNoValidFiles)
		assert.Len(t, result.Rejected, 1)
		gw.AssertNotCalled(t, "UploadBatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("upload failure surfaces", func(t *testing.T) {
		gw := new(MockGateway)
		tr := fastTracker(gw)
		gw.On("UploadBatch", mock.Anything, "c1", mock.Anything, domain.CategoryGeneral).
			Return("", errors.New("boom"))

		_, err := tr.SubmitBatch(context.Background(), "c1",
			[]FileInput{input("a.pdf", 1)}, domain.CategoryGeneral)
		assert.Error(t, err)
	})
}

func TestTracker_Polling(t *testing.T) {
	t.Run("progress never goes backwards", func(t *testing.T) {
		gw := new(MockGateway)
		var reported []int
		tr := fastTracker(gw, WithProgress(func(_ string, percent int) {
			reported = append(reported, percent)
		}))

		gw.On("UploadBatch", mock.Anything, "c1", mock.Anything, domain.CategoryGeneral).Return("b1", nil)
		gw.On("BatchStatus", mock.Anything, "b1").Return(processingJob("b1", 50), nil).Once()
		gw.On("BatchStatus", mock.Anything, "b1").Return(processingJob("b1", 30), nil).Once()
		gw.On("BatchStatus", mock.Anything, "b1").Return(completedJob("b1", 100), nil).Once()
		gw.On("BatchFiles", mock.Anything, "b1").Return([]map[string]any{{"fileId": "f1"}}, nil)

		_, err := tr.SubmitBatch(context.Background(), "c1",
			[]FileInput{input("a.pdf", 1)}, domain.CategoryGeneral)

		assert.NoError(t, err)
		assert.Equal(t, []int{50, 50, 100}, reported)
	})

	t.Run("attempt cap yields timeout", func(t *testing.T) {
		gw := new(MockGateway)
		tr := fastTracker(gw, WithMaxAttempts(3))

		gw.On("UploadBatch", mock.Anything, "c1", mock.Anything, domain.CategoryGeneral).Return("b1", nil)
		gw.On("BatchStatus", mock.Anything, "b1").Return(processingJob("b1", 10), nil)

		_, err := tr.SubmitBatch(context.Background(), "c1",
			[]FileInput{input("a.pdf", 1)}, domain.CategoryGeneral)

		assert.ErrorIs(t, err, domain.ErrBatchTimeout)
		gw.AssertNumberOfCalls(t, "BatchStatus", 3)
	})

	t.Run("failed batch is terminal", func(t *testing.T) {
		gw := new(MockGateway)
		tr := fastTracker(gw)

		gw.On("UploadBatch", mock.Anything, "c1", mock.Anything, domain.CategoryGeneral).Return("b1", nil)
		gw.On("BatchStatus", mock.Anything, "b1").
			Return(&domain.BatchUploadJob{BatchID: "b1", Status: domain.BatchFailed}, nil)

		result, err := tr.SubmitBatch(context.Background(), "c1",
			[]FileInput{input("a.pdf", 1)}, domain.CategoryGeneral)

		assert.ErrorIs(t, err, domain.ErrBatchFailed)
		assert.Equal(t, domain.BatchFailed, result.Status)
		gw.AssertNotCalled(t, "BatchFiles", mock.Anything, mock.Anything)
	})

	t.Run("poll error is retried", func(t *testing.T) {
		gw := new(MockGateway)
		tr := fastTracker(gw)

		gw.On("UploadBatch", mock.Anything, "c1", mock.Anything, domain.CategoryGeneral).Return("b1", nil)
		gw.On("BatchStatus", mock.Anything, "b1").Return(nil, errors.New("flaky")).Once()
		gw.On("BatchStatus", mock.Anything, "b1").Return(completedJob("b1", 100), nil).Once()
		gw.On("BatchFiles", mock.Anything, "b1").Return([]map[string]any{{"fileId": "f1"}}, nil)

		_, err := tr.SubmitBatch(context.Background(), "c1",
			[]FileInput{input("a.pdf", 1)}, domain.CategoryGeneral)
		assert.NoError(t, err)
	})

	t.Run("partial batch collects files and failures", func(t *testing.T) {
		gw := new(MockGateway)
		tr := fastTracker(gw)

		gw.On("UploadBatch", mock.Anything, "c1", mock.Anything, domain.CategoryGeneral).Return("b1", nil)
		gw.On("BatchStatus", mock.Anything, "b1").
			Return(&domain.BatchUploadJob{BatchID: "b1", Status: domain.BatchPartial, Progress: 100}, nil)
		gw.On("BatchFiles", mock.Anything, "b1").Return([]map[string]any{
			{"fileId": "f1", "filename": "ok.pdf"},
			{"filename": "broken.pdf", "status": "failed", "error": "unreadable scan"},
		}, nil)

		result, err := tr.SubmitBatch(context.Background(), "c1", []FileInput{
			input("ok.pdf", 1),
			input("broken.pdf", 1),
		}, domain.CategoryGeneral)

		assert.NoError(t, err)
		assert.Equal(t, domain.BatchPartial, result.Status)
		assert.Len(t, result.Files, 1)
		assert.Len(t, result.Failed, 1)
		assert.Equal(t, "broken.pdf", result.Failed[0].Filename)
		assert.Equal(t, "unreadable scan", result.Failed[0].Reason)
	})

	t.Run("cancellation stops the wait", func(t *testing.T) {
		gw := new(MockGateway)
		tr := fastTracker(gw, WithPollInterval(time.Minute))

		ctx, cancel := context.WithCancel(context.Background())
		gw.On("UploadBatch", mock.Anything, "c1", mock.Anything, domain.CategoryGeneral).Return("b1", nil)
		gw.On("BatchStatus", mock.Anything, "b1").
			Return(processingJob("b1", 10), nil).
			Run(func(mock.Arguments) { cancel() })

		_, err := tr.SubmitBatch(ctx, "c1",
			[]FileInput{input("a.pdf", 1)}, domain.CategoryGeneral)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestTracker_Pending(t *testing.T) {
	gw := new(MockGateway)
	tr := fastTracker(gw)

	gw.On("UploadBatch", mock.Anything, "c1", mock.Anything, domain.CategoryGeneral).Return("b1", nil)
	gw.On("BatchStatus", mock.Anything, "b1").Return(completedJob("b1", 100), nil)
	gw.On("BatchFiles", mock.Anything, "b1").Return([]map[string]any{
		{"fileId": "f1", "filename": "a.pdf"},
	}, nil)

	_, err := tr.SubmitBatch(context.Background(), "c1",
		[]FileInput{input("a.pdf", 1)}, domain.CategoryGeneral)
	assert.NoError(t, err)

	pending := tr.Pending("c1")
	assert.Len(t, pending, 1)
	assert.Equal(t, "f1", pending[0].FileID)
	assert.Empty(t, tr.Pending("other-chat"))

	tr.ClearPending("c1")
	assert.Empty(t, tr.Pending("c1"))
}

func TestTracker_SubmitBatches(t *testing.T) {
	gw := new(MockGateway)
	tr := fastTracker(gw)

	gw.On("UploadBatch", mock.Anything, "c1", mock.Anything, domain.CategoryGeneral).Return("bg", nil)
	gw.On("BatchStatus", mock.Anything, "bg").Return(completedJob("bg", 100), nil)
	gw.On("BatchFiles", mock.Anything, "bg").Return([]map[string]any{{"fileId": "f1"}}, nil)

	gw.On("UploadBatch", mock.Anything, "c1", mock.Anything, domain.CategoryImaging).Return("bi", nil)
	gw.On("BatchStatus", mock.Anything, "bi").
		Return(&domain.BatchUploadJob{BatchID: "bi", Status: domain.BatchFailed}, nil)

	results, err := tr.SubmitBatches(context.Background(), "c1", map[domain.FileCategory][]FileInput{
		domain.CategoryGeneral: {input("a.pdf", 1)},
		domain.CategoryImaging: {input("scan.png", 1)},
	})

	// one batch failing does not cancel the other
	assert.ErrorIs(t, err, domain.ErrBatchFailed)
	assert.Len(t, results, 2)
	assert.Len(t, results[domain.CategoryGeneral].Files, 1)
	assert.Equal(t, domain.BatchFailed, results[domain.CategoryImaging].Status)
}
