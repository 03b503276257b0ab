// Package upload orchestrates multi-file batch uploads: per-file validation,
// single multipart submission, and bounded status polling until a terminal
// state. Completed and partial batches both yield the processed file
// metadata; failure and timeout are distinct terminal errors.
package upload

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/telamed/guestchat/internal/domain"
	"github.com/telamed/guestchat/internal/gateway"
	"github.com/telamed/guestchat/internal/normalize"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPollInterval = time.Second
	defaultMaxAttempts  = 30
)

// Gateway is the slice of the API client the tracker needs.
type Gateway interface {
	UploadBatch(ctx context.Context, chatID string, files []gateway.FileUpload, category domain.FileCategory) (string, error)
	BatchStatus(ctx context.Context, batchID string) (*domain.BatchUploadJob, error)
	BatchFiles(ctx context.Context, batchID string) ([]map[string]any, error)
}

// FileFailure is a server-reported per-file failure inside a partial batch.
// The files response does not always carry these; absence means unknown, not
// success.
type FileFailure struct {
	Filename string
	Reason   string
}

// BatchResult is the terminal outcome of one batch.
type BatchResult struct {
	BatchID  string
	Status   domain.BatchStatus
	Files    []domain.UploadedFile
	Failed   []FileFailure
	Rejected []ValidationError
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithPollInterval overrides the fixed wait between status polls.
func WithPollInterval(d time.Duration) Option {
	return func(t *Tracker) { t.interval = d }
}

// WithMaxAttempts overrides the poll attempt cap.
func WithMaxAttempts(n int) Option {
	return func(t *Tracker) { t.maxAttempts = n }
}

// WithProgress registers a callback fired with the monotonically
// non-decreasing progress percentage of each batch.
func WithProgress(fn func(batchID string, percent int)) Option {
	return func(t *Tracker) { t.progressFn = fn }
}

// Tracker submits and tracks batch upload jobs, and holds the resulting
// files as pending attachments until a message send consumes them.
type Tracker struct {
	gw          Gateway
	log         zerolog.Logger
	interval    time.Duration
	maxAttempts int
	progressFn  func(batchID string, percent int)

	mu      sync.Mutex
	pending map[string][]domain.UploadedFile
}

// New creates a tracker polling at a fixed one-second interval by default.
func New(gw Gateway, logger zerolog.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		gw:          gw,
		log:         logger,
		interval:    defaultPollInterval,
		maxAttempts: defaultMaxAttempts,
		pending:     make(map[string][]domain.UploadedFile),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SubmitBatch validates, uploads, and tracks one batch to completion.
// Per-file validation failures are reported in the result without blocking
// the valid files. The returned error is terminal for this batch only.
func (t *Tracker) SubmitBatch(ctx context.Context, chatID string, files []FileInput, category domain.FileCategory) (*BatchResult, error) {
	valid, rejected := Validate(files, category)
	result := &BatchResult{Rejected: rejected}
	if len(valid) == 0 {
		return result, domain.ErrNoValidFiles
	}

	uploads := make([]gateway.FileUpload, 0, len(valid))
	for _, file := range valid {
		uploads = append(uploads, gateway.FileUpload{Name: file.Name, Content: file.Content})
	}

	batchID, err := t.gw.UploadBatch(ctx, chatID, uploads, category)
	if err != nil {
		return result, err
	}
	result.BatchID = batchID
	t.log.Info().Str("batch_id", batchID).Int("files", len(valid)).Str("category", string(category)).Msg("batch submitted")

	if err := t.track(ctx, chatID, category, result); err != nil {
		return result, err
	}
	return result, nil
}

// track polls the batch status as an explicit bounded loop: poll, wait the
// fixed interval, poll again, up to the attempt cap.
func (t *Tracker) track(ctx context.Context, chatID string, category domain.FileCategory, result *BatchResult) error {
	progress := 0
	for attempt := 0; attempt < t.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(t.interval):
			}
		}

		job, err := t.gw.BatchStatus(ctx, result.BatchID)
		if err != nil {
			t.log.Warn().Err(err).Str("batch_id", result.BatchID).Msg("batch status poll failed")
			continue
		}

		// Progress never goes backwards, whatever the server reports.
		if job.Progress > progress {
			progress = job.Progress
		}
		if t.progressFn != nil {
			t.progressFn(result.BatchID, progress)
		}
		result.Status = job.Status

		if job.Status.Terminal() {
			if job.Status == domain.BatchFailed {
				return domain.ErrBatchFailed
			}
			return t.collectFiles(ctx, chatID, category, result)
		}
	}
	return domain.ErrBatchTimeout
}

// collectFiles fetches and normalizes the processed file metadata, recording
// any per-file failures the response happens to carry.
func (t *Tracker) collectFiles(ctx context.Context, chatID string, category domain.FileCategory, result *BatchResult) error {
	raw, err := t.gw.BatchFiles(ctx, result.BatchID)
	if err != nil {
		return err
	}

	for _, item := range raw {
		if reason := fileFailure(item); reason != "" {
			result.Failed = append(result.Failed, FileFailure{
				Filename: normalize.UploadedFile(item, category).Filename,
				Reason:   reason,
			})
			continue
		}
		result.Files = append(result.Files, normalize.UploadedFile(item, category))
	}

	t.mu.Lock()
	t.pending[chatID] = append(t.pending[chatID], result.Files...)
	t.mu.Unlock()
	return nil
}

func fileFailure(raw map[string]any) string {
	if status, ok := raw["status"].(string); ok && status == "failed" {
		if reason, ok := raw["error"].(string); ok && reason != "" {
			return reason
		}
		return "processing failed"
	}
	if reason, ok := raw["error"].(string); ok && reason != "" {
		return reason
	}
	return ""
}

// SubmitBatches runs one batch per category concurrently. Batches are
// independent: a failing batch does not cancel the others, and the first
// error is returned after all have settled.
func (t *Tracker) SubmitBatches(ctx context.Context, chatID string, batches map[domain.FileCategory][]FileInput) (map[domain.FileCategory]*BatchResult, error) {
	results := make(map[domain.FileCategory]*BatchResult, len(batches))
	var mu sync.Mutex
	var g errgroup.Group

	for category, files := range batches {
		category, files := category, files
		g.Go(func() error {
			result, err := t.SubmitBatch(ctx, chatID, files, category)
			mu.Lock()
			results[category] = result
			mu.Unlock()
			return err
		})
	}
	return results, g.Wait()
}

// Pending returns a copy of the not-yet-attached files for a chat.
func (t *Tracker) Pending(chatID string) []domain.UploadedFile {
	t.mu.Lock()
	defer t.mu.Unlock()
	files := t.pending[chatID]
	out := make([]domain.UploadedFile, len(files))
	copy(out, files)
	return out
}

// ClearPending drops the pending files of a chat after a send consumed them.
func (t *Tracker) ClearPending(chatID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, chatID)
}
