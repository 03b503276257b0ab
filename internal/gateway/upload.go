package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/telamed/guestchat/internal/domain"
	"github.com/telamed/guestchat/internal/normalize"
)

// FileUpload is one file in a multipart batch submission.
type FileUpload struct {
	Name    string
	Content io.Reader
}

// UploadBatch submits all files as a single multipart request tagged with a
// category and returns the server-issued batch id.
func (c *Client) UploadBatch(ctx context.Context, chatID string, files []FileUpload, category domain.FileCategory) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for _, file := range files {
		part, err := writer.CreateFormFile("files", file.Name)
		if err != nil {
			return "", fmt.Errorf("failed to build multipart form: %w", err)
		}
		if _, err := io.Copy(part, file.Content); err != nil {
			return "", fmt.Errorf("failed to read %s: %w", file.Name, err)
		}
	}
	if err := writer.WriteField("category", string(category)); err != nil {
		return "", fmt.Errorf("failed to write category field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize multipart form: %w", err)
	}

	path := "/v2/messages/chat/" + chatID + "/files/batch"
	raw, err := c.roundTrip(ctx, http.MethodPost, path, nil, &buf, writer.FormDataContentType())
	if err != nil {
		return "", err
	}

	payload, err := decodeObject(raw)
	if err != nil {
		return "", err
	}
	batchID := normalize.BatchID(payload)
	if batchID == "" {
		if data, ok := payload["data"].(map[string]any); ok {
			batchID = normalize.BatchID(data)
		}
	}
	if batchID == "" {
		return "", fmt.Errorf("batch upload response missing batch id")
	}
	return batchID, nil
}

// BatchStatus queries the processing state of a batch job.
func (c *Client) BatchStatus(ctx context.Context, batchID string) (*domain.BatchUploadJob, error) {
	payload := map[string]any{}
	path := "/v2/messages/files/batch/" + batchID + "/status"
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &payload); err != nil {
		return nil, err
	}
	if data, ok := payload["data"].(map[string]any); ok {
		payload = data
	}
	job := normalize.BatchJob(payload, batchID)
	return &job, nil
}

// BatchFiles retrieves the raw uploaded-file metadata list of a terminal
// batch. Files from a partial batch are still retrievable.
func (c *Client) BatchFiles(ctx context.Context, batchID string) ([]map[string]any, error) {
	var payload any
	path := "/v2/messages/files/batch/" + batchID + "/files"
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &payload); err != nil {
		return nil, err
	}

	if envelope, ok := payload.(map[string]any); ok {
		if data, found := envelope["data"]; found {
			payload = data
		} else if data, found := envelope["files"]; found {
			payload = data
		}
	}

	items, ok := payload.([]any)
	if !ok {
		return nil, nil
	}
	files := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			files = append(files, obj)
		}
	}
	return files, nil
}

func decodeObject(raw []byte) (map[string]any, error) {
	payload := map[string]any{}
	if len(raw) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return payload, nil
}
