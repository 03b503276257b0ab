// Package gateway is the REST client for the guest chat API. It owns auth
// header injection and the mapping of HTTP status codes onto the domain
// error sentinels; everything above it works with normalized payloads.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/telamed/guestchat/internal/domain"
	"github.com/telamed/guestchat/internal/normalize"
)

const sessionHeader = "X-Guest-Session-Id"

// TokenSource supplies the bearer token injected into every request. An
// empty token means no Authorization header. Invalidate is called when the
// server answers 401/403 so a stale token is not replayed.
type TokenSource interface {
	Token(ctx context.Context) string
	Invalidate(ctx context.Context)
}

// APIError carries the HTTP status and body of a non-2xx response.
type APIError struct {
	Status int
	Path   string
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %s returned status %d", e.Path, e.Status)
}

// Unwrap maps well-known statuses onto domain sentinels so callers can use
// errors.Is without inspecting status codes.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrUnauthorized
	}
	return nil
}

// Client is a thin HTTP wrapper over the guest chat REST API.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	log     zerolog.Logger
}

// NewClient creates a gateway client. tokens may be nil for fully anonymous
// usage.
func NewClient(baseURL string, timeout time.Duration, tokens TokenSource, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
		log:     logger,
	}
}

// StartSession requests a new guest session id.
func (c *Client) StartSession(ctx context.Context) (string, error) {
	payload := map[string]any{}
	if err := c.do(ctx, http.MethodPost, "/guest/start", nil, nil, &payload); err != nil {
		return "", err
	}
	id := normalize.SessionID(payload)
	if id == "" {
		return "", fmt.Errorf("session start response missing session id")
	}
	return id, nil
}

// FetchSession retrieves a session with its chats and messages. The payload
// stays loosely typed; the normalizer gives it shape.
func (c *Client) FetchSession(ctx context.Context, sessionID string) (map[string]any, error) {
	payload := map[string]any{}
	if err := c.do(ctx, http.MethodGet, "/guest/session/"+sessionID, nil, nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// CreateChat creates a chat in the session and returns the raw chat object.
func (c *Client) CreateChat(ctx context.Context, sessionID, title string) (map[string]any, error) {
	payload := map[string]any{}
	body := map[string]string{"title": title}
	if err := c.do(ctx, http.MethodPost, "/guest/chats/"+sessionID, nil, body, &payload); err != nil {
		return nil, err
	}
	if data, ok := payload["data"].(map[string]any); ok {
		return data, nil
	}
	return payload, nil
}

// RenameChat updates a chat title.
func (c *Client) RenameChat(ctx context.Context, sessionID, chatID, title string) error {
	body := map[string]string{"title": title}
	return c.do(ctx, http.MethodPut, "/guest/chats/"+sessionID+"/"+chatID, nil, body, nil)
}

// DeleteChat removes a chat from the session.
func (c *Client) DeleteChat(ctx context.Context, sessionID, chatID string) error {
	return c.do(ctx, http.MethodDelete, "/guest/chats/"+sessionID+"/"+chatID, nil, nil, nil)
}

// FetchHistory retrieves the message history of one chat. The response may
// be a bare array or a {data: [...]} envelope.
func (c *Client) FetchHistory(ctx context.Context, sessionID, chatID string) (any, error) {
	var payload any
	path := "/guest/chat/" + sessionID + "/" + chatID + "/history"
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// SendMessage submits a user message and returns the assistant reply
// payload. The guest session rides in a header, not the body.
func (c *Client) SendMessage(ctx context.Context, req domain.SendMessageRequest) (*domain.SendMessageResponse, error) {
	headers := map[string]string{sessionHeader: req.SessionID}

	raw, err := c.doRaw(ctx, http.MethodPost, "/v2/messages/chat/"+req.ChatID, headers, req)
	if err != nil {
		return nil, err
	}

	resp := &domain.SendMessageResponse{Raw: strings.TrimSpace(string(raw))}
	payload := map[string]any{}
	if err := json.Unmarshal(raw, &payload); err == nil {
		resp.Payload = payload
	}
	return resp, nil
}

// do performs a JSON round trip. out may be nil when the response body is
// irrelevant.
func (c *Client) do(ctx context.Context, method, path string, headers map[string]string, body, out any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	raw, err := c.roundTrip(ctx, method, path, headers, payload, "application/json")
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) doRaw(ctx context.Context, method, path string, headers map[string]string, body any) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.roundTrip(ctx, method, path, headers, bytes.NewReader(data), "application/json")
}

func (c *Client) roundTrip(ctx context.Context, method, path string, headers map[string]string, body io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}
	c.injectAuth(ctx, req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Path: path, Body: string(raw)}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			if c.tokens != nil {
				c.tokens.Invalidate(ctx)
			}
			c.log.Warn().Int("status", resp.StatusCode).Str("path", path).Msg("auth rejected, token invalidated")
		}
		return nil, apiErr
	}
	return raw, nil
}

func (c *Client) injectAuth(ctx context.Context, req *http.Request) {
	if c.tokens == nil {
		return
	}
	if token := c.tokens.Token(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}
