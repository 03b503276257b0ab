package domain

import "errors"

var (
	// ErrNotFound maps an HTTP 404 from the API. A 404 on session fetch
	// marks the stored session id as stale.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized maps HTTP 401/403 from the API.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrKeyNotFound is returned by a KeyValueStore for an absent key.
	ErrKeyNotFound = errors.New("key not found")

	// ErrNoSession indicates an operation that requires an initialized
	// guest session was called without one.
	ErrNoSession = errors.New("no active guest session")

	// ErrInvalidChatID rejects missing ids and the string literals
	// "undefined" and "null" that loosely-typed clients leak.
	ErrInvalidChatID = errors.New("invalid chat id")

	// ErrEmptyMessage rejects a send with no content and no attachments.
	ErrEmptyMessage = errors.New("message is empty and has no attachments")

	// ErrSendInFlight rejects a second send on a chat while one is
	// outstanding. Sends are not queued.
	ErrSendInFlight = errors.New("a send is already in flight for this chat")

	// ErrBatchFailed is the server-reported terminal failure of a batch.
	ErrBatchFailed = errors.New("batch upload failed")

	// ErrBatchTimeout means the poll attempt cap was exhausted before the
	// batch reached a terminal status. Distinct from ErrBatchFailed.
	ErrBatchTimeout = errors.New("batch status polling timed out")

	// ErrNoValidFiles means every file in a batch failed validation.
	ErrNoValidFiles = errors.New("no valid files in batch")
)

// ApplyResult reports the outcome of an optimistic update. Applied means the
// local state changed; Persisted means the server accepted it. Optimistic
// updates are kept even when persistence fails, so Applied can be true while
// Persisted is false.
type ApplyResult struct {
	Applied   bool
	Persisted bool
}
