package gateway

import "context"

// API is the gateway surface the cache and controllers consume. Keeping it
// an interface lets tests swap in fakes without a live gateway.
type API interface {
	ListSessions(ctx context.Context, messageLimit int) ([]Session, error)
	SendMessage(ctx context.Context, sessionKey, message string, waitForResponse bool, idempotencyKey string) (SendResult, error)
	GetHistory(ctx context.Context, sessionKey string, limit int) ([]Message, error)
	SetModel(ctx context.Context, sessionKey, model string) error
}

// Compile-time assertion: *Client must satisfy API.
var _ API = (*Client)(nil)
