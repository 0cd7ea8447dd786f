// Package gateway implements a typed REST client for the OpenClaw Gateway
// session API. Every operation is bound by its own timeout and returns a
// classified *Error instead of raw transport failures.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Timeouts is the per-operation timeout policy. Zero fields take defaults.
type Timeouts struct {
	List     time.Duration // sessions.list
	SendFire time.Duration // sessions.send, fire-and-forget
	SendWait time.Duration // sessions.send, wait-for-response
	History  time.Duration // sessions.history
	SetModel time.Duration // session.status
}

func (t *Timeouts) fillDefaults() {
	if t.List == 0 {
		t.List = 30 * time.Second
	}
	if t.SendFire == 0 {
		t.SendFire = 5 * time.Second
	}
	if t.SendWait == 0 {
		t.SendWait = 30 * time.Second
	}
	if t.History == 0 {
		t.History = 30 * time.Second
	}
	if t.SetModel == 0 {
		t.SetModel = 30 * time.Second
	}
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Token      string
	Logger     *zap.Logger
	HTTPClient *http.Client
	Timeouts   Timeouts
}

// Client is a stateless request executor bound to one resolved gateway
// config. It is safe for concurrent use.
type Client struct {
	base     *url.URL
	token    string
	httpc    *http.Client
	log      *zap.Logger
	timeouts Timeouts
}

// New creates a Client for the given gateway. The base URL must be http(s).
func New(opts Options) (*Client, error) {
	u, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid gateway URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid gateway URL %q: scheme must be http or https", opts.BaseURL)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	opts.Timeouts.fillDefaults()

	opts.Logger.Debug("gateway client ready",
		zap.String("url", opts.BaseURL),
		zap.String("token", Redact(opts.Token)))

	return &Client{
		base:     u,
		token:    opts.Token,
		httpc:    opts.HTTPClient,
		log:      opts.Logger,
		timeouts: opts.Timeouts,
	}, nil
}

// ListSessions fetches the fleet-wide session list. messageLimit bounds how
// much recent context the gateway attaches per session; 0 omits the param.
func (c *Client) ListSessions(ctx context.Context, messageLimit int) ([]Session, error) {
	q := url.Values{}
	if messageLimit > 0 {
		q.Set("messageLimit", strconv.Itoa(messageLimit))
	}
	body, err := c.do(ctx, "sessions.list", http.MethodGet, "/sessions/list", q, nil, c.timeouts.List, nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Sessions []struct {
			Key          string `json:"sessionKey"`
			DisplayName  string `json:"displayName"`
			Channel      string `json:"channel"`
			Model        string `json:"model"`
			Status       string `json:"status"`
			LastActivity int64  `json:"lastActivity"`
			TokenUsage   int64  `json:"tokenUsage"`
		} `json:"sessions"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &Error{Op: "sessions.list", Kind: KindUnknown, Err: fmt.Errorf("parsing sessions: %w", err)}
	}

	sessions := make([]Session, len(result.Sessions))
	for i, s := range result.Sessions {
		sessions[i] = Session{
			Key:         s.Key,
			DisplayName: s.DisplayName,
			Channel:     s.Channel,
			Model:       s.Model,
			Status:      s.Status,
			TokenUsage:  s.TokenUsage,
		}
		if s.LastActivity > 0 {
			sessions[i].LastActivity = time.UnixMilli(s.LastActivity)
		}
	}
	return sessions, nil
}

// SendMessage posts one message to a session. With waitForResponse the call
// blocks up to the wait timeout for the assistant's reply; expiry means the
// outcome is unknown, not failed, and is reported as KindResponsePending.
func (c *Client) SendMessage(ctx context.Context, sessionKey, message string, waitForResponse bool, idempotencyKey string) (SendResult, error) {
	timeout := c.timeouts.SendFire
	if waitForResponse {
		timeout = c.timeouts.SendWait
	}
	payload := map[string]any{
		"sessionKey": sessionKey,
		"message":    message,
	}
	if idempotencyKey != "" {
		payload["idempotencyKey"] = idempotencyKey
	}

	onTimeout := func() *Error {
		// The request may have been received before the deadline hit.
		return &Error{Op: "sessions.send", Kind: KindResponsePending, Err: context.DeadlineExceeded}
	}
	body, err := c.do(ctx, "sessions.send", http.MethodPost, "/sessions/send", nil, payload, timeout, onTimeout)
	if err != nil {
		return SendResult{}, err
	}

	var result struct {
		Success  bool   `json:"success"`
		Response string `json:"response"`
		ErrorMsg string `json:"error"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return SendResult{}, &Error{Op: "sessions.send", Kind: KindUnknown, Err: fmt.Errorf("parsing response: %w", err)}
	}
	if !result.Success {
		return SendResult{}, &Error{Op: "sessions.send", Kind: KindUnknown, Err: errors.New(result.ErrorMsg)}
	}
	return SendResult{Success: true, Response: result.Response}, nil
}

// GetHistory returns the most recent messages for a session, oldest first.
func (c *Client) GetHistory(ctx context.Context, sessionKey string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	path := "/sessions/history/" + url.PathEscape(sessionKey)
	body, err := c.do(ctx, "sessions.history", http.MethodGet, path, q, nil, c.timeouts.History, nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Messages []struct {
			Role      string `json:"role"`
			Content   any    `json:"content"`
			Timestamp any    `json:"timestamp"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &Error{Op: "sessions.history", Kind: KindUnknown, Err: fmt.Errorf("parsing history: %w", err)}
	}

	messages := make([]Message, 0, len(result.Messages))
	for _, m := range result.Messages {
		content := extractContent(m.Content)
		if content == "" {
			continue
		}
		msg := Message{Role: m.Role, Content: content}
		switch ts := m.Timestamp.(type) {
		case float64:
			msg.Timestamp = time.UnixMilli(int64(ts))
		case string:
			if t, err := time.Parse(time.RFC3339, ts); err == nil {
				msg.Timestamp = t
			}
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// SetModel switches the model backing a session. An empty model asks the
// gateway to clear the override.
func (c *Client) SetModel(ctx context.Context, sessionKey, model string) error {
	payload := map[string]any{"sessionKey": sessionKey}
	if model != "" {
		payload["model"] = model
	}
	body, err := c.do(ctx, "session.status", http.MethodPost, "/session/status", nil, payload, c.timeouts.SetModel, nil)
	if err != nil {
		var ge *Error
		if errors.As(err, &ge) && ge.Status == http.StatusBadRequest {
			ge.Kind = KindInvalidModel
		}
		return err
	}

	var result struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return &Error{Op: "session.status", Kind: KindUnknown, Err: fmt.Errorf("parsing response: %w", err)}
	}
	if !result.Success {
		return &Error{Op: "session.status", Kind: KindUnknown, Err: errors.New("gateway rejected model change")}
	}
	return nil
}

// do executes one request/response cycle. It logs method, path, status and
// elapsed time; it never logs the token or the request body.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, payload any, timeout time.Duration, onTimeout func() *Error) ([]byte, error) {
	u := *c.base
	u.Path = path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, &Error{Op: op, Kind: KindUnknown, Err: err}
		}
		reqBody = bytes.NewReader(data)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, &Error{Op: op, Kind: KindUnknown, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpc.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		var ge *Error
		if errors.Is(err, context.DeadlineExceeded) && onTimeout != nil {
			ge = onTimeout()
		} else {
			ge = &Error{Op: op, Kind: KindUnreachable, Err: err}
		}
		c.log.Warn("gateway request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("kind", string(ge.Kind)),
			zap.Duration("elapsed", elapsed))
		return nil, ge
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)

	c.log.Info("gateway request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", elapsed))

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Op: op, Kind: kindForStatus(resp.StatusCode), Status: resp.StatusCode}
	}
	if readErr != nil {
		return nil, &Error{Op: op, Kind: KindUnreachable, Err: readErr}
	}
	return body, nil
}

// kindForStatus maps an HTTP status to the shared error taxonomy.
func kindForStatus(status int) Kind {
	switch status {
	case http.StatusUnauthorized:
		return KindAuthFailure
	case http.StatusServiceUnavailable:
		return KindUnavailable
	case http.StatusNotFound:
		return KindSessionNotFound
	default:
		return KindUnknown
	}
}

// extractContent converts a content field (string or []ContentBlock) to a
// plain string.
func extractContent(v any) string {
	switch c := v.(type) {
	case string:
		return c
	case []any:
		var out string
		for _, block := range c {
			if b, ok := block.(map[string]any); ok {
				if t, ok := b["text"].(string); ok {
					out += t
				}
			}
		}
		return out
	}
	return ""
}
