package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler, timeouts Timeouts) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Options{
		BaseURL:  srv.URL,
		Token:    "test-token-1234567890",
		Timeouts: timeouts,
	})
	require.NoError(t, err)
	return c, srv
}

func TestNewRejectsNonHTTPURL(t *testing.T) {
	_, err := New(Options{BaseURL: "ws://localhost:18789", Token: "t"})
	require.Error(t, err)

	_, err = New(Options{BaseURL: "://bad", Token: "t"})
	require.Error(t, err)
}

func TestListSessions(t *testing.T) {
	var gotAuth, gotLimit string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotLimit = r.URL.Query().Get("messageLimit")
		assert.Equal(t, "/sessions/list", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"sessions": []map[string]any{
				{
					"sessionKey":   "main",
					"displayName":  "Main",
					"channel":      "telegram",
					"model":        "claude-opus-4",
					"status":       "active",
					"lastActivity": 1700000000000,
					"tokenUsage":   4096,
				},
				{"sessionKey": "scratch", "channel": "cli", "model": "gpt-x"},
			},
		})
	}), Timeouts{})

	sessions, err := c.ListSessions(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	assert.Equal(t, "Bearer test-token-1234567890", gotAuth)
	assert.Equal(t, "5", gotLimit)

	assert.Equal(t, "main", sessions[0].Key)
	assert.Equal(t, "Main", sessions[0].Label())
	assert.Equal(t, time.UnixMilli(1700000000000), sessions[0].LastActivity)
	assert.Equal(t, int64(4096), sessions[0].TokenUsage)

	assert.Equal(t, "scratch", sessions[1].Label())
	assert.True(t, sessions[1].LastActivity.IsZero())
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		kind   Kind
	}{
		{http.StatusUnauthorized, KindAuthFailure},
		{http.StatusServiceUnavailable, KindUnavailable},
		{http.StatusNotFound, KindSessionNotFound},
		{http.StatusInternalServerError, KindUnknown},
	}
	for _, tc := range cases {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}), Timeouts{})

		_, err := c.ListSessions(context.Background(), 0)
		require.Error(t, err)
		assert.Equal(t, tc.kind, KindOf(err), "status %d", tc.status)
	}
}

func TestUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c, err := New(Options{BaseURL: srv.URL, Token: "t"})
	require.NoError(t, err)

	_, err = c.ListSessions(context.Background(), 0)
	assert.Equal(t, KindUnreachable, KindOf(err))
}

func TestSendMessage(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/sessions/send", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "main", body["sessionKey"])
		assert.Equal(t, "hello", body["message"])
		assert.Equal(t, "idem-1", body["idempotencyKey"])

		json.NewEncoder(w).Encode(map[string]any{"success": true, "response": "hi there"})
	}), Timeouts{})

	res, err := c.SendMessage(context.Background(), "main", "hello", true, "idem-1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "hi there", res.Response)
}

func TestSendMessageTimeoutIsPending(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	}), Timeouts{SendWait: 20 * time.Millisecond, SendFire: 20 * time.Millisecond})

	_, err := c.SendMessage(context.Background(), "main", "hello", true, "")
	require.Error(t, err)
	assert.True(t, IsPending(err), "wait-mode timeout must classify as pending, got %v", err)

	_, err = c.SendMessage(context.Background(), "main", "hello", false, "")
	require.Error(t, err)
	assert.True(t, IsPending(err), "fire-mode timeout must classify as pending, got %v", err)
}

func TestSendMessageGatewayRefusal(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "session busy"})
	}), Timeouts{})

	_, err := c.SendMessage(context.Background(), "main", "hello", false, "")
	require.Error(t, err)
	assert.Equal(t, KindUnknown, KindOf(err))
	assert.Contains(t, err.Error(), "session busy")
}

func TestGetHistory(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sessions/history/main", r.URL.Path)
		assert.Equal(t, "20", r.URL.Query().Get("limit"))
		json.NewEncoder(w).Encode(map[string]any{
			"sessionKey": "main",
			"messages": []map[string]any{
				{"role": "user", "content": "ping", "timestamp": 1700000000000},
				{"role": "assistant", "content": []map[string]any{{"type": "text", "text": "pong"}}, "timestamp": "2023-11-14T22:13:20Z"},
				{"role": "assistant", "content": []map[string]any{{"type": "tool_use"}}},
			},
		})
	}), Timeouts{})

	msgs, err := c.GetHistory(context.Background(), "main", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2, "empty content entries are dropped")

	assert.Equal(t, "ping", msgs[0].Content)
	assert.Equal(t, time.UnixMilli(1700000000000), msgs[0].Timestamp)
	assert.Equal(t, "pong", msgs[1].Content)
	assert.False(t, msgs[1].Timestamp.IsZero())
}

func TestGetHistoryNotFound(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}), Timeouts{})

	_, err := c.GetHistory(context.Background(), "ghost", 10)
	assert.Equal(t, KindSessionNotFound, KindOf(err))
}

func TestSetModel(t *testing.T) {
	var gotBody map[string]any
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/session/status", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	}), Timeouts{})

	require.NoError(t, c.SetModel(context.Background(), "main", "sonnet"))
	assert.Equal(t, "main", gotBody["sessionKey"])
	assert.Equal(t, "sonnet", gotBody["model"])
}

func TestSetModelBadRequestIsInvalidModel(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}), Timeouts{})

	err := c.SetModel(context.Background(), "main", "bogus")
	assert.Equal(t, KindInvalidModel, KindOf(err))
}
