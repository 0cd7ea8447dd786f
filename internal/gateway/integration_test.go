//go:build integration

package gateway

import (
	"context"
	"os"
	"testing"
)

func getTestConfig(t *testing.T) (gatewayURL, token string) {
	t.Helper()
	token = os.Getenv("CLAWDECK_TEST_TOKEN")
	gatewayURL = os.Getenv("CLAWDECK_TEST_GATEWAY")
	if gatewayURL == "" {
		gatewayURL = "http://127.0.0.1:18789"
	}
	if token == "" {
		t.Skip("CLAWDECK_TEST_TOKEN not set — skipping integration test")
	}
	return
}

func TestGatewayListSessions(t *testing.T) {
	gatewayURL, token := getTestConfig(t)

	client, err := New(Options{
		BaseURL: gatewayURL,
		Token:   token,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sessions, err := client.ListSessions(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	t.Logf("sessions: %d", len(sessions))
	for _, s := range sessions {
		t.Logf("  - %s (%s)", s.Key, s.Model)
	}
}

func TestGatewayHistory(t *testing.T) {
	gatewayURL, token := getTestConfig(t)

	client, err := New(Options{
		BaseURL: gatewayURL,
		Token:   token,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	key := os.Getenv("CLAWDECK_TEST_SESSION")
	if key == "" {
		key = "main"
	}
	messages, err := client.GetHistory(context.Background(), key, 10)
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	t.Logf("messages: %d", len(messages))
}
