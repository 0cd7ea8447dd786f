package config

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const discoveryDoc = `{"gateway":{"url":"http://pinchy.local:18789","auth":{"token":"disc-token-123456"}}}`

// testResolver builds a Resolver with a fake clock, settings file and env.
func testResolver(o Overrides, settings string, envToken string) (*Resolver, *int, *time.Time) {
	reads := 0
	now := time.Unix(1700000000, 0)

	r := NewResolver(o, zap.NewNop())
	r.now = func() time.Time { return now }
	r.readFile = func(string) ([]byte, error) {
		reads++
		if settings == "" {
			return nil, os.ErrNotExist
		}
		return []byte(settings), nil
	}
	r.lookupEnv = func(key string) (string, bool) {
		if key == TokenEnvVar && envToken != "" {
			return envToken, true
		}
		return "", false
	}
	return r, &reads, &now
}

func TestResolveAutoDiscovered(t *testing.T) {
	r, _, _ := testResolver(Overrides{}, discoveryDoc, "")

	cfg, err := r.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "http://pinchy.local:18789", cfg.URL)
	assert.Equal(t, "disc-token-123456", cfg.Token)
	assert.Equal(t, SourceAutoDiscovered, cfg.Source)
}

func TestResolveManualWinsOverDiscovery(t *testing.T) {
	r, _, _ := testResolver(Overrides{
		GatewayURL: "https://gw.example.com",
		Token:      "manual-token",
	}, discoveryDoc, "")

	cfg, err := r.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "https://gw.example.com", cfg.URL)
	assert.Equal(t, "manual-token", cfg.Token)
	assert.Equal(t, SourceManual, cfg.Source)
}

func TestResolvePartialOverrideMerges(t *testing.T) {
	// Token overridden, URL auto-discovered: per-field merge, manual source.
	r, _, _ := testResolver(Overrides{Token: "manual-token"}, discoveryDoc, "")

	cfg, err := r.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "http://pinchy.local:18789", cfg.URL)
	assert.Equal(t, "manual-token", cfg.Token)
	assert.Equal(t, SourceManual, cfg.Source)
}

func TestResolveDefaultURLWithEnvToken(t *testing.T) {
	r, _, _ := testResolver(Overrides{}, "", "env-token")

	cfg, err := r.Resolve()
	require.NoError(t, err)
	assert.Equal(t, DefaultGatewayURL, cfg.URL)
	assert.Equal(t, "env-token", cfg.Token)
	assert.Equal(t, SourceAutoDiscovered, cfg.Source)
}

func TestResolveMissingToken(t *testing.T) {
	r, _, _ := testResolver(Overrides{}, "", "")

	_, err := r.Resolve()
	assert.True(t, errors.Is(err, ErrMissingToken))
}

func TestResolveInvalidURL(t *testing.T) {
	r, _, _ := testResolver(Overrides{GatewayURL: "ws://nope:1", Token: "t"}, "", "")
	_, err := r.Resolve()
	assert.True(t, errors.Is(err, ErrInvalidURL))

	r, _, _ = testResolver(Overrides{GatewayURL: "http://", Token: "t"}, "", "")
	_, err = r.Resolve()
	assert.True(t, errors.Is(err, ErrInvalidURL))
}

func TestResolveUnparseableSettingsFallsThrough(t *testing.T) {
	// Broken discovery file is a lower-confidence outcome, never a hard error.
	r, _, _ := testResolver(Overrides{}, `{"gateway": nonsense`, "env-token")

	cfg, err := r.Resolve()
	require.NoError(t, err)
	assert.Equal(t, DefaultGatewayURL, cfg.URL)
	assert.Equal(t, "env-token", cfg.Token)
}

func TestResolveMemoizesWithinWindow(t *testing.T) {
	r, reads, now := testResolver(Overrides{}, discoveryDoc, "")

	first, err := r.Resolve()
	require.NoError(t, err)
	require.Equal(t, 1, *reads)

	*now = now.Add(30 * time.Second)
	second, err := r.Resolve()
	require.NoError(t, err)
	assert.Equal(t, 1, *reads, "resolve within the window must not re-read the settings file")
	assert.Empty(t, cmp.Diff(first, second))

	*now = now.Add(cacheWindow)
	_, err = r.Resolve()
	require.NoError(t, err)
	assert.Equal(t, 2, *reads, "expired memo must re-read")
}

func TestInvalidateForcesReread(t *testing.T) {
	r, reads, _ := testResolver(Overrides{}, discoveryDoc, "")

	_, err := r.Resolve()
	require.NoError(t, err)
	require.Equal(t, 1, *reads)

	r.Invalidate()
	_, err = r.Resolve()
	require.NoError(t, err)
	assert.Equal(t, 2, *reads)
}

func TestSetOverridesInvalidates(t *testing.T) {
	r, reads, _ := testResolver(Overrides{}, discoveryDoc, "")

	cfg, err := r.Resolve()
	require.NoError(t, err)
	require.Equal(t, SourceAutoDiscovered, cfg.Source)

	r.SetOverrides(Overrides{GatewayURL: "https://gw.example.com", Token: "manual-token"})
	cfg, err = r.Resolve()
	require.NoError(t, err)
	assert.Equal(t, 2, *reads)
	assert.Equal(t, SourceManual, cfg.Source)
	assert.Equal(t, "https://gw.example.com", cfg.URL)
}

func TestFailedResolveIsNotMemoized(t *testing.T) {
	r, reads, _ := testResolver(Overrides{}, "", "")

	_, err := r.Resolve()
	require.Error(t, err)

	_, err = r.Resolve()
	require.Error(t, err)
	assert.Equal(t, 2, *reads, "only successful results are memoized")
}

func TestOverridesSessionKeyFallback(t *testing.T) {
	o := Overrides{}
	assert.Equal(t, "main", o.SessionKey())
	o.DefaultSessionKey = "work"
	assert.Equal(t, "work", o.SessionKey())
}

func TestOverridesLoadIgnoresUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/config.yaml"
	require.NoError(t, os.WriteFile(path, []byte("gateway_url: http://x:1\ntoken: abc\nicon_theme: dark\n"), 0600))
	t.Setenv("CLAWDECK_CONFIG", path)
	t.Setenv("OPENCLAW_GATEWAY_URL", "")
	t.Setenv("CLAWDECK_GATEWAY", "")
	t.Setenv("CLAWDECK_SESSION", "")
	t.Setenv("CLAWDECK_SSH_HOST", "")

	o, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://x:1", o.GatewayURL)
	assert.Equal(t, "abc", o.Token)
}

func TestOverridesLoadEnvWins(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/config.yaml"
	require.NoError(t, os.WriteFile(path, []byte("gateway_url: http://file:1\n"), 0600))
	t.Setenv("CLAWDECK_CONFIG", path)
	t.Setenv("OPENCLAW_GATEWAY_URL", "http://env:2")
	t.Setenv("CLAWDECK_SESSION", "env-session")
	t.Setenv("CLAWDECK_SSH_HOST", "")

	o, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://env:2", o.GatewayURL)
	assert.Equal(t, "env-session", o.DefaultSessionKey)
}
