// Package config resolves gateway connection settings. Settings come from
// three places, highest precedence first: user overrides, the OpenClaw
// auto-discovery file, and built-in defaults plus an environment token.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultGatewayURL is used when neither overrides nor auto-discovery
// supply a URL. 18789 is the gateway's default local port.
const DefaultGatewayURL = "http://localhost:18789"

// TokenEnvVar supplies a fallback token when no other source has one.
const TokenEnvVar = "OPENCLAW_TOKEN"

// cacheWindow bounds how long a successful resolution is reused before the
// settings file is consulted again.
const cacheWindow = 60 * time.Second

var (
	ErrMissingToken = errors.New("no gateway token configured")
	ErrInvalidURL   = errors.New("gateway URL is not a valid http(s) URL")
)

// Source records where a resolved config came from.
type Source string

const (
	SourceAutoDiscovered Source = "auto-discovered"
	SourceManual         Source = "manual"
)

// GatewayConfig is a validated connection target. Consumers treat it as
// read-only; only the Resolver produces them.
type GatewayConfig struct {
	URL    string
	Token  string
	Source Source
}

// Resolver merges overrides with auto-discovery and memoizes the result.
// Safe for concurrent use.
type Resolver struct {
	mu           sync.Mutex
	overrides    Overrides
	settingsPath string
	log          *zap.Logger

	memo   *GatewayConfig
	memoAt time.Time

	// injectable for tests
	now       func() time.Time
	readFile  func(string) ([]byte, error)
	lookupEnv func(string) (string, bool)
}

// NewResolver creates a Resolver bound to the given overrides.
func NewResolver(overrides Overrides, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		overrides:    overrides,
		settingsPath: SettingsPath(),
		log:          log,
		now:          time.Now,
		readFile:     os.ReadFile,
		lookupEnv:    os.LookupEnv,
	}
}

// SettingsPath returns the well-known auto-discovery file location.
func SettingsPath() string {
	if v := os.Getenv("OPENCLAW_SETTINGS"); v != "" {
		return v
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".openclaw", "openclaw.json")
}

// Resolve produces a validated GatewayConfig. A result resolved within the
// last minute is returned from memory without re-reading the settings file.
func (r *Resolver) Resolve() (GatewayConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.memo != nil && r.now().Sub(r.memoAt) < cacheWindow {
		return *r.memo, nil
	}

	discoveredURL, discoveredToken := r.discover()

	gatewayURL := r.overrides.GatewayURL
	token := r.overrides.Token
	manual := gatewayURL != "" || token != ""

	if gatewayURL == "" {
		gatewayURL = discoveredURL
	}
	if token == "" {
		token = discoveredToken
	}
	if gatewayURL == "" {
		gatewayURL = DefaultGatewayURL
	}
	if token == "" {
		if v, ok := r.lookupEnv(TokenEnvVar); ok {
			token = v
		}
	}
	if token == "" {
		return GatewayConfig{}, ErrMissingToken
	}

	u, err := url.Parse(gatewayURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return GatewayConfig{}, fmt.Errorf("%w: %q", ErrInvalidURL, gatewayURL)
	}

	cfg := GatewayConfig{URL: gatewayURL, Token: token, Source: SourceAutoDiscovered}
	if manual {
		cfg.Source = SourceManual
	}

	r.memo = &cfg
	r.memoAt = r.now()
	r.log.Debug("gateway config resolved",
		zap.String("url", cfg.URL),
		zap.String("source", string(cfg.Source)))
	return cfg, nil
}

// Invalidate clears the memoized result so the next Resolve re-reads
// every source. Call it whenever preferences change.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.memo = nil
}

// SetOverrides replaces the user overrides and invalidates the memo.
func (r *Resolver) SetOverrides(o Overrides) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides = o
	r.memo = nil
}

// settingsFile mirrors the discovery document: {gateway:{url, auth:{token}}}.
type settingsFile struct {
	Gateway struct {
		URL  string `json:"url"`
		Auth struct {
			Token string `json:"token"`
		} `json:"auth"`
	} `json:"gateway"`
}

// discover reads the well-known settings file. Absence and parse failures
// are both non-fatal: discovery just reports empty values.
func (r *Resolver) discover() (gatewayURL, token string) {
	data, err := r.readFile(r.settingsPath)
	if err != nil {
		if !os.IsNotExist(err) {
			r.log.Warn("settings file unreadable", zap.String("path", r.settingsPath), zap.Error(err))
		}
		return "", ""
	}
	var sf settingsFile
	if err := json.Unmarshal(data, &sf); err != nil {
		r.log.Warn("settings file unparseable, ignoring", zap.String("path", r.settingsPath), zap.Error(err))
		return "", ""
	}
	return sf.Gateway.URL, sf.Gateway.Auth.Token
}
