package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SSH holds SSH tunnel configuration for reaching a remote gateway.
type SSH struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	User       string `yaml:"user"`
	KeyPath    string `yaml:"key_path"`
	RemotePort int    `yaml:"remote_port"`
}

// Overrides are the user-supplied connection and workflow preferences.
// Priority: CLI flags > environment variables > config file. Unknown file
// fields are ignored.
type Overrides struct {
	GatewayURL        string `yaml:"gateway_url"`
	Token             string `yaml:"token"`
	DefaultSessionKey string `yaml:"default_session_key"`
	WaitForResponse   bool   `yaml:"wait_for_response"`
	SSH               *SSH   `yaml:"ssh,omitempty"`
}

// Load reads overrides from the config file, then applies env overrides.
// Flag overrides are applied by the caller.
func Load() (*Overrides, error) {
	o := &Overrides{}

	path := FilePath()
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, o); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if v := env("OPENCLAW_GATEWAY_URL", "CLAWDECK_GATEWAY"); v != "" {
		o.GatewayURL = v
	}
	// OPENCLAW_TOKEN is deliberately not applied here: the resolver treats
	// the env token as a last-resort fallback, not a manual override.
	if v := os.Getenv("CLAWDECK_SESSION"); v != "" {
		o.DefaultSessionKey = v
	}
	if v := os.Getenv("CLAWDECK_SSH_HOST"); v != "" {
		if o.SSH == nil {
			o.SSH = &SSH{}
		}
		o.SSH.Host = v
	}

	return o, nil
}

// Save writes the overrides to the default config file path.
func (o *Overrides) Save() error {
	path := FilePath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := yaml.Marshal(o)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// SessionKey returns the configured default session key, falling back to
// "main" when unset.
func (o *Overrides) SessionKey() string {
	if o.DefaultSessionKey != "" {
		return o.DefaultSessionKey
	}
	return "main"
}

// SSHEnabled returns true if an SSH tunnel is configured.
func (o *Overrides) SSHEnabled() bool {
	return o.SSH != nil && o.SSH.Host != ""
}

// FilePath returns the path to the config file.
// Always uses ~/.config (XDG convention) regardless of platform.
func FilePath() string {
	if v := os.Getenv("CLAWDECK_CONFIG"); v != "" {
		return v
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "clawdeck", "config.yaml")
}

// env returns the first non-empty value from the given env var names.
func env(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// ExpandTilde expands a leading ~ to the user's home directory.
func ExpandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
