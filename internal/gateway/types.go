package gateway

import (
	"strings"
	"time"
)

// Session holds one fleet entry as reported by the gateway. Snapshots are
// immutable once fetched; a refresh produces a new slice, never edits one.
type Session struct {
	Key          string
	DisplayName  string
	Channel      string
	Model        string
	Status       string
	LastActivity time.Time // zero when the gateway did not report activity
	TokenUsage   int64
}

// Label returns the display name, falling back to the session key.
func (s Session) Label() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.Key
}

// Message is one chat history entry.
type Message struct {
	Role      string
	Content   string
	Timestamp time.Time
}

// SendResult is the outcome of one send attempt.
type SendResult struct {
	Success  bool
	Response string
}

// ModelFamily groups model identifiers into the pair the dashboard can
// toggle between, plus everything else.
type ModelFamily string

const (
	FamilyOpus   ModelFamily = "opus"
	FamilySonnet ModelFamily = "sonnet"
	FamilyOther  ModelFamily = "other"
)

// Family classifies a raw model identifier by substring, case-insensitively.
func Family(model string) ModelFamily {
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "opus"):
		return FamilyOpus
	case strings.Contains(m, "sonnet"):
		return FamilySonnet
	default:
		return FamilyOther
	}
}

// ToggleTarget returns the opposite of an Opus/Sonnet model, and ok=false
// for anything outside the pair.
func ToggleTarget(model string) (string, bool) {
	switch Family(model) {
	case FamilyOpus:
		return string(FamilySonnet), true
	case FamilySonnet:
		return string(FamilyOpus), true
	}
	return "", false
}
