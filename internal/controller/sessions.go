package controller

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"clawdeck/internal/cache"
	"clawdeck/internal/gateway"
)

// DashState is the dashboard's top-level position.
type DashState string

const (
	DashLoading    DashState = "loading"
	DashReady      DashState = "ready"
	DashRefreshing DashState = "refreshing"
)

// RowPhase is a transient per-session sub-state.
type RowPhase string

const (
	RowIdle           RowPhase = ""
	RowHistoryLoading RowPhase = "history_loading"
	RowHistoryReady   RowPhase = "history_ready"
	RowModelSwitching RowPhase = "model_switching"
)

// ErrModelNotSwitchable rejects an override on a model outside the
// Opus/Sonnet pair.
var ErrModelNotSwitchable = errors.New("model override is only available for opus and sonnet sessions")

// Row is the observable per-session sub-state.
type Row struct {
	Phase   RowPhase
	History []gateway.Message
	ErrKind gateway.Kind
	ErrMsg  string
}

// SessionsSnapshot is the full observable dashboard state. A load failure
// leaves State Ready with whatever snapshot the cache could serve (possibly
// empty) and the error recorded, so the dashboard degrades instead of
// crashing.
type SessionsSnapshot struct {
	State    DashState
	Sessions []gateway.Session
	ErrKind  gateway.Kind
	ErrMsg   string
	Rows     map[string]Row
}

// historian is the slice of the gateway API the dashboard needs beyond the
// session cache.
type historian interface {
	GetHistory(ctx context.Context, sessionKey string, limit int) ([]gateway.Message, error)
	SetModel(ctx context.Context, sessionKey, model string) error
}

// Sessions drives the session dashboard: initial load, manual refresh,
// per-row history fetch and the Opus/Sonnet model override. Per-operation
// request tokens make a second invocation supersede the first.
type Sessions struct {
	cache  *cache.Sessions
	client historian
	log    *zap.Logger

	mu        sync.Mutex
	state     DashState
	sessions  []gateway.Session
	errKind   gateway.Kind
	errMsg    string
	rows      map[string]Row
	listToken uint64
	rowTokens map[string]uint64
}

// NewSessions creates the dashboard controller.
func NewSessions(c *cache.Sessions, client historian, log *zap.Logger) *Sessions {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sessions{
		cache:     c,
		client:    client,
		log:       log,
		state:     DashLoading,
		rows:      make(map[string]Row),
		rowTokens: make(map[string]uint64),
	}
}

// Snapshot returns the current observable state.
func (s *Sessions) Snapshot() SessionsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Sessions) snapshotLocked() SessionsSnapshot {
	rows := make(map[string]Row, len(s.rows))
	for k, v := range s.rows {
		rows[k] = v
	}
	return SessionsSnapshot{
		State:    s.state,
		Sessions: s.sessions,
		ErrKind:  s.errKind,
		ErrMsg:   s.errMsg,
		Rows:     rows,
	}
}

// Load performs the mount-time fetch through the cache (respecting its
// TTL). Always lands in Ready.
func (s *Sessions) Load(ctx context.Context) SessionsSnapshot {
	s.mu.Lock()
	s.state = DashLoading
	s.listToken++
	token := s.listToken
	s.mu.Unlock()

	return s.fetch(ctx, token, false)
}

// Refresh forces a fleet refetch. Always lands back in Ready; on failure
// the stale snapshot is retained per the cache contract.
func (s *Sessions) Refresh(ctx context.Context) SessionsSnapshot {
	s.mu.Lock()
	s.state = DashRefreshing
	s.listToken++
	token := s.listToken
	s.mu.Unlock()

	return s.fetch(ctx, token, true)
}

func (s *Sessions) fetch(ctx context.Context, token uint64, force bool) SessionsSnapshot {
	sessions, err := s.cache.Get(ctx, force)

	s.mu.Lock()
	defer s.mu.Unlock()

	if token != s.listToken {
		return s.snapshotLocked()
	}

	s.state = DashReady
	s.sessions = sessions
	if err != nil {
		s.errKind = gateway.KindOf(err)
		s.errMsg = err.Error()
	} else {
		s.errKind = ""
		s.errMsg = ""
	}
	return s.snapshotLocked()
}

// LoadHistory fetches the most recent messages for one session into its
// row. Failure is row-scoped.
func (s *Sessions) LoadHistory(ctx context.Context, sessionKey string, limit int) SessionsSnapshot {
	s.mu.Lock()
	s.rowTokens[sessionKey]++
	token := s.rowTokens[sessionKey]
	s.rows[sessionKey] = Row{Phase: RowHistoryLoading}
	s.mu.Unlock()

	messages, err := s.client.GetHistory(ctx, sessionKey, limit)

	s.mu.Lock()
	defer s.mu.Unlock()

	if token != s.rowTokens[sessionKey] {
		return s.snapshotLocked()
	}
	if err != nil {
		s.rows[sessionKey] = Row{ErrKind: gateway.KindOf(err), ErrMsg: err.Error()}
	} else {
		s.rows[sessionKey] = Row{Phase: RowHistoryReady, History: messages}
	}
	return s.snapshotLocked()
}

// CloseHistory collapses a row's history view.
func (s *Sessions) CloseHistory(sessionKey string) SessionsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rows[sessionKey]; ok && r.Phase == RowHistoryReady {
		delete(s.rows, sessionKey)
	}
	return s.snapshotLocked()
}

// ToggleModel flips a session between Opus and Sonnet. On success the
// fleet cache is invalidated and refetched exactly once; on failure the
// row surfaces the error and the dashboard is untouched.
func (s *Sessions) ToggleModel(ctx context.Context, sessionKey string) (SessionsSnapshot, error) {
	s.mu.Lock()
	var current *gateway.Session
	for i := range s.sessions {
		if s.sessions[i].Key == sessionKey {
			current = &s.sessions[i]
			break
		}
	}
	if current == nil {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, errors.New("unknown session: " + sessionKey)
	}
	target, ok := gateway.ToggleTarget(current.Model)
	if !ok {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, ErrModelNotSwitchable
	}
	s.rowTokens[sessionKey]++
	token := s.rowTokens[sessionKey]
	s.rows[sessionKey] = Row{Phase: RowModelSwitching}
	s.mu.Unlock()

	err := s.client.SetModel(ctx, sessionKey, target)

	s.mu.Lock()
	if token != s.rowTokens[sessionKey] {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, nil
	}
	if err != nil {
		s.rows[sessionKey] = Row{ErrKind: gateway.KindOf(err), ErrMsg: err.Error()}
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, nil
	}
	delete(s.rows, sessionKey)
	s.mu.Unlock()

	s.log.Info("model override applied",
		zap.String("session", sessionKey),
		zap.String("model", target))
	s.cache.Invalidate()
	return s.Refresh(ctx), nil
}
