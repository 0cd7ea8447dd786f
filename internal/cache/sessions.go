// Package cache memoizes the gateway's session list so the dashboard and
// dispatch flows don't hammer sessions.list on every interaction.
package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"clawdeck/internal/gateway"
)

// ttl is how long a snapshot is served without consulting the gateway.
const ttl = 30 * time.Second

// Lister is the slice of the gateway API the cache needs.
type Lister interface {
	ListSessions(ctx context.Context, messageLimit int) ([]gateway.Session, error)
}

// Sessions is a single-slot, time-bounded view over ListSessions. Refresh
// is always caller-driven; there is no background timer. On refresh
// failure the previous snapshot is retained and returned alongside the
// error, so a transient outage never blanks the dashboard.
type Sessions struct {
	client       Lister
	messageLimit int
	log          *zap.Logger
	now          func() time.Time

	mu        sync.Mutex
	snapshot  []gateway.Session
	fetchedAt time.Time
	haveEntry bool
	forceNext bool
}

// New creates a session cache over the given client.
func New(client Lister, messageLimit int, log *zap.Logger) *Sessions {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sessions{
		client:       client,
		messageLimit: messageLimit,
		log:          log,
		now:          time.Now,
	}
}

// Get returns the session snapshot. A fresh cached entry is served as-is
// unless forceRefresh is set or Invalidate was called. When the underlying
// list call fails, Get returns the previous (possibly stale) snapshot
// together with the error; callers decide how to present staleness.
func (c *Sessions) Get(ctx context.Context, forceRefresh bool) ([]gateway.Session, error) {
	c.mu.Lock()
	force := forceRefresh || c.forceNext
	if c.haveEntry && !force && c.now().Sub(c.fetchedAt) < ttl {
		snap := c.snapshot
		c.mu.Unlock()
		return snap, nil
	}
	c.mu.Unlock()

	sessions, err := c.client.ListSessions(ctx, c.messageLimit)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.log.Warn("session list refresh failed, serving stale snapshot",
			zap.Bool("have_stale", c.haveEntry),
			zap.Error(err))
		return c.snapshot, err
	}
	c.snapshot = sessions
	c.fetchedAt = c.now()
	c.haveEntry = true
	c.forceNext = false
	return sessions, nil
}

// Invalidate marks the entry stale so the next Get refreshes. Called after
// any mutating action (send completed, model switched); it never triggers
// a background refetch itself.
func (c *Sessions) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forceNext = true
}
