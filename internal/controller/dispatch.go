// Package controller owns the user-facing state machines. Controllers are
// invoked by the shell (one blocking call per user action, typically inside
// a tea.Cmd) and emit immutable state snapshots; the shell renders whatever
// snapshot it gets and never talks to the gateway client directly.
package controller

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"clawdeck/internal/cache"
	"clawdeck/internal/gateway"
)

// DispatchState is the send workflow's position.
type DispatchState string

const (
	DispatchIdle             DispatchState = "idle"
	DispatchComposing        DispatchState = "composing"
	DispatchSubmitting       DispatchState = "submitting"
	DispatchSent             DispatchState = "sent"
	DispatchAwaitingResponse DispatchState = "awaiting_response"
	DispatchResponded        DispatchState = "responded"
	DispatchTimedOut         DispatchState = "timed_out"
	DispatchFailed           DispatchState = "failed"
)

// ErrEmptyMessage rejects a submit with nothing to send.
var ErrEmptyMessage = errors.New("message must not be empty")

// Draft is the message being composed.
type Draft struct {
	Message    string
	SessionKey string
}

// DispatchSnapshot is the full observable state of one Dispatch.
type DispatchSnapshot struct {
	State           DispatchState
	Draft           Draft
	WaitForResponse bool // effective mode of the current/last attempt
	Response        string
	ErrKind         gateway.Kind
	ErrMsg          string
}

// Terminal reports whether the snapshot is an end state of one attempt.
func (s DispatchSnapshot) Terminal() bool {
	switch s.State {
	case DispatchSent, DispatchResponded, DispatchTimedOut, DispatchFailed:
		return true
	}
	return false
}

// Sender is the slice of the gateway API dispatch needs.
type Sender interface {
	SendMessage(ctx context.Context, sessionKey, message string, waitForResponse bool, idempotencyKey string) (gateway.SendResult, error)
}

// Dispatch drives composing and sending one message, in fire-and-forget or
// wait-for-response mode. A second Submit before the first resolves
// supersedes it: the earlier result is discarded when it lands.
type Dispatch struct {
	client      Sender
	sessions    *cache.Sessions
	defaultWait bool
	log         *zap.Logger
	newIdemKey  func() string

	mu       sync.Mutex
	state    DispatchState
	draft    Draft
	wait     bool
	response string
	errKind  gateway.Kind
	errMsg   string
	idemKey  string
	token    uint64
}

// NewDispatch creates the controller. defaultSessionKey falls back to
// "main" when empty; defaultWait is the configured send-mode preference.
func NewDispatch(client Sender, sessions *cache.Sessions, defaultSessionKey string, defaultWait bool, log *zap.Logger) *Dispatch {
	if defaultSessionKey == "" {
		defaultSessionKey = "main"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatch{
		client:      client,
		sessions:    sessions,
		defaultWait: defaultWait,
		log:         log,
		newIdemKey:  uuid.NewString,
		state:       DispatchIdle,
		draft:       Draft{SessionKey: defaultSessionKey},
	}
}

// EffectiveMode computes the send mode for one invocation: the alternate
// action flips the configured default for that invocation only. Pure; the
// stored preference is never mutated.
func EffectiveMode(defaultWait, alternateRequested bool) bool {
	return defaultWait != alternateRequested
}

// Snapshot returns the current observable state.
func (d *Dispatch) Snapshot() DispatchSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked()
}

func (d *Dispatch) snapshotLocked() DispatchSnapshot {
	return DispatchSnapshot{
		State:           d.state,
		Draft:           d.draft,
		WaitForResponse: d.wait,
		Response:        d.response,
		ErrKind:         d.errKind,
		ErrMsg:          d.errMsg,
	}
}

// Compose updates the draft. An empty sessionKey keeps the current target.
// Composing after a terminal state starts a fresh attempt.
func (d *Dispatch) Compose(message, sessionKey string) DispatchSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.draft.Message = message
	if sessionKey != "" {
		d.draft.SessionKey = sessionKey
	}
	if d.state != DispatchSubmitting && d.state != DispatchAwaitingResponse {
		d.state = DispatchComposing
		d.response = ""
		d.errKind = ""
		d.errMsg = ""
	}
	return d.snapshotLocked()
}

// Submit sends the current draft. alternateRequested flips the configured
// default mode for this invocation. The call blocks until the attempt
// reaches a terminal state (or is superseded) and returns that snapshot.
func (d *Dispatch) Submit(ctx context.Context, alternateRequested bool) (DispatchSnapshot, error) {
	d.mu.Lock()
	if d.draft.Message == "" {
		snap := d.snapshotLocked()
		d.mu.Unlock()
		return snap, ErrEmptyMessage
	}
	d.idemKey = d.newIdemKey()
	wait := EffectiveMode(d.defaultWait, alternateRequested)
	snap := d.beginAttemptLocked(wait)
	d.mu.Unlock()

	return d.run(ctx, snap)
}

// Retry re-enters Submitting with the same draft, mode and idempotency key
// as the failed attempt, so a delivered-but-unconfirmed message cannot be
// duplicated. Only valid from a terminal failure state.
func (d *Dispatch) Retry(ctx context.Context) (DispatchSnapshot, error) {
	d.mu.Lock()
	if d.state != DispatchFailed && d.state != DispatchTimedOut {
		snap := d.snapshotLocked()
		d.mu.Unlock()
		return snap, errors.New("nothing to retry")
	}
	snap := d.beginAttemptLocked(d.wait)
	d.mu.Unlock()

	return d.run(ctx, snap)
}

// beginAttemptLocked stamps a new request token and moves to Submitting
// (or AwaitingResponse for wait mode, where the in-flight phase is
// user-visible).
func (d *Dispatch) beginAttemptLocked(wait bool) attempt {
	d.token++
	d.wait = wait
	d.response = ""
	d.errKind = ""
	d.errMsg = ""
	d.state = DispatchSubmitting
	if wait {
		d.state = DispatchAwaitingResponse
	}
	return attempt{
		token:   d.token,
		wait:    wait,
		draft:   d.draft,
		idemKey: d.idemKey,
	}
}

type attempt struct {
	token   uint64
	wait    bool
	draft   Draft
	idemKey string
}

func (d *Dispatch) run(ctx context.Context, a attempt) (DispatchSnapshot, error) {
	res, err := d.client.SendMessage(ctx, a.draft.SessionKey, a.draft.Message, a.wait, a.idemKey)

	d.mu.Lock()
	defer d.mu.Unlock()

	if a.token != d.token {
		// A newer submit superseded this attempt; drop its result.
		d.log.Debug("discarding superseded send result",
			zap.String("session", a.draft.SessionKey))
		return d.snapshotLocked(), nil
	}

	switch {
	case err == nil:
		if a.wait {
			d.state = DispatchResponded
			d.response = res.Response
		} else {
			d.state = DispatchSent
		}
		d.invalidateSessions()
	case a.wait && gateway.IsPending(err):
		// Unknown outcome, not a failure: the message may still land.
		d.state = DispatchTimedOut
		d.invalidateSessions()
	default:
		d.state = DispatchFailed
		d.errKind = gateway.KindOf(err)
		d.errMsg = err.Error()
	}
	return d.snapshotLocked(), nil
}

// invalidateSessions marks the fleet snapshot stale after a send that
// (possibly) mutated gateway state.
func (d *Dispatch) invalidateSessions() {
	if d.sessions != nil {
		d.sessions.Invalidate()
	}
}
