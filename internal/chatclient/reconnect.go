package chatclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"gatherhub/backend/pkg/logger"
)

// State of the client connection lifecycle
type State string

const (
	StateIdle          State = "idle"
	StateConnecting    State = "connecting"
	StateAuthenticated State = "authenticated"
	StateActive        State = "active"
	StateReconnecting  State = "reconnecting"
	StateFailed        State = "failed"
	StateClosed        State = "closed"
)

// ReconnectPolicy bounds the retry loop after a transport loss
type ReconnectPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	// MaxAttempts counts dials, not retries: 10 means 10 dials total
	// before the machine gives up
	MaxAttempts uint64
}

// DefaultReconnectPolicy: 1s base doubling to a 5s ceiling, ten attempts
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		InitialInterval: time.Second,
		MaxInterval:     5 * time.Second,
		Multiplier:      2,
		MaxAttempts:     10,
	}
}

// ErrReconnectExhausted is returned once every attempt in the policy has
// been spent; the machine parks in StateFailed and a manual Connect is
// required to leave it
var ErrReconnectExhausted = fmt.Errorf("reconnect attempts exhausted")

// Reconnector drives the connection state machine. Dialing and session
// restoration are injected, as is the backoff timer so tests run without
// real sleeps.
type Reconnector struct {
	mu     sync.Mutex
	state  State
	policy ReconnectPolicy
	timer  backoff.Timer
	log    *logger.Logger

	// dial establishes and authenticates one connection
	dial func(ctx context.Context) error
	// restore runs after a successful re-dial: rejoin rooms, repair the
	// history gap. A nil restore is skipped.
	restore func(ctx context.Context) error
}

func NewReconnector(policy ReconnectPolicy, dial func(ctx context.Context) error, log *logger.Logger) *Reconnector {
	if log == nil {
		log = logger.GetGlobal()
	}
	if policy.MaxAttempts == 0 {
		policy = DefaultReconnectPolicy()
	}
	return &Reconnector{
		state:  StateIdle,
		policy: policy,
		dial:   dial,
		log:    log,
	}
}

// WithTimer swaps the backoff timer, used by tests to fake the clock
func (r *Reconnector) WithTimer(t backoff.Timer) *Reconnector {
	r.timer = t
	return r
}

// WithRestore installs the post-reconnect restoration hook
func (r *Reconnector) WithRestore(restore func(ctx context.Context) error) *Reconnector {
	r.restore = restore
	return r
}

// State reports the current lifecycle state
func (r *Reconnector) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Reconnector) setState(s State) {
	r.mu.Lock()
	prev := r.state
	r.state = s
	r.mu.Unlock()
	if prev != s {
		r.log.Debug("connection state change", "from", string(prev), "to", string(s))
	}
}

// Connect performs the initial dial. Unlike the reconnect loop it makes a
// single attempt; callers surface the error to the user instead of
// silently retrying a first-time failure.
func (r *Reconnector) Connect(ctx context.Context) error {
	if r.State() == StateClosed {
		return fmt.Errorf("connection closed")
	}
	r.setState(StateConnecting)
	if err := r.dial(ctx); err != nil {
		r.setState(StateFailed)
		return err
	}
	r.setState(StateAuthenticated)
	if r.restore != nil {
		if err := r.restore(ctx); err != nil {
			return err
		}
	}
	r.setState(StateActive)
	return nil
}

// OnTransportLoss runs the capped exponential retry loop after the
// underlying connection drops. It blocks until a dial succeeds, the
// policy is exhausted, or the context is cancelled.
func (r *Reconnector) OnTransportLoss(ctx context.Context) error {
	if r.State() == StateClosed {
		return fmt.Errorf("connection closed")
	}
	r.setState(StateReconnecting)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.policy.InitialInterval
	b.MaxInterval = r.policy.MaxInterval
	b.Multiplier = r.policy.Multiplier
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	attempt := 0
	operation := func() error {
		attempt++
		r.setState(StateConnecting)
		if err := r.dial(ctx); err != nil {
			r.setState(StateReconnecting)
			return err
		}
		return nil
	}
	notify := func(err error, next time.Duration) {
		r.log.Warn("reconnect attempt failed",
			"attempt", attempt,
			"retry_in", next.String(),
			"error", err.Error())
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, r.policy.MaxAttempts-1), ctx)

	var err error
	if r.timer != nil {
		err = backoff.RetryNotifyWithTimer(operation, policy, notify, r.timer)
	} else {
		err = backoff.RetryNotify(operation, policy, notify)
	}
	if err != nil {
		r.setState(StateFailed)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w after %d attempts: %v", ErrReconnectExhausted, attempt, err)
	}

	r.setState(StateAuthenticated)
	if r.restore != nil {
		if err := r.restore(ctx); err != nil {
			return err
		}
	}
	r.setState(StateActive)
	return nil
}

// Close parks the machine terminally; further dials are refused
func (r *Reconnector) Close() {
	r.setState(StateClosed)
}
