// Package breaker implements a per-provider circuit breaker used to protect
// the service from cascading failures against upstream weather and LLM
// providers. Unlike a simple consecutive-failure counter, failures are
// tracked as timestamps in a rolling window: a provider that fails
// intermittently but recovers between failures never trips the breaker,
// while a burst of failures inside the window does.
//
// State machine:
//
//	Closed   --(failures >= threshold within window)--> Open
//	Open     --(cooldown elapsed)--------------------> HalfOpen
//	HalfOpen --(probe succeeds)-----------------------> Closed
//	HalfOpen --(probe fails)---------------------------> Open
package breaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is a circuit breaker state.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Value returns the Prometheus gauge encoding for the state (0/1/2).
func (s State) Value() float64 {
	switch s {
	case HalfOpen:
		return 1
	case Open:
		return 2
	default:
		return 0
	}
}

// ErrOpen is returned when a call is short-circuited because the breaker
// is open.
type ErrOpen struct {
	Provider string
}

func (e *ErrOpen) Error() string {
	return fmt.Sprintf("circuit breaker is open for %s — requests are being short-circuited", e.Provider)
}

// Config is a per-provider circuit breaker configuration.
type Config struct {
	FailureThreshold int           // failures within Window before opening
	Cooldown         time.Duration // how long Open is held before probing again
	Window           time.Duration // rolling window for counting failures
	Timeout          time.Duration // per-call timeout enforced by Call/CallWithResult
}

// ProviderConfigs holds the default configuration for every known upstream
// provider, mirroring the original service's PROVIDER_CONFIGS table.
var ProviderConfigs = map[string]Config{
	"tomorrow-io": {FailureThreshold: 3, Cooldown: 120 * time.Second, Window: 300 * time.Second, Timeout: 5 * time.Second},
	"open-meteo":  {FailureThreshold: 5, Cooldown: 300 * time.Second, Window: 300 * time.Second, Timeout: 8 * time.Second},
	"anthropic":   {FailureThreshold: 3, Cooldown: 300 * time.Second, Window: 600 * time.Second, Timeout: 15 * time.Second},
	"nominatim":   {FailureThreshold: 5, Cooldown: 180 * time.Second, Window: 300 * time.Second, Timeout: 10 * time.Second},
}

var defaultConfig = Config{FailureThreshold: 3, Cooldown: 120 * time.Second, Window: 300 * time.Second, Timeout: 8 * time.Second}

// OnStateChange is invoked whenever a breaker transitions between states.
type OnStateChange func(provider string, from, to State)

// Breaker is a single provider's circuit breaker.
type Breaker struct {
	provider string
	config   Config
	onChange OnStateChange
	logger   *zap.Logger

	mu           sync.Mutex
	state        State
	failures     []time.Time
	lastOpenedAt time.Time
}

// New creates a breaker for provider using cfg as given. The lookup of a
// provider's entry in ProviderConfigs happens in Registry.Get, not here.
func New(provider string, cfg Config, logger *zap.Logger, onChange OnStateChange) *Breaker {
	return &Breaker{
		provider: provider,
		config:   cfg,
		onChange: onChange,
		logger:   logger.With(zap.String("provider", provider), zap.String("component", "breaker")),
		state:    Closed,
	}
}

// State returns the current state, resolving an elapsed Open cooldown into
// HalfOpen as a side effect — matching the original's lazily-evaluated
// `state` property.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

func (b *Breaker) stateLocked() State {
	if b.state == Open && !b.lastOpenedAt.IsZero() && time.Since(b.lastOpenedAt) >= b.config.Cooldown {
		b.setStateLocked(HalfOpen)
	}
	return b.state
}

// IsAllowed reports whether a call may currently proceed.
func (b *Breaker) IsAllowed() bool {
	s := b.State()
	return s == Closed || s == HalfOpen
}

// Call executes fn through the breaker, enforcing the provider's timeout and
// recording the outcome. It returns *ErrOpen without calling fn if the
// circuit is open.
func (b *Breaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	if !b.IsAllowed() {
		return &ErrOpen{Provider: b.provider}
	}

	callCtx, cancel := context.WithTimeout(ctx, b.config.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(callCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			b.recordFailure()
			return err
		}
		b.recordSuccess()
		return nil
	case <-callCtx.Done():
		b.recordFailure()
		return fmt.Errorf("%s request timed out after %s: %w", b.provider, b.config.Timeout, callCtx.Err())
	}
}

// CallWithResult is Call's generic counterpart, returning a typed result.
func CallWithResult[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if !b.IsAllowed() {
		return zero, &ErrOpen{Provider: b.provider}
	}

	callCtx, cancel := context.WithTimeout(ctx, b.config.Timeout)
	defer cancel()

	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(callCtx)
		done <- outcome{v, err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			b.recordFailure()
			return zero, o.err
		}
		b.recordSuccess()
		return o.val, nil
	case <-callCtx.Done():
		b.recordFailure()
		return zero, fmt.Errorf("%s request timed out after %s: %w", b.provider, b.config.Timeout, callCtx.Err())
	}
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == HalfOpen {
		b.failures = nil
		b.lastOpenedAt = time.Time{}
		b.setStateLocked(Closed)
		b.logger.Info("circuit breaker closed — provider recovered")
	}
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.failures = append(b.failures, now)
	b.pruneLocked(now)

	switch b.state {
	case HalfOpen:
		b.lastOpenedAt = now
		b.setStateLocked(Open)
		b.logger.Warn("circuit breaker re-opened — probe failed")
	case Closed:
		if len(b.failures) >= b.config.FailureThreshold {
			b.lastOpenedAt = now
			b.setStateLocked(Open)
			b.logger.Warn("circuit breaker opened",
				zap.Int("failures", len(b.failures)),
				zap.Duration("window", b.config.Window),
			)
		}
	}
}

func (b *Breaker) pruneLocked(now time.Time) {
	kept := b.failures[:0]
	for _, t := range b.failures {
		if now.Sub(t) < b.config.Window {
			kept = append(kept, t)
		}
	}
	b.failures = kept
}

// Reset forces the breaker back to Closed, clearing its failure history.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = nil
	b.lastOpenedAt = time.Time{}
	b.setStateLocked(Closed)
}

func (b *Breaker) setStateLocked(to State) {
	if to == b.state {
		return
	}
	from := b.state
	b.state = to
	if b.onChange != nil {
		b.onChange(b.provider, from, to)
	}
}

// IsOpenError reports whether err is an *ErrOpen.
func IsOpenError(err error) bool {
	var e *ErrOpen
	return errors.As(err, &e)
}
