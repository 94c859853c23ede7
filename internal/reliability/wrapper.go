// Package reliability provides the decorator every external dependency is
// called through: bounded retry with exponential backoff plus a per-dependency
// circuit breaker.
//
// Breaker state graph:
//
//	CLOSED ──(threshold consecutive failures, or one fatal error)──► OPEN
//	OPEN ──(cooldown elapsed)──► HALF_OPEN
//	HALF_OPEN ──(probe ok)──► CLOSED
//	HALF_OPEN ──(probe failed)──► OPEN (cooldown doubled, capped)
package reliability

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jobscout-dev/jobscout/internal/utils"
)

// State is the circuit state of a wrapper.
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

// ErrCircuitOpen is returned without invoking the underlying operation while
// the circuit is open.
var ErrCircuitOpen = errors.New("circuit is open")

// Classifier reports whether an error from the wrapped operation is worth
// retrying. Non-retryable errors trip the circuit immediately.
type Classifier func(error) bool

// Event describes a circuit trip out of the CLOSED state.
type Event struct {
	Dependency string
	Reason     error
	At         time.Time
	Cooldown   time.Duration
}

// Config holds the retry and breaker policy. Zero values fall back to
// defaults.
type Config struct {
	// MaxRetries is the total number of attempts per call (default 3).
	MaxRetries int
	// BaseDelay is the backoff before the second attempt (default 1s),
	// doubled per attempt up to MaxDelay (default 30s).
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// FailureThreshold is the number of consecutive failed calls that opens
	// the circuit (default 5).
	FailureThreshold int
	// Cooldown is the initial open duration (default 1m), doubled on every
	// failed half-open probe up to MaxCooldown (default 15m).
	Cooldown    time.Duration
	MaxCooldown time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.Cooldown <= 0 {
		c.Cooldown = time.Minute
	}
	if c.MaxCooldown <= 0 {
		c.MaxCooldown = 15 * time.Minute
	}
	return c
}

// Overridable in tests.
var (
	waitFor = utils.WaitFor
	now     = time.Now
)

// Wrapper guards calls to one external dependency. All calls through the same
// wrapper serialize, so the breaker and backoff state is observed
// consistently even when postings are processed in parallel.
type Wrapper struct {
	name      string
	cfg       Config
	retryable Classifier
	onTrip    func(Event)
	logger    *zap.Logger

	mu          sync.Mutex
	state       State
	consecutive int
	openedAt    time.Time
	cooldown    time.Duration
}

// New creates a wrapper for the named dependency. retryable may be nil, in
// which case every error is treated as retryable. onTrip may be nil.
func New(name string, cfg Config, retryable Classifier, onTrip func(Event), logger *zap.Logger) *Wrapper {
	if retryable == nil {
		retryable = func(error) bool { return true }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	return &Wrapper{
		name:      name,
		cfg:       cfg,
		retryable: retryable,
		onTrip:    onTrip,
		logger:    logger.With(zap.String("dependency", name)),
		state:     StateClosed,
		cooldown:  cfg.Cooldown,
	}
}

// Name returns the dependency name.
func (w *Wrapper) Name() string { return w.name }

// State returns the current circuit state, accounting for an elapsed
// cooldown.
func (w *Wrapper) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateOpen && now().Sub(w.openedAt) >= w.cooldown {
		return StateHalfOpen
	}
	return w.state
}

// Do runs op through the retry and breaker policy. The wrapper lock is held
// for the whole call: one in-flight operation per dependency.
func (w *Wrapper) Do(ctx context.Context, op func(context.Context) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == StateOpen {
		if now().Sub(w.openedAt) < w.cooldown {
			return fmt.Errorf("%s: %w", w.name, ErrCircuitOpen)
		}
		w.state = StateHalfOpen
		w.logger.Info("circuit half-open, allowing probe call")
	}

	attempts := w.cfg.MaxRetries
	if w.state == StateHalfOpen {
		// Exactly one probe while half-open.
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := w.backoff(attempt)
			w.logger.Warn("retrying after transient failure",
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", attempts),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			if err := waitFor(ctx, delay); err != nil {
				return err
			}
		}

		err := op(ctx)
		if err == nil {
			w.succeed()
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		lastErr = err
		if !w.retryable(err) {
			w.logger.Warn("non-retryable failure, tripping circuit", zap.Error(err))
			w.trip(err)
			return err
		}
	}

	w.fail(lastErr)
	return lastErr
}

// Call runs a value-returning operation through the wrapper.
func Call[T any](ctx context.Context, w *Wrapper, op func(context.Context) (T, error)) (T, error) {
	var result T
	err := w.Do(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	return result, err
}

func (w *Wrapper) backoff(attempt int) time.Duration {
	delay := w.cfg.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	if delay > w.cfg.MaxDelay {
		delay = w.cfg.MaxDelay
	}
	return delay
}

// succeed resets the breaker. Caller holds the lock.
func (w *Wrapper) succeed() {
	if w.state != StateClosed {
		w.logger.Info("circuit closed after successful probe")
	}
	w.state = StateClosed
	w.consecutive = 0
	w.cooldown = w.cfg.Cooldown
}

// fail records an exhausted call. Caller holds the lock.
func (w *Wrapper) fail(err error) {
	w.consecutive++
	if w.state == StateHalfOpen {
		w.reopen(err)
		return
	}
	if w.consecutive >= w.cfg.FailureThreshold {
		w.trip(err)
	}
}

// trip opens the circuit. A trip out of CLOSED emits an event for the
// orchestrator. Caller holds the lock.
func (w *Wrapper) trip(err error) {
	if w.state == StateHalfOpen {
		w.reopen(err)
		return
	}

	wasClosed := w.state == StateClosed
	w.state = StateOpen
	w.openedAt = now()
	w.consecutive = 0

	w.logger.Warn("circuit opened",
		zap.Duration("cooldown", w.cooldown),
		zap.Error(err),
	)

	if wasClosed && w.onTrip != nil {
		w.onTrip(Event{
			Dependency: w.name,
			Reason:     err,
			At:         w.openedAt,
			Cooldown:   w.cooldown,
		})
	}
}

// reopen puts a failed half-open probe back to OPEN with a doubled cooldown.
// Caller holds the lock.
func (w *Wrapper) reopen(err error) {
	w.state = StateOpen
	w.openedAt = now()
	w.consecutive = 0
	w.cooldown *= 2
	if w.cooldown > w.cfg.MaxCooldown {
		w.cooldown = w.cfg.MaxCooldown
	}

	w.logger.Warn("probe failed, circuit re-opened",
		zap.Duration("cooldown", w.cooldown),
		zap.Error(err),
	)
}
