package idforge

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
)

// Backoff selects how the delay between rejected attempts grows.
type Backoff uint8

const (
	// BackoffExponential waits 2^attempts units.
	BackoffExponential Backoff = iota
	// BackoffLinear waits 100*attempts units.
	BackoffLinear
)

// String returns the backoff name.
func (b Backoff) String() string {
	switch b {
	case BackoffExponential:
		return "exponential"
	case BackoffLinear:
		return "linear"
	default:
		return fmt.Sprintf("backoff(%d)", uint8(b))
	}
}

// ParseBackoff parses "exponential" or "linear".
func ParseBackoff(name string) (Backoff, error) {
	switch strings.ToLower(name) {
	case "exponential", "":
		return BackoffExponential, nil
	case "linear":
		return BackoffLinear, nil
	default:
		return 0, invalid("backoff", "%q is not linear or exponential", name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (b Backoff) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *Backoff) UnmarshalText(text []byte) error {
	parsed, err := ParseBackoff(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// Predicate decides whether a candidate is acceptable. Returning an error
// aborts the loop; it is not treated as a rejection.
type Predicate func(ctx context.Context, candidate string) (bool, error)

// GenerateFunc produces one candidate.
type GenerateFunc func() (string, error)

// DefaultBackoffUnit is the time unit backoff delays are counted in.
const DefaultBackoffUnit = time.Millisecond

// maxBackoffShift caps exponential growth so the delay cannot overflow.
const maxBackoffShift = 30

// CollisionStrategy configures one run of Safe.
type CollisionStrategy struct {
	// Name is used in diagnostics only.
	Name        string
	MaxAttempts int
	Backoff     Backoff
	Accept      Predicate

	// Unit scales backoff delays. Zero means DefaultBackoffUnit.
	Unit time.Duration

	// OnReject, when set, is called after every rejected candidate.
	OnReject func(candidate string, attempts int)

	Logger *slog.Logger
}

// Delay returns the wait after the given number of rejected attempts.
func (s CollisionStrategy) Delay(attempts int) time.Duration {
	unit := s.Unit
	if unit <= 0 {
		unit = DefaultBackoffUnit
	}
	var factor int64
	switch s.Backoff {
	case BackoffLinear:
		factor = 100 * int64(max(attempts, 0))
	default:
		factor = 1 << min(max(attempts, 0), maxBackoffShift)
	}
	if factor != 0 && unit > math.MaxInt64/time.Duration(factor) {
		return math.MaxInt64
	}
	return time.Duration(factor) * unit
}

func (s CollisionStrategy) validate() error {
	if s.MaxAttempts < 1 {
		return invalid("maxAttempts", "must be >= 1, got %d", s.MaxAttempts)
	}
	if s.Accept == nil {
		return invalid("accept", "predicate is required")
	}
	if s.Backoff != BackoffExponential && s.Backoff != BackoffLinear {
		return invalid("backoff", "%s is not supported", s.Backoff)
	}
	return nil
}

type loopState uint8

const (
	stateAttempting loopState = iota
	stateSucceeded
	stateExhausted
)

// Safe calls base until strategy.Accept approves a candidate, sleeping
// between rejections. It fails with *ExhaustedError after MaxAttempts
// rejections. Cancelling ctx interrupts the backoff wait.
func Safe(ctx context.Context, base GenerateFunc, strategy CollisionStrategy) (string, error) {
	if base == nil {
		return "", invalid("generator", "base generator is required")
	}
	if err := strategy.validate(); err != nil {
		return "", err
	}
	logger := strategy.Logger
	if logger == nil {
		logger = discardLogger
	}

	var (
		state     = stateAttempting
		attempts  int
		candidate string
	)
	for state == stateAttempting {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		var err error
		candidate, err = base()
		if err != nil {
			return "", fmt.Errorf("generate candidate (attempt %d): %w", attempts+1, err)
		}
		ok, err := strategy.Accept(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("collision predicate (attempt %d): %w", attempts+1, err)
		}
		if ok {
			state = stateSucceeded
			continue
		}

		attempts++
		if strategy.OnReject != nil {
			strategy.OnReject(candidate, attempts)
		}
		if attempts >= strategy.MaxAttempts {
			state = stateExhausted
			continue
		}

		delay := strategy.Delay(attempts)
		logger.Debug("candidate rejected",
			"strategy", strategy.Name,
			"attempt", attempts,
			"backoff", strategy.Backoff.String(),
			"delay", delay)
		if err := sleep(ctx, delay); err != nil {
			return "", err
		}
	}

	if state == stateExhausted {
		logger.Warn("collision attempts exhausted",
			"strategy", strategy.Name,
			"max_attempts", strategy.MaxAttempts)
		return "", &ExhaustedError{Strategy: strategy.Name, MaxAttempts: strategy.MaxAttempts}
	}
	return candidate, nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var discardLogger = slog.New(slog.DiscardHandler)
