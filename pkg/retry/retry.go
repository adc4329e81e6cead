// Package retry runs an operation with bounded exponential back-off and jitter.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"

	"golang-autotrader/pkg/logger"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 2 * time.Second
	DefaultMultiplier = 2.0
	// RandomizationFactor spreads each delay over [0.5, 1.5] of its nominal value.
	RandomizationFactor = 0.5
	MinJitter           = 1 - RandomizationFactor
	MaxJitter           = 1 + RandomizationFactor
)

// ErrEmptyResult marks a call that succeeded but returned nothing usable.
var ErrEmptyResult = errors.New("empty result")

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// IsPermanent reports whether err, or anything it wraps, was marked Permanent.
func IsPermanent(err error) bool {
	var p *backoff.PermanentError
	return errors.As(err, &p)
}

// Config controls the back-off schedule. A zero BaseDelay means DefaultBaseDelay.
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
	Logger     *logger.Logger

	// Sleep and Jitter are swapped out by tests. Sleep must only fail once ctx is done.
	Sleep  func(ctx context.Context, d time.Duration) error
	Jitter func() float64
}

// fixedJitter replaces the randomization of the wrapped schedule with a caller-supplied factor.
type fixedJitter struct {
	backoff.BackOff
	jitter func() float64
}

func (f *fixedJitter) NextBackOff() time.Duration {
	d := f.BackOff.NextBackOff()
	if d == backoff.Stop {
		return d
	}
	j := math.Max(MinJitter, math.Min(MaxJitter, f.jitter()))
	return time.Duration(float64(d) * j)
}

// sleepTimer drives back-off waits through Config.Sleep.
type sleepTimer struct {
	ctx   context.Context
	sleep func(ctx context.Context, d time.Duration) error
	c     chan time.Time
}

func (t *sleepTimer) Start(d time.Duration) {
	if err := t.sleep(t.ctx, d); err == nil {
		t.c <- time.Now()
	}
}

func (t *sleepTimer) Stop() {}

func (t *sleepTimer) C() <-chan time.Time { return t.c }

func newBackOff(ctx context.Context, cfg Config) backoff.BackOff {
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	base := cfg.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = base
	exp.Multiplier = DefaultMultiplier
	exp.RandomizationFactor = RandomizationFactor
	exp.MaxInterval = time.Duration(float64(base) * math.Pow(DefaultMultiplier, float64(maxRetries)))
	exp.MaxElapsedTime = 0

	var b backoff.BackOff = exp
	if cfg.Jitter != nil {
		exp.RandomizationFactor = 0
		b = &fixedJitter{BackOff: exp, jitter: cfg.Jitter}
	}
	exp.Reset()
	if maxRetries == 0 {
		// WithMaxRetries treats zero as unlimited
		b = &backoff.StopBackOff{}
	}

	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxRetries)), ctx)
}

// Do calls fn once and then up to MaxRetries more times while it keeps failing
// with a retryable error. It returns the last error when every attempt failed.
func Do[T any](ctx context.Context, cfg Config, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}

	var (
		zero    T
		attempt int
		lastErr error
	)
	operation := func() (T, error) {
		if err := ctx.Err(); err != nil {
			return zero, backoff.Permanent(err)
		}
		attempt++
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if IsPermanent(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			log.WarnContext(ctx, "Non-retryable failure, giving up",
				logger.StringField("operation", op),
				logger.IntField("attempt", attempt),
				logger.ErrorField(err),
			)
			return zero, backoff.Permanent(err)
		}
		return zero, err
	}
	notify := func(err error, delay time.Duration) {
		log.WarnContext(ctx, "Attempt failed, retrying",
			logger.StringField("operation", op),
			logger.IntField("attempt", attempt),
			logger.IntField("max_retries", cfg.MaxRetries),
			logger.DurationField("delay", delay),
			logger.ErrorField(err),
		)
	}

	var timer backoff.Timer
	if cfg.Sleep != nil {
		timer = &sleepTimer{ctx: ctx, sleep: cfg.Sleep, c: make(chan time.Time, 1)}
	}

	result, err := backoff.RetryNotifyWithTimerAndData[T](operation, newBackOff(ctx, cfg), notify, timer)
	if err == nil {
		return result, nil
	}
	switch {
	case IsPermanent(lastErr):
		// keep the Permanent marker the caller attached
		return zero, lastErr
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		if lastErr != nil && !errors.Is(lastErr, err) {
			return zero, fmt.Errorf("%s: %w (last error: %v)", op, err, lastErr)
		}
		if lastErr == nil {
			return zero, fmt.Errorf("%s: %w", op, err)
		}
		return zero, err
	}

	log.ErrorContext(ctx, "All attempts failed",
		logger.StringField("operation", op),
		logger.IntField("attempts", attempt),
		logger.ErrorField(err),
	)
	return zero, err
}
