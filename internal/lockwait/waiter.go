// Package lockwait blocks until a freshly built file is no longer held
// exclusively by the toolchain that produced it.
package lockwait

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"hotreload/internal/domain"
	"hotreload/internal/logging"
)

const (
	DefaultMaxAttempts     = 5
	DefaultInitialInterval = 100 * time.Millisecond
	backoffMultiplier      = 2
	maxInterval            = time.Minute
)

// Probe tries to open path for shared reading and releases it again.
type Probe func(path string) error

// Options controls the retry policy. Zero values select the defaults.
type Options struct {
	MaxAttempts     int
	InitialInterval time.Duration
	Probe           Probe
	IsTransient     func(error) bool
	Logger          *logging.Logger

	// timer replaces the backoff sleep in tests.
	timer backoff.Timer
}

// Waiter polls a file until a probe succeeds or the attempt budget runs out.
type Waiter struct {
	maxAttempts     int
	initialInterval time.Duration
	probe           Probe
	isTransient     func(error) bool
	logger          *logging.Logger
	timer           backoff.Timer
}

func New(options Options) *Waiter {
	maxAttempts := options.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	interval := options.InitialInterval
	if interval <= 0 {
		interval = DefaultInitialInterval
	}
	probe := options.Probe
	if probe == nil {
		probe = ProbeShared
	}
	isTransient := options.IsTransient
	if isTransient == nil {
		isTransient = IsTransient
	}
	return &Waiter{
		maxAttempts:     maxAttempts,
		initialInterval: interval,
		probe:           probe,
		isTransient:     isTransient,
		logger:          options.Logger,
		timer:           options.timer,
	}
}

// Wait returns nil as soon as a probe of path succeeds. A non-transient probe
// failure returns immediately with kind ProbeFailed; running out of attempts
// returns kind LockRetryExhausted wrapping the last probe error. Cancelling ctx
// interrupts a backoff sleep and returns ctx.Err().
func (w *Waiter) Wait(ctx context.Context, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	attempt := 0
	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		attempt++
		err := w.probe(path)
		if err == nil {
			w.logDebug("file accessible", path, attempt)
			return nil
		}
		if !w.isTransient(err) {
			return backoff.Permanent(&domain.OpError{
				Op:   "lockwait.wait",
				Kind: domain.KindProbeFailed,
				Path: path,
				Err:  err,
			})
		}
		return err
	}

	notify := func(err error, delay time.Duration) {
		w.logInfo("file locked; retrying", map[string]string{
			"path":    path,
			"attempt": strconv.Itoa(attempt),
			"delay":   delay.String(),
			"error":   err.Error(),
		})
	}

	err := backoff.RetryNotifyWithTimer(operation, w.schedule(ctx), notify, w.timer)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if domain.IsKind(err, domain.KindProbeFailed) {
		return err
	}
	return &domain.OpError{
		Op:   "lockwait.wait",
		Kind: domain.KindLockRetryExhausted,
		Path: path,
		Err:  fmt.Errorf("gave up after %d attempts: %w", attempt, err),
	}
}

// schedule yields InitialInterval, doubling after each attempt, for at most
// MaxAttempts-1 sleeps.
func (w *Waiter) schedule(ctx context.Context) backoff.BackOff {
	exponential := backoff.NewExponentialBackOff()
	exponential.InitialInterval = w.initialInterval
	exponential.Multiplier = backoffMultiplier
	exponential.RandomizationFactor = 0
	exponential.MaxInterval = maxInterval
	exponential.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(exponential, uint64(w.maxAttempts-1)), ctx)
}

func (w *Waiter) logInfo(message string, fields map[string]string) {
	if w == nil || w.logger == nil {
		return
	}
	w.logger.Info(message, fields)
}

func (w *Waiter) logDebug(message, path string, attempt int) {
	if w == nil || w.logger == nil {
		return
	}
	w.logger.Debug(message, map[string]string{
		"path":    path,
		"attempt": strconv.Itoa(attempt),
	})
}
