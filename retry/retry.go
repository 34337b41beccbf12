// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package retry provides the bounded retry policy applied to external calls.
//
// A Policy is a plain value injected into each stage executor. It caps the
// number of attempts, spaces them on an exponential schedule, bounds each
// attempt with a timeout, and stops early on errors that another attempt
// cannot fix (malformed responses, validation failures).
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/poiesic/kbflow/core"
)

// ErrInvalidMaxAttempts is returned when a policy allows no attempts.
var ErrInvalidMaxAttempts = errors.New("max attempts must be greater than 0")

// Policy describes how a unit of work is retried.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BaseDelay is the wait after the first failure. It doubles on each retry.
	BaseDelay time.Duration

	// MaxDelay caps a single wait. Zero means uncapped.
	MaxDelay time.Duration

	// CallTimeout bounds each attempt. Expiry is a retryable failure.
	// Zero means no per-attempt timeout.
	CallTimeout time.Duration

	// Retryable decides whether an error deserves another attempt.
	// Nil means IsRetryable.
	Retryable func(error) bool

	// NewTimer overrides the timer used between attempts. Tests use it to
	// observe the schedule without sleeping.
	NewTimer func() backoff.Timer

	// Logger receives a debug line per failed attempt. Nil means slog.Default().
	Logger *slog.Logger
}

// Validate checks the policy.
func (p Policy) Validate() error {
	if p.MaxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}
	if p.BaseDelay < 0 || p.MaxDelay < 0 || p.CallTimeout < 0 {
		return errors.New("retry: durations must not be negative")
	}
	return nil
}

// Do runs op until it succeeds, the attempts are exhausted, the error is not
// retryable, or ctx is done. It returns the number of attempts made and the
// last error. When ctx ends the wait, the context error is returned.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attempts := 0
	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		attempts++
		err := p.attempt(ctx, op)
		switch {
		case err == nil:
			if attempts > 1 {
				logger.Debug("operation succeeded after retry", "attempt", attempts)
			}
			return nil
		case ctx.Err() != nil:
			return backoff.Permanent(fmt.Errorf("%w (last error: %v)", ctx.Err(), err))
		case !retryable(err):
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logger.Debug("operation failed, will retry",
			"attempt", attempts, "maxAttempts", p.MaxAttempts, "wait", wait, "err", err)
	}

	schedule := backoff.WithContext(p.schedule(), ctx)
	var err error
	if p.NewTimer != nil {
		err = backoff.RetryNotifyWithTimer(operation, schedule, notify, p.NewTimer())
	} else {
		err = backoff.RetryNotify(operation, schedule, notify)
	}
	return attempts, err
}

// attempt runs op once under the per-call timeout. A timeout that fires
// while the parent context is still live is reported as a transient failure.
func (p Policy) attempt(ctx context.Context, op func(ctx context.Context) error) error {
	if p.CallTimeout <= 0 {
		return op(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, p.CallTimeout)
	defer cancel()

	err := op(callCtx)
	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) &&
		!errors.Is(err, core.ErrTransientExternal) {
		return fmt.Errorf("%w: call exceeded %s: %w", core.ErrTransientExternal, p.CallTimeout, err)
	}
	return err
}

// schedule builds the wait sequence: BaseDelay, 2*BaseDelay, 4*BaseDelay...
// capped at MaxDelay, with MaxAttempts-1 waits in total.
func (p Policy) schedule() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxElapsedTime = 0
	b.MaxInterval = p.MaxDelay
	if b.MaxInterval == 0 {
		b.MaxInterval = time.Duration(1<<63 - 1)
	}
	b.Reset()
	return backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1))
}

// Delays returns the waits Do would perform if every attempt failed.
func (p Policy) Delays() []time.Duration {
	if p.MaxAttempts <= 0 {
		return nil
	}
	s := p.schedule()
	var out []time.Duration
	for {
		d := s.NextBackOff()
		if d == backoff.Stop {
			return out
		}
		out = append(out, d)
	}
}

// IsRetryable reports whether err may succeed on another attempt.
// Malformed responses, validation failures and cancellation are final;
// everything else, including unclassified errors, is retried.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, core.ErrMalformedResponse),
		errors.Is(err, core.ErrValidation),
		errors.Is(err, core.ErrInvalidState),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}
