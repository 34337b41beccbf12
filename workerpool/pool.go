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


// Package workerpool bounds concurrent calls to rate-limited external services.
//
// A single Pool is shared by every stage executor, so its size is the total
// number of embedding and extraction calls in flight across all documents.
// Work is grouped into Batches: a stage submits one task per segment and
// waits for the batch, collecting every task error instead of stopping at the
// first. Submission blocks while all workers are busy.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/time/rate"
)

var (
	// ErrPoolClosed is returned when submitting to a released pool.
	ErrPoolClosed = errors.New("worker pool is closed")

	// ErrTaskPanicked wraps a panic recovered from a task.
	ErrTaskPanicked = errors.New("task panicked")
)

// Pool is a bounded worker pool with an optional call rate limit.
type Pool struct {
	pool    *ants.Pool
	limiter *rate.Limiter
	logger  *slog.Logger
}

// Option configures a Pool.
type Option func(*Pool) error

// WithRateLimit caps task starts at perSecond with the given burst.
// A non-positive rate disables the limit.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(p *Pool) error {
		if perSecond <= 0 {
			p.limiter = nil
			return nil
		}
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// New creates a pool with size workers. Sizes below 1 are raised to 1.
func New(size int, opts ...Option) (*Pool, error) {
	if size < 1 {
		size = 1
	}
	p := &Pool{logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "workerpool")

	pool, err := ants.NewPool(size, ants.WithLogger(antsLogger{p.logger}))
	if err != nil {
		return nil, err
	}
	p.pool = pool
	return p, nil
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.pool.Cap()
}

// Running returns the number of tasks currently executing.
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Release stops the pool, waiting up to timeout for running tasks.
func (p *Pool) Release(timeout time.Duration) error {
	if p.pool.IsClosed() {
		return nil
	}
	return p.pool.ReleaseTimeout(timeout)
}

// NewBatch starts a group of tasks that share ctx.
func (p *Pool) NewBatch(ctx context.Context) *Batch {
	return &Batch{pool: p, ctx: ctx}
}

// Batch tracks a group of tasks submitted to a Pool.
type Batch struct {
	pool *Pool
	ctx  context.Context
	wg   sync.WaitGroup

	mu   sync.Mutex
	errs []error
}

// Go submits fn, blocking while the pool is saturated. Task errors are
// collected for Wait; the returned error only reports a failed submission.
func (b *Batch) Go(fn func(ctx context.Context) error) error {
	if err := b.ctx.Err(); err != nil {
		return err
	}

	b.wg.Add(1)
	err := b.pool.pool.Submit(func() {
		defer b.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				b.pool.logger.Error("task panicked", "panic", r)
				b.record(fmt.Errorf("%w: %v", ErrTaskPanicked, r))
			}
		}()

		if b.pool.limiter != nil {
			if err := b.pool.limiter.Wait(b.ctx); err != nil {
				b.record(err)
				return
			}
		}
		if err := fn(b.ctx); err != nil {
			b.record(err)
		}
	})
	if err != nil {
		b.wg.Done()
		if errors.Is(err, ants.ErrPoolClosed) {
			return ErrPoolClosed
		}
		return fmt.Errorf("submit task: %w", err)
	}
	return nil
}

// Wait blocks until every submitted task has finished and returns their
// errors joined, or nil.
func (b *Batch) Wait() error {
	b.wg.Wait()
	b.mu.Lock()
	defer b.mu.Unlock()
	return errors.Join(b.errs...)
}

func (b *Batch) record(err error) {
	b.mu.Lock()
	b.errs = append(b.errs, err)
	b.mu.Unlock()
}

// antsLogger adapts slog.Logger to ants.Logger.
type antsLogger struct {
	logger *slog.Logger
}

func (l antsLogger) Printf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}
