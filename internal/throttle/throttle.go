// Package throttle serializes outbound API calls through a single paced queue.
//
// A Throttler owns one driver goroutine. Tasks are dispatched strictly in
// enqueue order, at most rps per second, and a task that fails with a
// retryable error is retried in place (blocking the queue) with exponential
// backoff until its dedupe key exhausts the retry budget.
package throttle

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/starford/gapmap/internal/metrics"
)

const (
	// DefaultRPS is the Notion API budget of three requests per second.
	DefaultRPS = 3
	// DefaultMaxRetries bounds in-place retries per dedupe key.
	DefaultMaxRetries = 5

	baseBackoff = time.Second
	maxBackoff  = 30 * time.Second
)

// ErrClosed is returned for tasks enqueued after Close.
var ErrClosed = errors.New("throttle: closed")

// retryHinter is implemented by errors carrying a server-suggested delay.
type retryHinter interface {
	RetryAfter() time.Duration
}

// Task is a unit of outbound work.
type Task func(ctx context.Context) error

type job struct {
	ctx  context.Context
	key  string
	task Task
	done chan error
}

// Throttler paces and retries tasks. The zero value is not usable; call New.
type Throttler struct {
	limiter     *rate.Limiter
	clock       Clock
	maxRetries  int
	isRetryable func(error) bool
	logger      *slog.Logger

	mu      sync.Mutex
	queue   []*job
	retries map[string]int
	closed  bool

	wake    chan struct{}
	stopCh  chan struct{}
	stopped chan struct{}
}

// Option configures a Throttler.
type Option func(*Throttler)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(t *Throttler) { t.clock = c }
}

// WithRetryable sets the predicate deciding which errors are retried.
func WithRetryable(fn func(error) bool) Option {
	return func(t *Throttler) { t.isRetryable = fn }
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(t *Throttler) { t.logger = l }
}

// New starts a Throttler dispatching at most rps tasks per second.
func New(rps float64, maxRetries int, opts ...Option) *Throttler {
	if rps <= 0 {
		rps = DefaultRPS
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	t := &Throttler{
		limiter:     rate.NewLimiter(rate.Limit(rps), 1),
		clock:       realClock{},
		maxRetries:  maxRetries,
		isRetryable: func(error) bool { return false },
		logger:      slog.Default(),
		retries:     make(map[string]int),
		wake:        make(chan struct{}, 1),
		stopCh:      make(chan struct{}),
		stopped:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	go t.run()
	return t
}

// Enqueue appends task to the queue and blocks until it has run (including
// retries) or ctx is done. key identifies the logical request for retry
// accounting.
func (t *Throttler) Enqueue(ctx context.Context, key string, task Task) error {
	j := &job{ctx: ctx, key: key, task: task, done: make(chan error, 1)}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	t.queue = append(t.queue, j)
	metrics.ThrottleQueueDepth.Set(float64(len(t.queue)))
	t.mu.Unlock()

	select {
	case t.wake <- struct{}{}:
	default:
	}

	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the driver loop. Queued tasks fail with ErrClosed.
func (t *Throttler) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		<-t.stopped
		return
	}
	t.closed = true
	t.mu.Unlock()
	close(t.stopCh)
	<-t.stopped
}

func (t *Throttler) run() {
	defer close(t.stopped)
	for {
		j, ok := t.pop()
		if !ok {
			select {
			case <-t.stopCh:
				t.drain()
				return
			case <-t.wake:
				continue
			}
		}
		j.done <- t.execute(j)
	}
}

func (t *Throttler) pop() (*job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.queue) == 0 {
		return nil, false
	}
	j := t.queue[0]
	t.queue[0] = nil
	t.queue = t.queue[1:]
	metrics.ThrottleQueueDepth.Set(float64(len(t.queue)))
	return j, true
}

func (t *Throttler) drain() {
	t.mu.Lock()
	pending := t.queue
	t.queue = nil
	t.mu.Unlock()
	for _, j := range pending {
		j.done <- ErrClosed
	}
}

// execute dispatches j, retrying in place while the error is retryable.
func (t *Throttler) execute(j *job) error {
	for {
		if err := j.ctx.Err(); err != nil {
			return err
		}
		if err := t.pace(j.ctx); err != nil {
			return err
		}

		err := j.task(j.ctx)
		if err == nil {
			t.resetRetries(j.key)
			return nil
		}
		if !t.isRetryable(err) {
			t.resetRetries(j.key)
			return err
		}

		attempt, ok := t.nextAttempt(j.key)
		if !ok {
			t.logger.Warn("throttle: retries exhausted",
				slog.String("key", j.key),
				slog.Int("max_retries", t.maxRetries),
				slog.String("error", err.Error()))
			return err
		}

		delay := Backoff(attempt)
		var hint retryHinter
		if errors.As(err, &hint) && hint.RetryAfter() > delay {
			delay = min(hint.RetryAfter(), maxBackoff)
		}
		metrics.ThrottleRetries.Inc()
		t.logger.Warn("throttle: retrying",
			slog.String("key", j.key),
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()))
		if err := t.clock.Sleep(j.ctx, delay); err != nil {
			t.resetRetries(j.key)
			return err
		}
	}
}

// pace waits until the limiter allows the next dispatch.
func (t *Throttler) pace(ctx context.Context) error {
	now := t.clock.Now()
	r := t.limiter.ReserveN(now, 1)
	if !r.OK() {
		return errors.New("throttle: reservation exceeds burst")
	}
	return t.clock.Sleep(ctx, r.DelayFrom(now))
}

// nextAttempt returns the zero-based retry attempt for key, or false when
// the key has used its budget.
func (t *Throttler) nextAttempt(key string) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := t.retries[key]
	if n >= t.maxRetries {
		delete(t.retries, key)
		return n, false
	}
	t.retries[key] = n + 1
	return n, true
}

func (t *Throttler) resetRetries(key string) {
	t.mu.Lock()
	delete(t.retries, key)
	t.mu.Unlock()
}

// Backoff returns min(2^attempt * 1s, 30s).
func Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 5 {
		return maxBackoff
	}
	d := baseBackoff * time.Duration(1<<attempt)
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
