package retry

import (
	"context"
	"math"
	"time"
)

// Policy describes bounded retry with exponential backoff.
type Policy struct {
	MaxAttempts int
	Multiplier  float64
	Min         time.Duration
	Max         time.Duration

	// Sleep waits for d or until ctx is done. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry is called after every failed attempt that will be retried.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// Option configures Policy.
type Option func(*Policy)

// Operation is a single fallible attempt. attempt starts at 1.
type Operation func(ctx context.Context, attempt int) error

// Default returns 3 attempts, multiplier 1, waits clamped to [4s, 10s].
func Default() Policy {
	return Policy{
		MaxAttempts: 3,
		Multiplier:  1,
		Min:         4 * time.Second,
		Max:         10 * time.Second,
		Sleep:       sleepCtx,
	}
}

// New builds a policy from Default and the given options.
func New(opts ...Option) Policy {
	p := Default()
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// WithMaxAttempts sets the total number of attempts.
func WithMaxAttempts(n int) Option {
	return func(p *Policy) {
		if n > 0 {
			p.MaxAttempts = n
		}
	}
}

// WithBackoff sets multiplier, floor and ceiling.
func WithBackoff(multiplier float64, min, max time.Duration) Option {
	return func(p *Policy) {
		p.Multiplier = multiplier
		p.Min = min
		p.Max = max
	}
}

// WithSleep replaces the wait function.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Policy) {
		p.Sleep = sleep
	}
}

// WithOnRetry sets the failed-attempt hook.
func WithOnRetry(fn func(attempt int, wait time.Duration, err error)) Option {
	return func(p *Policy) {
		p.OnRetry = fn
	}
}

// maxWait is the largest whole-second time.Duration.
const maxWait = time.Duration(math.MaxInt64/int64(time.Second)) * time.Second

// Backoff returns the wait after the given failed attempt:
// min(Max, max(Min, Multiplier * 2^attempt seconds)). No jitter.
func (p Policy) Backoff(attempt int) time.Duration {
	secs := p.Multiplier * math.Pow(2, float64(attempt))
	// clamp in float64 first; large attempts overflow time.Duration
	if p.Max > 0 && secs >= p.Max.Seconds() {
		return p.Max
	}
	wait := maxWait
	if secs < maxWait.Seconds() {
		wait = time.Duration(secs * float64(time.Second))
	}
	if wait < p.Min {
		wait = p.Min
	}
	if p.Max > 0 && wait > p.Max {
		wait = p.Max
	}
	return wait
}

// Do runs op until it succeeds, attempts are exhausted, or ctx is done.
// Every error is treated as retryable. The last error is returned.
func (p Policy) Do(ctx context.Context, op Operation) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(ctx, attempt); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		wait := p.Backoff(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, wait, err)
		}
		if serr := sleep(ctx, wait); serr != nil {
			return err
		}
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
