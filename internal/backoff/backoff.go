package backoff

import (
	"context"
	"time"

	"github.com/LeventeLantos/whatsapp-dispatcher/internal/client"
)

const (
	DefaultMaxAttempts = 3
	DefaultBase        = 4
	DefaultUnit        = time.Second
)

// Policy retries rate limited and transient sends with exponential waits of
// Unit * Base^n, n counting from zero. MaxAttempts bounds the total number of attempts.
type Policy struct {
	MaxAttempts int
	Base        int
	Unit        time.Duration

	// Sleep waits for d or until ctx is done. Tests swap it for a recorder.
	Sleep func(ctx context.Context, d time.Duration) error
}

func Default() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		Base:        DefaultBase,
		Unit:        DefaultUnit,
	}
}

type RetryState struct {
	Attempts int
	LastWait time.Duration
}

// Execute runs attempt until it succeeds, fails with a terminal class, the
// attempt budget is spent or ctx ends during a wait. The last result is returned.
func (p Policy) Execute(ctx context.Context, attempt func() client.Result) (client.Result, RetryState) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var (
		res   client.Result
		state RetryState
	)
	for {
		res = attempt()
		state.Attempts++

		if res.Success || !res.Class.Retryable() || state.Attempts >= maxAttempts {
			return res, state
		}

		wait := p.Wait(state.Attempts - 1)
		state.LastWait = wait
		if err := sleep(ctx, wait); err != nil {
			return res, state
		}
	}
}

// Wait returns the pause that follows the n-th failed attempt, n from zero.
func (p Policy) Wait(n int) time.Duration {
	base := p.Base
	if base < 1 {
		base = 1
	}
	d := p.Unit
	for i := 0; i < n; i++ {
		d *= time.Duration(base)
	}
	return d
}

// Sleep blocks for d, returning ctx.Err() early if ctx is done first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
