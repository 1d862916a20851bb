package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

type Operation = func(attempt int) error

type Config struct {
	// Attempts is the total number of tries, including the first one.
	Attempts      int
	BackoffFactor float64
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	Jitter        time.Duration
}

func NewDefaultConfig() *Config {
	return &Config{
		Attempts:      3,
		BackoffFactor: 2,
		InitialDelay:  300 * time.Millisecond,
		MaxDelay:      20 * time.Second,
		Jitter:        50 * time.Millisecond,
	}
}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err so that Do stops without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type Retrier struct {
	config *Config
	rnd    *rand.Rand
}

func NewRetrier(config *Config) *Retrier {
	if config.Attempts <= 0 {
		config.Attempts = 1
	}
	return &Retrier{
		config: config,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func NewDefaultRetrier() *Retrier {
	return NewRetrier(NewDefaultConfig())
}

func (r *Retrier) Attempts() int {
	return r.config.Attempts
}

// Delay returns the pause that follows the given zero-based attempt.
func (r *Retrier) Delay(attempt int) time.Duration {
	if r.config.InitialDelay <= 0 {
		return 0
	}

	delay := r.config.InitialDelay
	for i := 0; i < attempt; i++ {
		delay = time.Duration(float64(delay) * r.config.BackoffFactor)
		if r.config.MaxDelay > 0 && delay > r.config.MaxDelay {
			delay = r.config.MaxDelay
			break
		}
	}

	if r.config.Jitter > 0 {
		delay += time.Duration(r.rnd.Float64() * float64(r.config.Jitter))
	}
	return delay
}

// Wait blocks for Delay(attempt) or until ctx is done.
func (r *Retrier) Wait(ctx context.Context, attempt int) error {
	delay := r.Delay(attempt)
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (r *Retrier) Do(ctx context.Context, op Operation) error {
	var err error
	for attempt := 0; attempt < r.config.Attempts; attempt++ {
		err = op(attempt)
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}

		if attempt == r.config.Attempts-1 {
			return err
		}

		if werr := r.Wait(ctx, attempt); werr != nil {
			return werr
		}
	}
	return err
}
