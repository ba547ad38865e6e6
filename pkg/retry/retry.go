// Package retry implements the retryable atomic block described by the
// concurrency model: every metadata mutation runs inside a block that
// re-executes its body a bounded number of times on a serialization
// conflict, with exponential backoff and jitter between attempts.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/shelfcloud/core/pkg/errors"
)

// Config controls backoff behavior and which codes are worth retrying.
type Config struct {
	// MaxAttempts is the total number of tries including the first one.
	// Defaults to 3; callers creating a file use 10.
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`

	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" json:"multiplier"`
	Jitter       bool          `yaml:"jitter" json:"jitter"`

	RetryableCodes []errors.Code `yaml:"retryable_codes" json:"retryable_codes"`

	OnRetry func(attempt int, err error, delay time.Duration) `yaml:"-" json:"-"`
}

// DefaultConfig is the atomic block's default: 3 attempts, the transient
// codes from pkg/errors, short exponential backoff with jitter.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 20 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
		RetryableCodes: []errors.Code{
			errors.CodeSerializationConflict,
			errors.CodeConnectionTimeout,
			errors.CodeConnectionFailed,
			errors.CodeNetworkError,
			errors.CodeOperationTimeout,
			errors.CodeResourceExhausted,
			errors.CodeWorkerBusy,
			errors.CodeInternalError,
		},
	}
}

// CreateFileConfig is DefaultConfig with the higher attempt budget
// CreateFile needs, since it races other creators over the same
// free-name resolution.
func CreateFileConfig() Config {
	c := DefaultConfig()
	c.MaxAttempts = 10
	return c
}

// Retryer executes a function body under the retry policy in Config.
type Retryer struct {
	config Config
}

func New(config Config) *Retryer {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 20 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 2 * time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}
	return &Retryer{config: config}
}

// Do runs fn, retrying on a retryable error up to MaxAttempts times.
// Nested atomic blocks must not call Do again for the same logical
// operation: the inner block is absorbed by the outer, which callers
// implement by threading a single top-level Do through their call chain
// rather than nesting.
func (r *Retryer) Do(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("atomic block canceled: %w", ctx.Err())
		default:
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !r.shouldRetry(err, attempt) {
			return err
		}

		if attempt < r.config.MaxAttempts {
			delay := r.calculateDelay(attempt)
			if r.config.OnRetry != nil {
				r.config.OnRetry(attempt, err, delay)
			}
			select {
			case <-ctx.Done():
				return fmt.Errorf("atomic block canceled after %d attempts: %w", attempt, ctx.Err())
			case <-time.After(delay):
			}
		}
	}

	return fmt.Errorf("atomic block exhausted %d attempts: %w", r.config.MaxAttempts, lastErr)
}

func (r *Retryer) shouldRetry(err error, attempt int) bool {
	if attempt >= r.config.MaxAttempts {
		return false
	}
	derr, ok := err.(*errors.Error)
	if !ok {
		return false
	}
	if derr.Retryable {
		return true
	}
	for _, code := range r.config.RetryableCodes {
		if derr.Code == code {
			return true
		}
	}
	return false
}

func (r *Retryer) calculateDelay(attempt int) time.Duration {
	delay := float64(r.config.InitialDelay) * math.Pow(r.config.Multiplier, float64(attempt-1))
	if delay > float64(r.config.MaxDelay) {
		delay = float64(r.config.MaxDelay)
	}
	if r.config.Jitter {
		delay += delay * 0.2 * (rand.Float64()*2 - 1)
	}
	return time.Duration(delay)
}

// WithMaxAttempts returns a copy of r with a different attempt budget; used
// by FileCore.CreateFile to switch to the 10-attempt policy.
func (r *Retryer) WithMaxAttempts(attempts int) *Retryer {
	cfg := r.config
	cfg.MaxAttempts = attempts
	return New(cfg)
}
