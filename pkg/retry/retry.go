package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"docharvest/pkg/config"
	errs "docharvest/pkg/errors"
	"docharvest/pkg/logger"
)

// Operation is a function that performs an operation that might need retrying
type Operation func(ctx context.Context) error

// OperationWithResult is a function that returns a result and might need retrying
type OperationWithResult[T any] func(ctx context.Context) (T, error)

// Config holds retry configuration
type Config struct {
	// MaxAttempts is the maximum number of attempts (0 means unlimited)
	MaxAttempts int
	// Backoff strategy to use
	Backoff BackoffStrategy
	// ByType overrides Backoff for errors of a given type
	ByType map[errs.ErrorType]BackoffStrategy
	// RetryIf determines if an error should be retried
	RetryIf func(error) bool
	// OnRetry is called before each retry attempt
	OnRetry func(attempt int, err error, delay time.Duration)
	Clock   clockwork.Clock
	Logger  logger.Logger
}

// DefaultConfig returns a retry configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		Backoff:     DefaultExponentialBackoff(),
		ByType: map[errs.ErrorType]BackoffStrategy{
			errs.ErrorTypeRateLimit: RateLimitBackoff(),
		},
		RetryIf: DefaultRetryIf,
		Clock:   clockwork.NewRealClock(),
		Logger:  logger.GetLogger(),
	}
}

// FromRateLimit builds a retry configuration from the rate_limit section
func FromRateLimit(cfg *config.RateLimitConfig, log logger.Logger) *Config {
	c := DefaultConfig()
	c.MaxAttempts = cfg.MaxRetries + 1
	c.Backoff = &ExponentialBackoff{
		BaseDelay:    cfg.RetryDelay,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
	if log != nil {
		c.Logger = log
	}
	return c
}

// DefaultRetryIf is the default retry predicate
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var typed *errs.Error
	if errors.As(err, &typed) {
		return errs.IsRetryable(typed.Type)
	}

	// Default to retrying unknown errors
	return true
}

func (c *Config) backoffFor(err error) BackoffStrategy {
	if b, ok := c.ByType[errs.TypeOf(err)]; ok {
		return b
	}
	if c.Backoff == nil {
		return DefaultExponentialBackoff()
	}
	return c.Backoff
}

// Do executes an operation with retry logic
func Do(ctx context.Context, op Operation, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		if cfg.MaxAttempts > 0 && attempt > cfg.MaxAttempts {
			log.ErrorWithFields("Max retry attempts exceeded", map[string]interface{}{
				"attempts":   attempt - 1,
				"last_error": lastErr.Error(),
			})
			return fmt.Errorf("max retry attempts (%d) exceeded: %w", cfg.MaxAttempts, lastErr)
		}

		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				log.DebugWithFields("Operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}
		lastErr = err

		if !retryIf(err) {
			return err
		}

		delay := cfg.backoffFor(err).NextDelay(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}

		log.WarnWithFields("Retrying operation", map[string]interface{}{
			"attempt":      attempt,
			"error":        err.Error(),
			"delay":        delay,
			"max_attempts": cfg.MaxAttempts,
		})

		if err := Wait(ctx, clock, delay); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}
	}
}

// DoWithResult executes an operation that returns a result with retry logic
func DoWithResult[T any](ctx context.Context, op OperationWithResult[T], cfg *Config) (T, error) {
	var result T

	err := Do(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	}, cfg)

	return result, err
}
