package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/pkg/config"
)

// RetryObserver is notified for every retried attempt.
type RetryObserver interface {
	ObserveDBRetry(operation string)
}

// Retrier re-runs data-store operations that failed with a transient error.
// Non-transient errors are returned after the first attempt.
type Retrier struct {
	maxAttempts     uint
	initialInterval time.Duration
	maxInterval     time.Duration
	logger          *zap.Logger
	observer        RetryObserver
}

// NewRetrier builds a Retrier from configuration.
func NewRetrier(cfg config.RetryConfig, logger *zap.Logger, observer RetryObserver) *Retrier {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval < cfg.InitialInterval {
		cfg.MaxInterval = cfg.InitialInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrier{
		maxAttempts:     uint(cfg.MaxAttempts),
		initialInterval: cfg.InitialInterval,
		maxInterval:     cfg.MaxInterval,
		logger:          logger,
		observer:        observer,
	}
}

// NoRetry returns a Retrier that runs every operation exactly once.
func NoRetry() *Retrier {
	return NewRetrier(config.RetryConfig{MaxAttempts: 1}, nil, nil)
}

// Do runs fn until it succeeds, fails permanently, the attempt budget is spent or ctx ends.
func (r *Retrier) Do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	if r == nil {
		return fn(ctx)
	}
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := fn(ctx)
		if err == nil {
			return struct{}{}, nil
		}
		if !IsTransient(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		if uint(attempt) < r.maxAttempts {
			r.logger.Warn("transient data store failure, retrying",
				zap.String("operation", operation),
				zap.Int("attempt", attempt),
				zap.Error(err))
			if r.observer != nil {
				r.observer.ObserveDBRetry(operation)
			}
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(r.newBackOff()),
		backoff.WithMaxTries(r.maxAttempts),
		backoff.WithMaxElapsedTime(0),
	)
	return err
}

func (r *Retrier) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialInterval
	b.MaxInterval = r.maxInterval
	return b
}

// IsTransient reports whether err is a connectivity or serialization failure worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code.Class() == "08" {
			return true
		}
		switch pqErr.Code {
		case "57P01", "57P02", "57P03", "40001", "40P01":
			return true
		}
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// IsUniqueViolation reports whether err is a Postgres unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
