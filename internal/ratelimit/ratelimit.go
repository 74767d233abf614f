package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	// ErrRateLimitExceeded means the caller used up its quota for the window.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInvalidInput means Allow was called with an empty key part or a
	// non-positive limit or window.
	ErrInvalidInput = errors.New("invalid rate limit input")
)

const keyPrefix = "rate_limit:"

// Policy is a throttling rule for one action.
type Policy struct {
	Action      string
	MaxRequests int
	Window      time.Duration
}

// CounterStore is the shared counter collaborator. Acquire must atomically
// increment key when its live value is below limit, creating it with the
// given ttl when absent, and report the resulting count. When the value is at
// or above limit it must leave the counter untouched and return acquired=false.
type CounterStore interface {
	Acquire(ctx context.Context, key string, limit int64, ttl time.Duration) (count int64, acquired bool, err error)
}

// Limiter decides whether a request may proceed.
type Limiter struct {
	store  CounterStore
	logger *slog.Logger
}

// NewLimiter creates a Limiter backed by store.
func NewLimiter(store CounterStore, logger *slog.Logger) *Limiter {
	return &Limiter{
		store:  store,
		logger: logger.With("component", "ratelimit"),
	}
}

// Key builds the counter key for an action and identifier.
func Key(action, identifier string) string {
	return keyPrefix + action + ":" + identifier
}

// Allow reports whether identifier may perform action once more within the
// current window. Store failures deny the request and are returned wrapped.
func (l *Limiter) Allow(ctx context.Context, identifier, action string, maxRequests int, window time.Duration) (bool, error) {
	if identifier == "" || action == "" || maxRequests <= 0 || window <= 0 {
		return false, fmt.Errorf("%w: identifier=%q action=%q max=%d window=%s",
			ErrInvalidInput, identifier, action, maxRequests, window)
	}

	count, acquired, err := l.store.Acquire(ctx, Key(action, identifier), int64(maxRequests), window)
	if err != nil {
		return false, fmt.Errorf("rate limit store: %w", err)
	}
	if !acquired {
		l.logger.Debug("Request denied", "action", action, "identifier", identifier, "count", count)
		return false, nil
	}
	return true, nil
}

// AllowPolicy is Allow with the limit and window taken from p.
func (l *Limiter) AllowPolicy(ctx context.Context, identifier string, p Policy) (bool, error) {
	return l.Allow(ctx, identifier, p.Action, p.MaxRequests, p.Window)
}
