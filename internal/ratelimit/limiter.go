// Package ratelimit limits submissions per client key. Redis backends share
// state across gateway instances and evict by TTL; memory backends serve a
// single instance and purge expired entries lazily.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// KeyPrefix namespaces every Redis key the limiters write.
const KeyPrefix = "leadgate:ratelimit:"

// ErrLimiterUnavailable wraps backend failures. Callers decide whether to
// fail open.
var ErrLimiterUnavailable = errors.New("rate limiter unavailable")

// Policy describes one limit: at most Limit requests per Window. A positive
// Block makes the sliding window limiters reject a key for that long after
// it hits the limit.
type Policy struct {
	Name   string
	Limit  int
	Window time.Duration
	Block  time.Duration
}

func (p Policy) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("policy name is required")
	}
	if p.Limit <= 0 {
		return fmt.Errorf("policy %s: limit must be positive", p.Name)
	}
	if p.Window <= 0 {
		return fmt.Errorf("policy %s: window must be positive", p.Name)
	}
	if p.Block < 0 {
		return fmt.Errorf("policy %s: block must not be negative", p.Name)
	}
	return nil
}

// Decision is the outcome of one Allow call. RetryAfter is set on rejection.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Option configures a limiter.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrLimiterUnavailable, op, err)
}

func rejected(retryAfter time.Duration) Decision {
	if retryAfter < 0 {
		retryAfter = 0
	}
	return Decision{Allowed: false, RetryAfter: retryAfter}
}
