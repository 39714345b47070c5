package ratelimit

import (
	"context"
	"sync"
	"time"
)

type fixedEntry struct {
	count   int
	resetAt time.Time
}

// MemoryFixedWindow is the in-process counterpart of RedisFixedWindow.
type MemoryFixedWindow struct {
	mu      sync.Mutex
	policy  Policy
	opts    options
	entries map[string]*fixedEntry
}

func NewMemoryFixedWindow(policy Policy, opts ...Option) *MemoryFixedWindow {
	return &MemoryFixedWindow{
		policy:  policy,
		opts:    buildOptions(opts),
		entries: make(map[string]*fixedEntry),
	}
}

func (l *MemoryFixedWindow) Allow(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.opts.now()
	for k, e := range l.entries {
		if !now.Before(e.resetAt) {
			delete(l.entries, k)
		}
	}

	e, ok := l.entries[key]
	if !ok {
		l.entries[key] = &fixedEntry{count: 1, resetAt: now.Add(l.policy.Window)}
		return Decision{Allowed: true, Remaining: l.policy.Limit - 1}, nil
	}
	if e.count >= l.policy.Limit {
		return rejected(e.resetAt.Sub(now)), nil
	}
	e.count++
	return Decision{Allowed: true, Remaining: l.policy.Limit - e.count}, nil
}

// Len reports how many keys are tracked.
func (l *MemoryFixedWindow) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

type slidingEntry struct {
	hits         []time.Time
	blockedUntil time.Time
}

// MemorySlidingWindow is the in-process counterpart of RedisSlidingWindow.
type MemorySlidingWindow struct {
	mu      sync.Mutex
	policy  Policy
	opts    options
	entries map[string]*slidingEntry
}

func NewMemorySlidingWindow(policy Policy, opts ...Option) *MemorySlidingWindow {
	return &MemorySlidingWindow{
		policy:  policy,
		opts:    buildOptions(opts),
		entries: make(map[string]*slidingEntry),
	}
}

func (l *MemorySlidingWindow) Allow(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.opts.now()
	l.purge(now)

	e, ok := l.entries[key]
	if !ok {
		e = &slidingEntry{}
		l.entries[key] = e
	}

	if now.Before(e.blockedUntil) {
		return rejected(e.blockedUntil.Sub(now)), nil
	}

	if len(e.hits) >= l.policy.Limit {
		if l.policy.Block > 0 {
			e.blockedUntil = now.Add(l.policy.Block)
			return rejected(l.policy.Block), nil
		}
		return rejected(e.hits[0].Add(l.policy.Window).Sub(now)), nil
	}

	e.hits = append(e.hits, now)
	return Decision{Allowed: true, Remaining: l.policy.Limit - len(e.hits)}, nil
}

// purge drops hits older than the window and forgets keys with nothing left.
func (l *MemorySlidingWindow) purge(now time.Time) {
	for k, e := range l.entries {
		kept := e.hits[:0]
		for _, ts := range e.hits {
			if now.Sub(ts) < l.policy.Window {
				kept = append(kept, ts)
			}
		}
		e.hits = kept
		if len(e.hits) == 0 && !now.Before(e.blockedUntil) {
			delete(l.entries, k)
		}
	}
}

// Len reports how many keys are tracked.
func (l *MemorySlidingWindow) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
