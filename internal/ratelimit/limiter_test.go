package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hourly = Policy{Name: "complete-lead", Limit: 3, Window: time.Hour}

// fakeClock is shared by the limiter and the test; Advance moves it forward.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func allowN(t *testing.T, l Limiter, key string, n int) []Decision {
	t.Helper()
	out := make([]Decision, 0, n)
	for i := 0; i < n; i++ {
		d, err := l.Allow(context.Background(), key)
		require.NoError(t, err)
		out = append(out, d)
	}
	return out
}

func TestPolicy_Validate(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		wantErr string
	}{
		{name: "valid", policy: hourly},
		{name: "valid with block", policy: Policy{Name: "contact-form", Limit: 3, Window: time.Hour, Block: time.Hour}},
		{name: "missing name", policy: Policy{Limit: 3, Window: time.Hour}, wantErr: "policy name is required"},
		{name: "zero limit", policy: Policy{Name: "x", Window: time.Hour}, wantErr: "policy x: limit must be positive"},
		{name: "zero window", policy: Policy{Name: "x", Limit: 1}, wantErr: "policy x: window must be positive"},
		{name: "negative block", policy: Policy{Name: "x", Limit: 1, Window: time.Second, Block: -time.Second}, wantErr: "policy x: block must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

// ==========================
// Redis fixed window
// ==========================

func TestRedisFixedWindow_Boundary(t *testing.T) {
	mr, client := newMiniredis(t)
	l := NewRedisFixedWindow(client, hourly)

	decisions := allowN(t, l, "complete-lead:203.0.113.7", 4)
	assert.True(t, decisions[0].Allowed)
	assert.Equal(t, 2, decisions[0].Remaining)
	assert.True(t, decisions[1].Allowed)
	assert.True(t, decisions[2].Allowed)
	assert.Equal(t, 0, decisions[2].Remaining)

	assert.False(t, decisions[3].Allowed)
	assert.InDelta(t, time.Hour.Seconds(), decisions[3].RetryAfter.Seconds(), 1)

	assert.Equal(t, time.Hour, mr.TTL(KeyPrefix+"complete-lead:203.0.113.7"))

	mr.FastForward(time.Hour)

	d, err := l.Allow(context.Background(), "complete-lead:203.0.113.7")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 2, d.Remaining)
}

func TestRedisFixedWindow_KeysAreIndependent(t *testing.T) {
	_, client := newMiniredis(t)
	l := NewRedisFixedWindow(client, hourly)

	allowN(t, l, "complete-lead:198.51.100.1", 3)

	d, err := l.Allow(context.Background(), "complete-lead:198.51.100.2")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRedisFixedWindow_RestoresMissingTTL(t *testing.T) {
	mr, client := newMiniredis(t)
	l := NewRedisFixedWindow(client, hourly)

	require.NoError(t, mr.Set(KeyPrefix+"k", "3"))

	d, err := l.Allow(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Hour, d.RetryAfter)
	assert.Equal(t, time.Hour, mr.TTL(KeyPrefix+"k"))
}

func TestRedisFixedWindow_ConcurrentHitsDoNotUndercount(t *testing.T) {
	_, client := newMiniredis(t)
	l := NewRedisFixedWindow(client, Policy{Name: "burst", Limit: 5, Window: time.Minute})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := l.Allow(context.Background(), "burst:ip")
			if assert.NoError(t, err) && d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, allowed)
}

func TestRedisFixedWindow_BackendErrors(t *testing.T) {
	db, mock := redismock.NewClientMock()
	l := NewRedisFixedWindow(db, hourly)

	mock.ExpectIncr(KeyPrefix + "k").SetErr(errors.New("connection refused"))

	_, err := l.Allow(context.Background(), "k")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLimiterUnavailable))
	assert.Contains(t, err.Error(), "incr")
	assert.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectIncr(KeyPrefix + "k").SetVal(1)
	mock.ExpectPExpire(KeyPrefix+"k", time.Hour).SetErr(errors.New("READONLY"))

	_, err = l.Allow(context.Background(), "k")
	assert.ErrorIs(t, err, ErrLimiterUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Redis sliding window
// ==========================

func TestRedisSlidingWindow_BlocksAfterViolation(t *testing.T) {
	mr, client := newMiniredis(t)
	clock := newFakeClock()
	policy := Policy{Name: "contact-form", Limit: 3, Window: time.Hour, Block: time.Hour}
	l := NewRedisSlidingWindow(client, policy, WithClock(clock.Now))

	for i := 0; i < 3; i++ {
		d, err := l.Allow(context.Background(), "contact-form:ip")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 2-i, d.Remaining)
		clock.Advance(time.Minute)
	}

	d, err := l.Allow(context.Background(), "contact-form:ip")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Hour, d.RetryAfter)
	assert.True(t, mr.Exists(KeyPrefix+"block:contact-form:ip"))

	// the hits have aged out but the block still holds
	clock.Advance(59 * time.Minute)
	mr.FastForward(59 * time.Minute)

	d, err = l.Allow(context.Background(), "contact-form:ip")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.InDelta(t, time.Minute.Seconds(), d.RetryAfter.Seconds(), 1)

	clock.Advance(time.Minute)
	mr.FastForward(time.Minute)

	d, err = l.Allow(context.Background(), "contact-form:ip")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRedisSlidingWindow_WithoutBlockWaitsForOldestHit(t *testing.T) {
	_, client := newMiniredis(t)
	clock := newFakeClock()
	l := NewRedisSlidingWindow(client, Policy{Name: "w", Limit: 2, Window: 10 * time.Minute}, WithClock(clock.Now))

	allowN(t, l, "k", 1)
	clock.Advance(4 * time.Minute)
	allowN(t, l, "k", 1)
	clock.Advance(time.Minute)

	d, err := l.Allow(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 5*time.Minute, d.RetryAfter)

	// the first hit leaves the window, freeing one slot
	clock.Advance(5 * time.Minute)
	d, err = l.Allow(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
}

func TestRedisSlidingWindow_DistinctMembersForSameMillisecond(t *testing.T) {
	mr, client := newMiniredis(t)
	clock := newFakeClock()
	l := NewRedisSlidingWindow(client, Policy{Name: "w", Limit: 5, Window: time.Minute}, WithClock(clock.Now))

	allowN(t, l, "k", 3)

	members, err := mr.ZMembers(KeyPrefix + "hits:k")
	require.NoError(t, err)
	assert.Len(t, members, 3)
	assert.Equal(t, time.Minute, mr.TTL(KeyPrefix+"hits:k"))
}

func TestRedisSlidingWindow_BackendError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	l := NewRedisSlidingWindow(db, Policy{Name: "w", Limit: 1, Window: time.Minute})

	mock.ExpectPTTL(KeyPrefix + "block:k").SetErr(errors.New("i/o timeout"))

	_, err := l.Allow(context.Background(), "k")
	assert.ErrorIs(t, err, ErrLimiterUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Memory backends
// ==========================

func TestMemoryFixedWindow_Boundary(t *testing.T) {
	clock := newFakeClock()
	l := NewMemoryFixedWindow(hourly, WithClock(clock.Now))

	decisions := allowN(t, l, "ip", 4)
	assert.True(t, decisions[2].Allowed)
	assert.False(t, decisions[3].Allowed)
	assert.Equal(t, time.Hour, decisions[3].RetryAfter)

	clock.Advance(30 * time.Minute)
	d, _ := l.Allow(context.Background(), "ip")
	assert.False(t, d.Allowed)
	assert.Equal(t, 30*time.Minute, d.RetryAfter)

	clock.Advance(30 * time.Minute)
	d, _ = l.Allow(context.Background(), "ip")
	assert.True(t, d.Allowed)
	assert.Equal(t, 2, d.Remaining)
}

func TestMemoryFixedWindow_PurgesExpiredKeys(t *testing.T) {
	clock := newFakeClock()
	l := NewMemoryFixedWindow(hourly, WithClock(clock.Now))

	for _, ip := range []string{"a", "b", "c"} {
		allowN(t, l, ip, 1)
	}
	assert.Equal(t, 3, l.Len())

	clock.Advance(time.Hour)
	allowN(t, l, "d", 1)
	assert.Equal(t, 1, l.Len())
}

func TestMemoryFixedWindow_ConcurrentHits(t *testing.T) {
	l := NewMemoryFixedWindow(Policy{Name: "burst", Limit: 10, Window: time.Minute})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, _ := l.Allow(context.Background(), "ip")
			if d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, allowed)
}

func TestMemorySlidingWindow_Block(t *testing.T) {
	clock := newFakeClock()
	l := NewMemorySlidingWindow(Policy{Name: "contact-form", Limit: 3, Window: time.Hour, Block: time.Hour}, WithClock(clock.Now))

	decisions := allowN(t, l, "ip", 4)
	assert.True(t, decisions[2].Allowed)
	assert.False(t, decisions[3].Allowed)
	assert.Equal(t, time.Hour, decisions[3].RetryAfter)

	clock.Advance(90 * time.Minute)
	d, _ := l.Allow(context.Background(), "ip")
	assert.True(t, d.Allowed)
	assert.Equal(t, 2, d.Remaining)
}

func TestMemorySlidingWindow_RollingWindow(t *testing.T) {
	clock := newFakeClock()
	l := NewMemorySlidingWindow(Policy{Name: "w", Limit: 2, Window: 10 * time.Minute}, WithClock(clock.Now))

	allowN(t, l, "ip", 1)
	clock.Advance(6 * time.Minute)
	allowN(t, l, "ip", 1)

	d, _ := l.Allow(context.Background(), "ip")
	assert.False(t, d.Allowed)
	assert.Equal(t, 4*time.Minute, d.RetryAfter)

	clock.Advance(4 * time.Minute)
	d, _ = l.Allow(context.Background(), "ip")
	assert.True(t, d.Allowed)
}

func TestMemorySlidingWindow_PurgesIdleKeys(t *testing.T) {
	clock := newFakeClock()
	l := NewMemorySlidingWindow(Policy{Name: "w", Limit: 1, Window: time.Minute, Block: 5 * time.Minute}, WithClock(clock.Now))

	allowN(t, l, "blocked", 2)
	allowN(t, l, "idle", 1)
	assert.Equal(t, 2, l.Len())

	clock.Advance(2 * time.Minute)
	allowN(t, l, "fresh", 1)
	// "idle" is gone, "blocked" stays until its block ends
	assert.Equal(t, 2, l.Len())

	clock.Advance(5 * time.Minute)
	allowN(t, l, "fresh2", 1)
	assert.Equal(t, 1, l.Len())
}
