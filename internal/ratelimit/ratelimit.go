// Package ratelimit implements per-client sliding-window rate limiting for
// the write endpoints. Counters live in process memory; this is a
// single-node service and the gate sits in front of every mutating request.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

// Bucket names a class of rate-limited operations.
type Bucket string

const (
	BucketMessages Bucket = "messages"
	BucketRooms    Bucket = "rooms"
	BucketFiles    Bucket = "files"
	BucketDMs      Bucket = "dms"
	BucketWebhooks Bucket = "webhooks"
)

// Limit is the admission policy for one bucket.
type Limit struct {
	Max    int
	Window time.Duration
}

// DefaultLimits returns the built-in per-bucket policies.
func DefaultLimits() map[Bucket]Limit {
	return map[Bucket]Limit{
		BucketMessages: {Max: 60, Window: time.Minute},
		BucketRooms:    {Max: 10, Window: time.Minute},
		BucketFiles:    {Max: 20, Window: time.Minute},
		BucketDMs:      {Max: 60, Window: time.Minute},
		BucketWebhooks: {Max: 30, Window: time.Minute},
	}
}

// Result is the outcome of one admission check.
type Result struct {
	Allowed        bool
	Limit          int
	Remaining      int
	RetryAfterSecs int64
}

// Limiter keeps a timestamp deque per (client key, bucket).
type Limiter struct {
	mu     sync.Mutex
	limits map[Bucket]Limit
	hits   map[string][]time.Time
	now    func() time.Time
}

// New constructs a limiter with the given policies. Buckets missing from
// limits are unlimited.
func New(limits map[Bucket]Limit) *Limiter {
	if limits == nil {
		limits = DefaultLimits()
	}
	return &Limiter{
		limits: limits,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Allow records and admits one request for (key, bucket), or rejects it with
// the number of seconds after which a retry can succeed.
func (l *Limiter) Allow(key string, bucket Bucket) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	limit, ok := l.limits[bucket]
	if !ok || limit.Max <= 0 {
		return Result{Allowed: true, Limit: 0, Remaining: 0}
	}

	now := l.now()
	cutoff := now.Add(-limit.Window)
	mapKey := string(bucket) + ":" + key

	recent := l.hits[mapKey]
	kept := recent[:0]
	for _, ts := range recent {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= limit.Max {
		l.hits[mapKey] = kept
		retry := limit.Window - now.Sub(kept[0])
		return Result{
			Allowed:        false,
			Limit:          limit.Max,
			Remaining:      0,
			RetryAfterSecs: int64(math.Ceil(retry.Seconds())),
		}
	}

	kept = append(kept, now)
	l.hits[mapKey] = kept
	return Result{
		Allowed:   true,
		Limit:     limit.Max,
		Remaining: limit.Max - len(kept),
	}
}

// LimitFor returns the policy for a bucket, for header reporting.
func (l *Limiter) LimitFor(bucket Bucket) (Limit, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	limit, ok := l.limits[bucket]
	return limit, ok
}
