package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(max int, window time.Duration) (*Limiter, *time.Time) {
	l := New(map[Bucket]Limit{BucketMessages: {Max: max, Window: window}})
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return current }
	return l, &current
}

func TestAdmitsUpToMax(t *testing.T) {
	l, _ := newTestLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		res := l.Allow("10.0.0.1", BucketMessages)
		assert.True(t, res.Allowed)
		assert.Equal(t, 3, res.Limit)
		assert.Equal(t, 2-i, res.Remaining)
	}

	res := l.Allow("10.0.0.1", BucketMessages)
	assert.False(t, res.Allowed)
	assert.Equal(t, 3, res.Limit)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, int64(60), res.RetryAfterSecs)
}

func TestWindowSlides(t *testing.T) {
	l, current := newTestLimiter(2, time.Minute)

	assert.True(t, l.Allow("k", BucketMessages).Allowed)
	*current = current.Add(30 * time.Second)
	assert.True(t, l.Allow("k", BucketMessages).Allowed)

	res := l.Allow("k", BucketMessages)
	assert.False(t, res.Allowed)
	assert.Equal(t, int64(30), res.RetryAfterSecs, "retry once the oldest hit ages out")

	*current = current.Add(31 * time.Second)
	assert.True(t, l.Allow("k", BucketMessages).Allowed, "oldest hit expired")
}

func TestKeysAndBucketsAreIndependent(t *testing.T) {
	l := New(map[Bucket]Limit{
		BucketMessages: {Max: 1, Window: time.Minute},
		BucketDMs:      {Max: 1, Window: time.Minute},
	})

	assert.True(t, l.Allow("a", BucketMessages).Allowed)
	assert.False(t, l.Allow("a", BucketMessages).Allowed)
	assert.True(t, l.Allow("b", BucketMessages).Allowed, "other clients unaffected")
	assert.True(t, l.Allow("a", BucketDMs).Allowed, "other buckets unaffected")
}

func TestUnknownBucketIsUnlimited(t *testing.T) {
	l := New(map[Bucket]Limit{})
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow("a", BucketRooms).Allowed)
	}
}
