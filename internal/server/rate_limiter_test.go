package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucketExhaustsBurst(t *testing.T) {
	bucket := newTokenBucket(3, time.Hour)

	for i := 0; i < 3; i++ {
		assert.True(t, bucket.allow(), "request %d within burst", i)
	}
	assert.False(t, bucket.allow(), "burst exhausted")
}

func TestTokenBucketRefills(t *testing.T) {
	bucket := newTokenBucket(2, 100*time.Millisecond)

	assert.True(t, bucket.allow())
	assert.True(t, bucket.allow())
	assert.False(t, bucket.allow())

	time.Sleep(120 * time.Millisecond)
	assert.True(t, bucket.allow())
}

func TestTokenBucketCapsAtCapacity(t *testing.T) {
	bucket := newTokenBucket(2, 100*time.Millisecond)

	// A long idle period must not bank more than the capacity.
	time.Sleep(300 * time.Millisecond)
	assert.True(t, bucket.allow())
	assert.True(t, bucket.allow())
	assert.False(t, bucket.allow())
}

func TestTokenBucketDefaults(t *testing.T) {
	bucket := newTokenBucket(0, 0)

	assert.True(t, bucket.allow())
	assert.False(t, bucket.allow())
}
