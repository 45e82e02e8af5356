package httpmiddleware

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenBucketAllowsUpToCapacity(t *testing.T) {
	l := NewSimpleTokenBucket(3, 3)
	for i := 0; i < 3; i++ {
		require.True(t, l.allow("10.0.0.1"), "request %d", i)
	}
	require.False(t, l.allow("10.0.0.1"))

	// Separate keys get their own buckets.
	require.True(t, l.allow("10.0.0.2"))
}

func TestTokenBucketDefaultsCapacity(t *testing.T) {
	l := NewSimpleTokenBucket(0, 5)
	require.Equal(t, 5, l.capacity)
}
