package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_AllowsUpToBurstThenBlocks(t *testing.T) {
	rl := NewRateLimiter(0, 2)

	assert.True(t, rl.Allow("alice", ChannelTable, "action"))
	assert.True(t, rl.Allow("alice", ChannelTable, "action"))
	assert.False(t, rl.Allow("alice", ChannelTable, "action"), "third call exceeds the burst of 2 with a zero refill rate")
}

func TestRateLimiter_BucketsAreScopedPerUserKindAndAction(t *testing.T) {
	rl := NewRateLimiter(0, 1)

	assert.True(t, rl.Allow("alice", ChannelTable, "action"))
	assert.False(t, rl.Allow("alice", ChannelTable, "action"))

	assert.True(t, rl.Allow("bob", ChannelTable, "action"), "a different user gets its own bucket")
	assert.True(t, rl.Allow("alice", ChannelChat, "action"), "a different channel kind gets its own bucket")
	assert.True(t, rl.Allow("alice", ChannelTable, "other"), "a different action gets its own bucket")
}

func TestRateLimiter_RetryAfterMsIsZeroForUntouchedBucket(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	assert.Equal(t, int64(0), rl.RetryAfterMs("nobody", ChannelTable, "action"))
}
