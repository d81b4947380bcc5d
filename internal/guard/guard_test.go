package guard

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeySet_FirstCallerWins(t *testing.T) {
	ks := NewKeySet[string]()

	require.True(t, ks.Acquire("evt-1"))
	assert.False(t, ks.Acquire("evt-1"))
	assert.True(t, ks.Held("evt-1"))
}

func TestKeySet_ReleaseAllowsReacquire(t *testing.T) {
	ks := NewKeySet[string]()

	ks.Acquire("evt-1")
	ks.Release("evt-1")

	assert.True(t, ks.Acquire("evt-1"))
}

func TestKeySet_IndependentKeys(t *testing.T) {
	ks := NewKeySet[int64]()

	assert.True(t, ks.Acquire(1))
	assert.True(t, ks.Acquire(2))
	assert.Equal(t, 2, ks.Len())
}

func TestKeySet_ReleaseUnheldIsNoop(t *testing.T) {
	ks := NewKeySet[string]()
	ks.Release("never-held")
	assert.Equal(t, 0, ks.Len())
}

func TestKeySet_ConcurrentAcquireSingleWinner(t *testing.T) {
	ks := NewKeySet[string]()

	const callers = 32
	var wg sync.WaitGroup
	wins := make(chan struct{}, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ks.Acquire("contested") {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for range wins {
		won++
	}
	assert.Equal(t, 1, won)
}

func TestRateLimiter_AllowsUnderLimit(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		result := rl.Check("wallet-a")
		assert.True(t, result.Allowed, "request %d should be allowed", i+1)
	}
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)

	rl.Check("wallet-a")
	rl.Check("wallet-a")
	result := rl.Check("wallet-a")

	assert.False(t, result.Allowed)
	assert.Equal(t, "rate_limiter", result.Guard)
}

func TestRateLimiter_SeparateKeys(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)

	assert.True(t, rl.Check("wallet-a").Allowed)
	assert.True(t, rl.Check("wallet-b").Allowed)
}
